package storage

import (
	"context"
	"time"

	"github.com/RikaiDev/mimamori/internal/models"
)

// Storage is the full persistence surface of the bot. Lookups that find
// nothing return (nil, nil); an error always means the store itself failed.
type Storage interface {
	MessageStore
	InteractionStore
	SignalStore
	AlertStore
	Close() error
}

// MessageStore is the append-only, retention-bounded message log.
type MessageStore interface {
	// SaveMessage upserts by message ID so re-ingesting is idempotent.
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// GetPairMessages returns guild messages since the given time where
	// either user is the author or appears in the mention list, across all
	// channels. The most recent limit messages are returned, oldest first.
	GetPairMessages(ctx context.Context, guildID, userA, userB string, since time.Time, limit int) ([]*models.Message, error)
	// DeleteMessagesOlderThan removes messages whose timestamp is strictly
	// before the cutoff and reports how many were removed.
	DeleteMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// InteractionStore keeps the order-normalized pair interaction counters.
type InteractionStore interface {
	// RecordInteraction bumps the counter for the pair, creating the row on
	// first contact, and returns the updated row. The user IDs may be passed
	// in either order.
	RecordInteraction(ctx context.Context, guildID, userA, userB, channelID string, at time.Time) (*models.Interaction, error)
	GetInteraction(ctx context.Context, guildID, userA, userB string) (*models.Interaction, error)
}

// SignalStore persists the directional per-pair aggregates and their daily
// snapshot series.
type SignalStore interface {
	GetUserSignal(ctx context.Context, guildID, sourceUserID, targetUserID string) (*models.UserSignal, error)
	SaveUserSignal(ctx context.Context, sig *models.UserSignal) error
	// AddDailySnapshot folds one verdict's contribution into the pair's row
	// for that calendar day: counts accumulate, the day's severity is the
	// running mean over its concerning verdicts, and the latest concerning
	// verdict's issue becomes the day's primary issue.
	AddDailySnapshot(ctx context.Context, snap *models.DailySnapshot) error
	// GetRecentSnapshots returns up to limit snapshots for the pair, newest
	// date first.
	GetRecentSnapshots(ctx context.Context, guildID, sourceUserID, targetUserID string, limit int) ([]*models.DailySnapshot, error)
	// GetUserSignals returns signals where the user is source or target,
	// filtered to concerningCount >= 3 or a worsening trend.
	GetUserSignals(ctx context.Context, guildID, userID string) ([]*models.UserSignal, error)
	// GetTopConcerns returns the guild's most concerning pairs with at least
	// minCount concerning verdicts, ordered by count then recency.
	GetTopConcerns(ctx context.Context, guildID string, minCount, limit int) ([]*models.UserSignal, error)
}

// AlertStore is the notifier's dedup and cooldown bookkeeping.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	AlertExistsForMessage(ctx context.Context, messageID string) (bool, error)
	HasRecentAlert(ctx context.Context, authorID string, since time.Time) (bool, error)
}
