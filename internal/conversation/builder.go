package conversation

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/RikaiDev/mimamori/internal/models"
	"github.com/RikaiDev/mimamori/internal/storage"
)

// Chain is the reconstructed conversation window between two users: prior
// context in chronological order, the trigger message last, plus derived
// stats for the analyzer.
type Chain struct {
	GuildID         string
	Trigger         *models.Message
	Context         []*models.Message
	TimeSpanMinutes int
	InvolvedUsers   []string
}

// Builder assembles cross-channel context windows from the message store.
type Builder struct {
	store       storage.MessageStore
	windowHours int
	maxMessages int
	logger      *zap.Logger
	now         func() time.Time
}

func NewBuilder(store storage.MessageStore, windowHours, maxMessages int, logger *zap.Logger) *Builder {
	return &Builder{
		store:       store,
		windowHours: windowHours,
		maxMessages: maxMessages,
		logger:      logger,
		now:         time.Now,
	}
}

// Build reconstructs the window between author and target around the trigger
// message, across every channel in the guild. Returns (nil, nil) when the
// trigger message is unknown or the window is empty; both are expected
// outcomes, not faults.
func (b *Builder) Build(ctx context.Context, guildID, triggerMessageID, authorID, targetUserID string) (*Chain, error) {
	trigger, err := b.store.GetMessage(ctx, triggerMessageID)
	if err != nil {
		return nil, err
	}
	if trigger == nil {
		b.logger.Debug("trigger message not found", zap.String("message_id", triggerMessageID))
		return nil, nil
	}

	since := b.now().Add(-time.Duration(b.windowHours) * time.Hour)
	window, err := b.store.GetPairMessages(ctx, guildID, authorID, targetUserID, since, b.maxMessages)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, nil
	}

	// The trigger row is part of the stored window; it is carried separately
	// so the rendering can demarcate it.
	contextMsgs := make([]*models.Message, 0, len(window))
	for _, msg := range window {
		if msg.ID == trigger.ID {
			continue
		}
		contextMsgs = append(contextMsgs, msg)
	}

	earliest, latest := trigger.Timestamp, trigger.Timestamp
	involved := make([]string, 0, len(contextMsgs)*2+2)
	for _, msg := range append(contextMsgs, trigger) {
		if msg.Timestamp.Before(earliest) {
			earliest = msg.Timestamp
		}
		if msg.Timestamp.After(latest) {
			latest = msg.Timestamp
		}
		involved = append(involved, msg.AuthorID)
		involved = append(involved, msg.MentionedUserIDs...)
	}

	return &Chain{
		GuildID:         guildID,
		Trigger:         trigger,
		Context:         contextMsgs,
		TimeSpanMinutes: int(math.Round(latest.Sub(earliest).Minutes())),
		InvolvedUsers:   models.DedupeUsers(involved...),
	}, nil
}
