package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RikaiDev/mimamori/internal/models"
)

// MemoryStorage is a map-backed Storage used by tests and local runs. It
// mirrors the Postgres implementation's semantics, including clone-on-read
// so callers never share row memory with the store.
type MemoryStorage struct {
	mu           sync.RWMutex
	messages     map[string]*models.Message
	interactions map[string]*models.Interaction
	signals      map[string]*models.UserSignal
	snapshots    map[string]*models.DailySnapshot
	alerts       map[string]*models.Alert
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages:     make(map[string]*models.Message),
		interactions: make(map[string]*models.Interaction),
		signals:      make(map[string]*models.UserSignal),
		snapshots:    make(map[string]*models.DailySnapshot),
		alerts:       make(map[string]*models.Alert),
	}
}

func pairKey(guildID, a, b string) string {
	return guildID + "|" + a + "|" + b
}

func snapshotKey(guildID, source, target, date string) string {
	return guildID + "|" + source + "|" + target + "|" + date
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (s *MemoryStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, exists := s.messages[id]
	if !exists {
		return nil, nil
	}
	return cloneMessage(msg), nil
}

func (s *MemoryStorage) GetPairMessages(ctx context.Context, guildID, userA, userB string, since time.Time, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Message
	for _, msg := range s.messages {
		if msg.GuildID != guildID || msg.Timestamp.Before(since) {
			continue
		}
		if msg.AuthorID == userA || msg.AuthorID == userB ||
			msg.Mentions(userA) || msg.Mentions(userB) {
			matched = append(matched, cloneMessage(msg))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	return matched, nil
}

func (s *MemoryStorage) DeleteMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, msg := range s.messages {
		if msg.Timestamp.Before(cutoff) {
			delete(s.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStorage) RecordInteraction(ctx context.Context, guildID, userA, userB, channelID string, at time.Time) (*models.Interaction, error) {
	a, b := models.NormalizePair(userA, userB)
	key := pairKey(guildID, a, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	interaction, exists := s.interactions[key]
	if !exists {
		interaction = &models.Interaction{GuildID: guildID, UserA: a, UserB: b}
		s.interactions[key] = interaction
	}
	interaction.InteractionCount++
	interaction.LastInteractionAt = at
	interaction.AddChannel(channelID, 0)

	return cloneInteraction(interaction), nil
}

func (s *MemoryStorage) GetInteraction(ctx context.Context, guildID, userA, userB string) (*models.Interaction, error) {
	a, b := models.NormalizePair(userA, userB)

	s.mu.RLock()
	defer s.mu.RUnlock()

	interaction, exists := s.interactions[pairKey(guildID, a, b)]
	if !exists {
		return nil, nil
	}
	return cloneInteraction(interaction), nil
}

func (s *MemoryStorage) GetUserSignal(ctx context.Context, guildID, sourceUserID, targetUserID string) (*models.UserSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.signals[pairKey(guildID, sourceUserID, targetUserID)]
	if !exists {
		return nil, nil
	}
	return cloneSignal(sig), nil
}

func (s *MemoryStorage) SaveUserSignal(ctx context.Context, sig *models.UserSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals[pairKey(sig.GuildID, sig.SourceUserID, sig.TargetUserID)] = cloneSignal(sig)
	return nil
}

func (s *MemoryStorage) AddDailySnapshot(ctx context.Context, snap *models.DailySnapshot) error {
	key := snapshotKey(snap.GuildID, snap.SourceUserID, snap.TargetUserID, snap.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.snapshots[key]
	if !exists {
		clone := *snap
		s.snapshots[key] = &clone
		return nil
	}

	totalConcerning := existing.ConcerningCount + snap.ConcerningCount
	if totalConcerning > 0 {
		existing.AvgSeverity = (existing.AvgSeverity*float64(existing.ConcerningCount) +
			snap.AvgSeverity*float64(snap.ConcerningCount)) / float64(totalConcerning)
	} else {
		existing.AvgSeverity = 0
	}
	existing.InteractionCount += snap.InteractionCount
	existing.ConcerningCount = totalConcerning
	if snap.PrimaryIssueType != "" {
		existing.PrimaryIssueType = snap.PrimaryIssueType
	}

	return nil
}

func (s *MemoryStorage) GetRecentSnapshots(ctx context.Context, guildID, sourceUserID, targetUserID string, limit int) ([]*models.DailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.DailySnapshot
	for _, snap := range s.snapshots {
		if snap.GuildID == guildID && snap.SourceUserID == sourceUserID && snap.TargetUserID == targetUserID {
			clone := *snap
			matched = append(matched, &clone)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date > matched[j].Date
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (s *MemoryStorage) GetUserSignals(ctx context.Context, guildID, userID string) ([]*models.UserSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.UserSignal
	for _, sig := range s.signals {
		if sig.GuildID != guildID {
			continue
		}
		if sig.SourceUserID != userID && sig.TargetUserID != userID {
			continue
		}
		if sig.ConcerningCount >= 3 || sig.Trend == models.TrendWorsening {
			matched = append(matched, cloneSignal(sig))
		}
	}

	sortSignals(matched)
	return matched, nil
}

func (s *MemoryStorage) GetTopConcerns(ctx context.Context, guildID string, minCount, limit int) ([]*models.UserSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.UserSignal
	for _, sig := range s.signals {
		if sig.GuildID == guildID && sig.ConcerningCount >= minCount {
			matched = append(matched, cloneSignal(sig))
		}
	}

	sortSignals(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (s *MemoryStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.MessageID]; exists {
		return nil
	}
	clone := *alert
	s.alerts[alert.MessageID] = &clone
	return nil
}

func (s *MemoryStorage) AlertExistsForMessage(ctx context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.alerts[messageID]
	return exists, nil
}

func (s *MemoryStorage) HasRecentAlert(ctx context.Context, authorID string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, alert := range s.alerts {
		if alert.AuthorID == authorID && !alert.AlertedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func sortSignals(signals []*models.UserSignal) {
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].ConcerningCount != signals[j].ConcerningCount {
			return signals[i].ConcerningCount > signals[j].ConcerningCount
		}
		return signals[i].LastSeen.After(signals[j].LastSeen)
	})
}

func cloneMessage(msg *models.Message) *models.Message {
	clone := *msg
	clone.MentionedUserIDs = append([]string(nil), msg.MentionedUserIDs...)
	return &clone
}

func cloneInteraction(interaction *models.Interaction) *models.Interaction {
	clone := *interaction
	clone.ContextChain = append([]string(nil), interaction.ContextChain...)
	return &clone
}

func cloneSignal(sig *models.UserSignal) *models.UserSignal {
	clone := *sig
	clone.IssueBreakdown = make(map[string]int, len(sig.IssueBreakdown))
	for k, v := range sig.IssueBreakdown {
		clone.IssueBreakdown[k] = v
	}
	clone.SeverityBreakdown = make(map[string]int, len(sig.SeverityBreakdown))
	for k, v := range sig.SeverityBreakdown {
		clone.SeverityBreakdown[k] = v
	}
	return &clone
}
