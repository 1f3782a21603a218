package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RikaiDev/mimamori/internal/models"
)

var storeNow = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

func TestSaveMessageIdempotent(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	msg := &models.Message{
		ID: "m1", GuildID: "g1", ChannelID: "c1", AuthorID: "A",
		Content: "first", Timestamp: storeNow,
	}
	require.NoError(t, store.SaveMessage(ctx, msg))

	// Re-ingest with updated content overwrites in place.
	msg.Content = "edited"
	require.NoError(t, store.SaveMessage(ctx, msg))

	stored, err := store.GetMessage(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "edited", stored.Content)

	missing, err := store.GetMessage(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetPairMessagesMembership(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	save := func(id, author string, mentions []string, age time.Duration) {
		require.NoError(t, store.SaveMessage(ctx, &models.Message{
			ID: id, GuildID: "g1", ChannelID: "c1", AuthorID: author,
			Content: id, Timestamp: storeNow.Add(-age), MentionedUserIDs: mentions,
		}))
	}

	save("byA", "A", nil, 4*time.Hour)
	save("byB", "B", nil, 3*time.Hour)
	save("mentionsA", "C", []string{"A"}, 2*time.Hour)
	save("mentionsB", "C", []string{"B"}, time.Hour)
	save("unrelated", "C", []string{"D"}, time.Hour)
	save("tooOld", "A", nil, 30*time.Hour)

	msgs, err := store.GetPairMessages(ctx, "g1", "A", "B", storeNow.Add(-24*time.Hour), 50)
	require.NoError(t, err)

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"byA", "byB", "mentionsA", "mentionsB"}, ids)
}

func TestGetPairMessagesKeepsNewestWhenCapped(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, store.SaveMessage(ctx, &models.Message{
			ID: id, GuildID: "g1", ChannelID: "c1", AuthorID: "A",
			Content: id, Timestamp: storeNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	msgs, err := store.GetPairMessages(ctx, "g1", "A", "B", storeNow.Add(-time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, "m3", msgs[1].ID)
}

func TestDeleteMessagesOlderThan(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.SaveMessage(ctx, &models.Message{
		ID: "old", GuildID: "g1", ChannelID: "c1", AuthorID: "A", Timestamp: storeNow.Add(-48 * time.Hour),
	}))
	require.NoError(t, store.SaveMessage(ctx, &models.Message{
		ID: "fresh", GuildID: "g1", ChannelID: "c1", AuthorID: "A", Timestamp: storeNow,
	}))

	deleted, err := store.DeleteMessagesOlderThan(ctx, storeNow.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := store.GetMessage(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := store.GetMessage(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestRecordInteractionNormalizesPair(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	_, err := store.RecordInteraction(ctx, "g1", "B", "A", "c1", storeNow)
	require.NoError(t, err)
	second, err := store.RecordInteraction(ctx, "g1", "A", "B", "c2", storeNow.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 2, second.InteractionCount)
	assert.Equal(t, "A", second.UserA)
	assert.Equal(t, "B", second.UserB)
	assert.Equal(t, []string{"c1", "c2"}, second.ContextChain)

	// Lookup works in either order.
	found, err := store.GetInteraction(ctx, "g1", "B", "A")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.InteractionCount)
}

func TestUserSignalRoundTrip(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	sig := models.NewUserSignal("g1", "A", "B")
	sig.TotalInteractions = 10
	sig.ConcerningCount = 4
	sig.IssueBreakdown[models.IssueBullying] = 3
	sig.IssueBreakdown[models.IssueLabeling] = 1
	sig.SeverityBreakdown[models.SeverityMedium] = 4
	sig.AvgConfidence = 0.75
	sig.Trend = models.TrendWorsening
	sig.FirstSeen = storeNow.AddDate(0, 0, -10)
	sig.LastSeen = storeNow
	sig.LastAggregated = storeNow
	require.NoError(t, store.SaveUserSignal(ctx, sig))

	// Mutating the saved value must not leak into the store.
	sig.IssueBreakdown[models.IssueBullying] = 99

	got, err := store.GetUserSignal(ctx, "g1", "A", "B")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.ConcerningCount)
	assert.Equal(t, map[string]int{models.IssueBullying: 3, models.IssueLabeling: 1}, got.IssueBreakdown)
	assert.Equal(t, map[string]int{models.SeverityMedium: 4}, got.SeverityBreakdown)
	assert.Equal(t, models.TrendWorsening, got.Trend)

	// Directional key: the reverse pair is absent.
	reverse, err := store.GetUserSignal(ctx, "g1", "B", "A")
	require.NoError(t, err)
	assert.Nil(t, reverse)
}

func TestGetUserSignalsFilter(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	save := func(source, target string, count, trend int) {
		sig := models.NewUserSignal("g1", source, target)
		sig.ConcerningCount = count
		sig.TotalInteractions = count
		sig.Trend = trend
		sig.LastSeen = storeNow
		require.NoError(t, store.SaveUserSignal(ctx, sig))
	}

	save("A", "B", 5, models.TrendStable)     // notable by count
	save("C", "A", 1, models.TrendWorsening)  // notable by trend
	save("A", "D", 1, models.TrendStable)     // quiet
	save("E", "F", 8, models.TrendWorsening)  // other users

	signals, err := store.GetUserSignals(ctx, "g1", "A")
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "A", signals[0].SourceUserID)
	assert.Equal(t, "B", signals[0].TargetUserID)
	assert.Equal(t, "C", signals[1].SourceUserID)
}

func TestGetTopConcerns(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	save := func(source, target string, count int, lastSeen time.Time) {
		sig := models.NewUserSignal("g1", source, target)
		sig.ConcerningCount = count
		sig.TotalInteractions = count
		sig.LastSeen = lastSeen
		require.NoError(t, store.SaveUserSignal(ctx, sig))
	}

	save("A", "B", 7, storeNow.Add(-time.Hour))
	save("C", "D", 7, storeNow) // same count, more recent
	save("E", "F", 12, storeNow.Add(-2*time.Hour))
	save("G", "H", 2, storeNow) // below the floor

	top, err := store.GetTopConcerns(ctx, "g1", 3, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "E", top[0].SourceUserID)
	assert.Equal(t, "C", top[1].SourceUserID)
}

func TestAlertBookkeeping(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	exists, err := store.AlertExistsForMessage(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.SaveAlert(ctx, &models.Alert{
		ID: "a1", MessageID: "m1", GuildID: "g1", ChannelID: "c1",
		AuthorID: "A", AlertedAt: storeNow, Severity: models.SeverityHigh, Reason: "bullying",
	}))

	exists, err = store.AlertExistsForMessage(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, exists)

	recent, err := store.HasRecentAlert(ctx, "A", storeNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, recent)

	recent, err = store.HasRecentAlert(ctx, "A", storeNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, recent)

	recent, err = store.HasRecentAlert(ctx, "B", storeNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestAddDailySnapshotAccumulates(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	date := models.SnapshotDate(storeNow)

	require.NoError(t, store.AddDailySnapshot(ctx, &models.DailySnapshot{
		GuildID: "g1", SourceUserID: "A", TargetUserID: "B", Date: date,
		InteractionCount: 1, ConcerningCount: 1, AvgSeverity: 1, PrimaryIssueType: models.IssueLabeling,
	}))
	require.NoError(t, store.AddDailySnapshot(ctx, &models.DailySnapshot{
		GuildID: "g1", SourceUserID: "A", TargetUserID: "B", Date: date,
		InteractionCount: 1, ConcerningCount: 1, AvgSeverity: 3, PrimaryIssueType: models.IssueBullying,
	}))
	require.NoError(t, store.AddDailySnapshot(ctx, &models.DailySnapshot{
		GuildID: "g1", SourceUserID: "A", TargetUserID: "B", Date: date,
		InteractionCount: 1,
	}))

	snaps, err := store.GetRecentSnapshots(ctx, "g1", "A", "B", 30)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 3, snaps[0].InteractionCount)
	assert.Equal(t, 2, snaps[0].ConcerningCount)
	assert.InDelta(t, 2.0, snaps[0].AvgSeverity, 1e-9)
	assert.Equal(t, models.IssueBullying, snaps[0].PrimaryIssueType)
}

func TestGetRecentSnapshotsOrderAndLimit(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	for day := 0; day < 5; day++ {
		require.NoError(t, store.AddDailySnapshot(ctx, &models.DailySnapshot{
			GuildID: "g1", SourceUserID: "A", TargetUserID: "B",
			Date:             models.SnapshotDate(storeNow.AddDate(0, 0, -day)),
			InteractionCount: 1,
		}))
	}

	snaps, err := store.GetRecentSnapshots(ctx, "g1", "A", "B", 3)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, models.SnapshotDate(storeNow), snaps[0].Date)
	assert.True(t, snaps[0].Date > snaps[1].Date && snaps[1].Date > snaps[2].Date)
}
