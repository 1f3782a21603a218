package signal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RikaiDev/mimamori/internal/models"
	"github.com/RikaiDev/mimamori/internal/storage"
)

// ConcernThresholds are the cumulative concerning-count levels that merit a
// one-time alert when newly crossed.
var ConcernThresholds = []int{3, 5, 10, 20}

const (
	trendLookbackDays  = 30
	trendMinDays       = 14
	trendWindowDays    = 7
	trendChangeEpsilon = 0.5
)

// Result describes what a recorded verdict changed: the updated signal,
// whether a concern threshold was newly crossed, and whether the trend just
// transitioned into worsening.
type Result struct {
	Signal            *models.UserSignal
	IsNewConcernLevel bool
	TrendWorsened     bool
}

// Aggregator folds analyzer verdicts into the durable per-pair signal state.
// Updates for the same directional pair are serialized so concurrent
// verdicts cannot lose counter increments.
type Aggregator struct {
	store  storage.SignalStore
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAggregator(store storage.SignalStore, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (a *Aggregator) lockPair(key string) func() {
	a.mu.Lock()
	lock, exists := a.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		a.locks[key] = lock
	}
	a.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// RecordVerdict updates the directional pair's cumulative signal and its
// daily snapshot with one verdict, recomputes the trend from recent
// snapshots, and reports threshold crossings and trend transitions.
func (a *Aggregator) RecordVerdict(ctx context.Context, guildID, sourceUserID, targetUserID string, verdict *models.Verdict) (*Result, error) {
	unlock := a.lockPair(guildID + "|" + sourceUserID + "|" + targetUserID)
	defer unlock()

	sig, err := a.store.GetUserSignal(ctx, guildID, sourceUserID, targetUserID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	if sig == nil {
		sig = models.NewUserSignal(guildID, sourceUserID, targetUserID)
		sig.FirstSeen = now
	}
	prevConcerning := sig.ConcerningCount
	prevTrend := sig.Trend

	sig.TotalInteractions++
	snap := &models.DailySnapshot{
		GuildID:          guildID,
		SourceUserID:     sourceUserID,
		TargetUserID:     targetUserID,
		Date:             models.SnapshotDate(now),
		InteractionCount: 1,
	}

	if verdict.IsConcerning {
		confidenceTotal := sig.AvgConfidence * float64(sig.ConcerningCount)
		sig.ConcerningCount++
		sig.AvgConfidence = (confidenceTotal + verdict.Confidence) / float64(sig.ConcerningCount)

		// Unknown issue labels still count toward the concerning total, they
		// just never touch a breakdown bucket.
		if models.KnownIssue(verdict.IssueType) {
			sig.IssueBreakdown[verdict.IssueType]++
		}
		if models.SeverityScale(verdict.Severity) > 0 {
			sig.SeverityBreakdown[verdict.Severity]++
		}

		snap.ConcerningCount = 1
		snap.AvgSeverity = float64(models.SeverityScale(verdict.Severity))
		snap.PrimaryIssueType = verdict.IssueType
	}

	sig.LastSeen = now
	sig.LastAggregated = now

	if err := a.store.AddDailySnapshot(ctx, snap); err != nil {
		return nil, err
	}

	snapshots, err := a.store.GetRecentSnapshots(ctx, guildID, sourceUserID, targetUserID, trendLookbackDays)
	if err != nil {
		return nil, err
	}
	sig.Trend = computeTrend(snapshots)

	if err := a.store.SaveUserSignal(ctx, sig); err != nil {
		return nil, err
	}

	result := &Result{
		Signal:            sig,
		IsNewConcernLevel: crossedThreshold(prevConcerning, sig.ConcerningCount),
		TrendWorsened:     prevTrend != sig.Trend && sig.Trend == models.TrendWorsening,
	}

	if result.IsNewConcernLevel || result.TrendWorsened {
		a.logger.Info("signal escalation",
			zap.String("guild_id", guildID),
			zap.String("source_id", sourceUserID),
			zap.String("target_id", targetUserID),
			zap.Int("concerning_count", sig.ConcerningCount),
			zap.Int("trend", sig.Trend),
			zap.Bool("new_concern_level", result.IsNewConcernLevel),
			zap.Bool("trend_worsened", result.TrendWorsened))
	}

	return result, nil
}

// computeTrend compares the most recent seven days of snapshots against the
// seven before them. Fewer than fourteen days of history is always stable.
func computeTrend(snapshots []*models.DailySnapshot) int {
	if len(snapshots) < trendMinDays {
		return models.TrendStable
	}

	recentAvg := avgConcerning(snapshots[:trendWindowDays])
	previousAvg := avgConcerning(snapshots[trendWindowDays : 2*trendWindowDays])

	change := recentAvg - previousAvg
	switch {
	case change > trendChangeEpsilon:
		return models.TrendWorsening
	case change < -trendChangeEpsilon:
		return models.TrendImproving
	}
	return models.TrendStable
}

func avgConcerning(snapshots []*models.DailySnapshot) float64 {
	total := 0
	for _, snap := range snapshots {
		total += snap.ConcerningCount
	}
	return float64(total) / float64(len(snapshots))
}

// crossedThreshold reports whether the count moved from below to at-or-above
// any concern threshold in this update.
func crossedThreshold(prev, current int) bool {
	for _, threshold := range ConcernThresholds {
		if prev < threshold && current >= threshold {
			return true
		}
	}
	return false
}

// PairSignal returns the current signal for a directional pair, or nil when
// none has been recorded.
func (a *Aggregator) PairSignal(ctx context.Context, guildID, sourceUserID, targetUserID string) (*models.UserSignal, error) {
	return a.store.GetUserSignal(ctx, guildID, sourceUserID, targetUserID)
}

// UserSignals returns the notable signals a user participates in, as source
// or target: at least three concerning verdicts or a worsening trend.
func (a *Aggregator) UserSignals(ctx context.Context, guildID, userID string) ([]*models.UserSignal, error) {
	return a.store.GetUserSignals(ctx, guildID, userID)
}

// TopConcerns returns the guild's most concerning pairs above a minimum
// concerning count.
func (a *Aggregator) TopConcerns(ctx context.Context, guildID string, minCount, limit int) ([]*models.UserSignal, error) {
	return a.store.GetTopConcerns(ctx, guildID, minCount, limit)
}
