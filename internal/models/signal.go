package models

import "time"

// Issue kinds the aggregator keeps breakdown counts for. Verdicts carrying
// any other label still count as concerning but do not touch a bucket.
const (
	IssueDiscrimination = "discrimination"
	IssueHarassment     = "harassment"
	IssueBullying       = "bullying"
	IssueImplicitBias   = "implicit_bias"
	IssueLabeling       = "labeling"
	IssueTargeting      = "targeting"
	IssueInappropriate  = "inappropriate"
)

// IssueKinds lists every counted issue kind, in breakdown rendering order.
var IssueKinds = []string{
	IssueDiscrimination,
	IssueHarassment,
	IssueBullying,
	IssueImplicitBias,
	IssueLabeling,
	IssueTargeting,
	IssueInappropriate,
}

// KnownIssue reports whether kind is one of the counted issue kinds.
func KnownIssue(kind string) bool {
	for _, k := range IssueKinds {
		if k == kind {
			return true
		}
	}
	return false
}

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Severities in ascending order.
var Severities = []string{SeverityLow, SeverityMedium, SeverityHigh}

// SeverityScale maps a severity label onto the 1/2/3 snapshot scale.
// Unknown labels map to 0.
func SeverityScale(severity string) int {
	switch severity {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// Trend values for a user signal.
const (
	TrendImproving = -1
	TrendStable    = 0
	TrendWorsening = 1
)

// UserSignal is the durable cumulative aggregate of verdicts for a
// directional pair: source is the message author, target the implicated
// counterpart. (G,A,B) and (G,B,A) are distinct rows.
type UserSignal struct {
	GuildID           string         `json:"guild_id"`
	SourceUserID      string         `json:"source_user_id"`
	TargetUserID      string         `json:"target_user_id"`
	TotalInteractions int            `json:"total_interactions"`
	ConcerningCount   int            `json:"concerning_count"`
	IssueBreakdown    map[string]int `json:"issue_breakdown"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
	AvgConfidence     float64        `json:"avg_confidence"`
	Trend             int            `json:"trend"`
	FirstSeen         time.Time      `json:"first_seen"`
	LastSeen          time.Time      `json:"last_seen"`
	LastAggregated    time.Time      `json:"last_aggregated"`
}

// NewUserSignal returns a zeroed signal for a directional pair with empty
// breakdown maps.
func NewUserSignal(guildID, sourceUserID, targetUserID string) *UserSignal {
	return &UserSignal{
		GuildID:           guildID,
		SourceUserID:      sourceUserID,
		TargetUserID:      targetUserID,
		IssueBreakdown:    make(map[string]int),
		SeverityBreakdown: make(map[string]int),
	}
}

// DailySnapshot is one calendar day's contribution to a pair's signal,
// keyed by (guild, source, target, date) with date as "2006-01-02".
type DailySnapshot struct {
	GuildID          string  `json:"guild_id"`
	SourceUserID     string  `json:"source_user_id"`
	TargetUserID     string  `json:"target_user_id"`
	Date             string  `json:"date"`
	InteractionCount int     `json:"interaction_count"`
	ConcerningCount  int     `json:"concerning_count"`
	AvgSeverity      float64 `json:"avg_severity"`
	PrimaryIssueType string  `json:"primary_issue_type,omitempty"`
}

// SnapshotDate formats a timestamp as a snapshot calendar-day key (UTC).
func SnapshotDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Alert records that a notification went out for a message. Used only for
// dedup and cooldown bookkeeping by the notifier.
type Alert struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	AlertedAt time.Time `json:"alerted_at"`
	Severity  string    `json:"severity"`
	Reason    string    `json:"reason"`
}
