package signal

import (
	"fmt"
	"strings"

	"github.com/RikaiDev/mimamori/internal/models"
)

const summaryDateLayout = "2006-01-02"

// Summary renders a UserSignal as deterministic text for the analyzer's
// long-term-signal prompt section. Only non-zero breakdown entries appear,
// in fixed vocabulary order.
func Summary(sig *models.UserSignal) string {
	var sb strings.Builder

	pct := 0.0
	if sig.TotalInteractions > 0 {
		pct = float64(sig.ConcerningCount) / float64(sig.TotalInteractions) * 100
	}

	fmt.Fprintf(&sb, "History between these two users: %d interactions analyzed, %d concerning (%.1f%%)\n",
		sig.TotalInteractions, sig.ConcerningCount, pct)
	fmt.Fprintf(&sb, "Trend: %s\n", trendLabel(sig.Trend))

	if line := breakdownLine(sig.IssueBreakdown, models.IssueKinds); line != "" {
		fmt.Fprintf(&sb, "Issues: %s\n", line)
	}
	if line := breakdownLine(sig.SeverityBreakdown, models.Severities); line != "" {
		fmt.Fprintf(&sb, "Severity: %s\n", line)
	}
	if sig.ConcerningCount > 0 {
		fmt.Fprintf(&sb, "Average confidence: %.2f\n", sig.AvgConfidence)
	}
	fmt.Fprintf(&sb, "First seen %s, last seen %s\n",
		sig.FirstSeen.UTC().Format(summaryDateLayout),
		sig.LastSeen.UTC().Format(summaryDateLayout))

	return sb.String()
}

func trendLabel(trend int) string {
	switch trend {
	case models.TrendWorsening:
		return "↑ worsening"
	case models.TrendImproving:
		return "↓ improving"
	}
	return "→ stable"
}

func breakdownLine(counts map[string]int, order []string) string {
	parts := make([]string, 0, len(order))
	for _, key := range order {
		if counts[key] > 0 {
			parts = append(parts, fmt.Sprintf("%s ×%d", key, counts[key]))
		}
	}
	return strings.Join(parts, ", ")
}
