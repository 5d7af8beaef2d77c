package budget

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

const barLength = 10

// ProgressBar renders percentage as a 10-cell bar prefixed with a colored
// marker: green below 75%, yellow from 75% and red from 90%.
func ProgressBar(percentage float64) string {
	filled := int(percentage / 10)
	filled = max(0, min(filled, barLength))

	marker := "🟢"
	switch {
	case percentage >= 90:
		marker = "🔴"
	case percentage >= 75:
		marker = "🟡"
	}

	return marker + strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled)
}

// FormatStatus renders a status for chat display.
func FormatStatus(s *Status) string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("💰 **BUDGET STATUS**\n\n")
	fmt.Fprintf(&b, "**Aujourd'hui:** $%s / $%s\n", money(s.Daily.Spent), money(s.Daily.Limit))
	fmt.Fprintf(&b, "%s %.0f%%\n\n", ProgressBar(s.Daily.Percentage), s.Daily.Percentage)
	fmt.Fprintf(&b, "**Ce mois:** $%s / $%s\n", money(s.Monthly.Spent), money(s.Monthly.Limit))
	fmt.Fprintf(&b, "%s %.0f%%\n\n", ProgressBar(s.Monthly.Percentage), s.Monthly.Percentage)
	fmt.Fprintf(&b, "**Restant aujourd'hui:** $%s", money(s.Daily.Remaining))

	return b.String()
}

// FormatUsageStats renders usage stats as appended to the /budget reply.
func FormatUsageStats(u UsageStats) string {
	return fmt.Sprintf("📊 **STATS %d DERNIERS JOURS:**\n• Messages: %d\n• Coût total: $%s\n• Coût moyen/message: $%s\n• Tokens utilisés: %s",
		u.DaysAnalyzed,
		u.TotalMessages,
		u.TotalCost.StringFixed(3),
		u.AvgCostPerMessage.StringFixed(4),
		humanize.Comma(int64(u.TotalTokens)),
	)
}
