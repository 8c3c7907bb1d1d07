package telegram

import (
	"fmt"
	"strings"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/locale"
	"meal-board/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

var mealIcons = [3]string{"🍳", "🥗", "🍲"}

// formatBoardMarkdown renders the board as a Markdown message. Days without
// dishes are left out.
func formatBoardMarkdown(s board.State, now time.Time) string {
	t := locale.For(s.Lang)
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *%s*\n_%s_\n\n", escape(t.T(locale.KeyTitle)), escape(t.MonthYear(now)))

	if s.Plan.IsEmpty() {
		sb.WriteString(escape(t.T(locale.KeyEmpty)))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, d := range board.Days() {
		var lines []string
		for _, m := range board.Meals() {
			dishes := s.Plan.Dishes(d, m)
			if len(dishes) == 0 {
				continue
			}
			names := make([]string, len(dishes))
			for i, dish := range dishes {
				names[i] = escape(dish.DisplayName(s.Lang))
			}
			lines = append(lines, fmt.Sprintf("%s %s: %s", mealIcons[m], escape(t.Meal(m)), strings.Join(names, ", ")))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "*%s*\n%s\n\n", escape(t.Day(d)), strings.Join(lines, "\n"))
	}
	return sb.String()
}

// formatCellMarkdown renders the add-dish dialog header for the active cell.
func formatCellMarkdown(s board.State) string {
	if s.Active == nil {
		return ""
	}
	t := locale.For(s.Lang)
	var sb strings.Builder
	fmt.Fprintf(&sb, "✏️ *%s*\n", escape(t.Cell(*s.Active)))
	for _, dish := range s.Plan.Dishes(s.Active.Day, s.Active.Meal) {
		fmt.Fprintf(&sb, "• %s\n", escape(dish.DisplayName(s.Lang)))
	}
	fmt.Fprintf(&sb, "\n%s", escape(t.T(locale.KeyCellPrompt)))
	return sb.String()
}

func formatError(prefix string, err error) string {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *%s:*\n```\n%v\n```", escape(prefix), safeErr)
}

func formatMetricsReport(usage []metrics.DailyUsage, health metrics.SysHealth, sessions int) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d exports, %d tokens (%d execs)\n", d.Date, d.Exports, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %s (Alloc) / %s (Sys)\n", health.Alloc, health.Sys)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Active sessions: %d\n", sessions)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	return sb.String()
}
