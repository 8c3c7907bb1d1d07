package tui

import (
	"fmt"
	"strings"

	"meal-board/internal/board"
	"meal-board/internal/locale"

	"github.com/charmbracelet/lipgloss"
)

const (
	cellWidth  = 18
	labelWidth = 11
	cellLines  = 3
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#111827"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Width(cellWidth).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#111827"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(labelWidth).
			Height(cellLines).
			Foreground(lipgloss.Color("#6B7280"))

	cellStyle = lipgloss.NewStyle().
			Width(cellWidth).
			Height(cellLines).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#E5E7EB"))

	cursorStyle = cellStyle.
			BorderForeground(lipgloss.Color("#4D96FF"))

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4D96FF")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4D96FF"))

	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func (m Model) View() string {
	t := m.t()
	var b strings.Builder

	b.WriteString(titleStyle.Render(t.T(locale.KeyTitle)))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(t.MonthYear(m.now())))
	b.WriteString("\n\n")
	b.WriteString(m.viewGrid(t))
	b.WriteString("\n")

	switch m.screen {
	case screenDialog:
		b.WriteString(m.viewDialog(t))
		b.WriteString("\n")
	case screenRemove:
		b.WriteString(m.viewRemove(t))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%s: %v", t.T(locale.KeyExportFailed), m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(mutedStyle.Render(m.helpLine(t)))
	return b.String()
}

func (m Model) viewGrid(t locale.Resolver) string {
	rows := make([]string, 0, len(board.Meals())+1)

	header := []string{lipgloss.NewStyle().Width(labelWidth).Render("")}
	for _, d := range board.Days() {
		header = append(header, headerStyle.Render(t.DayAbbrev(d)))
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, meal := range board.Meals() {
		row := []string{labelStyle.Render(t.Meal(meal))}
		for _, d := range board.Days() {
			style := cellStyle
			if m.cursor.Day == d && m.cursor.Meal == meal {
				style = cursorStyle
			}
			row = append(row, style.Render(m.cellText(d, meal)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) cellText(d board.Day, meal board.Meal) string {
	dishes := m.state.Plan.Dishes(d, meal)
	lines := make([]string, 0, cellLines)
	for i, dish := range dishes {
		if i == cellLines-1 && len(dishes) > cellLines {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("+%d", len(dishes)-i)))
			break
		}
		lines = append(lines, truncate("• "+dish.DisplayName(m.state.Lang), cellWidth-2))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewDialog(t locale.Resolver) string {
	var b strings.Builder
	cell := m.cursor
	if m.state.Active != nil {
		cell = *m.state.Active
	}
	b.WriteString(selectedStyle.Render(t.T(locale.KeyAddDish) + " · " + t.Cell(cell)))
	b.WriteString("\n\n")
	b.WriteString(t.T(locale.KeyInputCustom))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(t.T(locale.KeySelectFromLibrary))
	b.WriteString("\n")
	for i, d := range board.Presets() {
		line := "  " + board.PresetName(d, m.state.Lang)
		if m.presetSel == i+1 {
			line = selectedStyle.Render("> " + board.PresetName(d, m.state.Lang))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return dialogStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) viewRemove(t locale.Resolver) string {
	var b strings.Builder
	b.WriteString(selectedStyle.Render(t.T(locale.KeyRemove) + " · " + t.Cell(m.cursor)))
	b.WriteString("\n")
	for i, d := range m.state.Plan.Dishes(m.cursor.Day, m.cursor.Meal) {
		line := "  " + d.DisplayName(m.state.Lang)
		if i == m.removeSel {
			line = selectedStyle.Render("> " + d.DisplayName(m.state.Lang))
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return dialogStyle.Render(b.String())
}

func (m Model) helpLine(t locale.Resolver) string {
	switch m.screen {
	case screenDialog:
		return "enter " + t.T(locale.KeySave) + " · tab/↑↓ " + t.T(locale.KeySelectFromLibrary) + " · esc " + t.T(locale.KeyCancel)
	case screenRemove:
		return "↑↓ · enter " + t.T(locale.KeyRemove) + " · esc " + t.T(locale.KeyCancel)
	}
	return "←↑↓→ · enter " + t.T(locale.KeyAddDish) + " · x " + t.T(locale.KeyRemove) +
		" · c " + t.T(locale.KeyClear) + " · t " + t.T(locale.KeyLanguage) +
		" · e " + t.T(locale.KeyExport) + " · q"
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
