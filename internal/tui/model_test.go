package tui

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/export"

	tea "github.com/charmbracelet/bubbletea"
)

type whiteRenderer struct{}

func (whiteRenderer) Render(ctx context.Context, region *export.Region, opts export.RenderOptions) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img, nil
}

var fixedNow = time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)

func newTestModel(t *testing.T, lang board.Lang, opts ...Option) (Model, export.DirSink) {
	t.Helper()
	sink := export.DirSink{Dir: t.TempDir()}
	clock := func() time.Time { return fixedNow }
	exporter := export.NewExporter(whiteRenderer{}, nil, export.WithClock(clock))
	return New(exporter, sink, lang, append([]Option{WithClock(clock)}, opts...)...), sink
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(Model)
	}
	return m, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestCursorWraps(t *testing.T) {
	m, _ := newTestModel(t, board.English)

	m, _ = press(t, m, "left", "up")
	if m.cursor.Day != board.Sunday || m.cursor.Meal != board.Dinner {
		t.Fatalf("Expected cursor to wrap to Sunday/Dinner, got %s", m.cursor)
	}
	m, _ = press(t, m, "l", "j")
	if m.cursor.Day != board.Monday || m.cursor.Meal != board.Breakfast {
		t.Fatalf("Expected cursor to wrap back to Monday/Breakfast, got %s", m.cursor)
	}
}

func TestAddCustomDish(t *testing.T) {
	var changes int
	m, _ := newTestModel(t, board.English, WithOnChange(func(board.State) { changes++ }))

	m, _ = press(t, m, "right", "down", "enter")
	if m.screen != screenDialog || m.state.Active == nil {
		t.Fatal("Expected the add dialog to open on the cursor cell")
	}
	if *m.state.Active != (board.Cell{Day: board.Tuesday, Meal: board.Lunch}) {
		t.Errorf("Unexpected active cell %s", m.state.Active)
	}

	m = typeText(t, m, "Pho")
	m, _ = press(t, m, "enter")

	if m.screen != screenBoard || m.state.Active != nil {
		t.Error("Expected the dialog to close after saving")
	}
	dishes := m.state.Plan.Dishes(board.Tuesday, board.Lunch)
	if len(dishes) != 1 || dishes[0].NameEn != "Pho" || dishes[0].NameZh != "" {
		t.Fatalf("Expected one English dish, got %+v", dishes)
	}
	if changes != 2 {
		t.Errorf("Expected 2 state changes (open, submit), got %d", changes)
	}
}

func TestLongDishNameIsKept(t *testing.T) {
	m, _ := newTestModel(t, board.English)
	name := strings.Repeat("Slow roasted tomato soup ", 5)

	m, _ = press(t, m, "enter")
	m = typeText(t, m, name)
	m, _ = press(t, m, "enter")

	dishes := m.state.Plan.Dishes(board.Monday, board.Breakfast)
	if len(dishes) != 1 {
		t.Fatalf("Expected 1 dish, got %d", len(dishes))
	}
	if dishes[0].NameEn != name {
		t.Errorf("Expected the full %d-rune name, got %d runes", len([]rune(name)), len([]rune(dishes[0].NameEn)))
	}
}

func TestBlankDishKeepsDialogOpen(t *testing.T) {
	m, _ := newTestModel(t, board.English)
	m, _ = press(t, m, "enter")
	m = typeText(t, m, "   ")
	m, _ = press(t, m, "enter")

	if m.screen != screenDialog || m.state.Active == nil {
		t.Error("Expected the dialog to stay open for a blank name")
	}
	if !m.state.Plan.IsEmpty() {
		t.Error("Expected no dish to be added")
	}

	m, _ = press(t, m, "esc")
	if m.screen != screenBoard || m.state.Active != nil {
		t.Error("Expected esc to close the dialog")
	}
}

func TestAddPreset(t *testing.T) {
	m, _ := newTestModel(t, board.Chinese)
	m, _ = press(t, m, "enter", "tab", "tab", "enter")

	dishes := m.state.Plan.Dishes(board.Monday, board.Breakfast)
	if len(dishes) != 1 {
		t.Fatalf("Expected 1 dish, got %d", len(dishes))
	}
	if dishes[0].NameZh != "宫保鸡丁" || dishes[0].NameEn != "" {
		t.Errorf("Expected the Chinese preset name only, got %+v", dishes[0])
	}
}

func TestRemoveDish(t *testing.T) {
	s := board.NewState(board.English)
	s.Plan = board.AddDish(s.Plan, board.Monday, board.Breakfast, "Eggs", board.English)
	s.Plan = board.AddDish(s.Plan, board.Monday, board.Breakfast, "Toast", board.English)
	m, _ := newTestModel(t, board.English, WithState(s))

	m, _ = press(t, m, "x", "down", "enter")
	dishes := m.state.Plan.Dishes(board.Monday, board.Breakfast)
	if len(dishes) != 1 || dishes[0].NameEn != "Eggs" {
		t.Fatalf("Expected only Eggs to remain, got %+v", dishes)
	}
	if m.screen != screenRemove || m.removeSel != 0 {
		t.Errorf("Expected selection to clamp to the last dish, got screen=%d sel=%d", m.screen, m.removeSel)
	}

	m, _ = press(t, m, "enter")
	if !m.state.Plan.IsEmpty() || m.screen != screenBoard {
		t.Error("Expected an empty plan and the board screen")
	}

	m, _ = press(t, m, "x")
	if m.screen != screenBoard {
		t.Error("Expected remove mode not to open on an empty cell")
	}
}

func TestResetAndToggleLang(t *testing.T) {
	s := board.NewState(board.English)
	s.Plan = board.AddDish(s.Plan, board.Friday, board.Dinner, "Pizza", board.English)
	m, _ := newTestModel(t, board.English, WithState(s))

	m, _ = press(t, m, "t")
	if m.state.Lang != board.Chinese {
		t.Fatalf("Expected zh after toggle, got %s", m.state.Lang)
	}
	if !strings.Contains(m.View(), "Pizza") {
		t.Error("Expected the English-only dish to fall back in the zh view")
	}

	m, _ = press(t, m, "c")
	if !m.state.Plan.IsEmpty() {
		t.Error("Expected reset to empty the plan")
	}
	if m.state.Lang != board.Chinese {
		t.Error("Expected reset to keep the language")
	}
}

func TestExport(t *testing.T) {
	m, sink := newTestModel(t, board.English)

	m, cmd := press(t, m, "e")
	if cmd == nil || m.exporting != 1 {
		t.Fatal("Expected an export command")
	}
	m, second := press(t, m, "e")
	if second == nil || m.exporting != 2 {
		t.Fatal("Expected a second independent export while one is running")
	}

	msg := cmd()
	done, ok := msg.(exportDoneMsg)
	if !ok {
		t.Fatalf("Expected exportDoneMsg, got %T", msg)
	}
	if done.err != nil {
		t.Fatalf("Export failed: %v", done.err)
	}

	next, _ := m.Update(done)
	m = next.(Model)
	if m.exporting != 1 {
		t.Errorf("Expected one export still running, got %d", m.exporting)
	}
	want := "meal-plan-1792143000000.jpg"
	if !strings.Contains(m.status, want) {
		t.Errorf("Expected status to name %s, got %q", want, m.status)
	}
	if _, err := os.Stat(filepath.Join(sink.Dir, want)); err != nil {
		t.Errorf("Expected export file on disk: %v", err)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, board.English)
	if _, cmd := press(t, m, "q"); cmd == nil {
		t.Error("Expected q to quit on the board screen")
	}

	m, _ = press(t, m, "enter")
	m, _ = press(t, m, "q")
	if m.input.Value() != "q" {
		t.Errorf("Expected q to be typed in the dialog, got %q", m.input.Value())
	}
	if _, cmd := press(t, m, "ctrl+c"); cmd == nil {
		t.Error("Expected ctrl+c to quit from the dialog")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Soup", 10); got != "Soup" {
		t.Errorf("Expected Soup, got %s", got)
	}
	got := truncate("Slow roasted tomato soup", 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("Unexpected truncation %q", got)
	}
}
