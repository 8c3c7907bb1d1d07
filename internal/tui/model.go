// Package tui is the interactive terminal board: a 7x3 grid with an add-dish
// dialog, the preset library, removal, reset, language toggle and export.
package tui

import (
	"context"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/export"
	"meal-board/internal/locale"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type screen int

const (
	screenBoard  screen = iota // grid navigation
	screenDialog               // add-dish dialog of the active cell
	screenRemove               // pick a dish of the cursor cell to remove
)

const exportTimeout = 30 * time.Second

type exportDoneMsg struct {
	result export.Result
	err    error
}

// Option customizes a Model.
type Option func(*Model)

// WithState starts the board from s instead of an empty plan.
func WithState(s board.State) Option {
	return func(m *Model) { m.state = s }
}

// WithClock replaces time.Now for the export header.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithOnChange registers a callback run after every state change.
func WithOnChange(fn func(board.State)) Option {
	return func(m *Model) { m.onChange = fn }
}

// Model is the bubbletea model of the terminal board.
type Model struct {
	state  board.State
	cursor board.Cell
	screen screen

	input     textinput.Model
	presetSel int // 0 is the text input, 1..n the presets
	removeSel int

	exporter  *export.Exporter
	sink      export.Sink
	exporting int // renders in flight
	status    string
	err       error

	now      func() time.Time
	onChange func(board.State)
	width    int
}

// New creates a board that exports through exporter into sink.
func New(exporter *export.Exporter, sink export.Sink, lang board.Lang, opts ...Option) Model {
	in := textinput.New()
	in.CharLimit = 0 // no limit
	in.Width = 40

	m := Model{
		state:    board.NewState(lang),
		input:    in,
		exporter: exporter,
		sink:     sink,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.input.Placeholder = m.t().T(locale.KeyDishPlaceholder)
	return m
}

// State returns the current board state.
func (m Model) State() board.State { return m.state }

func (m Model) t() locale.Resolver { return locale.For(m.state.Lang) }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case exportDoneMsg:
		if m.exporting > 0 {
			m.exporting--
		}
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		if !msg.result.Skipped() {
			m.status = m.t().T(locale.KeyExported) + " " + msg.result.Filename
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case screenDialog:
			return m.updateDialog(msg)
		case screenRemove:
			return m.updateRemove(msg)
		default:
			return m.updateBoard(msg)
		}
	}
	return m, nil
}

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		m.cursor.Day = (m.cursor.Day + 6) % 7
	case "right", "l":
		m.cursor.Day = (m.cursor.Day + 1) % 7
	case "up", "k":
		m.cursor.Meal = (m.cursor.Meal + 2) % 3
	case "down", "j":
		m.cursor.Meal = (m.cursor.Meal + 1) % 3
	case "enter", "a":
		m.setState(m.state.OpenCell(m.cursor))
		m.screen = screenDialog
		m.presetSel = 0
		m.input.SetValue("")
		cmd := m.input.Focus()
		return m, cmd
	case "x", "delete":
		if len(m.state.Plan.Dishes(m.cursor.Day, m.cursor.Meal)) > 0 {
			m.screen = screenRemove
			m.removeSel = 0
		}
	case "c":
		m.setState(m.state.Reset())
		m.status = m.t().T(locale.KeyCleared)
	case "t":
		m.setState(m.state.ToggleLang())
		m.input.Placeholder = m.t().T(locale.KeyDishPlaceholder)
	case "e":
		m.exporting++
		m.err = nil
		m.status = m.t().T(locale.KeyExporting)
		return m, m.exportCmd()
	}
	return m, nil
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	presets := board.Presets()
	switch msg.String() {
	case "esc":
		m.setState(m.state.CloseCell())
		m.screen = screenBoard
		m.input.Blur()
		return m, nil
	case "tab", "down":
		m.presetSel = (m.presetSel + 1) % (len(presets) + 1)
		cmd := m.syncFocus()
		return m, cmd
	case "shift+tab", "up":
		m.presetSel = (m.presetSel + len(presets)) % (len(presets) + 1)
		cmd := m.syncFocus()
		return m, cmd
	case "enter":
		before := m.state
		if m.presetSel > 0 {
			m.setState(m.state.AddPreset(presets[m.presetSel-1].ID))
		} else {
			m.setState(m.state.SubmitDish(m.input.Value()))
		}
		if m.state.Active == nil && before.Active != nil {
			m.status = m.t().T(locale.KeyAdded)
			m.screen = screenBoard
			m.input.Blur()
			m.input.SetValue("")
		}
		return m, nil
	}
	if m.presetSel != 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) syncFocus() tea.Cmd {
	if m.presetSel == 0 {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m Model) updateRemove(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	dishes := m.state.Plan.Dishes(m.cursor.Day, m.cursor.Meal)
	switch msg.String() {
	case "esc", "q":
		m.screen = screenBoard
	case "up", "k":
		if m.removeSel > 0 {
			m.removeSel--
		}
	case "down", "j":
		if m.removeSel < len(dishes)-1 {
			m.removeSel++
		}
	case "enter", "x":
		if m.removeSel < len(dishes) {
			m.setState(m.state.Remove(m.cursor, dishes[m.removeSel].ID))
			m.status = m.t().T(locale.KeyRemoved)
		}
		remaining := len(m.state.Plan.Dishes(m.cursor.Day, m.cursor.Meal))
		if remaining == 0 {
			m.screen = screenBoard
		} else if m.removeSel >= remaining {
			m.removeSel = remaining - 1
		}
	}
	return m, nil
}

func (m *Model) setState(s board.State) {
	m.state = s
	if m.onChange != nil {
		m.onChange(s)
	}
}

// exportCmd snapshots the plan now and renders it off the event loop. Each
// call is an independent render.
func (m Model) exportCmd() tea.Cmd {
	region := export.Layout(m.state.Plan, m.state.Lang, m.now())
	exporter, sink := m.exporter, m.sink
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		res, err := exporter.ExportTo(ctx, region, sink)
		return exportDoneMsg{result: res, err: err}
	}
}
