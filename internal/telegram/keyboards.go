package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"meal-board/internal/board"
	"meal-board/internal/locale"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data is limited to 64 bytes, so actions carry compact arguments:
// cells as day and meal indexes, suggestions as an index into the chat's
// pending list.
const (
	actionBoard     = "board"
	actionCell      = "cell"
	actionPreset    = "preset"
	actionRemove    = "rm"
	actionSuggest   = "sug"
	actionSuggested = "sugadd"
	actionCancel    = "cancel"
	actionClear     = "clear"
	actionLang      = "lang"
	actionExport    = "export"
)

type callback struct {
	action string
	args   []string
}

func encodeCallback(action string, args ...string) string {
	return strings.Join(append([]string{action}, args...), ":")
}

func decodeCallback(data string) callback {
	parts := strings.Split(data, ":")
	return callback{action: parts[0], args: parts[1:]}
}

func cellArgs(c board.Cell) []string {
	return []string{strconv.Itoa(int(c.Day)), strconv.Itoa(int(c.Meal))}
}

// cell parses the day and meal indexes at the start of the arguments.
func (c callback) cell() (board.Cell, bool) {
	if len(c.args) < 2 {
		return board.Cell{}, false
	}
	d, err1 := strconv.Atoi(c.args[0])
	m, err2 := strconv.Atoi(c.args[1])
	cell := board.Cell{Day: board.Day(d), Meal: board.Meal(m)}
	if err1 != nil || err2 != nil || !cell.Valid() {
		return board.Cell{}, false
	}
	return cell, true
}

func (c callback) arg(i int) string {
	if i < len(c.args) {
		return c.args[i]
	}
	return ""
}

// boardKeyboard has one row per day with a button per meal, followed by the
// language, clear and export controls.
func boardKeyboard(s board.State) tgbotapi.InlineKeyboardMarkup {
	t := locale.For(s.Lang)
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range board.Days() {
		var row []tgbotapi.InlineKeyboardButton
		for _, m := range board.Meals() {
			label := fmt.Sprintf("%s · %s", t.DayAbbrev(d), t.Meal(m))
			if n := len(s.Plan.Dishes(d, m)); n > 0 {
				label = fmt.Sprintf("%s (%d)", label, n)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, encodeCallback(actionCell, cellArgs(board.Cell{Day: d, Meal: m})...)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🌐 "+t.T(locale.KeyLanguage), actionLang),
		tgbotapi.NewInlineKeyboardButtonData("🗑 "+t.T(locale.KeyClear), actionClear),
		tgbotapi.NewInlineKeyboardButtonData("🖼 "+t.T(locale.KeyExport), actionExport),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// cellKeyboard is the add-dish dialog of the active cell: the preset
// library, suggestions, a remove button per dish and cancel.
func cellKeyboard(s board.State, suggestions bool) tgbotapi.InlineKeyboardMarkup {
	t := locale.For(s.Lang)
	var rows [][]tgbotapi.InlineKeyboardButton

	presets := board.Presets()
	for i := 0; i < len(presets); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for _, p := range presets[i:min(i+2, len(presets))] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("＋ "+board.PresetName(p, s.Lang), encodeCallback(actionPreset, p.ID)))
		}
		rows = append(rows, row)
	}

	if suggestions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✨ "+t.T(locale.KeySuggest), actionSuggest),
		))
	}

	if s.Active != nil {
		for _, d := range s.Plan.Dishes(s.Active.Day, s.Active.Meal) {
			args := append(cellArgs(*s.Active), d.ID)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✖ "+d.DisplayName(s.Lang), encodeCallback(actionRemove, args...)),
			))
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("↩ "+t.T(locale.KeyCancel), actionCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// suggestionKeyboard offers each suggested dish as a quick-add button.
func suggestionKeyboard(s board.State, dishes []string) tgbotapi.InlineKeyboardMarkup {
	t := locale.For(s.Lang)
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, name := range dishes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("＋ "+name, encodeCallback(actionSuggested, strconv.Itoa(i))),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("↩ "+t.T(locale.KeyCancel), actionCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
