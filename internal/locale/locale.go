// Package locale resolves UI strings for the two board languages.
//
// Tables are flat key/value YAML files embedded at build time. A key missing
// from the active table resolves to the key itself, never to an error.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"meal-board/internal/board"

	"gopkg.in/yaml.v3"
)

// Key names a known UI string. Translate accepts any string; these constants
// cover the keys the catalogs define.
type Key = string

const (
	KeyTitle             Key = "title"
	KeyExport            Key = "export"
	KeyAddDish           Key = "addDish"
	KeyInputCustom       Key = "inputCustom"
	KeyDishPlaceholder   Key = "dishPlaceholder"
	KeySave              Key = "save"
	KeySelectFromLibrary Key = "selectFromLibrary"
	KeyClear             Key = "clear"
	KeyLanguage          Key = "language"
	KeyBrand             Key = "brand"
	KeyCorner            Key = "corner"
	KeyFooter            Key = "footer"
	KeyWelcome           Key = "welcome"
	KeyEmpty             Key = "empty"
	KeyCellPrompt        Key = "cellPrompt"
	KeyAdded             Key = "added"
	KeyRemoved           Key = "removed"
	KeyCleared           Key = "cleared"
	KeyCancel            Key = "cancel"
	KeyRemove            Key = "remove"
	KeyExporting         Key = "exporting"
	KeyExported          Key = "exported"
	KeyDownloadLink      Key = "downloadLink"
	KeyExportFailed      Key = "exportFailed"
	KeyClipFailed        Key = "clipFailed"
	KeySuggest           Key = "suggest"
	KeySuggestFailed     Key = "suggestFailed"
	KeySuggestDisabled   Key = "suggestDisabled"
	KeyNoActiveCell      Key = "noActiveCell"
	KeyHelp              Key = "help"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

var tables = mustLoad(embeddedLocales)

func mustLoad(fsys fs.FS) map[board.Lang]map[string]string {
	t, err := Load(fsys)
	if err != nil {
		panic(fmt.Sprintf("locale: %v", err))
	}
	return t
}

// Load reads one table per supported language from locales/<lang>.yaml.
func Load(fsys fs.FS) (map[board.Lang]map[string]string, error) {
	out := make(map[board.Lang]map[string]string, 2)
	for _, lang := range []board.Lang{board.English, board.Chinese} {
		name := path.Join("locales", string(lang)+".yaml")
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}
		table := map[string]string{}
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}
		out[lang] = table
	}
	return out, nil
}

// Resolver translates keys for one language. The zero value uses the default
// language.
type Resolver struct {
	lang board.Lang
}

// For returns the resolver of lang, or of the default language if lang is not
// supported.
func For(lang board.Lang) Resolver {
	if !lang.Valid() {
		lang = board.DefaultLang
	}
	return Resolver{lang: lang}
}

func (r Resolver) Lang() board.Lang {
	if !r.lang.Valid() {
		return board.DefaultLang
	}
	return r.lang
}

// Translate looks key up in the active table and returns key unchanged when
// it is absent.
func (r Resolver) Translate(key string) string {
	if v, ok := tables[r.Lang()][key]; ok && v != "" {
		return v
	}
	return key
}

// T is shorthand for Translate.
func (r Resolver) T(key string) string { return r.Translate(key) }

func (r Resolver) Day(d board.Day) string {
	if !d.Valid() {
		return d.String()
	}
	return r.Translate(d.Short())
}

// DayAbbrev is the small caption above a day header: the English three letter
// abbreviation, or the translated day in Chinese.
func (r Resolver) DayAbbrev(d board.Day) string {
	if !d.Valid() {
		return d.String()
	}
	if r.Lang() == board.English {
		return d.String()[:3]
	}
	return r.Day(d)
}

func (r Resolver) Meal(m board.Meal) string {
	if !m.Valid() {
		return m.String()
	}
	return r.Translate(m.Key())
}

// MonthYear renders the export header date: "January 2026" or "2026年1月".
func (r Resolver) MonthYear(t time.Time) string {
	if r.Lang() == board.Chinese {
		return fmt.Sprintf("%d年%d月", t.Year(), int(t.Month()))
	}
	return t.Format("January 2006")
}

// Cell renders a cell heading like "Mon - Breakfast".
func (r Resolver) Cell(c board.Cell) string {
	return r.Day(c.Day) + " - " + r.Meal(c.Meal)
}

// Keys lists every key of the active table.
func (r Resolver) Keys() []string {
	t := tables[r.Lang()]
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	return keys
}

func trimmedLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
