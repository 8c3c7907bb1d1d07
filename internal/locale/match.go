package locale

import (
	"meal-board/internal/board"

	"golang.org/x/text/language"
)

var (
	supportedTags = []language.Tag{language.Chinese, language.English}
	matcher       = language.NewMatcher(supportedTags)
)

// ParseLang maps a BCP 47 tag such as "en-US", "zh-Hans" or a Telegram
// language_code to a board language. Tags that match neither language, and
// malformed tags, resolve to the default language.
func ParseLang(tag string) board.Lang {
	if lang, err := board.ParseLang(tag); err == nil {
		return lang
	}
	s := trimmedLower(tag)
	if s == "" {
		return board.DefaultLang
	}
	parsed, err := language.Parse(s)
	if err != nil {
		return board.DefaultLang
	}
	_, idx, conf := matcher.Match(parsed)
	if conf == language.No {
		return board.DefaultLang
	}
	if supportedTags[idx] == language.English {
		return board.English
	}
	return board.Chinese
}
