// Package board holds the weekly meal board: a fixed 7-day by 3-meal grid of
// ordered dish lists, the reducers that mutate it, and the preset dish library.
package board

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownDay  = errors.New("unknown day")
	ErrUnknownMeal = errors.New("unknown meal")
	ErrUnknownLang = errors.New("unknown language")
)

// Day is one of the seven board columns, Monday first.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const dayCount = 7

var dayNames = [dayCount]string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// Days returns every day in board order.
func Days() []Day {
	return []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func (d Day) Valid() bool { return d >= Monday && d <= Sunday }

func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

// Short returns the lowercase three letter key ("mon", "tue", ...) used by
// the locale tables.
func (d Day) Short() string {
	return strings.ToLower(d.String()[:3])
}

func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDay, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDay accepts the full upper-case name, any casing of it, or the three
// letter short form.
func ParseDay(s string) (Day, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range dayNames {
		if v == name || (len(v) == 3 && strings.HasPrefix(name, v)) {
			return Day(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDay, s)
}

// Meal is one of the three board rows.
type Meal int

const (
	Breakfast Meal = iota
	Lunch
	Dinner
)

const mealCount = 3

var mealNames = [mealCount]string{"BREAKFAST", "LUNCH", "DINNER"}

// Meals returns every meal in board order.
func Meals() []Meal {
	return []Meal{Breakfast, Lunch, Dinner}
}

func (m Meal) Valid() bool { return m >= Breakfast && m <= Dinner }

func (m Meal) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Meal(%d)", int(m))
	}
	return mealNames[m]
}

// Key is the lowercase locale key of the meal ("breakfast", ...).
func (m Meal) Key() string {
	return strings.ToLower(m.String())
}

func (m Meal) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMeal, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Meal) UnmarshalText(text []byte) error {
	parsed, err := ParseMeal(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func ParseMeal(s string) (Meal, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range mealNames {
		if v == name {
			return Meal(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMeal, s)
}

// Lang is the active display language of a board.
type Lang string

const (
	English Lang = "en"
	Chinese Lang = "zh"

	DefaultLang = Chinese
)

func (l Lang) Valid() bool { return l == English || l == Chinese }

// Other returns the language a toggle switches to.
func (l Lang) Other() Lang {
	if l == English {
		return Chinese
	}
	return English
}

func ParseLang(s string) (Lang, error) {
	switch Lang(strings.ToLower(strings.TrimSpace(s))) {
	case English:
		return English, nil
	case Chinese:
		return Chinese, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLang, s)
}

// Dish is one entry of a cell. Only the name of the language that was active
// when the dish was added is populated.
type Dish struct {
	ID     string `json:"id" yaml:"id"`
	NameEn string `json:"nameEn" yaml:"nameEn"`
	NameZh string `json:"nameZh" yaml:"nameZh"`
}

// DisplayName returns the name in lang, falling back to the other language
// when that field is blank.
func (d Dish) DisplayName(lang Lang) string {
	if lang == Chinese {
		if d.NameZh != "" {
			return d.NameZh
		}
		return d.NameEn
	}
	if d.NameEn != "" {
		return d.NameEn
	}
	return d.NameZh
}

// Cell addresses one (day, meal) slot of the board.
type Cell struct {
	Day  Day  `json:"day"`
	Meal Meal `json:"meal"`
}

func (c Cell) Valid() bool { return c.Day.Valid() && c.Meal.Valid() }

func (c Cell) String() string {
	return c.Day.String() + "/" + c.Meal.String()
}
