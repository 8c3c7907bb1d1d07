package export

import (
	"time"

	"meal-board/internal/board"
	"meal-board/internal/locale"
)

// Column is one day of the print layout.
type Column struct {
	Header string
	// Meals holds the display names of each meal's dishes, in board order.
	Meals [3][]string
}

// Region is the off-screen print layout of a board: every label is already
// translated and every dish name resolved for the active language. A nil
// *Region stands for a layout that was never built.
type Region struct {
	Title    string
	Subtitle string
	Brand    string
	Corner   string
	Footer   string
	Meals    [3]string
	Days     [7]Column
}

// Layout builds the print region of plan in lang. now feeds the month/year
// caption under the title.
func Layout(plan board.Plan, lang board.Lang, now time.Time) *Region {
	t := locale.For(lang)
	r := &Region{
		Title:    t.T(locale.KeyTitle),
		Subtitle: t.MonthYear(now),
		Brand:    t.T(locale.KeyBrand),
		Corner:   t.T(locale.KeyCorner),
		Footer:   t.T(locale.KeyFooter),
	}
	for _, meal := range board.Meals() {
		r.Meals[meal] = t.Meal(meal)
	}
	for _, day := range board.Days() {
		col := Column{Header: t.Day(day)}
		for _, meal := range board.Meals() {
			dishes := plan.Dishes(day, meal)
			names := make([]string, 0, len(dishes))
			for _, d := range dishes {
				names = append(names, d.DisplayName(t.Lang()))
			}
			col.Meals[meal] = names
		}
		r.Days[day] = col
	}
	return r
}

// DishCount returns the number of dish entries laid out in the region.
func (r *Region) DishCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, col := range r.Days {
		for _, names := range col.Meals {
			n += len(names)
		}
	}
	return n
}
