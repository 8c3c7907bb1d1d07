package board

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// newDishID generates dish ids. Ids are never reused within a process.
var newDishID = uuid.NewString

type dayMeals [mealCount][]Dish

// Plan is an immutable snapshot of the weekly board. Mutations return a new
// Plan that shares every untouched day with the previous snapshot. The zero
// value is an empty board.
type Plan struct {
	days [dayCount]*dayMeals
}

// NewPlan returns the all-empty board.
func NewPlan() Plan {
	var p Plan
	for i := range p.days {
		p.days[i] = &dayMeals{}
	}
	return p
}

// ResetPlan replaces any board with the initial all-empty structure.
func ResetPlan() Plan {
	return NewPlan()
}

// Dishes returns a copy of the ordered dish list at (day, meal). The result is
// never nil for a valid cell.
func (p Plan) Dishes(day Day, meal Meal) []Dish {
	if !day.Valid() || !meal.Valid() {
		return nil
	}
	dm := p.days[day]
	if dm == nil || len(dm[meal]) == 0 {
		return []Dish{}
	}
	return slices.Clone(dm[meal])
}

// Count returns the number of dishes on the whole board.
func (p Plan) Count() int {
	n := 0
	for _, dm := range p.days {
		if dm == nil {
			continue
		}
		for _, dishes := range dm {
			n += len(dishes)
		}
	}
	return n
}

func (p Plan) IsEmpty() bool { return p.Count() == 0 }

// Equal reports structural equality of two boards.
func (p Plan) Equal(o Plan) bool {
	for _, day := range Days() {
		for _, meal := range Meals() {
			if !slices.Equal(p.Dishes(day, meal), o.Dishes(day, meal)) {
				return false
			}
		}
	}
	return true
}

// AddDish appends a new dish to (day, meal). The name is stored in the field
// of lang and the other name is left empty. A name that is blank after
// trimming leaves the board unchanged, as does an invalid cell.
func AddDish(p Plan, day Day, meal Meal, rawName string, lang Lang) Plan {
	if strings.TrimSpace(rawName) == "" || !day.Valid() || !meal.Valid() {
		return p
	}
	if !lang.Valid() {
		lang = DefaultLang
	}
	dish := Dish{ID: newDishID()}
	if lang == English {
		dish.NameEn = rawName
	} else {
		dish.NameZh = rawName
	}
	return p.withCell(day, meal, append(p.Dishes(day, meal), dish))
}

// RemoveDish drops the dish with id from (day, meal). Unknown ids are a no-op.
func RemoveDish(p Plan, day Day, meal Meal, id string) Plan {
	dishes := p.Dishes(day, meal)
	idx := slices.IndexFunc(dishes, func(d Dish) bool { return d.ID == id })
	if idx < 0 {
		return p
	}
	return p.withCell(day, meal, slices.Delete(dishes, idx, idx+1))
}

// withCell copies the touched day and swaps in dishes; all other days keep
// their pointers.
func (p Plan) withCell(day Day, meal Meal, dishes []Dish) Plan {
	var dm dayMeals
	if old := p.days[day]; old != nil {
		dm = *old
	}
	dm[meal] = dishes
	next := p
	next.days[day] = &dm
	return next
}

type planJSON map[Day]map[Meal][]Dish

func (p Plan) MarshalJSON() ([]byte, error) {
	out := make(planJSON, dayCount)
	for _, day := range Days() {
		meals := make(map[Meal][]Dish, mealCount)
		for _, meal := range Meals() {
			meals[meal] = p.Dishes(day, meal)
		}
		out[day] = meals
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a board; days or meals missing from the input come
// back as empty lists and unknown keys are rejected.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var in planJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode plan: %w", err)
	}
	next := NewPlan()
	for day, meals := range in {
		for meal, dishes := range meals {
			if len(dishes) > 0 {
				next = next.withCell(day, meal, slices.Clone(dishes))
			}
		}
	}
	*p = next
	return nil
}
