package board

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// PlanFile is the hand-written YAML form of a board:
//
//	lang: en
//	plan:
//	  MONDAY:
//	    BREAKFAST: [Avocado Toast]
//	    DINNER: [Mapo Tofu, Rice]
type PlanFile struct {
	Lang string                         `yaml:"lang"`
	Plan map[string]map[string][]string `yaml:"plan"`
}

// LoadPlanFile reads a PlanFile and replays it through AddDish, so dishes get
// fresh ids and the same name rules as interactive adds. Dishes are added in
// board order, and in file order within a cell.
func LoadPlanFile(r io.Reader) (State, error) {
	var pf PlanFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil && err != io.EOF {
		return State{}, fmt.Errorf("failed to decode plan file: %w", err)
	}

	lang := DefaultLang
	if pf.Lang != "" {
		parsed, err := ParseLang(pf.Lang)
		if err != nil {
			return State{}, err
		}
		lang = parsed
	}

	cells := make(map[Cell][]string)
	for dayKey, meals := range pf.Plan {
		day, err := ParseDay(dayKey)
		if err != nil {
			return State{}, err
		}
		for mealKey, names := range meals {
			meal, err := ParseMeal(mealKey)
			if err != nil {
				return State{}, err
			}
			c := Cell{Day: day, Meal: meal}
			cells[c] = append(cells[c], names...)
		}
	}

	st := NewState(lang)
	for _, day := range Days() {
		for _, meal := range Meals() {
			for _, name := range cells[Cell{Day: day, Meal: meal}] {
				st.Plan = AddDish(st.Plan, day, meal, name, lang)
			}
		}
	}
	return st, nil
}

// WritePlanFile writes s as a PlanFile. Each dish is written under its
// display name in s.Lang, so loading the file back yields the same board in
// that language.
func WritePlanFile(w io.Writer, s State) error {
	pf := PlanFile{Lang: string(s.Lang), Plan: make(map[string]map[string][]string)}
	for _, day := range Days() {
		for _, meal := range Meals() {
			dishes := s.Plan.Dishes(day, meal)
			if len(dishes) == 0 {
				continue
			}
			meals, ok := pf.Plan[day.String()]
			if !ok {
				meals = make(map[string][]string)
				pf.Plan[day.String()] = meals
			}
			for _, d := range dishes {
				meals[meal.String()] = append(meals[meal.String()], d.DisplayName(s.Lang))
			}
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(pf); err != nil {
		return fmt.Errorf("failed to encode plan file: %w", err)
	}
	return enc.Close()
}
