package board

// State is everything one board session owns: the plan, the active language
// and the cell targeted by the add-dish dialog (nil when the dialog is closed).
// Every method returns a new State and leaves the receiver untouched.
type State struct {
	Plan   Plan  `json:"plan"`
	Lang   Lang  `json:"lang"`
	Active *Cell `json:"active,omitempty"`
}

// NewState starts a session with an empty plan.
func NewState(lang Lang) State {
	if !lang.Valid() {
		lang = DefaultLang
	}
	return State{Plan: NewPlan(), Lang: lang}
}

func (s State) OpenCell(c Cell) State {
	if !c.Valid() {
		return s
	}
	s.Active = &c
	return s
}

func (s State) CloseCell() State {
	s.Active = nil
	return s
}

// SubmitDish adds rawName to the active cell and closes the dialog. With no
// active cell, or a blank name, the state is returned unchanged.
func (s State) SubmitDish(rawName string) State {
	if s.Active == nil {
		return s
	}
	next := AddDish(s.Plan, s.Active.Day, s.Active.Meal, rawName, s.Lang)
	if next.Count() == s.Plan.Count() {
		return s
	}
	s.Plan = next
	return s.CloseCell()
}

// AddPreset quick-adds a library dish, named in the active language, to the
// active cell.
func (s State) AddPreset(id string) State {
	d, ok := Preset(id)
	if !ok {
		return s
	}
	return s.SubmitDish(PresetName(d, s.Lang))
}

func (s State) Remove(c Cell, id string) State {
	s.Plan = RemoveDish(s.Plan, c.Day, c.Meal, id)
	return s
}

// Reset empties the plan. Language and dialog state are kept.
func (s State) Reset() State {
	s.Plan = ResetPlan()
	return s
}

func (s State) ToggleLang() State {
	return s.SetLang(s.Lang.Other())
}

func (s State) SetLang(l Lang) State {
	if l.Valid() {
		s.Lang = l
	}
	return s
}
