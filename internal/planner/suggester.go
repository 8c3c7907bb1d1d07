// Package planner suggests dishes for a board cell with a language model.
package planner

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/llm"
)

//go:embed suggest_prompt.md
var suggestPrompt string

var suggestTmpl = template.Must(template.New("Suggester").Parse(suggestPrompt))

// DefaultSuggestions is how many dishes Suggest asks for.
const DefaultSuggestions = 4

// ErrNoSuggestions is returned when the model answers with nothing usable.
var ErrNoSuggestions = errors.New("no dish suggestions returned")

const agentName = "Suggester"

type suggestPromptData struct {
	Count    int
	Day      string
	Meal     string
	Language string
	Planned  []string
}

type suggestResponse struct {
	Dishes []string `json:"dishes"`
}

// SuggestResult holds the suggested dish names and execution metadata.
type SuggestResult struct {
	Dishes []string
	Meta   llm.AgentMeta
}

// Suggester proposes dishes that are not yet on the board.
type Suggester struct {
	textGen llm.TextGenerator
	count   int
}

// NewSuggester creates a new Suggester instance.
func NewSuggester(textGen llm.TextGenerator) *Suggester {
	return &Suggester{textGen: textGen, count: DefaultSuggestions}
}

// Suggest asks for dishes for cell, named in lang. Dishes already planned
// anywhere in the week are excluded from the result.
func (s *Suggester) Suggest(ctx context.Context, plan board.Plan, cell board.Cell, lang board.Lang) (SuggestResult, error) {
	if !cell.Valid() {
		return SuggestResult{}, fmt.Errorf("invalid cell %s", cell)
	}
	start := time.Now()

	planned := plannedNames(plan, lang)
	prompt, err := buildSuggestPrompt(suggestPromptData{
		Count:    s.count,
		Day:      dayName(cell.Day),
		Meal:     cell.Meal.Key(),
		Language: languageName(lang),
		Planned:  planned,
	})
	if err != nil {
		return SuggestResult{}, err
	}

	resp, err := s.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return SuggestResult{}, fmt.Errorf("failed to generate suggestions: %w", err)
	}
	meta := llm.AgentMeta{AgentName: agentName, Usage: resp.Usage, Latency: time.Since(start)}

	var parsed suggestResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		llm.Reject(s.textGen, prompt)
		return SuggestResult{Meta: meta}, fmt.Errorf("failed to parse suggestions %w, :%s", err, resp.Content)
	}

	dishes := filterSuggestions(parsed.Dishes, planned, s.count)
	if len(dishes) == 0 {
		llm.Reject(s.textGen, prompt)
		return SuggestResult{Meta: meta}, ErrNoSuggestions
	}
	return SuggestResult{Dishes: dishes, Meta: meta}, nil
}

func buildSuggestPrompt(data suggestPromptData) (string, error) {
	var buf bytes.Buffer
	if err := suggestTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build suggestion prompt: %w", err)
	}
	return buf.String(), nil
}

// filterSuggestions trims names and drops blanks, duplicates and dishes in
// planned, keeping at most max entries.
func filterSuggestions(names, planned []string, max int) []string {
	seen := make(map[string]bool, len(planned)+len(names))
	for _, p := range planned {
		seen[strings.ToLower(p)] = true
	}
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
		if len(out) == max {
			break
		}
	}
	return out
}

func plannedNames(plan board.Plan, lang board.Lang) []string {
	var names []string
	for _, d := range board.Days() {
		for _, m := range board.Meals() {
			for _, dish := range plan.Dishes(d, m) {
				names = append(names, strings.TrimSpace(dish.DisplayName(lang)))
			}
		}
	}
	return names
}

func dayName(d board.Day) string {
	s := strings.ToLower(d.String())
	return strings.ToUpper(s[:1]) + s[1:]
}

func languageName(l board.Lang) string {
	if l == board.Chinese {
		return "Simplified Chinese"
	}
	return "English"
}
