package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/config"
	"meal-board/internal/download"
	"meal-board/internal/export"
	"meal-board/internal/llm"
	"meal-board/internal/planner"
	"meal-board/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// --- Mocks ---

type MockAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (m *MockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *MockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *MockAPI) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// texts returns the text of every message and edit sent so far.
func (m *MockAPI) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.sent {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, v.Text)
		}
	}
	return out
}

func (m *MockAPI) last() string {
	t := m.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func (m *MockAPI) documents() []tgbotapi.DocumentConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tgbotapi.DocumentConfig
	for _, c := range m.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, region *export.Region, opts export.RenderOptions) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 24, 12)), nil
}

type MockTextGenerator struct {
	Response string
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	return llm.ContentResponse{Content: m.Response}, nil
}

const chatID = int64(100)

func newTestBot(t *testing.T, deps Deps) (*Bot, *MockAPI) {
	t.Helper()
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(session.NewMemoryStore(), time.Hour, board.English)
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewExporter(stubRenderer{}, nil)
	}
	api := &MockAPI{}
	cfg := &config.Config{AdminTelegramID: 1, TelegramAllowedUserIDs: []int64{7}}
	b := newBot(api, cfg, deps)
	b.now = func() time.Time { return time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC) }
	b.spawn = func(fn func()) { fn() }
	return b, api
}

func message(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 7, LanguageCode: "en-US"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func callbackQuery(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "q",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}
}

func state(t *testing.T, b *Bot) board.State {
	t.Helper()
	st, err := b.sessions.Load(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return st
}

// --- Tests ---

func TestAddDishFlow(t *testing.T) {
	b, api := newTestBot(t, Deps{})

	b.processMessage(message("/plan"))
	if !strings.Contains(api.last(), "Nothing planned yet.") {
		t.Errorf("Expected empty board, got %q", api.last())
	}

	b.processMessage(message("Avocado Toast"))
	if !strings.Contains(api.last(), "Pick a cell first") {
		t.Errorf("Expected a prompt to pick a cell, got %q", api.last())
	}

	b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(board.Cell{Day: board.Monday, Meal: board.Breakfast})...)))
	if st := state(t, b); st.Active == nil || *st.Active != (board.Cell{Day: board.Monday, Meal: board.Breakfast}) {
		t.Fatalf("Expected Monday breakfast to be active, got %+v", st.Active)
	}
	if !strings.Contains(api.last(), "Monday - Breakfast") {
		t.Errorf("Expected the cell dialog, got %q", api.last())
	}

	b.processMessage(message("Avocado Toast"))
	st := state(t, b)
	dishes := st.Plan.Dishes(board.Monday, board.Breakfast)
	if len(dishes) != 1 || dishes[0].NameEn != "Avocado Toast" || dishes[0].NameZh != "" {
		t.Fatalf("Expected one English dish, got %+v", dishes)
	}
	if st.Active != nil {
		t.Error("Expected the dialog to close after a successful add")
	}
	if !strings.Contains(api.last(), "*Added:* Avocado Toast") {
		t.Errorf("Expected add confirmation, got %q", api.last())
	}

	t.Run("ChineseFallsBackToEnglishName", func(t *testing.T) {
		b.processMessage(message("/lang"))
		if !strings.Contains(api.last(), "Avocado Toast") || !strings.Contains(api.last(), "早餐") {
			t.Errorf("Expected Chinese board with fallback name, got %q", api.last())
		}
	})

	t.Run("Remove", func(t *testing.T) {
		args := append(cellArgs(board.Cell{Day: board.Monday, Meal: board.Breakfast}), dishes[0].ID)
		b.handleCallbackQuery(callbackQuery(encodeCallback(actionRemove, args...)))
		if !state(t, b).Plan.IsEmpty() {
			t.Error("Expected dish to be removed")
		}
	})
}

func TestPresetAndClear(t *testing.T) {
	b, api := newTestBot(t, Deps{})

	b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(board.Cell{Day: board.Friday, Meal: board.Dinner})...)))
	b.handleCallbackQuery(callbackQuery(encodeCallback(actionPreset, "7")))

	dishes := state(t, b).Plan.Dishes(board.Friday, board.Dinner)
	if len(dishes) != 1 || dishes[0].NameEn != "Spaghetti Carbonara" {
		t.Fatalf("Expected the preset dish, got %+v", dishes)
	}

	b.processMessage(message("/clear"))
	if !state(t, b).Plan.IsEmpty() {
		t.Error("Expected the plan to be cleared")
	}
	if !strings.Contains(api.last(), "Plan cleared.") {
		t.Errorf("Expected clear confirmation, got %q", api.last())
	}
}

func TestExport(t *testing.T) {
	signer := download.NewSigner("s3cret", time.Minute)
	downloads := download.NewService(signer, download.NewCache(time.Hour), "https://board.example.com")
	archive := export.DirSink{Dir: t.TempDir()}
	b, api := newTestBot(t, Deps{Downloads: downloads, Archive: archive})

	b.processMessage(message("/export"))

	docs := api.documents()
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}
	file, ok := docs[0].File.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("Expected FileBytes, got %T", docs[0].File)
	}
	if !strings.HasPrefix(file.Name, "meal-plan-") || !strings.HasSuffix(file.Name, ".jpg") {
		t.Errorf("Unexpected filename %s", file.Name)
	}
	if !bytes.HasPrefix(file.Bytes, []byte{0xff, 0xd8}) {
		t.Error("Expected JPEG bytes")
	}
	if !strings.Contains(api.last(), "https://board.example.com/download?token=") {
		t.Errorf("Expected a download link, got %q", api.last())
	}
	if _, err := os.Stat(archive.Path(file.Name)); err != nil {
		t.Errorf("Expected the export to be archived: %v", err)
	}
}

func TestSuggestions(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		b, api := newTestBot(t, Deps{})
		b.handleCallbackQuery(callbackQuery(actionSuggest))
		if !strings.Contains(api.last(), "Suggestions are not configured.") {
			t.Errorf("Expected disabled notice, got %q", api.last())
		}
	})

	t.Run("PickSuggestion", func(t *testing.T) {
		gen := &MockTextGenerator{Response: `{"dishes": ["Miso Soup", "Congee"]}`}
		b, _ := newTestBot(t, Deps{Suggester: planner.NewSuggester(gen)})

		b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(board.Cell{Day: board.Sunday, Meal: board.Breakfast})...)))
		b.handleCallbackQuery(callbackQuery(actionSuggest))
		b.handleCallbackQuery(callbackQuery(encodeCallback(actionSuggested, "1")))

		dishes := state(t, b).Plan.Dishes(board.Sunday, board.Breakfast)
		if len(dishes) != 1 || dishes[0].NameEn != "Congee" {
			t.Errorf("Expected Congee to be added, got %+v", dishes)
		}

		b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(board.Cell{Day: board.Sunday, Meal: board.Breakfast})...)))
		b.handleCallbackQuery(callbackQuery(encodeCallback(actionSuggested, "0")))
		if got := len(state(t, b).Plan.Dishes(board.Sunday, board.Breakfast)); got != 1 {
			t.Errorf("Expected used suggestions to be dropped, got %d dishes", got)
		}
	})

	t.Run("StaleButtonForOtherCell", func(t *testing.T) {
		gen := &MockTextGenerator{Response: `{"dishes": ["Miso Soup", "Congee"]}`}
		b, _ := newTestBot(t, Deps{Suggester: planner.NewSuggester(gen)})
		breakfast := board.Cell{Day: board.Sunday, Meal: board.Breakfast}
		dinner := board.Cell{Day: board.Tuesday, Meal: board.Dinner}

		b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(breakfast)...)))
		b.handleCallbackQuery(callbackQuery(actionSuggest))
		b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(dinner)...)))
		b.handleCallbackQuery(callbackQuery(encodeCallback(actionSuggested, "0")))

		st := state(t, b)
		if !st.Plan.IsEmpty() {
			t.Errorf("Expected no dish from a stale button, got %+v", st.Plan.Dishes(dinner.Day, dinner.Meal))
		}
		if st.Active == nil || *st.Active != dinner {
			t.Errorf("Expected Tuesday dinner to stay open, got %+v", st.Active)
		}
	})

	t.Run("CancelDropsSuggestions", func(t *testing.T) {
		gen := &MockTextGenerator{Response: `{"dishes": ["Miso Soup"]}`}
		b, _ := newTestBot(t, Deps{Suggester: planner.NewSuggester(gen)})
		cell := board.Cell{Day: board.Monday, Meal: board.Lunch}

		b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(cell)...)))
		b.handleCallbackQuery(callbackQuery(actionSuggest))
		b.handleCallbackQuery(callbackQuery(actionCancel))
		b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(cell)...)))
		b.handleCallbackQuery(callbackQuery(encodeCallback(actionSuggested, "0")))

		if !state(t, b).Plan.IsEmpty() {
			t.Error("Expected cancel to discard the offered dishes")
		}
	})
}

func TestDishTextKeepsRawName(t *testing.T) {
	b, _ := newTestBot(t, Deps{})
	cell := board.Cell{Day: board.Thursday, Meal: board.Lunch}

	b.handleCallbackQuery(callbackQuery(encodeCallback(actionCell, cellArgs(cell)...)))
	b.processMessage(message("   "))
	if st := state(t, b); !st.Plan.IsEmpty() || st.Active == nil {
		t.Fatal("Expected blank text to be ignored")
	}

	b.processMessage(message("  Pad Thai  "))
	dishes := state(t, b).Plan.Dishes(cell.Day, cell.Meal)
	if len(dishes) != 1 || dishes[0].NameEn != "  Pad Thai  " {
		t.Errorf("Expected the name as typed, got %+v", dishes)
	}
}

func TestMetricsAdminOnly(t *testing.T) {
	b, api := newTestBot(t, Deps{})
	b.processMessage(message("/metrics"))
	if !strings.Contains(api.last(), "Access Denied") {
		t.Errorf("Expected access denied, got %q", api.last())
	}
}

func TestWebhookRejectsUnknownUsers(t *testing.T) {
	b, api := newTestBot(t, Deps{})

	post := func(userID int64) {
		body, _ := json.Marshal(tgbotapi.Update{Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID},
			Chat: &tgbotapi.Chat{ID: chatID},
			Text: "hello",
		}})
		b.handleWebhook(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body)))
	}

	post(666)
	if len(api.texts()) != 0 {
		t.Error("Expected no reply to an unknown user")
	}
	post(7)
	if len(api.texts()) != 1 {
		t.Errorf("Expected one reply to an allowed user, got %d", len(api.texts()))
	}
}

func TestFormatBoardMarkdown(t *testing.T) {
	now := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	st := board.NewState(board.English)
	st.Plan = board.AddDish(st.Plan, board.Monday, board.Breakfast, "Avocado Toast", board.English)
	st.Plan = board.AddDish(st.Plan, board.Monday, board.Dinner, "fish_and_chips", board.English)

	out := formatBoardMarkdown(st, now)

	if !strings.Contains(out, "📅 *Weekly Meal Planner*") {
		t.Error("Missing board header")
	}
	if !strings.Contains(out, "_October 2026_") {
		t.Error("Missing month line")
	}
	if !strings.Contains(out, "*Monday*") || !strings.Contains(out, "🍳 Breakfast: Avocado Toast") {
		t.Errorf("Missing Monday breakfast in %q", out)
	}
	if !strings.Contains(out, `fish\_and\_chips`) {
		t.Error("Expected Markdown in dish names to be escaped")
	}
	if strings.Contains(out, "*Tuesday*") {
		t.Error("Expected empty days to be left out")
	}
}

func TestCallbackDataFitsLimit(t *testing.T) {
	longest := encodeCallback(actionRemove, append(cellArgs(board.Cell{Day: board.Sunday, Meal: board.Dinner}), "123e4567-e89b-12d3-a456-426614174000")...)
	if len(longest) > 64 {
		t.Errorf("Callback data %q exceeds 64 bytes", longest)
	}
	cb := decodeCallback(longest)
	cell, ok := cb.cell()
	if !ok || cell != (board.Cell{Day: board.Sunday, Meal: board.Dinner}) || cb.arg(2) != "123e4567-e89b-12d3-a456-426614174000" {
		t.Errorf("Unexpected decode %+v", cb)
	}
	if _, ok := decodeCallback("cell:9:0").cell(); ok {
		t.Error("Expected invalid day to be rejected")
	}
}
