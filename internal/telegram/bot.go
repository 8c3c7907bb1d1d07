package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/clipper"
	"meal-board/internal/config"
	"meal-board/internal/download"
	"meal-board/internal/export"
	"meal-board/internal/llm"
	"meal-board/internal/locale"
	"meal-board/internal/metrics"
	"meal-board/internal/planner"
	"meal-board/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	updateTimeout        = time.Minute
	contextBloatTokens   = 4000
	markdown             = tgbotapi.ModeMarkdown
	documentCaptionLimit = 1024
)

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Bot serves one meal board per chat over the Telegram Bot API.
type Bot struct {
	api          botAPI
	cfg          *config.Config
	sessions     *session.Manager
	exporter     *export.Exporter
	clipper      *clipper.Clipper
	suggester    *planner.Suggester
	metricsStore *metrics.Store
	downloads    *download.Service
	archive      export.Sink

	now   func() time.Time
	spawn func(func())

	mu          sync.Mutex
	suggestions map[int64]pendingSuggestions
}

// pendingSuggestions are the dishes last offered for cell.
type pendingSuggestions struct {
	cell   board.Cell
	dishes []string
}

// Deps are the collaborators of a Bot. Suggester, MetricsStore, Downloads and
// Archive are optional.
type Deps struct {
	Sessions     *session.Manager
	Exporter     *export.Exporter
	Clipper      *clipper.Clipper
	Suggester    *planner.Suggester
	MetricsStore *metrics.Store
	Downloads    *download.Service
	Archive      export.Sink
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	webhookURL := cfg.TelegramWebhookURL
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", webhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return newBot(api, cfg, deps), nil
}

func newBot(api botAPI, cfg *config.Config, deps Deps) *Bot {
	return &Bot{
		api:          api,
		cfg:          cfg,
		sessions:     deps.Sessions,
		exporter:     deps.Exporter,
		clipper:      deps.Clipper,
		suggester:    deps.Suggester,
		metricsStore: deps.MetricsStore,
		downloads:    deps.Downloads,
		archive:      deps.Archive,
		now:          time.Now,
		spawn:        func(fn func()) { go fn() },
		suggestions:  make(map[int64]pendingSuggestions),
	}
}

// RegisterHandlers registers the webhook, health and download handlers.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if b.downloads != nil {
		mux.Handle("/download", b.downloads)
	}
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	var from *tgbotapi.User
	switch {
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
	case update.Message != nil:
		from = update.Message.From
	default:
		return
	}

	if from == nil || !b.cfg.IsAllowed(from.ID) {
		if from != nil {
			log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", from.ID, from.UserName)
		}
		return
	}

	if update.CallbackQuery != nil {
		query := update.CallbackQuery
		b.spawn(func() { b.handleCallbackQuery(query) })
		return
	}
	msg := update.Message
	b.spawn(func() { b.processMessage(msg) })
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "plan", "board":
			b.sendBoard(ctx, chatID)
		case "export":
			b.handleExport(ctx, chatID)
		case "lang":
			b.update(ctx, chatID, board.State.ToggleLang)
			b.sendBoard(ctx, chatID)
		case "clear":
			b.handleClear(ctx, chatID)
		case "cancel":
			b.dropSuggestions(chatID)
			b.update(ctx, chatID, board.State.CloseCell)
			b.sendBoard(ctx, chatID)
		case "metrics":
			b.handleMetricsRequest(ctx, msg)
		default:
			b.sendHelp(ctx, chatID)
		}
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	b.handleDishText(ctx, chatID, msg.Text)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From != nil && msg.From.LanguageCode != "" {
		lang := locale.ParseLang(msg.From.LanguageCode)
		b.update(ctx, msg.Chat.ID, func(s board.State) board.State { return s.SetLang(lang) })
	}
	st := b.load(ctx, msg.Chat.ID)
	t := locale.For(st.Lang)
	b.sendMarkdown(msg.Chat.ID, "👋 "+escape(t.T(locale.KeyWelcome))+"\n\n"+escape(t.T(locale.KeyHelp)), nil)
	b.sendBoard(ctx, msg.Chat.ID)
}

func (b *Bot) sendHelp(ctx context.Context, chatID int64) {
	t := locale.For(b.load(ctx, chatID).Lang)
	b.sendMarkdown(chatID, escape(t.T(locale.KeyHelp)), nil)
}

// handleDishText adds text to the active cell. Links are resolved to a dish
// name first.
func (b *Bot) handleDishText(ctx context.Context, chatID int64, text string) {
	st := b.load(ctx, chatID)
	t := locale.For(st.Lang)
	if st.Active == nil {
		kb := boardKeyboard(st)
		b.sendMarkdown(chatID, escape(t.T(locale.KeyNoActiveCell)), &kb)
		return
	}

	name := text
	if link := strings.TrimSpace(text); clipper.IsURL(link) && b.clipper != nil {
		clipped, err := b.clipper.DishName(ctx, link, st.Lang)
		if err != nil {
			log.Printf("Error clipping dish from %s: %v", link, err)
			b.sendMarkdown(chatID, formatError(t.T(locale.KeyClipFailed), err), nil)
			return
		}
		name = clipped
	}

	b.addToActiveCell(ctx, chatID, func(s board.State) board.State { return s.SubmitDish(name) })
}

// addToActiveCell applies an add reducer and reports the dish it created.
func (b *Bot) addToActiveCell(ctx context.Context, chatID int64, add func(board.State) board.State) {
	var (
		cell   board.Cell
		before int
		active bool
	)
	next, err := b.sessions.Update(ctx, chatID, func(s board.State) board.State {
		if s.Active != nil {
			active = true
			cell = *s.Active
			before = len(s.Plan.Dishes(cell.Day, cell.Meal))
		}
		return add(s)
	})
	if err != nil {
		b.reportError(chatID, "Error saving board", err)
		return
	}

	t := locale.For(next.Lang)
	if !active {
		kb := boardKeyboard(next)
		b.sendMarkdown(chatID, escape(t.T(locale.KeyNoActiveCell)), &kb)
		return
	}
	dishes := next.Plan.Dishes(cell.Day, cell.Meal)
	if next.Active != nil || len(dishes) <= before {
		return
	}
	b.dropSuggestions(chatID)
	added := dishes[len(dishes)-1]
	text := fmt.Sprintf("✅ *%s:* %s (%s)\n\n%s", escape(t.T(locale.KeyAdded)), escape(added.DisplayName(next.Lang)), escape(t.Cell(cell)), formatBoardMarkdown(next, b.now()))
	kb := boardKeyboard(next)
	b.sendMarkdown(chatID, text, &kb)
}

func (b *Bot) handleClear(ctx context.Context, chatID int64) {
	b.dropSuggestions(chatID)
	next, err := b.sessions.Update(ctx, chatID, func(s board.State) board.State { return s.Reset().CloseCell() })
	if err != nil {
		b.reportError(chatID, "Error saving board", err)
		return
	}
	t := locale.For(next.Lang)
	kb := boardKeyboard(next)
	b.sendMarkdown(chatID, "🗑 "+escape(t.T(locale.KeyCleared)), &kb)
}

func (b *Bot) sendBoard(ctx context.Context, chatID int64) {
	st := b.load(ctx, chatID)
	kb := boardKeyboard(st)
	b.sendMarkdown(chatID, formatBoardMarkdown(st, b.now()), &kb)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	// Answer callback to remove spinner
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	cb := decodeCallback(query.Data)

	switch cb.action {
	case actionBoard:
		b.editBoard(ctx, chatID, messageID, b.load(ctx, chatID))
	case actionCell:
		cell, ok := cb.cell()
		if !ok {
			return
		}
		if st, ok := b.apply(ctx, chatID, func(s board.State) board.State { return s.OpenCell(cell) }); ok {
			b.editCell(chatID, messageID, st)
		}
	case actionPreset:
		id := cb.arg(0)
		b.addToActiveCell(ctx, chatID, func(s board.State) board.State { return s.AddPreset(id) })
	case actionRemove:
		cell, ok := cb.cell()
		if !ok {
			return
		}
		id := cb.arg(2)
		if st, ok := b.apply(ctx, chatID, func(s board.State) board.State { return s.Remove(cell, id) }); ok {
			b.editCell(chatID, messageID, st)
		}
	case actionSuggest:
		b.handleSuggest(ctx, chatID, messageID)
	case actionSuggested:
		i, err := strconv.Atoi(cb.arg(0))
		if err != nil {
			return
		}
		cell, name, ok := b.suggestion(chatID, i)
		if !ok {
			return
		}
		b.addToActiveCell(ctx, chatID, func(s board.State) board.State {
			if s.Active == nil || *s.Active != cell {
				return s
			}
			return s.SubmitDish(name)
		})
	case actionCancel:
		b.dropSuggestions(chatID)
		if st, ok := b.apply(ctx, chatID, board.State.CloseCell); ok {
			b.editBoard(ctx, chatID, messageID, st)
		}
	case actionClear:
		b.dropSuggestions(chatID)
		if st, ok := b.apply(ctx, chatID, func(s board.State) board.State { return s.Reset().CloseCell() }); ok {
			b.editBoard(ctx, chatID, messageID, st)
		}
	case actionLang:
		if st, ok := b.apply(ctx, chatID, board.State.ToggleLang); ok {
			if st.Active != nil {
				b.editCell(chatID, messageID, st)
			} else {
				b.editBoard(ctx, chatID, messageID, st)
			}
		}
	case actionExport:
		b.handleExport(ctx, chatID)
	default:
		log.Printf("Unknown callback data %q from chat %d", query.Data, chatID)
	}
}

func (b *Bot) handleSuggest(ctx context.Context, chatID int64, messageID int) {
	st := b.load(ctx, chatID)
	t := locale.For(st.Lang)
	if b.suggester == nil {
		b.sendMarkdown(chatID, escape(t.T(locale.KeySuggestDisabled)), nil)
		return
	}
	if st.Active == nil {
		b.sendMarkdown(chatID, escape(t.T(locale.KeyNoActiveCell)), nil)
		return
	}

	res, err := b.suggester.Suggest(ctx, st.Plan, *st.Active, st.Lang)
	b.recordUsage(res.Meta)
	if err != nil {
		log.Printf("Error suggesting dishes for chat %d: %v", chatID, err)
		b.sendMarkdown(chatID, formatError(t.T(locale.KeySuggestFailed), err), nil)
		return
	}

	b.mu.Lock()
	b.suggestions[chatID] = pendingSuggestions{cell: *st.Active, dishes: res.Dishes}
	b.mu.Unlock()

	kb := suggestionKeyboard(st, res.Dishes)
	text := fmt.Sprintf("✨ *%s*\n%s", escape(t.T(locale.KeySuggest)), escape(t.Cell(*st.Active)))
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	edit.ParseMode = markdown
	b.api.Send(edit)
}

// suggestion returns the i-th dish offered to chatID and the cell it was
// offered for.
func (b *Bot) suggestion(chatID int64, i int) (board.Cell, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.suggestions[chatID]
	if !ok || i < 0 || i >= len(p.dishes) {
		return board.Cell{}, "", false
	}
	return p.cell, p.dishes[i], true
}

func (b *Bot) dropSuggestions(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.suggestions, chatID)
}

// handleExport renders the board and sends it as a JPEG document, plus a
// download link when links are enabled.
func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	st := b.load(ctx, chatID)
	t := locale.For(st.Lang)

	statusMsg := tgbotapi.NewMessage(chatID, "🖼 "+escape(t.T(locale.KeyExporting)))
	statusMsg.ParseMode = markdown
	sent, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	sinks := []export.Sink{documentSink{api: b.api, chatID: chatID, caption: t.T(locale.KeyExported)}}
	if b.downloads != nil {
		sinks = append(sinks, b.downloads.SinkFor(chatID))
	}
	sinks = append(sinks, b.archive)

	region := export.Layout(st.Plan, st.Lang, b.now())
	res, err := b.exporter.ExportTo(ctx, region, export.Sinks(sinks...))
	if err != nil {
		log.Printf("Error exporting board for chat %d: %v", chatID, err)
		edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, formatError(t.T(locale.KeyExportFailed), err))
		edit.ParseMode = markdown
		b.api.Send(edit)
		return
	}
	log.Printf("Exported %s for chat %d (%dx%d, %d bytes, %s)", res.Filename, chatID, res.Width, res.Height, len(res.Data), res.Elapsed)

	if b.metricsStore != nil {
		err := b.metricsStore.RecordExport(metrics.ExportMetric{
			ChatID:    chatID,
			Filename:  res.Filename,
			Lang:      string(st.Lang),
			Dishes:    region.DishCount(),
			Bytes:     len(res.Data),
			Width:     res.Width,
			Height:    res.Height,
			LatencyMS: res.Elapsed.Milliseconds(),
		})
		if err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	done := "✅ " + escape(t.T(locale.KeyExported))
	if b.downloads != nil {
		link, err := b.downloads.Link(chatID, res.Filename)
		if err != nil {
			log.Printf("Warning: failed to create download link: %v", err)
		} else {
			done += fmt.Sprintf("\n\n[%s](%s)", escape(t.T(locale.KeyDownloadLink)), link)
		}
	}
	edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, done)
	edit.ParseMode = markdown
	b.api.Send(edit)
}

// documentSink delivers an export to the chat as a file, keeping the full
// resolution that photo uploads would lose.
type documentSink struct {
	api     botAPI
	chatID  int64
	caption string
}

func (s documentSink) Deliver(_ context.Context, filename string, data []byte) error {
	doc := tgbotapi.NewDocument(s.chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if len(s.caption) <= documentCaptionLimit {
		doc.Caption = s.caption
	}
	if _, err := s.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	return nil
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.ID != b.cfg.AdminTelegramID || b.cfg.AdminTelegramID == 0 {
		b.sendMarkdown(msg.Chat.ID, "⛔ *Access Denied*: Admin only.", nil)
		return
	}
	if b.metricsStore == nil {
		b.sendMarkdown(msg.Chat.ID, "❌ Metrics are not enabled.", nil)
		return
	}

	usage, err := b.metricsStore.GetDailyUsage(7)
	if err != nil {
		log.Printf("Error fetching metrics: %v", err)
		b.sendMarkdown(msg.Chat.ID, "❌ Error fetching metrics.", nil)
		return
	}
	active, err := b.sessions.Active(ctx)
	if err != nil {
		log.Printf("Error counting sessions: %v", err)
	}
	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath), b.cfg.ExportDir)
	b.sendMarkdown(msg.Chat.ID, formatMetricsReport(usage, health, active), nil)
}

func (b *Bot) recordUsage(meta llm.AgentMeta) {
	if b.metricsStore == nil || meta.AgentName == "" {
		return
	}
	if err := b.metricsStore.RecordMeta(meta); err != nil {
		log.Printf("Warning: %v", err)
	}
	// Alert on Context Bloat
	if meta.Usage.PromptTokens > contextBloatTokens {
		alert := fmt.Sprintf("⚠️ *Context Bloat Alert*\nAgent: %s\nModel: %s\nPrompt Tokens: %d", meta.AgentName, escape(meta.Usage.Model), meta.Usage.PromptTokens)
		b.sendAdminAlert(alert)
	}
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.sendMarkdown(b.cfg.AdminTelegramID, text, nil)
}

// load returns the chat's state, falling back to a fresh board when the
// store fails.
func (b *Bot) load(ctx context.Context, chatID int64) board.State {
	st, err := b.sessions.Load(ctx, chatID)
	if err != nil {
		log.Printf("Error loading session for chat %d: %v", chatID, err)
		return board.NewState(board.DefaultLang)
	}
	return st
}

func (b *Bot) update(ctx context.Context, chatID int64, fn func(board.State) board.State) {
	b.apply(ctx, chatID, fn)
}

// apply runs fn through the session manager and reports failures to the chat.
func (b *Bot) apply(ctx context.Context, chatID int64, fn func(board.State) board.State) (board.State, bool) {
	st, err := b.sessions.Update(ctx, chatID, fn)
	if err != nil {
		b.reportError(chatID, "Error saving board", err)
		return st, false
	}
	return st, true
}

func (b *Bot) editBoard(ctx context.Context, chatID int64, messageID int, st board.State) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, formatBoardMarkdown(st, b.now()), boardKeyboard(st))
	edit.ParseMode = markdown
	b.api.Send(edit)
}

func (b *Bot) editCell(chatID int64, messageID int, st board.State) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, formatCellMarkdown(st), cellKeyboard(st, b.suggester != nil))
	edit.ParseMode = markdown
	b.api.Send(edit)
}

func (b *Bot) sendMarkdown(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = markdown
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) reportError(chatID int64, prefix string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		prefix = "Timed out"
	}
	log.Printf("%s for chat %d: %v", prefix, chatID, err)
	b.sendMarkdown(chatID, formatError(prefix, err), nil)
}
