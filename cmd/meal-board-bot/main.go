package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-board/internal/clipper"
	"meal-board/internal/config"
	"meal-board/internal/database"
	"meal-board/internal/download"
	"meal-board/internal/export"
	"meal-board/internal/llm"
	"meal-board/internal/locale"
	"meal-board/internal/metrics"
	"meal-board/internal/planner"
	"meal-board/internal/session"
	"meal-board/internal/telegram"
)

const maintenanceInterval = time.Hour

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("Invalid bot config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Database and sessions
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	sessions := session.NewManager(session.NewRepository(db.SQL), cfg.SessionTTL, locale.ParseLang(cfg.DefaultLang))
	metricsStore := metrics.NewStore(db.SQL)

	// 3. Export pipeline
	fonts, err := export.LoadFonts(cfg.FontPath)
	if err != nil {
		log.Fatalf("Failed to load fonts: %v", err)
	}
	exporter := export.NewExporter(export.NewRasterRenderer(fonts), nil)

	var downloads *download.Service
	var downloadCache *download.Cache
	if cfg.DownloadsEnabled() {
		downloadCache = download.NewCache(cfg.DownloadTTL)
		downloads = download.NewService(download.NewSigner(cfg.DownloadSecret, cfg.DownloadTTL), downloadCache, cfg.PublicURL)
	}

	// 4. Optional LLM services
	var textGen llm.TextGenerator
	if cfg.SuggestionsEnabled() {
		geminiClient, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		defer geminiClient.Close()

		cached, err := llm.NewCachedTextGenerator(geminiClient, "")
		if err != nil {
			log.Fatalf("Failed to create cached generator: %v", err)
		}
		textGen = cached
	} else {
		log.Println("GEMINI_API_KEY not set, dish suggestions disabled")
	}

	var suggester *planner.Suggester
	if textGen != nil {
		suggester = planner.NewSuggester(textGen)
	}
	recipeClipper := clipper.NewClipper(textGen)

	// 5. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, telegram.Deps{
		Sessions:     sessions,
		Exporter:     exporter,
		Clipper:      recipeClipper,
		Suggester:    suggester,
		MetricsStore: metricsStore,
		Downloads:    downloads,
		Archive:      export.DirSink{Dir: cfg.ExportDir},
	})
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	go maintain(ctx, sessions, downloadCache)

	// 6. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// maintain drops expired boards and stale download links until ctx is done.
func maintain(ctx context.Context, sessions *session.Manager, cache *download.Cache) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.Cleanup(ctx)
			if err != nil {
				log.Printf("Session cleanup failed: %v", err)
			} else if removed > 0 {
				log.Printf("Removed %d expired sessions", removed)
			}
			if cache != nil {
				if n := cache.Prune(); n > 0 {
					log.Printf("Pruned %d stale downloads", n)
				}
			}
		}
	}
}
