package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for the application.
type Config struct {
	// Telegram Config
	TelegramBotToken       string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookURL     string  `env:"TELEGRAM_WEBHOOK_URL"`
	TelegramAllowedUserIDs []int64 `env:"TELEGRAM_ALLOWED_USER_IDS" envSeparator:","`
	AdminTelegramID        int64   `env:"ADMIN_TELEGRAM_ID"`

	DatabasePath string        `env:"DATABASE_PATH" envDefault:"data/meal-board.db"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	ExportDir string `env:"EXPORT_DIR" envDefault:"exports"`
	FontPath  string `env:"FONT_PATH"`

	// Download links are disabled while DownloadSecret is empty.
	DownloadSecret string        `env:"DOWNLOAD_SECRET"`
	PublicURL      string        `env:"PUBLIC_URL"`
	DownloadTTL    time.Duration `env:"DOWNLOAD_TTL" envDefault:"15m"`

	// Dish suggestions are disabled while GeminiAPIKey is empty.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	DefaultLang string `env:"DEFAULT_LANG" envDefault:"zh"`
	Port        string `env:"PORT" envDefault:"8080"`
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("DATABASE_PATH environment variable not set")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.DownloadSecret != "" && c.PublicURL == "" {
		return errors.New("PUBLIC_URL environment variable not set")
	}
	return nil
}

// ValidateBot checks the settings the Telegram bot needs on top of Validate.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return errors.New("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

// IsAllowed reports whether userID may use the bot. An empty allow list
// admits everyone; the admin is always allowed.
func (c *Config) IsAllowed(userID int64) bool {
	if len(c.TelegramAllowedUserIDs) == 0 {
		return true
	}
	if c.AdminTelegramID != 0 && userID == c.AdminTelegramID {
		return true
	}
	return slices.Contains(c.TelegramAllowedUserIDs, userID)
}

func (c *Config) DownloadsEnabled() bool   { return c.DownloadSecret != "" }
func (c *Config) SuggestionsEnabled() bool { return c.GeminiAPIKey != "" }
