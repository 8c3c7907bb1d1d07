package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meal-board/internal/config"
	"meal-board/internal/database"
	"meal-board/internal/metrics"

	"github.com/fatih/color"
)

func setupTestEnv(t *testing.T) *config.Config {
	t.Helper()
	color.NoColor = true
	dir := t.TempDir()
	cfg := &config.Config{
		DatabasePath: filepath.Join(dir, "data", "meal-board.db"),
		ExportDir:    filepath.Join(dir, "exports"),
		DefaultLang:  "en",
		SessionTTL:   168 * time.Hour,
	}
	renderPlan, renderLang, renderOut, renderDataURL = "", "", "", false
	metricsDays, usageDays = 30, 7
	prev := loadConfig
	loadConfig = func() (*config.Config, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = prev })
	return cfg
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	setupTestEnv(t)
	out, err := run(t, "", "--help")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"meal-board", "render", "sessions-cleanup"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestRenderCommand(t *testing.T) {
	cfg := setupTestEnv(t)
	plan := "lang: en\nplan:\n  MONDAY:\n    BREAKFAST: [Avocado Toast]\n  FRIDAY:\n    DINNER: [Pizza]\n"

	out, err := run(t, plan, "render", "--plan", "-")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "Rendered 2 dishes") {
		t.Errorf("unexpected output %q", out)
	}

	entries, err := os.ReadDir(cfg.ExportDir)
	if err != nil {
		t.Fatalf("expected export dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "meal-plan-") || !strings.HasSuffix(entries[0].Name(), ".jpg") {
		t.Errorf("unexpected exports %v", entries)
	}

	out, err = run(t, plan, "render", "--plan", "-", "--data-url")
	if err != nil {
		t.Fatalf("render --data-url failed: %v", err)
	}
	if !strings.HasPrefix(out, "data:image/jpeg;base64,") {
		t.Errorf("expected a data URL, got %.40q", out)
	}
}

func TestRenderCommand_BadLang(t *testing.T) {
	setupTestEnv(t)
	_, err := run(t, "", "render", "--lang", "fr")
	if err == nil {
		t.Fatal("expected an error for an unknown language")
	}
}

func TestPresetsCommand(t *testing.T) {
	setupTestEnv(t)
	out, err := run(t, "", "presets")
	if err != nil {
		t.Fatalf("presets failed: %v", err)
	}
	if !strings.Contains(out, "Kung Pao Chicken / 宫保鸡丁") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestMaintenanceCommands(t *testing.T) {
	cfg := setupTestEnv(t)

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	store := metrics.NewStore(db.SQL)
	if err := store.RecordExport(metrics.ExportMetric{ChatID: 1, Filename: "meal-plan-1.jpg", Bytes: 2048}); err != nil {
		t.Fatalf("RecordExport failed: %v", err)
	}
	db.Close()

	out, err := run(t, "", "usage", "--days", "7")
	if err != nil {
		t.Fatalf("usage failed: %v", err)
	}
	if !strings.Contains(out, "1 exports (2.0 KiB)") {
		t.Errorf("unexpected usage output %q", out)
	}

	out, err = run(t, "", "sessions-cleanup")
	if err != nil {
		t.Fatalf("sessions-cleanup failed: %v", err)
	}
	if !strings.Contains(out, "Removed 0 expired boards, 0 active") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := run(t, "", "metrics-cleanup", "--days", "0"); err == nil {
		t.Error("expected an error for --days 0")
	}
	out, err = run(t, "", "metrics-cleanup", "--days", "30")
	if err != nil {
		t.Fatalf("metrics-cleanup failed: %v", err)
	}
	if !strings.Contains(out, "Removed 0 metrics older than 30 days") {
		t.Errorf("unexpected output %q", out)
	}
}
