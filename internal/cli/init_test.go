package cli

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"proiezioni/internal/config"
	applog "proiezioni/internal/log"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	cfg, err := LoadAndValidateConfig(nil)
	if err != nil {
		t.Fatalf("LoadAndValidateConfig: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port=%q", cfg.Port)
	}

	// The worker refuses to run without a broker.
	if _, err := LoadAndValidateConfig((*config.Config).ValidateWorker); err == nil || !strings.Contains(err.Error(), "AMQP_URL") {
		t.Fatalf("ValidateWorker err=%v", err)
	}

	t.Setenv("DATA_BACKEND", "postgres")
	if _, err := LoadAndValidateConfig(nil); err == nil {
		t.Fatal("expected invalid backend error")
	}
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	cfg := &config.Config{LogLevel: slog.LevelWarn}
	logger := SetupLogger("proiezioni-test", cfg)
	if logger.Component() != "proiezioni-test" {
		t.Fatalf("Component=%q", logger.Component())
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
}

func TestOpenBackend_Memory(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("SEED_DIR", t.TempDir())
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	cfg, err := LoadAndValidateConfig(nil)
	if err != nil {
		t.Fatal(err)
	}

	logger := applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(discard{}, nil)})
	res, err := OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer res.Close()

	if res.Store == nil || res.Cache == nil || res.AMQP != nil {
		t.Fatalf("unexpected backend: %+v", res)
	}
	list, err := res.Service(nil).ListScenarios(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("ListScenarios=%v, %v", list, err)
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
