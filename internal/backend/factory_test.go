package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"proiezioni/internal/cache"
	"proiezioni/internal/config"
	"proiezioni/internal/services"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const seed = `name: Seed
start_date: 2024-01-01
end_date: 2024-01-31
initial_balance: 100
one_time:
  - {amount: -40, date: 2024-01-10, description: Spesa}
`

func TestCreateBackend_MemorySeeded(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(quietLogger()).CreateBackend(context.Background(), Config{
		Type:      MemoryBackend,
		SeedDir:   dir,
		CacheTTL:  time.Minute,
		CacheSize: 8,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	list, err := res.Store.List(context.Background())
	if err != nil || len(list) != 1 || list[0].Name != "Seed" {
		t.Fatalf("seeded list=%v err=%v", list, err)
	}
	if _, ok := res.Cache.(*cache.LocalStore); !ok {
		t.Fatalf("expected local cache, got %T", res.Cache)
	}
	if res.AMQP != nil || len(res.Checks) != 0 {
		t.Fatalf("unexpected optional deps: amqp=%v checks=%d", res.AMQP, len(res.Checks))
	}

	svc := res.Service(services.NewProjectionEngine(0))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.ProjectScenario(ctx, list[0].ID); err != nil {
			t.Fatalf("ProjectScenario: %v", err)
		}
	}
	if st := svc.Stats(); st.Hits != 1 || st.Runs != 1 {
		t.Fatalf("expected cached second run, got %+v", st)
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "proiezioni.db")
	res, err := NewFactory(quietLogger()).CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: path,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if res.Cache != nil {
		t.Fatalf("cache should be disabled with size 0, got %T", res.Cache)
	}
	if len(res.Checks) != 1 || res.Checks[0].Name != "sqlite" {
		t.Fatalf("checks=%v", res.Checks)
	}
	if err := res.Checks[0].Check(context.Background()); err != nil {
		t.Fatalf("sqlite check: %v", err)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Closing twice is a no-op.
	if err := res.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestCreateBackend_RedisFallback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := NewFactory(quietLogger()).CreateBackend(ctx, Config{
		Type:      MemoryBackend,
		RedisAddr: "127.0.0.1:1",
		CacheTTL:  time.Minute,
		CacheSize: 4,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()
	if _, ok := res.Cache.(*cache.LocalStore); !ok {
		t.Fatalf("expected fallback to local cache, got %T", res.Cache)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x", AMQPExchange: "e"}, true},
		{"negative cache", Config{Type: MemoryBackend, CacheSize: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  config.BackendSQLite,
		SQLiteDBPath: "a.db",
		RedisAddr:    "redis:6379",
		CacheTTL:     time.Minute,
		CacheSize:    16,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "a.db" || cfg.RedisAddr != "redis:6379" || cfg.CacheSize != 16 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "memory" || got[1] != "sqlite" {
		t.Fatalf("got %v", got)
	}
}
