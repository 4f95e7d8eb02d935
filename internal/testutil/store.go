package testutil

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/storage"
)

// NewStore opens a migrated in-memory SQLite store closed at test cleanup.
func NewStore(t testing.TB) *storage.Store {
	t.Helper()

	cfg := config.DatabaseConfig{
		Enabled:         true,
		Driver:          config.DriverSQLite,
		DSN:             ":memory:",
		ConnectAttempts: 1,
	}

	store, err := storage.Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test store: %v", err)
	}
	return store
}
