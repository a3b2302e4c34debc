package storage

import (
	"context"
	"fmt"

	"github.com/Subicson333/verify/internal/config"
	"github.com/Subicson333/verify/internal/lifecycle"
)

// OpenRepository builds the case repository selected by STORE_BACKEND and
// checks connectivity. The returned close func is always non-nil.
func OpenRepository(ctx context.Context, cfg config.Config) (lifecycle.Repository, func() error, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		store, err := NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, noopClose, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, noopClose, fmt.Errorf("postgres ping: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, noopClose, err
		}
		return store, store.Close, nil
	case config.StoreRedis:
		store := NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, noopClose, err
		}
		return store, store.Close, nil
	case config.StoreMemory:
		return NewMemoryStore(), noopClose, nil
	default:
		return nil, noopClose, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func noopClose() error { return nil }
