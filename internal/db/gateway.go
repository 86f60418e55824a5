package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/store"
)

// Backend is an opened persistence gateway plus whatever must be closed
// with it. Pool is set only for the Postgres driver.
type Backend struct {
	Gateway store.Gateway
	Pool    *pgxpool.Pool
	close   func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenGateway opens and migrates the backend named by cfg.StoreDriver.
func OpenGateway(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		gw := store.NewPgStore(pool)
		if err := gw.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("connected to postgres")
		return &Backend{Gateway: gw, Pool: pool, close: pool.Close}, nil

	case config.StoreSQLite:
		gdb, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		gw := store.NewSQLiteStore(gdb)
		if err := gw.Migrate(); err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.StoreDriver).Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return &Backend{Gateway: gw, close: func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}}, nil

	case config.StoreMemory, "":
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return &Backend{Gateway: store.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
