package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/payment"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

// App holds the wired components shared by the binaries.
type App struct {
	Config       config.Config
	Backend      *db.Backend
	Redis        *redis.Client
	Catalog      catalog.Repository
	Allocator    *availability.Allocator
	Appointments *appointment.Service
	Checkout     *payment.Checkout
}

// Build opens the configured store, Redis when a backend needs it, and
// wires the booking core on top.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	backend, err := db.OpenGateway(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Backend: backend}

	if cfg.NeedsRedis() {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close(log)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = rdb
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	}

	var locker redisclient.Locker = redisclient.NewLocalLocker()
	if cfg.LockBackend == config.LockRedis {
		locker = redisclient.NewRedisLocker(a.Redis, cfg.LockTTL)
	}

	var dispatcher appointment.Dispatcher = notify.NewLogDispatcher(log)
	if cfg.NotifyBackend == config.NotifyRedis {
		dispatcher = notify.NewStreamDispatcher(a.Redis, cfg.NotifyStream)
	}

	a.Catalog = catalog.NewStoreRepository(backend.Gateway)
	a.Allocator = availability.NewAllocator(backend.Gateway, a.Catalog, log)
	a.Appointments = appointment.NewService(
		appointment.NewRepository(backend.Gateway),
		a.Catalog,
		a.Allocator,
		locker,
		dispatcher,
		cfg,
		log,
	)

	if cfg.StripeAPIKey != "" {
		gw, err := payment.NewStripeGateway(cfg.StripeAPIKey)
		if err != nil {
			a.Close(log)
			return nil, err
		}
		a.Checkout = payment.NewCheckout(gw, a.Catalog, cfg.CheckoutSuccess, cfg.CheckoutCancel, log)
	} else {
		log.Warn().Msg("STRIPE_API_KEY not set, checkout disabled")
	}

	return a, nil
}

func (a *App) Close(log zerolog.Logger) {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}
	if a.Backend != nil {
		a.Backend.Close()
	}
}
