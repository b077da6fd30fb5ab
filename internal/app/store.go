package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/cart"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/storage/postgres"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/storage/redisstore"
)

// Store bundles the namespaced repositories of the configured driver.
type Store struct {
	Cart     cart.Repository
	Sessions session.Repository
	Payments payment.Repository

	// ListPayments returns every payment record, most recently updated first.
	ListPayments func(ctx context.Context) ([]payment.Session, error)
	// Ping reports whether the backing server answers.
	Ping func(ctx context.Context) error
	// Reset deletes every record of the namespace.
	Reset func(ctx context.Context) error
	Close func()
}

// OpenStore connects to the storage selected by cfg.Storage.Driver.
// PostgreSQL schemas are migrated on open.
func OpenStore(ctx context.Context, cfg *Config) (*Store, error) {
	ns := cfg.Namespace
	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect to database")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		payments := postgres.NewPaymentRepository(pool, ns)
		return &Store{
			Cart:         postgres.NewCartRepository(pool, ns),
			Sessions:     postgres.NewSessionRepository(pool, ns),
			Payments:     payments,
			ListPayments: payments.List,
			Ping:         pool.Ping,
			Reset: func(ctx context.Context) error {
				return postgres.Reset(ctx, pool, ns)
			},
			Close: pool.Close,
		}, nil
	case DriverRedis:
		client, err := redisstore.Open(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		payments := redisstore.NewPaymentRepository(client, ns, cfg.Storage.PaymentTTL)
		return &Store{
			Cart:         redisstore.NewCartRepository(client, ns),
			Sessions:     redisstore.NewSessionRepository(client, ns),
			Payments:     payments,
			ListPayments: payments.List,
			Ping: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			Reset: func(ctx context.Context) error {
				return redisstore.Reset(ctx, client, ns)
			},
			Close: func() { _ = client.Close() },
		}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
