// Command storefront-state inspects or resets the locally persisted
// checkout state of one namespace.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	appkg "github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/app"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

func main() {
	var cfg appkg.Config

	flag.StringVar(&cfg.Storage.Driver, "driver", appkg.DriverPostgres, "storage driver: postgres or redis")
	flag.StringVar(&cfg.Storage.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.Storage.RedisURL, "redis-url", "", "Redis connection URL (or REDIS_URL env)")
	flag.StringVar(&cfg.Namespace, "namespace", "default", "state namespace")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] show|reset\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if cfg.Storage.DatabaseURL == "" {
		cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Storage.RedisURL == "" {
		cfg.Storage.RedisURL = os.Getenv("REDIS_URL")
	}

	cmd := flag.Arg(0)
	if cmd != "show" && cmd != "reset" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, &cfg, cmd); err != nil {
		slog.Error("command failed", slog.String("command", cmd), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appkg.Config, cmd string) error {
	slog.Info("opening storage", slog.String("driver", cfg.Storage.Driver), slog.String("namespace", cfg.Namespace))

	st, err := appkg.OpenStore(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer st.Close()

	if cmd == "reset" {
		if err := st.Reset(ctx); err != nil {
			return errors.Wrap(err, "reset")
		}
		slog.Info("namespace reset", slog.String("namespace", cfg.Namespace))
		return nil
	}
	return show(ctx, st)
}

func show(ctx context.Context, st *appkg.Store) error {
	sess, err := st.Sessions.Load(ctx)
	switch {
	case errors.Is(err, session.ErrNotFound):
		slog.Info("no session stored")
	case err != nil:
		return errors.Wrap(err, "load session")
	case sess.User != nil:
		slog.Info("session",
			slog.String("user_id", sess.User.ID),
			slog.String("email", sess.User.Email),
			slog.Bool("authenticated", sess.Authenticated()),
		)
	default:
		slog.Info("session", slog.Bool("authenticated", sess.Authenticated()))
	}

	lines, err := st.Cart.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
		slog.Info("cart line",
			slog.String("product_id", l.ProductID),
			slog.String("name", l.Name),
			slog.Int("quantity", l.Quantity),
			slog.String("unit_price", l.UnitPrice.String()),
		)
	}
	slog.Info("cart", slog.Int("lines", len(lines)), slog.String("total", total.String()))

	records, err := st.ListPayments(ctx)
	if err != nil {
		return errors.Wrap(err, "list payments")
	}
	for _, ps := range records {
		slog.Info("payment",
			slog.String("session_id", ps.ID),
			slog.String("order_id", ps.OrderID),
			slog.String("provider", string(ps.Provider)),
			slog.String("status", string(ps.Status)),
			slog.String("failure_reason", ps.FailureReason),
			slog.Time("updated_at", ps.UpdatedAt),
		)
	}
	slog.Info("payments", slog.Int("records", len(records)))
	return nil
}
