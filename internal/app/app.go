package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/backend"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/cart"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/handler"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/provider/card"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/pkg/health"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("namespace", cfg.Namespace),
		zap.String("storage", cfg.Storage.Driver),
	)
	ctx = zctx.Base(ctx, lg)

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := newService(ctx, lg, m, cfg, st)
	if err != nil {
		return err
	}
	svc.health.Start(ctx, 10*time.Second)
	defer svc.health.Stop()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Wallet execution and card confirmation run inside the request.
		WriteTimeout:   cfg.Backend.Timeout + cfg.Card.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler:        svc.handler,
		BaseContext:    func(_ net.Listener) context.Context { return ctx },
	}
	svc.health.SetReady(true)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		svc.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

type service struct {
	handler http.Handler
	health  *health.Health
}

// newService restores the persisted state from st and builds the HTTP
// surface on top of it. Health probes are registered but not started.
func newService(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config, st *Store) (*service, error) {
	unit, err := cfg.CurrencyUnit()
	if err != nil {
		return nil, err
	}

	// Process-wide state.
	sessions, err := session.Open(ctx, st.Sessions)
	if err != nil {
		return nil, errors.Wrap(err, "open session")
	}
	carts, err := cart.Open(ctx, st.Cart)
	if err != nil {
		return nil, errors.Wrap(err, "open cart")
	}

	// Outbound clients.
	api, err := backend.New(cfg.Backend.BaseURL, backend.Options{
		Timeout:        cfg.Backend.Timeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
		Logger:         lg.Named("backend"),
		OnReject:       sessions.Reject,
		ProviderNames: map[payment.Provider]string{
			payment.ProviderCard:   cfg.Payments.CardName,
			payment.ProviderWallet: cfg.Payments.WalletName,
		},
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerTimeout:  cfg.Backend.BreakerTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}
	cards := card.New(cfg.Card.BaseURL, cfg.Card.PublishableKey, &http.Client{
		Timeout: cfg.Card.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}, m.TracerProvider())

	// Coordinators.
	orders := order.NewCoordinator(carts, api)
	payments, err := payment.NewCoordinator(api, cards, st.Payments,
		payment.WithTracerProvider(m.TracerProvider()),
		payment.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create payment coordinator")
	}

	// Health checks.
	healthSvc := health.New(health.WithLogger(lg.Named("health")))
	healthSvc.AddLiveness(health.Check{
		Name:    "goroutines",
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})
	healthSvc.AddReadiness(health.Check{
		Name:     cfg.Storage.Driver,
		Timeout:  5 * time.Second,
		Severity: health.Critical,
		Func:     st.Ping,
	})
	healthSvc.AddReadiness(health.Check{
		Name:     "backend",
		Timeout:  5 * time.Second,
		Severity: health.Degraded,
		Func:     health.PingCheck(api),
	})

	h := handler.New(handler.Config{Currency: unit, LoginURL: cfg.LoginURL},
		carts, api, sessions, orders, payments,
	)

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins: cfg.CORS.Origins,
			MaxAge:  cfg.CORS.MaxAge,
		}),
		httpmiddleware.Instrument("storefront", m),
		httpmiddleware.LogRequests(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Route("/api", h.Routes)

	return &service{handler: r, health: healthSvc}, nil
}
