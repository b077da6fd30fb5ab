package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

const instrumentationName = "github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"

const (
	// DefaultRetention is how long a settled session is kept in memory.
	DefaultRetention = time.Hour
	// abandonedAfter drops sessions that never settled.
	abandonedAfter = 24 * time.Hour
)

// ErrSessionNotFound is returned when no in-memory session has the given id.
var ErrSessionNotFound = errors.New("payment session not found")

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTracerProvider sets the tracer provider. Defaults to a no-op provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) { c.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to a no-op provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) { c.meter = mp.Meter(instrumentationName) }
}

// WithRetention sets how long a settled session stays readable through
// Session. Defaults to DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(c *Coordinator) { c.retention = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator opens payment sessions and drives them to a terminal state.
// The order itself is never mutated locally: its status is owned by the
// backend and only read back.
type Coordinator struct {
	backend Backend
	card    CardConfirmer
	records Repository

	now       func() time.Time
	retention time.Duration
	tracer    trace.Tracer
	meter     metric.Meter
	outcomes  metric.Int64Counter

	// calls collapses concurrent confirmations of the same session.
	calls singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(backend Backend, card CardConfirmer, records Repository, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		backend:   backend,
		card:      card,
		records:   records,
		now:       time.Now,
		retention: DefaultRetention,
		tracer:    tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:     metricnoop.NewMeterProvider().Meter(instrumentationName),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(c)
	}

	outcomes, err := c.meter.Int64Counter("storefront.payment.outcomes",
		metric.WithDescription("Payment session outcomes by provider"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create outcomes counter")
	}
	c.outcomes = outcomes
	return c, nil
}

// Begin opens a provider session for o. The order must have been created by
// the backend and still be pending. Failures are returned immediately and
// leave the order pending; nothing is retried.
func (c *Coordinator) Begin(ctx context.Context, sess session.Session, o *order.Order, provider Provider) (*Session, error) {
	if !sess.Authenticated() {
		return nil, failure.New(failure.Unauthenticated, "")
	}
	if o == nil || o.ID == "" {
		return nil, ErrOrderNotCreated
	}
	if o.Status != order.StatusPending {
		return nil, errors.Wrapf(ErrOrderNotPending, "order %s is %s", o.ID, o.Status)
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "payment.Begin", trace.WithAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("payment.provider", string(provider)),
	))
	defer span.End()

	now := c.now()
	ps := &Session{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Provider:  provider,
		Status:    StatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	co, err := c.backend.CreateCheckout(ctx, sess.Token, o.ID, provider)
	if err != nil {
		c.record(ctx, span, provider, "create_failed", err)
		return nil, errors.Wrap(err, "create payment session")
	}

	switch provider {
	case ProviderCard:
		ps.ProviderSessionToken = co.ClientSecret
	case ProviderWallet:
		ps.ProviderSessionToken = co.ProviderSessionToken
		ps.RedirectURL = co.RedirectURL
		if ps.RedirectURL == "" {
			err := failure.New(failure.ProviderError, "the payment provider did not return a redirect")
			c.record(ctx, span, provider, "create_failed", err)
			return nil, err
		}
	}
	if ps.ProviderSessionToken == "" {
		err := failure.New(failure.ProviderError, "the payment provider did not open a session")
		c.record(ctx, span, provider, "create_failed", err)
		return nil, err
	}

	if err := ps.transition(StatusAwaitingConfirmation, c.now()); err != nil {
		return nil, err
	}
	if provider == ProviderWallet {
		if err := c.records.Save(ctx, ps); err != nil {
			c.record(ctx, span, provider, "create_failed", err)
			return nil, errors.Wrap(err, "record wallet session")
		}
	}
	c.remember(ps)

	zctx.From(ctx).Info("Payment session opened",
		zap.String("session_id", ps.ID),
		zap.String("order_id", ps.OrderID),
		zap.String("provider", string(provider)),
	)
	c.record(ctx, span, provider, "opened", nil)
	return ps.clone(), nil
}

// ConfirmCard confirms an awaiting CARD session with paymentMethod. A
// provider decline moves the session to FAILED and is returned with the
// provider's message. Transport failures leave the session awaiting.
func (c *Coordinator) ConfirmCard(ctx context.Context, sessionID, paymentMethod string) (*Session, error) {
	v, err, _ := c.calls.Do("card:"+sessionID, func() (any, error) {
		ps, err := c.confirmCard(ctx, sessionID, paymentMethod)
		if ps == nil {
			return nil, err
		}
		return ps, err
	})
	if v == nil {
		return nil, err
	}
	return v.(*Session).clone(), err
}

func (c *Coordinator) confirmCard(ctx context.Context, sessionID, paymentMethod string) (*Session, error) {
	ps, ok := c.Session(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ps.Provider != ProviderCard {
		return nil, errors.Wrapf(ErrWrongProvider, "confirm card on %s session", ps.Provider)
	}
	if ps.Status != StatusAwaitingConfirmation {
		return ps, &IllegalTransitionError{From: ps.Status, To: StatusConfirmed}
	}

	ctx, span := c.tracer.Start(ctx, "payment.ConfirmCard", trace.WithAttributes(
		attribute.String("order.id", ps.OrderID),
		attribute.String("payment.session_id", ps.ID),
	))
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("session_id", ps.ID), zap.String("order_id", ps.OrderID))

	err := c.card.ConfirmCard(ctx, ps.ProviderSessionToken, paymentMethod)
	switch {
	case err == nil:
		if err := ps.transition(StatusConfirmed, c.now()); err != nil {
			return ps, err
		}
		c.remember(ps)
		lg.Info("Card payment confirmed")
		c.record(ctx, span, ProviderCard, "confirmed", nil)
		return ps, nil
	case failure.Is(err, failure.ProviderError):
		fe, _ := failure.As(err)
		if terr := ps.transition(StatusFailed, c.now()); terr != nil {
			return ps, terr
		}
		ps.FailureReason = fe.UserMessage()
		c.remember(ps)
		lg.Info("Card payment declined", zap.String("reason", ps.FailureReason))
		c.record(ctx, span, ProviderCard, "failed", err)
		return ps, err
	default:
		lg.Warn("Card confirmation did not complete", zap.Error(err))
		c.record(ctx, span, ProviderCard, "error", err)
		return ps, errors.Wrap(err, "confirm card payment")
	}
}

// HandleWalletReturn resolves a wallet return callback. The session is
// located through the durable record for the callback's transaction token,
// or its order id when no token is present. A callback that matches no
// record fails with AmbiguousOutcome and never confirms anything. Sessions
// already in a terminal state are returned unchanged.
func (c *Coordinator) HandleWalletReturn(ctx context.Context, sess session.Session, cb Callback) (*Session, error) {
	key := cb.TransactionID
	if key == "" {
		if cb.OrderID == "" {
			return nil, failure.New(failure.AmbiguousOutcome, "the payment return did not identify a checkout")
		}
		key = "order:" + cb.OrderID
	}

	v, err, _ := c.calls.Do("wallet:"+key, func() (any, error) {
		ps, err := c.resolveWallet(ctx, sess, cb)
		if ps == nil {
			return nil, err
		}
		return ps, err
	})
	if v == nil {
		return nil, err
	}
	return v.(*Session).clone(), err
}

func (c *Coordinator) resolveWallet(ctx context.Context, sess session.Session, cb Callback) (*Session, error) {
	ctx, span := c.tracer.Start(ctx, "payment.HandleWalletReturn", trace.WithAttributes(
		attribute.String("payment.transaction_id", cb.TransactionID),
		attribute.String("order.id", cb.OrderID),
		attribute.String("payment.outcome", string(cb.Outcome)),
	))
	defer span.End()

	lg := zctx.From(ctx).With(
		zap.String("transaction_id", cb.TransactionID),
		zap.String("order_id", cb.OrderID),
	)

	ps, err := c.lookupWallet(ctx, cb)
	if errors.Is(err, ErrNotFound) {
		lg.Warn("Wallet return matches no checkout")
		ferr := failure.New(failure.AmbiguousOutcome,
			"we could not match this payment to a checkout, check your orders before paying again")
		c.record(ctx, span, ProviderWallet, "unmatched", ferr)
		return nil, ferr
	}
	if err != nil {
		return nil, errors.Wrap(err, "load wallet session")
	}
	if cb.OrderID != "" && cb.OrderID != ps.OrderID {
		lg.Warn("Wallet return order mismatch", zap.String("recorded_order_id", ps.OrderID))
		ferr := failure.New(failure.AmbiguousOutcome, "the payment return does not match its checkout")
		c.record(ctx, span, ProviderWallet, "unmatched", ferr)
		return nil, ferr
	}
	if ps.Status.IsTerminal() {
		c.remember(ps)
		return ps, nil
	}

	if !sess.Authenticated() {
		return nil, failure.New(failure.Unauthenticated, "")
	}
	if cb.Outcome == OutcomeCancel || cb.Outcome == OutcomeFailure {
		// The claim is untrusted: a pending order keeps the session open.
		return c.settleWallet(ctx, span, sess, ps, "the payment was canceled at the provider", false)
	}

	o, err := c.backend.ExecuteWallet(ctx, sess.Token, WalletExecution{
		OrderID:       ps.OrderID,
		TransactionID: ps.ProviderSessionToken,
		PayerID:       cb.PayerID,
	})
	if err != nil {
		switch failure.KindOf(err) {
		case failure.ProviderError, failure.ServerRejected:
			// A retried execution is refused even when the first one captured
			// the payment, so the order decides.
			fe, _ := failure.As(err)
			return c.settleWallet(ctx, span, sess, ps, fe.UserMessage(), true)
		default:
			lg.Warn("Wallet execution did not complete", zap.Error(err))
			c.record(ctx, span, ProviderWallet, "error", err)
			return nil, errors.Wrap(err, "execute wallet payment")
		}
	}

	switch o.Status {
	case order.StatusPaid:
		return c.confirmWallet(ctx, span, ps)
	case order.StatusCanceled:
		return c.failWallet(ctx, span, ps, "the order was canceled")
	default:
		return c.failWallet(ctx, span, ps, "the payment was not completed")
	}
}

// settleWallet resolves a refused or canceled wallet payment against the
// server's order. A paid order confirms the session and a canceled one fails
// it. A pending order fails it only when final is set; otherwise the session
// stays awaiting and the refusal is returned.
func (c *Coordinator) settleWallet(ctx context.Context, span trace.Span, sess session.Session, ps *Session, reason string, final bool) (*Session, error) {
	o, err := c.backend.GetOrder(ctx, sess.Token, ps.OrderID)
	if err != nil {
		zctx.From(ctx).Warn("Wallet order lookup failed", zap.String("order_id", ps.OrderID), zap.Error(err))
		c.record(ctx, span, ProviderWallet, "error", err)
		return nil, errors.Wrapf(err, "check order %q", ps.OrderID)
	}

	switch o.Status {
	case order.StatusPaid:
		return c.confirmWallet(ctx, span, ps)
	case order.StatusCanceled:
		return c.failWallet(ctx, span, ps, "the order was canceled")
	}
	if final {
		return c.failWallet(ctx, span, ps, reason)
	}
	ferr := failure.New(failure.ProviderError, reason)
	c.record(ctx, span, ProviderWallet, "canceled", ferr)
	return nil, ferr
}

func (c *Coordinator) confirmWallet(ctx context.Context, span trace.Span, ps *Session) (*Session, error) {
	if err := ps.transition(StatusConfirmed, c.now()); err != nil {
		return nil, err
	}
	if err := c.records.Save(ctx, ps); err != nil {
		return nil, errors.Wrap(err, "record wallet session")
	}
	c.remember(ps)
	zctx.From(ctx).Info("Wallet payment confirmed",
		zap.String("session_id", ps.ID),
		zap.String("order_id", ps.OrderID),
	)
	c.record(ctx, span, ProviderWallet, "confirmed", nil)
	return ps, nil
}

func (c *Coordinator) lookupWallet(ctx context.Context, cb Callback) (*Session, error) {
	if cb.TransactionID != "" {
		return c.records.FindByToken(ctx, cb.TransactionID)
	}
	return c.records.FindByOrder(ctx, cb.OrderID)
}

func (c *Coordinator) failWallet(ctx context.Context, span trace.Span, ps *Session, reason string) (*Session, error) {
	if err := ps.transition(StatusFailed, c.now()); err != nil {
		return nil, err
	}
	ps.FailureReason = reason
	if err := c.records.Save(ctx, ps); err != nil {
		return nil, errors.Wrap(err, "record wallet session")
	}
	c.remember(ps)

	ferr := failure.New(failure.ProviderError, reason)
	zctx.From(ctx).Info("Wallet payment failed",
		zap.String("session_id", ps.ID),
		zap.String("order_id", ps.OrderID),
		zap.String("reason", reason),
	)
	c.record(ctx, span, ProviderWallet, "failed", ferr)
	return ps, ferr
}

// Reconcile returns the server's view of orderID. It is the landing point of
// provider return redirects and may be reached any number of times.
func (c *Coordinator) Reconcile(ctx context.Context, sess session.Session, orderID string) (*order.Order, error) {
	if !sess.Authenticated() {
		return nil, failure.New(failure.Unauthenticated, "")
	}
	o, err := c.backend.GetOrder(ctx, sess.Token, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "reconcile order %q", orderID)
	}
	return o, nil
}

// Session returns a copy of the in-memory session with the given id.
func (c *Coordinator) Session(id string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ps, ok := c.sessions[id]
	if !ok {
		return nil, false
	}
	return ps.clone(), true
}

// remember keeps a copy of ps and drops sessions that settled more than
// the retention ago or were abandoned.
func (c *Coordinator) remember(ps *Session) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.sessions {
		age := now.Sub(s.UpdatedAt)
		if (s.Status.IsTerminal() && age > c.retention) || age > abandonedAfter {
			delete(c.sessions, id)
		}
	}
	c.sessions[ps.ID] = ps.clone()
}

func (c *Coordinator) record(ctx context.Context, span trace.Span, provider Provider, outcome string, err error) {
	c.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("outcome", outcome),
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
}
