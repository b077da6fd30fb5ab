package order

import (
	"context"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/cart"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

// ErrSubmissionInProgress is returned when Submit is called while another
// submission for the same cart has not finished.
var ErrSubmissionInProgress = errors.New("order submission already in progress")

// Cart is the part of the cart store the coordinator needs.
type Cart interface {
	Lines() []cart.Line
	Clear(ctx context.Context) error
}

// Coordinator turns the cart into a server order.
type Coordinator struct {
	cart    Cart
	backend Backend

	inFlight atomic.Bool
}

// NewCoordinator creates a Coordinator for the given cart.
func NewCoordinator(c Cart, backend Backend) *Coordinator {
	return &Coordinator{cart: c, backend: backend}
}

// Submit creates an order from the current cart.
//
// Preconditions are checked before any network call, in order: the session
// must carry a token, then the cart must not be empty. Exactly one creation
// request is sent. On success the cart is cleared and the order returned; on
// failure the cart is left untouched and the classified error returned. The
// request is never retried, AmbiguousOutcome included.
func (c *Coordinator) Submit(ctx context.Context, sess session.Session) (*Order, error) {
	if !sess.Authenticated() {
		return nil, failure.New(failure.Unauthenticated, "")
	}
	lines := c.cart.Lines()
	if len(lines) == 0 {
		return nil, failure.New(failure.EmptyCart, "")
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer c.inFlight.Store(false)

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	lg := zctx.From(ctx)
	o, err := c.backend.CreateOrder(ctx, sess.Token, items)
	if err != nil {
		lg.Warn("Order submission failed",
			zap.String("kind", string(failure.KindOf(err))),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create order")
	}

	// The order exists server-side at this point, so a failed clear is
	// reported but does not fail the submission.
	if err := c.cart.Clear(ctx); err != nil {
		lg.Error("Clear cart after order", zap.String("order_id", o.ID), zap.Error(err))
	}

	lg.Info("Order submitted",
		zap.String("order_id", o.ID),
		zap.Int("items", len(items)),
		zap.Stringer("total", o.TotalAmount),
	)
	return o, nil
}

// Get returns the server projection of order id.
func (c *Coordinator) Get(ctx context.Context, sess session.Session, id string) (*Order, error) {
	if !sess.Authenticated() {
		return nil, failure.New(failure.Unauthenticated, "")
	}
	o, err := c.backend.GetOrder(ctx, sess.Token, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

// List returns the orders of the signed-in user.
func (c *Coordinator) List(ctx context.Context, sess session.Session) ([]Order, error) {
	if !sess.Authenticated() {
		return nil, failure.New(failure.Unauthenticated, "")
	}
	orders, err := c.backend.ListOrders(ctx, sess.Token)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}
