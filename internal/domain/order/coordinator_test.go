package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/cart"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/catalog"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

// --- Mock implementations ---

type memCartRepo struct {
	stored []cart.Line
}

func (m *memCartRepo) Load(_ context.Context) ([]cart.Line, error) { return m.stored, nil }

func (m *memCartRepo) Save(_ context.Context, lines []cart.Line) error {
	m.stored = lines
	return nil
}

type mockBackend struct {
	mu        sync.Mutex
	calls     int
	lastToken string
	lastItems []Item

	order *Order
	err   error
	// block, when set, holds CreateOrder until it is closed.
	block chan struct{}
	// entered is signalled once CreateOrder has been entered.
	entered chan struct{}
}

func (m *mockBackend) CreateOrder(_ context.Context, token string, items []Item) (*Order, error) {
	m.mu.Lock()
	m.calls++
	m.lastToken = token
	m.lastItems = items
	m.mu.Unlock()

	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	return m.order, m.err
}

func (m *mockBackend) GetOrder(_ context.Context, _ string, id string) (*Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &Order{ID: id, Status: StatusPending}, nil
}

func (m *mockBackend) ListOrders(_ context.Context, _ string) ([]Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []Order{*m.order}, nil
}

// --- Helpers ---

var authed = session.Session{User: &session.Identity{ID: "u1"}, Token: "tok"}

func newCart(t *testing.T, products ...*catalog.Product) *cart.Store {
	t.Helper()
	ctx := context.Background()
	s, err := cart.Open(ctx, &memCartRepo{})
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, s.AddItem(ctx, p, 2))
	}
	return s
}

func productA() *catalog.Product {
	return &catalog.Product{ID: "A", Name: "A", Price: decimal.RequireFromString("10.00"), Stock: 5}
}

// --- Tests ---

func TestSubmit_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		sess     session.Session
		products []*catalog.Product
		wantKind failure.Kind
	}{
		{name: "anonymous with items", sess: session.Session{}, products: []*catalog.Product{productA()}, wantKind: failure.Unauthenticated},
		{name: "anonymous and empty reports auth first", sess: session.Session{}, wantKind: failure.Unauthenticated},
		{name: "user without token", sess: session.Session{User: &session.Identity{ID: "u1"}}, products: []*catalog.Product{productA()}, wantKind: failure.Unauthenticated},
		{name: "empty cart", sess: authed, wantKind: failure.EmptyCart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{}
			c := NewCoordinator(newCart(t, tt.products...), backend)

			_, err := c.Submit(context.Background(), tt.sess)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, failure.KindOf(err))
			assert.Zero(t, backend.calls, "no network call expected")
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	backend := &mockBackend{order: &Order{
		ID:          "o-1",
		TotalAmount: decimal.RequireFromString("20.00"),
		Status:      StatusPending,
		Items:       []Item{{ProductID: "A", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}},
	}}
	store := newCart(t, productA())
	c := NewCoordinator(store, backend)

	o, err := c.Submit(context.Background(), authed)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, "tok", backend.lastToken)
	assert.Equal(t, []Item{{ProductID: "A", Quantity: 2}}, backend.lastItems)
	assert.Equal(t, "o-1", o.ID)
	assert.Equal(t, "20.00", o.TotalAmount.StringFixed(2))
	assert.Zero(t, store.Len())
}

func TestSubmit_FailureLeavesCartUntouched(t *testing.T) {
	kinds := []failure.Kind{
		failure.NetworkError,
		failure.AmbiguousOutcome,
		failure.ServerRejected,
		failure.Unauthenticated,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			backend := &mockBackend{err: failure.New(kind, "")}
			store := newCart(t, productA())
			c := NewCoordinator(store, backend)

			_, err := c.Submit(context.Background(), authed)
			require.Error(t, err)
			assert.Equal(t, kind, failure.KindOf(err))
			assert.Equal(t, 1, backend.calls, "failures are never retried")

			lines := store.Lines()
			require.Len(t, lines, 1)
			assert.Equal(t, 2, lines[0].Quantity)
		})
	}
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	backend := &mockBackend{
		order:   &Order{ID: "o-1", Status: StatusPending},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewCoordinator(newCart(t, productA()), backend)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), authed)
		done <- err
	}()
	<-backend.entered

	_, err := c.Submit(context.Background(), authed)
	require.ErrorIs(t, err, ErrSubmissionInProgress)

	close(backend.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.calls)
}

func TestSubmit_GuardReleasedAfterFailure(t *testing.T) {
	backend := &mockBackend{err: failure.New(failure.NetworkError, "")}
	c := NewCoordinator(newCart(t, productA()), backend)

	_, err := c.Submit(context.Background(), authed)
	require.Error(t, err)

	backend.err = nil
	backend.order = &Order{ID: "o-2", Status: StatusPending}
	o, err := c.Submit(context.Background(), authed)
	require.NoError(t, err)
	assert.Equal(t, "o-2", o.ID)
}

func TestGetAndList_RequireSession(t *testing.T) {
	backend := &mockBackend{order: &Order{ID: "o-1"}}
	c := NewCoordinator(newCart(t), backend)
	ctx := context.Background()

	_, err := c.Get(ctx, session.Session{}, "o-1")
	assert.True(t, failure.Is(err, failure.Unauthenticated))
	_, err = c.List(ctx, session.Session{})
	assert.True(t, failure.Is(err, failure.Unauthenticated))

	o, err := c.Get(ctx, authed, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", o.ID)

	orders, err := c.List(ctx, authed)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestGet_PropagatesBackendError(t *testing.T) {
	backend := &mockBackend{err: errors.Wrap(failure.New(failure.NetworkError, ""), "get")}
	c := NewCoordinator(newCart(t), backend)

	_, err := c.Get(context.Background(), authed, "o-1")
	assert.True(t, failure.Is(err, failure.NetworkError))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "PENDING", want: StatusPending},
		{in: "paid", want: StatusPaid},
		{in: " Canceled ", want: StatusCanceled},
		{in: "REFUNDED", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
