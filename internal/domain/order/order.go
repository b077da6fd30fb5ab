package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the server-side order status. Transitions happen on the server;
// the client only observes them.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
)

// ParseStatus parses a status reported by the backend, ignoring case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusPaid, StatusCanceled:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCanceled
}

// Order is the client's read-only projection of a server order.
type Order struct {
	ID          string
	Items       []Item
	TotalAmount decimal.Decimal
	Status      Status
	CreatedAt   time.Time
}

// Item is one order line. UnitPrice is the server price at the time of order
// and is zero in creation requests.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Backend is the slice of the backend API used for orders. All calls are
// authenticated with token.
type Backend interface {
	CreateOrder(ctx context.Context, token string, items []Item) (*Order, error)
	GetOrder(ctx context.Context, token, id string) (*Order, error)
	ListOrders(ctx context.Context, token string) ([]Order, error)
}
