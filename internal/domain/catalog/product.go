package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is the client's projection of a catalog item. Stock is the quantity
// last observed from the backend and becomes the cart line's stock ceiling.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    int
	Category string
	ImageURL string
}

// Repository reads products from the catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}

// CheckStock fails with failure.OutOfStock when p cannot be added to a cart.
// It is the caller-side precondition of cart.Store.AddItem.
func CheckStock(p *Product) error {
	if p.Stock > 0 {
		return nil
	}
	return failure.New(failure.OutOfStock, p.Name+" is out of stock")
}
