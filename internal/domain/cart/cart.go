package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Line is one product entry in the cart. UnitPrice and StockCeiling are the
// values observed when the product was last added.
type Line struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	StockCeiling int             `json:"stock_ceiling"`
}

// Subtotal returns UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Repository persists the cart as a single record. Load returns an empty
// slice when nothing has been stored yet.
type Repository interface {
	Load(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, lines []Line) error
}

// clamp bounds quantity to [1, ceiling]. A ceiling below 1 is treated as 1.
func clamp(quantity, ceiling int) int {
	if ceiling < 1 {
		ceiling = 1
	}
	return max(1, min(quantity, ceiling))
}
