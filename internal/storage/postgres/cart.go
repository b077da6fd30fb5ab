package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT product_id, name, unit_price, quantity, stock_ceiling
		FROM cart_lines WHERE namespace = $1 ORDER BY position`

	deleteCartSQL = `DELETE FROM cart_lines WHERE namespace = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository. The cart is replaced as a
// whole in one transaction, so a reader never sees a partial write.
type CartRepository struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewCartRepository returns a CartRepository for namespace.
func NewCartRepository(pool *pgxpool.Pool, namespace string) *CartRepository {
	return &CartRepository{pool: pool, namespace: namespace}
}

// Load returns the stored lines in cart order.
func (r *CartRepository) Load(ctx context.Context) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, loadCartSQL, r.namespace)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	lines, err := pgx.CollectRows(rows, scanLine)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	return lines, nil
}

// Save replaces the stored cart with lines.
func (r *CartRepository) Save(ctx context.Context, lines []cart.Line) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteCartSQL, r.namespace); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"cart_lines"},
			[]string{"namespace", "position", "product_id", "name", "unit_price", "quantity", "stock_ceiling"},
			pgx.CopyFromSlice(len(lines), func(i int) ([]any, error) {
				l := lines[i]
				return []any{r.namespace, i, l.ProductID, l.Name, l.UnitPrice, l.Quantity, l.StockCeiling}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("writing cart lines: %w", err)
		}
		return nil
	})
}

func scanLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity, &l.StockCeiling)
	return l, err
}
