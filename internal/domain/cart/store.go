package cart

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/catalog"
)

// Store is the process-wide persistent cart.
//
// Every mutation writes the whole cart through the Repository before it
// returns. When the write fails the in-memory cart keeps its last committed
// state, so memory and storage never diverge.
type Store struct {
	repo Repository

	mu    sync.Mutex
	lines []Line
}

// Open loads the last committed cart from repo.
func Open(ctx context.Context, repo Repository) (*Store, error) {
	lines, err := repo.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	s := &Store{repo: repo}
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		l.Quantity = clamp(l.Quantity, l.StockCeiling)
		s.lines = append(s.lines, l)
	}
	zctx.From(ctx).Debug("Cart loaded", zap.Int("lines", len(s.lines)))
	return s, nil
}

// AddItem merges quantity into the line for p, or inserts a new line. The
// result is clamped to [1, p.Stock]. Callers reject zero-stock products with
// catalog.CheckStock first; AddItem refuses them as well.
func (s *Store) AddItem(ctx context.Context, p *catalog.Product, quantity int) error {
	if err := catalog.CheckStock(p); err != nil {
		return err
	}
	return s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		i := index(lines, p.ID)
		if i < 0 {
			return append(lines, Line{
				ProductID:    p.ID,
				Name:         p.Name,
				UnitPrice:    p.Price,
				Quantity:     clamp(quantity, p.Stock),
				StockCeiling: p.Stock,
			}), true
		}

		l := &lines[i]
		l.Name = p.Name
		l.UnitPrice = p.Price
		l.StockCeiling = p.Stock
		l.Quantity = clamp(l.Quantity+max(quantity, 0), p.Stock)
		return lines, true
	})
}

// RemoveItem deletes the line for productID. Absent products are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		i := index(lines, productID)
		if i < 0 {
			return lines, false
		}
		return slices.Delete(lines, i, i+1), true
	})
}

// UpdateQuantity sets the quantity for productID, clamped to the line's
// stock ceiling. Absent products are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	return s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		i := index(lines, productID)
		if i < 0 {
			return lines, false
		}
		lines[i].Quantity = clamp(quantity, lines[i].StockCeiling)
		return lines, true
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(lines []Line) ([]Line, bool) {
		return nil, true
	})
}

// Total returns Σ(UnitPrice × Quantity) over the current lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// mutate applies fn to a copy of the lines and commits the result only after
// it has been persisted.
func (s *Store) mutate(ctx context.Context, fn func([]Line) ([]Line, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(slices.Clone(s.lines))
	if !changed {
		return nil
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return errors.Wrap(err, "persist cart")
	}
	s.lines = next
	return nil
}

func index(lines []Line, productID string) int {
	return slices.IndexFunc(lines, func(l Line) bool { return l.ProductID == productID })
}
