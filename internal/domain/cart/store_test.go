package cart

import (
	"context"
	"slices"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-faster/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/catalog"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
)

// --- Mock implementations ---

type memRepo struct {
	stored  []Line
	saves   int
	saveErr error
	loadErr error
}

func (m *memRepo) Load(_ context.Context) ([]Line, error) {
	return slices.Clone(m.stored), m.loadErr
}

func (m *memRepo) Save(_ context.Context, lines []Line) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.stored = slices.Clone(lines)
	return nil
}

// --- Helpers ---

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func newProduct(id string, price string, stock int) *catalog.Product {
	return &catalog.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func openStore(t *testing.T, repo *memRepo) *Store {
	t.Helper()
	s, err := Open(context.Background(), repo)
	require.NoError(t, err)
	return s
}

// --- Tests ---

func TestAddItem_InsertsAndPersists(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)

	require.NoError(t, s.AddItem(context.Background(), newProduct("A", "10.00", 5), 2))

	want := []Line{{ProductID: "A", Name: "Product A", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2, StockCeiling: 5}}
	if diff := cmp.Diff(want, s.Lines(), decimalEqual); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, repo.stored, decimalEqual); diff != "" {
		t.Errorf("stored mismatch (-want +got):\n%s", diff)
	}
}

func TestAddItem_MergesAndClamps(t *testing.T) {
	tests := []struct {
		name   string
		first  int
		second int
		stock  int
		want   int
	}{
		{name: "sum below ceiling", first: 1, second: 2, stock: 10, want: 3},
		{name: "sum clamps to ceiling", first: 3, second: 4, stock: 5, want: 5},
		{name: "zero quantity clamps to one", first: 0, second: 0, stock: 5, want: 1},
		{name: "first add above ceiling", first: 9, second: 1, stock: 4, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := openStore(t, &memRepo{})
			p := newProduct("A", "1.50", tt.stock)

			require.NoError(t, s.AddItem(ctx, p, tt.first))
			require.NoError(t, s.AddItem(ctx, p, tt.second))

			lines := s.Lines()
			require.Len(t, lines, 1)
			assert.Equal(t, tt.want, lines[0].Quantity)
		})
	}
}

func TestAddItem_RefreshesPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memRepo{})

	require.NoError(t, s.AddItem(ctx, newProduct("A", "10.00", 5), 1))
	require.NoError(t, s.AddItem(ctx, newProduct("A", "12.00", 3), 1))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.True(t, decimal.RequireFromString("12.00").Equal(lines[0].UnitPrice))
	assert.Equal(t, 3, lines[0].StockCeiling)
}

func TestAddItem_OutOfStock(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)

	err := s.AddItem(context.Background(), newProduct("A", "10.00", 0), 1)
	require.Error(t, err)
	assert.Equal(t, failure.OutOfStock, failure.KindOf(err))
	assert.Zero(t, s.Len())
	assert.Zero(t, repo.saves)
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := openStore(t, repo)
	require.NoError(t, s.AddItem(ctx, newProduct("A", "1", 5), 1))
	require.NoError(t, s.AddItem(ctx, newProduct("B", "2", 5), 1))

	require.NoError(t, s.RemoveItem(ctx, "A"))
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].ProductID)

	saves := repo.saves
	require.NoError(t, s.RemoveItem(ctx, "missing"))
	assert.Equal(t, saves, repo.saves, "removing an absent product must not write")
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memRepo{})
	require.NoError(t, s.AddItem(ctx, newProduct("A", "1", 6), 1))

	require.NoError(t, s.UpdateQuantity(ctx, "A", 5))
	require.NoError(t, s.UpdateQuantity(ctx, "A", 1))
	assert.Equal(t, 1, s.Lines()[0].Quantity, "last write wins")

	require.NoError(t, s.UpdateQuantity(ctx, "A", 100))
	assert.Equal(t, 6, s.Lines()[0].Quantity)

	require.NoError(t, s.UpdateQuantity(ctx, "A", -3))
	assert.Equal(t, 1, s.Lines()[0].Quantity)

	require.NoError(t, s.UpdateQuantity(ctx, "missing", 3))
	assert.Equal(t, 1, s.Len())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := openStore(t, repo)
	require.NoError(t, s.AddItem(ctx, newProduct("A", "1", 5), 1))

	require.NoError(t, s.Clear(ctx))
	assert.Zero(t, s.Len())
	assert.Empty(t, repo.stored)
}

func TestTotal(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, &memRepo{})
	assert.True(t, decimal.Zero.Equal(s.Total()))

	require.NoError(t, s.AddItem(ctx, newProduct("A", "10.00", 5), 2))
	require.NoError(t, s.AddItem(ctx, newProduct("B", "0.35", 9), 3))

	assert.Equal(t, "21.05", s.Total().StringFixed(2))
}

func TestMutation_PersistFailureKeepsLastCommittedState(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := openStore(t, repo)
	require.NoError(t, s.AddItem(ctx, newProduct("A", "10.00", 5), 2))

	repo.saveErr = errors.New("disk full")

	require.Error(t, s.AddItem(ctx, newProduct("B", "1.00", 5), 1))
	require.Error(t, s.UpdateQuantity(ctx, "A", 4))
	require.Error(t, s.Clear(ctx))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestOpen_RestoresCommittedState(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := openStore(t, repo)
	require.NoError(t, s.AddItem(ctx, newProduct("A", "10.00", 5), 2))
	require.NoError(t, s.AddItem(ctx, newProduct("B", "3.00", 5), 1))

	reopened := openStore(t, repo)
	if diff := cmp.Diff(s.Lines(), reopened.Lines(), decimalEqual); diff != "" {
		t.Errorf("reopened cart mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_NormalizesStoredQuantities(t *testing.T) {
	repo := &memRepo{stored: []Line{
		{ProductID: "A", UnitPrice: decimal.NewFromInt(1), Quantity: 50, StockCeiling: 3},
		{ProductID: "", Quantity: 1, StockCeiling: 1},
		{ProductID: "B", UnitPrice: decimal.NewFromInt(1), Quantity: 0, StockCeiling: 3},
	}}
	s := openStore(t, repo)

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestOpen_LoadError(t *testing.T) {
	_, err := Open(context.Background(), &memRepo{loadErr: errors.New("unreachable")})
	require.ErrorContains(t, err, "load cart")
}

func TestRandomMutations_QuantityStaysInBounds(t *testing.T) {
	ctx := context.Background()
	f := gofakeit.New(42)
	s := openStore(t, &memRepo{})

	products := make([]*catalog.Product, 4)
	for i := range products {
		products[i] = &catalog.Product{
			ID:    f.UUID(),
			Name:  f.ProductName(),
			Price: decimal.NewFromFloat(f.Price(1, 100)).Round(2),
			Stock: f.IntRange(1, 8),
		}
	}

	for range 500 {
		p := products[f.IntRange(0, len(products)-1)]
		switch f.IntRange(0, 2) {
		case 0:
			require.NoError(t, s.AddItem(ctx, p, f.IntRange(-2, 12)))
		case 1:
			require.NoError(t, s.UpdateQuantity(ctx, p.ID, f.IntRange(-5, 20)))
		case 2:
			if f.IntRange(0, 9) == 0 {
				require.NoError(t, s.RemoveItem(ctx, p.ID))
			}
		}

		want := decimal.Zero
		seen := make(map[string]bool)
		for _, l := range s.Lines() {
			require.False(t, seen[l.ProductID], "duplicate line for %s", l.ProductID)
			seen[l.ProductID] = true
			require.GreaterOrEqual(t, l.Quantity, 1)
			require.LessOrEqual(t, l.Quantity, l.StockCeiling)
			want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		require.True(t, want.Equal(s.Total()))
	}
}
