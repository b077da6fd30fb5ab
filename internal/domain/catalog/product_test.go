package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
)

func TestCheckStock(t *testing.T) {
	p := &Product{ID: "p1", Name: "Kettle", Price: decimal.NewFromInt(30), Stock: 2}
	require.NoError(t, CheckStock(p))

	p.Stock = 0
	err := CheckStock(p)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.OutOfStock))
	assert.Contains(t, err.Error(), "Kettle is out of stock")
}
