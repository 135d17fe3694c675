package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowStock(t *testing.T) {
	products := []*Product{
		{Name: "Cable USB-C", Stock: 0},
		{Name: "Funda A12", Stock: 3},
		{Name: "Cargador 20W", Stock: 5},
		{Name: "Vidrio templado", Stock: 6},
	}

	low := LowStock(products, 5)
	assert.Len(t, low, 3)
	assert.Equal(t, "Cable USB-C", low[0].Name)
	assert.Equal(t, "Cargador 20W", low[2].Name)

	assert.Len(t, LowStock(products, 3), 2)
	assert.Empty(t, LowStock(nil, 5))
}

func TestLowStock_MonotonicInThreshold(t *testing.T) {
	products := []*Product{{Stock: 0}, {Stock: 1}, {Stock: 3}, {Stock: 4}, {Stock: 9}, {Stock: 30}}

	prev := 0
	for threshold := -1; threshold <= 31; threshold++ {
		n := len(LowStock(products, threshold))
		assert.GreaterOrEqual(t, n, prev, "threshold %d", threshold)
		prev = n
	}
	assert.Equal(t, len(products), prev)
}
