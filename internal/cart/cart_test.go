package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
)

func line(id string, price string, stock int) Line {
	return Line{ProductID: id, Name: "Perfume " + id, Price: decimal.RequireFromString(price), Stock: stock}
}

func TestAddMergesByProductID(t *testing.T) {
	var c Cart
	assert.Nil(t, c.Add(line("p1", "100", 5), 2))
	assert.Nil(t, c.Add(line("p1", "100", 5), 1))

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestAddPastStockLeavesQuantityUnchanged(t *testing.T) {
	var c Cart
	c.Add(line("p1", "100", 3), 2)

	w := c.Add(line("p1", "100", 3), 2)
	require.NotNil(t, w)
	assert.Equal(t, WarningStockExceeded, w.Code)
	assert.Equal(t, 3, w.Available)
	assert.Equal(t, 2, c.Lines[0].Quantity)
}

func TestAddNewLineClampsToStock(t *testing.T) {
	var c Cart
	w := c.Add(line("p1", "100", 2), 10)
	require.NotNil(t, w)
	assert.Equal(t, WarningClamped, w.Code)
	assert.Equal(t, 2, c.Lines[0].Quantity)

	assert.Nil(t, c.Add(line("p2", "100", 2), 0))
	l, ok := c.Line("p2")
	require.True(t, ok)
	assert.Equal(t, 1, l.Quantity)
}

func TestAddRefusesOutOfStock(t *testing.T) {
	var c Cart
	w := c.Add(line("p1", "100", 0), 1)
	require.NotNil(t, w)
	assert.Equal(t, WarningOutOfStock, w.Code)
	assert.True(t, c.Empty())
}

func TestUpdate(t *testing.T) {
	var c Cart
	c.Add(line("p1", "100", 4), 1)
	c.Add(line("p2", "50", 4), 1)

	w, err := c.Update("p1", 3)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.Equal(t, 3, c.Lines[0].Quantity)

	w, err = c.Update("p1", 9)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 4, c.Lines[0].Quantity)

	_, err = c.Update("missing", 1)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestUpdateAfterSellOutDropsLine(t *testing.T) {
	var c Cart
	c.Add(line("p1", "100", 5), 2)
	c.Refresh(line("p1", "100", 0))

	w, err := c.Update("p1", 3)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, WarningOutOfStock, w.Code)
	assert.True(t, c.Empty())
	assert.Zero(t, c.TotalItems())
}

func TestUpdateNonPositiveRemoves(t *testing.T) {
	for _, qty := range []int{0, -1} {
		var c Cart
		c.Add(line("p1", "100", 4), 1)
		c.Add(line("p2", "50", 4), 1)

		_, err := c.Update("p1", qty)
		require.NoError(t, err)
		_, ok := c.Line("p1")
		assert.False(t, ok)
		assert.Len(t, c.Lines, 1)
	}
}

func TestTotals(t *testing.T) {
	var c Cart
	assert.True(t, c.TotalPrice().IsZero())

	c.Add(line("p1", "1299.90", 10), 2)
	c.Add(line("p2", "0.10", 10), 3)
	c.Add(line("p3", "450", 10), 1)

	want := decimal.Zero
	items := 0
	for _, l := range c.Lines {
		want = want.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		items += l.Quantity
	}
	assert.True(t, want.Equal(c.TotalPrice()))
	assert.Equal(t, "3050.1", c.TotalPrice().String())
	assert.Equal(t, items, c.TotalItems())
}

func TestRemoveClearRefresh(t *testing.T) {
	var c Cart
	c.Add(line("p1", "100", 4), 2)
	c.Add(line("p2", "50", 4), 1)

	c.Refresh(line("p1", "120", 8))
	l, _ := c.Line("p1")
	assert.Equal(t, 2, l.Quantity)
	assert.Equal(t, 8, l.Stock)

	assert.True(t, c.Remove("p2"))
	assert.False(t, c.Remove("p2"))
	c.Clear()
	assert.True(t, c.Empty())
	assert.Zero(t, c.TotalItems())
}

func TestSnapshotDropsInlineImages(t *testing.T) {
	p := domain.Product{ID: "p1", Name: "Noir", Category: domain.CategoryUnisex, Price: decimal.NewFromInt(10), Stock: 3, Image: "data:image/png;base64,AAAA"}
	assert.Empty(t, Snapshot(p).Image)

	p.Image = "https://cdn.example/noir.png"
	s := Snapshot(p)
	assert.Equal(t, "https://cdn.example/noir.png", s.Image)
	assert.Equal(t, "Unisex", s.Category)
	assert.Zero(t, s.Quantity)
}
