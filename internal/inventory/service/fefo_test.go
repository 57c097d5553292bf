package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
)

func day(offset int) *time.Time {
	t := time.Now().AddDate(0, 0, offset).Truncate(24 * time.Hour)
	return &t
}

func in(batch string, qty int, expiry *time.Time) *repository.StockMovement {
	m := &repository.StockMovement{
		Type:           repository.MovementIn,
		Quantity:       qty,
		ExpirationDate: expiry,
	}
	if batch != "" {
		m.BatchNumber = &batch
	}
	return m
}

func out(qty int) *repository.StockMovement {
	return &repository.StockMovement{Type: repository.MovementOut, Quantity: qty}
}

func expired(qty int) *repository.StockMovement {
	return &repository.StockMovement{Type: repository.MovementExpired, Quantity: qty}
}

func TestAllocateBatches_FEFOOrdering(t *testing.T) {
	// B1 expires first and must be drained before B2 is touched
	movements := []*repository.StockMovement{
		in("B2", 5, day(20)),
		in("B1", 5, day(10)),
		out(7),
	}

	batches := AllocateBatches(movements)

	require.Len(t, batches, 1)
	assert.Equal(t, "B2", batches[0].BatchNumber)
	assert.Equal(t, 3, batches[0].Quantity)
}

func TestAllocateBatches_NullExpiryDepletedLast(t *testing.T) {
	movements := []*repository.StockMovement{
		in("NO-EXPIRY", 10, nil),
		in("EXPIRING", 10, day(5)),
		out(12),
	}

	batches := AllocateBatches(movements)

	// The expiring batch is fully consumed before the never-expiring one
	require.Len(t, batches, 1)
	assert.Equal(t, "NO-EXPIRY", batches[0].BatchNumber)
	assert.Equal(t, 8, batches[0].Quantity)
}

func TestAllocateBatches_FirstObservedExpiryWins(t *testing.T) {
	cost1 := 2.50
	cost2 := 9.99

	movements := []*repository.StockMovement{
		{Type: repository.MovementIn, Quantity: 5, BatchNumber: strPtr("L1"), ExpirationDate: day(10), UnitCost: &cost1},
		{Type: repository.MovementIn, Quantity: 3, BatchNumber: strPtr("L1"), ExpirationDate: day(99), UnitCost: &cost2},
	}

	batches := AllocateBatches(movements)

	require.Len(t, batches, 1)
	assert.Equal(t, 8, batches[0].Quantity)
	assert.Equal(t, *day(10), *batches[0].ExpirationDate)
	assert.Equal(t, 2.50, *batches[0].UnitCost)
}

func TestAllocateBatches_ExpiredMovementsDeplete(t *testing.T) {
	movements := []*repository.StockMovement{
		in("L1", 10, day(3)),
		in("L2", 10, day(30)),
		expired(10),
	}

	batches := AllocateBatches(movements)

	require.Len(t, batches, 1)
	assert.Equal(t, "L2", batches[0].BatchNumber)
	assert.Equal(t, 10, batches[0].Quantity)
}

func TestAllocateBatches_ExhaustedBatchesFiltered(t *testing.T) {
	movements := []*repository.StockMovement{
		in("L1", 5, day(1)),
		in("L2", 5, day(2)),
		out(10),
	}

	assert.Empty(t, AllocateBatches(movements))
}

func TestAllocateBatches_DepletionExceedsBatches(t *testing.T) {
	// Unbatched INs raised the projection, so total OUT can exceed the
	// batched quantity without being an error
	movements := []*repository.StockMovement{
		in("", 20, nil),
		in("L1", 5, day(10)),
		out(15),
	}

	assert.Empty(t, AllocateBatches(movements))
}

func TestAllocateBatches_UnbatchedInsIgnored(t *testing.T) {
	movements := []*repository.StockMovement{
		in("", 50, nil),
		in("L1", 5, day(10)),
	}

	batches := AllocateBatches(movements)

	require.Len(t, batches, 1)
	assert.Equal(t, "L1", batches[0].BatchNumber)
	assert.Equal(t, 5, batches[0].Quantity)
}

func TestAllocateBatches_AdjustmentsDoNotDeplete(t *testing.T) {
	movements := []*repository.StockMovement{
		in("L1", 10, day(10)),
		{Type: repository.MovementAdjustment, Quantity: 3},
	}

	batches := AllocateBatches(movements)

	require.Len(t, batches, 1)
	assert.Equal(t, 10, batches[0].Quantity)
}

func TestAllocateBatches_Empty(t *testing.T) {
	assert.Empty(t, AllocateBatches(nil))
}

func TestAllocateBatches_SortStability(t *testing.T) {
	// Same expiry keeps first-observed order
	movements := []*repository.StockMovement{
		in("A", 5, day(10)),
		in("B", 5, day(10)),
		out(5),
	}

	batches := AllocateBatches(movements)

	require.Len(t, batches, 1)
	assert.Equal(t, "B", batches[0].BatchNumber)
}

func TestNearestExpiry(t *testing.T) {
	assert.Nil(t, NearestExpiry(nil))

	batches := []*BatchInfo{
		{BatchNumber: "A", ExpirationDate: day(20)},
		{BatchNumber: "B", ExpirationDate: day(5)},
		{BatchNumber: "C"},
	}
	require.NotNil(t, NearestExpiry(batches))
	assert.Equal(t, *day(5), *NearestExpiry(batches))
}

func TestFilterExpiringWithin(t *testing.T) {
	now := time.Now()
	batches := []*BatchInfo{
		{BatchNumber: "SOON", Quantity: 5, ExpirationDate: day(10)},
		{BatchNumber: "LATER", Quantity: 5, ExpirationDate: day(90)},
		{BatchNumber: "PAST", Quantity: 5, ExpirationDate: day(-2)},
		{BatchNumber: "NEVER", Quantity: 5},
	}

	expiring := FilterExpiringWithin(batches, now, 30)

	require.Len(t, expiring, 1)
	assert.Equal(t, "SOON", expiring[0].BatchNumber)
}

func strPtr(s string) *string {
	return &s
}
