package stock

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func testBatch(id int64, remaining string, expiry *time.Time, createdAt time.Time) Batch {
	return Batch{
		ID:           id,
		IngredientID: 1,
		BatchNumber:  fmt.Sprintf("B-%d", id),
		ExpiryDate:   expiry,
		InitialQty:   dec(remaining),
		RemainingQty: dec(remaining),
		Location:     LocationShop,
		Active:       true,
		CreatedAt:    createdAt,
	}
}

func TestPlanConsumptionDrawsEarliestExpiryFirst(t *testing.T) {
	now := time.Now()
	batches := []Batch{
		testBatch(1, "5", date("2026-09-10"), now),
		testBatch(2, "5", date("2026-09-02"), now),
		testBatch(3, "5", date("2026-09-05"), now),
	}

	draws, err := PlanConsumption(batches, dec("7"))
	require.NoError(t, err)
	require.Len(t, draws, 2)
	require.Equal(t, int64(2), draws[0].Batch.ID)
	require.True(t, draws[0].Quantity.Equal(dec("5")))
	require.Equal(t, int64(3), draws[1].Batch.ID)
	require.True(t, draws[1].Quantity.Equal(dec("2")))
}

func TestPlanConsumptionPutsNoExpiryLast(t *testing.T) {
	now := time.Now()
	batches := []Batch{
		testBatch(1, "5", nil, now.Add(-time.Hour)),
		testBatch(2, "5", date("2026-12-31"), now),
	}

	draws, err := PlanConsumption(batches, dec("6"))
	require.NoError(t, err)
	require.Len(t, draws, 2)
	require.Equal(t, int64(2), draws[0].Batch.ID)
	require.Equal(t, int64(1), draws[1].Batch.ID)
}

func TestPlanConsumptionBreaksExpiryTiesByCreation(t *testing.T) {
	now := time.Now()
	batches := []Batch{
		testBatch(1, "5", date("2026-09-05"), now),
		testBatch(2, "5", date("2026-09-05"), now.Add(-2*time.Hour)),
	}

	draws, err := PlanConsumption(batches, dec("1"))
	require.NoError(t, err)
	require.Len(t, draws, 1)
	require.Equal(t, int64(2), draws[0].Batch.ID)
}

func TestPlanConsumptionSkipsInactiveAndDrained(t *testing.T) {
	now := time.Now()
	inactive := testBatch(1, "5", date("2026-09-01"), now)
	inactive.Active = false
	drained := testBatch(2, "0", date("2026-09-01"), now)
	live := testBatch(3, "3", date("2026-09-09"), now)

	draws, err := PlanConsumption([]Batch{inactive, drained, live}, dec("3"))
	require.NoError(t, err)
	require.Len(t, draws, 1)
	require.Equal(t, int64(3), draws[0].Batch.ID)
}

func TestPlanConsumptionShortStockReturnsNoPlan(t *testing.T) {
	now := time.Now()
	batches := []Batch{
		testBatch(1, "2", date("2026-09-05"), now),
		testBatch(2, "1.5", date("2026-09-06"), now),
	}

	draws, err := PlanConsumption(batches, dec("3.51"))
	require.ErrorIs(t, err, ErrShortStock)
	require.Nil(t, draws)
}

func TestPlanConsumptionExactDrain(t *testing.T) {
	now := time.Now()
	batches := []Batch{
		testBatch(1, "2", date("2026-09-05"), now),
		testBatch(2, "1.5", date("2026-09-06"), now),
	}

	draws, err := PlanConsumption(batches, dec("3.5"))
	require.NoError(t, err)
	require.Len(t, draws, 2)
	require.True(t, draws[1].Quantity.Equal(dec("1.5")))
}
