package stock

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	batches   []Batch
	movements []Movement
	openDayID *int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1}
}

func (m *memoryRepo) WithTx(_ context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(context.Background(), m)
}

func (m *memoryRepo) ListActiveBatches(_ context.Context, ingredientID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range m.batches {
		if b.Active && (ingredientID == 0 || b.IngredientID == ingredientID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListMovements(_ context.Context, dailyRecordID int64) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if mv.DailyRecordID != nil && *mv.DailyRecordID == dailyRecordID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memoryRepo) LockEligibleBatches(_ context.Context, ingredientID int64, location Location) ([]Batch, error) {
	var out []Batch
	for _, b := range m.batches {
		if b.IngredientID == ingredientID && b.Location == location && b.Active && b.RemainingQty.IsPositive() {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) InsertBatch(_ context.Context, batch Batch) (Batch, error) {
	batch.ID = m.nextID
	m.nextID++
	batch.Active = true
	m.batches = append(m.batches, batch)
	return batch, nil
}

func (m *memoryRepo) UpdateBatchRemaining(_ context.Context, batchID int64, remaining decimal.Decimal, active bool) error {
	for i := range m.batches {
		if m.batches[i].ID == batchID {
			m.batches[i].RemainingQty = remaining
			m.batches[i].Active = active
			return nil
		}
	}
	return nil
}

func (m *memoryRepo) InsertMovement(_ context.Context, movement Movement) error {
	movement.ID = int64(len(m.movements) + 1)
	m.movements = append(m.movements, movement)
	return nil
}

func (m *memoryRepo) OpenDayID(context.Context) (*int64, error) {
	return m.openDayID, nil
}

func (m *memoryRepo) batchByID(id int64) Batch {
	for _, b := range m.batches {
		if b.ID == id {
			return b
		}
	}
	return Batch{}
}

type memoryCatalog struct {
	ingredients map[int64]catalog.Ingredient
}

func (m *memoryCatalog) GetIngredient(_ context.Context, id int64) (catalog.Ingredient, error) {
	ing, ok := m.ingredients[id]
	if !ok {
		return catalog.Ingredient{}, catalog.ErrIngredientNotFound
	}
	return ing, nil
}

func testIngredients() *memoryCatalog {
	return &memoryCatalog{ingredients: map[int64]catalog.Ingredient{
		1: {ID: 1, Name: "Kebab meat", UnitType: catalog.UnitTypeWeight, UnitLabel: "kg"},
		2: {ID: 2, Name: "Pita", UnitType: catalog.UnitTypeCount, UnitLabel: "pcs"},
	}}
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, testIngredients(), slog.Default())
}

func TestApplyDeliveryCreatesBatchAndMovement(t *testing.T) {
	repo := newMemoryRepo()
	dayID := int64(4)
	repo.openDayID = &dayID
	svc := newTestService(repo)

	created, err := svc.ApplyDelivery(context.Background(), DeliveryInput{
		IngredientID: 1,
		Quantity:     dec("10.5"),
		Destination:  LocationStorage,
		ExpiryDate:   date("2026-09-15"),
	})
	require.NoError(t, err)
	require.True(t, created.Active)
	require.True(t, created.RemainingQty.Equal(dec("10.5")))
	require.True(t, strings.HasPrefix(created.BatchNumber, "B-"))

	require.Len(t, repo.movements, 1)
	mv := repo.movements[0]
	require.Equal(t, MovementDelivery, mv.Type)
	require.Equal(t, LocationStorage, mv.To)
	require.NotNil(t, mv.DailyRecordID)
	require.Equal(t, int64(4), *mv.DailyRecordID)
}

func TestApplyDeliveryOutsideOpenDayCarriesNoDayID(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.ApplyDelivery(context.Background(), DeliveryInput{
		IngredientID: 2, Quantity: dec("20"), Destination: LocationShop,
	})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	require.Nil(t, repo.movements[0].DailyRecordID)
}

func TestApplyDeliveryRejectsFractionalCount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.ApplyDelivery(context.Background(), DeliveryInput{
		IngredientID: 2, Quantity: dec("2.5"), Destination: LocationShop,
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.Empty(t, repo.batches)
	require.Empty(t, repo.movements)
}

func TestApplyDeliveryKeepsLotsSeparate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.ApplyDelivery(context.Background(), DeliveryInput{
		IngredientID: 1, Quantity: dec("5"), Destination: LocationStorage, ExpiryDate: date("2026-09-10"),
	})
	require.NoError(t, err)
	_, err = svc.ApplyDelivery(context.Background(), DeliveryInput{
		IngredientID: 1, Quantity: dec("5"), Destination: LocationStorage, ExpiryDate: date("2026-09-20"),
	})
	require.NoError(t, err)
	require.Len(t, repo.batches, 2)
	require.False(t, repo.batches[0].ExpiryDate.Equal(*repo.batches[1].ExpiryDate))
}

func TestApplyTransferPreservesExpiryAtDestination(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	expiry := date("2026-09-12")
	source, err := repo.InsertBatch(context.Background(), Batch{
		IngredientID: 1, BatchNumber: "B-src", ExpiryDate: expiry,
		InitialQty: dec("8"), RemainingQty: dec("8"), Location: LocationStorage,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	consumed, err := svc.ApplyTransfer(context.Background(), TransferInput{
		IngredientID: 1, Quantity: dec("3"), From: LocationStorage, To: LocationShop,
	})
	require.NoError(t, err)
	require.Len(t, consumed, 1)
	require.Equal(t, source.ID, consumed[0].BatchID)
	require.True(t, consumed[0].Remaining.Equal(dec("5")))

	require.True(t, repo.batchByID(source.ID).RemainingQty.Equal(dec("5")))

	arrival := repo.batchByID(source.ID + 1)
	require.Equal(t, LocationShop, arrival.Location)
	require.True(t, strings.HasSuffix(arrival.BatchNumber, "-T"))
	require.NotEqual(t, source.BatchNumber, arrival.BatchNumber)
	require.NotNil(t, arrival.ExpiryDate)
	require.True(t, arrival.ExpiryDate.Equal(*expiry))
	require.True(t, arrival.RemainingQty.Equal(dec("3")))
}

func TestApplySpoilageDrainsAndRetiresBatches(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	b, err := repo.InsertBatch(context.Background(), Batch{
		IngredientID: 1, BatchNumber: "B-1",
		InitialQty: dec("2"), RemainingQty: dec("2"), Location: LocationShop,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	consumed, err := svc.ApplySpoilage(context.Background(), SpoilageInput{
		IngredientID: 1, Quantity: dec("2"), Reason: "dropped tray", Location: LocationShop,
	})
	require.NoError(t, err)
	require.Len(t, consumed, 1)
	require.True(t, consumed[0].Remaining.IsZero())
	require.False(t, repo.batchByID(b.ID).Active)

	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementSpoilage, repo.movements[0].Type)
	require.Equal(t, "dropped tray", repo.movements[0].Reason)
}

func TestApplySpoilageRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.ApplySpoilage(context.Background(), SpoilageInput{
		IngredientID: 1, Quantity: dec("1"), Reason: "  ", Location: LocationShop,
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestConsumeForSaleShortStockLeavesBatchesUntouched(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	b, err := repo.InsertBatch(context.Background(), Batch{
		IngredientID: 1, BatchNumber: "B-1",
		InitialQty: dec("0.2"), RemainingQty: dec("0.2"), Location: LocationShop,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = svc.ConsumeForSale(context.Background(), 1, dec("0.25"))
	require.ErrorIs(t, err, ErrShortStock)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.True(t, repo.batchByID(b.ID).RemainingQty.Equal(dec("0.2")))
	require.Empty(t, repo.movements)
}

func TestConsumeForSaleIgnoresStorageStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	_, err := repo.InsertBatch(context.Background(), Batch{
		IngredientID: 1, BatchNumber: "B-1",
		InitialQty: dec("5"), RemainingQty: dec("5"), Location: LocationStorage,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = svc.ConsumeForSale(context.Background(), 1, dec("0.25"))
	require.ErrorIs(t, err, ErrShortStock)
}

func TestConsumeForSaleSpansBatches(t *testing.T) {
	repo := newMemoryRepo()
	dayID := int64(9)
	repo.openDayID = &dayID
	svc := newTestService(repo)
	_, err := repo.InsertBatch(context.Background(), Batch{
		IngredientID: 1, BatchNumber: "B-1",
		InitialQty: dec("0.3"), RemainingQty: dec("0.3"), Location: LocationShop,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	_, err = repo.InsertBatch(context.Background(), Batch{
		IngredientID: 1, BatchNumber: "B-2",
		InitialQty: dec("1"), RemainingQty: dec("1"), Location: LocationShop,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	consumed, err := svc.ConsumeForSale(context.Background(), 1, dec("0.5"))
	require.NoError(t, err)
	require.Len(t, consumed, 2)
	require.True(t, consumed[0].Quantity.Equal(dec("0.3")))
	require.True(t, consumed[1].Quantity.Equal(dec("0.2")))

	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementSale, repo.movements[0].Type)
	require.Equal(t, int64(9), *repo.movements[0].DailyRecordID)
}
