package sales

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/shared"
	"github.com/stragan/stragan/internal/stock"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memoryRepo struct {
	nextID    int64
	openDayID int64
	dayStatus map[int64]string
	sales     map[int64]RecordedSale
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:    1,
		dayStatus: make(map[int64]string),
		sales:     make(map[int64]RecordedSale),
	}
}

func (m *memoryRepo) openDay(id int64) {
	m.openDayID = id
	m.dayStatus[id] = "OPEN"
}

func (m *memoryRepo) closeDay(id int64) {
	if m.openDayID == id {
		m.openDayID = 0
	}
	m.dayStatus[id] = "CLOSED"
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetSale(_ context.Context, id int64) (RecordedSale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return RecordedSale{}, ErrSaleNotFound
	}
	return sale, nil
}

func (m *memoryRepo) ListSales(_ context.Context, dayID int64) ([]RecordedSale, error) {
	var out []RecordedSale
	for _, sale := range m.sales {
		if sale.DailyRecordID == dayID {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (m *memoryRepo) LockOpenDay(context.Context) (int64, error) {
	if m.openDayID == 0 {
		return 0, ErrDayNotOpen
	}
	return m.openDayID, nil
}

func (m *memoryRepo) DayStatus(_ context.Context, dayID int64) (string, error) {
	status, ok := m.dayStatus[dayID]
	if !ok {
		return "", ErrSaleNotFound
	}
	return status, nil
}

func (m *memoryRepo) InsertSale(_ context.Context, sale RecordedSale) (RecordedSale, error) {
	sale.ID = m.nextID
	m.nextID++
	m.sales[sale.ID] = sale
	return sale, nil
}

func (m *memoryRepo) LockSale(ctx context.Context, id int64) (RecordedSale, error) {
	return m.GetSale(ctx, id)
}

func (m *memoryRepo) MarkVoided(_ context.Context, id int64, voidedAt time.Time, reason, notes string) error {
	sale, ok := m.sales[id]
	if !ok {
		return ErrSaleNotFound
	}
	if sale.VoidedAt != nil {
		return ErrAlreadyVoided
	}
	sale.VoidedAt = &voidedAt
	sale.VoidReason = reason
	sale.VoidNotes = notes
	m.sales[id] = sale
	return nil
}

type memoryCatalog struct {
	variants map[int64]catalog.ProductVariant
}

func (m *memoryCatalog) GetVariant(_ context.Context, id int64) (catalog.ProductVariant, error) {
	variant, ok := m.variants[id]
	if !ok {
		return catalog.ProductVariant{}, catalog.ErrVariantNotFound
	}
	return variant, nil
}

type recordingStock struct {
	draws map[int64]decimal.Decimal
	err   error
}

func (r *recordingStock) ConsumeForSale(_ context.Context, ingredientID int64, qty decimal.Decimal) ([]stock.ConsumedBatch, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.draws == nil {
		r.draws = make(map[int64]decimal.Decimal)
	}
	r.draws[ingredientID] = r.draws[ingredientID].Add(qty)
	return nil, nil
}

type memoryIdem struct {
	keys map[string]bool
}

func (m *memoryIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func testVariants() *memoryCatalog {
	return &memoryCatalog{variants: map[int64]catalog.ProductVariant{
		1: {
			ID: 1, Name: "Kebab L", Price: dec("28.00"), Active: true,
			Recipe: []catalog.RecipeLine{
				{IngredientID: 1, QuantityPerUnit: dec("0.25"), IsPrimary: true},
				{IngredientID: 2, QuantityPerUnit: dec("1")},
			},
		},
		2: {ID: 2, Name: "Old kebab", Price: dec("20.00"), Active: false},
	}}
}

func TestRecordSaleCapturesUnitPrice(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	svc := NewService(repo, testVariants(), nil, nil, slog.Default())

	recorded, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("2")})
	require.NoError(t, err)
	require.Equal(t, int64(7), recorded.DailyRecordID)
	require.True(t, recorded.UnitPrice.Equal(dec("28.00")))
	require.True(t, recorded.Total().Equal(dec("56.00")))
	require.False(t, recorded.Voided())
}

func TestRecordSaleRequiresOpenDay(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testVariants(), nil, nil, slog.Default())

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1")})
	require.ErrorIs(t, err, ErrDayNotOpen)
	require.Empty(t, repo.sales)
}

func TestRecordSaleVerifiesNamedDay(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	svc := NewService(repo, testVariants(), nil, nil, slog.Default())

	// A stale client naming yesterday must not book against today.
	_, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1"), DayID: 6})
	require.ErrorIs(t, err, ErrDayMismatch)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Empty(t, repo.sales)

	recorded, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1"), DayID: 7})
	require.NoError(t, err)
	require.Equal(t, int64(7), recorded.DailyRecordID)
}

func TestRecordSaleRejectsInactiveVariant(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	svc := NewService(repo, testVariants(), nil, nil, slog.Default())

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 2, Quantity: dec("1")})
	require.ErrorIs(t, err, ErrVariantInactive)
}

func TestRecordSaleDepletesRecipeLines(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	stockPort := &recordingStock{}
	svc := NewService(repo, testVariants(), stockPort, nil, slog.Default())

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("2")})
	require.NoError(t, err)
	require.True(t, stockPort.draws[1].Equal(dec("0.5")), "meat draw %s", stockPort.draws[1])
	require.True(t, stockPort.draws[2].Equal(dec("2")), "pita draw %s", stockPort.draws[2])
}

func TestRecordSaleSurvivesShortShelf(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	stockPort := &recordingStock{err: stock.ErrShortStock}
	svc := NewService(repo, testVariants(), stockPort, nil, slog.Default())

	recorded, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1")})
	require.NoError(t, err)
	require.Contains(t, repo.sales, recorded.ID)
}

func TestRecordSaleDeduplicatesClientRef(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	svc := NewService(repo, testVariants(), nil, &memoryIdem{}, slog.Default())

	ref := "7d6c7e7a-6a35-4f3a-9b6b-2f1f9a1d4c11"
	_, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1"), ClientRef: ref})
	require.NoError(t, err)

	_, err = svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1"), ClientRef: ref})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, repo.sales, 1)
}

func TestRecordSaleReleasesKeyOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	idem := &memoryIdem{}
	svc := NewService(repo, testVariants(), nil, idem, slog.Default())

	ref := "7d6c7e7a-6a35-4f3a-9b6b-2f1f9a1d4c11"
	_, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1"), ClientRef: ref})
	require.ErrorIs(t, err, ErrDayNotOpen)
	require.Empty(t, idem.keys)

	// The same tap can retry once the day opens.
	repo.openDay(7)
	_, err = svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1"), ClientRef: ref})
	require.NoError(t, err)
}

func TestVoidSaleOnceThenFailsDeterministically(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	svc := NewService(repo, testVariants(), nil, nil, slog.Default())

	recorded, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1")})
	require.NoError(t, err)

	voided, err := svc.VoidSale(context.Background(), VoidSaleInput{SaleID: recorded.ID, Reason: "wrong item"})
	require.NoError(t, err)
	require.True(t, voided.Voided())
	require.Equal(t, "wrong item", voided.VoidReason)

	_, err = svc.VoidSale(context.Background(), VoidSaleInput{SaleID: recorded.ID, Reason: "wrong item"})
	require.ErrorIs(t, err, ErrAlreadyVoided)

	_, err = svc.VoidSale(context.Background(), VoidSaleInput{SaleID: recorded.ID, Reason: "wrong item"})
	require.ErrorIs(t, err, ErrAlreadyVoided)
}

func TestVoidSaleFailsOnClosedDay(t *testing.T) {
	repo := newMemoryRepo()
	repo.openDay(7)
	svc := NewService(repo, testVariants(), nil, nil, slog.Default())

	recorded, err := svc.RecordSale(context.Background(), RecordSaleInput{VariantID: 1, Quantity: dec("1")})
	require.NoError(t, err)

	repo.closeDay(7)
	_, err = svc.VoidSale(context.Background(), VoidSaleInput{SaleID: recorded.ID, Reason: "late void"})
	require.ErrorIs(t, err, ErrDayClosed)
	require.NotErrorIs(t, err, ErrAlreadyVoided)
}
