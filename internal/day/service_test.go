package day

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	days      map[int64]DailyRecord
	snapshots map[int64]map[SnapshotType]map[int64]decimal.Decimal
	flows     map[int64]map[int64]Flows
	expected  map[int64]map[int64]decimal.Decimal
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:    1,
		days:      make(map[int64]DailyRecord),
		snapshots: make(map[int64]map[SnapshotType]map[int64]decimal.Decimal),
		flows:     make(map[int64]map[int64]Flows),
		expected:  make(map[int64]map[int64]decimal.Decimal),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetDay(_ context.Context, id int64) (DailyRecord, error) {
	day, ok := m.days[id]
	if !ok {
		return DailyRecord{}, ErrDayNotFound
	}
	return day, nil
}

func (m *memoryRepo) OpenDay(context.Context) (DailyRecord, error) {
	for _, day := range m.days {
		if day.Status == StatusOpen {
			return day, nil
		}
	}
	return DailyRecord{}, ErrDayNotFound
}

func (m *memoryRepo) InsertDay(_ context.Context, date, openedAt time.Time) (DailyRecord, error) {
	for _, day := range m.days {
		if day.Status == StatusOpen {
			return DailyRecord{}, ErrDayAlreadyOpen
		}
	}
	day := DailyRecord{ID: m.nextID, Date: date, Status: StatusOpen, OpenedAt: openedAt}
	m.nextID++
	m.days[day.ID] = day
	m.snapshots[day.ID] = map[SnapshotType]map[int64]decimal.Decimal{
		SnapshotOpen:  {},
		SnapshotClose: {},
	}
	return day, nil
}

func (m *memoryRepo) LockDay(ctx context.Context, id int64) (DailyRecord, error) {
	return m.GetDay(ctx, id)
}

func (m *memoryRepo) InsertSnapshots(_ context.Context, dayID int64, kind SnapshotType, snapshots []SnapshotInput) error {
	for _, s := range snapshots {
		m.snapshots[dayID][kind][s.IngredientID] = s.Quantity
	}
	return nil
}

func (m *memoryRepo) UpsertCloseSnapshots(ctx context.Context, dayID int64, snapshots []SnapshotInput) error {
	return m.InsertSnapshots(ctx, dayID, SnapshotClose, snapshots)
}

func (m *memoryRepo) SnapshotQuantities(_ context.Context, dayID int64, kind SnapshotType) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	for id, qty := range m.snapshots[dayID][kind] {
		out[id] = qty
	}
	return out, nil
}

func (m *memoryRepo) MarkClosed(_ context.Context, id int64, closedAt time.Time, notes string) error {
	day, ok := m.days[id]
	if !ok || day.Status != StatusOpen {
		return ErrDayClosed
	}
	day.Status = StatusClosed
	day.ClosedAt = &closedAt
	day.Notes = notes
	m.days[id] = day
	return nil
}

func (m *memoryRepo) FlowTotals(_ context.Context, dayID int64) (map[int64]Flows, error) {
	out := make(map[int64]Flows)
	for id, f := range m.flows[dayID] {
		out[id] = f
	}
	return out, nil
}

func (m *memoryRepo) ExpectedUsage(_ context.Context, dayID int64) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	for id, qty := range m.expected[dayID] {
		out[id] = qty
	}
	return out, nil
}

type memoryCatalog struct {
	ingredients map[int64]catalog.Ingredient
}

func (m *memoryCatalog) IngredientsByID(_ context.Context, ids []int64) (map[int64]catalog.Ingredient, error) {
	out := make(map[int64]catalog.Ingredient, len(ids))
	for _, id := range ids {
		if ing, ok := m.ingredients[id]; ok {
			out[id] = ing
		}
	}
	return out, nil
}

func (m *memoryCatalog) ListIngredients(context.Context) ([]catalog.Ingredient, error) {
	out := make([]catalog.Ingredient, 0, len(m.ingredients))
	for _, ing := range m.ingredients {
		out = append(out, ing)
	}
	return out, nil
}

func testCatalog() *memoryCatalog {
	return &memoryCatalog{ingredients: map[int64]catalog.Ingredient{
		1: {ID: 1, Name: "Kebab meat", UnitType: catalog.UnitTypeWeight, UnitLabel: "kg"},
		2: {ID: 2, Name: "Pita", UnitType: catalog.UnitTypeCount, UnitLabel: "pcs"},
	}}
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, testCatalog(), slog.Default())
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC) })
	return svc
}

func openTestDay(t *testing.T, svc *Service) DailyRecord {
	t.Helper()
	opened, err := svc.OpenDay(context.Background(), OpenDayInput{
		Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Snapshots: []SnapshotInput{
			{IngredientID: 1, Quantity: dec("10.5")},
			{IngredientID: 2, Quantity: dec("40")},
		},
	})
	require.NoError(t, err)
	return opened
}

func TestOpenDayRejectsSecondOpen(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	openTestDay(t, svc)

	_, err := svc.OpenDay(context.Background(), OpenDayInput{
		Date: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		Snapshots: []SnapshotInput{
			{IngredientID: 1, Quantity: dec("1")},
			{IngredientID: 2, Quantity: dec("5")},
		},
	})
	require.ErrorIs(t, err, ErrDayAlreadyOpen)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestOpenDayRequiresEveryOpeningCount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.OpenDay(context.Background(), OpenDayInput{
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Snapshots: []SnapshotInput{{IngredientID: 1, Quantity: dec("10.5")}},
	})
	require.ErrorIs(t, err, ErrMissingSnapshot)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	// Nothing opened.
	_, err = svc.CurrentOpenDay(context.Background())
	require.ErrorIs(t, err, ErrDayNotFound)
}

func TestOpenDayRejectsFractionalCount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.OpenDay(context.Background(), OpenDayInput{
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Snapshots: []SnapshotInput{{IngredientID: 2, Quantity: dec("3.5")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestOpenDayRejectsUnknownIngredient(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.OpenDay(context.Background(), OpenDayInput{
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Snapshots: []SnapshotInput{{IngredientID: 99, Quantity: dec("1")}},
	})
	require.ErrorIs(t, err, catalog.ErrIngredientNotFound)
}

func TestCloseDayRequiresEveryClosingCount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	opened := openTestDay(t, svc)

	_, err := svc.CloseDay(context.Background(), CloseDayInput{
		DayID:     opened.ID,
		Snapshots: []SnapshotInput{{IngredientID: 1, Quantity: dec("12.0")}},
	})
	require.ErrorIs(t, err, ErrMissingSnapshot)

	// Nothing committed: the day is still open.
	record, err := svc.GetDay(context.Background(), opened.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, record.Status)
}

func TestCloseDayRejectsCountWithoutOpening(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	opened := openTestDay(t, svc)

	_, err := svc.CloseDay(context.Background(), CloseDayInput{
		DayID: opened.ID,
		Snapshots: []SnapshotInput{
			{IngredientID: 1, Quantity: dec("12.0")},
			{IngredientID: 2, Quantity: dec("10")},
			{IngredientID: 3, Quantity: dec("1")},
		},
	})
	require.ErrorIs(t, err, ErrUnknownSnapshot)
}

func TestCloseDayComputesUsageAndCloses(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	opened := openTestDay(t, svc)

	repo.flows[opened.ID] = map[int64]Flows{
		1: {DeliveriesIn: dec("5.0"), SpoilageOut: dec("0.5")},
	}
	repo.expected[opened.ID] = map[int64]decimal.Decimal{1: dec("3.0")}

	result, err := svc.CloseDay(context.Background(), CloseDayInput{
		DayID: opened.ID,
		Snapshots: []SnapshotInput{
			{IngredientID: 1, Quantity: dec("12.0")},
			{IngredientID: 2, Quantity: dec("40")},
		},
		Notes: "quiet Tuesday",
	})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, result.Day.Status)
	require.NotNil(t, result.Day.ClosedAt)
	require.Len(t, result.Usage, 2)
	require.True(t, result.Usage[0].Usage.Equal(dec("3.0")), "got %s", result.Usage[0].Usage)
	require.Equal(t, SeverityOK, result.Usage[0].Severity)

	_, err = svc.CloseDay(context.Background(), CloseDayInput{
		DayID:     opened.ID,
		Snapshots: []SnapshotInput{{IngredientID: 1, Quantity: dec("12.0")}, {IngredientID: 2, Quantity: dec("40")}},
	})
	require.ErrorIs(t, err, ErrDayClosed)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestComputeUsageRequiresClosedDay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	opened := openTestDay(t, svc)

	_, err := svc.ComputeUsage(context.Background(), opened.ID)
	require.ErrorIs(t, err, ErrDayStillOpen)

	_, err = svc.ComputeUsage(context.Background(), 999)
	require.ErrorIs(t, err, ErrDayNotFound)
}
