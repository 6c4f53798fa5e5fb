package shift

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stragan/stragan/internal/shared"
)

type memoryRepo struct {
	nextStaffID int64
	nextShiftID int64
	staff       map[int64]Staff
	shifts      map[int64]Shift
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextStaffID: 1,
		nextShiftID: 1,
		staff:       make(map[int64]Staff),
		shifts:      make(map[int64]Shift),
	}
}

func (m *memoryRepo) InsertStaff(_ context.Context, staff Staff) (Staff, error) {
	staff.ID = m.nextStaffID
	staff.Active = true
	m.nextStaffID++
	m.staff[staff.ID] = staff
	return staff, nil
}

func (m *memoryRepo) GetStaff(_ context.Context, id int64) (Staff, error) {
	s, ok := m.staff[id]
	if !ok {
		return Staff{}, ErrStaffNotFound
	}
	return s, nil
}

func (m *memoryRepo) ListStaff(context.Context) ([]Staff, error) {
	var out []Staff
	for _, s := range m.staff {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryRepo) InsertShift(_ context.Context, staffID int64, openedAt time.Time) (Shift, error) {
	for _, sh := range m.shifts {
		if sh.StaffID == staffID && sh.ClosedAt == nil {
			return Shift{}, ErrShiftAlreadyOpen
		}
	}
	sh := Shift{ID: m.nextShiftID, StaffID: staffID, OpenedAt: openedAt}
	m.nextShiftID++
	m.shifts[sh.ID] = sh
	return sh, nil
}

func (m *memoryRepo) GetShift(_ context.Context, id int64) (Shift, error) {
	sh, ok := m.shifts[id]
	if !ok {
		return Shift{}, ErrShiftNotFound
	}
	return sh, nil
}

func (m *memoryRepo) CloseShift(_ context.Context, id int64, closedAt time.Time) error {
	sh, ok := m.shifts[id]
	if !ok || sh.ClosedAt != nil {
		return ErrShiftClosed
	}
	sh.ClosedAt = &closedAt
	m.shifts[id] = sh
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, slog.Default())
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) })
	return svc
}

func TestCreateStaffHashesPIN(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.CreateStaff(context.Background(), CreateStaffInput{Name: "Ola", PIN: "4812"})
	require.NoError(t, err)
	require.NotEqual(t, "4812", created.PINHash)
	require.NotEmpty(t, created.PINHash)
}

func TestCreateStaffRejectsBadPIN(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.CreateStaff(context.Background(), CreateStaffInput{Name: "Ola", PIN: "12"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.CreateStaff(context.Background(), CreateStaffInput{Name: "Ola", PIN: "12ab"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestOpenShiftVerifiesPIN(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	created, err := svc.CreateStaff(context.Background(), CreateStaffInput{Name: "Ola", PIN: "4812"})
	require.NoError(t, err)

	_, err = svc.OpenShift(context.Background(), created.ID, "0000")
	require.ErrorIs(t, err, ErrWrongPIN)

	opened, err := svc.OpenShift(context.Background(), created.ID, "4812")
	require.NoError(t, err)
	require.True(t, opened.Open())
}

func TestOpenShiftOncePerStaff(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	created, err := svc.CreateStaff(context.Background(), CreateStaffInput{Name: "Ola", PIN: "4812"})
	require.NoError(t, err)

	_, err = svc.OpenShift(context.Background(), created.ID, "4812")
	require.NoError(t, err)

	_, err = svc.OpenShift(context.Background(), created.ID, "4812")
	require.ErrorIs(t, err, ErrShiftAlreadyOpen)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCloseShiftOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	created, err := svc.CreateStaff(context.Background(), CreateStaffInput{Name: "Ola", PIN: "4812"})
	require.NoError(t, err)
	opened, err := svc.OpenShift(context.Background(), created.ID, "4812")
	require.NoError(t, err)

	closed, err := svc.CloseShift(context.Background(), opened.ID)
	require.NoError(t, err)
	require.False(t, closed.Open())

	_, err = svc.CloseShift(context.Background(), opened.ID)
	require.ErrorIs(t, err, ErrShiftClosed)
}
