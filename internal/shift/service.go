package shift

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertStaff(ctx context.Context, staff Staff) (Staff, error)
	GetStaff(ctx context.Context, id int64) (Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)
	InsertShift(ctx context.Context, staffID int64, openedAt time.Time) (Shift, error)
	GetShift(ctx context.Context, id int64) (Shift, error)
	CloseShift(ctx context.Context, id int64, closedAt time.Time) error
}

// Service manages the shift log. PINs are stored bcrypt-hashed and compared
// on shift open.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateStaff registers a till operator with a hashed PIN.
func (s *Service) CreateStaff(ctx context.Context, in CreateStaffInput) (Staff, error) {
	if err := in.Validate(); err != nil {
		return Staff{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.PIN), bcrypt.DefaultCost)
	if err != nil {
		return Staff{}, err
	}
	created, err := s.repo.InsertStaff(ctx, Staff{
		Name:      in.Name,
		PINHash:   string(hash),
		CreatedAt: s.now(),
	})
	if err != nil {
		return Staff{}, err
	}
	s.logger.Info("staff registered", slog.Int64("staff_id", created.ID), slog.String("name", created.Name))
	return created, nil
}

// ListStaff returns all staff members.
func (s *Service) ListStaff(ctx context.Context) ([]Staff, error) {
	return s.repo.ListStaff(ctx)
}

// OpenShift verifies the PIN and opens a shift for the staff member.
func (s *Service) OpenShift(ctx context.Context, staffID int64, pin string) (Shift, error) {
	staff, err := s.repo.GetStaff(ctx, staffID)
	if err != nil {
		return Shift{}, err
	}
	if !staff.Active {
		return Shift{}, ErrStaffInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.PINHash), []byte(pin)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Shift{}, ErrWrongPIN
		}
		return Shift{}, err
	}
	opened, err := s.repo.InsertShift(ctx, staffID, s.now())
	if err != nil {
		return Shift{}, err
	}
	s.logger.Info("shift opened", slog.Int64("shift_id", opened.ID), slog.Int64("staff_id", staffID))
	return opened, nil
}

// CloseShift ends a running shift.
func (s *Service) CloseShift(ctx context.Context, shiftID int64) (Shift, error) {
	current, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		return Shift{}, err
	}
	if !current.Open() {
		return Shift{}, ErrShiftClosed
	}
	closedAt := s.now()
	if err := s.repo.CloseShift(ctx, shiftID, closedAt); err != nil {
		return Shift{}, err
	}
	current.ClosedAt = &closedAt
	s.logger.Info("shift closed", slog.Int64("shift_id", shiftID))
	return current, nil
}

// GetShift loads a shift.
func (s *Service) GetShift(ctx context.Context, id int64) (Shift, error) {
	return s.repo.GetShift(ctx, id)
}
