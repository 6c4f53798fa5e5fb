package day

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/catalog"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDay(ctx context.Context, id int64) (DailyRecord, error)
	OpenDay(ctx context.Context) (DailyRecord, error)
	SnapshotQuantities(ctx context.Context, dayID int64, kind SnapshotType) (map[int64]decimal.Decimal, error)
	FlowTotals(ctx context.Context, dayID int64) (map[int64]Flows, error)
	ExpectedUsage(ctx context.Context, dayID int64) (map[int64]decimal.Decimal, error)
}

// CatalogPort resolves ingredients for snapshot validation and row labels.
type CatalogPort interface {
	IngredientsByID(ctx context.Context, ids []int64) (map[int64]catalog.Ingredient, error)
	ListIngredients(ctx context.Context) ([]catalog.Ingredient, error)
}

// CloseResult is the closed record with its usage table.
type CloseResult struct {
	Day   DailyRecord `json:"day"`
	Usage []UsageRow  `json:"usage"`
}

// Service owns the day lifecycle: opening with counted snapshots, the
// one-way close barrier and the closing calculation.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalogPort CatalogPort, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalogPort,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OpenDay opens a trading day with one opening count per tracked ingredient.
// Concurrent open attempts race on the storage uniqueness constraint and the
// loser gets a conflict error.
func (s *Service) OpenDay(ctx context.Context, in OpenDayInput) (DailyRecord, error) {
	if err := in.Validate(); err != nil {
		return DailyRecord{}, err
	}
	if err := s.validateGranularity(ctx, in.Snapshots); err != nil {
		return DailyRecord{}, err
	}

	// Every tracked ingredient needs an opening count, otherwise it would
	// silently drop out of the usage table at close.
	tracked, err := s.catalog.ListIngredients(ctx)
	if err != nil {
		return DailyRecord{}, err
	}
	counted := make(map[int64]bool, len(in.Snapshots))
	for _, snap := range in.Snapshots {
		counted[snap.IngredientID] = true
	}
	for _, ing := range tracked {
		if !counted[ing.ID] {
			return DailyRecord{}, fmt.Errorf("%w: opening count for ingredient %d (%s)", ErrMissingSnapshot, ing.ID, ing.Name)
		}
	}

	now := s.now()
	var opened DailyRecord
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		opened, err = tx.InsertDay(ctx, in.Date, now)
		if err != nil {
			return err
		}
		return tx.InsertSnapshots(ctx, opened.ID, SnapshotOpen, in.Snapshots)
	})
	if err != nil {
		return DailyRecord{}, err
	}
	s.logger.Info("day opened",
		slog.Int64("day_id", opened.ID),
		slog.Time("date", opened.Date),
		slog.Int("tracked_ingredients", len(in.Snapshots)))
	return opened, nil
}

// CloseDay enters closing counts, transitions the day to closed and returns
// the usage table. The barrier commits in one transaction: once it commits,
// no sale or ledger event may be attributed to the day anymore.
func (s *Service) CloseDay(ctx context.Context, in CloseDayInput) (CloseResult, error) {
	if err := in.Validate(); err != nil {
		return CloseResult{}, err
	}
	if err := s.validateGranularity(ctx, in.Snapshots); err != nil {
		return CloseResult{}, err
	}

	now := s.now()
	var closed DailyRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockDay(ctx, in.DayID)
		if err != nil {
			return err
		}
		if locked.Status == StatusClosed {
			return ErrDayClosed
		}
		opening, err := tx.SnapshotQuantities(ctx, in.DayID, SnapshotOpen)
		if err != nil {
			return err
		}
		entered := make(map[int64]bool, len(in.Snapshots))
		for _, snap := range in.Snapshots {
			if _, ok := opening[snap.IngredientID]; !ok {
				return fmt.Errorf("%w %d", ErrUnknownSnapshot, snap.IngredientID)
			}
			entered[snap.IngredientID] = true
		}
		for ingredientID := range opening {
			if !entered[ingredientID] {
				return fmt.Errorf("%w: closing count for ingredient %d", ErrMissingSnapshot, ingredientID)
			}
		}
		if err := tx.UpsertCloseSnapshots(ctx, in.DayID, in.Snapshots); err != nil {
			return err
		}
		if err := tx.MarkClosed(ctx, in.DayID, now, in.Notes); err != nil {
			return err
		}
		closed = locked
		closed.Status = StatusClosed
		closed.ClosedAt = &now
		closed.Notes = in.Notes
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	usage, err := s.usageRows(ctx, closed.ID)
	if err != nil {
		return CloseResult{}, err
	}
	s.logger.Info("day closed",
		slog.Int64("day_id", closed.ID),
		slog.Int("usage_rows", len(usage)))
	return CloseResult{Day: closed, Usage: usage}, nil
}

// GetDay loads a daily record.
func (s *Service) GetDay(ctx context.Context, id int64) (DailyRecord, error) {
	return s.repo.GetDay(ctx, id)
}

// CurrentOpenDay returns the open day, ErrDayNotFound when none is open.
func (s *Service) CurrentOpenDay(ctx context.Context) (DailyRecord, error) {
	return s.repo.OpenDay(ctx)
}

// ComputeUsage returns the per-ingredient usage table for a closed day.
func (s *Service) ComputeUsage(ctx context.Context, dayID int64) ([]UsageRow, error) {
	record, err := s.repo.GetDay(ctx, dayID)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusClosed {
		return nil, ErrDayStillOpen
	}
	return s.usageRows(ctx, dayID)
}

func (s *Service) usageRows(ctx context.Context, dayID int64) ([]UsageRow, error) {
	opening, err := s.repo.SnapshotQuantities(ctx, dayID, SnapshotOpen)
	if err != nil {
		return nil, err
	}
	closing, err := s.repo.SnapshotQuantities(ctx, dayID, SnapshotClose)
	if err != nil {
		return nil, err
	}
	flows, err := s.repo.FlowTotals(ctx, dayID)
	if err != nil {
		return nil, err
	}
	expected, err := s.repo.ExpectedUsage(ctx, dayID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(opening))
	for ingredientID := range opening {
		ids = append(ids, ingredientID)
	}
	ingredients, err := s.catalog.IngredientsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	return ComputeRows(ingredients, opening, closing, flows, expected), nil
}

// validateGranularity checks every counted quantity against its ingredient's
// unit type. Zero counts are legitimate.
func (s *Service) validateGranularity(ctx context.Context, snapshots []SnapshotInput) error {
	ids := make([]int64, 0, len(snapshots))
	for _, snap := range snapshots {
		ids = append(ids, snap.IngredientID)
	}
	ingredients, err := s.catalog.IngredientsByID(ctx, ids)
	if err != nil {
		return err
	}
	for _, snap := range snapshots {
		ing, ok := ingredients[snap.IngredientID]
		if !ok {
			return fmt.Errorf("%w %d", catalog.ErrIngredientNotFound, snap.IngredientID)
		}
		if err := ing.ValidateCount(snap.Quantity); err != nil {
			return err
		}
	}
	return nil
}
