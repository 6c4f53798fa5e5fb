package recon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/day"
)

// DayPort supplies the closing calculation the report builds on.
type DayPort interface {
	ComputeUsage(ctx context.Context, dayID int64) ([]day.UsageRow, error)
}

// CatalogPort resolves active variants and their ingredients.
type CatalogPort interface {
	ListActiveVariants(ctx context.Context) ([]catalog.ProductVariant, error)
	IngredientsByID(ctx context.Context, ids []int64) (map[int64]catalog.Ingredient, error)
}

// SalesPort aggregates the day's recorded sales.
type SalesPort interface {
	SaleAggregates(ctx context.Context, dayID int64) (decimal.Decimal, map[int64]decimal.Decimal, error)
}

// Service recomputes the reconciliation report from committed state on every
// request. Identical concurrent requests are collapsed into one computation;
// nothing is cached across requests, so the report never reflects a stale
// snapshot.
type Service struct {
	days    DayPort
	catalog CatalogPort
	sales   SalesPort
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService builds Service.
func NewService(days DayPort, catalogPort CatalogPort, sales SalesPort, logger *slog.Logger) *Service {
	return &Service{
		days:    days,
		catalog: catalogPort,
		sales:   sales,
		logger:  logger,
	}
}

// Reconcile builds the report for a closed day.
func (s *Service) Reconcile(ctx context.Context, dayID int64) (Report, error) {
	result, err, _ := s.group.Do(fmt.Sprintf("reconcile:%d", dayID), func() (any, error) {
		return s.build(ctx, dayID)
	})
	if err != nil {
		return Report{}, err
	}
	return result.(Report), nil
}

func (s *Service) build(ctx context.Context, dayID int64) (Report, error) {
	usageRows, err := s.days.ComputeUsage(ctx, dayID)
	if err != nil {
		return Report{}, err
	}
	usage := make(map[int64]decimal.Decimal, len(usageRows))
	ids := make([]int64, 0, len(usageRows))
	for _, row := range usageRows {
		usage[row.IngredientID] = row.Usage
		ids = append(ids, row.IngredientID)
	}

	variants, err := s.catalog.ListActiveVariants(ctx)
	if err != nil {
		return Report{}, err
	}
	ingredients, err := s.catalog.IngredientsByID(ctx, ids)
	if err != nil {
		return Report{}, err
	}
	total, perVariant, err := s.sales.SaleAggregates(ctx, dayID)
	if err != nil {
		return Report{}, err
	}

	report := BuildReport(dayID, Inputs{
		Variants:      variants,
		Ingredients:   ingredients,
		Usage:         usage,
		RecordedQty:   perVariant,
		RecordedTotal: total,
	})
	s.logger.Info("reconciliation built",
		slog.Int64("day_id", dayID),
		slog.String("recorded_total", report.RecordedTotal.String()),
		slog.String("calculated_total", report.CalculatedTotal.String()),
		slog.Bool("critical", report.HasCriticalDiscrepancy))
	return report, nil
}
