package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (RecordedSale, error)
	ListSales(ctx context.Context, dayID int64) ([]RecordedSale, error)
}

// CatalogPort resolves the sold variant and its captured price.
type CatalogPort interface {
	GetVariant(ctx context.Context, id int64) (catalog.ProductVariant, error)
}

// StockPort depletes shop stock in real time. Optional: whether sales drive
// the ledger as they happen is a deployment policy, not an engine rule.
type StockPort interface {
	ConsumeForSale(ctx context.Context, ingredientID int64, qty decimal.Decimal) ([]stock.ConsumedBatch, error)
}

// IdempotencyPort deduplicates retried POS taps by client reference.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "sales"

// Service owns the recorded-sale lifecycle: record on an open day, void once
// while the day is still open.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	stock   StockPort
	idem    IdempotencyPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service. stockPort and idem may be nil, which disables
// real-time depletion and tap deduplication respectively.
func NewService(repo RepositoryPort, catalogPort CatalogPort, stockPort StockPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalogPort,
		stock:   stockPort,
		idem:    idem,
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

// RecordSale books a POS tap against the open day, capturing the variant's
// price at record time. The captured unit price never changes afterwards,
// even if the catalog price does.
func (s *Service) RecordSale(ctx context.Context, in RecordSaleInput) (RecordedSale, error) {
	if err := in.Validate(); err != nil {
		return RecordedSale{}, err
	}
	variant, err := s.catalog.GetVariant(ctx, in.VariantID)
	if err != nil {
		return RecordedSale{}, err
	}
	if !variant.Active {
		return RecordedSale{}, ErrVariantInactive
	}

	idemKey := ""
	if s.idem != nil && in.ClientRef != "" {
		idemKey = fmt.Sprintf("sale:%s", in.ClientRef)
		if err := s.idem.CheckAndInsert(ctx, idemKey, idempotencyModule); err != nil {
			return RecordedSale{}, err
		}
	}

	now := s.now()
	var recorded RecordedSale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		dayID, err := tx.LockOpenDay(ctx)
		if err != nil {
			return err
		}
		if in.DayID != 0 && in.DayID != dayID {
			return fmt.Errorf("%w: %d", ErrDayMismatch, in.DayID)
		}
		recorded, err = tx.InsertSale(ctx, RecordedSale{
			DailyRecordID:    dayID,
			ProductVariantID: variant.ID,
			Quantity:         in.Quantity,
			UnitPrice:        variant.Price,
			ShiftID:          in.ShiftID,
			ClientRef:        in.ClientRef,
			RecordedAt:       now,
		})
		return err
	})
	if err != nil {
		if idemKey != "" {
			if delErr := s.idem.Delete(ctx, idemKey); delErr != nil {
				s.logger.Error("release idempotency key", slog.String("key", idemKey), slog.Any("error", delErr))
			}
		}
		return RecordedSale{}, err
	}

	s.depleteStock(ctx, recorded, variant)
	s.logger.Info("sale recorded",
		slog.Int64("sale_id", recorded.ID),
		slog.Int64("variant_id", variant.ID),
		slog.String("quantity", in.Quantity.String()),
		slog.String("total", recorded.Total().String()))
	return recorded, nil
}

// depleteStock draws shop stock for every recipe line after the sale has
// committed. A short shelf never un-records the tap: insufficiency lands in
// the day-close discrepancy report instead, so failures here are logged and
// swallowed.
func (s *Service) depleteStock(ctx context.Context, sale RecordedSale, variant catalog.ProductVariant) {
	if s.stock == nil {
		return
	}
	for _, line := range variant.Recipe {
		qty := sale.Quantity.Mul(line.QuantityPerUnit)
		if _, err := s.stock.ConsumeForSale(ctx, line.IngredientID, qty); err != nil {
			s.logger.Warn("real-time depletion failed",
				slog.Int64("sale_id", sale.ID),
				slog.Int64("ingredient_id", line.IngredientID),
				slog.String("quantity", qty.String()),
				slog.Any("error", err))
		}
	}
}

// VoidSale soft-cancels a recorded sale, keeping the row for audit. The
// day-closed check runs before the voided check so a closed day reports as
// such even for an already-voided sale.
func (s *Service) VoidSale(ctx context.Context, in VoidSaleInput) (RecordedSale, error) {
	if err := in.Validate(); err != nil {
		return RecordedSale{}, err
	}
	now := s.now()
	var voided RecordedSale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.LockSale(ctx, in.SaleID)
		if err != nil {
			return err
		}
		status, err := tx.DayStatus(ctx, sale.DailyRecordID)
		if err != nil {
			return err
		}
		if status != "OPEN" {
			return ErrDayClosed
		}
		if sale.Voided() {
			return ErrAlreadyVoided
		}
		if err := tx.MarkVoided(ctx, sale.ID, now, in.Reason, in.Notes); err != nil {
			return err
		}
		voided = sale
		voided.VoidedAt = &now
		voided.VoidReason = in.Reason
		voided.VoidNotes = in.Notes
		return nil
	})
	if err != nil {
		return RecordedSale{}, err
	}
	s.logger.Info("sale voided",
		slog.Int64("sale_id", voided.ID),
		slog.String("reason", in.Reason))
	return voided, nil
}

// GetSale loads a recorded sale.
func (s *Service) GetSale(ctx context.Context, id int64) (RecordedSale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales returns a day's sales, voided included.
func (s *Service) ListSales(ctx context.Context, dayID int64) ([]RecordedSale, error) {
	return s.repo.ListSales(ctx, dayID)
}
