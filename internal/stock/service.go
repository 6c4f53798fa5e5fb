package stock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListActiveBatches(ctx context.Context, ingredientID int64) ([]Batch, error)
	ListMovements(ctx context.Context, dailyRecordID int64) ([]Movement, error)
}

// CatalogPort resolves ingredients for unit validation.
type CatalogPort interface {
	GetIngredient(ctx context.Context, id int64) (catalog.Ingredient, error)
}

// Service owns batch mutation: deliveries, transfers, spoilage and
// sale-driven consumption, all FIFO-ordered and all-or-nothing.
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

// ApplyDelivery books an inbound delivery. Every delivery creates exactly one
// new batch, preserving lot-level expiry even when the destination already
// holds stock of the ingredient.
func (s *Service) ApplyDelivery(ctx context.Context, in DeliveryInput) (Batch, error) {
	if err := in.Validate(); err != nil {
		return Batch{}, err
	}
	ing, err := s.catalog.GetIngredient(ctx, in.IngredientID)
	if err != nil {
		return Batch{}, err
	}
	if err := ing.ValidateQuantity(in.Quantity); err != nil {
		return Batch{}, err
	}

	now := s.now()
	var created Batch
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		dayID, err := tx.OpenDayID(ctx)
		if err != nil {
			return err
		}
		created, err = tx.InsertBatch(ctx, Batch{
			IngredientID: in.IngredientID,
			BatchNumber:  newBatchNumber(),
			ExpiryDate:   in.ExpiryDate,
			InitialQty:   in.Quantity,
			RemainingQty: in.Quantity,
			Location:     in.Destination,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			IngredientID:  in.IngredientID,
			Type:          MovementDelivery,
			Quantity:      in.Quantity,
			To:            in.Destination,
			DailyRecordID: dayID,
			OccurredAt:    now,
		})
	})
	if err != nil {
		return Batch{}, err
	}
	s.logger.Info("delivery booked",
		slog.Int64("ingredient_id", in.IngredientID),
		slog.String("batch_number", created.BatchNumber),
		slog.String("quantity", in.Quantity.String()))
	return created, nil
}

// ApplyTransfer moves stock between locations, drawing FIFO at the source.
// Each consumed source batch arrives as a new batch at the destination with
// the same expiry date, so expiry alerting survives the move. Arrival batches
// get their own number with a -T marker; the consumed list ties them back to
// their source lots.
func (s *Service) ApplyTransfer(ctx context.Context, in TransferInput) ([]ConsumedBatch, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ing, err := s.catalog.GetIngredient(ctx, in.IngredientID)
	if err != nil {
		return nil, err
	}
	if err := ing.ValidateQuantity(in.Quantity); err != nil {
		return nil, err
	}

	now := s.now()
	var consumed []ConsumedBatch
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		draws, err := s.applyDraws(ctx, tx, in.IngredientID, in.Quantity, in.From)
		if err != nil {
			return err
		}
		for _, draw := range draws {
			arrival := Batch{
				IngredientID: in.IngredientID,
				BatchNumber:  fmt.Sprintf("%s-T", newBatchNumber()),
				ExpiryDate:   draw.Batch.ExpiryDate,
				InitialQty:   draw.Quantity,
				RemainingQty: draw.Quantity,
				Location:     in.To,
				CreatedAt:    now,
			}
			if _, err := tx.InsertBatch(ctx, arrival); err != nil {
				return err
			}
			consumed = append(consumed, newConsumedBatch(draw))
		}
		dayID, err := tx.OpenDayID(ctx)
		if err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			IngredientID:  in.IngredientID,
			Type:          MovementTransfer,
			Quantity:      in.Quantity,
			From:          in.From,
			To:            in.To,
			DailyRecordID: dayID,
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// ApplySpoilage writes stock off FIFO at the given location.
func (s *Service) ApplySpoilage(ctx context.Context, in SpoilageInput) ([]ConsumedBatch, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ing, err := s.catalog.GetIngredient(ctx, in.IngredientID)
	if err != nil {
		return nil, err
	}
	if err := ing.ValidateQuantity(in.Quantity); err != nil {
		return nil, err
	}

	now := s.now()
	var consumed []ConsumedBatch
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		draws, err := s.applyDraws(ctx, tx, in.IngredientID, in.Quantity, in.Location)
		if err != nil {
			return err
		}
		for _, draw := range draws {
			consumed = append(consumed, newConsumedBatch(draw))
		}
		dayID, err := tx.OpenDayID(ctx)
		if err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			IngredientID:  in.IngredientID,
			Type:          MovementSpoilage,
			Quantity:      in.Quantity,
			From:          in.Location,
			Reason:        in.Reason,
			DailyRecordID: dayID,
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("spoilage written off",
		slog.Int64("ingredient_id", in.IngredientID),
		slog.String("quantity", in.Quantity.String()),
		slog.String("reason", in.Reason))
	return consumed, nil
}

// ConsumeForSale draws shop stock for a recorded sale. Quantity granularity
// is not re-validated here: a sale of half a recipe unit is legitimate when
// the recipe charges fractional weight.
func (s *Service) ConsumeForSale(ctx context.Context, ingredientID int64, qty decimal.Decimal) ([]ConsumedBatch, error) {
	if qty.IsNegative() || qty.IsZero() {
		return nil, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	now := s.now()
	var consumed []ConsumedBatch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		draws, err := s.applyDraws(ctx, tx, ingredientID, qty, LocationShop)
		if err != nil {
			return err
		}
		for _, draw := range draws {
			consumed = append(consumed, newConsumedBatch(draw))
		}
		dayID, err := tx.OpenDayID(ctx)
		if err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			IngredientID:  ingredientID,
			Type:          MovementSale,
			Quantity:      qty,
			From:          LocationShop,
			DailyRecordID: dayID,
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// ListActiveBatches exposes active batches for read projections.
func (s *Service) ListActiveBatches(ctx context.Context, ingredientID int64) ([]Batch, error) {
	return s.repo.ListActiveBatches(ctx, ingredientID)
}

// applyDraws locks eligible batches, plans FIFO consumption and applies the
// decrements, retiring batches that reach zero. The plan step fails before
// any mutation when stock is short.
func (s *Service) applyDraws(ctx context.Context, tx TxRepository, ingredientID int64, qty decimal.Decimal, location Location) ([]Draw, error) {
	batches, err := tx.LockEligibleBatches(ctx, ingredientID, location)
	if err != nil {
		return nil, err
	}
	draws, err := PlanConsumption(batches, qty)
	if err != nil {
		return nil, fmt.Errorf("ingredient %d at %s: %w", ingredientID, location, err)
	}
	for _, draw := range draws {
		remaining := draw.Batch.RemainingQty.Sub(draw.Quantity)
		if err := tx.UpdateBatchRemaining(ctx, draw.Batch.ID, remaining, remaining.IsPositive()); err != nil {
			return nil, err
		}
	}
	return draws, nil
}

func newConsumedBatch(draw Draw) ConsumedBatch {
	return ConsumedBatch{
		BatchID:     draw.Batch.ID,
		BatchNumber: draw.Batch.BatchNumber,
		Quantity:    draw.Quantity,
		Remaining:   draw.Batch.RemainingQty.Sub(draw.Quantity),
	}
}

func newBatchNumber() string {
	return fmt.Sprintf("B-%s", uuid.NewString())
}
