package catalog

import (
	"context"
	"fmt"

	"github.com/stragan/stragan/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertIngredient(ctx context.Context, in CreateIngredientInput) (Ingredient, error)
	GetIngredient(ctx context.Context, id int64) (Ingredient, error)
	IngredientsByID(ctx context.Context, ids []int64) (map[int64]Ingredient, error)
	ListIngredients(ctx context.Context) ([]Ingredient, error)
	IngredientHasBatches(ctx context.Context, id int64) (bool, error)
	UpdateIngredient(ctx context.Context, ing Ingredient) error
	InsertVariant(ctx context.Context, in CreateVariantInput) (ProductVariant, error)
	GetVariant(ctx context.Context, id int64) (ProductVariant, error)
	ListActiveVariants(ctx context.Context) ([]ProductVariant, error)
	SetVariantActive(ctx context.Context, id int64, active bool) error
}

// Service coordinates catalog operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateIngredient registers a new tracked ingredient.
func (s *Service) CreateIngredient(ctx context.Context, in CreateIngredientInput) (Ingredient, error) {
	if err := in.Validate(); err != nil {
		return Ingredient{}, err
	}
	return s.repo.InsertIngredient(ctx, in)
}

// UpdateIngredientInput captures an ingredient update. Nil fields are kept.
type UpdateIngredientInput struct {
	ID        int64
	Name      *string
	UnitType  *UnitType
	UnitLabel *string
}

// UpdateIngredient applies an update, refusing unit type changes once the
// ingredient has batches.
func (s *Service) UpdateIngredient(ctx context.Context, in UpdateIngredientInput) (Ingredient, error) {
	ing, err := s.repo.GetIngredient(ctx, in.ID)
	if err != nil {
		return Ingredient{}, err
	}
	if in.UnitType != nil && *in.UnitType != ing.UnitType {
		locked, err := s.repo.IngredientHasBatches(ctx, ing.ID)
		if err != nil {
			return Ingredient{}, err
		}
		if locked {
			return Ingredient{}, ErrUnitTypeLocked
		}
		ing.UnitType = *in.UnitType
	}
	if in.Name != nil {
		ing.Name = *in.Name
	}
	if in.UnitLabel != nil {
		ing.UnitLabel = *in.UnitLabel
	}
	if err := (CreateIngredientInput{Name: ing.Name, UnitType: ing.UnitType, UnitLabel: ing.UnitLabel}).Validate(); err != nil {
		return Ingredient{}, err
	}
	if err := s.repo.UpdateIngredient(ctx, ing); err != nil {
		return Ingredient{}, err
	}
	return ing, nil
}

// GetIngredient loads a single ingredient.
func (s *Service) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	return s.repo.GetIngredient(ctx, id)
}

// IngredientsByID loads ingredients keyed by id.
func (s *Service) IngredientsByID(ctx context.Context, ids []int64) (map[int64]Ingredient, error) {
	return s.repo.IngredientsByID(ctx, ids)
}

// ListIngredients returns all ingredients.
func (s *Service) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	return s.repo.ListIngredients(ctx)
}

// CreateVariant registers a sellable variant after validating its recipe
// against existing ingredients.
func (s *Service) CreateVariant(ctx context.Context, in CreateVariantInput) (ProductVariant, error) {
	if err := in.Validate(); err != nil {
		return ProductVariant{}, err
	}
	ids := make([]int64, 0, len(in.Recipe))
	for _, line := range in.Recipe {
		ids = append(ids, line.IngredientID)
	}
	known, err := s.repo.IngredientsByID(ctx, ids)
	if err != nil {
		return ProductVariant{}, err
	}
	for _, line := range in.Recipe {
		ing, ok := known[line.IngredientID]
		if !ok {
			return ProductVariant{}, fmt.Errorf("%w: recipe ingredient %d", shared.ErrNotFound, line.IngredientID)
		}
		if err := ing.ValidateQuantity(line.QuantityPerUnit); err != nil {
			return ProductVariant{}, err
		}
	}
	return s.repo.InsertVariant(ctx, in)
}

// GetVariant loads a variant with its recipe.
func (s *Service) GetVariant(ctx context.Context, id int64) (ProductVariant, error) {
	return s.repo.GetVariant(ctx, id)
}

// ListActiveVariants returns active variants with recipes.
func (s *Service) ListActiveVariants(ctx context.Context) ([]ProductVariant, error) {
	return s.repo.ListActiveVariants(ctx)
}

// SetVariantActive enables or retires a variant.
func (s *Service) SetVariantActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetVariantActive(ctx, id, active)
}
