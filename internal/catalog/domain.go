package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/shared"
)

// UnitType distinguishes how an ingredient is measured and rounded.
type UnitType string

const (
	// UnitTypeWeight is measured in fractional units (kg, l) with two-decimal precision.
	UnitTypeWeight UnitType = "WEIGHT"
	// UnitTypeCount is measured in whole pieces.
	UnitTypeCount UnitType = "COUNT"
)

// WeightPrecision is the decimal precision for weight-typed quantities.
const WeightPrecision = 2

// Ingredient is a tracked raw material. UnitType becomes immutable once the
// ingredient has batches.
type Ingredient struct {
	ID        int64
	Name      string
	UnitType  UnitType
	UnitLabel string
	CreatedAt time.Time
}

// ValidateQuantity checks a quantity against the ingredient's unit type:
// positive, integral for count units, at most two decimals for weight units.
// Every rounding and validation step in the ledger goes through this method
// rather than ad hoc type checks at call sites.
func (i Ingredient) ValidateQuantity(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.IsZero() {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	return i.ValidateCount(qty)
}

// ValidateCount checks only the unit granularity, allowing zero and negative
// values. Snapshot counts may legitimately be zero.
func (i Ingredient) ValidateCount(qty decimal.Decimal) error {
	switch i.UnitType {
	case UnitTypeCount:
		if !qty.Equal(qty.Truncate(0)) {
			return fmt.Errorf("%w: %s is counted in whole %s", shared.ErrInvalidInput, i.Name, i.UnitLabel)
		}
	case UnitTypeWeight:
		if !qty.Equal(qty.Truncate(WeightPrecision)) {
			return fmt.Errorf("%w: %s allows at most %d decimals", shared.ErrInvalidInput, i.Name, WeightPrecision)
		}
	default:
		return fmt.Errorf("%w: unknown unit type %q", shared.ErrInvalidInput, i.UnitType)
	}
	return nil
}

// RoundQuantity rounds to the ingredient's natural unit granularity.
func (i Ingredient) RoundQuantity(qty decimal.Decimal) decimal.Decimal {
	if i.UnitType == UnitTypeCount {
		return qty.Round(0)
	}
	return qty.Round(WeightPrecision)
}

// RecipeLine charges an ingredient per sold unit of a variant.
type RecipeLine struct {
	IngredientID    int64
	QuantityPerUnit decimal.Decimal
	IsPrimary       bool
}

// ProductVariant is a sellable item with a recipe. At most one recipe line
// may be flagged primary; that line drives usage-to-quantity inference.
type ProductVariant struct {
	ID        int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Active    bool
	Recipe    []RecipeLine
	CreatedAt time.Time
}

// PrimaryLine returns the primary recipe line, if declared.
func (v ProductVariant) PrimaryLine() (RecipeLine, bool) {
	for _, line := range v.Recipe {
		if line.IsPrimary {
			return line, true
		}
	}
	return RecipeLine{}, false
}

// CreateIngredientInput captures a new ingredient.
type CreateIngredientInput struct {
	Name      string
	UnitType  UnitType
	UnitLabel string
}

// Validate ensures the ingredient input is coherent.
func (in CreateIngredientInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: ingredient name required", shared.ErrInvalidInput)
	}
	if in.UnitType != UnitTypeWeight && in.UnitType != UnitTypeCount {
		return fmt.Errorf("%w: unit type must be WEIGHT or COUNT", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(in.UnitLabel) == "" {
		return fmt.Errorf("%w: unit label required", shared.ErrInvalidInput)
	}
	return nil
}

// CreateVariantInput captures a new product variant with its recipe.
type CreateVariantInput struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Recipe    []RecipeLine
}

// Validate enforces recipe invariants: positive per-unit quantities, no
// duplicate ingredients, and at most one primary line.
func (in CreateVariantInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: variant name required", shared.ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", shared.ErrInvalidInput)
	}
	if len(in.Recipe) == 0 {
		return fmt.Errorf("%w: variant requires at least one recipe line", shared.ErrInvalidInput)
	}
	seen := make(map[int64]bool, len(in.Recipe))
	primaries := 0
	for _, line := range in.Recipe {
		if line.IngredientID == 0 {
			return fmt.Errorf("%w: recipe line missing ingredient", shared.ErrInvalidInput)
		}
		if seen[line.IngredientID] {
			return fmt.Errorf("%w: duplicate recipe ingredient %d", shared.ErrInvalidInput, line.IngredientID)
		}
		seen[line.IngredientID] = true
		if line.QuantityPerUnit.IsNegative() || line.QuantityPerUnit.IsZero() {
			return fmt.Errorf("%w: quantity per unit must be positive", shared.ErrInvalidInput)
		}
		if line.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return ErrMultiplePrimaries
	}
	return nil
}

var (
	// ErrIngredientNotFound indicates an unknown ingredient id.
	ErrIngredientNotFound = fmt.Errorf("%w: ingredient", shared.ErrNotFound)
	// ErrVariantNotFound indicates an unknown variant id.
	ErrVariantNotFound = fmt.Errorf("%w: product variant", shared.ErrNotFound)
	// ErrMultiplePrimaries indicates a recipe flagging more than one primary line.
	ErrMultiplePrimaries = fmt.Errorf("%w: a variant may flag at most one primary ingredient", shared.ErrInvalidInput)
	// ErrNameTaken indicates a duplicate ingredient name.
	ErrNameTaken = fmt.Errorf("%w: name already in use", shared.ErrConflict)
	// ErrUnitTypeLocked is returned when changing the unit type of an
	// ingredient that already has batches.
	ErrUnitTypeLocked = fmt.Errorf("%w: unit type is immutable once batches exist", shared.ErrInvalidState)
)
