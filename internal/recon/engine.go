package recon

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/catalog"
)

var (
	criticalThreshold = decimal.NewFromInt(30)
	hundred           = decimal.NewFromInt(100)
)

// Report compares recorded revenue against inventory-implied revenue for one
// day. It is recomputed from committed state on every request and never
// persisted.
type Report struct {
	DayID                  int64           `json:"day_id"`
	RecordedTotal          decimal.Decimal `json:"recorded_total"`
	CalculatedTotal        decimal.Decimal `json:"calculated_total"`
	DiscrepancyPLN         decimal.Decimal `json:"discrepancy_pln"`
	DiscrepancyPercent     decimal.Decimal `json:"discrepancy_percent"`
	HasCriticalDiscrepancy bool            `json:"has_critical_discrepancy"`
	ByProduct              []ProductRow    `json:"by_product"`
	Suggestions            []Suggestion    `json:"suggestions"`
}

// ProductRow is the per-variant comparison for variants whose primary
// ingredient allows unique attribution.
type ProductRow struct {
	VariantID     int64           `json:"variant_id"`
	VariantName   string          `json:"variant_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	RecordedQty   decimal.Decimal `json:"recorded_qty"`
	ImpliedQty    decimal.Decimal `json:"implied_qty"`
	RecordedValue decimal.Decimal `json:"recorded_value"`
	ImpliedValue  decimal.Decimal `json:"implied_value"`
}

// Suggestion flags probable unrecorded sales of one variant.
type Suggestion struct {
	VariantID      int64           `json:"variant_id"`
	VariantName    string          `json:"variant_name"`
	SuggestedQty   decimal.Decimal `json:"suggested_qty"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

// Inputs are the committed-state aggregates the report derives from.
type Inputs struct {
	// Variants are the active variants with their recipes.
	Variants []catalog.ProductVariant
	// Ingredients resolves unit types for implied-quantity rounding.
	Ingredients map[int64]catalog.Ingredient
	// Usage is the actual per-ingredient usage from the closing calculation.
	Usage map[int64]decimal.Decimal
	// RecordedQty is the non-voided sold quantity per variant.
	RecordedQty map[int64]decimal.Decimal
	// RecordedTotal is the non-voided revenue for the day.
	RecordedTotal decimal.Decimal
}

// BuildReport derives the reconciliation report. An ingredient back-
// calculates a variant's sold quantity only when it is the declared primary
// of exactly one active variant; shared primaries are excluded rather than
// guessed at. Output ordering is deterministic: two calls over the same
// inputs yield identical reports.
func BuildReport(dayID int64, in Inputs) Report {
	report := Report{
		DayID:         dayID,
		RecordedTotal: in.RecordedTotal,
		ByProduct:     []ProductRow{},
		Suggestions:   []Suggestion{},
	}

	// Count how many active variants claim each primary ingredient.
	claims := make(map[int64]int)
	for _, variant := range in.Variants {
		if line, ok := variant.PrimaryLine(); ok {
			claims[line.IngredientID]++
		}
	}

	calculated := decimal.Zero
	for _, variant := range in.Variants {
		line, ok := variant.PrimaryLine()
		if !ok || claims[line.IngredientID] != 1 {
			continue
		}
		if line.QuantityPerUnit.IsZero() {
			continue
		}
		usage := in.Usage[line.IngredientID]
		implied := usage.Div(line.QuantityPerUnit)
		if ing, ok := in.Ingredients[line.IngredientID]; ok {
			implied = ing.RoundQuantity(implied)
		}
		recordedQty := in.RecordedQty[variant.ID]
		impliedValue := implied.Mul(variant.Price)
		calculated = calculated.Add(impliedValue)

		report.ByProduct = append(report.ByProduct, ProductRow{
			VariantID:     variant.ID,
			VariantName:   variant.Name,
			UnitPrice:     variant.Price,
			RecordedQty:   recordedQty,
			ImpliedQty:    implied,
			RecordedValue: recordedQty.Mul(variant.Price),
			ImpliedValue:  impliedValue,
		})
		if implied.GreaterThan(recordedQty) {
			missing := implied.Sub(recordedQty)
			report.Suggestions = append(report.Suggestions, Suggestion{
				VariantID:      variant.ID,
				VariantName:    variant.Name,
				SuggestedQty:   missing,
				EstimatedValue: missing.Mul(variant.Price),
			})
		}
	}
	sort.Slice(report.ByProduct, func(i, j int) bool {
		return report.ByProduct[i].VariantID < report.ByProduct[j].VariantID
	})
	sort.Slice(report.Suggestions, func(i, j int) bool {
		return report.Suggestions[i].VariantID < report.Suggestions[j].VariantID
	})

	report.CalculatedTotal = calculated
	report.DiscrepancyPLN = in.RecordedTotal.Sub(calculated)
	if !calculated.IsZero() {
		report.DiscrepancyPercent = report.DiscrepancyPLN.Abs().Div(calculated).Mul(hundred)
		report.HasCriticalDiscrepancy = report.DiscrepancyPercent.GreaterThan(criticalThreshold)
	}
	return report
}
