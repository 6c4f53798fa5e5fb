package day

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/catalog"
)

// Severity classifies the gap between actual and expected ingredient usage.
type Severity string

const (
	// SeverityOK means the gap is within 5 percent.
	SeverityOK Severity = "OK"
	// SeverityWarning means the gap is above 5 and at most 10 percent.
	SeverityWarning Severity = "WARNING"
	// SeverityCritical means the gap exceeds 10 percent.
	SeverityCritical Severity = "CRITICAL"
)

var (
	warningThreshold  = decimal.NewFromInt(5)
	criticalThreshold = decimal.NewFromInt(10)
	hundred           = decimal.NewFromInt(100)
)

// Flows are the shop-scoped movement totals for one ingredient over one day.
type Flows struct {
	DeliveriesIn decimal.Decimal
	TransfersIn  decimal.Decimal
	TransfersOut decimal.Decimal
	SpoilageOut  decimal.Decimal
}

// UsageRow is the per-ingredient closing calculation.
type UsageRow struct {
	IngredientID       int64           `json:"ingredient_id"`
	IngredientName     string          `json:"ingredient_name"`
	UnitLabel          string          `json:"unit_label"`
	Opening            decimal.Decimal `json:"opening"`
	DeliveriesIn       decimal.Decimal `json:"deliveries_in"`
	TransfersIn        decimal.Decimal `json:"transfers_in"`
	TransfersOut       decimal.Decimal `json:"transfers_out"`
	SpoilageOut        decimal.Decimal `json:"spoilage_out"`
	Closing            decimal.Decimal `json:"closing"`
	Usage              decimal.Decimal `json:"usage"`
	ExpectedUsage      decimal.Decimal `json:"expected_usage"`
	DiscrepancyPercent decimal.Decimal `json:"discrepancy_percent"`
	Severity           Severity        `json:"severity"`
}

// Usage applies the closing identity for one ingredient. Negative usage is
// surfaced, not rejected: it signals a miscount or an unrecorded inflow and
// the discrepancy layer flags it.
func Usage(opening decimal.Decimal, flows Flows, closing decimal.Decimal) decimal.Decimal {
	return opening.
		Add(flows.DeliveriesIn).
		Add(flows.TransfersIn).
		Sub(flows.TransfersOut).
		Sub(flows.SpoilageOut).
		Sub(closing)
}

// Discrepancy computes the percentage gap between actual and expected usage
// and its severity. With no expected basis the ingredient reports OK no
// matter what it used, an explicit edge case rather than an error.
func Discrepancy(usage, expected decimal.Decimal) (decimal.Decimal, Severity) {
	if expected.IsZero() || expected.IsNegative() {
		return decimal.Zero, SeverityOK
	}
	pct := usage.Sub(expected).Abs().Div(expected).Mul(hundred)
	return pct, ClassifySeverity(pct)
}

// ClassifySeverity maps a discrepancy percentage to a severity band.
func ClassifySeverity(pct decimal.Decimal) Severity {
	switch {
	case pct.LessThanOrEqual(warningThreshold):
		return SeverityOK
	case pct.LessThanOrEqual(criticalThreshold):
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

// ComputeRows assembles the full usage table for a day, one row per
// ingredient with an opening snapshot, ordered by ingredient id. Missing
// flow or expected entries count as zero.
func ComputeRows(
	ingredients map[int64]catalog.Ingredient,
	opening map[int64]decimal.Decimal,
	closing map[int64]decimal.Decimal,
	flows map[int64]Flows,
	expected map[int64]decimal.Decimal,
) []UsageRow {
	rows := make([]UsageRow, 0, len(opening))
	for ingredientID, open := range opening {
		f := flows[ingredientID]
		closingQty := closing[ingredientID]
		usage := Usage(open, f, closingQty)
		exp := expected[ingredientID]
		pct, severity := Discrepancy(usage, exp)
		row := UsageRow{
			IngredientID:       ingredientID,
			Opening:            open,
			DeliveriesIn:       f.DeliveriesIn,
			TransfersIn:        f.TransfersIn,
			TransfersOut:       f.TransfersOut,
			SpoilageOut:        f.SpoilageOut,
			Closing:            closingQty,
			Usage:              usage,
			ExpectedUsage:      exp,
			DiscrepancyPercent: pct,
			Severity:           severity,
		}
		if ing, ok := ingredients[ingredientID]; ok {
			row.IngredientName = ing.Name
			row.UnitLabel = ing.UnitLabel
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].IngredientID < rows[j].IngredientID })
	return rows
}
