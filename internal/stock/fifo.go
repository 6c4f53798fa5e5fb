package stock

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Draw is one planned decrement against a batch.
type Draw struct {
	Batch    Batch
	Quantity decimal.Decimal
}

// PlanConsumption orders the given batches for FIFO depletion (expiry date
// ascending with no-expiry batches last, creation time as tie-break) and
// plans draws from the head until the requested quantity is satisfied.
// It returns ErrShortStock without any plan when the batches cannot cover
// the request, so callers can guarantee all-or-nothing semantics.
func PlanConsumption(batches []Batch, qty decimal.Decimal) ([]Draw, error) {
	eligible := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Active && b.RemainingQty.IsPositive() {
			eligible = append(eligible, b)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})

	available := decimal.Zero
	for _, b := range eligible {
		available = available.Add(b.RemainingQty)
	}
	if available.LessThan(qty) {
		return nil, ErrShortStock
	}

	var draws []Draw
	remaining := qty
	for _, b := range eligible {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(b.RemainingQty, remaining)
		draws = append(draws, Draw{Batch: b, Quantity: take})
		remaining = remaining.Sub(take)
	}
	return draws, nil
}
