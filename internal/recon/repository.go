package recon

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the read-side sale aggregations the report needs. Totals
// come from explicit queries keyed by day, not object-graph walks, so the
// computation stays bounded no matter how the day went.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaleAggregates returns the non-voided revenue total and per-variant sold
// quantities for a day.
func (r *Repository) SaleAggregates(ctx context.Context, dayID int64) (decimal.Decimal, map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_variant_id, SUM(quantity), SUM(quantity * unit_price)
FROM recorded_sales
WHERE daily_record_id=$1 AND voided_at IS NULL
GROUP BY product_variant_id`, dayID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	defer rows.Close()

	total := decimal.Zero
	perVariant := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var variantID int64
		var qty, value decimal.Decimal
		if err := rows.Scan(&variantID, &qty, &value); err != nil {
			return decimal.Zero, nil, err
		}
		perVariant[variantID] = qty
		total = total.Add(value)
	}
	return total, perVariant, rows.Err()
}
