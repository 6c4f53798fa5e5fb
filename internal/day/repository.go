package day

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/platform/db"
)

// Repository persists daily records and inventory snapshots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Close
// runs entirely inside one transaction so the barrier either commits whole
// or not at all.
type TxRepository interface {
	InsertDay(ctx context.Context, date time.Time, openedAt time.Time) (DailyRecord, error)
	LockDay(ctx context.Context, id int64) (DailyRecord, error)
	InsertSnapshots(ctx context.Context, dayID int64, kind SnapshotType, snapshots []SnapshotInput) error
	UpsertCloseSnapshots(ctx context.Context, dayID int64, snapshots []SnapshotInput) error
	SnapshotQuantities(ctx context.Context, dayID int64, kind SnapshotType) (map[int64]decimal.Decimal, error)
	MarkClosed(ctx context.Context, id int64, closedAt time.Time, notes string) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("day repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const dayColumns = `id, record_date, status, notes, opened_at, closed_at`

// GetDay loads a daily record by id.
func (r *Repository) GetDay(ctx context.Context, id int64) (DailyRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dayColumns+` FROM daily_records WHERE id=$1`, id)
	return scanDay(row)
}

// OpenDay returns the currently open daily record, if any.
func (r *Repository) OpenDay(ctx context.Context) (DailyRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dayColumns+` FROM daily_records WHERE status='OPEN'`)
	return scanDay(row)
}

// SnapshotQuantities loads counted quantities for a day and snapshot type.
func (r *Repository) SnapshotQuantities(ctx context.Context, dayID int64, kind SnapshotType) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT ingredient_id, quantity FROM inventory_snapshots
WHERE daily_record_id=$1 AND snapshot_type=$2`, dayID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuantities(rows)
}

// FlowTotals aggregates the day's shop-scoped movement totals per
// ingredient. Sale-driven draws are deliberately excluded: the usage
// identity attributes them via the closing count.
func (r *Repository) FlowTotals(ctx context.Context, dayID int64) (map[int64]Flows, error) {
	rows, err := r.pool.Query(ctx, `SELECT ingredient_id,
COALESCE(SUM(quantity) FILTER (WHERE movement_type='DELIVERY' AND to_location='SHOP'), 0),
COALESCE(SUM(quantity) FILTER (WHERE movement_type='TRANSFER' AND to_location='SHOP'), 0),
COALESCE(SUM(quantity) FILTER (WHERE movement_type='TRANSFER' AND from_location='SHOP'), 0),
COALESCE(SUM(quantity) FILTER (WHERE movement_type='SPOILAGE' AND from_location='SHOP'), 0)
FROM stock_movements WHERE daily_record_id=$1 GROUP BY ingredient_id`, dayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Flows)
	for rows.Next() {
		var ingredientID int64
		var f Flows
		if err := rows.Scan(&ingredientID, &f.DeliveriesIn, &f.TransfersIn, &f.TransfersOut, &f.SpoilageOut); err != nil {
			return nil, err
		}
		out[ingredientID] = f
	}
	return out, rows.Err()
}

// ExpectedUsage sums quantity times recipe charge per ingredient over every
// non-voided sale of the day, across all recipe lines of the sold variant.
func (r *Repository) ExpectedUsage(ctx context.Context, dayID int64) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT rl.ingredient_id, COALESCE(SUM(rs.quantity * rl.quantity_per_unit), 0)
FROM recorded_sales rs
JOIN recipe_lines rl ON rl.variant_id = rs.product_variant_id
WHERE rs.daily_record_id=$1 AND rs.voided_at IS NULL
GROUP BY rl.ingredient_id`, dayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuantities(rows)
}

func (r *txRepository) InsertDay(ctx context.Context, date, openedAt time.Time) (DailyRecord, error) {
	var day DailyRecord
	err := r.tx.QueryRow(ctx, `INSERT INTO daily_records (record_date, status, opened_at)
VALUES ($1,'OPEN',$2) RETURNING `+dayColumns, date, openedAt).
		Scan(&day.ID, &day.Date, &day.Status, &day.Notes, &day.OpenedAt, &day.ClosedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return DailyRecord{}, ErrDayAlreadyOpen
		}
		return DailyRecord{}, err
	}
	return day, nil
}

func (r *txRepository) LockDay(ctx context.Context, id int64) (DailyRecord, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+dayColumns+` FROM daily_records WHERE id=$1 FOR UPDATE`, id)
	return scanDay(row)
}

func (r *txRepository) InsertSnapshots(ctx context.Context, dayID int64, kind SnapshotType, snapshots []SnapshotInput) error {
	for _, s := range snapshots {
		_, err := r.tx.Exec(ctx, `INSERT INTO inventory_snapshots (daily_record_id, ingredient_id, snapshot_type, quantity)
VALUES ($1,$2,$3,$4)`, dayID, s.IngredientID, string(kind), s.Quantity)
		if err != nil {
			return fmt.Errorf("insert %s snapshot for ingredient %d: %w", kind, s.IngredientID, err)
		}
	}
	return nil
}

// UpsertCloseSnapshots applies last-write-wins on closing counts: the
// operator may re-enter a count before the close commits.
func (r *txRepository) UpsertCloseSnapshots(ctx context.Context, dayID int64, snapshots []SnapshotInput) error {
	for _, s := range snapshots {
		_, err := r.tx.Exec(ctx, `INSERT INTO inventory_snapshots (daily_record_id, ingredient_id, snapshot_type, quantity)
VALUES ($1,$2,'CLOSE',$3)
ON CONFLICT (daily_record_id, ingredient_id, snapshot_type) DO UPDATE SET quantity = EXCLUDED.quantity`,
			dayID, s.IngredientID, s.Quantity)
		if err != nil {
			return fmt.Errorf("upsert closing snapshot for ingredient %d: %w", s.IngredientID, err)
		}
	}
	return nil
}

func (r *txRepository) SnapshotQuantities(ctx context.Context, dayID int64, kind SnapshotType) (map[int64]decimal.Decimal, error) {
	rows, err := r.tx.Query(ctx, `SELECT ingredient_id, quantity FROM inventory_snapshots
WHERE daily_record_id=$1 AND snapshot_type=$2`, dayID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuantities(rows)
}

func (r *txRepository) MarkClosed(ctx context.Context, id int64, closedAt time.Time, notes string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE daily_records SET status='CLOSED', closed_at=$2, notes=$3 WHERE id=$1 AND status='OPEN'`,
		id, closedAt, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDayClosed
	}
	return nil
}

func scanDay(row pgx.Row) (DailyRecord, error) {
	var d DailyRecord
	var status string
	if err := row.Scan(&d.ID, &d.Date, &status, &d.Notes, &d.OpenedAt, &d.ClosedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DailyRecord{}, ErrDayNotFound
		}
		return DailyRecord{}, err
	}
	d.Status = RecordStatus(status)
	return d, nil
}

func scanQuantities(rows pgx.Rows) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var ingredientID int64
		var qty decimal.Decimal
		if err := rows.Scan(&ingredientID, &qty); err != nil {
			return nil, err
		}
		out[ingredientID] = qty
	}
	return out, rows.Err()
}
