package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/platform/db"
)

// Repository persists batches and ledger movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. The
// eligible-batch scan and the remaining-quantity decrement always run inside
// one transaction per consumption call.
type TxRepository interface {
	LockEligibleBatches(ctx context.Context, ingredientID int64, location Location) ([]Batch, error)
	InsertBatch(ctx context.Context, batch Batch) (Batch, error)
	UpdateBatchRemaining(ctx context.Context, batchID int64, remaining decimal.Decimal, active bool) error
	InsertMovement(ctx context.Context, movement Movement) error
	OpenDayID(ctx context.Context) (*int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const batchColumns = `id, ingredient_id, batch_number, expiry_date, initial_qty, remaining_qty, location, is_active, created_at`

// ListActiveBatches returns all active batches, optionally filtered by ingredient.
func (r *Repository) ListActiveBatches(ctx context.Context, ingredientID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE is_active AND ($1 = 0 OR ingredient_id = $1)
ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC`, ingredientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatches(rows)
}

// GetBatch loads a single batch by id.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1`, id)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, pgx.ErrNoRows
		}
		return Batch{}, err
	}
	return batch, nil
}

// ListMovements returns the ledger movements attributed to a day.
func (r *Repository) ListMovements(ctx context.Context, dailyRecordID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, ingredient_id, movement_type, quantity, from_location, to_location, reason, daily_record_id, occurred_at
FROM stock_movements WHERE daily_record_id=$1 ORDER BY occurred_at ASC, id ASC`, dailyRecordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var from, to *string
		if err := rows.Scan(&m.ID, &m.IngredientID, &m.Type, &m.Quantity, &from, &to, &m.Reason, &m.DailyRecordID, &m.OccurredAt); err != nil {
			return nil, err
		}
		if from != nil {
			m.From = Location(*from)
		}
		if to != nil {
			m.To = Location(*to)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepository) LockEligibleBatches(ctx context.Context, ingredientID int64, location Location) ([]Batch, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE ingredient_id=$1 AND location=$2 AND is_active AND remaining_qty > 0
ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC
FOR UPDATE`, ingredientID, string(location))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatches(rows)
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) (Batch, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO batches (ingredient_id, batch_number, expiry_date, initial_qty, remaining_qty, location, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7) RETURNING id, created_at`,
		batch.IngredientID, batch.BatchNumber, nullTime(batch.ExpiryDate), batch.InitialQty, batch.RemainingQty, string(batch.Location), batch.CreatedAt).
		Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		return Batch{}, err
	}
	batch.Active = true
	return batch, nil
}

func (r *txRepository) UpdateBatchRemaining(ctx context.Context, batchID int64, remaining decimal.Decimal, active bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE batches SET remaining_qty=$2, is_active=$3 WHERE id=$1`, batchID, remaining, active)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (ingredient_id, movement_type, quantity, from_location, to_location, reason, daily_record_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.IngredientID, string(m.Type), m.Quantity, nullLocation(m.From), nullLocation(m.To), m.Reason, m.DailyRecordID, m.OccurredAt)
	return err
}

func (r *txRepository) OpenDayID(ctx context.Context) (*int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM daily_records WHERE status='OPEN'`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

func scanBatches(rows pgx.Rows) ([]Batch, error) {
	var out []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	var loc string
	if err := row.Scan(&b.ID, &b.IngredientID, &b.BatchNumber, &b.ExpiryDate, &b.InitialQty, &b.RemainingQty, &loc, &b.Active, &b.CreatedAt); err != nil {
		return Batch{}, err
	}
	b.Location = Location(loc)
	return b, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullLocation(l Location) any {
	if l == "" {
		return nil
	}
	return string(l)
}
