package sales

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stragan/stragan/internal/platform/db"
)

// Repository persists recorded sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	LockOpenDay(ctx context.Context) (int64, error)
	DayStatus(ctx context.Context, dayID int64) (string, error)
	InsertSale(ctx context.Context, sale RecordedSale) (RecordedSale, error)
	LockSale(ctx context.Context, id int64) (RecordedSale, error)
	MarkVoided(ctx context.Context, id int64, voidedAt time.Time, reason, notes string) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const saleColumns = `id, daily_record_id, product_variant_id, quantity, unit_price, shift_id, client_ref, voided_at, void_reason, void_notes, recorded_at`

// GetSale loads a recorded sale by id.
func (r *Repository) GetSale(ctx context.Context, id int64) (RecordedSale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM recorded_sales WHERE id=$1`, id)
	return scanSale(row)
}

// ListSales returns the day's sales, voided included, oldest first.
func (r *Repository) ListSales(ctx context.Context, dayID int64) ([]RecordedSale, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM recorded_sales
WHERE daily_record_id=$1 ORDER BY recorded_at ASC, id ASC`, dayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecordedSale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

// LockOpenDay takes a share lock on the open day row so a concurrent close
// cannot commit underneath the sale. Sales of the same day do not block each
// other.
func (r *txRepository) LockOpenDay(ctx context.Context) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM daily_records WHERE status='OPEN' FOR SHARE`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrDayNotOpen
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) DayStatus(ctx context.Context, dayID int64) (string, error) {
	var status string
	err := r.tx.QueryRow(ctx, `SELECT status FROM daily_records WHERE id=$1 FOR SHARE`, dayID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSaleNotFound
		}
		return "", err
	}
	return status, nil
}

func (r *txRepository) InsertSale(ctx context.Context, sale RecordedSale) (RecordedSale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO recorded_sales (daily_record_id, product_variant_id, quantity, unit_price, shift_id, client_ref, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		sale.DailyRecordID, sale.ProductVariantID, sale.Quantity, sale.UnitPrice, sale.ShiftID, nullString(sale.ClientRef), sale.RecordedAt).
		Scan(&sale.ID)
	if err != nil {
		return RecordedSale{}, err
	}
	return sale, nil
}

func (r *txRepository) LockSale(ctx context.Context, id int64) (RecordedSale, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM recorded_sales WHERE id=$1 FOR UPDATE`, id)
	return scanSale(row)
}

func (r *txRepository) MarkVoided(ctx context.Context, id int64, voidedAt time.Time, reason, notes string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE recorded_sales SET voided_at=$2, void_reason=$3, void_notes=$4
WHERE id=$1 AND voided_at IS NULL`, id, voidedAt, reason, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyVoided
	}
	return nil
}

func scanSale(row pgx.Row) (RecordedSale, error) {
	var s RecordedSale
	var clientRef, voidReason, voidNotes *string
	err := row.Scan(&s.ID, &s.DailyRecordID, &s.ProductVariantID, &s.Quantity, &s.UnitPrice,
		&s.ShiftID, &clientRef, &s.VoidedAt, &voidReason, &voidNotes, &s.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RecordedSale{}, ErrSaleNotFound
		}
		return RecordedSale{}, err
	}
	if clientRef != nil {
		s.ClientRef = *clientRef
	}
	if voidReason != nil {
		s.VoidReason = *voidReason
	}
	if voidNotes != nil {
		s.VoidNotes = *voidNotes
	}
	return s, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
