package shift

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists staff and shifts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertStaff stores a new staff member.
func (r *Repository) InsertStaff(ctx context.Context, staff Staff) (Staff, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO staff (name, pin_hash, is_active, created_at)
VALUES ($1,$2,TRUE,$3) RETURNING id`, staff.Name, staff.PINHash, staff.CreatedAt).Scan(&staff.ID)
	if err != nil {
		return Staff{}, err
	}
	staff.Active = true
	return staff, nil
}

// GetStaff loads a staff member by id.
func (r *Repository) GetStaff(ctx context.Context, id int64) (Staff, error) {
	var s Staff
	err := r.pool.QueryRow(ctx, `SELECT id, name, pin_hash, is_active, created_at FROM staff WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.PINHash, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Staff{}, ErrStaffNotFound
		}
		return Staff{}, err
	}
	return s, nil
}

// ListStaff returns all staff, active first.
func (r *Repository) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, pin_hash, is_active, created_at FROM staff
ORDER BY is_active DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.PINHash, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertShift opens a shift. A partial unique index keeps one open shift per
// staff member.
func (r *Repository) InsertShift(ctx context.Context, staffID int64, openedAt time.Time) (Shift, error) {
	shift := Shift{StaffID: staffID, OpenedAt: openedAt}
	err := r.pool.QueryRow(ctx, `INSERT INTO shifts (staff_id, opened_at) VALUES ($1,$2) RETURNING id`,
		staffID, openedAt).Scan(&shift.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Shift{}, ErrShiftAlreadyOpen
		}
		return Shift{}, err
	}
	return shift, nil
}

// GetShift loads a shift by id.
func (r *Repository) GetShift(ctx context.Context, id int64) (Shift, error) {
	var s Shift
	err := r.pool.QueryRow(ctx, `SELECT id, staff_id, opened_at, closed_at FROM shifts WHERE id=$1`, id).
		Scan(&s.ID, &s.StaffID, &s.OpenedAt, &s.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shift{}, ErrShiftNotFound
		}
		return Shift{}, err
	}
	return s, nil
}

// CloseShift stamps the closing time once.
func (r *Repository) CloseShift(ctx context.Context, id int64, closedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE shifts SET closed_at=$2 WHERE id=$1 AND closed_at IS NULL`, id, closedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftClosed
	}
	return nil
}
