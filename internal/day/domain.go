package day

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/shared"
)

// RecordStatus is the day lifecycle state. The transition OPEN to CLOSED is
// one-way and terminal.
type RecordStatus string

const (
	// StatusOpen accepts sales and ledger events.
	StatusOpen RecordStatus = "OPEN"
	// StatusClosed is terminal; no event may be attributed to the day anymore.
	StatusClosed RecordStatus = "CLOSED"
)

// SnapshotType distinguishes the two clipboard counts taken per day.
type SnapshotType string

const (
	// SnapshotOpen is the shop count taken when the day opens.
	SnapshotOpen SnapshotType = "OPEN"
	// SnapshotClose is the shop count entered at day close.
	SnapshotClose SnapshotType = "CLOSE"
)

// DailyRecord is a trading day. At most one record may be open at a time,
// enforced by the storage layer rather than in-memory state.
type DailyRecord struct {
	ID       int64
	Date     time.Time
	Status   RecordStatus
	Notes    string
	OpenedAt time.Time
	ClosedAt *time.Time
}

// Snapshot is one counted quantity for one ingredient on one day.
type Snapshot struct {
	DailyRecordID int64
	IngredientID  int64
	Type          SnapshotType
	Quantity      decimal.Decimal
}

// SnapshotInput is a counted quantity keyed by ingredient.
type SnapshotInput struct {
	IngredientID int64
	Quantity     decimal.Decimal
}

// OpenDayInput opens a trading day with one opening count per tracked
// ingredient.
type OpenDayInput struct {
	Date      time.Time
	Snapshots []SnapshotInput
}

// Validate checks structural correctness; unit granularity is checked by the
// service against each ingredient.
func (in OpenDayInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", shared.ErrInvalidInput)
	}
	return validateSnapshots(in.Snapshots)
}

// CloseDayInput closes a day with one closing count per ingredient that has
// an opening count.
type CloseDayInput struct {
	DayID     int64
	Snapshots []SnapshotInput
	Notes     string
}

// Validate checks structural correctness of the closing counts.
func (in CloseDayInput) Validate() error {
	if in.DayID == 0 {
		return fmt.Errorf("%w: day id required", shared.ErrInvalidInput)
	}
	return validateSnapshots(in.Snapshots)
}

func validateSnapshots(snapshots []SnapshotInput) error {
	if len(snapshots) == 0 {
		return fmt.Errorf("%w: at least one snapshot required", shared.ErrInvalidInput)
	}
	seen := make(map[int64]bool, len(snapshots))
	for _, s := range snapshots {
		if s.IngredientID == 0 {
			return fmt.Errorf("%w: snapshot missing ingredient", shared.ErrInvalidInput)
		}
		if seen[s.IngredientID] {
			return fmt.Errorf("%w: duplicate snapshot for ingredient %d", shared.ErrInvalidInput, s.IngredientID)
		}
		seen[s.IngredientID] = true
		if s.Quantity.IsNegative() {
			return fmt.Errorf("%w: snapshot quantity cannot be negative", shared.ErrInvalidInput)
		}
	}
	return nil
}

var (
	// ErrDayAlreadyOpen is returned when opening a day while another is open.
	ErrDayAlreadyOpen = fmt.Errorf("%w: another day is already open", shared.ErrConflict)
	// ErrDayNotFound indicates an unknown daily record id.
	ErrDayNotFound = fmt.Errorf("%w: daily record", shared.ErrNotFound)
	// ErrDayClosed is returned when mutating a day that has already closed.
	ErrDayClosed = fmt.Errorf("%w: day is closed", shared.ErrInvalidState)
	// ErrDayStillOpen is returned when reading usage before the day closed.
	ErrDayStillOpen = fmt.Errorf("%w: day has not been closed yet", shared.ErrInvalidState)
	// ErrMissingSnapshot is returned when a closing count is missing for an
	// ingredient that has an opening count.
	ErrMissingSnapshot = fmt.Errorf("%w: missing snapshot", shared.ErrInvalidInput)
	// ErrUnknownSnapshot is returned for a closing count on an ingredient
	// without an opening count.
	ErrUnknownSnapshot = fmt.Errorf("%w: no opening snapshot for ingredient", shared.ErrInvalidInput)
)
