package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/stragan/stragan/internal/shared"
)

// Staff is a till operator. The PIN identifies who pressed the button for
// the shift log; it is bookkeeping, not authentication.
type Staff struct {
	ID        int64
	Name      string
	PINHash   string
	Active    bool
	CreatedAt time.Time
}

// Shift is one staffed stretch behind the till. Sales may reference it.
type Shift struct {
	ID       int64
	StaffID  int64
	OpenedAt time.Time
	ClosedAt *time.Time
}

// Open reports whether the shift is still running.
func (s Shift) Open() bool {
	return s.ClosedAt == nil
}

// CreateStaffInput registers a till operator.
type CreateStaffInput struct {
	Name string
	PIN  string
}

// Validate requires a name and a 4 to 6 digit PIN.
func (in CreateStaffInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: staff name required", shared.ErrInvalidInput)
	}
	if len(in.PIN) < 4 || len(in.PIN) > 6 {
		return fmt.Errorf("%w: PIN must be 4 to 6 digits", shared.ErrInvalidInput)
	}
	for _, r := range in.PIN {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: PIN must be 4 to 6 digits", shared.ErrInvalidInput)
		}
	}
	return nil
}

var (
	// ErrStaffNotFound indicates an unknown staff id.
	ErrStaffNotFound = fmt.Errorf("%w: staff member", shared.ErrNotFound)
	// ErrShiftNotFound indicates an unknown shift id.
	ErrShiftNotFound = fmt.Errorf("%w: shift", shared.ErrNotFound)
	// ErrShiftAlreadyOpen is returned when a staff member opens a second shift.
	ErrShiftAlreadyOpen = fmt.Errorf("%w: staff member already has an open shift", shared.ErrConflict)
	// ErrShiftClosed is returned when closing a shift twice.
	ErrShiftClosed = fmt.Errorf("%w: shift already closed", shared.ErrInvalidState)
	// ErrWrongPIN is returned when the entered PIN does not match.
	ErrWrongPIN = fmt.Errorf("%w: wrong PIN", shared.ErrInvalidInput)
	// ErrStaffInactive is returned when an inactive staff member opens a shift.
	ErrStaffInactive = fmt.Errorf("%w: staff member is inactive", shared.ErrInvalidState)
)
