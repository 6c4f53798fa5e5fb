package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/shared"
)

// RecordedSale is a point-of-sale event entered by staff as it happens. Rows
// are immutable except for the void fields, which may be set exactly once.
type RecordedSale struct {
	ID               int64
	DailyRecordID    int64
	ProductVariantID int64
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	ShiftID          *int64
	ClientRef        string
	VoidedAt         *time.Time
	VoidReason       string
	VoidNotes        string
	RecordedAt       time.Time
}

// Voided reports whether the sale has been voided.
func (s RecordedSale) Voided() bool {
	return s.VoidedAt != nil
}

// Total is quantity times the captured unit price.
func (s RecordedSale) Total() decimal.Decimal {
	return s.Quantity.Mul(s.UnitPrice)
}

// RecordSaleInput captures a POS tap. ClientRef is an optional caller-side
// UUID used to deduplicate retried taps. DayID is optional: when set, the
// sale is rejected unless that day is the one currently open, so a stale
// client cannot book against yesterday.
type RecordSaleInput struct {
	VariantID int64
	Quantity  decimal.Decimal
	DayID     int64
	ShiftID   *int64
	ClientRef string
}

// Validate checks structural correctness.
func (in RecordSaleInput) Validate() error {
	if in.VariantID == 0 {
		return fmt.Errorf("%w: variant required", shared.ErrInvalidInput)
	}
	if in.Quantity.IsNegative() || in.Quantity.IsZero() {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	if in.ClientRef != "" {
		if _, err := uuid.Parse(in.ClientRef); err != nil {
			return fmt.Errorf("%w: client_ref must be a UUID", shared.ErrInvalidInput)
		}
	}
	return nil
}

// VoidSaleInput soft-cancels a recorded sale.
type VoidSaleInput struct {
	SaleID int64
	Reason string
	Notes  string
}

// Validate requires a reason; notes stay optional.
func (in VoidSaleInput) Validate() error {
	if in.SaleID == 0 {
		return fmt.Errorf("%w: sale id required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("%w: void reason required", shared.ErrInvalidInput)
	}
	return nil
}

var (
	// ErrDayNotOpen is returned when recording a sale with no open day.
	ErrDayNotOpen = fmt.Errorf("%w: no open day", shared.ErrInvalidState)
	// ErrDayMismatch is returned when the caller names a day that is not
	// the currently open one.
	ErrDayMismatch = fmt.Errorf("%w: day is not the open day", shared.ErrInvalidState)
	// ErrVariantInactive is returned when selling a deactivated variant.
	ErrVariantInactive = fmt.Errorf("%w: variant is inactive", shared.ErrInvalidState)
	// ErrSaleNotFound indicates an unknown sale id.
	ErrSaleNotFound = fmt.Errorf("%w: recorded sale", shared.ErrNotFound)
	// ErrAlreadyVoided is returned when voiding a sale a second time.
	ErrAlreadyVoided = fmt.Errorf("%w: sale already voided", shared.ErrInvalidState)
	// ErrDayClosed is returned when voiding a sale whose day has closed.
	// Distinct from ErrAlreadyVoided so callers present the right message.
	ErrDayClosed = fmt.Errorf("%w: day is closed", shared.ErrInvalidState)
)
