package stock

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stragan/stragan/internal/shared"
)

// Location identifies where a batch physically sits.
type Location string

const (
	// LocationStorage is the back-room store.
	LocationStorage Location = "STORAGE"
	// LocationShop is the front-of-house stock sales draw from.
	LocationShop Location = "SHOP"
)

// Valid reports whether the location is one of the known values.
func (l Location) Valid() bool {
	return l == LocationStorage || l == LocationShop
}

// MovementType enumerates ledger events.
type MovementType string

const (
	// MovementDelivery is an inbound delivery creating a batch.
	MovementDelivery MovementType = "DELIVERY"
	// MovementTransfer moves stock between locations.
	MovementTransfer MovementType = "TRANSFER"
	// MovementSpoilage writes stock off.
	MovementSpoilage MovementType = "SPOILAGE"
	// MovementSale is sale-driven consumption.
	MovementSale MovementType = "SALE"
)

// Batch is a lot of ingredient stock with its own remaining quantity and
// optional expiry date. Batches are created by deliveries, drawn down by
// consumption and retired when exhausted.
type Batch struct {
	ID           int64
	IngredientID int64
	BatchNumber  string
	ExpiryDate   *time.Time
	InitialQty   decimal.Decimal
	RemainingQty decimal.Decimal
	Location     Location
	Active       bool
	CreatedAt    time.Time
}

// Movement records a single ledger event for day-close aggregation. The
// daily record id is captured from the day open at the time of the event;
// events logged outside any open day carry none.
type Movement struct {
	ID            int64
	IngredientID  int64
	Type          MovementType
	Quantity      decimal.Decimal
	From          Location
	To            Location
	Reason        string
	DailyRecordID *int64
	OccurredAt    time.Time
}

// ConsumedBatch reports a draw taken from one batch during consumption.
type ConsumedBatch struct {
	BatchID     int64           `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity"`
	Remaining   decimal.Decimal `json:"remaining"`
}

// DeliveryInput describes an inbound delivery.
type DeliveryInput struct {
	IngredientID int64
	Quantity     decimal.Decimal
	Destination  Location
	ExpiryDate   *time.Time
}

// Validate checks structural correctness; unit granularity is checked by the
// service against the ingredient.
func (in DeliveryInput) Validate() error {
	if in.IngredientID == 0 {
		return fmt.Errorf("%w: ingredient required", shared.ErrInvalidInput)
	}
	if !in.Destination.Valid() {
		return fmt.Errorf("%w: destination must be STORAGE or SHOP", shared.ErrInvalidInput)
	}
	if in.Quantity.IsNegative() || in.Quantity.IsZero() {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	return nil
}

// TransferInput moves stock between the two locations, storage to shop by default.
type TransferInput struct {
	IngredientID int64
	Quantity     decimal.Decimal
	From         Location
	To           Location
}

// Validate ensures a coherent transfer.
func (in TransferInput) Validate() error {
	if in.IngredientID == 0 {
		return fmt.Errorf("%w: ingredient required", shared.ErrInvalidInput)
	}
	if !in.From.Valid() || !in.To.Valid() {
		return fmt.Errorf("%w: locations must be STORAGE or SHOP", shared.ErrInvalidInput)
	}
	if in.From == in.To {
		return fmt.Errorf("%w: source and destination must differ", shared.ErrInvalidInput)
	}
	if in.Quantity.IsNegative() || in.Quantity.IsZero() {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	return nil
}

// SpoilageInput writes stock off at a location.
type SpoilageInput struct {
	IngredientID int64
	Quantity     decimal.Decimal
	Reason       string
	Location     Location
}

// Validate ensures reason and location are present.
func (in SpoilageInput) Validate() error {
	if in.IngredientID == 0 {
		return fmt.Errorf("%w: ingredient required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("%w: spoilage reason required", shared.ErrInvalidInput)
	}
	if !in.Location.Valid() {
		return fmt.Errorf("%w: location must be STORAGE or SHOP", shared.ErrInvalidInput)
	}
	if in.Quantity.IsNegative() || in.Quantity.IsZero() {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidInput)
	}
	return nil
}

// ErrShortStock is returned when eligible batches cannot cover a consumption
// request. The ledger applies no partial mutation in that case.
var ErrShortStock = fmt.Errorf("%w: eligible batches below requested quantity", shared.ErrInsufficientStock)
