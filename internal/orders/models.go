package orders

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrTerminal rejects any mutation of a completed or cancelled order.
	ErrTerminal = errors.New("cannot modify completed or cancelled orders")

	ErrNotAvailable    = errors.New("produce is not available")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrSelfOrder       = errors.New("cannot order from yourself")
)

type Order struct {
	ID        uuid.UUID
	BuyerID   uuid.UUID
	FarmerID  uuid.UUID
	ProduceID uuid.UUID

	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal

	Status        Status
	PaymentStatus PaymentStatus

	PickupDate         time.Time
	Notes              string
	CancellationReason string

	CancelledAt *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Denormalized on reads via join; empty when the listing is gone.
	ProduceName string
	ProduceUnit string
}

// RecomputeTotal must run before persisting any mutation that touches
// quantity or unit price.
func (o *Order) RecomputeTotal() {
	o.TotalPrice = o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}
