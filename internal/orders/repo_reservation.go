package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-farm-market/internal/postgres"
	"github.com/ariefcatur/go-farm-market/internal/produce"
)

// ReservationRepo owns every quantity mutation on a listing. All debits and
// credits run under the listing's row lock, so two concurrent placements can
// never both pass the availability check.
type ReservationRepo struct{ DB *pgxpool.Pool }

type ReserveParams struct {
	BuyerID    uuid.UUID
	ProduceID  uuid.UUID
	Quantity   int
	PickupDate time.Time
	Notes      string
}

const lockListing = `
	SELECT id, farmer_id, name, category, quantity_available, original_quantity,
	       unit, price_per_unit, available_date
	FROM produce WHERE id=$1 FOR UPDATE`

func scanLockedListing(row pgx.Row) (*produce.Listing, error) {
	var l produce.Listing
	err := row.Scan(&l.ID, &l.FarmerID, &l.Name, &l.Category, &l.QuantityAvailable,
		&l.OriginalQuantity, &l.Unit, &l.PricePerUnit, &l.AvailableDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, produce.ErrNotFound
		}
		return nil, fmt.Errorf("lock listing: %w", err)
	}
	return &l, nil
}

// Reserve debits the listing and creates the order as one transaction.
// Preconditions are checked in a fixed order, first failure wins.
func (r *ReservationRepo) Reserve(ctx context.Context, p ReserveParams) (*Order, *produce.Listing, error) {
	var (
		o *Order
		l *produce.Listing
	)

	err := postgres.WithRetry(ctx, r.DB, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		var err error
		l, err = scanLockedListing(tx.QueryRow(ctx, lockListing, p.ProduceID))
		if err != nil {
			return err
		}
		if produce.DeriveStatus(l.QuantityAvailable, l.AvailableDate, now) != produce.StatusActive {
			return ErrNotAvailable
		}
		if p.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if p.BuyerID == l.FarmerID {
			return ErrSelfOrder
		}
		if err := l.Debit(p.Quantity, now); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE produce SET quantity_available=$2, status=$3, updated_at=NOW()
			WHERE id=$1`, l.ID, l.QuantityAvailable, l.Status); err != nil {
			return fmt.Errorf("debit listing: %w", err)
		}

		o = &Order{
			ID:            uuid.New(),
			BuyerID:       p.BuyerID,
			FarmerID:      l.FarmerID,
			ProduceID:     l.ID,
			Quantity:      p.Quantity,
			UnitPrice:     l.PricePerUnit,
			Status:        StatusPending,
			PaymentStatus: PaymentPending,
			PickupDate:    p.PickupDate,
			Notes:         p.Notes,
			ProduceName:   l.Name,
			ProduceUnit:   string(l.Unit),
		}
		o.RecomputeTotal()

		return tx.QueryRow(ctx, `
			INSERT INTO orders(id, buyer_id, farmer_id, produce_id, quantity,
				unit_price, total_price, status, payment_status, pickup_date, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING created_at, updated_at`,
			o.ID, o.BuyerID, o.FarmerID, o.ProduceID, o.Quantity,
			o.UnitPrice, o.TotalPrice, o.Status, o.PaymentStatus, o.PickupDate, o.Notes,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
	})
	if err != nil {
		return nil, nil, err
	}
	return o, l, nil
}

const lockOrder = `
	SELECT id, buyer_id, farmer_id, produce_id, quantity, unit_price, total_price,
	       status, payment_status, pickup_date, notes, cancellation_reason,
	       cancelled_at, completed_at, created_at, updated_at
	FROM orders WHERE id=$1 FOR UPDATE`

func scanLockedOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.FarmerID, &o.ProduceID, &o.Quantity,
		&o.UnitPrice, &o.TotalPrice, &o.Status, &o.PaymentStatus, &o.PickupDate,
		&o.Notes, &o.CancellationReason, &o.CancelledAt, &o.CompletedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return &o, nil
}

// Cancel moves the order to cancelled and credits the quantity back to its
// listing in the same transaction. A missing listing, or a credit that would
// exceed the original quantity, does not block the cancellation; the warning
// is returned for the caller to log. An already-cancelled order is a no-op.
func (r *ReservationRepo) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (o *Order, l *produce.Listing, warn error, err error) {
	err = postgres.WithRetry(ctx, r.DB, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		warn, l = nil, nil

		var terr error
		o, terr = scanLockedOrder(tx.QueryRow(ctx, lockOrder, orderID))
		if terr != nil {
			return terr
		}
		if o.Status == StatusCancelled {
			return nil // duplicate delivery, already done
		}
		if o.Status.Terminal() {
			return ErrTerminal
		}
		if !CanTransition(o.Status, StatusCancelled) {
			return &TransitionError{From: o.Status, To: StatusCancelled}
		}

		o.Status = StatusCancelled
		o.CancelledAt = &now
		o.CancellationReason = reason
		o.RecomputeTotal()
		if _, terr := tx.Exec(ctx, `
			UPDATE orders SET status=$2, cancelled_at=$3, cancellation_reason=$4,
				total_price=$5, updated_at=NOW()
			WHERE id=$1`, o.ID, o.Status, o.CancelledAt, o.CancellationReason, o.TotalPrice); terr != nil {
			return fmt.Errorf("cancel order: %w", terr)
		}

		listing, terr := scanLockedListing(tx.QueryRow(ctx, lockListing, o.ProduceID))
		if terr != nil {
			if errors.Is(terr, produce.ErrNotFound) {
				warn = terr
				return nil
			}
			return terr
		}
		if cerr := listing.Credit(o.Quantity, now); cerr != nil {
			warn = cerr
			return nil
		}
		if _, terr := tx.Exec(ctx, `
			UPDATE produce SET quantity_available=$2, status=$3, updated_at=NOW()
			WHERE id=$1`, listing.ID, listing.QuantityAvailable, listing.Status); terr != nil {
			return fmt.Errorf("credit listing: %w", terr)
		}
		l = listing
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return o, l, warn, nil
}

// UpdateStatus applies a forward transition (confirmed, ready, completed).
// Cancellations go through Cancel so the credit stays in the same tx.
// Requesting the current status is a no-op success.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, to Status) (*Order, error) {
	var o *Order
	err := postgres.WithRetry(ctx, r.DB, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		var terr error
		o, terr = scanLockedOrder(tx.QueryRow(ctx, lockOrder, orderID))
		if terr != nil {
			return terr
		}
		if o.Status == to {
			return nil // idempotent, nothing written
		}
		if o.Status.Terminal() {
			return ErrTerminal
		}
		if !CanTransition(o.Status, to) {
			return &TransitionError{From: o.Status, To: to}
		}

		o.Status = to
		if to == StatusCompleted && o.CompletedAt == nil {
			o.CompletedAt = &now
		}
		o.RecomputeTotal()
		if _, terr := tx.Exec(ctx, `
			UPDATE orders SET status=$2, completed_at=$3, total_price=$4, updated_at=NOW()
			WHERE id=$1`, o.ID, o.Status, o.CompletedAt, o.TotalPrice); terr != nil {
			return fmt.Errorf("update order status: %w", terr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}
