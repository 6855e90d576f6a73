// Package booking is the reservation coordinator. It is the only path that
// creates orders, moves them through their lifecycle, and touches listing
// quantities, so oversell and double-credit bugs have exactly one place to
// not happen.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-farm-market/internal/auth"
	"github.com/ariefcatur/go-farm-market/internal/events"
	"github.com/ariefcatur/go-farm-market/internal/notify"
	"github.com/ariefcatur/go-farm-market/internal/orders"
	"github.com/ariefcatur/go-farm-market/internal/postgres"
	"github.com/ariefcatur/go-farm-market/internal/produce"
)

var (
	ErrForbidden = errors.New("access denied")

	// ErrContention surfaces after the bounded retries on conflicting
	// writers are exhausted.
	ErrContention = errors.New("listing is contended, retry the request")

	ErrNotCancellable = errors.New("can only cancel pending orders")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrPickupRequired = errors.New("pickup date is required")
)

// Store serializes all quantity mutations per listing. Satisfied by
// orders.ReservationRepo; tests use an in-memory implementation.
type Store interface {
	Reserve(ctx context.Context, p orders.ReserveParams) (*orders.Order, *produce.Listing, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (o *orders.Order, l *produce.Listing, warn error, err error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to orders.Status) (*orders.Order, error)
}

// OrderReader is the read side used for authorization checks.
type OrderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
}

type Service struct {
	Store  Store
	Orders OrderReader
	Events notify.Notifier
	Log    *slog.Logger
}

func NewService(store Store, reader OrderReader, emitter notify.Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{Store: store, Orders: reader, Events: emitter, Log: log}
}

type PlaceParams struct {
	ProduceID  uuid.UUID
	Quantity   int
	PickupDate time.Time
	Notes      string
}

// PlaceOrder debits the listing and creates a pending order atomically, then
// fires notifications. The store checks preconditions in a fixed order
// (exists, active, quantity, self-order, stock); this wrapper only maps
// retry exhaustion to ErrContention and keeps event emission out of the
// critical section.
func (s *Service) PlaceOrder(ctx context.Context, buyerID uuid.UUID, p PlaceParams) (*orders.Order, error) {
	if p.PickupDate.IsZero() {
		return nil, ErrPickupRequired
	}

	o, l, err := s.Store.Reserve(ctx, orders.ReserveParams{
		BuyerID:    buyerID,
		ProduceID:  p.ProduceID,
		Quantity:   p.Quantity,
		PickupDate: p.PickupDate,
		Notes:      p.Notes,
	})
	if err != nil {
		if errors.Is(err, postgres.ErrRetriesExhausted) {
			return nil, ErrContention
		}
		return nil, err
	}

	s.Events.Notify(events.EventNewOrder, o.ID.String(), orderPayload(o))
	s.Events.Notify(events.EventProduceUpdated, l.ID.String(), producePayload(l))
	s.Events.EmailEvent(events.EmailKindOrderConfirmation, o.BuyerID.String(), emailPayload(o))
	s.Events.EmailEvent(events.EmailKindOrderConfirmation, o.FarmerID.String(), emailPayload(o))
	return o, nil
}

// CancelOrder is the buyer path: owner only, pending only.
func (s *Service) CancelOrder(ctx context.Context, orderID, requestorID uuid.UUID) error {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.BuyerID != requestorID {
		return ErrForbidden
	}
	if o.Status != orders.StatusPending {
		return ErrNotCancellable
	}
	_, err = s.cancel(ctx, orderID, "cancelled by buyer")
	return err
}

// UpdateStatus is the farmer/admin path through the transition table.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to orders.Status, actor *auth.Identity) (*orders.Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	isOwner := actor.Role == auth.RoleFarmer && actor.UserID == o.FarmerID
	if !isOwner && actor.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}

	// Same status requested again: success, nothing written, nothing emitted.
	if o.Status == to {
		return o, nil
	}

	if to == orders.StatusCancelled {
		return s.cancel(ctx, orderID, "cancelled by "+string(actor.Role))
	}

	updated, err := s.Store.UpdateStatus(ctx, orderID, to)
	if err != nil {
		if errors.Is(err, postgres.ErrRetriesExhausted) {
			return nil, ErrContention
		}
		return nil, err
	}

	s.Events.Notify(events.EventOrderUpdated, updated.ID.String(), orderPayload(updated))
	s.Events.EmailEvent(events.EmailKindStatusUpdate, updated.BuyerID.String(), emailPayload(updated))
	return updated, nil
}

func (s *Service) cancel(ctx context.Context, orderID uuid.UUID, reason string) (*orders.Order, error) {
	o, l, warn, err := s.Store.Cancel(ctx, orderID, reason)
	if err != nil {
		if errors.Is(err, postgres.ErrRetriesExhausted) {
			return nil, ErrContention
		}
		return nil, err
	}
	if warn != nil {
		// The order is cancelled either way; the listing-side credit could
		// not be applied. Logged, never surfaced to the caller.
		s.Log.Warn("recoverable inconsistency: credit not applied",
			"order_id", o.ID, "produce_id", o.ProduceID, "reason", warn)
	}

	s.Events.Notify(events.EventOrderUpdated, o.ID.String(), orderPayload(o))
	if l != nil {
		s.Events.Notify(events.EventProduceUpdated, l.ID.String(), producePayload(l))
	}
	s.Events.EmailEvent(events.EmailKindStatusUpdate, o.BuyerID.String(), emailPayload(o))
	return o, nil
}

// GetOrder enforces the participant-or-admin read rule.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID, actor *auth.Identity) (*orders.Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != o.BuyerID && actor.UserID != o.FarmerID && actor.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	return o, nil
}

func orderPayload(o *orders.Order) events.OrderPayload {
	return events.OrderPayload{
		OrderID:     o.ID.String(),
		BuyerID:     o.BuyerID.String(),
		FarmerID:    o.FarmerID.String(),
		ProduceID:   o.ProduceID.String(),
		ProduceName: o.ProduceName,
		Quantity:    o.Quantity,
		Unit:        o.ProduceUnit,
		TotalPrice:  o.TotalPrice.StringFixed(2),
		Status:      string(o.Status),
		PickupDate:  o.PickupDate,
	}
}

func producePayload(l *produce.Listing) events.ProducePayload {
	return events.ProducePayload{
		ProduceID:         l.ID.String(),
		FarmerID:          l.FarmerID.String(),
		Name:              l.Name,
		Category:          string(l.Category),
		QuantityAvailable: l.QuantityAvailable,
		Unit:              string(l.Unit),
		PricePerUnit:      l.PricePerUnit.StringFixed(2),
		Status:            string(l.Status),
		AvailableDate:     l.AvailableDate,
	}
}

func emailPayload(o *orders.Order) events.EmailPayload {
	return events.EmailPayload{
		OrderID:     o.ID.String(),
		ProduceName: o.ProduceName,
		Quantity:    o.Quantity,
		Unit:        o.ProduceUnit,
		TotalPrice:  o.TotalPrice.StringFixed(2),
		Status:      string(o.Status),
	}
}
