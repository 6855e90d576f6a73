package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-farm-market/internal/auth"
	"github.com/ariefcatur/go-farm-market/internal/booking"
	"github.com/ariefcatur/go-farm-market/internal/events"
	"github.com/ariefcatur/go-farm-market/internal/orders"
	"github.com/ariefcatur/go-farm-market/internal/produce"
)

// memStore mirrors the reservation repo's semantics in memory: one mutex
// stands in for the per-listing row lock.
type memStore struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*produce.Listing
	orders   map[uuid.UUID]*orders.Order
}

func newMemStore() *memStore {
	return &memStore{
		listings: make(map[uuid.UUID]*produce.Listing),
		orders:   make(map[uuid.UUID]*orders.Order),
	}
}

func (s *memStore) Reserve(_ context.Context, p orders.ReserveParams) (*orders.Order, *produce.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()

	l, ok := s.listings[p.ProduceID]
	if !ok {
		return nil, nil, produce.ErrNotFound
	}
	if produce.DeriveStatus(l.QuantityAvailable, l.AvailableDate, now) != produce.StatusActive {
		return nil, nil, orders.ErrNotAvailable
	}
	if p.Quantity < 1 {
		return nil, nil, orders.ErrInvalidQuantity
	}
	if p.BuyerID == l.FarmerID {
		return nil, nil, orders.ErrSelfOrder
	}
	if err := l.Debit(p.Quantity, now); err != nil {
		return nil, nil, err
	}

	o := &orders.Order{
		ID:            uuid.New(),
		BuyerID:       p.BuyerID,
		FarmerID:      l.FarmerID,
		ProduceID:     l.ID,
		Quantity:      p.Quantity,
		UnitPrice:     l.PricePerUnit,
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentPending,
		PickupDate:    p.PickupDate,
		Notes:         p.Notes,
		ProduceName:   l.Name,
		ProduceUnit:   string(l.Unit),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	o.RecomputeTotal()
	s.orders[o.ID] = o
	return o, l, nil
}

func (s *memStore) Cancel(_ context.Context, orderID uuid.UUID, reason string) (*orders.Order, *produce.Listing, error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil, nil, orders.ErrNotFound
	}
	if o.Status == orders.StatusCancelled {
		return o, nil, nil, nil
	}
	if o.Status.Terminal() {
		return nil, nil, nil, orders.ErrTerminal
	}
	if !orders.CanTransition(o.Status, orders.StatusCancelled) {
		return nil, nil, nil, &orders.TransitionError{From: o.Status, To: orders.StatusCancelled}
	}

	o.Status = orders.StatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason
	o.RecomputeTotal()

	l, ok := s.listings[o.ProduceID]
	if !ok {
		return o, nil, produce.ErrNotFound, nil
	}
	if err := l.Credit(o.Quantity, now); err != nil {
		return o, nil, err, nil
	}
	return o, l, nil, nil
}

func (s *memStore) UpdateStatus(_ context.Context, orderID uuid.UUID, to orders.Status) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	if o.Status == to {
		return o, nil
	}
	if o.Status.Terminal() {
		return nil, orders.ErrTerminal
	}
	if !orders.CanTransition(o.Status, to) {
		return nil, &orders.TransitionError{From: o.Status, To: to}
	}
	o.Status = to
	if to == orders.StatusCompleted && o.CompletedAt == nil {
		o.CompletedAt = &now
	}
	o.RecomputeTotal()
	return o, nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return o, nil
}

type recordedEvent struct {
	kind    string
	payload any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
	emails []events.EmailPayload
}

func (f *fakeNotifier) Notify(eventType, _ string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{kind: eventType, payload: payload})
}

func (f *fakeNotifier) EmailEvent(kind, recipientID string, p events.EmailPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Kind = kind
	p.RecipientID = recipientID
	f.emails = append(f.emails, p)
}

func (f *fakeNotifier) eventKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.kind)
	}
	return out
}

func newListing(farmerID uuid.UUID, qty int, price string) *produce.Listing {
	return &produce.Listing{
		ID:                uuid.New(),
		FarmerID:          farmerID,
		Name:              "Heirloom Tomatoes",
		Category:          produce.CategoryVegetables,
		QuantityAvailable: qty,
		OriginalQuantity:  qty,
		Unit:              produce.UnitKg,
		PricePerUnit:      decimal.RequireFromString(price),
		AvailableDate:     time.Now().UTC().Add(72 * time.Hour),
		Status:            produce.StatusActive,
	}
}

func newService(store *memStore) (*booking.Service, *fakeNotifier) {
	n := &fakeNotifier{}
	return booking.NewService(store, store, n, nil), n
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	farmerID := uuid.New()
	buyerID := uuid.New()
	pickup := time.Now().UTC().Add(48 * time.Hour)

	t.Run("Success", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 5, "2.00")
		store.listings[l.ID] = l
		svc, n := newService(store)

		o, err := svc.PlaceOrder(ctx, buyerID, booking.PlaceParams{
			ProduceID: l.ID, Quantity: 3, PickupDate: pickup,
		})
		require.NoError(t, err)

		assert.Equal(t, 3, o.Quantity)
		assert.Equal(t, "2.00", o.UnitPrice.StringFixed(2))
		assert.Equal(t, "6.00", o.TotalPrice.StringFixed(2))
		assert.Equal(t, orders.StatusPending, o.Status)
		assert.Equal(t, 2, l.QuantityAvailable)
		assert.Equal(t, produce.StatusActive, l.Status)

		assert.Equal(t, []string{events.EventNewOrder, events.EventProduceUpdated}, n.eventKinds())
		require.Len(t, n.emails, 2)
		assert.Equal(t, o.BuyerID.String(), n.emails[0].RecipientID)
		assert.Equal(t, o.FarmerID.String(), n.emails[1].RecipientID)
	})

	t.Run("SoldOutAfterFullDebit", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 3, "1.50")
		store.listings[l.ID] = l
		svc, _ := newService(store)

		_, err := svc.PlaceOrder(ctx, buyerID, booking.PlaceParams{
			ProduceID: l.ID, Quantity: 3, PickupDate: pickup,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, l.QuantityAvailable)
		assert.Equal(t, produce.StatusSoldOut, l.Status)
	})

	t.Run("PreconditionFailures", func(t *testing.T) {
		store := newMemStore()
		active := newListing(farmerID, 2, "2.00")
		expired := newListing(farmerID, 2, "2.00")
		expired.AvailableDate = time.Now().UTC().Add(-24 * time.Hour)
		store.listings[active.ID] = active
		store.listings[expired.ID] = expired
		svc, n := newService(store)

		tests := []struct {
			name    string
			buyer   uuid.UUID
			produce uuid.UUID
			qty     int
			wantErr error
		}{
			{"NotFound", buyerID, uuid.New(), 1, produce.ErrNotFound},
			{"NotAvailable", buyerID, expired.ID, 1, orders.ErrNotAvailable},
			{"InvalidQuantity", buyerID, active.ID, 0, orders.ErrInvalidQuantity},
			{"SelfOrder", farmerID, active.ID, 1, orders.ErrSelfOrder},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.PlaceOrder(ctx, tt.buyer, booking.PlaceParams{
					ProduceID: tt.produce, Quantity: tt.qty, PickupDate: pickup,
				})
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}

		assert.Equal(t, 2, active.QuantityAvailable, "failed placements must not touch the ledger")
		assert.Empty(t, n.eventKinds(), "failed placements emit nothing")
	})

	t.Run("OutOfStockReportsRemaining", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 2, "2.00")
		store.listings[l.ID] = l
		svc, _ := newService(store)

		_, err := svc.PlaceOrder(ctx, buyerID, booking.PlaceParams{
			ProduceID: l.ID, Quantity: 5, PickupDate: pickup,
		})
		var oos *produce.OutOfStockError
		require.ErrorAs(t, err, &oos)
		assert.Equal(t, 2, oos.Available)
		assert.Equal(t, "only 2 kg available", err.Error())
		assert.Equal(t, 2, l.QuantityAvailable)
	})

	t.Run("MissingPickupDate", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newService(store)
		_, err := svc.PlaceOrder(ctx, buyerID, booking.PlaceParams{ProduceID: uuid.New(), Quantity: 1})
		assert.ErrorIs(t, err, booking.ErrPickupRequired)
	})
}

func TestPlaceOrderConcurrent(t *testing.T) {
	ctx := context.Background()
	farmerID := uuid.New()
	pickup := time.Now().UTC().Add(48 * time.Hour)

	store := newMemStore()
	l := newListing(farmerID, 10, "1.00")
	store.listings[l.ID] = l
	svc, _ := newService(store)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, uuid.New(), booking.PlaceParams{
				ProduceID: l.ID, Quantity: 6, PickupDate: pickup,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, oos int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var e *produce.OutOfStockError
		require.ErrorAs(t, err, &e)
		oos++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, oos)
	assert.Equal(t, 4, l.QuantityAvailable)
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	farmerID := uuid.New()
	buyerID := uuid.New()
	pickup := time.Now().UTC().Add(48 * time.Hour)

	place := func(t *testing.T, store *memStore, svc *booking.Service, l *produce.Listing, qty int) *orders.Order {
		t.Helper()
		o, err := svc.PlaceOrder(ctx, buyerID, booking.PlaceParams{
			ProduceID: l.ID, Quantity: qty, PickupDate: pickup,
		})
		require.NoError(t, err)
		return o
	}

	t.Run("RoundTripRestoresQuantity", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 7, "3.25")
		store.listings[l.ID] = l
		svc, _ := newService(store)

		o := place(t, store, svc, l, 4)
		assert.Equal(t, 3, l.QuantityAvailable)

		require.NoError(t, svc.CancelOrder(ctx, o.ID, buyerID))
		assert.Equal(t, 7, l.QuantityAvailable)
		assert.Equal(t, orders.StatusCancelled, o.Status)
		assert.NotNil(t, o.CancelledAt)
	})

	t.Run("OnlyBuyerMayCancel", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 5, "2.00")
		store.listings[l.ID] = l
		svc, _ := newService(store)

		o := place(t, store, svc, l, 1)
		err := svc.CancelOrder(ctx, o.ID, uuid.New())
		assert.ErrorIs(t, err, booking.ErrForbidden)
	})

	t.Run("PendingOnly", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 5, "2.00")
		store.listings[l.ID] = l
		svc, _ := newService(store)

		o := place(t, store, svc, l, 1)
		o.Status = orders.StatusConfirmed

		err := svc.CancelOrder(ctx, o.ID, buyerID)
		assert.ErrorIs(t, err, booking.ErrNotCancellable)
		assert.Equal(t, 4, l.QuantityAvailable)
	})

	t.Run("ListingDeletedStillCancels", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 5, "2.00")
		store.listings[l.ID] = l
		svc, _ := newService(store)

		o := place(t, store, svc, l, 2)
		delete(store.listings, l.ID)

		require.NoError(t, svc.CancelOrder(ctx, o.ID, buyerID))
		assert.Equal(t, orders.StatusCancelled, o.Status)
	})

	t.Run("CreditOverflowReportedNotApplied", func(t *testing.T) {
		store := newMemStore()
		l := newListing(farmerID, 5, "2.00")
		store.listings[l.ID] = l
		svc, _ := newService(store)

		o := place(t, store, svc, l, 3)
		l.QuantityAvailable = 5 // simulate drift from an out-of-band write

		require.NoError(t, svc.CancelOrder(ctx, o.ID, buyerID))
		assert.Equal(t, orders.StatusCancelled, o.Status)
		assert.Equal(t, 5, l.QuantityAvailable, "overflowing credit must not be clamped in")
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	farmerID := uuid.New()
	buyerID := uuid.New()
	admin := &auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin}
	owner := &auth.Identity{UserID: farmerID, Role: auth.RoleFarmer}
	pickup := time.Now().UTC().Add(48 * time.Hour)

	setup := func(t *testing.T) (*booking.Service, *fakeNotifier, *produce.Listing, *orders.Order) {
		t.Helper()
		store := newMemStore()
		l := newListing(farmerID, 5, "2.00")
		store.listings[l.ID] = l
		svc, n := newService(store)
		o, err := svc.PlaceOrder(ctx, buyerID, booking.PlaceParams{
			ProduceID: l.ID, Quantity: 2, PickupDate: pickup,
		})
		require.NoError(t, err)
		n.events, n.emails = nil, nil
		return svc, n, l, o
	}

	t.Run("ForwardPath", func(t *testing.T) {
		svc, n, _, o := setup(t)

		for _, next := range []orders.Status{orders.StatusConfirmed, orders.StatusReady, orders.StatusCompleted} {
			got, err := svc.UpdateStatus(ctx, o.ID, next, owner)
			require.NoError(t, err)
			assert.Equal(t, next, got.Status)
		}
		assert.NotNil(t, o.CompletedAt)
		assert.Len(t, n.eventKinds(), 3)
		assert.Len(t, n.emails, 3)
	})

	t.Run("IdempotentSameStatus", func(t *testing.T) {
		svc, n, _, o := setup(t)

		got, err := svc.UpdateStatus(ctx, o.ID, orders.StatusPending, owner)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusPending, got.Status)
		assert.Empty(t, n.eventKinds(), "no-op transitions emit nothing")
		assert.Empty(t, n.emails)
	})

	t.Run("InvalidJump", func(t *testing.T) {
		svc, _, _, o := setup(t)

		_, err := svc.UpdateStatus(ctx, o.ID, orders.StatusReady, owner)
		var te *orders.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, orders.StatusPending, te.From)
		assert.Equal(t, orders.StatusReady, te.To)
	})

	t.Run("TerminalRejected", func(t *testing.T) {
		svc, _, l, o := setup(t)

		for _, next := range []orders.Status{orders.StatusConfirmed, orders.StatusReady, orders.StatusCompleted} {
			_, err := svc.UpdateStatus(ctx, o.ID, next, owner)
			require.NoError(t, err)
		}
		before := l.QuantityAvailable

		_, err := svc.UpdateStatus(ctx, o.ID, orders.StatusCancelled, owner)
		assert.ErrorIs(t, err, orders.ErrTerminal)
		assert.Equal(t, before, l.QuantityAvailable, "ledger unchanged on rejected transition")
	})

	t.Run("CancelFromConfirmedCreditsBack", func(t *testing.T) {
		svc, _, l, o := setup(t)

		_, err := svc.UpdateStatus(ctx, o.ID, orders.StatusConfirmed, owner)
		require.NoError(t, err)

		got, err := svc.UpdateStatus(ctx, o.ID, orders.StatusCancelled, admin)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusCancelled, got.Status)
		assert.Equal(t, 5, l.QuantityAvailable)
	})

	t.Run("Authorization", func(t *testing.T) {
		svc, _, _, o := setup(t)

		_, err := svc.UpdateStatus(ctx, o.ID, orders.StatusConfirmed,
			&auth.Identity{UserID: buyerID, Role: auth.RoleBuyer})
		assert.ErrorIs(t, err, booking.ErrForbidden)

		_, err = svc.UpdateStatus(ctx, o.ID, orders.StatusConfirmed,
			&auth.Identity{UserID: uuid.New(), Role: auth.RoleFarmer})
		assert.ErrorIs(t, err, booking.ErrForbidden)

		_, err = svc.UpdateStatus(ctx, o.ID, orders.StatusConfirmed, admin)
		assert.NoError(t, err)
	})

	t.Run("InvalidStatusString", func(t *testing.T) {
		svc, _, _, o := setup(t)
		_, err := svc.UpdateStatus(ctx, o.ID, orders.Status("shipped"), owner)
		assert.ErrorIs(t, err, booking.ErrInvalidStatus)
	})
}

func TestGetOrder(t *testing.T) {
	ctx := context.Background()
	farmerID := uuid.New()
	buyerID := uuid.New()

	store := newMemStore()
	l := newListing(farmerID, 5, "2.00")
	store.listings[l.ID] = l
	svc, _ := newService(store)

	o, err := svc.PlaceOrder(ctx, buyerID, booking.PlaceParams{
		ProduceID: l.ID, Quantity: 1, PickupDate: time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	for _, id := range []*auth.Identity{
		{UserID: buyerID, Role: auth.RoleBuyer},
		{UserID: farmerID, Role: auth.RoleFarmer},
		{UserID: uuid.New(), Role: auth.RoleAdmin},
	} {
		got, err := svc.GetOrder(ctx, o.ID, id)
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
	}

	_, err = svc.GetOrder(ctx, o.ID, &auth.Identity{UserID: uuid.New(), Role: auth.RoleBuyer})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	_, err = svc.GetOrder(ctx, uuid.New(), &auth.Identity{UserID: buyerID, Role: auth.RoleBuyer})
	assert.ErrorIs(t, err, orders.ErrNotFound)
}
