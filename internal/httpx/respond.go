package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-farm-market/internal/booking"
	"github.com/ariefcatur/go-farm-market/internal/orders"
	"github.com/ariefcatur/go-farm-market/internal/produce"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error string `json:"error"`
}

// writeError maps the typed domain errors onto HTTP. Anything unrecognized is
// a genuine storage fault and becomes an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var transition *orders.TransitionError
	var oos *produce.OutOfStockError

	switch {
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, produce.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody{Error: err.Error()})
	case errors.Is(err, booking.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errBody{Error: "access denied"})
	case errors.Is(err, booking.ErrContention),
		errors.Is(err, produce.ErrListingReferenced):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error()})
	case errors.As(err, &oos),
		errors.As(err, &transition),
		errors.Is(err, orders.ErrTerminal),
		errors.Is(err, orders.ErrNotAvailable),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrSelfOrder),
		errors.Is(err, booking.ErrNotCancellable),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, booking.ErrPickupRequired):
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errBody{Error: "server error"})
	}
}

type orderJSON struct {
	ID                 string     `json:"id"`
	BuyerID            string     `json:"buyer_id"`
	FarmerID           string     `json:"farmer_id"`
	ProduceID          string     `json:"produce_id"`
	ProduceName        string     `json:"produce_name,omitempty"`
	ProduceUnit        string     `json:"produce_unit,omitempty"`
	Quantity           int        `json:"quantity"`
	UnitPrice          string     `json:"unit_price"`
	TotalPrice         string     `json:"total_price"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	PickupDate         time.Time  `json:"pickup_date"`
	Notes              string     `json:"notes,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toOrderJSON(o *orders.Order) orderJSON {
	return orderJSON{
		ID:                 o.ID.String(),
		BuyerID:            o.BuyerID.String(),
		FarmerID:           o.FarmerID.String(),
		ProduceID:          o.ProduceID.String(),
		ProduceName:        o.ProduceName,
		ProduceUnit:        o.ProduceUnit,
		Quantity:           o.Quantity,
		UnitPrice:          o.UnitPrice.StringFixed(2),
		TotalPrice:         o.TotalPrice.StringFixed(2),
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		PickupDate:         o.PickupDate,
		Notes:              o.Notes,
		CancellationReason: o.CancellationReason,
		CancelledAt:        o.CancelledAt,
		CompletedAt:        o.CompletedAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func toOrderList(os []*orders.Order) []orderJSON {
	out := make([]orderJSON, 0, len(os))
	for _, o := range os {
		out = append(out, toOrderJSON(o))
	}
	return out
}

type listingJSON struct {
	ID                string     `json:"id"`
	FarmerID          string     `json:"farmer_id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	Description       string     `json:"description,omitempty"`
	QuantityAvailable int        `json:"quantity_available"`
	OriginalQuantity  int        `json:"original_quantity"`
	Unit              string     `json:"unit"`
	PricePerUnit      string     `json:"price_per_unit"`
	AvailableDate     time.Time  `json:"available_date"`
	HarvestDate       *time.Time `json:"harvest_date,omitempty"`
	IsOrganic         bool       `json:"is_organic"`
	Images            []string   `json:"images,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toListingJSON(l *produce.Listing) listingJSON {
	return listingJSON{
		ID:                l.ID.String(),
		FarmerID:          l.FarmerID.String(),
		Name:              l.Name,
		Category:          string(l.Category),
		Description:       l.Description,
		QuantityAvailable: l.QuantityAvailable,
		OriginalQuantity:  l.OriginalQuantity,
		Unit:              string(l.Unit),
		PricePerUnit:      l.PricePerUnit.StringFixed(2),
		AvailableDate:     l.AvailableDate,
		HarvestDate:       l.HarvestDate,
		IsOrganic:         l.IsOrganic,
		Images:            l.Images,
		Status:            string(l.Status),
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func paginate(page, limit, total int) pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
