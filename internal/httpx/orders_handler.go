package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ariefcatur/go-farm-market/internal/auth"
	"github.com/ariefcatur/go-farm-market/internal/booking"
	"github.com/ariefcatur/go-farm-market/internal/orders"
)

type bookingService interface {
	PlaceOrder(ctx context.Context, buyerID uuid.UUID, p booking.PlaceParams) (*orders.Order, error)
	CancelOrder(ctx context.Context, orderID, requestorID uuid.UUID) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to orders.Status, actor *auth.Identity) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor *auth.Identity) (*orders.Order, error)
}

type orderLister interface {
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*orders.Order, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*orders.Order, error)
	ListAll(ctx context.Context, f orders.AdminFilter) ([]*orders.Order, int, error)
}

type OrdersHandler struct {
	Booking bookingService
	Repo    orderLister
	Auth    *auth.Auth
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(h.Auth.Authenticate)
		r.With(auth.RequireRoles(auth.RoleBuyer)).Post("/", h.placeOrder)
		r.With(auth.RequireRoles(auth.RoleBuyer)).Get("/buyer", h.listBuyer)
		r.With(auth.RequireRoles(auth.RoleFarmer)).Get("/farmer", h.listFarmer)
		r.With(auth.RequireRoles(auth.RoleAdmin)).Get("/admin", h.listAdmin)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}/status", h.updateStatus)
		r.Delete("/{id}", h.cancelOrder)
	})
}

type placeOrderReq struct {
	ProduceID  string    `json:"produceId"`
	Quantity   int       `json:"quantity"`
	PickupDate time.Time `json:"pickupDate"`
	Notes      string    `json:"notes,omitempty"`
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	produceID, err := uuid.Parse(req.ProduceID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid produce id"})
		return
	}
	if len(req.Notes) > 500 {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "notes cannot exceed 500 characters"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Booking.PlaceOrder(ctx, id.UserID, booking.PlaceParams{
		ProduceID:  produceID,
		Quantity:   req.Quantity,
		PickupDate: req.PickupDate,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order placed successfully",
		"order":   toOrderJSON(o),
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errBody{Error: "order not found"})
		return
	}

	o, err := h.Booking.GetOrder(r.Context(), orderID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errBody{Error: "order not found"})
		return
	}

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Booking.UpdateStatus(ctx, orderID, orders.Status(req.Status), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order status updated successfully",
		"order":   toOrderJSON(o),
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errBody{Error: "order not found"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Booking.CancelOrder(ctx, orderID, id.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order cancelled successfully"})
}

func (h *OrdersHandler) listBuyer(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	os, err := h.Repo.ListByBuyer(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(os))
}

func (h *OrdersHandler) listFarmer(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	os, err := h.Repo.ListByFarmer(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(os))
}

func (h *OrdersHandler) listAdmin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	f := orders.AdminFilter{Status: orders.Status(q.Get("status")), Page: page, Limit: limit}
	if f.Status != "" && !f.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid status"})
		return
	}

	os, total, err := h.Repo.ListAll(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     toOrderList(os),
		"pagination": paginate(page, limit, total),
	})
}
