package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-farm-market/internal/auth"
	"github.com/ariefcatur/go-farm-market/internal/booking"
	"github.com/ariefcatur/go-farm-market/internal/events"
	"github.com/ariefcatur/go-farm-market/internal/notify"
	"github.com/ariefcatur/go-farm-market/internal/produce"
	"github.com/ariefcatur/go-farm-market/internal/redisx"
)

type produceStore interface {
	Create(ctx context.Context, p produce.CreateParams) (*produce.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*produce.Listing, error)
	List(ctx context.Context, f produce.ListFilter) ([]*produce.Listing, int, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*produce.Listing, error)
	Update(ctx context.Context, id uuid.UUID, p produce.UpdateParams) (*produce.Listing, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProduceHandler struct {
	Repo   produceStore
	Events notify.Notifier
	Redis  *redis.Client
	Auth   *auth.Auth
}

func (h *ProduceHandler) Register(r chi.Router) {
	r.Route("/produce", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Authenticate, auth.RequireRoles(auth.RoleFarmer))
			r.Post("/", h.create)
			r.Get("/farmer", h.listFarmer)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.remove)
		})
	})
}

type createProduceReq struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Quantity      int             `json:"quantity"`
	Unit          string          `json:"unit"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
	Description   string          `json:"description,omitempty"`
	AvailableDate time.Time       `json:"availableDate"`
	HarvestDate   *time.Time      `json:"harvestDate,omitempty"`
	IsOrganic     bool            `json:"isOrganic,omitempty"`
	Images        []string        `json:"images,omitempty"`
}

func (h *ProduceHandler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createProduceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}

	params := produce.CreateParams{
		FarmerID:      id.UserID,
		Name:          req.Name,
		Category:      produce.Category(req.Category),
		Description:   req.Description,
		Quantity:      req.Quantity,
		Unit:          produce.Unit(req.Unit),
		PricePerUnit:  req.PricePerUnit,
		AvailableDate: req.AvailableDate,
		HarvestDate:   req.HarvestDate,
		IsOrganic:     req.IsOrganic,
		Images:        req.Images,
	}
	if err := params.Validate(time.Now().UTC()); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l, err := h.Repo.Create(ctx, params)
	if err != nil {
		writeError(w, err)
		return
	}

	h.Events.Notify(events.EventNewProduce, l.ID.String(), toProducePayload(l))
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Produce added successfully",
		"produce": toListingJSON(l),
	})
}

func (h *ProduceHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	f := produce.ListFilter{
		Category:   produce.Category(q.Get("category")),
		Search:     q.Get("search"),
		SortBy:     q.Get("sortBy"),
		SortDesc:   q.Get("order") != "asc",
		Page:       page,
		Limit:      limit,
		ActiveOnly: true,
	}

	ls, total, err := h.Repo.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]listingJSON, 0, len(ls))
	for _, l := range ls {
		out = append(out, toListingJSON(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"produces":   out,
		"pagination": paginate(page, limit, total),
	})
}

func (h *ProduceHandler) listFarmer(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ls, err := h.Repo.ListByFarmer(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]listingJSON, 0, len(ls))
	for _, l := range ls {
		out = append(out, toListingJSON(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProduceHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errBody{Error: "produce not found"})
		return
	}

	key := fmt.Sprintf(redisx.KeyProduceCache, id)
	if h.Redis != nil {
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	l, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	body, _ := json.Marshal(toListingJSON(l))
	if h.Redis != nil {
		_ = h.Redis.Set(r.Context(), key, body, redisx.TTLProduceCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type updateProduceReq struct {
	Name          *string          `json:"name"`
	Category      *string          `json:"category"`
	Description   *string          `json:"description"`
	PricePerUnit  *decimal.Decimal `json:"pricePerUnit"`
	AvailableDate *time.Time       `json:"availableDate"`
	IsOrganic     *bool            `json:"isOrganic"`
	Images        []string         `json:"images"`
	HarvestDate   *time.Time       `json:"harvestDate"`
}

func (h *ProduceHandler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errBody{Error: "produce not found"})
		return
	}

	var req updateProduceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if req.Category != nil && !produce.Category(*req.Category).Valid() {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid category"})
		return
	}
	if req.PricePerUnit != nil && !req.PricePerUnit.IsPositive() {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "price must be greater than 0"})
		return
	}

	if err := h.requireOwner(r.Context(), listingID, id.UserID); err != nil {
		writeError(w, err)
		return
	}

	params := produce.UpdateParams{
		Name:          req.Name,
		Description:   req.Description,
		PricePerUnit:  req.PricePerUnit,
		AvailableDate: req.AvailableDate,
		IsOrganic:     req.IsOrganic,
		Images:        req.Images,
		HarvestDate:   req.HarvestDate,
	}
	if req.Category != nil {
		c := produce.Category(*req.Category)
		params.Category = &c
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	l, err := h.Repo.Update(ctx, listingID, params)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, listingID)

	h.Events.Notify(events.EventProduceUpdated, l.ID.String(), toProducePayload(l))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Produce updated successfully",
		"produce": toListingJSON(l),
	})
}

func (h *ProduceHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errBody{Error: "produce not found"})
		return
	}

	if err := h.requireOwner(r.Context(), listingID, id.UserID); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.Delete(ctx, listingID); err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, listingID)

	h.Events.Notify(events.EventProduceRemoved, listingID.String(),
		events.ProduceRemovedPayload{ProduceID: listingID.String()})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Produce removed successfully"})
}

func (h *ProduceHandler) requireOwner(ctx context.Context, listingID, userID uuid.UUID) error {
	l, err := h.Repo.Get(ctx, listingID)
	if err != nil {
		return err
	}
	if l.FarmerID != userID {
		return booking.ErrForbidden
	}
	return nil
}

func (h *ProduceHandler) invalidate(ctx context.Context, id uuid.UUID) {
	if h.Redis != nil {
		_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyProduceCache, id)).Err()
	}
}

func toProducePayload(l *produce.Listing) events.ProducePayload {
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
