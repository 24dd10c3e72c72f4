package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/market"
	"github.com/safar/farm-market/internal/models"
	"github.com/safar/farm-market/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"

	defaultPageSize = 20
	maxPageSize     = 100
)

// OrderReader serves the order reads the market service does not cover.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersPage(ctx context.Context, customerID, cursor string, limit int) (*store.OrderPage, error)
}

type Handler struct {
	Market *market.Service
	Orders OrderReader
	Logger *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/listings", func(r chi.Router) {
		r.Get("/", h.listListings)
		r.Post("/", h.createListing)
		r.Get("/{id}", h.getListing)
		r.Patch("/{id}", h.updateListing)
		r.Delete("/{id}", h.deleteListing)
		r.Post("/{id}/orders", h.placeOrder)
	})
	r.Get("/provinces", h.provinces)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/analytics", h.analytics)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateOrderStatus)
		r.Patch("/{id}/payment-status", h.updatePaymentStatus)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// fail maps a flow error onto a status code. Unexpected errors are logged
// and reported as 500 without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *market.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, database.ErrItemNotFound), errors.Is(err, database.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "invalid cursor")
	case errors.Is(err, database.ErrInsufficientQuantity):
		writeError(w, http.StatusConflict, err.Error())
	case database.IsRetryable(err):
		writeError(w, http.StatusConflict, "listing is busy, try again")
	case database.IsCheckViolation(err), database.IsNumericOverflow(err):
		writeError(w, http.StatusBadRequest, "value out of range")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timed out")
	default:
		h.Logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func actor(r *http.Request) (market.Actor, bool) {
	a := market.Actor{ID: r.Header.Get(HeaderUserID), Name: r.Header.Get(HeaderUserName)}
	return a, a.ID != ""
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (market.Actor, bool) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID)
	}
	return a, ok
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minPrice, err := parseDecimal(q.Get("minPrice"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid minPrice")
		return
	}
	maxPrice, err := parseDecimal(q.Get("maxPrice"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxPrice")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Market.ListItems(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, market.Apply(items, market.Criteria{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Province: q.Get("province"),
		PriceMin: minPrice,
		PriceMax: maxPrice,
		Sort:     market.ParseSortKey(q.Get("sort")),
	}))
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	item, err := h.Market.GetItem(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	seller, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var in market.ListingInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.Market.CreateListing(ctx, seller, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	var patch models.ItemPatch
	if !decode(w, r, &patch) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Market.UpdateListing(ctx, chi.URLParam(r, "id"), patch); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Market.DeleteListing(ctx, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req market.OrderRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.Market.GetItem(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.Market.PlaceOrder(ctx, buyer, *item, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// listOrders returns all of the caller's orders oldest first, or one page
// newest first when limit or cursor is given.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	if q.Get("limit") == "" && q.Get("cursor") == "" {
		orders, err := h.Market.ListOrders(ctx, buyer)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
		return
	}

	limit := defaultPageSize
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxPageSize)
	}

	page, err := h.Orders.ListOrdersPage(ctx, buyer.ID, q.Get("cursor"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.ownOrder(ctx, buyer, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ownOrder loads an order placed by buyer. Someone else's order reads as
// missing.
func (h *Handler) ownOrder(ctx context.Context, buyer market.Actor, id string) (*models.Order, error) {
	order, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != buyer.ID {
		return nil, database.ErrOrderNotFound
	}
	return order, nil
}

func (h *Handler) provinces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Provinces)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.Market.ListOrders(ctx, buyer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, market.Summarize(orders))
}

type statusReq struct {
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req statusReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.ownOrder(ctx, buyer, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.Market.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), req.Status); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req statusReq
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.ownOrder(ctx, buyer, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.Market.UpdatePaymentStatus(ctx, chi.URLParam(r, "id"), req.PaymentStatus); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentStatus": string(req.PaymentStatus)})
}
