package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/podomall/podomall/internal/db"
)

const defaultOrderListLimit = 20

// MyOrders lists the session user's orders, newest first.
func (h *Handlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	limit := defaultOrderListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	orders, err := h.orderStore.ListByUser(ctx, userID, limit)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to list orders", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load orders")
		return
	}
	respondData(ctx, w, http.StatusOK, orders)
}

// MyOrder returns one of the session user's orders by order number. Orders
// belonging to other sessions answer 404, not 403.
func (h *Handlers) MyOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	orderNumber := mux.Vars(r)["orderNumber"]
	order, err := h.orderStore.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "NOT_FOUND", "order not found")
			return
		}
		h.loggerFromContext(ctx).Error("failed to load order", "error", err, "order_number", orderNumber)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load order")
		return
	}
	if order.UserID != userID {
		respondError(ctx, w, http.StatusNotFound, "NOT_FOUND", "order not found")
		return
	}

	respondData(ctx, w, http.StatusOK, order)
}
