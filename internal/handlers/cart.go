package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/podomall/podomall/internal/db"
)

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	cart, err := h.cartStore.Get(ctx, userID)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to load cart", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load cart")
		return
	}
	respondData(ctx, w, http.StatusOK, cart)
}

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// AddCartItem sets the quantity for a product line, creating the cart on
// first use. Quantity zero removes the line.
func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.ProductID == uuid.Nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_PRODUCT", "product_id is required")
		return
	}
	if req.Quantity < 0 {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_QUANTITY", "quantity must not be negative")
		return
	}

	if req.Quantity > 0 {
		product, err := h.productStore.GetByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				respondError(ctx, w, http.StatusNotFound, "NOT_FOUND", "product not found")
				return
			}
			h.loggerFromContext(ctx).Error("failed to load product for cart", "error", err, "product_id", req.ProductID)
			respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to update cart")
			return
		}
		if !product.IsActive {
			respondError(ctx, w, http.StatusConflict, "PRODUCT_INACTIVE", "product is not for sale")
			return
		}
		if product.StockQuantity < req.Quantity {
			respondError(ctx, w, http.StatusConflict, "OUT_OF_STOCK", "not enough stock")
			return
		}
	}

	if err := h.cartStore.SetItem(ctx, userID, req.ProductID, req.Quantity); err != nil {
		h.loggerFromContext(ctx).Error("failed to update cart", "error", err, "product_id", req.ProductID)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to update cart")
		return
	}

	h.respondCart(w, r, userID)
}

// UpdateCartItem changes the quantity of an existing line.
func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	productID, err := uuid.Parse(mux.Vars(r)["productID"])
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_ID", "invalid product id")
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.Quantity < 0 {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_QUANTITY", "quantity must not be negative")
		return
	}

	if err := h.cartStore.SetItem(ctx, userID, productID, req.Quantity); err != nil {
		h.loggerFromContext(ctx).Error("failed to update cart item", "error", err, "product_id", productID)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to update cart")
		return
	}

	h.respondCart(w, r, userID)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	productID, err := uuid.Parse(mux.Vars(r)["productID"])
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_ID", "invalid product id")
		return
	}

	if err := h.cartStore.RemoveItem(ctx, userID, productID); err != nil {
		h.loggerFromContext(ctx).Error("failed to remove cart item", "error", err, "product_id", productID)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to update cart")
		return
	}

	h.respondCart(w, r, userID)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	if err := h.cartStore.Clear(ctx, userID); err != nil {
		h.loggerFromContext(ctx).Error("failed to clear cart", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to clear cart")
		return
	}

	h.respondCart(w, r, userID)
}

func (h *Handlers) respondCart(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	ctx := r.Context()
	cart, err := h.cartStore.Get(ctx, userID)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to reload cart", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load cart")
		return
	}
	respondData(ctx, w, http.StatusOK, cart)
}
