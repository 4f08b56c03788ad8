package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/podomall/podomall/internal/db"
)

// ListProducts returns the active catalog.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.productStore.ListActive(ctx)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to list products", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load products")
		return
	}
	respondData(ctx, w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_ID", "invalid product id")
		return
	}

	product, err := h.productStore.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "NOT_FOUND", "product not found")
			return
		}
		h.loggerFromContext(ctx).Error("failed to load product", "error", err, "product_id", productID)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load product")
		return
	}
	respondData(ctx, w, http.StatusOK, product)
}
