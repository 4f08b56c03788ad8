package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/models"
)

func (h *Handlers) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	addresses, err := h.addressStore.ListByUser(ctx, userID)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to list addresses", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load addresses")
		return
	}
	respondData(ctx, w, http.StatusOK, addresses)
}

type addressRequest struct {
	Label         string `json:"label"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverPhone string `json:"receiver_phone"`
	PostalCode    string `json:"postal_code"`
	BaseAddress   string `json:"base_address"`
	DetailAddress string `json:"detail_address"`
	IsDefault     bool   `json:"is_default"`
}

func (h *Handlers) CreateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	var req addressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if strings.TrimSpace(req.ReceiverName) == "" || strings.TrimSpace(req.BaseAddress) == "" {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_ADDRESS", "receiver_name and base_address are required")
		return
	}

	address := &models.Address{
		UserID:        userID,
		Label:         strings.TrimSpace(req.Label),
		ReceiverName:  strings.TrimSpace(req.ReceiverName),
		ReceiverPhone: strings.TrimSpace(req.ReceiverPhone),
		PostalCode:    strings.TrimSpace(req.PostalCode),
		BaseAddress:   strings.TrimSpace(req.BaseAddress),
		DetailAddress: strings.TrimSpace(req.DetailAddress),
		IsDefault:     req.IsDefault,
	}
	if err := h.addressStore.Create(ctx, address); err != nil {
		h.loggerFromContext(ctx).Error("failed to create address", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to save address")
		return
	}

	respondData(ctx, w, http.StatusCreated, address)
}

func (h *Handlers) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	addressID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_ID", "invalid address id")
		return
	}

	if err := h.addressStore.Delete(ctx, userID, addressID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "NOT_FOUND", "address not found")
			return
		}
		h.loggerFromContext(ctx).Error("failed to delete address", "error", err, "address_id", addressID)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to delete address")
		return
	}

	respondData(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}
