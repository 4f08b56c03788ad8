package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/services"
)

// ClaimCoupon attaches a coupon code to the session user.
func (h *Handlers) ClaimCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_CODE", "code is required")
		return
	}

	userCoupon, err := h.couponService.Claim(ctx, userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCouponNotFound):
			respondError(ctx, w, http.StatusNotFound, "COUPON_NOT_FOUND", "no such coupon")
		case errors.Is(err, services.ErrCouponInactive):
			respondError(ctx, w, http.StatusConflict, "COUPON_INACTIVE", "coupon is not currently active")
		case errors.Is(err, services.ErrCouponExhausted):
			respondError(ctx, w, http.StatusConflict, "COUPON_EXHAUSTED", "coupon has been fully used")
		case errors.Is(err, db.ErrCouponAlreadyClaimed):
			respondError(ctx, w, http.StatusConflict, "ALREADY_CLAIMED", "coupon already claimed")
		default:
			h.loggerFromContext(ctx).Error("failed to claim coupon", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to claim coupon")
		}
		return
	}

	respondData(ctx, w, http.StatusCreated, userCoupon)
}

// MyCoupons lists the session user's claimed coupons.
func (h *Handlers) MyCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	coupons, err := h.couponService.ListMine(ctx, userID)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to list user coupons", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load coupons")
		return
	}
	respondData(ctx, w, http.StatusOK, coupons)
}
