package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/services"
	"github.com/podomall/podomall/internal/toss"
)

type checkoutRequest struct {
	CouponID      *uuid.UUID           `json:"coupon_id,omitempty"`
	AddressID     *uuid.UUID           `json:"address_id,omitempty"`
	BuyNow        *services.BuyNowItem `json:"buy_now,omitempty"`
	CustomerName  string               `json:"customer_name"`
	CustomerEmail string               `json:"customer_email"`
}

// Checkout quotes the order server-side and returns the Toss widget
// parameters. The client never supplies an amount.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, sess, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	if name := strings.TrimSpace(req.CustomerName); name != "" || strings.TrimSpace(req.CustomerEmail) != "" {
		sess.Name = name
		sess.Email = strings.TrimSpace(req.CustomerEmail)
		if err := h.sessionManager.UpdateSession(ctx, r, sess); err != nil {
			h.loggerFromContext(ctx).Warn("failed to persist customer details on session", "error", err)
		}
	}

	quote, err := h.checkoutService.Prepare(ctx, services.PrepareInput{
		UserID:    userID,
		CouponID:  req.CouponID,
		AddressID: req.AddressID,
		BuyNow:    req.BuyNow,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyCart):
			respondError(ctx, w, http.StatusConflict, "EMPTY_CART", "nothing to check out")
		case errors.Is(err, services.ErrCouponNotUsable):
			respondError(ctx, w, http.StatusConflict, "COUPON_NOT_USABLE", "coupon cannot be used")
		case errors.Is(err, services.ErrCouponBelowMinimum):
			respondError(ctx, w, http.StatusConflict, "COUPON_BELOW_MINIMUM", "order does not meet the coupon minimum")
		default:
			h.loggerFromContext(ctx).Error("failed to prepare checkout", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to prepare checkout")
		}
		return
	}

	respondData(ctx, w, http.StatusOK, quote)
}

// CheckoutSuccess is where the Toss widget redirects after payment. It runs
// reconciliation and returns the durable order.
func (h *Handlers) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, sess, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	orderNumber := strings.TrimSpace(query.Get("orderId"))
	paymentKey := strings.TrimSpace(query.Get("paymentKey"))
	amountParam := strings.TrimSpace(query.Get("amount"))
	if orderNumber == "" || paymentKey == "" || amountParam == "" {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_REDIRECT", "orderId, paymentKey and amount are required")
		return
	}
	amount, err := strconv.Atoi(amountParam)
	if err != nil || amount <= 0 {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be a positive integer")
		return
	}

	input := services.ReconcileInput{
		UserID:        userID,
		OrderNumber:   orderNumber,
		PaymentKey:    paymentKey,
		Amount:        amount,
		CouponID:      strings.TrimSpace(query.Get("couponId")),
		CustomerName:  sess.Name,
		CustomerEmail: sess.Email,
	}
	if buyNow, ok := parseBuyNowQuery(query.Get("buyNowProductId"), query.Get("buyNowQuantity")); ok {
		input.BuyNow = buyNow
	}

	order, err := h.reconcileService.Reconcile(ctx, input)
	if err != nil {
		logger := h.loggerFromContext(ctx)
		var bookkeeping *services.BookkeepingError
		var apiErr *toss.APIError
		switch {
		case errors.As(err, &bookkeeping):
			logger.Error("payment succeeded but order processing failed", "error", err, "order_number", orderNumber, "payment_key", paymentKey)
			respondError(ctx, w, http.StatusInternalServerError, "BOOKKEEPING_FAILED", "payment succeeded, order processing failed; contact support")
		case errors.Is(err, services.ErrAmountMismatch):
			respondError(ctx, w, http.StatusConflict, "AMOUNT_MISMATCH", "payment amount does not match the order")
		case errors.Is(err, services.ErrPaymentNotDone):
			respondError(ctx, w, http.StatusConflict, "PAYMENT_NOT_DONE", "payment is not completed")
		case errors.Is(err, services.ErrNothingToReconcile):
			respondError(ctx, w, http.StatusConflict, "NOTHING_TO_RECONCILE", "no cart or buy-now item for this order")
		case errors.As(err, &apiErr):
			logger.Warn("payment confirmation rejected", "error", err, "order_number", orderNumber)
			respondError(ctx, w, http.StatusBadGateway, "PAYMENT_REJECTED", "payment confirmation failed")
		default:
			logger.Error("failed to reconcile order", "error", err, "order_number", orderNumber)
			respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to process the order")
		}
		return
	}

	respondData(ctx, w, http.StatusOK, order)
}

// CheckoutFail is the widget's failure redirect. Nothing was charged, so it
// only records the failure and echoes a user-facing message.
func (h *Handlers) CheckoutFail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	code := strings.TrimSpace(query.Get("code"))
	message := strings.TrimSpace(query.Get("message"))
	orderNumber := strings.TrimSpace(query.Get("orderId"))

	h.loggerFromContext(ctx).Warn("payment failed at widget",
		"order_number", orderNumber,
		"code", code,
		"message", message,
	)

	if message == "" {
		message = "결제가 완료되지 않았습니다. 다시 시도해 주세요."
	}
	respondData(ctx, w, http.StatusOK, map[string]string{
		"order_number": orderNumber,
		"code":         code,
		"message":      message,
	})
}

func parseBuyNowQuery(productParam, quantityParam string) (*services.BuyNowItem, bool) {
	productParam = strings.TrimSpace(productParam)
	if productParam == "" {
		return nil, false
	}
	productID, err := uuid.Parse(productParam)
	if err != nil {
		return nil, false
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(quantityParam))
	if err != nil || quantity < 1 {
		quantity = 1
	}
	return &services.BuyNowItem{ProductID: productID, Quantity: quantity}, true
}
