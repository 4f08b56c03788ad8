package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/logging"
	"github.com/podomall/podomall/internal/models"
	"github.com/podomall/podomall/internal/services"
)

// AdminLogin exchanges the configured credentials for a bearer token.
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	token, err := h.adminService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.loggerFromContext(ctx).Warn("admin login rejected", "remote_ip", clientIP(r))
			respondError(ctx, w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			return
		}
		h.loggerFromContext(ctx).Error("admin login failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "login failed")
		return
	}

	respondData(ctx, w, http.StatusOK, map[string]string{"token": token})
}

// RequireAdmin gates the admin subrouter on a valid bearer token.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "bearer token required")
			return
		}

		subject, err := h.adminService.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			h.loggerFromContext(ctx).Warn("admin token rejected", "error", err, "remote_ip", clientIP(r))
			respondError(ctx, w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		ctx = logging.WithLogger(ctx, h.loggerFromContext(ctx).With("admin", subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminListOrders returns one page of orders with per-item shipped
// quantities, for the fulfilment screen.
func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := db.OrderFilter{
		Status: models.OrderStatus(strings.TrimSpace(query.Get("status"))),
		Search: strings.TrimSpace(query.Get("search")),
	}
	if raw := strings.TrimSpace(query.Get("vendorId")); raw != "" {
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "INVALID_VENDOR", "invalid vendor id")
			return
		}
		filter.VendorID = &vendorID
	}
	if raw := query.Get("page"); raw != "" {
		filter.Page, _ = strconv.Atoi(raw)
	}
	if raw := query.Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}

	orders, total, err := h.orderStore.List(ctx, filter)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to list orders", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load orders")
		return
	}

	respondData(ctx, w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
	})
}

// AdminUpdateOrderStatus applies a guarded status transition.
func (h *Handlers) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_ID", "invalid order id")
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	switch req.Status {
	case models.StatusPreparing:
		err = h.orderStore.MarkPreparing(ctx, orderID)
	case models.StatusShipped:
		err = h.orderStore.MarkShipped(ctx, orderID)
	case models.StatusDelivered:
		err = h.orderStore.MarkDelivered(ctx, orderID)
	case models.StatusCancelled:
		err = h.orderStore.MarkCancelled(ctx, orderID)
	case models.StatusRefunded:
		err = h.orderStore.MarkRefunded(ctx, orderID)
	default:
		respondError(ctx, w, http.StatusBadRequest, "INVALID_STATUS", "unsupported status")
		return
	}
	if err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			respondError(ctx, w, http.StatusConflict, "INVALID_TRANSITION", "order is not in a state that allows this transition")
			return
		}
		h.loggerFromContext(ctx).Error("failed to update order status", "error", err, "order_id", orderID, "status", req.Status)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to update order")
		return
	}

	order, err := h.orderStore.GetByID(ctx, orderID)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to reload order after transition", "error", err, "order_id", orderID)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load order")
		return
	}
	respondData(ctx, w, http.StatusOK, order)
}

type vendorRequest struct {
	Name              string `json:"name"`
	ContactEmail      string `json:"contact_email"`
	SettlementAccount string `json:"settlement_account"`
}

func (h *Handlers) AdminCreateVendor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req vendorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_VENDOR", "name is required")
		return
	}

	vendor := &models.Vendor{
		Name:              strings.TrimSpace(req.Name),
		ContactEmail:      strings.TrimSpace(req.ContactEmail),
		SettlementAccount: strings.TrimSpace(req.SettlementAccount),
	}
	if err := h.vendorStore.Create(ctx, vendor); err != nil {
		h.loggerFromContext(ctx).Error("failed to create vendor", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to create vendor")
		return
	}
	respondData(ctx, w, http.StatusCreated, vendor)
}

func (h *Handlers) AdminListVendors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vendors, err := h.vendorStore.List(ctx)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to list vendors", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load vendors")
		return
	}
	respondData(ctx, w, http.StatusOK, vendors)
}

type productRequest struct {
	VendorID      uuid.UUID `json:"vendor_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	PriceB2C      int       `json:"price_b2c"`
	StockQuantity int       `json:"stock_quantity"`
	ImageURL      string    `json:"image_url"`
	IsActive      bool      `json:"is_active"`
}

func (h *Handlers) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.VendorID == uuid.Nil || strings.TrimSpace(req.Name) == "" {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_PRODUCT", "vendor_id and name are required")
		return
	}
	if req.PriceB2C < 0 || req.StockQuantity < 0 {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_PRODUCT", "price and stock must not be negative")
		return
	}

	product := &models.Product{
		VendorID:      req.VendorID,
		SKU:           strings.TrimSpace(req.SKU),
		Name:          strings.TrimSpace(req.Name),
		PriceB2C:      req.PriceB2C,
		StockQuantity: req.StockQuantity,
		ImageURL:      strings.TrimSpace(req.ImageURL),
		IsActive:      req.IsActive,
	}
	if err := h.productStore.Create(ctx, product); err != nil {
		h.loggerFromContext(ctx).Error("failed to create product", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to create product")
		return
	}
	respondData(ctx, w, http.StatusCreated, product)
}

type couponRequest struct {
	Code          string              `json:"code"`
	Name          string              `json:"name"`
	DiscountType  models.DiscountType `json:"discount_type"`
	DiscountValue int                 `json:"discount_value"`
	MinAmount     *int                `json:"min_amount,omitempty"`
	MaxAmount     *int                `json:"max_amount,omitempty"`
	MaxUses       *int                `json:"max_uses,omitempty"`
	UserMaxUses   *int                `json:"user_max_uses,omitempty"`
	StartsAt      *time.Time          `json:"starts_at,omitempty"`
	EndsAt        *time.Time          `json:"ends_at,omitempty"`
	IsActive      bool                `json:"is_active"`
}

func (h *Handlers) AdminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req couponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_COUPON", "code is required")
		return
	}
	switch req.DiscountType {
	case models.DiscountPercentage, models.DiscountFixedAmount, models.DiscountFreeShipping:
	default:
		respondError(ctx, w, http.StatusBadRequest, "INVALID_COUPON", "unsupported discount type")
		return
	}
	if req.DiscountValue < 0 {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_COUPON", "discount value must not be negative")
		return
	}

	coupon := &models.Coupon{
		Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:          strings.TrimSpace(req.Name),
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinAmount:     req.MinAmount,
		MaxAmount:     req.MaxAmount,
		MaxUses:       req.MaxUses,
		UserMaxUses:   req.UserMaxUses,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		IsActive:      req.IsActive,
	}
	if err := h.couponStore.Create(ctx, coupon); err != nil {
		h.loggerFromContext(ctx).Error("failed to create coupon", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon")
		return
	}
	respondData(ctx, w, http.StatusCreated, coupon)
}

func (h *Handlers) AdminListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	coupons, err := h.couponStore.List(ctx)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to list coupons", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load coupons")
		return
	}
	respondData(ctx, w, http.StatusOK, coupons)
}

func (h *Handlers) AdminSetCouponActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	couponID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_ID", "invalid coupon id")
		return
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	if err := h.couponStore.SetActive(ctx, couponID, req.IsActive); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "NOT_FOUND", "coupon not found")
			return
		}
		h.loggerFromContext(ctx).Error("failed to update coupon", "error", err, "coupon_id", couponID)
		respondError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon")
		return
	}
	respondData(ctx, w, http.StatusOK, map[string]bool{"is_active": req.IsActive})
}
