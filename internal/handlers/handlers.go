// Package handlers provides the storefront and admin HTTP API.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/cache"
	"github.com/podomall/podomall/internal/config"
	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/logging"
	"github.com/podomall/podomall/internal/services"
	"github.com/podomall/podomall/internal/session"
)

const maxUploadBytes = 10 << 20 // 10 MB workbook cap

type Handlers struct {
	config           *config.Config
	db               *pgxpool.Pool
	orderStore       *db.OrderStore
	productStore     *db.ProductStore
	cartStore        *db.CartStore
	couponStore      *db.CouponStore
	addressStore     *db.AddressStore
	vendorStore      *db.VendorStore
	deliveryStore    *db.DeliveryStore
	cacheProvider    cache.Provider
	sessionManager   *session.Manager
	checkoutService  *services.CheckoutService
	reconcileService *services.ReconcileService
	allocatorService *services.AllocatorService
	couponService    *services.CouponService
	adminService     *services.AdminService
	logger           *slog.Logger
}

type Dependencies struct {
	Config           *config.Config
	DB               *pgxpool.Pool
	OrderStore       *db.OrderStore
	ProductStore     *db.ProductStore
	CartStore        *db.CartStore
	CouponStore      *db.CouponStore
	AddressStore     *db.AddressStore
	VendorStore      *db.VendorStore
	DeliveryStore    *db.DeliveryStore
	CacheProvider    cache.Provider
	SessionManager   *session.Manager
	CheckoutService  *services.CheckoutService
	ReconcileService *services.ReconcileService
	AllocatorService *services.AllocatorService
	CouponService    *services.CouponService
	AdminService     *services.AdminService
	Logger           *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.OrderStore == nil {
		return nil, fmt.Errorf("handlers dependencies: orderStore is required")
	}
	if deps.ProductStore == nil {
		return nil, fmt.Errorf("handlers dependencies: productStore is required")
	}
	if deps.CartStore == nil {
		return nil, fmt.Errorf("handlers dependencies: cartStore is required")
	}
	if deps.CouponStore == nil {
		return nil, fmt.Errorf("handlers dependencies: couponStore is required")
	}
	if deps.AddressStore == nil {
		return nil, fmt.Errorf("handlers dependencies: addressStore is required")
	}
	if deps.VendorStore == nil {
		return nil, fmt.Errorf("handlers dependencies: vendorStore is required")
	}
	if deps.DeliveryStore == nil {
		return nil, fmt.Errorf("handlers dependencies: deliveryStore is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.SessionManager == nil {
		return nil, fmt.Errorf("handlers dependencies: sessionManager is required")
	}
	if deps.CheckoutService == nil {
		return nil, fmt.Errorf("handlers dependencies: checkoutService is required")
	}
	if deps.ReconcileService == nil {
		return nil, fmt.Errorf("handlers dependencies: reconcileService is required")
	}
	if deps.AllocatorService == nil {
		return nil, fmt.Errorf("handlers dependencies: allocatorService is required")
	}
	if deps.CouponService == nil {
		return nil, fmt.Errorf("handlers dependencies: couponService is required")
	}
	if deps.AdminService == nil {
		return nil, fmt.Errorf("handlers dependencies: adminService is required")
	}

	return &Handlers{
		config:           deps.Config,
		db:               deps.DB,
		orderStore:       deps.OrderStore,
		productStore:     deps.ProductStore,
		cartStore:        deps.CartStore,
		couponStore:      deps.CouponStore,
		addressStore:     deps.AddressStore,
		vendorStore:      deps.VendorStore,
		deliveryStore:    deps.DeliveryStore,
		cacheProvider:    deps.CacheProvider,
		sessionManager:   deps.SessionManager,
		checkoutService:  deps.CheckoutService,
		reconcileService: deps.ReconcileService,
		allocatorService: deps.AllocatorService,
		couponService:    deps.CouponService,
		adminService:     deps.AdminService,
		logger:           logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.db.Ping(ctx); err != nil {
		h.loggerFromContext(ctx).Error("database health check failed", "error", err)
		respondError(ctx, w, http.StatusServiceUnavailable, "UNHEALTHY", "database unreachable")
		return
	}
	respondData(ctx, w, http.StatusOK, map[string]string{"status": "healthy"})
}

// EnsureSession provisions a guest session for first-time visitors and puts
// the session data on the request context.
func (h *Handlers) EnsureSession(next http.Handler) http.Handler {
	return h.sessionManager.Ensure(next)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
