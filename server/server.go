package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/podomall/podomall/internal/config"
	"github.com/podomall/podomall/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	// Storefront routes ride the session cookie; guests get one on first
	// contact.
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.EnsureSession)
	api.Use(h.RequireSameOrigin)

	api.HandleFunc("/products", h.ListProducts).Methods("GET").Name("products.list")
	api.HandleFunc("/products/{id}", h.GetProduct).Methods("GET").Name("products.get")

	api.HandleFunc("/cart", h.GetCart).Methods("GET").Name("cart.get")
	api.HandleFunc("/cart", h.ClearCart).Methods("DELETE").Name("cart.clear")
	api.HandleFunc("/cart/items", h.AddCartItem).Methods("POST").Name("cart.items.add")
	api.HandleFunc("/cart/items/{productID}", h.UpdateCartItem).Methods("PATCH").Name("cart.items.update")
	api.HandleFunc("/cart/items/{productID}", h.RemoveCartItem).Methods("DELETE").Name("cart.items.remove")

	api.HandleFunc("/coupons/claim", h.ClaimCoupon).Methods("POST").Name("coupons.claim")
	api.HandleFunc("/coupons/mine", h.MyCoupons).Methods("GET").Name("coupons.mine")

	api.HandleFunc("/addresses", h.ListAddresses).Methods("GET").Name("addresses.list")
	api.HandleFunc("/addresses", h.CreateAddress).Methods("POST").Name("addresses.create")
	api.HandleFunc("/addresses/{id}", h.DeleteAddress).Methods("DELETE").Name("addresses.delete")

	api.HandleFunc("/checkout", h.Checkout).Methods("POST").Name("checkout.prepare")
	api.HandleFunc("/checkout/success", h.CheckoutSuccess).Methods("GET").Name("checkout.success")
	api.HandleFunc("/checkout/fail", h.CheckoutFail).Methods("GET").Name("checkout.fail")

	api.HandleFunc("/orders", h.MyOrders).Methods("GET").Name("orders.mine")
	api.HandleFunc("/orders/{orderNumber}", h.MyOrder).Methods("GET").Name("orders.get")

	// Admin routes use a bearer token instead of the storefront session.
	r.HandleFunc("/api/admin/login", h.AdminLogin).Methods("POST").Name("admin.login")

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(h.RequireAdmin)
	admin.HandleFunc("/orders", h.AdminListOrders).Methods("GET").Name("admin.orders.list")
	admin.HandleFunc("/orders/{id}/status", h.AdminUpdateOrderStatus).Methods("POST").Name("admin.orders.status")
	admin.HandleFunc("/deliveries/upload", h.AdminUploadDeliveries).Methods("POST").Name("admin.deliveries.upload")
	admin.HandleFunc("/deliveries/template", h.AdminDeliveryTemplate).Methods("GET").Name("admin.deliveries.template")
	admin.HandleFunc("/vendors", h.AdminCreateVendor).Methods("POST").Name("admin.vendors.create")
	admin.HandleFunc("/vendors", h.AdminListVendors).Methods("GET").Name("admin.vendors.list")
	admin.HandleFunc("/products", h.AdminCreateProduct).Methods("POST").Name("admin.products.create")
	admin.HandleFunc("/coupons", h.AdminCreateCoupon).Methods("POST").Name("admin.coupons.create")
	admin.HandleFunc("/coupons", h.AdminListCoupons).Methods("GET").Name("admin.coupons.list")
	admin.HandleFunc("/coupons/{id}/active", h.AdminSetCouponActive).Methods("POST").Name("admin.coupons.active")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"ok":false,"error":{"code":"NOT_FOUND","message":"no such route"}}`)
	})

	return r
}
