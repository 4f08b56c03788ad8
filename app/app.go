package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/podomall/podomall/internal/cache"
	"github.com/podomall/podomall/internal/checkout"
	"github.com/podomall/podomall/internal/config"
	"github.com/podomall/podomall/internal/crypto"
	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/email"
	"github.com/podomall/podomall/internal/handlers"
	"github.com/podomall/podomall/internal/logging"
	"github.com/podomall/podomall/internal/services"
	"github.com/podomall/podomall/internal/session"
	"github.com/podomall/podomall/internal/toss"
)

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	SessionManager *session.Manager
	Handlers       *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:      cfg.CacheProvider,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	sessionStore, err := session.NewStore(startupCtx, session.Config{
		Provider:      cfg.SessionStoreProvider,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	sessionManager := session.NewManager(sessionStore, cfg.SecureCookies())

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		closeSessionManager(logger, sessionManager)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	policy, err := checkout.LoadPolicy(cfg.ShopPolicyPath)
	if err != nil {
		closeSessionManager(logger, sessionManager)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to load shop policy: %w", err)
	}
	pricer := checkout.NewPricer(policy)

	orderStore := db.NewOrderStore(database)
	productStore := db.NewProductStore(database)
	cartStore := db.NewCartStore(database)
	couponStore := db.NewCouponStore(database)
	addressStore := db.NewAddressStore(database)
	vendorStore := db.NewVendorStore(database, encryptor)
	deliveryStore := db.NewDeliveryStore(database)

	tossClient := toss.NewClient(cfg.TossSecretKey, cfg.TossAPIBase)
	emailProvider := email.NewProvider(cfg.ResendAPIKey, cfg.EmailFrom)
	emailSender := services.NewProviderOrderEmailSender(emailProvider, policy.Shop.Name)

	checkoutService := services.NewCheckoutService(
		cartStore,
		productStore,
		couponStore,
		cacheProvider,
		pricer,
		cfg.BaseURL,
		cfg.TossClientKey,
		policy.Shop.Name,
		logger.With("component", "checkout_service"),
	)
	reconcileService := services.NewReconcileService(
		orderStore,
		cartStore,
		productStore,
		couponStore,
		addressStore,
		tossClient,
		cacheProvider,
		pricer,
		emailSender,
		logger.With("component", "reconcile_service"),
	)
	allocatorService := services.NewAllocatorService(
		orderStore,
		deliveryStore,
		emailSender,
		logger.With("component", "allocator_service"),
	)
	couponService := services.NewCouponService(couponStore, logger.With("component", "coupon_service"))
	adminService := services.NewAdminService(cfg.AdminEmail, cfg.AdminPassword, cfg.AdminJWTSecret)

	h, err := handlers.New(handlers.Dependencies{
		Config:           cfg,
		DB:               database,
		OrderStore:       orderStore,
		ProductStore:     productStore,
		CartStore:        cartStore,
		CouponStore:      couponStore,
		AddressStore:     addressStore,
		VendorStore:      vendorStore,
		DeliveryStore:    deliveryStore,
		CacheProvider:    cacheProvider,
		SessionManager:   sessionManager,
		CheckoutService:  checkoutService,
		ReconcileService: reconcileService,
		AllocatorService: allocatorService,
		CouponService:    couponService,
		AdminService:     adminService,
		Logger:           logger,
	})
	if err != nil {
		closeSessionManager(logger, sessionManager)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:         cfg,
		Logger:         logger,
		DB:             database,
		CacheProvider:  cacheProvider,
		SessionManager: sessionManager,
		Handlers:       h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.SessionManager != nil {
		closeSessionManager(a.Logger, a.SessionManager)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var console slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, opts)
	default:
		console = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if cfg.SentryDSN == "" {
		return slog.New(console)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())
	return slog.New(logging.Fanout(console, sentryHandler))
}

func closeSessionManager(logger *slog.Logger, manager *session.Manager) {
	if manager == nil {
		return
	}
	if err := manager.Close(); err != nil && logger != nil {
		logger.Warn("failed to close session manager", "error", err)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
