package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/cache"
	"github.com/podomall/podomall/internal/checkout"
	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/logging"
	"github.com/podomall/podomall/internal/models"
	"github.com/podomall/podomall/internal/observability"
	"github.com/podomall/podomall/internal/toss"
)

// paymentMarkerTTL bounds the best-effort dedupe marker. The DB unique
// constraints stay authoritative after it expires.
const paymentMarkerTTL = 24 * time.Hour

var (
	ErrNothingToReconcile = errors.New("no cart or buy-now item to build an order from")
	ErrAmountMismatch     = errors.New("confirmed amount does not match requested amount")
	ErrPaymentNotDone     = errors.New("payment is not in DONE state")
)

// BookkeepingError marks the state where Toss confirmed the charge but the
// order could not be recorded. Callers must surface it to the customer as a
// support case, never retry the confirmation.
type BookkeepingError struct {
	Err error
}

func (e *BookkeepingError) Error() string {
	return fmt.Sprintf("payment succeeded, order processing failed: %v", e.Err)
}

func (e *BookkeepingError) Unwrap() error { return e.Err }

type reconcileOrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
}

type reconcileCartStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type reconcileCouponStore interface {
	GetUserCoupon(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error)
	GetUserCouponByCode(ctx context.Context, userID uuid.UUID, code string) (*models.UserCoupon, error)
}

type reconcileAddressStore interface {
	GetByID(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	GetDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error)
}

type paymentGateway interface {
	Confirm(ctx context.Context, paymentKey, orderID string, amount int) (*toss.Payment, error)
	GetPayment(ctx context.Context, paymentKey string) (*toss.Payment, error)
}

// ReconcileService turns a Toss success redirect into exactly one durable
// order.
type ReconcileService struct {
	orderStore   reconcileOrderStore
	cartStore    reconcileCartStore
	productStore checkoutProductStore
	couponStore  reconcileCouponStore
	addressStore reconcileAddressStore
	gateway      paymentGateway
	cache        cache.Provider
	pricer       *checkout.Pricer
	emailSender  OrderEmailSender
	logger       *slog.Logger
}

func NewReconcileService(orderStore reconcileOrderStore, cartStore reconcileCartStore, productStore checkoutProductStore, couponStore reconcileCouponStore, addressStore reconcileAddressStore, gateway paymentGateway, cacheProvider cache.Provider, pricer *checkout.Pricer, emailSender OrderEmailSender, logger *slog.Logger) *ReconcileService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}
	return &ReconcileService{
		orderStore:   orderStore,
		cartStore:    cartStore,
		productStore: productStore,
		couponStore:  couponStore,
		addressStore: addressStore,
		gateway:      gateway,
		cache:        cacheProvider,
		pricer:       pricer,
		emailSender:  emailSender,
		logger:       logger,
	}
}

type ReconcileInput struct {
	UserID        uuid.UUID
	OrderNumber   string
	PaymentKey    string
	Amount        int
	CouponID      string // optional query param, id or code
	BuyNow        *BuyNowItem
	CustomerName  string
	CustomerEmail string
}

// Reconcile runs the payment-success flow: dedupe, source selection, coupon
// fallback, server-side confirmation, address fallback, a single durable
// write, then cart clearing and email. The confirmed amount is ground truth;
// the discount is back-computed as subtotal + shipping - paidAmount.
func (s *ReconcileService) Reconcile(ctx context.Context, input ReconcileInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.reconcile",
		sentry.WithOpName("service.reconcile"),
		sentry.WithDescription("Reconcile"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := logging.FromContext(ctx, s.logger).With("order_number", input.OrderNumber)
	meter := observability.MeterFromContext(ctx)
	meter.Count("order.reconcile.received", 1)
	recordFailure := func(reason string) {
		meter.Count("order.reconcile.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	// Step 1: best-effort marker. The unique constraints in the orders table
	// remain the authoritative duplicate guard.
	if _, err := s.cache.Get(ctx, cache.PaymentMarkerKey(input.OrderNumber)); err == nil {
		existing, err := s.orderStore.GetByOrderNumber(ctx, input.OrderNumber)
		if err == nil {
			meter.Count("order.reconcile.duplicate", 1)
			logger.Info("payment already reconciled, returning existing order", "order_id", existing.ID)
			return existing, nil
		}
		logger.Warn("payment marker set but order lookup failed", "error", err)
	} else if !errors.Is(err, cache.ErrNotFound) {
		logger.Warn("payment marker lookup failed", "error", err)
	}

	// Step 2: order source.
	items, subtotal, fromCart, err := s.resolveSource(ctx, input)
	if err != nil {
		if errors.Is(err, ErrNothingToReconcile) {
			if existing, lookupErr := s.orderStore.GetByOrderNumber(ctx, input.OrderNumber); lookupErr == nil {
				meter.Count("order.reconcile.duplicate", 1)
				return existing, nil
			}
		}
		recordFailure("source_resolution_failed")
		return nil, err
	}

	// Step 3: coupon fallback chain, query param then stash. Payment
	// metadata is consulted after confirmation.
	userCoupon, stashAddressID := s.resolveCoupon(ctx, logger, input)

	// Step 4: server-side confirmation.
	payment, err := s.confirmPayment(ctx, input)
	if err != nil {
		recordFailure("confirm_failed")
		return nil, err
	}
	if userCoupon == nil {
		userCoupon = s.couponFromMetadata(ctx, logger, input.UserID, payment.Metadata)
	}

	shipping := s.shippingFor(userCoupon, subtotal)
	discount := subtotal + shipping - payment.TotalAmount
	if expected := s.expectedDiscount(userCoupon, subtotal); discount != expected {
		logger.Warn("back-computed discount disagrees with coupon quote",
			"back_computed", discount, "expected", expected)
	}

	// Step 5: address fallback.
	address, flagged := s.resolveAddress(ctx, logger, input.UserID, stashAddressID, payment.Metadata)

	order := &models.Order{
		OrderNumber:     input.OrderNumber,
		UserID:          input.UserID,
		Items:           items,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		ShippingAmount:  shipping,
		TotalAmount:     payment.TotalAmount,
		PaymentKey:      input.PaymentKey,
		PaymentMethod:   payment.Method,
		PaidAmount:      payment.TotalAmount,
		CustomerName:    input.CustomerName,
		CustomerEmail:   input.CustomerEmail,
		ShippingAddress: address,
		BillingAddress:  address,
		AddressFlagged:  flagged,
		Status:          models.StatusPaid,
	}
	if userCoupon != nil {
		couponID := userCoupon.CouponID
		order.CouponID = &couponID
	}

	// Step 6: exactly one durable order.
	if err := s.orderStore.Create(ctx, order); err != nil {
		if errors.Is(err, db.ErrDuplicateOrder) {
			existing, lookupErr := s.orderStore.GetByOrderNumber(ctx, input.OrderNumber)
			if lookupErr == nil {
				meter.Count("order.reconcile.duplicate", 1)
				logger.Info("duplicate order creation short-circuited by constraint")
				return existing, nil
			}
			recordFailure("duplicate_lookup_failed")
			return nil, &BookkeepingError{Err: lookupErr}
		}
		recordFailure("order_create_failed")
		return nil, &BookkeepingError{Err: err}
	}
	meter.Count("order.reconcile.created", 1)

	if err := s.cache.Set(ctx, cache.PaymentMarkerKey(input.OrderNumber), order.ID.String(), paymentMarkerTTL); err != nil {
		logger.Warn("failed to set payment marker", "error", err)
	}
	if err := s.cache.Delete(ctx, cache.CouponStashKey(input.OrderNumber)); err != nil {
		logger.Warn("failed to clear coupon stash", "error", err)
	}

	// Step 7: post-order bookkeeping, never fails the order.
	if fromCart {
		if err := s.cartStore.Clear(ctx, input.UserID); err != nil {
			logger.Warn("failed to clear cart after order creation", "error", err)
		}
	}
	if err := s.emailSender.SendOrderConfirmation(ctx, order); err != nil {
		logger.Warn("failed to send order confirmation email", "error", err)
	}

	logger.Info("order reconciled",
		"order_id", order.ID,
		"subtotal", order.Subtotal,
		"discount", order.DiscountAmount,
		"shipping", order.ShippingAmount,
		"total", order.TotalAmount,
	)
	return order, nil
}

func (s *ReconcileService) resolveSource(ctx context.Context, input ReconcileInput) ([]models.OrderItem, int, bool, error) {
	if input.BuyNow != nil {
		if input.BuyNow.Quantity < 1 {
			return nil, 0, false, fmt.Errorf("buy-now quantity must be positive")
		}
		product, err := s.productStore.GetByID(ctx, input.BuyNow.ProductID)
		if err != nil {
			return nil, 0, false, fmt.Errorf("loading buy-now product: %w", err)
		}
		item := orderItemFromProduct(product, input.BuyNow.Quantity)
		return []models.OrderItem{item}, item.TotalPrice, false, nil
	}

	cart, err := s.cartStore.Get(ctx, input.UserID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("loading cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, 0, false, ErrNothingToReconcile
	}
	var items []models.OrderItem
	subtotal := 0
	for _, line := range cart.Items {
		if line.Product == nil {
			continue
		}
		item := orderItemFromProduct(line.Product, line.Quantity)
		items = append(items, item)
		subtotal += item.TotalPrice
	}
	if len(items) == 0 {
		return nil, 0, false, ErrNothingToReconcile
	}
	return items, subtotal, true, nil
}

// resolveCoupon walks the fallback chain available before payment
// confirmation: explicit query param, then the checkout stash. The stash is
// read without being consumed; it is cleared only after the order is
// durable, so a redirect replay after a failed confirmation still finds
// it. It also hands back the address id checkout recorded.
func (s *ReconcileService) resolveCoupon(ctx context.Context, logger *slog.Logger, input ReconcileInput) (*models.UserCoupon, *uuid.UUID) {
	payload, err := s.cache.Get(ctx, cache.CouponStashKey(input.OrderNumber))
	var stash *couponStash
	if err == nil {
		var decoded couponStash
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
			logger.Warn("malformed coupon stash", "error", err)
		} else {
			stash = &decoded
		}
	} else if !errors.Is(err, cache.ErrNotFound) {
		logger.Warn("coupon stash lookup failed", "error", err)
	}

	var stashAddressID *uuid.UUID
	if stash != nil {
		stashAddressID = stash.AddressID
	}

	if input.CouponID != "" {
		if uc := s.lookupCoupon(ctx, logger, input.UserID, input.CouponID); uc != nil {
			return uc, stashAddressID
		}
	}
	if stash != nil {
		uc, err := s.couponStore.GetUserCoupon(ctx, input.UserID, stash.CouponID)
		if err != nil {
			logger.Warn("stashed coupon not found for user", "coupon_id", stash.CouponID, "error", err)
			return nil, stashAddressID
		}
		return uc, stashAddressID
	}
	return nil, stashAddressID
}

func (s *ReconcileService) couponFromMetadata(ctx context.Context, logger *slog.Logger, userID uuid.UUID, metadata map[string]string) *models.UserCoupon {
	ref := metadata["couponId"]
	if ref == "" {
		ref = metadata["couponCode"]
	}
	if ref == "" {
		return nil
	}
	return s.lookupCoupon(ctx, logger, userID, ref)
}

// lookupCoupon accepts either a coupon id or a coupon code, since the query
// param and payment metadata carry whichever the client had.
func (s *ReconcileService) lookupCoupon(ctx context.Context, logger *slog.Logger, userID uuid.UUID, ref string) *models.UserCoupon {
	if couponID, err := uuid.Parse(ref); err == nil {
		uc, err := s.couponStore.GetUserCoupon(ctx, userID, couponID)
		if err == nil {
			return uc
		}
		if !errors.Is(err, db.ErrNotFound) {
			logger.Warn("coupon lookup failed", "coupon_id", couponID, "error", err)
		}
		return nil
	}
	uc, err := s.couponStore.GetUserCouponByCode(ctx, userID, ref)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logger.Warn("coupon code lookup failed", "code", ref, "error", err)
		}
		return nil
	}
	return uc
}

// confirmPayment runs the server-side confirmation. A key that was already
// confirmed is treated as success and re-read, so browser refreshes on the
// success page do not fail the flow.
func (s *ReconcileService) confirmPayment(ctx context.Context, input ReconcileInput) (*toss.Payment, error) {
	payment, err := s.gateway.Confirm(ctx, input.PaymentKey, input.OrderNumber, input.Amount)
	if err != nil {
		if !toss.IsAlreadyProcessed(err) {
			return nil, fmt.Errorf("confirming payment: %w", err)
		}
		payment, err = s.gateway.GetPayment(ctx, input.PaymentKey)
		if err != nil {
			return nil, fmt.Errorf("looking up already-confirmed payment: %w", err)
		}
	}
	if payment.Status != toss.StatusDone {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotDone, payment.Status)
	}
	if payment.OrderID != input.OrderNumber {
		return nil, fmt.Errorf("payment belongs to order %s, not %s", payment.OrderID, input.OrderNumber)
	}
	if payment.TotalAmount != input.Amount {
		return nil, fmt.Errorf("%w: confirmed %d, requested %d", ErrAmountMismatch, payment.TotalAmount, input.Amount)
	}
	return payment, nil
}

func (s *ReconcileService) shippingFor(userCoupon *models.UserCoupon, subtotal int) int {
	var coupon *models.Coupon
	if userCoupon != nil {
		coupon = userCoupon.Coupon
	}
	return s.pricer.ShippingAfterCoupon(coupon, subtotal)
}

func (s *ReconcileService) expectedDiscount(userCoupon *models.UserCoupon, subtotal int) int {
	var coupon *models.Coupon
	if userCoupon != nil {
		coupon = userCoupon.Coupon
	}
	return s.pricer.CalculateDiscount(coupon, subtotal)
}

// resolveAddress walks the checkout stash, then the metadata address id,
// then the user's default, then a flagged placeholder so the order is never
// lost over a missing address.
func (s *ReconcileService) resolveAddress(ctx context.Context, logger *slog.Logger, userID uuid.UUID, stashAddressID *uuid.UUID, metadata map[string]string) (models.AddressSnapshot, bool) {
	if stashAddressID != nil {
		address, err := s.addressStore.GetByID(ctx, userID, *stashAddressID)
		if err == nil {
			return address.Snapshot(), false
		}
		logger.Warn("stashed address not found", "address_id", *stashAddressID, "error", err)
	}
	if raw := metadata["addressId"]; raw != "" {
		if addressID, err := uuid.Parse(raw); err == nil {
			address, err := s.addressStore.GetByID(ctx, userID, addressID)
			if err == nil {
				return address.Snapshot(), false
			}
			logger.Warn("metadata address not found", "address_id", addressID, "error", err)
		}
	}

	address, err := s.addressStore.GetDefault(ctx, userID)
	if err == nil {
		return address.Snapshot(), false
	}
	if !errors.Is(err, db.ErrNotFound) {
		logger.Warn("default address lookup failed", "error", err)
	}

	logger.Warn("order created with placeholder address")
	return models.AddressSnapshot{}, true
}
