package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/cache"
	"github.com/podomall/podomall/internal/checkout"
	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/logging"
	"github.com/podomall/podomall/internal/models"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCouponNotUsable    = errors.New("coupon cannot be used")
	ErrCouponBelowMinimum = errors.New("order subtotal below coupon minimum")
)

// couponStashTTL bounds how long a checkout handoff survives between the
// widget opening and the success redirect landing.
const couponStashTTL = time.Hour

// couponStash is the server-side record of what checkout promised the
// widget, keyed by order number. It replaces any client-carried discount
// figure during reconciliation.
type couponStash struct {
	CouponID  uuid.UUID  `json:"coupon_id"`
	Code      string     `json:"code"`
	Discount  int        `json:"discount"`
	AddressID *uuid.UUID `json:"address_id,omitempty"`
}

type checkoutCartStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type checkoutProductStore interface {
	GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type checkoutCouponStore interface {
	GetUserCoupon(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error)
}

type CheckoutService struct {
	cartStore    checkoutCartStore
	productStore checkoutProductStore
	couponStore  checkoutCouponStore
	cache        cache.Provider
	pricer       *checkout.Pricer
	baseURL      string
	clientKey    string
	shopName     string
	logger       *slog.Logger
}

func NewCheckoutService(cartStore checkoutCartStore, productStore checkoutProductStore, couponStore checkoutCouponStore, cacheProvider cache.Provider, pricer *checkout.Pricer, baseURL, clientKey, shopName string, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		cartStore:    cartStore,
		productStore: productStore,
		couponStore:  couponStore,
		cache:        cacheProvider,
		pricer:       pricer,
		baseURL:      baseURL,
		clientKey:    clientKey,
		shopName:     shopName,
		logger:       logger,
	}
}

// BuyNowItem requests a single-product checkout that bypasses the cart.
type BuyNowItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type PrepareInput struct {
	UserID    uuid.UUID
	CouponID  *uuid.UUID
	AddressID *uuid.UUID
	BuyNow    *BuyNowItem
}

// WidgetParams is what the storefront feeds the Toss payment widget. Amount
// is server-authoritative. Metadata rides along on the payment so
// reconciliation can recover the coupon and address even when the stash
// and query params are gone.
type WidgetParams struct {
	ClientKey  string            `json:"client_key"`
	OrderID    string            `json:"order_id"`
	OrderName  string            `json:"order_name"`
	Amount     int               `json:"amount"`
	SuccessURL string            `json:"success_url"`
	FailURL    string            `json:"fail_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type CheckoutQuote struct {
	Items    []models.OrderItem `json:"items"`
	Subtotal int                `json:"subtotal"`
	Discount int                `json:"discount"`
	Shipping int                `json:"shipping"`
	Total    int                `json:"total"`
	Widget   WidgetParams       `json:"widget"`
}

// Prepare quotes the order server-side, reserves an order number, stashes
// the coupon handoff for reconciliation, and returns the widget parameters.
func (s *CheckoutService) Prepare(ctx context.Context, input PrepareInput) (*CheckoutQuote, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.prepare",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("Prepare"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()
	logger := logging.FromContext(ctx, s.logger)

	items, subtotal, err := s.resolveItems(ctx, input.UserID, input.BuyNow)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if input.CouponID != nil {
		userCoupon, err := s.couponStore.GetUserCoupon(ctx, input.UserID, *input.CouponID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, ErrCouponNotUsable
			}
			return nil, fmt.Errorf("loading coupon: %w", err)
		}
		if !userCoupon.Usable() || !userCoupon.Coupon.ActiveAt(time.Now()) {
			return nil, ErrCouponNotUsable
		}
		if !s.pricer.QualifiesMinAmount(userCoupon.Coupon, subtotal) {
			return nil, ErrCouponBelowMinimum
		}
		coupon = userCoupon.Coupon
	}

	quote := s.pricer.QuoteOrder(coupon, subtotal)
	orderNumber := NewOrderNumber(time.Now())

	if coupon != nil {
		stash := couponStash{
			CouponID:  coupon.ID,
			Code:      coupon.Code,
			Discount:  quote.DiscountAmount,
			AddressID: input.AddressID,
		}
		payload, err := json.Marshal(stash)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, cache.CouponStashKey(orderNumber), string(payload), couponStashTTL); err != nil {
			// The stash is a fallback channel; reconciliation still works
			// from the query param and payment metadata.
			logger.Warn("failed to stash checkout coupon", "order_number", orderNumber, "error", err)
		}
	}

	metadata := map[string]string{
		"couponDiscount": strconv.Itoa(quote.DiscountAmount),
	}
	if coupon != nil {
		metadata["couponId"] = coupon.ID.String()
	}
	if input.AddressID != nil {
		metadata["addressId"] = input.AddressID.String()
	}

	return &CheckoutQuote{
		Items:    items,
		Subtotal: quote.Subtotal,
		Discount: quote.DiscountAmount,
		Shipping: quote.ShippingAmount,
		Total:    quote.TotalAmount,
		Widget: WidgetParams{
			ClientKey:  s.clientKey,
			OrderID:    orderNumber,
			OrderName:  orderName(items),
			Amount:     quote.TotalAmount,
			SuccessURL: s.baseURL + "/api/checkout/success",
			FailURL:    s.baseURL + "/api/checkout/fail",
			Metadata:   metadata,
		},
	}, nil
}

func (s *CheckoutService) resolveItems(ctx context.Context, userID uuid.UUID, buyNow *BuyNowItem) ([]models.OrderItem, int, error) {
	if buyNow != nil {
		if buyNow.Quantity < 1 {
			return nil, 0, fmt.Errorf("buy-now quantity must be positive")
		}
		product, err := s.productStore.GetByID(ctx, buyNow.ProductID)
		if err != nil {
			return nil, 0, fmt.Errorf("loading buy-now product: %w", err)
		}
		item := orderItemFromProduct(product, buyNow.Quantity)
		return []models.OrderItem{item}, item.TotalPrice, nil
	}

	cart, err := s.cartStore.Get(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("loading cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, 0, ErrEmptyCart
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
		return nil, 0, ErrEmptyCart
	}
	return items, subtotal, nil
}

func orderItemFromProduct(product *models.Product, quantity int) models.OrderItem {
	return models.OrderItem{
		ProductID:   product.ID,
		VendorID:    product.VendorID,
		ProductName: product.Name,
		SKU:         product.SKU,
		Quantity:    quantity,
		UnitPrice:   product.PriceB2C,
		TotalPrice:  product.PriceB2C * quantity,
	}
}

// orderName is the widget display string, first product plus a count of the
// rest.
func orderName(items []models.OrderItem) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) == 1 {
		return items[0].ProductName
	}
	return fmt.Sprintf("%s 외 %d건", items[0].ProductName, len(items)-1)
}

// NewOrderNumber mints a collision-resistant human-readable order number.
func NewOrderNumber(now time.Time) string {
	const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		u := uuid.New()
		copy(buf, u[:])
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), buf)
}
