package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/cache"
	"github.com/podomall/podomall/internal/checkout"
	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/models"
	"github.com/podomall/podomall/internal/toss"
)

type fakeOrderStore struct {
	orders  map[string]*models.Order
	created int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]*models.Order{}}
}

func (f *fakeOrderStore) Create(ctx context.Context, order *models.Order) error {
	if _, ok := f.orders[order.OrderNumber]; ok {
		return db.ErrDuplicateOrder
	}
	order.ID = uuid.New()
	f.orders[order.OrderNumber] = order
	f.created++
	return nil
}

func (f *fakeOrderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, ok := f.orders[orderNumber]
	if !ok {
		return nil, db.ErrNotFound
	}
	return order, nil
}

type fakeCartStore struct {
	cart    *models.Cart
	cleared int
}

func (f *fakeCartStore) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if f.cart == nil {
		return &models.Cart{UserID: userID}, nil
	}
	return f.cart, nil
}

func (f *fakeCartStore) Clear(ctx context.Context, userID uuid.UUID) error {
	f.cleared++
	return nil
}

type fakeProductStore struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeProductStore) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return product, nil
}

type fakeCouponStore struct {
	byID   map[uuid.UUID]*models.UserCoupon
	byCode map[string]*models.UserCoupon
}

func newFakeCouponStore() *fakeCouponStore {
	return &fakeCouponStore{
		byID:   map[uuid.UUID]*models.UserCoupon{},
		byCode: map[string]*models.UserCoupon{},
	}
}

func (f *fakeCouponStore) add(uc *models.UserCoupon) {
	f.byID[uc.CouponID] = uc
	f.byCode[uc.Coupon.Code] = uc
}

func (f *fakeCouponStore) GetUserCoupon(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error) {
	uc, ok := f.byID[couponID]
	if !ok || uc.UserID != userID {
		return nil, db.ErrNotFound
	}
	return uc, nil
}

func (f *fakeCouponStore) GetUserCouponByCode(ctx context.Context, userID uuid.UUID, code string) (*models.UserCoupon, error) {
	uc, ok := f.byCode[code]
	if !ok || uc.UserID != userID {
		return nil, db.ErrNotFound
	}
	return uc, nil
}

type fakeAddressStore struct {
	byID map[uuid.UUID]*models.Address
	def  *models.Address
}

func (f *fakeAddressStore) GetByID(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	address, ok := f.byID[addressID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return address, nil
}

func (f *fakeAddressStore) GetDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	if f.def == nil {
		return nil, db.ErrNotFound
	}
	return f.def, nil
}

type fakeGateway struct {
	payment  *toss.Payment
	confirms int
	err      error
}

func (f *fakeGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int) (*toss.Payment, error) {
	f.confirms++
	if f.err != nil {
		return nil, f.err
	}
	return f.payment, nil
}

func (f *fakeGateway) GetPayment(ctx context.Context, paymentKey string) (*toss.Payment, error) {
	return f.payment, nil
}

type reconcileFixture struct {
	service   *ReconcileService
	orders    *fakeOrderStore
	carts     *fakeCartStore
	coupons   *fakeCouponStore
	addresses *fakeAddressStore
	gateway   *fakeGateway
	cache     cache.Provider
	userID    uuid.UUID
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	t.Cleanup(func() { cacheProvider.Close() })

	userID := uuid.New()
	productID := uuid.New()
	f := &reconcileFixture{
		orders:  newFakeOrderStore(),
		coupons: newFakeCouponStore(),
		carts: &fakeCartStore{cart: &models.Cart{
			UserID: userID,
			Items: []models.CartItem{{
				ProductID: productID,
				Quantity:  2,
				Product: &models.Product{
					ID:       productID,
					VendorID: uuid.New(),
					SKU:      "APL-001",
					Name:     "유기농 사과 1kg",
					PriceB2C: 24000,
				},
			}},
		}},
		addresses: &fakeAddressStore{byID: map[uuid.UUID]*models.Address{}},
		gateway:   &fakeGateway{},
		cache:     cacheProvider,
		userID:    userID,
	}
	f.addresses.def = &models.Address{
		ID:            uuid.New(),
		UserID:        userID,
		ReceiverName:  "김철수",
		ReceiverPhone: "01012345678",
		BaseAddress:   "서울시 강남구 테헤란로 1",
		DetailAddress: "101동 202호",
		IsDefault:     true,
	}

	pricer := checkout.NewPricer(checkout.DefaultPolicy())
	f.service = NewReconcileService(
		f.orders, f.carts, &fakeProductStore{products: map[uuid.UUID]*models.Product{}},
		f.coupons, f.addresses, f.gateway, f.cache, pricer, nil,
		slog.New(slog.DiscardHandler),
	)
	return f
}

func (f *reconcileFixture) setPayment(orderNumber string, amount int, metadata map[string]string) {
	f.gateway.payment = &toss.Payment{
		PaymentKey:  "pay_test",
		OrderID:     orderNumber,
		Status:      toss.StatusDone,
		TotalAmount: amount,
		Method:      "카드",
		Metadata:    metadata,
	}
}

func fixedCoupon(userID uuid.UUID, code string, value int) *models.UserCoupon {
	return &models.UserCoupon{
		ID:       uuid.New(),
		UserID:   userID,
		CouponID: uuid.New(),
		Coupon: &models.Coupon{
			ID:            uuid.New(),
			Code:          code,
			DiscountType:  models.DiscountFixedAmount,
			DiscountValue: value,
			IsActive:      true,
		},
	}
}

func TestReconcileCreatesOrder(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	uc := fixedCoupon(f.userID, "WELCOME10", 10000)
	uc.Coupon.ID = uc.CouponID
	f.coupons.add(uc)

	// 48,000 subtotal + 3,000 shipping - 10,000 coupon = 41,000 paid.
	f.setPayment("ORD-1", 41000, nil)

	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-1",
		PaymentKey:  "pay_test",
		Amount:      41000,
		CouponID:    uc.CouponID.String(),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if order.Subtotal != 48000 {
		t.Errorf("subtotal = %d, want 48000", order.Subtotal)
	}
	if order.ShippingAmount != 3000 {
		t.Errorf("shipping = %d, want 3000", order.ShippingAmount)
	}
	if order.DiscountAmount != 10000 {
		t.Errorf("discount = %d, want 10000", order.DiscountAmount)
	}
	if order.TotalAmount != 41000 {
		t.Errorf("total = %d, want 41000", order.TotalAmount)
	}
	if got := order.Subtotal + order.ShippingAmount - order.DiscountAmount; got != order.PaidAmount {
		t.Errorf("amount conservation broken: %d != paid %d", got, order.PaidAmount)
	}
	if order.CouponID == nil || *order.CouponID != uc.CouponID {
		t.Error("coupon id not recorded on order")
	}
	if order.Status != models.StatusPaid {
		t.Errorf("status = %s, want paid", order.Status)
	}
	if order.AddressFlagged {
		t.Error("order flagged despite default address")
	}
	if order.ShippingAddress.ReceiverName != "김철수" {
		t.Errorf("receiver = %q", order.ShippingAddress.ReceiverName)
	}
	if f.carts.cleared != 1 {
		t.Errorf("cart cleared %d times, want 1", f.carts.cleared)
	}
}

func TestReconcileFreeShippingThreshold(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	f.carts.cart.Items[0].Quantity = 1
	f.carts.cart.Items[0].Product.PriceB2C = 60000
	uc := fixedCoupon(f.userID, "FIVE", 5000)
	f.coupons.add(uc)

	// 60,000 subtotal, free shipping, 5,000 coupon = 55,000 paid.
	f.setPayment("ORD-2", 55000, nil)

	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-2",
		PaymentKey:  "pay_test",
		Amount:      55000,
		CouponID:    uc.CouponID.String(),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if order.ShippingAmount != 0 {
		t.Errorf("shipping = %d, want 0 above free threshold", order.ShippingAmount)
	}
	if order.DiscountAmount != 5000 {
		t.Errorf("discount = %d, want 5000", order.DiscountAmount)
	}
	if order.TotalAmount != 55000 {
		t.Errorf("total = %d, want 55000", order.TotalAmount)
	}
}

func TestReconcileIdempotentViaMarker(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	f.setPayment("ORD-3", 51000, nil)

	input := ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-3",
		PaymentKey:  "pay_test",
		Amount:      51000,
	}
	first, err := f.service.Reconcile(context.Background(), input)
	if err != nil {
		t.Fatalf("first Reconcile() error = %v", err)
	}
	second, err := f.service.Reconcile(context.Background(), input)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}

	if f.orders.created != 1 {
		t.Errorf("created %d orders, want 1", f.orders.created)
	}
	if f.gateway.confirms != 1 {
		t.Errorf("confirmed %d times, want 1 (marker short-circuit)", f.gateway.confirms)
	}
	if first.ID != second.ID {
		t.Error("second reconcile returned a different order")
	}
}

func TestReconcileIdempotentViaConstraint(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	f.setPayment("ORD-4", 51000, nil)

	existing := &models.Order{OrderNumber: "ORD-4", UserID: f.userID, PaidAmount: 51000}
	if err := f.orders.Create(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	// No cache marker set; the store's duplicate rejection must catch it.
	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-4",
		PaymentKey:  "pay_test",
		Amount:      51000,
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if order.ID != existing.ID {
		t.Error("did not surface the existing order")
	}
	if f.orders.created != 1 {
		t.Errorf("created %d orders, want 1", f.orders.created)
	}
}

func TestReconcileAmountMismatch(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	f.setPayment("ORD-5", 99999, nil)

	_, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-5",
		PaymentKey:  "pay_test",
		Amount:      51000,
	})
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("error = %v, want ErrAmountMismatch", err)
	}
	if f.orders.created != 0 {
		t.Error("order created despite amount mismatch")
	}
	if f.carts.cleared != 0 {
		t.Error("cart cleared despite failed reconcile")
	}
}

func TestReconcilePlaceholderAddress(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	f.addresses.def = nil
	f.setPayment("ORD-6", 51000, nil)

	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-6",
		PaymentKey:  "pay_test",
		Amount:      51000,
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !order.AddressFlagged {
		t.Error("order not flagged despite placeholder address")
	}
	if !order.ShippingAddress.IsPlaceholder() {
		t.Errorf("address = %+v, want placeholder", order.ShippingAddress)
	}
}

func TestReconcileCouponFromStash(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	uc := fixedCoupon(f.userID, "STASHED", 10000)
	f.coupons.add(uc)

	stash, err := json.Marshal(couponStash{CouponID: uc.CouponID, Code: uc.Coupon.Code, Discount: 10000})
	if err != nil {
		t.Fatal(err)
	}
	key := cache.CouponStashKey("ORD-7")
	if err := f.cache.Set(context.Background(), key, string(stash), couponStashTTL); err != nil {
		t.Fatal(err)
	}
	f.setPayment("ORD-7", 41000, nil)

	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-7",
		PaymentKey:  "pay_test",
		Amount:      41000,
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if order.CouponID == nil || *order.CouponID != uc.CouponID {
		t.Error("stashed coupon not applied")
	}
	if order.DiscountAmount != 10000 {
		t.Errorf("discount = %d, want 10000", order.DiscountAmount)
	}
	// Stash is cleared once the order is durable.
	if _, err := f.cache.Get(context.Background(), key); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("stash still present after reconcile: %v", err)
	}
}

func TestReconcileStashSurvivesFailedConfirm(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	uc := fixedCoupon(f.userID, "STASHED", 10000)
	f.coupons.add(uc)
	chosen := &models.Address{
		ID:            uuid.New(),
		UserID:        f.userID,
		ReceiverName:  "박영희",
		ReceiverPhone: "01098765432",
		BaseAddress:   "부산시 해운대구 센텀로 5",
	}
	f.addresses.byID[chosen.ID] = chosen

	stash, err := json.Marshal(couponStash{CouponID: uc.CouponID, Code: uc.Coupon.Code, Discount: 10000, AddressID: &chosen.ID})
	if err != nil {
		t.Fatal(err)
	}
	key := cache.CouponStashKey("ORD-11")
	if err := f.cache.Set(context.Background(), key, string(stash), couponStashTTL); err != nil {
		t.Fatal(err)
	}

	input := ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-11",
		PaymentKey:  "pay_test",
		Amount:      41000,
	}

	// A transient confirmation failure must not burn the stash; the
	// redirect replay still needs the coupon and address handoff.
	f.gateway.err = errors.New("gateway timeout")
	if _, err := f.service.Reconcile(context.Background(), input); err == nil {
		t.Fatal("Reconcile() succeeded despite confirm failure")
	}
	if _, err := f.cache.Get(context.Background(), key); err != nil {
		t.Fatalf("stash gone after failed confirm: %v", err)
	}

	f.gateway.err = nil
	f.setPayment("ORD-11", 41000, nil)
	order, err := f.service.Reconcile(context.Background(), input)
	if err != nil {
		t.Fatalf("replay Reconcile() error = %v", err)
	}
	if order.CouponID == nil || *order.CouponID != uc.CouponID {
		t.Error("replay lost the stashed coupon")
	}
	if order.ShippingAddress.ReceiverName != "박영희" {
		t.Errorf("replay address = %+v, want the stashed one", order.ShippingAddress)
	}
	if _, err := f.cache.Get(context.Background(), key); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("stash still present after successful replay: %v", err)
	}
}

func TestReconcileAddressFromMetadata(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	chosen := &models.Address{
		ID:            uuid.New(),
		UserID:        f.userID,
		ReceiverName:  "박영희",
		ReceiverPhone: "01098765432",
		BaseAddress:   "부산시 해운대구 센텀로 5",
	}
	f.addresses.byID[chosen.ID] = chosen

	// No stash; the payment metadata is the only record of the chosen
	// address.
	f.setPayment("ORD-12", 51000, map[string]string{"addressId": chosen.ID.String()})

	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-12",
		PaymentKey:  "pay_test",
		Amount:      51000,
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if order.ShippingAddress.ReceiverName != "박영희" {
		t.Errorf("address = %+v, want the metadata one", order.ShippingAddress)
	}
	if order.AddressFlagged {
		t.Error("order flagged despite metadata address")
	}
}

func TestReconcileCouponFromMetadata(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	uc := fixedCoupon(f.userID, "METACODE", 10000)
	f.coupons.add(uc)
	f.setPayment("ORD-8", 41000, map[string]string{"couponCode": "METACODE"})

	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-8",
		PaymentKey:  "pay_test",
		Amount:      41000,
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if order.CouponID == nil || *order.CouponID != uc.CouponID {
		t.Error("metadata coupon not applied")
	}
}

func TestReconcileBuyNow(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	productID := uuid.New()
	products := &fakeProductStore{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, VendorID: uuid.New(), SKU: "PRB-001", Name: "배 선물세트", PriceB2C: 30000},
	}}
	pricer := checkout.NewPricer(checkout.DefaultPolicy())
	f.service = NewReconcileService(
		f.orders, f.carts, products, f.coupons, f.addresses, f.gateway,
		f.cache, pricer, nil, slog.New(slog.DiscardHandler),
	)
	// 60,000 subtotal, free shipping, no coupon.
	f.setPayment("ORD-9", 60000, nil)

	order, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-9",
		PaymentKey:  "pay_test",
		Amount:      60000,
		BuyNow:      &BuyNowItem{ProductID: productID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("items = %+v", order.Items)
	}
	if order.Subtotal != 60000 {
		t.Errorf("subtotal = %d, want 60000", order.Subtotal)
	}
	if f.carts.cleared != 0 {
		t.Error("buy-now reconcile cleared the cart")
	}
}

func TestReconcileEmptyCartNoOrder(t *testing.T) {
	t.Parallel()

	f := newReconcileFixture(t)
	f.carts.cart = nil
	f.setPayment("ORD-10", 10000, nil)

	_, err := f.service.Reconcile(context.Background(), ReconcileInput{
		UserID:      f.userID,
		OrderNumber: "ORD-10",
		PaymentKey:  "pay_test",
		Amount:      10000,
	})
	if !errors.Is(err, ErrNothingToReconcile) {
		t.Fatalf("error = %v, want ErrNothingToReconcile", err)
	}
	if f.gateway.confirms != 0 {
		t.Error("payment confirmed despite missing order source")
	}
}
