package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/models"
	"github.com/podomall/podomall/internal/spreadsheet"
)

type fakeAllocOrderStore struct {
	orders    []*models.Order
	preparing []uuid.UUID
	shipped   []uuid.UUID
}

func (f *fakeAllocOrderStore) FindShippableByReceiver(ctx context.Context, name, phone string) ([]*models.Order, error) {
	var matched []*models.Order
	for _, order := range f.orders {
		switch order.Status {
		case models.StatusPaid, models.StatusPreparing, models.StatusShipped:
		default:
			continue
		}
		if order.ShippingAddress.ReceiverName == name && order.ShippingAddress.ReceiverPhone == phone {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

func (f *fakeAllocOrderStore) MarkPreparing(ctx context.Context, orderID uuid.UUID) error {
	f.setStatus(orderID, models.StatusPreparing)
	f.preparing = append(f.preparing, orderID)
	return nil
}

func (f *fakeAllocOrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID) error {
	f.setStatus(orderID, models.StatusShipped)
	f.shipped = append(f.shipped, orderID)
	return nil
}

func (f *fakeAllocOrderStore) setStatus(orderID uuid.UUID, status models.OrderStatus) {
	for _, order := range f.orders {
		if order.ID == orderID {
			order.Status = status
		}
	}
}

type fakeDeliveryStore struct {
	deliveries []*models.Delivery
	createErr  error
	errOnCall  int
	calls      int
}

func (f *fakeDeliveryStore) Create(ctx context.Context, delivery *models.Delivery) error {
	f.calls++
	if f.createErr != nil && (f.errOnCall == 0 || f.calls == f.errOnCall) {
		return f.createErr
	}
	for _, d := range f.deliveries {
		if d.OrderItemID == delivery.OrderItemID && d.Courier == delivery.Courier &&
			d.TrackingNumber == delivery.TrackingNumber && d.Quantity == delivery.Quantity {
			return db.ErrDuplicateDelivery
		}
	}
	f.deliveries = append(f.deliveries, delivery)
	return nil
}

func (f *fakeDeliveryStore) ShippedQuantity(ctx context.Context, orderItemID uuid.UUID) (int, error) {
	total := 0
	for _, d := range f.deliveries {
		if d.OrderItemID == orderItemID {
			total += d.Quantity
		}
	}
	return total, nil
}

func (f *fakeDeliveryStore) AllocatedForTracking(ctx context.Context, orderItemID uuid.UUID, courier, trackingNumber string) (int, error) {
	total := 0
	for _, d := range f.deliveries {
		if d.OrderItemID == orderItemID && d.Courier == courier && d.TrackingNumber == trackingNumber {
			total += d.Quantity
		}
	}
	return total, nil
}

func totalAllocated(deliveries *fakeDeliveryStore) int {
	total := 0
	for _, d := range deliveries.deliveries {
		total += d.Quantity
	}
	return total
}

func paidOrder(orderNumber, receiver, phone, address, productName string, quantity int) *models.Order {
	orderID := uuid.New()
	return &models.Order{
		ID:          orderID,
		OrderNumber: orderNumber,
		Status:      models.StatusPaid,
		ShippingAddress: models.AddressSnapshot{
			ReceiverName:  receiver,
			ReceiverPhone: phone,
			BaseAddress:   address,
		},
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductName: productName,
			Quantity:    quantity,
		}},
	}
}

func uploadRow(rowNumber int, receiver, phone, address, productName string, quantity int) spreadsheet.ShipmentRow {
	return spreadsheet.ShipmentRow{
		RowNumber:      rowNumber,
		ReceiverName:   receiver,
		ReceiverPhone:  phone,
		Address:        address,
		ProductName:    productName,
		Quantity:       quantity,
		Courier:        "CJ대한통운",
		TrackingNumber: "1234567890",
	}
}

func newAllocator(orders *fakeAllocOrderStore, deliveries *fakeDeliveryStore) *AllocatorService {
	return NewAllocatorService(orders, deliveries, nil, slog.New(slog.DiscardHandler))
}

func TestAllocateSplitAcrossOrders(t *testing.T) {
	t.Parallel()

	// Older order holds 2, newer holds 3; a row for 4 drains the older order
	// fully and takes 2 of the newer one.
	older := paidOrder("ORD-A", "김철수", "01012345678", "서울시 강남구 테헤란로 1", "사과", 2)
	newer := paidOrder("ORD-B", "김철수", "01012345678", "서울시 강남구 테헤란로 1", "사과", 3)
	orders := &fakeAllocOrderStore{orders: []*models.Order{older, newer}}
	deliveries := &fakeDeliveryStore{}

	result := newAllocator(orders, deliveries).Allocate(context.Background(),
		[]spreadsheet.ShipmentRow{uploadRow(2, "김철수", "01012345678", "서울시 강남구 테헤란로 1", "사과", 4)}, nil)

	if len(result.Failures) != 0 {
		t.Fatalf("failures = %+v, want none", result.Failures)
	}
	if len(result.Successes) != 2 {
		t.Fatalf("got %d success lines, want 2 (split)", len(result.Successes))
	}
	if result.Successes[0].OrderNumber != "ORD-A" || result.Successes[0].Quantity != 2 {
		t.Errorf("first allocation = %+v, want 2 units to ORD-A", result.Successes[0])
	}
	if result.Successes[1].OrderNumber != "ORD-B" || result.Successes[1].Quantity != 2 {
		t.Errorf("second allocation = %+v, want 2 units to ORD-B", result.Successes[1])
	}
	if len(deliveries.deliveries) != 2 {
		t.Fatalf("wrote %d deliveries, want 2", len(deliveries.deliveries))
	}

	// Fully-shipped order moves to shipped, partially-shipped to preparing.
	if len(orders.shipped) != 1 || orders.shipped[0] != older.ID {
		t.Errorf("shipped orders = %v, want just the older order", orders.shipped)
	}
	if len(orders.preparing) != 1 || orders.preparing[0] != newer.ID {
		t.Errorf("preparing orders = %v, want just the newer order", orders.preparing)
	}
}

func TestAllocateRerunDoesNotOverAllocate(t *testing.T) {
	t.Parallel()

	order := paidOrder("ORD-A", "김철수", "01012345678", "서울시 강남구", "사과", 3)
	orders := &fakeAllocOrderStore{orders: []*models.Order{order}}
	deliveries := &fakeDeliveryStore{}
	allocator := newAllocator(orders, deliveries)

	row := uploadRow(2, "김철수", "01012345678", "서울시 강남구", "사과", 3)
	first := allocator.Allocate(context.Background(), []spreadsheet.ShipmentRow{row}, nil)
	if len(first.Successes) != 1 {
		t.Fatalf("first run successes = %+v", first.Successes)
	}

	// The rerun re-confirms the recorded allocation instead of writing
	// another one.
	second := allocator.Allocate(context.Background(), []spreadsheet.ShipmentRow{row}, nil)
	if len(second.Failures) != 0 {
		t.Fatalf("rerun failures = %+v, want none", second.Failures)
	}
	if len(second.Successes) != 1 || second.Successes[0].Quantity != 3 {
		t.Errorf("rerun successes = %+v, want the original 3 units re-confirmed", second.Successes)
	}
	if len(deliveries.deliveries) != 1 {
		t.Errorf("deliveries after rerun = %d, want 1", len(deliveries.deliveries))
	}
}

func TestAllocateRerunPartiallyFilledItem(t *testing.T) {
	t.Parallel()

	// Item ordered 4, row ships 2. The rerun must not grab the still-open
	// 2 units under the same tracking number.
	order := paidOrder("ORD-A", "김철수", "01012345678", "서울시 강남구", "사과", 4)
	orders := &fakeAllocOrderStore{orders: []*models.Order{order}}
	deliveries := &fakeDeliveryStore{}
	allocator := newAllocator(orders, deliveries)

	row := uploadRow(2, "김철수", "01012345678", "서울시 강남구", "사과", 2)
	first := allocator.Allocate(context.Background(), []spreadsheet.ShipmentRow{row}, nil)
	if len(first.Successes) != 1 || first.Successes[0].Quantity != 2 {
		t.Fatalf("first run successes = %+v, want 2 units", first.Successes)
	}

	second := allocator.Allocate(context.Background(), []spreadsheet.ShipmentRow{row}, nil)
	if len(second.Failures) != 0 {
		t.Fatalf("rerun failures = %+v, want none", second.Failures)
	}
	if len(second.Successes) != 1 || second.Successes[0].Quantity != 2 {
		t.Errorf("rerun successes = %+v, want the original 2 units re-confirmed", second.Successes)
	}
	if got := totalAllocated(deliveries); got != 2 {
		t.Errorf("total allocated after rerun = %d, want 2", got)
	}
}

func TestAllocateRetryAfterMidRowWriteFailure(t *testing.T) {
	t.Parallel()

	// A 4-unit row spans two orders; the first run writes the older
	// order's 2 units and dies on the newer one. The retry re-confirms
	// the written part and completes the remainder.
	older := paidOrder("ORD-A", "김철수", "01012345678", "서울시 강남구", "사과", 2)
	newer := paidOrder("ORD-B", "김철수", "01012345678", "서울시 강남구", "사과", 3)
	orders := &fakeAllocOrderStore{orders: []*models.Order{older, newer}}
	deliveries := &fakeDeliveryStore{createErr: errors.New("connection reset"), errOnCall: 2}
	allocator := newAllocator(orders, deliveries)

	row := uploadRow(2, "김철수", "01012345678", "서울시 강남구", "사과", 4)
	first := allocator.Allocate(context.Background(), []spreadsheet.ShipmentRow{row}, nil)
	if len(first.Failures) != 1 || first.Failures[0].Reason != FailureUpdateFailed {
		t.Fatalf("first run failures = %+v, want UpdateFailed", first.Failures)
	}

	second := allocator.Allocate(context.Background(), []spreadsheet.ShipmentRow{row}, nil)
	if len(second.Failures) != 0 {
		t.Fatalf("retry failures = %+v, want none", second.Failures)
	}
	if len(second.Successes) != 2 {
		t.Fatalf("retry successes = %+v, want re-confirmation plus remainder", second.Successes)
	}
	if got := totalAllocated(deliveries); got != 4 {
		t.Errorf("total allocated after retry = %d, want 4", got)
	}
}

func TestAllocateNoMatchingOrder(t *testing.T) {
	t.Parallel()

	order := paidOrder("ORD-A", "김철수", "01012345678", "서울시", "사과", 2)
	orders := &fakeAllocOrderStore{orders: []*models.Order{order}}
	deliveries := &fakeDeliveryStore{}

	tests := []struct {
		name string
		row  spreadsheet.ShipmentRow
	}{
		{"wrong receiver", uploadRow(2, "박민수", "01012345678", "서울시", "사과", 1)},
		{"wrong phone", uploadRow(2, "김철수", "01000000000", "서울시", "사과", 1)},
		{"wrong product", uploadRow(2, "김철수", "01012345678", "서울시", "배", 1)},
		{"wrong address", uploadRow(2, "김철수", "01012345678", "부산시 해운대구", "사과", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newAllocator(orders, deliveries).Allocate(context.Background(),
				[]spreadsheet.ShipmentRow{tt.row}, nil)
			if len(result.Failures) != 1 || result.Failures[0].Reason != FailureNoMatchingOrder {
				t.Errorf("failures = %+v, want NoMatchingOrder", result.Failures)
			}
			if len(deliveries.deliveries) != 0 {
				t.Error("deliveries written despite no match")
			}
		})
	}
}

func TestAllocateQuantityShortfall(t *testing.T) {
	t.Parallel()

	order := paidOrder("ORD-A", "김철수", "01012345678", "서울시", "사과", 2)
	orders := &fakeAllocOrderStore{orders: []*models.Order{order}}
	deliveries := &fakeDeliveryStore{}

	result := newAllocator(orders, deliveries).Allocate(context.Background(),
		[]spreadsheet.ShipmentRow{uploadRow(2, "김철수", "01012345678", "서울시", "사과", 5)}, nil)

	if len(result.Failures) != 1 {
		t.Fatalf("failures = %+v, want 1", result.Failures)
	}
	reason := result.Failures[0].Reason
	if !strings.Contains(reason, FailureQuantityShortfall) || !strings.Contains(reason, "요청 5") || !strings.Contains(reason, "가능 2") {
		t.Errorf("reason = %q, want shortfall with requested and available", reason)
	}
	if len(deliveries.deliveries) != 0 {
		t.Error("partial allocation written despite shortfall")
	}
}

func TestAllocateAddressSubstringMatch(t *testing.T) {
	t.Parallel()

	order := paidOrder("ORD-A", "김철수", "01012345678", "서울시 강남구 테헤란로 1", "사과", 1)
	order.ShippingAddress.DetailAddress = "101동 202호"
	orders := &fakeAllocOrderStore{orders: []*models.Order{order}}
	deliveries := &fakeDeliveryStore{}

	// Upload drops the detail part; containment still matches.
	result := newAllocator(orders, deliveries).Allocate(context.Background(),
		[]spreadsheet.ShipmentRow{uploadRow(2, "김철수", "01012345678", "서울시 강남구 테헤란로 1", "사과", 1)}, nil)

	if len(result.Successes) != 1 {
		t.Fatalf("successes = %+v, want 1", result.Successes)
	}
	if d := deliveries.deliveries[0]; d.Courier != "CJ대한통운" || d.TrackingURL == "" {
		t.Errorf("delivery = %+v, want canonical courier and tracking url", d)
	}
}

func TestAllocateWriteFailure(t *testing.T) {
	t.Parallel()

	order := paidOrder("ORD-A", "김철수", "01012345678", "서울시", "사과", 2)
	orders := &fakeAllocOrderStore{orders: []*models.Order{order}}
	deliveries := &fakeDeliveryStore{createErr: errors.New("connection reset")}

	result := newAllocator(orders, deliveries).Allocate(context.Background(),
		[]spreadsheet.ShipmentRow{uploadRow(2, "김철수", "01012345678", "서울시", "사과", 1)}, nil)

	if len(result.Failures) != 1 || result.Failures[0].Reason != FailureUpdateFailed {
		t.Errorf("failures = %+v, want UpdateFailed", result.Failures)
	}
}

func TestAllocateParserErrorsPassThrough(t *testing.T) {
	t.Parallel()

	orders := &fakeAllocOrderStore{}
	deliveries := &fakeDeliveryStore{}

	result := newAllocator(orders, deliveries).Allocate(context.Background(), nil,
		[]spreadsheet.RowError{{RowNumber: 4, Reason: "수량 값이 올바르지 않음"}})

	if len(result.Failures) != 1 || result.Failures[0].RowNumber != 4 {
		t.Errorf("failures = %+v, want parser error forwarded", result.Failures)
	}
}

func TestMatchAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		order string
		row   string
		want  bool
	}{
		{"서울시 강남구 테헤란로 1", "서울시 강남구 테헤란로 1", true},
		{"서울시 강남구 테헤란로 1 101동 202호", "서울시 강남구 테헤란로 1", true},
		{"서울시 강남구 테헤란로 1", "서울시 강남구 테헤란로 1 101동 202호", true},
		{"서울시  강남구  테헤란로 1", "서울시 강남구 테헤란로 1", true},
		{"서울시 강남구", "부산시 해운대구", false},
		{"", "", true},
		{"서울시", "", false},
	}
	for _, tt := range tests {
		if got := matchAddress(tt.order, tt.row); got != tt.want {
			t.Errorf("matchAddress(%q, %q) = %v, want %v", tt.order, tt.row, got, tt.want)
		}
	}
}
