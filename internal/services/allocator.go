package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/logging"
	"github.com/podomall/podomall/internal/models"
	"github.com/podomall/podomall/internal/observability"
	"github.com/podomall/podomall/internal/spreadsheet"
)

// Per-row failure reasons, kept distinct so admins know whether to fix the
// upload data or simply retry it.
const (
	FailureNoMatchingOrder   = "일치하는 주문 없음"
	FailureQuantityShortfall = "수량 부족"
	FailureUpdateFailed      = "배송 등록 실패 (재시도 필요)"
)

type allocatorOrderStore interface {
	FindShippableByReceiver(ctx context.Context, name, phone string) ([]*models.Order, error)
	MarkPreparing(ctx context.Context, orderID uuid.UUID) error
	MarkShipped(ctx context.Context, orderID uuid.UUID) error
}

type allocatorDeliveryStore interface {
	Create(ctx context.Context, delivery *models.Delivery) error
	ShippedQuantity(ctx context.Context, orderItemID uuid.UUID) (int, error)
	AllocatedForTracking(ctx context.Context, orderItemID uuid.UUID, courier, trackingNumber string) (int, error)
}

// AllocatorService matches carrier upload rows to unshipped order items and
// writes delivery allocations.
type AllocatorService struct {
	orderStore    allocatorOrderStore
	deliveryStore allocatorDeliveryStore
	emailSender   OrderEmailSender
	logger        *slog.Logger
}

func NewAllocatorService(orderStore allocatorOrderStore, deliveryStore allocatorDeliveryStore, emailSender OrderEmailSender, logger *slog.Logger) *AllocatorService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}
	return &AllocatorService{
		orderStore:    orderStore,
		deliveryStore: deliveryStore,
		emailSender:   emailSender,
		logger:        logger,
	}
}

// AllocationResult feeds the two-sheet report workbook.
type AllocationResult struct {
	Successes []spreadsheet.ReportSuccess
	Failures  []spreadsheet.ReportFailure
}

// Allocate processes upload rows independently: one row failing never
// blocks the rest. Rows rejected by the parser arrive as RowErrors and come
// back out as failures untouched.
func (s *AllocatorService) Allocate(ctx context.Context, rows []spreadsheet.ShipmentRow, rowErrs []spreadsheet.RowError) *AllocationResult {
	span := sentry.StartSpan(
		ctx,
		"service.allocator.allocate",
		sentry.WithOpName("service.allocator"),
		sentry.WithDescription("Allocate"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	result := &AllocationResult{}

	for _, rowErr := range rowErrs {
		result.Failures = append(result.Failures, spreadsheet.ReportFailure{
			RowNumber: rowErr.RowNumber,
			Reason:    rowErr.Reason,
		})
	}

	touched := map[uuid.UUID]*models.Order{}
	for _, row := range rows {
		successes, failure := s.allocateRow(ctx, row, touched)
		if failure != nil {
			reason := "shortfall"
			if failure.Reason == FailureNoMatchingOrder {
				reason = "no_match"
			} else if failure.Reason == FailureUpdateFailed {
				reason = "update_failed"
			}
			meter.Count("allocation.row.failed", 1, sentry.WithAttributes(
				attribute.String("reason", reason),
			))
			result.Failures = append(result.Failures, *failure)
			continue
		}
		meter.Count("allocation.row.allocated", 1)
		result.Successes = append(result.Successes, successes...)
	}

	s.finalizeOrders(ctx, touched)
	return result
}

type plannedAllocation struct {
	order       *models.Order
	item        *models.OrderItem
	quantity    int
	reconfirmed bool
}

// allocateRow matches one upload row. Candidate orders are walked oldest
// first; within an order, items matching the product name are drained in
// turn. Quantity already recorded under this row's courier and tracking
// number is re-confirmed instead of allocated again, so rerunning an
// upload only writes what is still owed.
func (s *AllocatorService) allocateRow(ctx context.Context, row spreadsheet.ShipmentRow, touched map[uuid.UUID]*models.Order) ([]spreadsheet.ReportSuccess, *spreadsheet.ReportFailure) {
	logger := logging.FromContext(ctx, s.logger).With("upload_row", row.RowNumber)

	fail := func(reason string) *spreadsheet.ReportFailure {
		return &spreadsheet.ReportFailure{
			RowNumber: row.RowNumber,
			Receiver:  row.ReceiverName,
			Product:   row.ProductName,
			Quantity:  row.Quantity,
			Reason:    reason,
		}
	}

	candidates, err := s.orderStore.FindShippableByReceiver(ctx, row.ReceiverName, row.ReceiverPhone)
	if err != nil {
		logger.Error("candidate lookup failed", "error", err)
		return nil, fail(FailureUpdateFailed)
	}

	courier := ResolveCourierName(row.Courier)
	trackingURL := BuildTrackingURL(row.Courier, row.TrackingNumber)

	remaining := row.Quantity
	available := 0
	var plan []plannedAllocation
	matchedAny := false

	for _, order := range candidates {
		if !matchAddress(order.ShippingAddress.FullAddress(), row.Address) {
			continue
		}
		for i := range order.Items {
			item := &order.Items[i]
			if item.ProductName != row.ProductName {
				continue
			}
			matchedAny = true
			shipped, err := s.deliveryStore.ShippedQuantity(ctx, item.ID)
			if err != nil {
				logger.Error("shipped quantity lookup failed", "order_item_id", item.ID, "error", err)
				return nil, fail(FailureUpdateFailed)
			}
			recorded, err := s.deliveryStore.AllocatedForTracking(ctx, item.ID, courier, row.TrackingNumber)
			if err != nil {
				logger.Error("recorded allocation lookup failed", "order_item_id", item.ID, "error", err)
				return nil, fail(FailureUpdateFailed)
			}
			if recorded > 0 && remaining > 0 {
				take := recorded
				if take > remaining {
					take = remaining
				}
				plan = append(plan, plannedAllocation{order: order, item: item, quantity: take, reconfirmed: true})
				remaining -= take
				available += take
			}
			free := item.Quantity - shipped
			if free <= 0 {
				continue
			}
			available += free
			if remaining <= 0 {
				continue
			}
			alloc := free
			if alloc > remaining {
				alloc = remaining
			}
			plan = append(plan, plannedAllocation{order: order, item: item, quantity: alloc})
			remaining -= alloc
		}
	}

	if !matchedAny {
		return nil, fail(FailureNoMatchingOrder)
	}
	if remaining > 0 {
		return nil, fail(fmt.Sprintf("%s (요청 %d, 가능 %d)", FailureQuantityShortfall, row.Quantity, available))
	}

	var successes []spreadsheet.ReportSuccess
	for _, p := range plan {
		if p.reconfirmed {
			successes = append(successes, spreadsheet.ReportSuccess{
				RowNumber:      row.RowNumber,
				OrderNumber:    p.order.OrderNumber,
				ProductName:    p.item.ProductName,
				Quantity:       p.quantity,
				Courier:        courier,
				TrackingNumber: row.TrackingNumber,
			})
			continue
		}
		delivery := &models.Delivery{
			OrderID:        p.order.ID,
			OrderItemID:    p.item.ID,
			Courier:        courier,
			TrackingNumber: row.TrackingNumber,
			TrackingURL:    trackingURL,
			Quantity:       p.quantity,
		}
		if err := s.deliveryStore.Create(ctx, delivery); err != nil {
			if errors.Is(err, db.ErrDuplicateDelivery) {
				successes = append(successes, spreadsheet.ReportSuccess{
					RowNumber:      row.RowNumber,
					OrderNumber:    p.order.OrderNumber,
					ProductName:    p.item.ProductName,
					Quantity:       p.quantity,
					Courier:        courier,
					TrackingNumber: row.TrackingNumber,
				})
				continue
			}
			logger.Error("delivery write failed", "order_id", p.order.ID, "error", err)
			return nil, fail(FailureUpdateFailed)
		}
		p.item.ShippedQuantity += p.quantity
		touched[p.order.ID] = p.order
		if p.order.CustomerEmail != "" {
			if err := s.emailSender.SendOrderShipped(ctx, p.order, delivery); err != nil {
				logger.Warn("failed to send shipped email", "order_id", p.order.ID, "error", err)
			}
		}
		successes = append(successes, spreadsheet.ReportSuccess{
			RowNumber:      row.RowNumber,
			OrderNumber:    p.order.OrderNumber,
			ProductName:    p.item.ProductName,
			Quantity:       p.quantity,
			Courier:        courier,
			TrackingNumber: row.TrackingNumber,
		})
	}
	return successes, nil
}

// finalizeOrders moves every touched order forward: fully-allocated orders
// become shipped, partially-allocated ones preparing. Transition errors are
// logged; the deliveries are already durable.
func (s *AllocatorService) finalizeOrders(ctx context.Context, touched map[uuid.UUID]*models.Order) {
	logger := logging.FromContext(ctx, s.logger)
	for orderID, order := range touched {
		fully := true
		for i := range order.Items {
			shipped, err := s.deliveryStore.ShippedQuantity(ctx, order.Items[i].ID)
			if err != nil {
				logger.Error("shipped quantity lookup during finalize failed", "order_id", orderID, "error", err)
				fully = false
				break
			}
			if shipped < order.Items[i].Quantity {
				fully = false
				break
			}
		}
		var err error
		if fully {
			err = s.orderStore.MarkShipped(ctx, orderID)
		} else {
			err = s.orderStore.MarkPreparing(ctx, orderID)
		}
		if err != nil {
			logger.Warn("order status transition failed after allocation", "order_id", orderID, "error", err)
		}
	}
}

// matchAddress accepts an exact match or either address containing the
// other, tolerating uploads that drop the detail part or append a note.
func matchAddress(orderAddress, rowAddress string) bool {
	a := strings.Join(strings.Fields(orderAddress), " ")
	b := strings.Join(strings.Fields(rowAddress), " ")
	if a == "" || b == "" {
		return a == b
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
