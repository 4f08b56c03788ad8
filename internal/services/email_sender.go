package services

import (
	"context"

	"github.com/podomall/podomall/internal/email"
	"github.com/podomall/podomall/internal/models"
)

type OrderEmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendOrderShipped(ctx context.Context, order *models.Order, delivery *models.Delivery) error
}

// ProviderOrderEmailSender renders order templates and sends them through
// the configured mail provider.
type ProviderOrderEmailSender struct {
	provider email.Provider
	shopName string
}

func NewProviderOrderEmailSender(provider email.Provider, shopName string) *ProviderOrderEmailSender {
	return &ProviderOrderEmailSender{provider: provider, shopName: shopName}
}

func (s *ProviderOrderEmailSender) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	if order.CustomerEmail == "" {
		return nil
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return err
	}
	msg, err := renderer.Render("order_confirmation", s.orderInfo(order))
	if err != nil {
		return err
	}
	return s.provider.SendEmail(ctx, msg)
}

func (s *ProviderOrderEmailSender) SendOrderShipped(ctx context.Context, order *models.Order, delivery *models.Delivery) error {
	if order.CustomerEmail == "" {
		return nil
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return err
	}
	info := s.orderInfo(order)
	if delivery != nil {
		info.TrackingCarrier = delivery.Courier
		info.TrackingNumber = delivery.TrackingNumber
		info.TrackingURL = delivery.TrackingURL
	}
	msg, err := renderer.Render("order_shipped", info)
	if err != nil {
		return err
	}
	return s.provider.SendEmail(ctx, msg)
}

func (s *ProviderOrderEmailSender) orderInfo(order *models.Order) *email.OrderInfo {
	info := &email.OrderInfo{
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		ShopName:        s.shopName,
		Subtotal:        email.FormatKRW(order.Subtotal),
		Discount:        email.FormatKRW(order.DiscountAmount),
		Shipping:        email.FormatKRW(order.ShippingAmount),
		Total:           email.FormatKRW(order.TotalAmount),
		ShippingAddress: order.ShippingAddress.FullAddress(),
		OrderDate:       order.CreatedAt.Format("2006년 1월 2일"),
	}
	if info.CustomerName == "" {
		info.CustomerName = order.ShippingAddress.ReceiverName
	}
	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderLine{
			Name:       item.ProductName,
			Quantity:   item.Quantity,
			UnitPrice:  email.FormatKRW(item.UnitPrice),
			TotalPrice: email.FormatKRW(item.TotalPrice),
		})
	}
	return info
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderShipped(ctx context.Context, order *models.Order, delivery *models.Delivery) error {
	return nil
}
