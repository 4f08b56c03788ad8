package email

import (
	"strings"
	"testing"
)

func TestFormatKRW(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount int
		want   string
	}{
		{0, "0원"},
		{900, "900원"},
		{3000, "3,000원"},
		{41000, "41,000원"},
		{1234567, "1,234,567원"},
		{-5000, "-5,000원"},
	}
	for _, tt := range tests {
		if got := FormatKRW(tt.amount); got != tt.want {
			t.Errorf("FormatKRW(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestRenderOrderConfirmation(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	email, err := renderer.Render("order_confirmation", &OrderInfo{
		OrderNumber:   "ORD-20260101-0001",
		CustomerName:  "김철수",
		CustomerEmail: "kim@example.com",
		ShopName:      "포도몰",
		Items: []OrderLine{
			{Name: "유기농 사과 1kg", Quantity: 2, UnitPrice: "24,000원", TotalPrice: "48,000원"},
		},
		Subtotal:        "48,000원",
		Discount:        "10,000원",
		Shipping:        "3,000원",
		Total:           "41,000원",
		ShippingAddress: "서울시 강남구 테헤란로 1",
		OrderDate:       "2026년 1월 1일",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if email.To != "kim@example.com" {
		t.Errorf("to = %q", email.To)
	}
	if !strings.Contains(email.Subject, "ORD-20260101-0001") {
		t.Errorf("subject missing order number: %q", email.Subject)
	}
	for _, want := range []string{"41,000원", "유기농 사과 1kg", "서울시 강남구"} {
		if !strings.Contains(email.Text, want) {
			t.Errorf("text body missing %q", want)
		}
		if !strings.Contains(email.HTML, want) {
			t.Errorf("html body missing %q", want)
		}
	}
}

func TestRenderOrderShipped(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	email, err := renderer.Render("order_shipped", &OrderInfo{
		OrderNumber:     "ORD-20260101-0001",
		CustomerName:    "김철수",
		CustomerEmail:   "kim@example.com",
		ShopName:        "포도몰",
		TrackingCarrier: "CJ대한통운",
		TrackingNumber:  "1234567890",
		TrackingURL:     "https://trace.cjlogistics.com/next/tracking.html?wblNo=1234567890",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(email.Text, "1234567890") {
		t.Error("text body missing tracking number")
	}
	if !strings.Contains(email.HTML, "trace.cjlogistics.com") {
		t.Error("html body missing tracking link")
	}
}
