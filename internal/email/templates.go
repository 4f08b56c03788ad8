package email

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
)

// OrderInfo carries everything the order templates interpolate.
type OrderInfo struct {
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	ShopName        string
	Items           []OrderLine
	Subtotal        string
	Discount        string
	Shipping        string
	Total           string
	ShippingAddress string
	TrackingCarrier string
	TrackingNumber  string
	TrackingURL     string
	OrderDate       string
}

type OrderLine struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

// FormatKRW renders an amount with thousands separators and the won suffix.
func FormatKRW(amount int) string {
	s := strconv.Itoa(amount)
	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}
	var out []byte
	for i, digit := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}
	if negative {
		return "-" + string(out) + "원"
	}
	return string(out) + "원"
}

type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl := template.New("email")
	for name, body := range map[string]string{
		"order_confirmation_text": orderConfirmationText,
		"order_confirmation_html": orderConfirmationHTML,
		"order_shipped_text":      orderShippedText,
		"order_shipped_html":      orderShippedHTML,
	} {
		if _, err := tmpl.New(name).Parse(body); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
	}
	return &Renderer{templates: tmpl}, nil
}

func (r *Renderer) Render(templateName string, data *OrderInfo) (*Email, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&htmlBuf, templateName+"_html", data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := r.templates.ExecuteTemplate(&textBuf, templateName+"_text", data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}

	var subject string
	switch templateName {
	case "order_confirmation":
		subject = fmt.Sprintf("[%s] 주문이 완료되었습니다 - %s", data.ShopName, data.OrderNumber)
	case "order_shipped":
		subject = fmt.Sprintf("[%s] 상품이 발송되었습니다 - %s", data.ShopName, data.OrderNumber)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subject,
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

const orderConfirmationText = `{{.CustomerName}}님, 주문해 주셔서 감사합니다.

주문번호: {{.OrderNumber}}
주문일: {{.OrderDate}}

주문 상품
{{range .Items}}- {{.Name}} x{{.Quantity}} ({{.TotalPrice}})
{{end}}
상품 금액: {{.Subtotal}}
할인 금액: -{{.Discount}}
배송비: {{.Shipping}}
결제 금액: {{.Total}}

배송지: {{.ShippingAddress}}

{{.ShopName}} 드림
`

const orderConfirmationHTML = `<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>주문이 완료되었습니다</h2>
  <p>{{.CustomerName}}님, 주문해 주셔서 감사합니다.</p>
  <p><strong>주문번호:</strong> {{.OrderNumber}}<br>
     <strong>주문일:</strong> {{.OrderDate}}</p>
  <table style="border-collapse: collapse; width: 100%;">
    <tr style="border-bottom: 1px solid #ddd;">
      <th align="left">상품</th><th align="right">수량</th><th align="right">금액</th>
    </tr>
    {{range .Items}}
    <tr>
      <td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.TotalPrice}}</td>
    </tr>
    {{end}}
  </table>
  <p>상품 금액: {{.Subtotal}}<br>
     할인 금액: -{{.Discount}}<br>
     배송비: {{.Shipping}}<br>
     <strong>결제 금액: {{.Total}}</strong></p>
  <p>배송지: {{.ShippingAddress}}</p>
  <p>{{.ShopName}} 드림</p>
</body>
</html>
`

const orderShippedText = `{{.CustomerName}}님, 주문하신 상품이 발송되었습니다.

주문번호: {{.OrderNumber}}
택배사: {{.TrackingCarrier}}
운송장번호: {{.TrackingNumber}}
{{if .TrackingURL}}배송 조회: {{.TrackingURL}}
{{end}}
{{.ShopName}} 드림
`

const orderShippedHTML = `<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>상품이 발송되었습니다</h2>
  <p>{{.CustomerName}}님, 주문하신 상품이 발송되었습니다.</p>
  <p><strong>주문번호:</strong> {{.OrderNumber}}<br>
     <strong>택배사:</strong> {{.TrackingCarrier}}<br>
     <strong>운송장번호:</strong> {{.TrackingNumber}}</p>
  {{if .TrackingURL}}<p><a href="{{.TrackingURL}}">배송 조회하기</a></p>{{end}}
  <p>{{.ShopName}} 드림</p>
</body>
</html>
`
