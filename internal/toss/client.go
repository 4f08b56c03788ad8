// Package toss is a minimal client for the Toss Payments v1 REST API,
// covering payment confirmation and lookup.
package toss

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/podomall/podomall/internal/observability"
)

const DefaultBaseURL = "https://api.tosspayments.com"

// Payment statuses returned by the API.
const (
	StatusDone      = "DONE"
	StatusCancelled = "CANCELED"
	StatusAborted   = "ABORTED"
	StatusExpired   = "EXPIRED"
)

type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

func NewClient(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":")),
		httpClient: observability.NewHTTPClient(15 * time.Second),
	}
}

// Payment is the subset of the payment object this service reads.
type Payment struct {
	PaymentKey  string            `json:"paymentKey"`
	OrderID     string            `json:"orderId"`
	OrderName   string            `json:"orderName"`
	Status      string            `json:"status"`
	TotalAmount int               `json:"totalAmount"`
	Method      string            `json:"method"`
	ApprovedAt  time.Time         `json:"approvedAt"`
	Metadata    map[string]string `json:"metadata"`
	Receipt     *Receipt          `json:"receipt,omitempty"`
	Failure     *Failure          `json:"failure,omitempty"`
}

type Receipt struct {
	URL string `json:"url"`
}

type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx response body from Toss.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toss: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// IsAlreadyProcessed reports whether the confirm call failed because the
// payment key was already confirmed once. Callers treat this as success and
// fall back to a lookup.
func IsAlreadyProcessed(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "ALREADY_PROCESSED_PAYMENT"
}

// Confirm finalizes an authorized payment. Amount must equal the amount the
// buyer approved in the widget or the API rejects the call.
func (c *Client) Confirm(ctx context.Context, paymentKey, orderID string, amount int) (*Payment, error) {
	body, err := json.Marshal(map[string]any{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/v1/payments/confirm", bytes.NewReader(body))
}

// GetPayment looks up a payment by its key.
func (c *Client) GetPayment(ctx context.Context, paymentKey string) (*Payment, error) {
	return c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentKey), nil)
}

// Cancel voids or refunds a confirmed payment.
func (c *Client) Cancel(ctx context.Context, paymentKey, reason string) (*Payment, error) {
	body, err := json.Marshal(map[string]any{"cancelReason": reason})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(paymentKey)+"/cancel", bytes.NewReader(body))
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.authHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("toss request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			apiErr.Code = "UNKNOWN"
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	var payment Payment
	if err := json.Unmarshal(respBody, &payment); err != nil {
		return nil, fmt.Errorf("decoding toss response: %w", err)
	}
	return &payment, nil
}
