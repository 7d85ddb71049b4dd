package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const defaultCurrency = "USD"

type HTTPConfig struct {
	BaseURL           string
	AccessToken       string
	LocationID        string
	APIVersion        string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// HTTPClient talks to a Square-compatible REST API.
type HTTPClient struct {
	baseURL     string
	accessToken string
	locationID  string
	apiVersion  string
	http        *http.Client
	limiter     *rate.Limiter
	payments    singleflight.Group
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		locationID:  cfg.LocationID,
		apiVersion:  cfg.APIVersion,
		http:        &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(limit, burst),
	}
}

type wireMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type wirePayment struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	OrderID     string     `json:"order_id"`
	ReceiptURL  string     `json:"receipt_url"`
	CreatedAt   string     `json:"created_at"`
	AmountMoney *wireMoney `json:"amount_money"`
	TotalMoney  *wireMoney `json:"total_money"`
}

type wireLineItem struct {
	Name           string     `json:"name"`
	Quantity       string     `json:"quantity"`
	Note           string     `json:"note,omitempty"`
	BasePriceMoney *wireMoney `json:"base_price_money"`
}

type wireOrder struct {
	ID         string         `json:"id,omitempty"`
	LocationID string         `json:"location_id"`
	LineItems  []wireLineItem `json:"line_items"`
	NetAmounts *struct {
		TotalMoney *wireMoney `json:"total_money"`
	} `json:"net_amounts,omitempty"`
}

type wireCheckout struct {
	ID            string             `json:"id,omitempty"`
	OrderID       string             `json:"order_id"`
	LocationID    string             `json:"location_id,omitempty"`
	Status        string             `json:"status,omitempty"`
	PaymentIDs    []string           `json:"payment_ids,omitempty"`
	AmountMoney   *wireMoney         `json:"amount_money"`
	DeviceOptions *wireDeviceOptions `json:"device_options,omitempty"`
}

type wireDeviceOptions struct {
	DeviceID string `json:"device_id"`
}

type wireErrors struct {
	Errors []struct {
		Category string `json:"category"`
		Code     string `json:"code"`
		Detail   string `json:"detail"`
	} `json:"errors"`
}

func (c *HTTPClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	// Concurrent deliveries for one payment share a single upstream lookup.
	v, err, _ := c.payments.Do(paymentID, func() (any, error) {
		var resp struct {
			Payment wirePayment `json:"payment"`
		}
		if err := c.do(ctx, http.MethodGet, "/v2/payments/"+url.PathEscape(paymentID), nil, &resp); err != nil {
			return nil, err
		}
		return toPayment(resp.Payment), nil
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*Payment)
	return &p, nil
}

func (c *HTTPClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var resp struct {
		Order wireOrder `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	return toOrder(resp.Order), nil
}

func (c *HTTPClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	order := wireOrder{LocationID: c.locationID, LineItems: make([]wireLineItem, 0, len(req.LineItems))}
	for _, li := range req.LineItems {
		order.LineItems = append(order.LineItems, wireLineItem{
			Name:           li.Name,
			Quantity:       strconv.Itoa(li.Quantity),
			Note:           li.Note,
			BasePriceMoney: &wireMoney{Amount: li.BasePriceCents, Currency: defaultCurrency},
		})
	}

	body := map[string]any{
		"idempotency_key": req.IdempotencyKey,
		"order":           order,
	}
	var resp struct {
		Order wireOrder `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/orders", body, &resp); err != nil {
		return nil, err
	}
	return toOrder(resp.Order), nil
}

func (c *HTTPClient) CreateTerminalCheckout(ctx context.Context, req CreateCheckoutRequest) (*TerminalCheckout, error) {
	checkout := wireCheckout{
		OrderID:       req.OrderID,
		LocationID:    c.locationID,
		AmountMoney:   &wireMoney{Amount: req.AmountCents, Currency: defaultCurrency},
		DeviceOptions: &wireDeviceOptions{DeviceID: req.DeviceID},
	}

	body := map[string]any{
		"idempotency_key": req.IdempotencyKey,
		"checkout":        checkout,
	}
	var resp struct {
		Checkout wireCheckout `json:"checkout"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/terminals/checkouts", body, &resp); err != nil {
		return nil, err
	}

	out := &TerminalCheckout{
		ID:         resp.Checkout.ID,
		OrderID:    resp.Checkout.OrderID,
		Status:     resp.Checkout.Status,
		PaymentIDs: resp.Checkout.PaymentIDs,
	}
	if resp.Checkout.AmountMoney != nil {
		out.AmountCents = resp.Checkout.AmountMoney.Amount
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method string, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiVersion != "" {
		req.Header.Set("Square-Version", c.apiVersion)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var we wireErrors
		if json.Unmarshal(raw, &we) == nil && len(we.Errors) > 0 {
			apiErr.Code = we.Errors[0].Code
			apiErr.Detail = we.Errors[0].Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func toPayment(w wirePayment) *Payment {
	p := &Payment{
		ID:         w.ID,
		Status:     w.Status,
		OrderID:    w.OrderID,
		ReceiptURL: w.ReceiptURL,
	}
	switch {
	case w.TotalMoney != nil:
		p.AmountCents = w.TotalMoney.Amount
	case w.AmountMoney != nil:
		p.AmountCents = w.AmountMoney.Amount
	}
	if w.CreatedAt != "" {
		if at, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
			at = at.UTC()
			p.CreatedAt = &at
		}
	}
	return p
}

func toOrder(w wireOrder) *Order {
	o := &Order{ID: w.ID, LineItems: make([]LineItem, 0, len(w.LineItems))}
	for _, li := range w.LineItems {
		qty := 1
		if li.Quantity != "" {
			if n, err := strconv.Atoi(li.Quantity); err == nil {
				qty = n
			}
		}
		item := LineItem{Name: li.Name, Quantity: qty, Note: li.Note}
		if li.BasePriceMoney != nil {
			item.BasePriceCents = li.BasePriceMoney.Amount
		}
		o.LineItems = append(o.LineItems, item)
	}
	if w.NetAmounts != nil && w.NetAmounts.TotalMoney != nil {
		total := w.NetAmounts.TotalMoney.Amount
		o.NetTotalCents = &total
	}
	return o
}

// IsRetryable reports whether err should make the caller retry later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
