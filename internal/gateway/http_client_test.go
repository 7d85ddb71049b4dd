package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPConfig{
		BaseURL:     srv.URL,
		AccessToken: "token-123",
		LocationID:  "loc-1",
		APIVersion:  "2024-01-18",
		Timeout:     2 * time.Second,
	})
}

func TestGetPaymentDecodesWireFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/payments/pay-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-123" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("Square-Version") != "2024-01-18" {
			t.Errorf("missing version header")
		}
		_, _ = w.Write([]byte(`{"payment":{"id":"pay-1","status":"COMPLETED","order_id":"ord-1",
			"receipt_url":"https://r/1","created_at":"2025-11-02T18:00:00.000Z",
			"amount_money":{"amount":8000,"currency":"USD"}}}`))
	})

	p, err := client.GetPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.Status != PaymentStatusCompleted || p.OrderID != "ord-1" || p.AmountCents != 8000 || p.ReceiptURL != "https://r/1" {
		t.Fatalf("unexpected payment: %+v", p)
	}
	want := time.Date(2025, 11, 2, 18, 0, 0, 0, time.UTC)
	if p.CreatedAt == nil || !p.CreatedAt.Equal(want) {
		t.Fatalf("expected created_at %s, got %v", want, p.CreatedAt)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		want      error
		retryable bool
	}{
		{http.StatusNotFound, ErrNotFound, false},
		{http.StatusUnauthorized, ErrUnauthorized, false},
		{http.StatusForbidden, ErrUnauthorized, false},
		{http.StatusBadGateway, ErrTransient, true},
		{http.StatusTooManyRequests, ErrTransient, true},
	}

	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"errors":[{"category":"API_ERROR","code":"X","detail":"boom"}]}`))
		})
		_, err := client.GetOrder(context.Background(), "ord-1")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		if IsRetryable(err) != tc.retryable {
			t.Fatalf("status %d: expected retryable=%v", tc.status, tc.retryable)
		}
	}
}

func TestBadRequestIsNotRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"INVALID_VALUE","detail":"bad"}]}`))
	})

	_, err := client.GetOrder(context.Background(), "ord-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_VALUE" {
		t.Fatalf("expected APIError with code, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("400 must not be retryable")
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	client := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.GetPayment(context.Background(), "pay-1")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestCreateOrderSendsLineItemsAndParsesNetTotal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			IdempotencyKey string    `json:"idempotency_key"`
			Order          wireOrder `json:"order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.IdempotencyKey != "idem-1" || body.Order.LocationID != "loc-1" || len(body.Order.LineItems) != 2 {
			t.Errorf("unexpected body: %+v", body)
		}
		if body.Order.LineItems[1].BasePriceMoney.Amount != -2000 || body.Order.LineItems[1].Note != StoreCreditNote {
			t.Errorf("unexpected credit line: %+v", body.Order.LineItems[1])
		}
		_, _ = w.Write([]byte(`{"order":{"id":"ord-9","location_id":"loc-1",
			"line_items":[{"name":"Coat","quantity":"1","note":"itemId:item-1","base_price_money":{"amount":10000}},
			{"name":"Store Credit","quantity":"1","note":"store-credit","base_price_money":{"amount":-2000}}],
			"net_amounts":{"total_money":{"amount":8000,"currency":"USD"}}}}`))
	})

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		IdempotencyKey: "idem-1",
		LineItems: []LineItem{
			{Name: "Coat", Quantity: 1, BasePriceCents: 10000, Note: "itemId:item-1"},
			{Name: "Store Credit", Quantity: 1, BasePriceCents: -2000, Note: StoreCreditNote},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "ord-9" || order.NetTotalCents == nil || *order.NetTotalCents != 8000 {
		t.Fatalf("unexpected order: %+v", order)
	}
	if id, ok := order.LineItems[0].ItemID(); !ok || id != "item-1" {
		t.Fatalf("expected item-1 from note, got %q", id)
	}
	if !order.LineItems[1].IsStoreCredit() {
		t.Fatalf("expected store credit line")
	}
}

func TestCreateTerminalCheckoutSendsDevice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Checkout wireCheckout `json:"checkout"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Checkout.DeviceOptions == nil || body.Checkout.DeviceOptions.DeviceID != "dev-1" || body.Checkout.AmountMoney.Amount != 8000 {
			t.Errorf("unexpected checkout body: %+v", body.Checkout)
		}
		_, _ = w.Write([]byte(`{"checkout":{"id":"chk-1","order_id":"ord-9","status":"PENDING","amount_money":{"amount":8000}}}`))
	})

	checkout, err := client.CreateTerminalCheckout(context.Background(), CreateCheckoutRequest{
		IdempotencyKey: "idem-2", OrderID: "ord-9", DeviceID: "dev-1", AmountCents: 8000,
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if checkout.ID != "chk-1" || checkout.Status != "PENDING" || checkout.AmountCents != 8000 {
		t.Fatalf("unexpected checkout: %+v", checkout)
	}
}

func TestGetPaymentCollapsesConcurrentLookups(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"payment":{"id":"pay-1","status":"COMPLETED"}}`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.GetPayment(context.Background(), "pay-1"); err != nil {
				t.Errorf("get payment: %v", err)
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}
}
