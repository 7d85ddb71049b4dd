package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	PaymentStatusCompleted = "COMPLETED"

	ItemNotePrefix  = "itemId:"
	StoreCreditNote = "store-credit"
)

var (
	ErrNotFound     = errors.New("gateway resource not found")
	ErrUnauthorized = errors.New("gateway credentials rejected")
	ErrTransient    = errors.New("gateway temporarily unavailable")
)

// APIError is a non-2xx gateway response that is neither 401/403 nor 404.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gateway returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned status %d: %s %s", e.StatusCode, e.Code, e.Detail)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode >= 500 || e.StatusCode == 429 {
		return ErrTransient
	}
	return nil
}

type Payment struct {
	ID          string
	Status      string
	OrderID     string
	ReceiptURL  string
	AmountCents int64
	CreatedAt   *time.Time
}

type LineItem struct {
	Name           string
	Quantity       int
	BasePriceCents int64
	Note           string
}

// ItemID returns the inventory id embedded in the line item note.
func (li LineItem) ItemID() (string, bool) {
	if !strings.HasPrefix(li.Note, ItemNotePrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(li.Note, ItemNotePrefix))
	return id, id != ""
}

func (li LineItem) IsStoreCredit() bool {
	return li.Note == StoreCreditNote
}

type Order struct {
	ID            string
	LineItems     []LineItem
	NetTotalCents *int64
}

type TerminalCheckout struct {
	ID          string
	OrderID     string
	Status      string
	PaymentIDs  []string
	AmountCents int64
}

type CreateOrderRequest struct {
	IdempotencyKey string
	LineItems      []LineItem
}

type CreateCheckoutRequest struct {
	IdempotencyKey string
	OrderID        string
	DeviceID       string
	AmountCents    int64
}

type Client interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CreateTerminalCheckout(ctx context.Context, req CreateCheckoutRequest) (*TerminalCheckout, error)
}
