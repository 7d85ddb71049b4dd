package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/gateway"
	"inbrentory/backend/internal/store"
	"inbrentory/backend/internal/xid"
)

var hundred = decimal.NewFromInt(100)

// CreateOrder submits a cart to the gateway. Each line carries its inventory id
// in the note; a positive discount is sent as a negative store credit line.
func (s *Service) CreateOrder(ctx context.Context, lines []domain.CartLine, discount decimal.Decimal) (gateway.Order, error) {
	if len(lines) == 0 || discount.IsNegative() {
		return gateway.Order{}, store.ErrInvalidRequest
	}

	items := make([]gateway.LineItem, 0, len(lines)+1)
	for _, line := range lines {
		name := strings.TrimSpace(line.Name)
		if name == "" || line.Quantity < 1 || line.Price.IsNegative() {
			return gateway.Order{}, store.ErrInvalidRequest
		}
		li := gateway.LineItem{
			Name:           name,
			Quantity:       line.Quantity,
			BasePriceCents: toCents(line.Price),
		}
		if id := strings.TrimSpace(line.ItemID); id != "" {
			li.Note = gateway.ItemNotePrefix + id
		}
		items = append(items, li)
	}
	if discount.IsPositive() {
		items = append(items, gateway.LineItem{
			Name:           "Store Credit",
			Quantity:       1,
			BasePriceCents: -toCents(discount),
			Note:           gateway.StoreCreditNote,
		})
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		IdempotencyKey: xid.IdempotencyKey(),
		LineItems:      items,
	})
	if err != nil {
		return gateway.Order{}, upstreamError("create order", err)
	}
	return *order, nil
}

// CreateTerminalCheckout requests a device-present checkout for order.
func (s *Service) CreateTerminalCheckout(ctx context.Context, order gateway.Order) (gateway.TerminalCheckout, error) {
	if s.deviceID == "" {
		log.Printf("[checkout] ERROR: TERMINAL_DEVICE_ID is not set, terminal checkout unavailable")
		return gateway.TerminalCheckout{}, fmt.Errorf("%w: terminal device id not configured", ErrConfiguration)
	}
	if order.ID == "" {
		return gateway.TerminalCheckout{}, store.ErrInvalidRequest
	}

	amount, ok := checkoutAmount(order)
	if !ok {
		return gateway.TerminalCheckout{}, fmt.Errorf("%w: order %s has no total", store.ErrInvalidRequest, order.ID)
	}

	checkout, err := s.gateway.CreateTerminalCheckout(ctx, gateway.CreateCheckoutRequest{
		IdempotencyKey: xid.IdempotencyKey(),
		OrderID:        order.ID,
		DeviceID:       s.deviceID,
		AmountCents:    amount,
	})
	if err != nil {
		return gateway.TerminalCheckout{}, upstreamError("create terminal checkout", err)
	}
	return *checkout, nil
}

// StartCheckout creates the order and pushes it to the terminal device.
func (s *Service) StartCheckout(ctx context.Context, req domain.TerminalCheckoutRequest) (domain.TerminalCheckoutResponse, error) {
	if s.deviceID == "" {
		return domain.TerminalCheckoutResponse{}, fmt.Errorf("%w: terminal device id not configured", ErrConfiguration)
	}

	order, err := s.CreateOrder(ctx, req.LineItems, req.Discount)
	if err != nil {
		return domain.TerminalCheckoutResponse{}, err
	}
	checkout, err := s.CreateTerminalCheckout(ctx, order)
	if err != nil {
		return domain.TerminalCheckoutResponse{}, err
	}

	status := checkout.Status
	if status == "" {
		status = domain.PaymentStatusPending
	}
	return domain.TerminalCheckoutResponse{
		CheckoutID:  checkout.ID,
		OrderID:     order.ID,
		AmountCents: checkout.AmountCents,
		Status:      status,
	}, nil
}

// CheckoutStatus is pending until a sale carries the checkout id.
func (s *Service) CheckoutStatus(ctx context.Context, checkoutID string) (domain.CheckoutStatusResponse, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return domain.CheckoutStatusResponse{}, store.ErrInvalidRequest
	}

	sale, err := s.repo.FindSaleByCheckoutID(ctx, checkoutID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutStatusResponse{CheckoutID: checkoutID, Status: domain.PaymentStatusPending}, nil
	}
	if err != nil {
		return domain.CheckoutStatusResponse{}, err
	}

	status := sale.PaymentStatus
	if status == "" {
		status = domain.PaymentStatusCompleted
	}
	return domain.CheckoutStatusResponse{CheckoutID: checkoutID, Status: status, SaleID: sale.ID}, nil
}

func checkoutAmount(order gateway.Order) (int64, bool) {
	if order.NetTotalCents != nil {
		return *order.NetTotalCents, true
	}
	if len(order.LineItems) == 0 {
		return 0, false
	}
	var total int64
	for _, li := range order.LineItems {
		total += int64(li.Quantity) * li.BasePriceCents
	}
	return total, true
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func upstreamError(op string, err error) error {
	if errors.Is(err, gateway.ErrTransient) {
		return fmt.Errorf("%w: %s: %v", ErrTransientUpstream, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
