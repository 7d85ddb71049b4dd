package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/gateway"
	"inbrentory/backend/internal/store"
	"inbrentory/backend/internal/webhook"
)

type Outcome string

const (
	OutcomeUnauthenticated     Outcome = "unauthenticated"
	OutcomeIgnoredEvent        Outcome = "ignored_event"
	OutcomeNoPaymentID         Outcome = "no_payment_id"
	OutcomePaymentNotFound     Outcome = "payment_not_found"
	OutcomeGatewayUnauthorized Outcome = "gateway_unauthorized"
	OutcomeNotCompleted        Outcome = "not_completed"
	OutcomeAlreadyRecorded     Outcome = "already_recorded"
	OutcomeRecorded            Outcome = "recorded"
)

const (
	StageLink      = "link"
	StageDecrement = "decrement"
)

// InventoryFailure is a per-item inventory update that failed after the sale
// was committed.
type InventoryFailure struct {
	ItemID string
	Stage  string
	Err    error
}

type ReconcileResult struct {
	Outcome           Outcome
	Event             webhook.Event
	SaleID            string
	InventoryFailures []InventoryFailure
}

// Acknowledged reports whether the delivery should be answered with success.
func (r ReconcileResult) Acknowledged() bool {
	return r.Outcome != OutcomeUnauthenticated
}

// HandleWebhook turns one payment notification into at most one sale. A nil
// error with an outcome means acknowledge; a non-nil error means the sender
// should redeliver.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte, sigs []webhook.Signature) (ReconcileResult, error) {
	if !s.verifier.Verify(raw, sigs) {
		log.Printf("[reconcile] WARN: webhook signature verification failed")
		return ReconcileResult{Outcome: OutcomeUnauthenticated}, nil
	}

	ev, err := webhook.ParseEvent(raw)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	res := ReconcileResult{Event: ev}

	if !ev.Handled() {
		res.Outcome = OutcomeIgnoredEvent
		return res, nil
	}
	if ev.PaymentID == "" {
		res.Outcome = OutcomeNoPaymentID
		return res, nil
	}

	claimKey := "webhook:payment:" + ev.PaymentID
	token, claimed, err := s.guard.Claim(ctx, claimKey, s.claimTTL)
	switch {
	case err != nil:
		log.Printf("[reconcile] WARN: delivery guard unavailable payment=%s: %v", ev.PaymentID, err)
	case !claimed:
		return res, fmt.Errorf("%w: payment=%s", ErrDeliveryInFlight, ev.PaymentID)
	default:
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(ctx), claimKey, token); err != nil {
				log.Printf("[reconcile] WARN: failed to release claim payment=%s: %v", ev.PaymentID, err)
			}
		}()
	}

	payment, err := s.gateway.GetPayment(ctx, ev.PaymentID)
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		res.Outcome = OutcomePaymentNotFound
		return res, nil
	case errors.Is(err, gateway.ErrUnauthorized):
		log.Printf("[reconcile] ALERT: gateway rejected credentials while fetching payment=%s", ev.PaymentID)
		res.Outcome = OutcomeGatewayUnauthorized
		return res, nil
	case err != nil:
		return res, fmt.Errorf("%w: get payment %s: %v", ErrTransientUpstream, ev.PaymentID, err)
	}

	if payment.Status != gateway.PaymentStatusCompleted {
		res.Outcome = OutcomeNotCompleted
		return res, nil
	}

	if existing, err := s.repo.FindSaleByPaymentID(ctx, payment.ID); err == nil {
		return s.alreadyRecorded(ctx, res, existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return res, fmt.Errorf("%w: find sale by payment: %v", ErrPersistence, err)
	}

	orderID := ev.OrderID
	if orderID == "" {
		orderID = payment.OrderID
	}
	order := &gateway.Order{ID: orderID}
	if orderID != "" {
		fetched, err := s.gateway.GetOrder(ctx, orderID)
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			log.Printf("[reconcile] WARN: order=%s not found for payment=%s, recording without line items", orderID, payment.ID)
		case err != nil:
			return res, fmt.Errorf("%w: get order %s: %v", ErrTransientUpstream, orderID, err)
		default:
			order = fetched
		}
	}

	soldAt := s.now().UTC()
	if payment.CreatedAt != nil {
		soldAt = payment.CreatedAt.UTC()
	}

	summary := summarizeOrder(order, payment.AmountCents)
	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		SubtotalCents: summary.subtotalCents,
		TotalCents:    summary.totalCents,
		DiscountCents: summary.discountCents,
		PaymentID:     payment.ID,
		OrderID:       orderID,
		CheckoutID:    ev.CheckoutID,
		PaymentStatus: domain.PaymentStatusCompleted,
		ReceiptURL:    payment.ReceiptURL,
		CreatedAt:     soldAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateSale) {
			existing, findErr := s.repo.FindSaleByPaymentID(ctx, payment.ID)
			if findErr != nil {
				res.Outcome = OutcomeAlreadyRecorded
				return res, nil
			}
			return s.alreadyRecorded(ctx, res, existing)
		}
		return res, fmt.Errorf("%w: create sale: %v", ErrPersistence, err)
	}
	res.SaleID = sale.ID

	for _, li := range order.LineItems {
		itemID, ok := li.ItemID()
		if !ok {
			continue
		}
		if f := s.applyLineItem(ctx, sale, itemID, li); f != nil {
			log.Printf("[reconcile] WARN: inventory %s failed item=%s sale=%s: %v", f.Stage, f.ItemID, sale.ID, f.Err)
			res.InventoryFailures = append(res.InventoryFailures, *f)
		}
	}

	res.Outcome = OutcomeRecorded
	return res, nil
}

// alreadyRecorded backfills the checkout id when the payment notification was
// processed before the checkout notification for the same payment.
func (s *Service) alreadyRecorded(ctx context.Context, res ReconcileResult, existing *domain.Sale) (ReconcileResult, error) {
	res.Outcome = OutcomeAlreadyRecorded
	res.SaleID = existing.ID

	checkoutID := res.Event.CheckoutID
	if checkoutID == "" || existing.CheckoutID == checkoutID {
		return res, nil
	}
	if _, err := s.repo.AttachCheckoutID(ctx, existing.ID, checkoutID); err != nil {
		if errors.Is(err, store.ErrCheckoutConflict) {
			log.Printf("[reconcile] WARN: sale=%s already linked to checkout=%s, ignoring checkout=%s", existing.ID, existing.CheckoutID, checkoutID)
			return res, nil
		}
		return res, fmt.Errorf("%w: attach checkout: %v", ErrPersistence, err)
	}
	return res, nil
}

func (s *Service) applyLineItem(ctx context.Context, sale *domain.Sale, itemID string, li gateway.LineItem) *InventoryFailure {
	if _, err := s.repo.GetInventoryItem(ctx, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return &InventoryFailure{ItemID: itemID, Stage: StageLink, Err: err}
	}

	_, err := s.repo.LinkItemToSale(ctx, domain.SaleLink{
		ItemID:            itemID,
		SaleID:            sale.ID,
		SalePriceCents:    li.BasePriceCents,
		SoldAt:            sale.CreatedAt,
		SoldOnMarketplace: true,
	})
	if err != nil {
		return &InventoryFailure{ItemID: itemID, Stage: StageLink, Err: err}
	}

	qty := li.Quantity
	if qty < 1 {
		qty = 1
	}
	if _, err := s.repo.DecrementItemQuantity(ctx, itemID, qty); err != nil {
		return &InventoryFailure{ItemID: itemID, Stage: StageDecrement, Err: err}
	}
	return nil
}

type orderSummary struct {
	subtotalCents int64
	discountCents int64
	totalCents    int64
}

// summarizeOrder derives sale amounts from the order lines. Store credit lines
// become the discount; other lines form the subtotal. Without lines the paid
// amount stands in for both.
func summarizeOrder(order *gateway.Order, paidCents int64) orderSummary {
	var sum orderSummary
	for _, li := range order.LineItems {
		qty := int64(li.Quantity)
		if qty < 1 {
			qty = 1
		}
		if li.IsStoreCredit() {
			sum.discountCents += -li.BasePriceCents * qty
			continue
		}
		sum.subtotalCents += li.BasePriceCents * qty
	}
	if sum.discountCents < 0 {
		sum.discountCents = 0
	}

	switch {
	case order.NetTotalCents != nil:
		sum.totalCents = *order.NetTotalCents
	case len(order.LineItems) > 0:
		sum.totalCents = max(0, sum.subtotalCents-sum.discountCents)
	default:
		sum.totalCents = paidCents
	}
	if len(order.LineItems) == 0 {
		sum.subtotalCents = sum.totalCents
	}
	return sum
}
