package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/store"
)

// RecordSale records an in-person sale without the payment gateway.
func (s *Service) RecordSale(ctx context.Context, itemIDs []string, discountCents int64, createdAt *time.Time) (domain.SaleResponse, error) {
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return domain.SaleResponse{}, store.ErrInvalidRequest
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 || discountCents < 0 {
		return domain.SaleResponse{}, store.ErrInvalidRequest
	}

	var subtotal int64
	for _, id := range ids {
		item, err := s.repo.GetInventoryItem(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.SaleResponse{}, store.ErrInvalidRequest
			}
			return domain.SaleResponse{}, err
		}
		if item.SaleID != "" {
			return domain.SaleResponse{}, store.ErrItemAlreadySold
		}
		subtotal += item.EffectivePriceCents()
	}

	at := s.now().UTC()
	if createdAt != nil && !createdAt.IsZero() {
		at = createdAt.UTC()
	}

	sale, items, err := s.repo.RecordDirectSale(ctx, domain.Sale{
		SubtotalCents: subtotal,
		TotalCents:    max(0, subtotal-discountCents),
		DiscountCents: discountCents,
		PaymentStatus: domain.PaymentStatusCompleted,
		CreatedAt:     at,
	}, ids)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleResponse{}, store.ErrInvalidRequest
		}
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{Sale: *sale, Items: items}, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRequest
	}
	return s.repo.DeleteSale(ctx, id)
}
