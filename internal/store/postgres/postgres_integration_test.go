package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("INBRENTORY_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set INBRENTORY_TEST_DATABASE_URL to run postgres integration test")
	}
	if err := Migrate(databaseURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestConcurrentCreateSaleSamePaymentCreatesOne(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	paymentID := fmt.Sprintf("pay-it-%d", time.Now().UnixNano())

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE external_payment_id = $1`, paymentID)
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateSale(ctx, domain.Sale{PaymentID: paymentID, SubtotalCents: 1000, TotalCents: 1000})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, store.ErrDuplicateSale):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || duplicates != 7 {
		t.Fatalf("expected 1 created and 7 duplicates, got %d and %d", created, duplicates)
	}
}

func TestLinkDecrementAndDeleteSale(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	itemID := fmt.Sprintf("item-it-%d", stamp)
	paymentID := fmt.Sprintf("pay-link-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, itemID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE external_payment_id = $1`, paymentID)
	})

	if _, err := s.CreateInventoryItem(ctx, domain.InventoryItem{ID: itemID, Name: "Wool coat", ListPriceCents: 8000, Quantity: 1}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	sale, err := s.CreateSale(ctx, domain.Sale{PaymentID: paymentID, SubtotalCents: 8000, TotalCents: 8000})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	soldAt := time.Date(2025, 11, 2, 18, 0, 0, 0, time.UTC)
	linked, err := s.LinkItemToSale(ctx, domain.SaleLink{ItemID: itemID, SaleID: sale.ID, SalePriceCents: 8000, SoldAt: soldAt, SoldOnMarketplace: true})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if linked.SaleID != sale.ID || linked.SoldAt == nil || !linked.SoldAt.Equal(soldAt) {
		t.Fatalf("unexpected linked item: %+v", linked)
	}

	item, err := s.DecrementItemQuantity(ctx, itemID, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if item.Quantity != 0 {
		t.Fatalf("expected quantity floored at 0, got %d", item.Quantity)
	}

	if err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	detached, err := s.GetInventoryItem(ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if detached.SaleID != "" || detached.SoldAt != nil || detached.SoldOnMarketplace {
		t.Fatalf("expected detached item, got %+v", detached)
	}
}

func TestAttachCheckoutIDOnlyFillsEmpty(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	suffix := time.Now().UnixNano()
	paymentID := fmt.Sprintf("pay-chk-%d", suffix)
	checkoutID := fmt.Sprintf("chk-%d", suffix)

	sale, err := s.CreateSale(ctx, domain.Sale{PaymentID: paymentID, TotalCents: 1000, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	t.Cleanup(func() {
		_ = s.DeleteSale(ctx, sale.ID)
	})

	updated, err := s.AttachCheckoutID(ctx, sale.ID, checkoutID)
	if err != nil || updated.CheckoutID != checkoutID || updated.TotalCents != 1000 {
		t.Fatalf("unexpected attach result %+v %v", updated, err)
	}
	if found, err := s.FindSaleByCheckoutID(ctx, checkoutID); err != nil || found.ID != sale.ID {
		t.Fatalf("expected sale by checkout, got %+v %v", found, err)
	}
	if _, err := s.AttachCheckoutID(ctx, sale.ID, checkoutID+"-other"); !errors.Is(err, store.ErrCheckoutConflict) {
		t.Fatalf("expected ErrCheckoutConflict, got %v", err)
	}
	if _, err := s.AttachCheckoutID(ctx, "sale_missing", checkoutID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
