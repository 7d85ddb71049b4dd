package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inbrentory/backend/internal/gateway"
	"inbrentory/backend/internal/reporting"
	"inbrentory/backend/internal/store"
)

func TestDailySalesDiscountScenario(t *testing.T) {
	svc, _, gw := newTestService(t)
	ctx := context.Background()

	// 30 in store and 70 on the marketplace with 20 store credit.
	at := time.Date(2025, 11, 4, 19, 0, 0, 0, time.UTC)
	total := int64(8000)
	gw.payments["pay-mix"] = &gateway.Payment{ID: "pay-mix", Status: gateway.PaymentStatusCompleted, OrderID: "ord-mix", CreatedAt: &at}
	gw.orders["ord-mix"] = &gateway.Order{ID: "ord-mix", NetTotalCents: &total, LineItems: []gateway.LineItem{
		{Quantity: 1, BasePriceCents: 7000, Note: "itemId:item-1"},
		{Quantity: 1, BasePriceCents: -2000, Note: gateway.StoreCreditNote},
	}}
	raw, sigs := signed(paymentEvent("pay-mix"))
	res, err := svc.HandleWebhook(ctx, raw, sigs)
	if err != nil || res.Outcome != OutcomeRecorded {
		t.Fatalf("record marketplace sale: %+v %v", res, err)
	}

	// Move the store item onto the same sale.
	sale, _ := svc.GetSale(ctx, res.SaleID)
	if _, err := svc.repo.LinkItemToSale(ctx, linkFor("item-2", sale.ID, 3000, at)); err != nil {
		t.Fatalf("link store item: %v", err)
	}

	report, err := svc.DailySales(ctx, "2025-11-01", "2025-11-07", "")
	if err != nil {
		t.Fatalf("daily sales: %v", err)
	}
	if report.Timezone != "America/Los_Angeles" || len(report.Rows) != 7 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, row := range report.Rows {
		if row.Date == "2025-11-04" {
			if row.StoreTotal != 24 || row.MarketplaceTotal != 56 || row.Total != 80 {
				t.Fatalf("unexpected row: %+v", row)
			}
		} else if row.Total != 0 {
			t.Fatalf("expected empty row for %s, got %+v", row.Date, row)
		}
	}
}

func TestSalesInRangeUsesLocalBoundaries(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// 23:30 local on Nov 7 is Nov 8 UTC; it must fall inside an end date of Nov 7.
	late := time.Date(2025, 11, 8, 7, 30, 0, 0, time.UTC)
	if _, err := svc.RecordSale(ctx, []string{"item-2"}, 0, &late); err != nil {
		t.Fatalf("record: %v", err)
	}
	// 23:30 local on Oct 31 must be excluded from a range starting Nov 1.
	early := time.Date(2025, 11, 1, 6, 30, 0, 0, time.UTC)
	if _, err := svc.RecordSale(ctx, []string{"item-3"}, 0, &early); err != nil {
		t.Fatalf("record: %v", err)
	}

	report, err := svc.SalesInRange(ctx, "2025-11-01", "2025-11-07", "America/Los_Angeles", reporting.GranularityDay)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	var sum float64
	for _, row := range report.Rows {
		sum += row.Total
	}
	if sum != 40 || report.Rows[6].StoreTotal != 40 {
		t.Fatalf("expected only the Nov 7 sale, got %+v", report.Rows)
	}
}

func TestWeeklySalesNovember(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	// Tuesday Oct 28 local belongs to the week ending Sunday Nov 2.
	at := time.Date(2025, 10, 28, 19, 0, 0, 0, time.UTC)
	if _, err := svc.RecordSale(ctx, []string{"item-3"}, 0, &at); err != nil {
		t.Fatalf("record: %v", err)
	}

	report, err := svc.WeeklySales(ctx, 2025, 11, "")
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	want := []string{"2025-11-02", "2025-11-09", "2025-11-16", "2025-11-23", "2025-11-30"}
	if len(report.Rows) != len(want) {
		t.Fatalf("expected %d weeks, got %+v", len(want), report.Rows)
	}
	for i, row := range report.Rows {
		if row.Date != want[i] {
			t.Fatalf("week %d: expected %s, got %s", i, want[i], row.Date)
		}
	}
	if report.Rows[0].StoreTotal != 38 {
		t.Fatalf("expected first week to include Oct 28, got %+v", report.Rows[0])
	}
}

func TestMonthlySalesHasTwelveRows(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 19, 0, 0, 0, time.UTC)
	if _, err := svc.RecordSale(ctx, []string{"item-4"}, 500, &at); err != nil {
		t.Fatalf("record: %v", err)
	}

	report, err := svc.MonthlySales(ctx, 2025, "")
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(report.Rows) != 12 || report.Rows[0].Date != "2025-01-01" || report.Rows[11].Date != "2025-12-01" {
		t.Fatalf("unexpected months: %+v", report.Rows)
	}
	if report.Rows[5].StoreTotal != 60 || report.Rows[5].Count != 1 {
		t.Fatalf("unexpected june row: %+v", report.Rows[5])
	}
}

func TestReportsRejectBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.DailySales(ctx, "2025-13-01", "2025-11-07", ""); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected bad date rejected, got %v", err)
	}
	if _, err := svc.DailySales(ctx, "2025-11-07", "2025-11-01", ""); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected reversed range rejected, got %v", err)
	}
	if _, err := svc.DailySales(ctx, "2025-11-01", "2025-11-07", "Nowhere/City"); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected unknown timezone rejected, got %v", err)
	}
	if _, err := svc.WeeklySales(ctx, 2025, 13, ""); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected bad month rejected, got %v", err)
	}
}

func TestSalesInRangeCapsSpan(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SalesInRange(ctx, "0001-01-01", "9999-12-31", "", reporting.GranularityDay); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected huge day range rejected, got %v", err)
	}
	if _, err := svc.SalesInRange(ctx, "2024-01-01", "2024-12-31", "", reporting.GranularityDay); err != nil {
		t.Fatalf("expected full leap year accepted, got %v", err)
	}
	if _, err := svc.SalesInRange(ctx, "2024-01-01", "2025-01-01", "", reporting.GranularityDay); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected 367 days rejected, got %v", err)
	}
	if _, err := svc.SalesInRange(ctx, "2016-01-01", "2025-12-31", "", reporting.GranularityMonth); err != nil {
		t.Fatalf("expected 120 months accepted, got %v", err)
	}
	if _, err := svc.SalesInRange(ctx, "2016-01-01", "2026-01-01", "", reporting.GranularityMonth); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected 121 months rejected, got %v", err)
	}
}
