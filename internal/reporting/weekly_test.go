package reporting

import (
	"testing"
	"time"

	"inbrentory/backend/internal/domain"
)

func TestWeeklyLabelsBySundaysInMonth(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")

	start, end := WeeklyWindow(2025, time.November, la)
	if LocalDateKey(start, la) != "2025-10-27" || LocalDateKey(end, la) != "2025-11-30" {
		t.Fatalf("unexpected window %s..%s", LocalDateKey(start, la), LocalDateKey(end, la))
	}

	daily := FillRange(start, end, GranularityDay, la, nil)
	rows := Weekly(daily, 2025, time.November, la)

	want := []string{"2025-11-02", "2025-11-09", "2025-11-16", "2025-11-23", "2025-11-30"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d weeks, got %d", len(want), len(rows))
	}
	for i, row := range rows {
		if row.Date != want[i] || row.Total != 0 {
			t.Fatalf("unexpected week %d: %+v", i, row)
		}
	}
}

func TestWeeklySumsMondayThroughSunday(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	daily := []domain.PeriodRow{
		{Date: "2025-10-27", StoreTotal: 1, Total: 1, Count: 1},
		{Date: "2025-11-02", MarketplaceTotal: 2.5, Total: 2.5, Count: 1},
		{Date: "2025-11-03", StoreTotal: 4, Total: 4, Count: 1},
	}

	rows := Weekly(daily, 2025, time.November, la)
	if rows[0].StoreTotal != 1 || rows[0].MarketplaceTotal != 2.5 || rows[0].Total != 3.5 || rows[0].Count != 2 {
		t.Fatalf("unexpected first week: %+v", rows[0])
	}
	if rows[1].Total != 4 {
		t.Fatalf("unexpected second week: %+v", rows[1])
	}
}
