package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"inbrentory/backend/internal/domain"
)

// Sundays returns the local midnight of every Sunday in the given month.
func Sundays(year int, month time.Month, loc *time.Location) []time.Time {
	out := make([]time.Time, 0, 5)
	for d := time.Date(year, month, 1, 0, 0, 0, 0, loc); d.Month() == month; d = time.Date(year, month, d.Day()+1, 0, 0, 0, 0, loc) {
		if d.Weekday() == time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

// WeeklyWindow is the span of days the weekly roll-up for a month reads: the
// Monday before the month's first Sunday through its last Sunday.
func WeeklyWindow(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	sundays := Sundays(year, month, loc)
	first, last := sundays[0], sundays[len(sundays)-1]
	y, m, d := first.Date()
	return time.Date(y, m, d-6, 0, 0, 0, 0, loc), last
}

// Weekly folds daily rows into Monday..Sunday weeks, one row per Sunday in
// the month, labeled by that Sunday.
func Weekly(daily []domain.PeriodRow, year int, month time.Month, loc *time.Location) []domain.PeriodRow {
	byDate := make(map[string]domain.PeriodRow, len(daily))
	for _, row := range daily {
		byDate[row.Date] = row
	}

	sundays := Sundays(year, month, loc)
	rows := make([]domain.PeriodRow, 0, len(sundays))
	for _, sunday := range sundays {
		var b Bucket
		y, m, d := sunday.Date()
		for offset := 6; offset >= 0; offset-- {
			day := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
			row, ok := byDate[LocalDateKey(day, loc)]
			if !ok {
				continue
			}
			b.Store = b.Store.Add(decimal.NewFromFloat(row.StoreTotal))
			b.Marketplace = b.Marketplace.Add(decimal.NewFromFloat(row.MarketplaceTotal))
			b.Count += row.Count
		}
		rows = append(rows, toRow(LocalDateKey(sunday, loc), b))
	}
	return rows
}
