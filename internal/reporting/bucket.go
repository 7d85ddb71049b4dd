package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"inbrentory/backend/internal/domain"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(raw))) {
	case "", GranularityDay:
		return GranularityDay, nil
	case GranularityMonth:
		return GranularityMonth, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", raw)
	}
}

// Bucket accumulates net sale amounts in major units for one period key.
type Bucket struct {
	Store       decimal.Decimal
	Marketplace decimal.Decimal
	Count       int
}

func LocalDateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

func LocalMonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(monthLayout) + "-01"
}

func PeriodKey(t time.Time, loc *time.Location, g Granularity) string {
	if g == GranularityMonth {
		return LocalMonthKey(t, loc)
	}
	return LocalDateKey(t, loc)
}

// ParseLocalDate interprets a YYYY-MM-DD string as midnight in loc.
func ParseLocalDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return t, nil
}

// FillRange emits one row per civil day or month from start to end inclusive,
// reading totals from buckets and defaulting missing keys to zero.
func FillRange(start time.Time, end time.Time, g Granularity, loc *time.Location, buckets map[string]Bucket) []domain.PeriodRow {
	cursor := civilStart(start, g, loc)
	endKey := PeriodKey(end, loc, g)

	rows := make([]domain.PeriodRow, 0, 32)
	for {
		key := PeriodKey(cursor, loc, g)
		if key > endKey {
			break
		}
		rows = append(rows, toRow(key, buckets[key]))
		cursor = nextPeriod(cursor, g, loc)
	}
	return rows
}

func civilStart(t time.Time, g Granularity, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	if g == GranularityMonth {
		d = 1
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// nextPeriod steps by calendar fields so DST days of 23 or 25 hours still
// advance exactly one key.
func nextPeriod(t time.Time, g Granularity, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	if g == GranularityMonth {
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

func toRow(key string, b Bucket) domain.PeriodRow {
	store := round2(b.Store)
	marketplace := round2(b.Marketplace)
	return domain.PeriodRow{
		Date:             key,
		StoreTotal:       store.InexactFloat64(),
		MarketplaceTotal: marketplace.InexactFloat64(),
		Total:            round2(store.Add(marketplace)).InexactFloat64(),
		Count:            b.Count,
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
