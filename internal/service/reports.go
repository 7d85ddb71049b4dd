package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/reporting"
	"inbrentory/backend/internal/store"
)

const (
	maxDaySpan   = 366
	maxMonthSpan = 120
)

func (s *Service) DailySales(ctx context.Context, start string, end string, tz string) (domain.SalesReport, error) {
	return s.SalesInRange(ctx, start, end, tz, reporting.GranularityDay)
}

// SalesInRange aggregates sales between two local dates, both inclusive.
func (s *Service) SalesInRange(ctx context.Context, start string, end string, tz string, g reporting.Granularity) (domain.SalesReport, error) {
	loc, err := s.location(tz)
	if err != nil {
		return domain.SalesReport{}, err
	}
	from, err := reporting.ParseLocalDate(start, loc)
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("%w: %v", store.ErrInvalidRequest, err)
	}
	to, err := reporting.ParseLocalDate(end, loc)
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("%w: %v", store.ErrInvalidRequest, err)
	}
	if to.Before(from) {
		return domain.SalesReport{}, store.ErrInvalidRequest
	}
	if !withinSpan(from, to, g) {
		return domain.SalesReport{}, fmt.Errorf("%w: range exceeds %d days or %d months", store.ErrInvalidRequest, maxDaySpan, maxMonthSpan)
	}

	rows, err := s.aggregate(ctx, from, to, loc, g)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return domain.SalesReport{Timezone: loc.String(), Granularity: string(g), Rows: rows}, nil
}

// WeeklySales returns one row per Sunday in the month, each covering the
// Monday through that Sunday.
func (s *Service) WeeklySales(ctx context.Context, year int, month int, tz string) (domain.SalesReport, error) {
	loc, err := s.location(tz)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if year < 1 || month < 1 || month > 12 {
		return domain.SalesReport{}, store.ErrInvalidRequest
	}

	from, to := reporting.WeeklyWindow(year, time.Month(month), loc)
	daily, err := s.aggregate(ctx, from, to, loc, reporting.GranularityDay)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return domain.SalesReport{
		Timezone:    loc.String(),
		Granularity: "week",
		Rows:        reporting.Weekly(daily, year, time.Month(month), loc),
	}, nil
}

func (s *Service) MonthlySales(ctx context.Context, year int, tz string) (domain.SalesReport, error) {
	loc, err := s.location(tz)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if year < 1 {
		return domain.SalesReport{}, store.ErrInvalidRequest
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, loc)
	rows, err := s.aggregate(ctx, from, to, loc, reporting.GranularityMonth)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return domain.SalesReport{Timezone: loc.String(), Granularity: string(reporting.GranularityMonth), Rows: rows}, nil
}

// aggregate reads sales from local midnight of from until local midnight of
// the day after to.
func (s *Service) aggregate(ctx context.Context, from time.Time, to time.Time, loc *time.Location, g reporting.Granularity) ([]domain.PeriodRow, error) {
	y, m, d := to.In(loc).Date()
	windowEnd := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	items, err := s.repo.ListSoldItems(ctx, from.UTC(), windowEnd.UTC())
	if err != nil {
		return nil, err
	}
	return reporting.Aggregate(items, from, to, loc, g), nil
}

func (s *Service) location(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return s.reportLoc, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", store.ErrInvalidRequest, tz)
	}
	return loc, nil
}

// withinSpan bounds the number of rows a range report can produce. Both ends
// are inclusive.
func withinSpan(from time.Time, to time.Time, g reporting.Granularity) bool {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	if g == reporting.GranularityMonth {
		return (ty-fy)*12+int(tm-fm)+1 <= maxMonthSpan
	}
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).Unix()
	return (end-start)/86400+1 <= maxDaySpan
}
