package reporting

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	return loc
}

func keys(t *testing.T, start, end time.Time, g Granularity, loc *time.Location) []string {
	t.Helper()
	rows := FillRange(start, end, g, loc, nil)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Date
	}
	return out
}

func TestFillRangeAcrossFallBackIsContiguous(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	start, _ := ParseLocalDate("2025-10-27", la)
	end, _ := ParseLocalDate("2025-11-02", la)

	got := keys(t, start, end, GranularityDay, la)
	want := []string{"2025-10-27", "2025-10-28", "2025-10-29", "2025-10-30", "2025-10-31", "2025-11-01", "2025-11-02"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFillRangeOverTwentyFiveHourDay(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	start, _ := ParseLocalDate("2025-11-02", la)
	end, _ := ParseLocalDate("2025-11-03", la)

	got := keys(t, start, end, GranularityDay, la)
	if len(got) != 2 || got[0] != "2025-11-02" || got[1] != "2025-11-03" {
		t.Fatalf("expected two distinct days, got %v", got)
	}
}

func TestFillRangeOverSpringForward(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	start, _ := ParseLocalDate("2025-03-08", la)
	end, _ := ParseLocalDate("2025-03-10", la)

	got := keys(t, start, end, GranularityDay, la)
	if len(got) != 3 || got[1] != "2025-03-09" {
		t.Fatalf("expected three contiguous days, got %v", got)
	}
}

func TestFillRangeMonths(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	start, _ := ParseLocalDate("2025-01-01", la)
	end, _ := ParseLocalDate("2025-12-01", la)

	got := keys(t, start, end, GranularityMonth, la)
	if len(got) != 12 || got[0] != "2025-01-01" || got[11] != "2025-12-01" {
		t.Fatalf("unexpected months: %v", got)
	}
}

func TestParseLocalDateRoundTrips(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	for _, d := range []string{"2025-03-09", "2025-03-10", "2025-11-02", "2025-11-03", "2025-11-17"} {
		instant, err := ParseLocalDate(d, la)
		if err != nil {
			t.Fatalf("parse %s: %v", d, err)
		}
		if got := LocalDateKey(instant, la); got != d {
			t.Fatalf("expected %s, got %s", d, got)
		}
	}
}

func TestParseLocalDateIsNotUTCMidnight(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	instant, _ := ParseLocalDate("2025-11-17", la)
	want := time.Date(2025, 11, 17, 8, 0, 0, 0, time.UTC)
	if !instant.Equal(want) {
		t.Fatalf("expected %s, got %s", want, instant.UTC())
	}
}

func TestLocalKeysUseTargetZone(t *testing.T) {
	la := mustLoad(t, "America/Los_Angeles")
	instant := time.Date(2025, 12, 1, 3, 0, 0, 0, time.UTC)
	if got := LocalDateKey(instant, la); got != "2025-11-30" {
		t.Fatalf("expected previous local day, got %s", got)
	}
	if got := LocalMonthKey(instant, la); got != "2025-11-01" {
		t.Fatalf("expected previous local month, got %s", got)
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity(""); err != nil || g != GranularityDay {
		t.Fatalf("expected default day, got %q %v", g, err)
	}
	if g, err := ParseGranularity("Month"); err != nil || g != GranularityMonth {
		t.Fatalf("expected month, got %q %v", g, err)
	}
	if _, err := ParseGranularity("week"); err == nil {
		t.Fatalf("expected error for unknown granularity")
	}
}
