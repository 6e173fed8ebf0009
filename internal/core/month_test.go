package core

import (
	"testing"
	"time"
)

func TestMonthResolverResolve(t *testing.T) {
	now := time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC)
	r := NewMonthResolver(FixedClock{T: now}, time.UTC)

	cases := []struct {
		name  string
		token string
		start time.Time
		end   time.Time
	}{
		{
			name:  "non-leap february",
			token: "2023-02",
			start: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2023, 2, 28, 23, 59, 59, 999_000_000, time.UTC),
		},
		{
			name:  "leap february",
			token: "2024-02",
			start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, time.UTC),
		},
		{
			name:  "december crosses year",
			token: "2024-12",
			start: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 12, 31, 23, 59, 59, 999_000_000, time.UTC),
		},
		{
			name:  "malformed falls back",
			token: "bad",
			start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 6, 30, 23, 59, 59, 999_000_000, time.UTC),
		},
		{
			name:  "empty falls back",
			token: "",
			start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 6, 30, 23, 59, 59, 999_000_000, time.UTC),
		},
		{
			name:  "month out of range falls back",
			token: "2024-13",
			start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 6, 30, 23, 59, 59, 999_000_000, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(tc.token)
			if !got.Start.Equal(tc.start) {
				t.Errorf("start = %v, want %v", got.Start, tc.start)
			}
			if !got.End.Equal(tc.end) {
				t.Errorf("end = %v, want %v", got.End, tc.end)
			}
		})
	}
}

func TestDateRangeContainsIsClosed(t *testing.T) {
	r := MonthRange(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	if !r.Contains(r.Start) || !r.Contains(r.End) {
		t.Fatalf("range must include both bounds")
	}
	if r.Contains(r.End.Add(time.Millisecond)) {
		t.Fatalf("next month's first instant must be excluded")
	}
	if r.Contains(r.Start.Add(-time.Nanosecond)) {
		t.Fatalf("previous month's last instant must be excluded")
	}
}

func TestDateRangePrevious(t *testing.T) {
	r := MonthRange(time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC))
	prev := r.Previous()
	if prev.Key() != "2024-12" {
		t.Fatalf("previous of 2025-01 = %s", prev.Key())
	}
	if r.Previous().Next().Key() != r.Key() {
		t.Fatalf("Previous/Next should round trip")
	}
	// March 31 minus one month must not skip February.
	mar := MonthRange(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	if mar.Previous().Key() != "2025-02" {
		t.Fatalf("previous of 2025-03 = %s", mar.Previous().Key())
	}
}

func TestMonthResolverLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	// 23:00 UTC on Jan 31 is already February in UTC+2.
	now := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	r := NewMonthResolver(FixedClock{T: now}, loc)
	if got := r.Current().Key(); got != "2025-02" {
		t.Fatalf("current month = %s, want 2025-02", got)
	}
	if got := r.Resolve("2025-02").Start; got.Location() != loc {
		t.Fatalf("expected start in resolver location, got %v", got.Location())
	}
}
