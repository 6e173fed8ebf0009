package core

import (
	"regexp"
	"time"
)

// Clock supplies "now" for month resolution, rollover and due-date alerts.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// DateRange is a closed interval: both Start and End are inclusive.
type DateRange struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// Contains reports whether Start <= t <= End.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Key returns the YYYY-MM token of the month the range starts in.
func (r DateRange) Key() string {
	return r.Start.Format(monthLayout)
}

// Previous returns the calendar month before r.
func (r DateRange) Previous() DateRange {
	return MonthRange(r.Start.AddDate(0, -1, 0))
}

// Next returns the calendar month after r.
func (r DateRange) Next() DateRange {
	return MonthRange(r.Start.AddDate(0, 1, 0))
}

// MonthRange returns the range from the first instant of t's month to
// 23:59:59.999 on its last day, in t's location.
func MonthRange(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return DateRange{Start: start, End: end}
}

const monthLayout = "2006-01"

var monthToken = regexp.MustCompile(`^\d{4}-\d{2}$`)

// MonthResolver maps YYYY-MM tokens onto date ranges.
type MonthResolver struct {
	clock Clock
	loc   *time.Location
}

func NewMonthResolver(clock Clock, loc *time.Location) *MonthResolver {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MonthResolver{clock: clock, loc: loc}
}

// Resolve never fails: an empty or malformed token yields the current month.
func (m *MonthResolver) Resolve(token string) DateRange {
	if r, ok := m.Parse(token); ok {
		return r
	}
	return m.Current()
}

// Parse is Resolve without the fallback.
func (m *MonthResolver) Parse(token string) (DateRange, bool) {
	if !monthToken.MatchString(token) {
		return DateRange{}, false
	}
	t, err := time.ParseInLocation(monthLayout, token, m.loc)
	if err != nil {
		return DateRange{}, false
	}
	return MonthRange(t), true
}

func (m *MonthResolver) Current() DateRange {
	return MonthRange(m.Now())
}

// For returns the month containing t, evaluated in the resolver's location.
func (m *MonthResolver) For(t time.Time) DateRange {
	return MonthRange(t.In(m.loc))
}

func (m *MonthResolver) Now() time.Time {
	return m.clock.Now().In(m.loc)
}

func (m *MonthResolver) Location() *time.Location {
	return m.loc
}
