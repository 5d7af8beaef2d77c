package budget

import "time"

// Period is a half-open time range [Start, End) in UTC.
//
// Budgets are enforced over calendar periods rather than rolling ones: the
// daily period starts at UTC midnight and the monthly period on the first
// of the UTC month. Both reset at a fixed instant, which is what the user is
// told in denial messages.
type Period struct {
	Start time.Time
	End   time.Time
}

// Day returns the UTC calendar day containing now.
func Day(now time.Time) Period {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 0, 1)}
}

// Month returns the UTC calendar month containing now.
func Month(now time.Time) Period {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Trailing returns the period covering the last days*24h up to the end of
// the current UTC day. days <= 0 is treated as 1.
func Trailing(now time.Time, days int) Period {
	if days <= 0 {
		days = 1
	}
	now = now.UTC()
	return Period{
		Start: now.Add(-time.Duration(days) * 24 * time.Hour),
		End:   Day(now).End,
	}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// ResetAt is the instant the period ends and spend starts over.
func (p Period) ResetAt() time.Time {
	return p.End
}
