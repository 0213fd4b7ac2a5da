package activity

import "time"

const DateLayout = "2006-01-02"

// ToDate strips the clock from t, keeping its calendar date as UTC midnight.
func ToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current civil date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return ToDate(now.In(loc))
}

// DaysBetween returns the whole calendar days from a to b. Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(ToDate(b).Sub(ToDate(a)).Hours() / 24)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return ToDate(t), nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
