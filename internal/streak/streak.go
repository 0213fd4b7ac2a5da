package streak

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"fitQuestAPI/internal/activity"
)

type Streak struct {
	UserID           uuid.UUID     `json:"-" db:"user_id"`
	Type             activity.Type `json:"type" db:"streak_type"`
	CurrentCount     int           `json:"current_count" db:"current_count"`
	LongestCount     int           `json:"longest_count" db:"longest_count"`
	LastActivityDate time.Time     `json:"-" db:"last_activity_date"`
	IsActiveToday    bool          `json:"is_active_today" db:"is_active_today"`
	UpdatedAt        time.Time     `json:"-" db:"updated_at"`
}

// View is the wire shape served to presentation layers.
type View struct {
	Type          activity.Type `json:"type"`
	CurrentCount  int           `json:"current_count"`
	LongestCount  int           `json:"longest_count"`
	LastActivity  string        `json:"last_activity"`
	IsActiveToday bool          `json:"is_active_today"`
}

func (s Streak) View() View {
	return View{
		Type:          s.Type,
		CurrentCount:  s.CurrentCount,
		LongestCount:  s.LongestCount,
		LastActivity:  activity.FormatDate(s.LastActivityDate),
		IsActiveToday: s.IsActiveToday,
	}
}

// OutOfOrderEventError is returned for an event dated before the streak's last activity.
// Callers that need the backdated event counted must run an explicit recompute.
type OutOfOrderEventError struct {
	Type             activity.Type
	Date             time.Time
	LastActivityDate time.Time
}

func (e *OutOfOrderEventError) Error() string {
	return fmt.Sprintf("%s event dated %s is before last activity %s",
		e.Type, activity.FormatDate(e.Date), activity.FormatDate(e.LastActivityDate))
}

// Advance applies one day of activity to prev and returns the new streak.
// prev may be nil when the user has no streak of this type yet.
func Advance(prev *Streak, userID uuid.UUID, t activity.Type, date time.Time) (Streak, error) {
	date = activity.ToDate(date)
	if prev == nil {
		return Streak{
			UserID:           userID,
			Type:             t,
			CurrentCount:     1,
			LongestCount:     1,
			LastActivityDate: date,
			IsActiveToday:    true,
		}, nil
	}

	next := *prev
	gap := activity.DaysBetween(prev.LastActivityDate, date)
	switch {
	case gap < 0:
		return *prev, &OutOfOrderEventError{Type: t, Date: date, LastActivityDate: prev.LastActivityDate}
	case gap == 0:
		next.IsActiveToday = true
	case gap == 1:
		next.CurrentCount++
		if next.CurrentCount > next.LongestCount {
			next.LongestCount = next.CurrentCount
		}
		next.LastActivityDate = date
		next.IsActiveToday = true
	default:
		next.CurrentCount = 1
		next.LastActivityDate = date
		next.IsActiveToday = true
	}
	return next, nil
}

// Replay rebuilds a streak from activity dates in any order. It returns nil for no dates.
func Replay(userID uuid.UUID, t activity.Type, dates []time.Time, today time.Time) *Streak {
	if len(dates) == 0 {
		return nil
	}
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	slices.SortFunc(sorted, time.Time.Compare)

	var cur *Streak
	for _, d := range sorted {
		next, err := Advance(cur, userID, t, d)
		if err != nil {
			// sorted input never goes backwards
			continue
		}
		cur = &next
	}
	cur.IsActiveToday = cur.LastActivityDate.Equal(activity.ToDate(today))
	return cur
}

// MilestoneReached reports whether an advance from prev to next landed on a bonus day.
func MilestoneReached(prev *Streak, next Streak, everyDays int) bool {
	if everyDays <= 0 {
		return false
	}
	if prev != nil && prev.CurrentCount == next.CurrentCount {
		return false
	}
	return next.CurrentCount > 0 && next.CurrentCount%everyDays == 0
}
