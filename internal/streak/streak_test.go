package streak

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitQuestAPI/internal/activity"
)

var user = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

func day(n int) time.Time {
	return time.Date(2026, 10, n, 0, 0, 0, 0, time.UTC)
}

func TestAdvanceFirstActivity(t *testing.T) {
	s, err := Advance(nil, user, activity.TypeHydration, day(1))
	require.NoError(t, err)

	assert.Equal(t, 1, s.CurrentCount)
	assert.Equal(t, 1, s.LongestCount)
	assert.Equal(t, day(1), s.LastActivityDate)
	assert.True(t, s.IsActiveToday)
}

func TestAdvanceSameDayIsIdempotent(t *testing.T) {
	s, err := Advance(nil, user, activity.TypeNutrition, day(1))
	require.NoError(t, err)
	s.IsActiveToday = false

	again, err := Advance(&s, user, activity.TypeNutrition, day(1).Add(20*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, s.CurrentCount, again.CurrentCount)
	assert.Equal(t, s.LongestCount, again.LongestCount)
	assert.True(t, again.IsActiveToday)
}

func TestAdvanceWaterScenario(t *testing.T) {
	// water on days 1, 2 and 4
	var cur *Streak
	for _, d := range []int{1, 2, 4} {
		next, err := Advance(cur, user, activity.TypeHydration, day(d))
		require.NoError(t, err)
		cur = &next

		switch d {
		case 2:
			assert.Equal(t, 2, cur.CurrentCount)
			assert.Equal(t, 2, cur.LongestCount)
		case 4:
			assert.Equal(t, 1, cur.CurrentCount, "gap of two days resets")
			assert.Equal(t, 2, cur.LongestCount)
		}
	}
}

func TestAdvanceOutOfOrder(t *testing.T) {
	s, err := Advance(nil, user, activity.TypeExercise, day(5))
	require.NoError(t, err)

	got, err := Advance(&s, user, activity.TypeExercise, day(3))
	var ooo *OutOfOrderEventError
	require.True(t, errors.As(err, &ooo))
	assert.Equal(t, day(3), ooo.Date)
	assert.Equal(t, day(5), ooo.LastActivityDate)
	assert.Equal(t, s, got, "rejected event leaves the streak unchanged")
}

func TestLongestNeverBelowCurrent(t *testing.T) {
	var cur *Streak
	days := []int{1, 2, 3, 5, 6, 7, 8, 9, 12, 13}
	for _, d := range days {
		next, err := Advance(cur, user, activity.TypeNutrition, day(d))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next.LongestCount, next.CurrentCount)
		cur = &next
	}
	assert.Equal(t, 2, cur.CurrentCount)
	assert.Equal(t, 5, cur.LongestCount)
}

func TestReplay(t *testing.T) {
	assert.Nil(t, Replay(user, activity.TypeHydration, nil, day(10)))

	dates := []time.Time{day(4), day(1), day(2), day(2), day(5)}
	s := Replay(user, activity.TypeHydration, dates, day(10))
	require.NotNil(t, s)
	assert.Equal(t, 2, s.CurrentCount)
	assert.Equal(t, 2, s.LongestCount)
	assert.Equal(t, day(5), s.LastActivityDate)
	assert.False(t, s.IsActiveToday)

	s = Replay(user, activity.TypeHydration, dates, day(5))
	assert.True(t, s.IsActiveToday)
}

func TestMilestoneReached(t *testing.T) {
	six := Streak{CurrentCount: 6}
	seven := Streak{CurrentCount: 7}

	assert.True(t, MilestoneReached(&six, seven, 7))
	assert.False(t, MilestoneReached(&seven, seven, 7), "same-day repeat does not re-award")
	assert.False(t, MilestoneReached(&six, seven, 0))
	assert.True(t, MilestoneReached(nil, Streak{CurrentCount: 1}, 1))
	assert.False(t, MilestoneReached(nil, Streak{CurrentCount: 1}, 7))
}

func TestView(t *testing.T) {
	s := Streak{Type: activity.TypeExercise, CurrentCount: 3, LongestCount: 8, LastActivityDate: day(9), IsActiveToday: true}
	v := s.View()
	assert.Equal(t, "2026-10-09", v.LastActivity)
	assert.Equal(t, 8, v.LongestCount)
}
