package achievement

import (
	"time"

	"github.com/google/uuid"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/stats"
	"fitQuestAPI/internal/streak"
)

type CriteriaType string

const (
	CriteriaMealsLogged      CriteriaType = "meals_logged"
	CriteriaCaloriesConsumed CriteriaType = "calories_consumed"
	CriteriaExerciseSessions CriteriaType = "exercise_sessions"
	CriteriaExerciseMinutes  CriteriaType = "exercise_minutes"
	CriteriaCaloriesBurned   CriteriaType = "calories_burned"
	CriteriaWaterLogs        CriteriaType = "water_logs"
	CriteriaWaterMl          CriteriaType = "water_ml"
	CriteriaActiveDays       CriteriaType = "active_days"
	CriteriaCurrentStreak    CriteriaType = "current_streak"
	CriteriaLongestStreak    CriteriaType = "longest_streak"
)

// needsStreakType reports whether the criteria is measured per activity type.
func (c CriteriaType) needsStreakType() bool {
	switch c {
	case CriteriaActiveDays, CriteriaCurrentStreak, CriteriaLongestStreak:
		return true
	}
	return false
}

func (c CriteriaType) valid() bool {
	switch c {
	case CriteriaMealsLogged, CriteriaCaloriesConsumed, CriteriaExerciseSessions, CriteriaExerciseMinutes,
		CriteriaCaloriesBurned, CriteriaWaterLogs, CriteriaWaterMl:
		return true
	}
	return c.needsStreakType()
}

type Category string

// Achievement is a catalog definition. Its predicate reads cumulative stats and streaks only,
// never other achievements.
type Achievement struct {
	Key           string        `json:"key" toml:"key"`
	Name          string        `json:"name" toml:"name"`
	Description   string        `json:"description" toml:"description"`
	Icon          string        `json:"icon" toml:"icon"`
	Category      Category      `json:"category" toml:"category"`
	Difficulty    int           `json:"difficulty" toml:"difficulty"`
	XPReward      int           `json:"xp_reward" toml:"xp_reward"`
	CriteriaType  CriteriaType  `json:"criteria_type" toml:"criteria_type"`
	CriteriaValue float64       `json:"criteria_value" toml:"criteria_value"`
	StreakType    activity.Type `json:"streak_type,omitempty" toml:"streak_type"`
}

// Progress returns the completion percentage in [0,100].
func (a Achievement) Progress(s stats.UserStats, streaks map[activity.Type]streak.Streak) int {
	if a.CriteriaValue <= 0 {
		return 0
	}
	pct := int(a.measure(s, streaks) * 100 / a.CriteriaValue)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

func (a Achievement) measure(s stats.UserStats, streaks map[activity.Type]streak.Streak) float64 {
	switch a.CriteriaType {
	case CriteriaMealsLogged:
		return float64(s.MealsLogged)
	case CriteriaCaloriesConsumed:
		return s.CaloriesConsumed
	case CriteriaExerciseSessions:
		return float64(s.ExerciseSessions)
	case CriteriaExerciseMinutes:
		return float64(s.ExerciseMinutes)
	case CriteriaCaloriesBurned:
		return s.CaloriesBurned
	case CriteriaWaterLogs:
		return float64(s.WaterLogs)
	case CriteriaWaterMl:
		return float64(s.WaterMl)
	case CriteriaActiveDays:
		return float64(s.ActiveDays(a.StreakType))
	case CriteriaCurrentStreak:
		return float64(streaks[a.StreakType].CurrentCount)
	case CriteriaLongestStreak:
		return float64(streaks[a.StreakType].LongestCount)
	}
	return 0
}

// Unlock is the per-user state of one achievement. A missing row means locked with no progress.
type Unlock struct {
	UserID          uuid.UUID  `json:"-" db:"user_id"`
	AchievementKey  string     `json:"achievement_key" db:"achievement_key"`
	ProgressPercent int        `json:"progress" db:"progress_percent"`
	UnlockedAt      *time.Time `json:"unlocked_at,omitempty" db:"unlocked_at"`
	UnlockedVia     *uuid.UUID `json:"unlocked_via,omitempty" db:"unlocked_via"`
}

func (u Unlock) Unlocked() bool {
	return u.UnlockedAt != nil
}

type AchievementWithStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	Progress   int        `json:"progress"`
}
