package stats

import (
	"github.com/google/uuid"

	"fitQuestAPI/internal/activity"
)

// UserStats holds cumulative counters folded from applied activity events.
type UserStats struct {
	UserID           uuid.UUID `json:"-" db:"user_id"`
	MealsLogged      int64     `json:"meals_logged" db:"meals_logged"`
	CaloriesConsumed float64   `json:"calories_consumed" db:"calories_consumed"`
	ExerciseSessions int64     `json:"exercise_sessions" db:"exercise_sessions"`
	ExerciseMinutes  int64     `json:"exercise_minutes" db:"exercise_minutes"`
	CaloriesBurned   float64   `json:"calories_burned" db:"calories_burned"`
	WaterLogs        int64     `json:"water_logs" db:"water_logs"`
	WaterMl          int64     `json:"water_ml" db:"water_ml"`
	NutritionDays    int64     `json:"nutrition_days" db:"nutrition_days"`
	ExerciseDays     int64     `json:"exercise_days" db:"exercise_days"`
	HydrationDays    int64     `json:"hydration_days" db:"hydration_days"`
}

// Apply folds one event into the counters. newDay is true when the event is the
// first of its type on its date.
func (s *UserStats) Apply(e activity.Event, newDay bool) {
	switch p := e.Payload.(type) {
	case activity.Nutrition:
		s.MealsLogged++
		s.CaloriesConsumed += p.Calories
	case activity.Exercise:
		s.ExerciseSessions++
		s.ExerciseMinutes += int64(p.DurationMinutes)
		s.CaloriesBurned += p.CaloriesBurned
	case activity.Hydration:
		s.WaterLogs++
		s.WaterMl += int64(p.AmountMl)
	}
	if d := s.activeDays(e.Type); newDay && d != nil {
		*d++
	}
}

// Reset zeroes every counter that belongs to activity type t.
func (s *UserStats) Reset(t activity.Type) {
	switch t {
	case activity.TypeNutrition:
		s.MealsLogged, s.CaloriesConsumed = 0, 0
	case activity.TypeExercise:
		s.ExerciseSessions, s.ExerciseMinutes, s.CaloriesBurned = 0, 0, 0
	case activity.TypeHydration:
		s.WaterLogs, s.WaterMl = 0, 0
	}
	if d := s.activeDays(t); d != nil {
		*d = 0
	}
}

func (s *UserStats) ActiveDays(t activity.Type) int64 {
	if d := s.activeDays(t); d != nil {
		return *d
	}
	return 0
}

func (s *UserStats) activeDays(t activity.Type) *int64 {
	switch t {
	case activity.TypeNutrition:
		return &s.NutritionDays
	case activity.TypeExercise:
		return &s.ExerciseDays
	case activity.TypeHydration:
		return &s.HydrationDays
	}
	return nil
}
