package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/repository"
	"fitQuestAPI/internal/stats"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
)

// RecomputeResult describes what a streak recompute rebuilt.
type RecomputeResult struct {
	Streak         streak.View           `json:"streak"`
	EventsReplayed int                   `json:"events_replayed"`
	DeferredEvents int                   `json:"deferred_events"`
	XPCredited     []xp.Transaction      `json:"xp_credited"`
	Unlocks        []UnlockedAchievement `json:"unlocks"`
}

type StreakService struct {
	repo      repository.Repository
	catalog   *achievement.Catalog
	ledger    *XPService
	evaluator *AchievementService
	loc       *time.Location
	now       func() time.Time
}

func NewStreakService(repo repository.Repository, catalog *achievement.Catalog, ledger *XPService, evaluator *AchievementService, loc *time.Location, now func() time.Time) *StreakService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &StreakService{repo: repo, catalog: catalog, ledger: ledger, evaluator: evaluator, loc: loc, now: now}
}

func (s *StreakService) today() time.Time {
	return activity.Today(s.now(), s.loc)
}

// recordActivity is the tracker step of an ingestion. It retains e, marking it
// applied unless its date falls before the streak's last activity, and saves the
// advanced streak. An out-of-order event is kept for Recompute and reported with
// *streak.OutOfOrderEventError; prev is then the unchanged row.
func (s *StreakService) recordActivity(ctx context.Context, tx repository.UserTx, e *activity.Event) (*streak.Streak, streak.Streak, error) {
	prev, err := tx.GetStreak(ctx, e.Type)
	if err != nil {
		return nil, streak.Streak{}, err
	}
	next, advErr := streak.Advance(prev, e.UserID, e.Type, e.OccurredOn)
	var outOfOrder *streak.OutOfOrderEventError
	if advErr != nil && !errors.As(advErr, &outOfOrder) {
		return prev, next, advErr
	}

	e.Applied = advErr == nil
	if err := tx.InsertEvent(ctx, *e); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			return prev, next, err
		}
		return prev, next, fmt.Errorf("failed to record event: %w", err)
	}
	if advErr != nil {
		return prev, next, advErr
	}

	if err := tx.SaveStreak(ctx, next); err != nil {
		return prev, next, fmt.Errorf("failed to save %s streak: %w", e.Type, err)
	}
	return prev, next, nil
}

// IsActiveToday reports whether the user already logged activity of type t today.
func (s *StreakService) IsActiveToday(ctx context.Context, userID uuid.UUID, t activity.Type) (bool, error) {
	today := s.today()
	var active bool
	err := s.repo.ReadUser(ctx, userID, func(r repository.UserReader) error {
		cur, err := r.GetStreak(ctx, t)
		if err != nil {
			return err
		}
		active = cur != nil && activeOn(*cur, today)
		return nil
	})
	return active, err
}

// Recompute rebuilds the streak and the stats of type t from every retained event.
// Deferred events earn their activity XP here. Milestone bonuses are not re-awarded.
func (s *StreakService) Recompute(ctx context.Context, userID uuid.UUID, t activity.Type) (*RecomputeResult, error) {
	if !t.Valid() {
		return nil, &activity.InvalidEventError{Reason: fmt.Sprintf("unknown streak type %q", t)}
	}
	today := s.today()
	res := &RecomputeResult{}

	err := s.repo.InUserTx(ctx, userID, func(tx repository.UserTx) error {
		events, err := tx.ListEvents(ctx, t)
		if err != nil {
			return err
		}
		existing, err := tx.GetStreak(ctx, t)
		if err != nil {
			return err
		}
		res.EventsReplayed = len(events)

		if len(events) == 0 {
			if existing != nil {
				res.Streak = existing.View()
			} else {
				res.Streak = streak.Streak{UserID: userID, Type: t}.View()
			}
			return nil
		}

		dates := make([]time.Time, 0, len(events))
		for _, e := range events {
			dates = append(dates, e.OccurredOn)
		}
		rebuilt := streak.Replay(userID, t, dates, today)
		if existing != nil && existing.LongestCount > rebuilt.LongestCount {
			rebuilt.LongestCount = existing.LongestCount
		}
		if err := tx.SaveStreak(ctx, *rebuilt); err != nil {
			return fmt.Errorf("failed to save %s streak: %w", t, err)
		}
		res.Streak = rebuilt.View()

		userStats, err := tx.GetStats(ctx)
		if err != nil {
			return err
		}
		userStats.UserID = userID
		foldStats(&userStats, t, events)
		if err := tx.SaveStats(ctx, userStats); err != nil {
			return fmt.Errorf("failed to save stats: %w", err)
		}

		var deferred []uuid.UUID
		for _, e := range events {
			if e.Applied {
				continue
			}
			deferred = append(deferred, e.ID)
			if amount := s.catalog.XPFor(t); amount > 0 {
				txn, err := s.ledger.credit(ctx, tx, userID, amount, xp.SourceActivity, e.ID.String(), activityDescription(t))
				if err != nil {
					return err
				}
				res.XPCredited = append(res.XPCredited, txn)
			}
		}
		if len(deferred) > 0 {
			if err := tx.MarkEventsApplied(ctx, deferred); err != nil {
				return fmt.Errorf("failed to mark events applied: %w", err)
			}
		}
		res.DeferredEvents = len(deferred)

		unlocks, err := s.evaluator.evaluate(ctx, tx, userID, nil)
		if err != nil {
			return err
		}
		res.Unlocks = unlocks
		for _, u := range unlocks {
			res.XPCredited = append(res.XPCredited, u.Transaction)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordCredits(res.XPCredited)
	recordUnlocks(userID, res.Unlocks)
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"type":     t,
		"replayed": res.EventsReplayed,
		"deferred": res.DeferredEvents,
		"current":  res.Streak.CurrentCount,
	}).Info("Streak recomputed")
	return res, nil
}

// ResetInactive clears the active-today flag of every streak last active before today.
func (s *StreakService) ResetInactive(ctx context.Context, today time.Time) (int64, error) {
	n, err := s.repo.ResetInactiveStreaks(ctx, activity.ToDate(today))
	if err != nil {
		return 0, fmt.Errorf("failed to reset inactive streaks: %w", err)
	}
	streakResets.Add(float64(n))
	logrus.WithFields(logrus.Fields{
		"date":  activity.FormatDate(today),
		"reset": n,
	}).Info("Inactive streaks reset")
	return n, nil
}

// ResetInactiveNow runs ResetInactive for the current date in the configured timezone.
func (s *StreakService) ResetInactiveNow(ctx context.Context) (int64, error) {
	return s.ResetInactive(ctx, s.today())
}

// foldStats replaces the counters of type t with ones folded from events, which
// must be ordered by date.
func foldStats(st *stats.UserStats, t activity.Type, events []activity.Event) {
	st.Reset(t)
	var last time.Time
	for i, e := range events {
		st.Apply(e, i == 0 || !e.OccurredOn.Equal(last))
		last = e.OccurredOn
	}
}

func activeOn(s streak.Streak, today time.Time) bool {
	return s.IsActiveToday && s.LastActivityDate.Equal(activity.ToDate(today))
}

func activityDescription(t activity.Type) string {
	switch t {
	case activity.TypeNutrition:
		return "Meal logged"
	case activity.TypeExercise:
		return "Workout logged"
	case activity.TypeHydration:
		return "Water logged"
	}
	return "Activity logged"
}
