package services

import (
	"context"
	"time"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/repository"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type ProgressView struct {
	Progress               xp.Snapshot                                                  `json:"progress"`
	AchievementsByCategory map[achievement.Category][]achievement.AchievementWithStatus `json:"achievements_by_category"`
	Streaks                []streak.View                                                `json:"streaks"`
	RecentXP               []xp.Transaction                                             `json:"recent_xp"`
}

// ProgressionService is the read-only facade used by presentation layers.
type ProgressionService struct {
	repo         repository.Repository
	ledger       *XPService
	achievements *AchievementService
	loc          *time.Location
	now          func() time.Time
}

func NewProgressionService(repo repository.Repository, ledger *XPService, achievements *AchievementService, loc *time.Location, now func() time.Time) *ProgressionService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressionService{repo: repo, ledger: ledger, achievements: achievements, loc: loc, now: now}
}

// ClampLimit maps a requested history size onto [1, MaxHistoryLimit], defaulting
// non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

// GetProgressView reads everything a profile screen needs from one snapshot.
func (s *ProgressionService) GetProgressView(ctx context.Context, userID string, recentLimit int) (*ProgressView, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	today := activity.Today(s.now(), s.loc)

	view := &ProgressView{}
	err = s.repo.ReadUser(ctx, id, func(r repository.UserReader) error {
		total, err := r.TotalXP(ctx)
		if err != nil {
			return err
		}
		view.Progress = s.ledger.Snapshot(total)

		userStats, err := r.GetStats(ctx)
		if err != nil {
			return err
		}
		streaks, err := streakMap(ctx, r)
		if err != nil {
			return err
		}
		unlocks, err := r.ListUnlocks(ctx)
		if err != nil {
			return err
		}
		view.AchievementsByCategory = s.achievements.statusFor(userStats, streaks, unlocks)
		view.Streaks = streakViews(streaks, today)

		view.RecentXP, err = r.RecentXP(ctx, ClampLimit(recentLimit))
		return err
	})
	if err != nil {
		return nil, err
	}
	if view.RecentXP == nil {
		view.RecentXP = []xp.Transaction{}
	}
	return view, nil
}

func (s *ProgressionService) GetProgress(ctx context.Context, userID string) (*xp.Snapshot, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	total, err := s.ledger.TotalXP(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := s.ledger.Snapshot(total)
	return &snap, nil
}

func (s *ProgressionService) GetAchievements(ctx context.Context, userID string) (map[achievement.Category][]achievement.AchievementWithStatus, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	var out map[achievement.Category][]achievement.AchievementWithStatus
	err = s.repo.ReadUser(ctx, id, func(r repository.UserReader) error {
		userStats, err := r.GetStats(ctx)
		if err != nil {
			return err
		}
		streaks, err := streakMap(ctx, r)
		if err != nil {
			return err
		}
		unlocks, err := r.ListUnlocks(ctx)
		if err != nil {
			return err
		}
		out = s.achievements.statusFor(userStats, streaks, unlocks)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ProgressionService) GetStreaks(ctx context.Context, userID string) ([]streak.View, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	today := activity.Today(s.now(), s.loc)
	var out []streak.View
	err = s.repo.ReadUser(ctx, id, func(r repository.UserReader) error {
		streaks, err := streakMap(ctx, r)
		if err != nil {
			return err
		}
		out = streakViews(streaks, today)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ProgressionService) GetXPHistory(ctx context.Context, userID string, limit int) ([]xp.Transaction, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []xp.Transaction
	err = s.repo.ReadUser(ctx, id, func(r repository.UserReader) error {
		var err error
		out, err = r.RecentXP(ctx, ClampLimit(limit))
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []xp.Transaction{}
	}
	return out, nil
}

// streakViews orders streaks by activity type. A flag left over from a previous day
// reads as inactive even before the nightly reset runs.
func streakViews(streaks map[activity.Type]streak.Streak, today time.Time) []streak.View {
	out := make([]streak.View, 0, len(streaks))
	for _, t := range activity.Types {
		s, ok := streaks[t]
		if !ok {
			continue
		}
		s.IsActiveToday = activeOn(s, today)
		out = append(out, s.View())
	}
	return out
}
