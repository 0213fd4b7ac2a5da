package services

import (
	"context"
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

// UnlockedAchievement is returned once, at the moment an achievement unlocks.
type UnlockedAchievement struct {
	Achievement achievement.Achievement `json:"achievement"`
	UnlockedAt  time.Time               `json:"unlocked_at"`
	Transaction xp.Transaction          `json:"transaction"`
}

type AchievementService struct {
	repo    repository.Repository
	catalog *achievement.Catalog
	ledger  *XPService
	now     func() time.Time
}

func NewAchievementService(repo repository.Repository, catalog *achievement.Catalog, ledger *XPService, now func() time.Time) *AchievementService {
	if now == nil {
		now = time.Now
	}
	return &AchievementService{repo: repo, catalog: catalog, ledger: ledger, now: now}
}

// Evaluate checks every locked achievement for userID and unlocks those whose progress
// reached 100. Already unlocked achievements are never evaluated again.
func (s *AchievementService) Evaluate(ctx context.Context, userID uuid.UUID) ([]UnlockedAchievement, error) {
	var unlocked []UnlockedAchievement
	err := s.repo.InUserTx(ctx, userID, func(tx repository.UserTx) error {
		var err error
		unlocked, err = s.evaluate(ctx, tx, userID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	credits := make([]xp.Transaction, 0, len(unlocked))
	for _, u := range unlocked {
		credits = append(credits, u.Transaction)
	}
	recordCredits(credits)
	recordUnlocks(userID, unlocked)
	return unlocked, nil
}

func (s *AchievementService) evaluate(ctx context.Context, tx repository.UserTx, userID uuid.UUID, via *uuid.UUID) ([]UnlockedAchievement, error) {
	userStats, err := tx.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	streaks, err := streakMap(ctx, tx)
	if err != nil {
		return nil, err
	}
	unlocks, err := tx.ListUnlocks(ctx)
	if err != nil {
		return nil, err
	}

	var out []UnlockedAchievement
	for _, def := range s.catalog.Achievements {
		current, seen := unlocks[def.Key]
		if seen && current.Unlocked() {
			continue
		}

		progress := def.Progress(userStats, streaks)
		if progress < 100 {
			// rows are created lazily, only once there is progress to record
			if progress == current.ProgressPercent {
				continue
			}
			err := tx.SaveUnlock(ctx, achievement.Unlock{
				UserID:          userID,
				AchievementKey:  def.Key,
				ProgressPercent: progress,
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		at := s.now().UTC()
		err := tx.SaveUnlock(ctx, achievement.Unlock{
			UserID:          userID,
			AchievementKey:  def.Key,
			ProgressPercent: 100,
			UnlockedAt:      &at,
			UnlockedVia:     via,
		})
		if err != nil {
			return nil, err
		}

		t, err := s.ledger.credit(ctx, tx, userID, def.XPReward, xp.SourceAchievement, def.Key, "Achievement unlocked: "+def.Name)
		if err != nil {
			return nil, err
		}

		out = append(out, UnlockedAchievement{Achievement: def, UnlockedAt: at, Transaction: t})
	}
	return out, nil
}

// recordUnlocks counts and logs unlocks once their unit of work has committed.
func recordUnlocks(userID uuid.UUID, unlocks []UnlockedAchievement) {
	for _, u := range unlocks {
		achievementsUnlocked.WithLabelValues(string(u.Achievement.Category)).Inc()
		logrus.WithFields(logrus.Fields{
			"user_id":     userID,
			"achievement": u.Achievement.Key,
			"xp_reward":   u.Achievement.XPReward,
		}).Info("Achievement unlocked")
	}
}

// statusFor builds the read model for every catalog entry without touching storage.
func (s *AchievementService) statusFor(userStats stats.UserStats, streaks map[activity.Type]streak.Streak, unlocks map[string]achievement.Unlock) map[achievement.Category][]achievement.AchievementWithStatus {
	out := make(map[achievement.Category][]achievement.AchievementWithStatus)
	for _, def := range s.catalog.Achievements {
		status := achievement.AchievementWithStatus{Achievement: def}
		if u, ok := unlocks[def.Key]; ok && u.Unlocked() {
			status.Unlocked = true
			status.UnlockedAt = u.UnlockedAt
			status.Progress = 100
		} else {
			status.Progress = def.Progress(userStats, streaks)
		}
		out[def.Category] = append(out[def.Category], status)
	}
	return out
}

func streakMap(ctx context.Context, r repository.UserReader) (map[activity.Type]streak.Streak, error) {
	list, err := r.ListStreaks(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[activity.Type]streak.Streak, len(list))
	for _, s := range list {
		m[s.Type] = s
	}
	return m, nil
}
