package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/repository"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
)

type IngestResult struct {
	Event       activity.Event        `json:"event"`
	Streak      streak.View           `json:"streak"`
	Unlocks     []UnlockedAchievement `json:"unlocks"`
	XPCredited  []xp.Transaction      `json:"xp_credited"`
	TotalXP     uint64                `json:"total_xp"`
	LevelBefore int                   `json:"level_before"`
	LevelAfter  int                   `json:"level_after"`
	Duplicate   bool                  `json:"duplicate"`
}

func (r *IngestResult) LeveledUp() bool {
	return r.LevelAfter > r.LevelBefore
}

type IngestOptions struct {
	DedupSize int
	DedupTTL  time.Duration
	Location  *time.Location
	Now       func() time.Time
}

// IngestService turns collaborator events into streak, stats, achievement and XP updates.
type IngestService struct {
	repo      repository.Repository
	catalog   *achievement.Catalog
	ledger    *XPService
	evaluator *AchievementService
	streaks   *StreakService
	seen      *expirable.LRU[string, struct{}]
	loc       *time.Location
	now       func() time.Time
}

func NewIngestService(repo repository.Repository, catalog *achievement.Catalog, ledger *XPService, evaluator *AchievementService, streaks *StreakService, opts IngestOptions) *IngestService {
	if opts.DedupSize <= 0 {
		opts.DedupSize = 100000
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 48 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &IngestService{
		repo:      repo,
		catalog:   catalog,
		ledger:    ledger,
		evaluator: evaluator,
		streaks:   streaks,
		seen:      expirable.NewLRU[string, struct{}](opts.DedupSize, nil, opts.DedupTTL),
		loc:       opts.Location,
		now:       opts.Now,
	}
}

// Today is the current civil date in the configured timezone.
func (s *IngestService) Today() time.Time {
	return activity.Today(s.now(), s.loc)
}

// Now is the service clock.
func (s *IngestService) Now() time.Time {
	return s.now()
}

// Ingest records e and applies its consequences in one unit of work. A previously
// seen event returns a result with Duplicate set and changes nothing. An event
// dated before the streak's last activity is retained unapplied and reported
// with *streak.OutOfOrderEventError.
func (s *IngestService) Ingest(ctx context.Context, e activity.Event) (*IngestResult, error) {
	if e.Fingerprint == "" {
		e.Fingerprint = activity.Fingerprint(e)
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = s.now().UTC()
	}

	log := logrus.WithFields(logrus.Fields{
		"user_id": e.UserID,
		"type":    e.Type,
		"date":    activity.FormatDate(e.OccurredOn),
	})

	if err := activity.Validate(e, s.Today()); err != nil {
		eventsIngested.WithLabelValues(string(e.Type), "invalid").Inc()
		log.WithError(err).Warn("Rejected activity event")
		return nil, err
	}

	key := dedupKey(e)
	if s.seen.Contains(key) {
		eventsIngested.WithLabelValues(string(e.Type), "duplicate").Inc()
		log.Debug("Duplicate activity event ignored")
		return &IngestResult{Event: e, Duplicate: true}, nil
	}

	res := &IngestResult{Event: e}
	var outOfOrder *streak.OutOfOrderEventError

	err := s.repo.InUserTx(ctx, e.UserID, func(tx repository.UserTx) error {
		totalBefore, err := tx.TotalXP(ctx)
		if err != nil {
			return err
		}
		res.LevelBefore = s.ledger.LevelFor(totalBefore).Level
		res.LevelAfter = res.LevelBefore
		res.TotalXP = totalBefore

		prev, next, err := s.streaks.recordActivity(ctx, tx, &e)
		switch {
		case errors.Is(err, repository.ErrDuplicateEvent):
			res.Duplicate = true
			return nil
		case errors.As(err, &outOfOrder):
			res.Event = e
			if prev != nil {
				res.Streak = prev.View()
			}
			return nil
		case err != nil:
			return err
		}
		res.Event = e
		res.Streak = next.View()

		userStats, err := tx.GetStats(ctx)
		if err != nil {
			return err
		}
		userStats.UserID = e.UserID
		userStats.Apply(e, prev == nil || !prev.LastActivityDate.Equal(e.OccurredOn))
		if err := tx.SaveStats(ctx, userStats); err != nil {
			return fmt.Errorf("failed to save stats: %w", err)
		}

		if amount := s.catalog.XPFor(e.Type); amount > 0 {
			t, err := s.ledger.credit(ctx, tx, e.UserID, amount, xp.SourceActivity, e.ID.String(), activityDescription(e.Type))
			if err != nil {
				return err
			}
			res.XPCredited = append(res.XPCredited, t)
		}

		bonus := s.catalog.StreakBonus
		if bonus.XP > 0 && streak.MilestoneReached(prev, next, bonus.EveryDays) {
			ref := fmt.Sprintf("%s:%d:%s", e.Type, next.CurrentCount, activity.FormatDate(next.LastActivityDate))
			desc := fmt.Sprintf("%d day %s streak", next.CurrentCount, e.Type)
			t, err := s.ledger.credit(ctx, tx, e.UserID, bonus.XP, xp.SourceStreak, ref, desc)
			if err != nil {
				return err
			}
			res.XPCredited = append(res.XPCredited, t)
		}

		unlocks, err := s.evaluator.evaluate(ctx, tx, e.UserID, &e.ID)
		if err != nil {
			return err
		}
		res.Unlocks = unlocks
		for _, u := range unlocks {
			res.XPCredited = append(res.XPCredited, u.Transaction)
		}

		totalAfter, err := tx.TotalXP(ctx)
		if err != nil {
			return err
		}
		res.TotalXP = totalAfter
		res.LevelAfter = s.ledger.LevelFor(totalAfter).Level
		return nil
	})
	if err != nil {
		eventsIngested.WithLabelValues(string(e.Type), "error").Inc()
		log.WithError(err).Error("Failed to ingest activity event")
		return nil, err
	}

	s.seen.Add(key, struct{}{})

	switch {
	case res.Duplicate:
		eventsIngested.WithLabelValues(string(e.Type), "duplicate").Inc()
		log.Debug("Duplicate activity event ignored")
		return res, nil
	case outOfOrder != nil:
		eventsIngested.WithLabelValues(string(e.Type), "out_of_order").Inc()
		log.WithError(outOfOrder).Warn("Activity event retained for recompute")
		return nil, outOfOrder
	}

	eventsIngested.WithLabelValues(string(e.Type), "applied").Inc()
	recordCredits(res.XPCredited)
	recordUnlocks(e.UserID, res.Unlocks)
	log.WithFields(logrus.Fields{
		"streak":      res.Streak.CurrentCount,
		"unlocks":     len(res.Unlocks),
		"level_after": res.LevelAfter,
	}).Info("Activity event ingested")
	return res, nil
}

func dedupKey(e activity.Event) string {
	return e.UserID.String() + "|" + activity.FormatDate(e.OccurredOn) + "|" + e.Fingerprint
}
