package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/stats"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
)

var errRollback = errors.New("rollback")

func date(d int) time.Time {
	return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
}

// testRepository runs the behaviour every Repository implementation must share.
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("unknown user reads as empty", func(t *testing.T) {
		user := uuid.New()
		err := repo.ReadUser(ctx, user, func(r UserReader) error {
			s, err := r.GetStreak(ctx, activity.TypeHydration)
			require.NoError(t, err)
			assert.Nil(t, s)

			total, err := r.TotalXP(ctx)
			require.NoError(t, err)
			assert.Zero(t, total)

			history, err := r.RecentXP(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, history)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("writes commit together", func(t *testing.T) {
		user := uuid.New()
		now := time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)
		e := activity.New(user, date(3), time.Time{}, activity.Hydration{AmountMl: 300}, now)
		e.Applied = true

		err := repo.InUserTx(ctx, user, func(tx UserTx) error {
			require.NoError(t, tx.InsertEvent(ctx, e))
			require.NoError(t, tx.SaveStreak(ctx, streak.Streak{Type: activity.TypeHydration, CurrentCount: 1, LongestCount: 1, LastActivityDate: date(3), IsActiveToday: true}))
			require.NoError(t, tx.SaveStats(ctx, stats.UserStats{WaterLogs: 1, WaterMl: 300, HydrationDays: 1}))
			txn, err := xp.NewTransaction(user, 2, xp.SourceActivity, e.ID.String(), "Water logged", now)
			require.NoError(t, err)
			return tx.AppendXP(ctx, txn)
		})
		require.NoError(t, err)

		err = repo.ReadUser(ctx, user, func(r UserReader) error {
			events, err := r.ListEvents(ctx, activity.TypeHydration)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, e.Fingerprint, events[0].Fingerprint)
			assert.Equal(t, activity.Hydration{AmountMl: 300}, events[0].Payload)
			assert.True(t, events[0].Applied)

			s, err := r.GetStreak(ctx, activity.TypeHydration)
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, 1, s.CurrentCount)
			assert.True(t, s.LastActivityDate.Equal(date(3)))

			st, err := r.GetStats(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 300, st.WaterMl)

			total, err := r.TotalXP(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 2, total)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed unit of work leaves nothing behind", func(t *testing.T) {
		user := uuid.New()
		now := time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)

		err := repo.InUserTx(ctx, user, func(tx UserTx) error {
			e := activity.New(user, date(3), time.Time{}, activity.Nutrition{Calories: 200}, now)
			require.NoError(t, tx.InsertEvent(ctx, e))
			txn, err := xp.NewTransaction(user, 5, xp.SourceActivity, e.ID.String(), "Meal logged", now)
			require.NoError(t, err)
			require.NoError(t, tx.AppendXP(ctx, txn))
			return errRollback
		})
		require.ErrorIs(t, err, errRollback)

		err = repo.ReadUser(ctx, user, func(r UserReader) error {
			events, err := r.ListEvents(ctx, activity.TypeNutrition)
			require.NoError(t, err)
			assert.Empty(t, events)
			total, err := r.TotalXP(ctx)
			require.NoError(t, err)
			assert.Zero(t, total)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("duplicate fingerprint is rejected", func(t *testing.T) {
		user := uuid.New()
		now := time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)
		at := now.Add(-time.Minute)
		e1 := activity.New(user, date(3), at, activity.Hydration{AmountMl: 500}, now)
		e2 := activity.New(user, date(3), at, activity.Hydration{AmountMl: 500}, now)

		require.NoError(t, repo.InUserTx(ctx, user, func(tx UserTx) error {
			return tx.InsertEvent(ctx, e1)
		}))
		err := repo.InUserTx(ctx, user, func(tx UserTx) error {
			return tx.InsertEvent(ctx, e2)
		})
		assert.ErrorIs(t, err, ErrDuplicateEvent)
	})

	t.Run("unlock never reverts", func(t *testing.T) {
		user := uuid.New()
		unlockedAt := time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)

		require.NoError(t, repo.InUserTx(ctx, user, func(tx UserTx) error {
			return tx.SaveUnlock(ctx, achievement.Unlock{AchievementKey: "first_glass", ProgressPercent: 100, UnlockedAt: &unlockedAt})
		}))
		require.NoError(t, repo.InUserTx(ctx, user, func(tx UserTx) error {
			return tx.SaveUnlock(ctx, achievement.Unlock{AchievementKey: "first_glass", ProgressPercent: 100})
		}))

		require.NoError(t, repo.ReadUser(ctx, user, func(r UserReader) error {
			unlocks, err := r.ListUnlocks(ctx)
			require.NoError(t, err)
			u := unlocks["first_glass"]
			require.True(t, u.Unlocked())
			assert.True(t, u.UnlockedAt.Equal(unlockedAt))
			return nil
		}))
	})

	t.Run("recent xp is newest first", func(t *testing.T) {
		user := uuid.New()
		base := time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)

		require.NoError(t, repo.InUserTx(ctx, user, func(tx UserTx) error {
			for i := 1; i <= 5; i++ {
				txn, err := xp.NewTransaction(user, i, xp.SourceAdjustment, "", "credit", base.Add(time.Duration(i)*time.Minute))
				require.NoError(t, err)
				require.NoError(t, tx.AppendXP(ctx, txn))
			}
			return nil
		}))

		require.NoError(t, repo.ReadUser(ctx, user, func(r UserReader) error {
			recent, err := r.RecentXP(ctx, 3)
			require.NoError(t, err)
			require.Len(t, recent, 3)
			assert.Equal(t, 5, recent[0].Amount)
			assert.Equal(t, 3, recent[2].Amount)

			total, err := r.TotalXP(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 15, total)
			return nil
		}))
	})

	t.Run("equal timestamps keep append order newest first", func(t *testing.T) {
		user := uuid.New()
		at := time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)

		require.NoError(t, repo.InUserTx(ctx, user, func(tx UserTx) error {
			for i := 1; i <= 4; i++ {
				txn, err := xp.NewTransaction(user, i, xp.SourceActivity, "", "credit", at)
				require.NoError(t, err)
				require.NoError(t, tx.AppendXP(ctx, txn))
			}
			return nil
		}))

		require.NoError(t, repo.ReadUser(ctx, user, func(r UserReader) error {
			recent, err := r.RecentXP(ctx, 4)
			require.NoError(t, err)
			amounts := make([]int, 0, len(recent))
			for _, txn := range recent {
				amounts = append(amounts, txn.Amount)
			}
			assert.Equal(t, []int{4, 3, 2, 1}, amounts)
			return nil
		}))
	})

	t.Run("reset inactive only clears stale flags", func(t *testing.T) {
		stale, fresh := uuid.New(), uuid.New()
		for user, last := range map[uuid.UUID]time.Time{stale: date(1), fresh: date(2)} {
			require.NoError(t, repo.InUserTx(ctx, user, func(tx UserTx) error {
				return tx.SaveStreak(ctx, streak.Streak{Type: activity.TypeExercise, CurrentCount: 4, LongestCount: 6, LastActivityDate: last, IsActiveToday: true})
			}))
		}

		n, err := repo.ResetInactiveStreaks(ctx, date(2))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		check := func(user uuid.UUID, wantActive bool) {
			require.NoError(t, repo.ReadUser(ctx, user, func(r UserReader) error {
				s, err := r.GetStreak(ctx, activity.TypeExercise)
				require.NoError(t, err)
				require.NotNil(t, s)
				assert.Equal(t, wantActive, s.IsActiveToday)
				assert.Equal(t, 4, s.CurrentCount, "counts are untouched")
				assert.Equal(t, 6, s.LongestCount)
				return nil
			}))
		}
		check(stale, false)
		check(fresh, true)

		again, err := repo.ResetInactiveStreaks(ctx, date(2))
		require.NoError(t, err)
		assert.Zero(t, again, "reset is idempotent")
	})

	t.Run("same user writers are serialized", func(t *testing.T) {
		user := uuid.New()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.InUserTx(ctx, user, func(tx UserTx) error {
					st, err := tx.GetStats(ctx)
					if err != nil {
						return err
					}
					st.WaterLogs++
					return tx.SaveStats(ctx, st)
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		require.NoError(t, repo.ReadUser(ctx, user, func(r UserReader) error {
			st, err := r.GetStats(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 20, st.WaterLogs)
			return nil
		}))
	})
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, NewMemory())
}
