package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// setDay moves the clock to noon UTC on the given October 2026 day.
func (c *testClock) setDay(d int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Date(2026, 10, d, 12, 0, 0, 0, time.UTC)
}

type testEnv struct {
	clock        *testClock
	repo         *repository.Memory
	catalog      *achievement.Catalog
	xp           *XPService
	achievements *AchievementService
	streaks      *StreakService
	ingest       *IngestService
	progression  *ProgressionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := achievement.Default()
	require.NoError(t, err)
	curve, err := catalog.Curve()
	require.NoError(t, err)

	clock := &testClock{}
	clock.setDay(17)

	env := &testEnv{clock: clock, repo: repository.NewMemory(), catalog: catalog}
	env.xp = NewXPService(env.repo, curve, clock.Now)
	env.achievements = NewAchievementService(env.repo, catalog, env.xp, clock.Now)
	env.streaks = NewStreakService(env.repo, catalog, env.xp, env.achievements, time.UTC, clock.Now)
	env.ingest = NewIngestService(env.repo, catalog, env.xp, env.achievements, env.streaks, IngestOptions{
		DedupSize: 1000,
		DedupTTL:  time.Hour,
		Location:  time.UTC,
		Now:       clock.Now,
	})
	env.progression = NewProgressionService(env.repo, env.xp, env.achievements, time.UTC, clock.Now)
	return env
}

func octDay(d int) time.Time {
	return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
}

// event builds an event on day d with a distinct timestamp per seq.
func (env *testEnv) event(user uuid.UUID, d, seq int, p activity.Payload) activity.Event {
	at := octDay(d).Add(8*time.Hour + time.Duration(seq)*time.Minute)
	return activity.New(user, octDay(d), at, p, env.clock.Now())
}

var samplePayloads = map[activity.Type]activity.Payload{
	activity.TypeNutrition: activity.Nutrition{Calories: 500, ProteinG: 20},
	activity.TypeExercise:  activity.Exercise{DurationMinutes: 30, CaloriesBurned: 200},
	activity.TypeHydration: activity.Hydration{AmountMl: 250},
}

// record ingests one sample event of type typ on day d.
func (env *testEnv) record(t *testing.T, user uuid.UUID, typ activity.Type, d int) {
	t.Helper()
	_, err := env.ingest.Ingest(context.Background(), env.event(user, d, 0, samplePayloads[typ]))
	require.NoError(t, err)
}
