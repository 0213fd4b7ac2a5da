package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/notification"
)

type recordingNotifier struct {
	mu      sync.Mutex
	updates []notification.ProgressUpdate
}

func (n *recordingNotifier) Notify(_ context.Context, u notification.ProgressUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
	return nil
}

func (n *recordingNotifier) all() []notification.ProgressUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.ProgressUpdate(nil), n.updates...)
}

type blockingIngester struct {
	release chan struct{}
}

func (b *blockingIngester) Ingest(ctx context.Context, e activity.Event) (*IngestResult, error) {
	<-b.release
	return &IngestResult{Event: e}, nil
}

type failingIngester struct{}

func (failingIngester) Ingest(context.Context, activity.Event) (*IngestResult, error) {
	return nil, errors.New("store unavailable")
}

func TestDispatcherHooksIngestAndNotify(t *testing.T) {
	env := newTestEnv(t)
	notifier := &recordingNotifier{}
	d := NewActivityDispatcher(env.ingest, notifier, DispatcherOptions{Workers: 2, QueueSize: 10, Now: env.clock.Now})
	user := uuid.New()

	d.OnMealLogged(user.String(), octDay(17), 640, Macros{ProteinG: 40, CarbsG: 70, FatG: 20})
	d.OnExerciseLogged(user.String(), octDay(17), 35, 310)
	d.OnWaterLogged(user.String(), octDay(17), 500)
	d.OnWaterLogged("not-a-user", octDay(17), 500)
	d.Stop()

	view, err := env.progression.GetProgressView(context.Background(), user.String(), 0)
	require.NoError(t, err)
	assert.Len(t, view.Streaks, 3)
	// 5 + 15 + 2 activity, 25 + 25 + 10 for the three first-time achievements
	assert.EqualValues(t, 82, view.Progress.TotalXP)

	updates := notifier.all()
	require.Len(t, updates, 3)
	for _, u := range updates {
		assert.Equal(t, user, u.UserID)
		assert.Len(t, u.Unlocks, 1)
	}
}

func TestDispatcherSwallowsIngestionErrors(t *testing.T) {
	notifier := &recordingNotifier{}
	d := NewActivityDispatcher(failingIngester{}, notifier, DispatcherOptions{Workers: 1})

	assert.NotPanics(t, func() {
		d.OnWaterLogged(uuid.NewString(), time.Now(), 250)
	})
	d.Stop()
	assert.Empty(t, notifier.all())
}

func TestDispatcherDropsWhenQueueIsFull(t *testing.T) {
	ing := &blockingIngester{release: make(chan struct{})}
	d := NewActivityDispatcher(ing, nil, DispatcherOptions{Workers: 1, QueueSize: 1, EnqueueTimeout: 20 * time.Millisecond})

	e := activity.New(uuid.New(), time.Now(), time.Time{}, activity.Hydration{AmountMl: 100}, time.Now())

	// one event held by the worker, one in the queue
	require.NoError(t, d.Submit(e))
	require.Eventually(t, func() bool { return len(d.jobQueue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Submit(e))

	assert.Error(t, d.Submit(e), "full queue rejects after the enqueue timeout")

	close(ing.release)
	d.Stop()

	assert.ErrorIs(t, d.Submit(e), ErrDispatcherStopped)
}

func TestProgressUpdateFromResult(t *testing.T) {
	user := uuid.New()
	res := &IngestResult{
		Event:       activity.Event{UserID: user},
		LevelBefore: 1,
		LevelAfter:  2,
		TotalXP:     125,
	}
	u := progressUpdate(res)
	assert.False(t, u.Empty())
	assert.True(t, u.LeveledUp())
	assert.Equal(t, "Level 2 reached!", u.Title())

	res.LevelAfter = 1
	assert.True(t, progressUpdate(res).Empty())
}
