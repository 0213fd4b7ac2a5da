package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/notification"
	"fitQuestAPI/internal/streak"
)

var ErrDispatcherStopped = errors.New("activity dispatcher stopped")

type Ingester interface {
	Ingest(ctx context.Context, e activity.Event) (*IngestResult, error)
}

type Macros struct {
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

type DispatcherOptions struct {
	Workers        int
	QueueSize      int
	EnqueueTimeout time.Duration
	Now            func() time.Time
}

// ActivityDispatcher feeds collaborator events into the ingestor on a bounded worker
// pool. Collaborators never see ingestion errors; they are logged and counted.
type ActivityDispatcher struct {
	ingester       Ingester
	notifier       notification.Notifier
	workers        int
	enqueueTimeout time.Duration
	now            func() time.Time
	jobQueue       chan activity.Event
	stopChan       chan struct{}
	wg             sync.WaitGroup
	mu             sync.RWMutex
	stopped        bool
}

func NewActivityDispatcher(ingester Ingester, notifier notification.Notifier, opts DispatcherOptions) *ActivityDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = notification.LogNotifier{}
	}

	d := &ActivityDispatcher{
		ingester:       ingester,
		notifier:       notifier,
		workers:        opts.Workers,
		enqueueTimeout: opts.EnqueueTimeout,
		now:            opts.Now,
		jobQueue:       make(chan activity.Event, opts.QueueSize),
		stopChan:       make(chan struct{}),
	}
	d.startWorkers()
	return d
}

func (d *ActivityDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *ActivityDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.jobQueue:
			dispatchQueueDepth.Set(float64(len(d.jobQueue)))
			d.process(e)
		case <-d.stopChan:
			// drain what was accepted before Stop
			for {
				select {
				case e := <-d.jobQueue:
					d.process(e)
				default:
					return
				}
			}
		}
	}
}

func (d *ActivityDispatcher) process(e activity.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{"user_id": e.UserID, "type": e.Type})

	res, err := d.ingester.Ingest(ctx, e)
	if err != nil {
		var ooo *streak.OutOfOrderEventError
		if errors.As(err, &ooo) {
			log.WithError(err).Info("Backdated activity kept for recompute")
			return
		}
		log.WithError(err).Error("Dispatched ingestion failed")
		return
	}
	if res.Duplicate {
		return
	}

	update := progressUpdate(res)
	if update.Empty() {
		return
	}
	if err := d.notifier.Notify(ctx, update); err != nil {
		log.WithError(err).Warn("Progress notification failed")
	}
}

// Submit queues e for ingestion. It waits at most the enqueue timeout for room.
func (d *ActivityDispatcher) Submit(e activity.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.jobQueue <- e:
		dispatchQueueDepth.Set(float64(len(d.jobQueue)))
		return nil
	case <-time.After(d.enqueueTimeout):
		dispatchDropped.Inc()
		logrus.WithFields(logrus.Fields{
			"user_id": e.UserID,
			"type":    e.Type,
		}).Error("Activity queue full, event dropped")
		return errors.New("activity queue full")
	}
}

func (d *ActivityDispatcher) submitHook(userID string, date time.Time, p activity.Payload) {
	id, err := ParseUserID(userID)
	if err != nil {
		eventsIngested.WithLabelValues(string(p.Type()), "invalid").Inc()
		logrus.WithError(err).WithField("type", p.Type()).Warn("Activity hook called with invalid user id")
		return
	}
	e := activity.New(id, date, time.Time{}, p, d.now())
	if err := d.Submit(e); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Activity hook dropped event")
	}
}

func (d *ActivityDispatcher) OnMealLogged(userID string, date time.Time, calories float64, macros Macros) {
	d.submitHook(userID, date, activity.Nutrition{
		Calories: calories,
		ProteinG: macros.ProteinG,
		CarbsG:   macros.CarbsG,
		FatG:     macros.FatG,
	})
}

func (d *ActivityDispatcher) OnExerciseLogged(userID string, date time.Time, durationMinutes int, caloriesBurned float64) {
	d.submitHook(userID, date, activity.Exercise{DurationMinutes: durationMinutes, CaloriesBurned: caloriesBurned})
}

func (d *ActivityDispatcher) OnWaterLogged(userID string, date time.Time, amountMl int) {
	d.submitHook(userID, date, activity.Hydration{AmountMl: amountMl})
}

// Stop rejects new events, finishes everything already queued and waits for the workers.
func (d *ActivityDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	logrus.Info("Stopping activity dispatcher...")
	close(d.stopChan)
	d.wg.Wait()
	logrus.Info("Activity dispatcher stopped")
}

func progressUpdate(res *IngestResult) notification.ProgressUpdate {
	u := notification.ProgressUpdate{
		UserID:      res.Event.UserID,
		LevelBefore: res.LevelBefore,
		LevelAfter:  res.LevelAfter,
		TotalXP:     res.TotalXP,
	}
	for _, a := range res.Unlocks {
		u.Unlocks = append(u.Unlocks, notification.UnlockedItem{
			Key:      a.Achievement.Key,
			Name:     a.Achievement.Name,
			XPReward: a.Achievement.XPReward,
		})
	}
	return u
}
