package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MaintenanceScheduler runs the nightly streak reset in the configured timezone.
type MaintenanceScheduler struct {
	cron    *cron.Cron
	streaks *StreakService
}

func NewMaintenanceScheduler(streaks *StreakService, schedule string, loc *time.Location) (*MaintenanceScheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &MaintenanceScheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		streaks: streaks,
	}
	if _, err := s.cron.AddFunc(schedule, s.resetInactive); err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs one reset immediately, covering midnights missed while the process was down.
func (s *MaintenanceScheduler) Start() {
	s.resetInactive()
	s.cron.Start()
}

// Stop waits for a running job to finish.
func (s *MaintenanceScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *MaintenanceScheduler) resetInactive() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.streaks.ResetInactiveNow(ctx); err != nil {
		logrus.WithError(err).Error("ResetInactive failed")
	}
}
