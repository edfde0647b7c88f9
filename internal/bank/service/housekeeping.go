package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MuadBenMusa/sparkcore-backend/internal/bank/store"
)

// DefaultHousekeepingSchedule runs the cleanup hourly.
const DefaultHousekeepingSchedule = "@every 1h"

// HousekeepingService deletes expired refresh tokens on a cron schedule.
// Revoked access tokens and limiter buckets expire in Redis on their own.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Schedule string

	cron    *cron.Cron
	initial sync.WaitGroup
}

// NewHousekeepingService validates schedule (DefaultHousekeepingSchedule
// when empty).
func NewHousekeepingService(st store.Store, logger *slog.Logger, schedule string) (*HousekeepingService, error) {
	if schedule == "" {
		schedule = DefaultHousekeepingSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Schedule: schedule,
	}

	s.cron = cron.New(
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if _, err := s.cron.AddFunc(schedule, s.cleanup); err != nil {
		return nil, fmt.Errorf("housekeeping schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs one cleanup right away and then follows the schedule.
func (s *HousekeepingService) Start() {
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.cleanup()
	}()
	s.cron.Start()
	s.Logger.Info("housekeeping service started", "schedule", s.Schedule)
}

// Stop halts the schedule and waits for a running cleanup to finish.
func (s *HousekeepingService) Stop() {
	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.Logger.Info("housekeeping service stopped")
}

// RunOnce performs a single cleanup and returns the number of rows removed.
func (s *HousekeepingService) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return n, nil
}

func (s *HousekeepingService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.Logger.Error("housekeeping cleanup failed", "err", err)
		return
	}
	s.Logger.Info("housekeeping cleanup completed", "expired_refresh_tokens", n)
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
