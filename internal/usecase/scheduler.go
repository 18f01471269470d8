package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RSIBoard/internal/domain/models"
	applogger "RSIBoard/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) *models.Snapshot
}

// Scheduler triggers a Refresher immediately and then every interval.
// A cycle that overruns the interval makes the next tick a no-op.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	l         *applogger.Logger

	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	initial sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewScheduler(refresher Refresher, interval time.Duration, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	return &Scheduler{refresher: refresher, interval: interval, l: l}
}

// Start schedules the job and fires the first cycle without waiting for a tick.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if s.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", s.interval)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	cl := cronLogger{l: s.l}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	id, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		s.refresher.Refresh(s.ctx)
	})
	if err != nil {
		s.cancel()
		return fmt.Errorf("schedule refresh: %w", err)
	}

	// Run through the wrapped job so the first cycle shares the skip lock.
	job := s.cron.Entry(id).WrappedJob
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()

	s.cron.Start()
	s.started = true
	s.l.Info("refresh scheduler started", applogger.Duration("interval_ms", s.interval))
	return nil
}

// Stop cancels the running cycle and waits for it to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	s.cancel()
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.l.Info("refresh scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
