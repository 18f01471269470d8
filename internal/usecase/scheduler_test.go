package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"RSIBoard/internal/domain/models"
	applogger "RSIBoard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	runs    atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (c *countingRefresher) Refresh(ctx context.Context) *models.Snapshot {
	if c.active.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.active.Add(-1)
	c.runs.Add(1)
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}
	return nil
}

func TestScheduler_RunsImmediately(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, time.Hour, applogger.Nop())
	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return r.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_NeverOverlaps(t *testing.T) {
	r := &countingRefresher{delay: 2500 * time.Millisecond}
	s := NewScheduler(r, time.Second, applogger.Nop())
	require.NoError(t, s.Start())

	time.Sleep(3200 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.False(t, r.overlap.Load())
	assert.GreaterOrEqual(t, r.runs.Load(), int32(1))
	assert.LessOrEqual(t, r.runs.Load(), int32(2))
}

func TestScheduler_StopCancelsRunningCycle(t *testing.T) {
	r := &countingRefresher{delay: time.Minute}
	s := NewScheduler(r, time.Hour, applogger.Nop())
	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return r.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Zero(t, r.active.Load())
}

func TestScheduler_InvalidUse(t *testing.T) {
	assert.Error(t, NewScheduler(&countingRefresher{}, 0, nil).Start())

	s := NewScheduler(&countingRefresher{}, time.Hour, nil)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
