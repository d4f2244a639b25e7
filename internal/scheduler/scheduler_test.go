package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/proxyops/certsyncd/internal/engine"
	"github.com/proxyops/certsyncd/pkg/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRunner holds each cycle open until released.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	cycles  atomic.Int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) RunCycle(context.Context) engine.CycleResult {
	r.cycles.Add(1)
	r.started <- struct{}{}
	<-r.release
	return engine.CycleResult{}
}

func TestTriggerNowRejectsConcurrent(t *testing.T) {
	runner := newBlockingRunner()
	s := New(context.Background(), runner, time.Hour, logger.NewNoopLogger())

	require.NoError(t, s.TriggerNow())
	<-runner.started

	// The slot is taken; a second trigger is rejected, not queued.
	err := s.TriggerNow()
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.True(t, s.State().Running)

	close(runner.release)

	require.Eventually(t, func() bool { return !s.State().Running }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), runner.cycles.Load())

	// Slot free again: the next trigger is accepted.
	runner.release = make(chan struct{})
	close(runner.release)
	assert.NoError(t, s.TriggerNow())
}

func TestRunExecutesStartupCycle(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, runner, time.Hour, logger.NewNoopLogger())

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("startup cycle never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}

	state := s.State()
	assert.False(t, state.Running)
	assert.False(t, state.LastSyncAt.IsZero())
	assert.False(t, state.NextScheduledAt.IsZero())
	assert.Equal(t, time.Hour.String(), state.Interval)
}

func TestStateBeforeFirstCycle(t *testing.T) {
	s := New(context.Background(), newBlockingRunner(), 30*time.Minute, logger.NewNoopLogger())

	state := s.State()
	assert.False(t, state.Running)
	assert.True(t, state.LastSyncAt.IsZero())
	assert.Equal(t, "30m0s", state.Interval)
}

// ctxRecordingRunner captures the context each cycle runs on.
type ctxRecordingRunner struct {
	ctx  context.Context
	done chan struct{}
}

func (r *ctxRecordingRunner) RunCycle(ctx context.Context) engine.CycleResult {
	r.ctx = ctx
	close(r.done)
	return engine.CycleResult{}
}

func TestTriggerNowBeforeRunUsesBaseContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &ctxRecordingRunner{done: make(chan struct{})}
	s := New(ctx, runner, time.Hour, logger.NewNoopLogger())

	// A manual trigger before Run starts must still observe process shutdown.
	require.NoError(t, s.TriggerNow())
	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("triggered cycle never ran")
	}
	assert.ErrorIs(t, runner.ctx.Err(), context.Canceled)
}
