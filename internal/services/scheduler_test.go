package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls    atomic.Int32
	triggers chan models.SyncTrigger
	err      error
	panics   bool
}

func newCountingRunner() *countingRunner {
	return &countingRunner{triggers: make(chan models.SyncTrigger, 16)}
}

func (c *countingRunner) SyncAll(_ context.Context, trigger models.SyncTrigger) (int, error) {
	c.calls.Add(1)
	select {
	case c.triggers <- trigger:
	default:
	}
	if c.panics {
		panic("orchestrator exploded")
	}
	return 0, c.err
}

func TestScheduler_StartRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(newCountingRunner(), nil, nil)

	for _, spec := range []string{"", "not a cron", "61 * * * *", "* * * *"} {
		h, err := s.Start(spec)
		assert.Error(t, err, spec)
		assert.Nil(t, h)
	}
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	runner := newCountingRunner()
	s := NewScheduler(runner, time.UTC, nil)

	h, err := s.Start("@every 1s")
	require.NoError(t, err)
	defer s.Stop(h)

	select {
	case trigger := <-runner.triggers:
		assert.Equal(t, models.TriggerSchedule, trigger)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job never fired")
	}
}

func TestScheduler_StartReplacesPreviousSchedule(t *testing.T) {
	s := NewScheduler(newCountingRunner(), time.UTC, nil)

	first, err := s.Start("0 4 * * *")
	require.NoError(t, err)
	second, err := s.Start("30 5 * * *")
	require.NoError(t, err)
	defer s.Stop(second)

	select {
	case <-first.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("first schedule was not stopped")
	}
	assert.Same(t, second, s.current)

	next := second.Next()
	assert.Equal(t, 5, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestScheduler_StopPreventsFurtherRuns(t *testing.T) {
	runner := newCountingRunner()
	s := NewScheduler(runner, time.UTC, nil)

	h, err := s.Start("@every 1s")
	require.NoError(t, err)

	<-s.Stop(h).Done()
	calls := runner.calls.Load()
	time.Sleep(1500 * time.Millisecond)

	assert.Equal(t, calls, runner.calls.Load())
	assert.Nil(t, s.current)

	// repeated stops are harmless
	assert.NotNil(t, h.Stop())
}

func TestScheduler_NextUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	s := NewScheduler(newCountingRunner(), loc, nil)

	h, err := s.Start("0 4 * * *")
	require.NoError(t, err)
	defer s.Stop(h)

	next := h.Next()
	assert.Equal(t, loc, next.Location())
	assert.Equal(t, 4, next.Hour())
	assert.True(t, next.After(time.Now()))
}

func TestScheduler_RunNowSurvivesFailures(t *testing.T) {
	failing := newCountingRunner()
	failing.err = errors.New("list failed")
	assert.NotPanics(t, func() {
		NewScheduler(failing, nil, nil).RunNow(context.Background())
	})

	panicking := newCountingRunner()
	panicking.panics = true
	assert.NotPanics(t, func() {
		NewScheduler(panicking, nil, nil).RunNow(context.Background())
	})

	assert.Equal(t, models.TriggerManual, <-panicking.triggers)
}
