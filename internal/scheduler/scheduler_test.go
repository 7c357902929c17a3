package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/composer/pkg/schema"
)

type fakeRunner struct {
	calls atomic.Int32
	fail  bool
}

func (f *fakeRunner) Run(_ context.Context, workflowID string, _ map[string]any) (*schema.ExecutionResult, error) {
	f.calls.Add(1)
	return &schema.ExecutionResult{WorkflowID: workflowID, Success: !f.fail, Error: "boom"}, nil
}

func TestSchedulerAddValidation(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, nil)

	require.NoError(t, s.Add(Job{ID: "j1", WorkflowID: "wf", CronExpression: "* * * * *"}))
	assert.Error(t, s.Add(Job{ID: "j1", WorkflowID: "wf", CronExpression: "* * * * *"}), "duplicate id")
	assert.Error(t, s.Add(Job{ID: "", WorkflowID: "wf", CronExpression: "* * * * *"}))
	assert.Error(t, s.Add(Job{ID: "j2", WorkflowID: "", CronExpression: "* * * * *"}))
	assert.Error(t, s.Add(Job{ID: "j3", WorkflowID: "wf", CronExpression: "not a cron"}))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].NextRunAt.IsZero())
}

func TestSchedulerRemove(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, nil)
	require.NoError(t, s.Add(Job{ID: "j1", WorkflowID: "wf", CronExpression: "* * * * *"}))
	require.NoError(t, s.Remove("j1"))
	assert.Error(t, s.Remove("j1"))
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, nil)
	s.SetTickInterval(5 * time.Millisecond)

	require.NoError(t, s.Add(Job{
		ID: "j1", WorkflowID: "wf", CronExpression: "* * * * *", Enabled: true,
	}))
	// Force the job to be due immediately.
	s.mu.Lock()
	s.jobs["j1"].NextRunAt = time.Now().UTC().Add(-time.Minute)
	s.mu.Unlock()

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.GreaterOrEqual(t, runner.calls.Load(), int32(1))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "success", jobs[0].LastRunStatus)
	assert.False(t, jobs[0].LastRunAt.IsZero())
	assert.True(t, jobs[0].NextRunAt.After(time.Now().UTC()))
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, nil)
	s.SetTickInterval(5 * time.Millisecond)

	require.NoError(t, s.Add(Job{
		ID: "j1", WorkflowID: "wf", CronExpression: "* * * * *", Enabled: false,
	}))
	s.mu.Lock()
	s.jobs["j1"].NextRunAt = time.Now().UTC().Add(-time.Minute)
	s.mu.Unlock()

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestSchedulerReportsFailedRuns(t *testing.T) {
	runner := &fakeRunner{fail: true}
	s := NewScheduler(runner, nil)
	s.SetTickInterval(5 * time.Millisecond)

	require.NoError(t, s.Add(Job{
		ID: "j1", WorkflowID: "wf", CronExpression: "* * * * *", Enabled: true,
	}))
	s.mu.Lock()
	s.jobs["j1"].NextRunAt = time.Now().UTC().Add(-time.Minute)
	s.mu.Unlock()

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Stop())

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "error", jobs[0].LastRunStatus)
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

func TestCalculateNextRun(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, nil)

	from := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)
	next, err := s.CalculateNextRun("0 12 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), next)

	_, err = s.CalculateNextRun("bogus", from)
	assert.Error(t, err)
}
