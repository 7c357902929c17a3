// Package scheduler runs registered workflows on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/composer/pkg/schema"
)

// WorkflowRunner is the interface the scheduler uses to run workflows.
// Satisfied by the service layer (avoids an import cycle with the engine).
type WorkflowRunner interface {
	Run(ctx context.Context, workflowID string, input map[string]any) (*schema.ExecutionResult, error)
}

// Job binds a workflow to a cron expression.
type Job struct {
	ID             string
	WorkflowID     string
	CronExpression string
	Input          map[string]any
	Enabled        bool

	NextRunAt     time.Time
	LastRunAt     time.Time
	LastRunStatus string
}

// Scheduler ticks on an interval and runs every enabled job whose next run
// time has arrived. Jobs are held in memory; a job already executing is
// skipped until it finishes (dedup).
type Scheduler struct {
	runner       WorkflowRunner
	parser       cron.Parser
	logger       *slog.Logger
	tickInterval time.Duration

	mu     sync.Mutex
	jobs   map[string]*Job
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewScheduler creates a Scheduler with the standard 5-field cron parser and
// a 60s tick. A nil logger falls back to slog.Default().
func NewScheduler(runner WorkflowRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:       runner,
		parser:       cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:       logger,
		tickInterval: 60 * time.Second,
		jobs:         make(map[string]*Job),
		inflight:     make(map[string]struct{}),
	}
}

// SetTickInterval overrides the tick interval. Must be called before Start.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tickInterval = d
	}
}

// Add registers a job. The cron expression is validated and the first run
// time computed up front.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "job id is empty")
	}
	if job.WorkflowID == "" {
		return schema.NewError(schema.ErrCodeValidation, "job workflow id is empty")
	}
	next, err := s.CalculateNextRun(job.CronExpression, time.Now().UTC())
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "job %q: %v", job.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "job %q already registered", job.ID)
	}
	job.NextRunAt = next
	s.jobs[job.ID] = &job
	return nil
}

// Remove deletes a job by id.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "job %q not found", id)
	}
	delete(s.jobs, id)
	return nil
}

// Jobs returns snapshots of all registered jobs, sorted by id.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go s.loop(schedCtx, done)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every enabled job that is due.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	due := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.Enabled && !job.NextRunAt.After(now) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		if !s.tryAcquire(job.ID) {
			continue
		}
		s.runJob(ctx, job, now)
		s.release(job.ID)
	}
}

// runJob executes one job and updates its timestamps.
func (s *Scheduler) runJob(ctx context.Context, job *Job, now time.Time) {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("workflow_id", job.WorkflowID))

	status := "success"
	result, err := s.runner.Run(ctx, job.WorkflowID, job.Input)
	if err != nil {
		status = "error"
		s.logger.Error("scheduled job execution failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	} else if result != nil && !result.Success {
		status = "error"
		s.logger.Error("scheduled workflow failed",
			slog.String("job_id", job.ID),
			slog.String("error", result.Error))
	}

	next, nextErr := s.CalculateNextRun(job.CronExpression, now)

	s.mu.Lock()
	job.LastRunAt = now
	job.LastRunStatus = status
	if nextErr == nil {
		job.NextRunAt = next
	}
	s.mu.Unlock()
}

// tryAcquire returns true and marks the job in-flight if it is not running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *Scheduler) release(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler. The jobs mutex is not held while
// waiting so an in-flight tick can finish updating job state.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	s.logger.Info("scheduler stopped")
	return nil
}
