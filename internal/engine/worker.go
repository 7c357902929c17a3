package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rendis/composer/pkg/schema"
)

// stepTask is one unit of batch work: a step plus the closure that runs it.
type stepTask struct {
	stepID string
	run    func(context.Context) *schema.StepResult
}

// dispatcher fans a batch of step tasks out to goroutines and collects their
// results in input order. Batches are sized by the composer, so the
// dispatcher never runs more goroutines than the parallelism cap.
type dispatcher struct {
	executed atomic.Int64
	panicked atomic.Int64
}

// RunBatch executes all tasks concurrently and waits for every one of them.
// Results hold the same positions as their tasks. A task that panics yields
// a failed result instead of crashing the run.
func (d *dispatcher) RunBatch(ctx context.Context, tasks []stepTask) []*schema.StepResult {
	results := make([]*schema.StepResult, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(idx int, t stepTask) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					d.panicked.Add(1)
					results[idx] = &schema.StepResult{
						StepID:  t.stepID,
						Success: false,
						Error:   fmt.Sprintf("step panicked: %v", rec),
					}
				}
			}()
			results[idx] = t.run(ctx)
			d.executed.Add(1)
		}(i, task)
	}
	wg.Wait()

	return results
}

// Executed returns the number of tasks completed without panicking.
func (d *dispatcher) Executed() int64 { return d.executed.Load() }

// Panicked returns the number of tasks that panicked.
func (d *dispatcher) Panicked() int64 { return d.panicked.Load() }
