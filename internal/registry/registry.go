// Package registry is the in-memory workflow definition store.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rendis/composer/pkg/schema"
)

// WorkflowRegistry stores workflow definitions by id. Definitions are deep
// value copies on the way in and out is by pointer to the stored copy, so
// callers must treat returned workflows as read-only.
type WorkflowRegistry struct {
	mu        sync.RWMutex
	workflows map[string]*schema.Workflow
}

// NewWorkflowRegistry creates an empty registry.
func NewWorkflowRegistry() *WorkflowRegistry {
	return &WorkflowRegistry{
		workflows: make(map[string]*schema.Workflow),
	}
}

// Save stores a workflow, overwriting any previous definition with the same
// id. A missing CreatedAt is stamped with the current time.
func (r *WorkflowRegistry) Save(wf *schema.Workflow) error {
	if wf == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	if wf.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "workflow id is empty")
	}
	if wf.CreatedAt == "" {
		wf.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[wf.ID] = wf
	return nil
}

// Get retrieves a workflow by id.
func (r *WorkflowRegistry) Get(id string) (*schema.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.workflows[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	return wf, nil
}

// Delete removes a workflow by id.
func (r *WorkflowRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	delete(r.workflows, id)
	return nil
}

// List returns all stored workflows sorted by id.
func (r *WorkflowRegistry) List() []*schema.Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*schema.Workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of stored workflows.
func (r *WorkflowRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workflows)
}
