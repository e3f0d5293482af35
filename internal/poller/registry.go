package poller

import (
	"fmt"
	"sync"

	"github.com/rainpipe/pdfwatch/internal/model"
)

// Registry tracks the jobs being polled so a job is never polled by two
// pollers at the same time. It's safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: map[string]struct{}{}}
}

// Claim marks the job as polled. The returned release func frees the job and
// is safe to call more than once. Claiming a job already claimed returns
// model.ErrAlreadyExists.
func (r *Registry) Claim(jobID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[jobID]; ok {
		return nil, fmt.Errorf("job %s is already being watched: %w", jobID, model.ErrAlreadyExists)
	}
	r.active[jobID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.active, jobID)
		})
	}, nil
}

// Active returns true if the job is claimed.
func (r *Registry) Active(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.active[jobID]
	return ok
}
