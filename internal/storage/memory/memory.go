package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	sessions map[string]model.Session
	// order keeps insertion order to break created at ties.
	order  []string
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		sessions: make(map[string]model.Session),
		logger:   cfg.Logger,
	}, nil
}

// CreateSession stores a new session.
func (r *Repository) CreateSession(ctx context.Context, s model.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session with id %s: %w", s.ID, model.ErrAlreadyExists)
	}
	for _, existing := range r.sessions {
		if existing.JobID == s.JobID {
			return fmt.Errorf("session for job %s: %w", s.JobID, model.ErrAlreadyExists)
		}
	}

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	r.logger.Debugf("Created session %s for job %s", s.ID, s.JobID)

	return nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	return &s, nil
}

// GetSessionByJobID retrieves the session of a job.
func (r *Repository) GetSessionByJobID(ctx context.Context, jobID string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.JobID == jobID {
			sCopy := s
			return &sCopy, nil
		}
	}

	return nil, fmt.Errorf("session for job %s: %w", jobID, model.ErrNotFound)
}

// ListSessions returns all sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context) ([]model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]model.Session, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		sessions = append(sessions, r.sessions[r.order[i]])
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })

	return sessions, nil
}

// UpdateSession updates an existing session.
func (r *Repository) UpdateSession(ctx context.Context, s model.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}

	r.sessions[s.ID] = s
	r.logger.Debugf("Updated session %s (%s)", s.ID, s.LastStatus)

	return nil
}

// DeleteSession deletes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	delete(r.sessions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Debugf("Deleted session %s", id)

	return nil
}
