package history

import (
	"context"
	"fmt"

	"github.com/rainpipe/pdfwatch/internal/api"
	"github.com/rainpipe/pdfwatch/internal/gate"
	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/logview"
	"github.com/rainpipe/pdfwatch/internal/model"
	"github.com/rainpipe/pdfwatch/internal/storage"
)

// Limit is the maximum number of jobs listed.
const Limit = 10

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Client api.Client
	// Repository is used to find the job being monitored locally, optional.
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "history.Service"})

	return nil
}

// Service lists past jobs and their logs. It never polls.
type Service struct {
	client api.Client
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		client: cfg.Client,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// ListRequest represents the list request parameters.
type ListRequest struct {
	// CurrentJobID marks the job as the current one. If empty the latest
	// active local session job is used.
	CurrentJobID string
}

// List returns the most recent jobs in server order.
func (s *Service) List(ctx context.Context, req ListRequest) ([]model.HistoryItem, error) {
	records, err := s.client.JobHistory(ctx, Limit)
	if err != nil {
		return nil, fmt.Errorf("could not get job history: %w", err)
	}
	if len(records) > Limit {
		records = records[:Limit]
	}

	current := req.CurrentJobID
	if current == "" {
		current = s.activeJobID(ctx)
	}

	items := make([]model.HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, model.HistoryItem{
			Record:   r,
			Current:  current != "" && r.UUID == current,
			ViewOnly: !gate.CanRegenerate(r.Status),
		})
	}

	s.logger.Debugf("Listed %d jobs", len(items))
	return items, nil
}

// activeJobID returns the job of the newest active session, empty if none.
func (s *Service) activeJobID(ctx context.Context) string {
	if s.repo == nil {
		return ""
	}

	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		s.logger.Warningf("Could not list local sessions: %s", err)
		return ""
	}

	for _, ss := range sessions {
		if ss.Active() {
			return ss.JobID
		}
	}
	return ""
}

// Select returns the logs of a job deduplicated and newest first.
func (s *Service) Select(ctx context.Context, jobID string) ([]model.LogEntry, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required: %w", model.ErrNotValid)
	}

	entries, err := s.client.LogHistory(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("could not get job %s logs: %w", jobID, err)
	}

	agg := logview.NewAggregator()
	agg.Add(entries)

	return agg.Entries(), nil
}
