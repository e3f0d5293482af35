package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rainpipe/pdfwatch/internal/api"
	"github.com/rainpipe/pdfwatch/internal/gate"
	"github.com/rainpipe/pdfwatch/internal/jobview"
	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/logview"
	"github.com/rainpipe/pdfwatch/internal/model"
	"github.com/rainpipe/pdfwatch/internal/poller"
	"github.com/rainpipe/pdfwatch/internal/printer"
	"github.com/rainpipe/pdfwatch/internal/storage"
	"github.com/rainpipe/pdfwatch/internal/storage/memory"
)

// Outcome is how a submitted or resumed job session ended.
type Outcome string

const (
	// OutcomeCompleted means the job reached a terminal status (completed, failed or cancelled).
	OutcomeCompleted Outcome = "completed"
	// OutcomeStalled means polling gave up after consecutive failures, the job state is unknown.
	OutcomeStalled Outcome = "stalled"
	// OutcomeFellBack means the job could not be resumed and the submission form was shown.
	OutcomeFellBack Outcome = "fell_back"
	// OutcomeRejected means the submission was refused locally or by the service.
	OutcomeRejected Outcome = "rejected"
	// OutcomeInterrupted means the watch was cancelled before the job finished.
	OutcomeInterrupted Outcome = "interrupted"
)

// PDFPathDetail is the stage detail key with the generated PDF path.
const PDFPathDetail = "pdf_path"

// Result is the result of a job session.
type Result struct {
	JobID   string
	Outcome Outcome
	// Status is the last known job status, empty if never fetched.
	Status model.JobStatus
	// LastError is the last polling error, set on stalled sessions.
	LastError error
}

// ServiceConfig is the configuration for the session service.
type ServiceConfig struct {
	Client  api.Client
	Surface printer.Surface
	// Repository stores the local sessions, in memory if not set.
	Repository storage.Repository
	// Poller polls the job progress, one using the client is created if not set.
	Poller *poller.Poller
	// Registry is shared by the services that must not poll the same job at
	// the same time, a service local one is used if not set.
	Registry *poller.Registry
	// IDGenerator returns new session IDs, ULIDs by default.
	IDGenerator func() string
	// Now returns the current time, time.Now by default.
	Now    func() time.Time
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}

	if c.Surface == nil {
		return fmt.Errorf("surface is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Service"})

	if c.Repository == nil {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create memory repository: %w", err)
		}
		c.Repository = repo
	}

	if c.Poller == nil {
		p, err := poller.New(poller.Config{Fetcher: c.Client, Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create poller: %w", err)
		}
		c.Poller = p
	}

	if c.Registry == nil {
		c.Registry = poller.NewRegistry()
	}

	if c.IDGenerator == nil {
		c.IDGenerator = func() string {
			return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
		}
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// Service coordinates the submission and monitoring of a job. It owns the
// surface: every render happens in the goroutine calling Submit or Resume.
type Service struct {
	client   api.Client
	surface  printer.Surface
	repo     storage.Repository
	poller   *poller.Poller
	registry *poller.Registry
	gate     *gate.Gate
	tracker  *jobview.Tracker
	logs     *logview.Aggregator
	newID    func() string
	now      func() time.Time
	logger   log.Logger
}

// NewService creates a new session service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	g, err := gate.New(gate.Config{Target: cfg.Surface, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		client:   cfg.Client,
		surface:  cfg.Surface,
		repo:     cfg.Repository,
		poller:   cfg.Poller,
		registry: cfg.Registry,
		gate:     g,
		tracker:  jobview.NewTracker(),
		logs:     logview.NewAggregator(),
		newID:    cfg.IDGenerator,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Submit validates and submits a generation, then watches the job until it
// reaches a terminal status, polling stalls or the context is cancelled.
// Validation and rejection errors are returned without any retry.
func (s *Service) Submit(ctx context.Context, req model.GenerateRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		s.surface.ShowError(err)
		return &Result{Outcome: OutcomeRejected}, fmt.Errorf("invalid generation: %w", err)
	}

	jobID, err := s.client.Generate(ctx, req)
	if err != nil {
		s.surface.ShowError(err)
		if errors.Is(err, model.ErrRejected) {
			return &Result{Outcome: OutcomeRejected}, fmt.Errorf("generation rejected: %w", err)
		}
		return nil, fmt.Errorf("could not submit generation: %w", err)
	}

	logger := s.logger.WithValues(log.Kv{"job-id": jobID})
	logger.Infof("Job submitted")

	s.showJob(jobID)

	now := s.now().UTC()
	sess := model.Session{
		ID:           s.newID(),
		JobID:        jobID,
		Keywords:     req.Keywords,
		SendToKindle: req.SendToKindle,
		KindleEmail:  req.KindleEmail,
		LastStatus:   model.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		logger.Warningf("Could not store session: %s", err)
	}

	return s.watch(ctx, &sess, logger)
}

// Resume shows an already submitted job. If jobID is empty the newest active
// local session is resumed. A job in a terminal status is rendered without
// polling. If the job can't be fetched the submission form is shown instead.
func (s *Service) Resume(ctx context.Context, jobID string) (*Result, error) {
	if jobID == "" {
		sess, err := s.latestActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not get local sessions: %w", err)
		}
		if sess == nil {
			s.surface.ShowForm("There is no job to resume")
			return &Result{Outcome: OutcomeFellBack}, nil
		}
		jobID = sess.JobID
	}

	logger := s.logger.WithValues(log.Kv{"job-id": jobID})

	snap, err := s.client.Progress(ctx, jobID)
	if err != nil {
		logger.Warningf("Could not resume job: %s", err)
		s.surface.ShowForm(fmt.Sprintf("Could not resume job %s: %s", jobID, err))
		return &Result{JobID: jobID, Outcome: OutcomeFellBack}, nil
	}

	sess, err := s.sessionFor(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.showJob(jobID)
	s.render(ctx, sess, *snap, logger)

	if snap.Terminal() {
		s.finish(ctx, sess, *snap, logger)
		return &Result{JobID: jobID, Outcome: OutcomeCompleted, Status: snap.Status}, nil
	}

	return s.watch(ctx, sess, logger)
}

// Guard checks if the action can be done on the watched job.
func (s *Service) Guard(action gate.Control) error {
	return s.gate.Guard(action)
}

// ReadOnly returns true when the watched job can't be acted upon anymore.
func (s *Service) ReadOnly() bool {
	return s.gate.ReadOnly()
}

func (s *Service) showJob(jobID string) {
	s.logs.Reset()
	s.tracker.Reset(jobID)
	s.surface.ShowJob(jobID)
}

func (s *Service) latestActive(ctx context.Context) (*model.Session, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, ss := range sessions {
		if ss.Active() {
			ss := ss
			return &ss, nil
		}
	}
	return nil, nil
}

// sessionFor returns the local session of the job, creating it when the job
// was submitted somewhere else.
func (s *Service) sessionFor(ctx context.Context, jobID string) (*model.Session, error) {
	sess, err := s.repo.GetSessionByJobID(ctx, jobID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not get session: %w", err)
	}

	now := s.now().UTC()
	newSess := model.Session{
		ID:         s.newID(),
		JobID:      jobID,
		LastStatus: model.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateSession(ctx, newSess); err != nil {
		s.logger.Warningf("Could not store session: %s", err)
	}
	return &newSess, nil
}

type eventKind int

const (
	eventProgress eventKind = iota
	eventError
	eventComplete
)

type event struct {
	kind     eventKind
	snapshot model.ProgressSnapshot
	err      error
}

func (s *Service) watch(ctx context.Context, sess *model.Session, logger log.Logger) (*Result, error) {
	release, err := s.registry.Claim(sess.JobID)
	if err != nil {
		s.surface.ShowError(err)
		return nil, fmt.Errorf("could not watch job: %w", err)
	}
	defer release()

	res := &Result{JobID: sess.JobID, Status: sess.LastStatus}

	events := make(chan event)
	quit := make(chan struct{})
	defer close(quit)
	send := func(e event) {
		select {
		case events <- e:
		case <-quit:
		}
	}

	s.poller.Start(ctx, sess.JobID, poller.Callbacks{
		OnProgress: func(snap model.ProgressSnapshot) { send(event{kind: eventProgress, snapshot: snap}) },
		OnError:    func(err error) { send(event{kind: eventError, err: err}) },
		OnComplete: func(snap model.ProgressSnapshot) { send(event{kind: eventComplete, snapshot: snap}) },
	})
	defer s.poller.Stop()
	done := s.poller.Done()

	for {
		select {
		case <-ctx.Done():
			res.Outcome = OutcomeInterrupted
			return res, ctx.Err()

		case e := <-events:
			switch e.kind {
			case eventProgress:
				s.render(ctx, sess, e.snapshot, logger)
				res.Status = e.snapshot.Status
			case eventError:
				res.LastError = e.err
				logger.Debugf("Progress fetch failed: %s", e.err)
			case eventComplete:
				s.finish(ctx, sess, e.snapshot, logger)
				res.Status = e.snapshot.Status
				res.Outcome = OutcomeCompleted
				return res, nil
			}

		// Sends are unbuffered, every event has been received once the run is done.
		case <-done:
			if ctx.Err() != nil {
				res.Outcome = OutcomeInterrupted
				return res, ctx.Err()
			}
			logger.Warningf("Polling stalled, job state unknown")
			s.surface.ShowStalled(sess.JobID, res.LastError)
			res.Outcome = OutcomeStalled
			return res, nil
		}
	}
}

// render re-renders the surface from the snapshot.
func (s *Service) render(ctx context.Context, sess *model.Session, snap model.ProgressSnapshot, logger log.Logger) {
	view := s.tracker.Apply(snap)

	if !snap.Terminal() {
		s.gate.Enforce(snap.Status)
	}

	if s.logs.Add(snap.Logs) > 0 {
		s.surface.ShowLogs(s.logs.Entries())
	}
	s.surface.ShowProgress(view)

	s.persistStatus(ctx, sess, snap.Status, logger)
}

func (s *Service) finish(ctx context.Context, sess *model.Session, snap model.ProgressSnapshot, logger log.Logger) {
	view := s.tracker.Apply(snap)

	s.gate.Enforce(snap.Status)
	pdfPath, _ := snap.StageDetails[PDFPathDetail].(string)
	s.surface.ShowCompletion(printer.Completion{
		View:         view,
		SendToKindle: sess.SendToKindle,
		KindleEmail:  sess.KindleEmail,
		PDFPath:      pdfPath,
	})

	s.persistStatus(ctx, sess, snap.Status, logger)
	logger.Infof("Job finished with status %q", snap.Status)
}

func (s *Service) persistStatus(ctx context.Context, sess *model.Session, status model.JobStatus, logger log.Logger) {
	if sess.LastStatus == status {
		return
	}

	sess.LastStatus = status
	sess.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSession(ctx, *sess); err != nil {
		logger.Warningf("Could not update session status: %s", err)
	}
}
