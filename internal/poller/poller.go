package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
)

const (
	// DefaultInterval is the delay between two successful progress fetches.
	DefaultInterval = time.Second
	// DefaultMaxRetries is the number of consecutive failures that stops the polling.
	DefaultMaxRetries = 10
)

// Fetcher fetches the progress snapshot of a job.
type Fetcher interface {
	Progress(ctx context.Context, jobID string) (*model.ProgressSnapshot, error)
}

// Callbacks are the notifications emitted by a polling run. All of them are optional.
type Callbacks struct {
	// OnProgress is called with every successfully fetched snapshot, terminal included.
	OnProgress func(snapshot model.ProgressSnapshot)
	// OnError is called on every failed fetch.
	OnError func(err error)
	// OnComplete is called once, after OnProgress, when a terminal snapshot is received.
	OnComplete func(snapshot model.ProgressSnapshot)
}

// Config is the poller configuration.
type Config struct {
	Fetcher Fetcher
	// Interval is the delay after a successful non terminal fetch.
	Interval time.Duration
	// Backoff is the delay schedule after failures, indexed by min(retries-1, len-1).
	Backoff []time.Duration
	// MaxRetries is the consecutive failure ceiling.
	MaxRetries int
	// After is the timer source, time.After if not set.
	After  func(d time.Duration) <-chan time.Time
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}

	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval can't be negative")
	}

	if len(c.Backoff) == 0 {
		c.Backoff = DefaultBackoff
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries can't be negative")
	}

	if c.After == nil {
		c.After = time.After
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "poller.Poller"})

	return nil
}

// Poller polls the progress of a single job at a time.
//
// Every run owns one goroutine with at most one fetch in flight, snapshots are
// delivered in request order. Callbacks are called from the run goroutine.
type Poller struct {
	fetcher    Fetcher
	interval   time.Duration
	backoff    []time.Duration
	maxRetries int
	after      func(d time.Duration) <-chan time.Time
	logger     log.Logger

	mu      sync.Mutex
	run     *run
	current *model.ProgressSnapshot
}

// New returns a new poller.
func New(cfg Config) (*Poller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Poller{
		fetcher:    cfg.Fetcher,
		interval:   cfg.Interval,
		backoff:    cfg.Backoff,
		maxRetries: cfg.MaxRetries,
		after:      cfg.After,
		logger:     cfg.Logger,
	}, nil
}

// run is a single polling session. A stopped run never dispatches callbacks again.
type run struct {
	jobID     string
	alive     atomic.Bool
	exhausted atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

func (r *run) halt() {
	r.alive.Store(false)
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) running() bool {
	select {
	case <-r.done:
		return false
	default:
		return r.alive.Load()
	}
}

// Start starts polling the job immediately. If the poller is already polling
// it's a no-op.
func (p *Poller) Start(ctx context.Context, jobID string, cb Callbacks) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != nil && p.run.running() {
		p.logger.Warningf("Polling already in progress for job %s, ignoring start of %s", p.run.jobID, jobID)
		return
	}

	if p.current != nil && p.current.JobID != jobID {
		p.current = nil
	}

	r := &run{
		jobID: jobID,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	r.alive.Store(true)
	p.run = r

	logger := p.logger.WithValues(log.Kv{"job-id": jobID})
	logger.Debugf("Polling started")

	go p.loop(ctx, r, cb, logger)
}

// Stop stops the current run, idempotent. A fetch already in flight is not
// aborted but its result is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run == nil {
		return
	}
	p.run.halt()
}

// Polling returns true while a run is active.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.run != nil && p.run.running()
}

// CurrentProgress returns the last successfully fetched snapshot, nil if none.
func (p *Poller) CurrentProgress() *model.ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	c := *p.current
	return &c
}

// Done returns a channel closed when the current run loop exits. If the poller
// never started the channel is already closed.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.run.done
}

// Exhausted returns true when the last run ended because of the retry ceiling.
func (p *Poller) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.run != nil && p.run.exhausted.Load()
}

// setCurrent stores the snapshot fetched by the run. It returns false, storing
// nothing, when the run was stopped or replaced by a newer one.
func (p *Poller) setCurrent(r *run, s *model.ProgressSnapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != r || !r.alive.Load() {
		return false
	}
	p.current = s
	return true
}

func (p *Poller) loop(ctx context.Context, r *run, cb Callbacks, logger log.Logger) {
	defer close(r.done)
	defer r.alive.Store(false)

	retries := 0
	for {
		snap, err := p.fetcher.Progress(ctx, r.jobID)

		// Stopped while the fetch was in flight.
		if !r.alive.Load() || ctx.Err() != nil {
			logger.Debugf("Polling stopped, discarding fetch result")
			return
		}

		var delay time.Duration
		if err != nil {
			retries++
			if cb.OnError != nil && r.alive.Load() {
				cb.OnError(err)
			}

			if retries >= p.maxRetries {
				r.exhausted.Store(true)
				logger.Errorf("Max retries (%d) reached, polling stopped: %s", p.maxRetries, err)
				return
			}

			delay = backoffDelay(p.backoff, retries)
			logger.Warningf("Retry %d/%d after %s: %s", retries, p.maxRetries, delay, err)
		} else {
			retries = 0
			if !p.setCurrent(r, snap) {
				logger.Debugf("Polling stopped, discarding fetch result")
				return
			}

			if cb.OnProgress != nil && r.alive.Load() {
				cb.OnProgress(*snap)
			}

			if snap.Terminal() {
				logger.Debugf("Job reached terminal status %q", snap.Status)
				if cb.OnComplete != nil && r.alive.Load() {
					cb.OnComplete(*snap)
				}
				return
			}

			delay = p.interval
		}

		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-p.after(delay):
		}

		if !r.alive.Load() {
			return
		}
	}
}
