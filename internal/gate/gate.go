package gate

import (
	"fmt"
	"sync"

	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
)

// Mode is the gate state of a job.
type Mode string

const (
	// ModeActive allows acting on the job.
	ModeActive Mode = "active"
	// ModeLocked makes the job view only.
	ModeLocked Mode = "locked"
)

// Control is a write-like action on a job.
type Control string

const (
	ControlCancel     Control = "cancel"
	ControlRetry      Control = "retry"
	ControlRegenerate Control = "regenerate"
)

// Controls are all the mutating controls handled by the gate.
var Controls = []Control{ControlCancel, ControlRetry, ControlRegenerate}

// ModeOf returns the gate mode of a status. Only pending and processing jobs
// are active, anything else is locked.
func ModeOf(status model.JobStatus) Mode {
	if status.IsTerminal() {
		return ModeLocked
	}
	return ModeActive
}

// CanRegenerate returns true if the job with the status can still be acted upon.
func CanRegenerate(status model.JobStatus) bool {
	return ModeOf(status) == ModeActive
}

// Guard returns model.ErrReadOnly if the action is not allowed for the status.
func Guard(status model.JobStatus, action Control) error {
	if ModeOf(status) == ModeLocked {
		return fmt.Errorf("can't %s a %s job: %w", action, status, model.ErrReadOnly)
	}
	return nil
}

// Target is where the gate state is applied.
type Target interface {
	SetControl(c Control, enabled, visible bool)
	SetLiveProgressVisible(visible bool)
	SetViewOnly(shown bool)
}

// Config is the gate configuration.
type Config struct {
	Target Target
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Target == nil {
		return fmt.Errorf("target is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "gate.Gate"})

	return nil
}

// Gate applies the read only state of a job to a target.
type Gate struct {
	target Target
	logger log.Logger

	mu      sync.Mutex
	applied bool
	last    model.JobStatus
}

// New returns a new gate.
func New(cfg Config) (*Gate, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Gate{
		target: cfg.Target,
		logger: cfg.Logger,
	}, nil
}

// Enforce applies the mode of the status to the target. Applying the same
// status twice in a row doesn't touch the target.
func (g *Gate) Enforce(status model.JobStatus) Mode {
	g.mu.Lock()
	defer g.mu.Unlock()

	mode := ModeOf(status)
	if g.applied && g.last == status {
		return mode
	}

	active := mode == ModeActive
	for _, c := range Controls {
		g.target.SetControl(c, active, active)
	}
	g.target.SetLiveProgressVisible(active)
	g.target.SetViewOnly(!active)

	g.applied = true
	g.last = status
	g.logger.Debugf("Gate %s for status %q", mode, status)

	return mode
}

// Status returns the last applied status.
func (g *Gate) Status() model.JobStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.last
}

// ReadOnly returns true if the last applied status is locked.
func (g *Gate) ReadOnly() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.applied && ModeOf(g.last) == ModeLocked
}

// Guard checks the action against the last applied status.
func (g *Gate) Guard(action Control) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.applied {
		return nil
	}
	return Guard(g.last, action)
}
