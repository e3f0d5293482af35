package model

import (
	"fmt"
	"time"
)

// Session is the local record of a job submitted or watched from this machine.
// It plays the role of the resume reference: it remembers which job is being
// monitored and how it was requested.
type Session struct {
	ID           string
	JobID        string
	Keywords     string
	SendToKindle bool
	KindleEmail  string
	LastStatus   JobStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active returns true if the session job can still progress.
func (s Session) Active() bool { return !s.LastStatus.IsTerminal() }

// Validate validates the session model.
func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required: %w", ErrNotValid)
	}

	if s.JobID == "" {
		return fmt.Errorf("session job id is required: %w", ErrNotValid)
	}

	if s.CreatedAt.IsZero() {
		return fmt.Errorf("created at is required: %w", ErrNotValid)
	}

	return nil
}
