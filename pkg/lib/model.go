package lib

import (
	"errors"
	"io"
	"time"

	"github.com/rainpipe/pdfwatch/internal/app/session"
	"github.com/rainpipe/pdfwatch/internal/model"
)

// JobStatus represents the lifecycle state of a PDF generation job.
//
// The typical lifecycle is:
//
//	pending -> processing -> completed
//
// A job can also end as failed or cancelled. Any status other than pending
// and processing is terminal.
type JobStatus string

const (
	// JobStatusPending indicates the job is queued.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates the job is going through the pipeline stages.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the PDF was generated (and sent, if requested).
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job stopped with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled on the service.
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal returns true when the job can't progress anymore.
func (s JobStatus) Terminal() bool { return model.JobStatus(s).IsTerminal() }

// Outcome describes how a watch ended.
type Outcome string

const (
	// OutcomeCompleted means the job reached a terminal status. Check [Result].Status
	// to know if it succeeded.
	OutcomeCompleted Outcome = Outcome(session.OutcomeCompleted)
	// OutcomeStalled means the watch gave up after consecutive failed requests,
	// the job state is unknown.
	OutcomeStalled Outcome = Outcome(session.OutcomeStalled)
	// OutcomeFellBack means the job could not be resumed.
	OutcomeFellBack Outcome = Outcome(session.OutcomeFellBack)
	// OutcomeRejected means the submission was refused locally or by the service.
	OutcomeRejected Outcome = Outcome(session.OutcomeRejected)
	// OutcomeInterrupted means the context was cancelled before the job finished.
	OutcomeInterrupted Outcome = Outcome(session.OutcomeInterrupted)
)

// OutputFormat is the rendering format of a watched job.
type OutputFormat string

const (
	// OutputText renders human readable progress lines.
	OutputText OutputFormat = "text"
	// OutputNDJSON renders one JSON event per line.
	OutputNDJSON OutputFormat = "ndjson"
)

// SubmitOpts are the options for [Client.Submit].
type SubmitOpts struct {
	// Keywords filter the bookmarks (comma separated). Required.
	Keywords string
	// DateStart and DateEnd (YYYY-MM-DD) restrict the bookmarks creation date.
	// Both or none must be set.
	DateStart string
	DateEnd   string
	// SendToKindle sends the generated PDF to KindleEmail.
	SendToKindle bool
	KindleEmail  string
}

// WatchOpts configures how a watched job is rendered. A nil *WatchOpts
// discards the rendering.
type WatchOpts struct {
	// Output receives the rendering of the job.
	Output io.Writer
	// Format is the rendering format. Default: [OutputText].
	Format OutputFormat
}

// Result is the result of submitting or watching a job.
type Result struct {
	// JobID is the watched job, empty if nothing was submitted.
	JobID string
	// Outcome describes how the watch ended.
	Outcome Outcome
	// Status is the last known job status, empty if never fetched.
	Status JobStatus
	// LastError is the last failed progress request, set on stalled watches.
	LastError error
}

// Job is a job listed by the job history.
type Job struct {
	// ID is the job UUID assigned by the PDF service.
	ID            string
	Keywords      string
	CreatedAt     time.Time
	Status        JobStatus
	BookmarkCount int
	Duration      time.Duration
	// PDFPath is empty until the PDF is generated.
	PDFPath string
	// Current is true for the job watched from this machine.
	Current bool
	// ViewOnly is true when the job can't be acted upon anymore.
	ViewOnly bool
}

// LogEntry is a line of a job execution log.
type LogEntry struct {
	// Timestamp is the Unix epoch when the service sent an unparsable value.
	Timestamp time.Time
	Stage     string
	Message   string
	// EventType is one of info, warning, error, retry or stage_update.
	EventType string
}

// Errors returned by the SDK, use [errors.Is] to check them.
var (
	// ErrNotFound is returned when a job or a watch session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when the job is already being watched by the client.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned on invalid input, like an empty keyword phrase.
	ErrNotValid = errors.New("not valid")
	// ErrRejected is returned when the PDF service refuses a submission.
	ErrRejected = errors.New("rejected")
	// ErrTransport is returned when the PDF service can't be reached or answers with an error status.
	ErrTransport = errors.New("transport error")
	// ErrProtocol is returned when the PDF service answers with a malformed payload.
	ErrProtocol = errors.New("protocol error")
)

func fromInternalResult(r *session.Result) *Result {
	if r == nil {
		return nil
	}
	return &Result{
		JobID:     r.JobID,
		Outcome:   Outcome(r.Outcome),
		Status:    JobStatus(r.Status),
		LastError: mapError(r.LastError),
	}
}

func fromInternalHistory(items []model.HistoryItem) []Job {
	jobs := make([]Job, len(items))
	for i, it := range items {
		jobs[i] = Job{
			ID:            it.Record.UUID,
			Keywords:      it.Record.Keywords,
			CreatedAt:     it.Record.CreatedAt,
			Status:        JobStatus(it.Record.Status),
			BookmarkCount: it.Record.BookmarkCount,
			Duration:      time.Duration(it.Record.DurationSeconds * float64(time.Second)),
			PDFPath:       it.Record.PDFPath,
			Current:       it.Current,
			ViewOnly:      it.ViewOnly,
		}
	}
	return jobs
}

func fromInternalLogs(entries []model.LogEntry) []LogEntry {
	logs := make([]LogEntry, len(entries))
	for i, e := range entries {
		logs[i] = LogEntry{
			Timestamp: e.Time(),
			Stage:     e.Stage,
			Message:   e.Message,
			EventType: string(e.EventType),
		}
	}
	return logs
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case errors.Is(err, model.ErrRejected):
		return joinErrors(err, ErrRejected)
	case errors.Is(err, model.ErrProtocol):
		return joinErrors(err, ErrProtocol)
	case errors.Is(err, model.ErrTransport):
		return joinErrors(err, ErrTransport)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
