package model

import "time"

// JobStatus is the lifecycle status of a PDF generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal returns true when no further transition can happen from the status.
// Anything that is not pending or processing is terminal, unknown values included.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing:
		return false
	default:
		return true
	}
}

// Stage is a step of the PDF generation pipeline.
type Stage string

const (
	StageFiltering       Stage = "filtering"
	StageContentFetching Stage = "content_fetching"
	StageSummarization   Stage = "summarization"
	StagePDFGeneration   Stage = "pdf_generation"
	StageEmailSending    Stage = "email_sending"
)

// Stages are the pipeline stages in execution order.
var Stages = []Stage{
	StageFiltering,
	StageContentFetching,
	StageSummarization,
	StagePDFGeneration,
	StageEmailSending,
}

// EventType classifies a job log entry.
type EventType string

const (
	EventTypeInfo        EventType = "info"
	EventTypeWarning     EventType = "warning"
	EventTypeError       EventType = "error"
	EventTypeRetry       EventType = "retry"
	EventTypeStageUpdate EventType = "stage_update"
)

// LogEntry is a single line of a job execution log.
//
// Timestamp is kept as received: the server sends ISO 8601 strings but nothing
// guarantees they are present or parseable.
type LogEntry struct {
	Timestamp string
	Stage     string
	Message   string
	EventType EventType
}

// Time returns the parsed timestamp, zero time (epoch) when it is missing or unparsable.
func (l LogEntry) Time() time.Time {
	return ParseTimestamp(l.Timestamp)
}

// ErrorInfo is the job-domain error reported by the server.
type ErrorInfo struct {
	Message string
	Status  string
}

// ProgressSnapshot is a point-in-time progress report of a job.
type ProgressSnapshot struct {
	JobID             string
	Status            JobStatus
	CurrentStage      Stage
	CurrentPercentage int
	// StageDetails values are float64, string, bool or nil (decoded JSON).
	StageDetails map[string]any
	ErrorInfo    *ErrorInfo
	Logs         []LogEntry
}

// Terminal returns true if the snapshot reports a terminal status.
func (p ProgressSnapshot) Terminal() bool { return p.Status.IsTerminal() }

// JobRecord is the summary of a job as listed by the job history.
type JobRecord struct {
	UUID            string
	Keywords        string
	CreatedAt       time.Time
	Status          JobStatus
	BookmarkCount   int
	DurationSeconds float64
	PDFPath         string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses the timestamp formats used by the PDF service.
// Returns the Unix epoch when the value can't be parsed.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC()
		}
	}
	return time.Unix(0, 0).UTC()
}

// HistoryItem is a job history entry as shown to the user.
type HistoryItem struct {
	Record JobRecord
	// Current is true for the job monitored by the local session.
	Current bool
	// ViewOnly is true when the job can't be acted upon anymore.
	ViewOnly bool
}
