package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rainpipe/pdfwatch/internal/model"
)

// JSONPrinter prints job information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type historyItemOutput struct {
	JobID           string     `json:"job_id"`
	Keywords        string     `json:"keywords"`
	CreatedAt       *time.Time `json:"created_at"`
	Status          string     `json:"status"`
	BookmarkCount   int        `json:"bookmark_count"`
	DurationSeconds float64    `json:"duration_seconds"`
	PDFPath         string     `json:"pdf_path,omitempty"`
	Current         bool       `json:"current"`
	ViewOnly        bool       `json:"view_only"`
}

type logEntryOutput struct {
	Timestamp string `json:"timestamp"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	EventType string `json:"event_type"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintJobHistory prints the job history in JSON format.
func (j *JSONPrinter) PrintJobHistory(items []model.HistoryItem) error {
	out := make([]historyItemOutput, 0, len(items))
	for _, it := range items {
		r := it.Record
		var createdAt *time.Time
		if !r.CreatedAt.IsZero() {
			t := r.CreatedAt.UTC()
			createdAt = &t
		}
		out = append(out, historyItemOutput{
			JobID:           r.UUID,
			Keywords:        r.Keywords,
			CreatedAt:       createdAt,
			Status:          string(r.Status),
			BookmarkCount:   r.BookmarkCount,
			DurationSeconds: r.DurationSeconds,
			PDFPath:         r.PDFPath,
			Current:         it.Current,
			ViewOnly:        it.ViewOnly,
		})
	}

	return j.encode(out)
}

// PrintLogs prints job log entries in JSON format.
func (j *JSONPrinter) PrintLogs(entries []model.LogEntry) error {
	out := make([]logEntryOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLogEntryOutput(e))
	}

	return j.encode(out)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toLogEntryOutput(e model.LogEntry) logEntryOutput {
	et := e.EventType
	if et == "" {
		et = model.EventTypeInfo
	}
	return logEntryOutput{
		Timestamp: e.Timestamp,
		Stage:     e.Stage,
		Message:   e.Message,
		EventType: string(et),
	}
}
