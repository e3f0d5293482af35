package printer

import (
	"encoding/json"
	"io"

	"github.com/rainpipe/pdfwatch/internal/gate"
	"github.com/rainpipe/pdfwatch/internal/jobview"
	"github.com/rainpipe/pdfwatch/internal/model"
)

// NDJSONSurface renders a watched job as a stream of JSON events, one per line.
type NDJSONSurface struct {
	enc         *json.Encoder
	err         error
	printedLogs map[string]struct{}
}

var _ Surface = &NDJSONSurface{}

// NewNDJSONSurface returns a new NDJSON surface.
func NewNDJSONSurface(w io.Writer) *NDJSONSurface {
	return &NDJSONSurface{
		enc:         json.NewEncoder(w),
		printedLogs: map[string]struct{}{},
	}
}

// Err returns the first write error, if any.
func (n *NDJSONSurface) Err() error { return n.err }

type surfaceEvent struct {
	Event        string          `json:"event"`
	JobID        string          `json:"job_id,omitempty"`
	Status       string          `json:"status,omitempty"`
	Stage        string          `json:"stage,omitempty"`
	StageLabel   string          `json:"stage_label,omitempty"`
	Percentage   *int            `json:"percentage,omitempty"`
	Metrics      []metricOutput  `json:"metrics,omitempty"`
	Error        *errorOutput    `json:"error,omitempty"`
	Log          *logEntryOutput `json:"log,omitempty"`
	Control      string          `json:"control,omitempty"`
	Enabled      *bool           `json:"enabled,omitempty"`
	Visible      *bool           `json:"visible,omitempty"`
	Message      string          `json:"message,omitempty"`
	SendToKindle *bool           `json:"send_to_kindle,omitempty"`
	KindleEmail  string          `json:"kindle_email,omitempty"`
	PDFPath      string          `json:"pdf_path,omitempty"`
}

type metricOutput struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type errorOutput struct {
	Message string `json:"message"`
	At      string `json:"at,omitempty"`
}

func (n *NDJSONSurface) emit(e surfaceEvent) {
	if n.err != nil {
		return
	}
	n.err = n.enc.Encode(e)
}

func boolPtr(b bool) *bool { return &b }

func (n *NDJSONSurface) SetControl(c gate.Control, enabled, visible bool) {
	n.emit(surfaceEvent{Event: "control", Control: string(c), Enabled: boolPtr(enabled), Visible: boolPtr(visible)})
}

func (n *NDJSONSurface) SetLiveProgressVisible(visible bool) {
	n.emit(surfaceEvent{Event: "live_progress", Visible: boolPtr(visible)})
}

func (n *NDJSONSurface) SetViewOnly(shown bool) {
	n.emit(surfaceEvent{Event: "view_only", Visible: boolPtr(shown)})
}

func (n *NDJSONSurface) ShowForm(reason string) {
	n.emit(surfaceEvent{Event: "form", Message: reason})
}

func (n *NDJSONSurface) ShowError(err error) {
	n.emit(surfaceEvent{Event: "error", Message: err.Error()})
}

func (n *NDJSONSurface) ShowJob(jobID string) {
	n.printedLogs = map[string]struct{}{}
	n.emit(surfaceEvent{Event: "job", JobID: jobID})
}

func (n *NDJSONSurface) ShowProgress(v jobview.View) {
	e := viewEvent("progress", v)
	n.emit(e)
}

func (n *NDJSONSurface) ShowLogs(entries []model.LogEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		key := e.Timestamp + "\x00" + e.Stage + "\x00" + e.Message
		if _, ok := n.printedLogs[key]; ok {
			continue
		}
		n.printedLogs[key] = struct{}{}
		out := toLogEntryOutput(e)
		n.emit(surfaceEvent{Event: "log", Log: &out})
	}
}

func (n *NDJSONSurface) ShowCompletion(c Completion) {
	e := viewEvent("completion", c.View)
	e.SendToKindle = boolPtr(c.SendToKindle)
	e.KindleEmail = c.KindleEmail
	e.PDFPath = c.PDFPath
	n.emit(e)
}

func (n *NDJSONSurface) ShowStalled(jobID string, lastErr error) {
	e := surfaceEvent{Event: "stalled", JobID: jobID}
	if lastErr != nil {
		e.Message = lastErr.Error()
	}
	n.emit(e)
}

func viewEvent(event string, v jobview.View) surfaceEvent {
	pct := v.Percentage
	e := surfaceEvent{
		Event:      event,
		JobID:      v.JobID,
		Status:     string(v.Status),
		Stage:      string(v.Stage),
		StageLabel: v.StageLabel,
		Percentage: &pct,
	}
	for _, m := range v.Metrics {
		e.Metrics = append(e.Metrics, metricOutput{Key: m.Key, Label: m.Label, Value: m.Value})
	}
	if v.Error != nil {
		e.Error = &errorOutput{Message: v.Error.Message, At: v.Error.At}
	}
	return e
}
