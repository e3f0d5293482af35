package jobview

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rainpipe/pdfwatch/internal/model"
)

// DefaultErrorMessage is shown when a job error has no message.
const DefaultErrorMessage = "An error occurred"

var stageLabels = map[model.Stage]string{
	model.StageFiltering:       "Filtering bookmarks",
	model.StageContentFetching: "Fetching content",
	model.StageSummarization:   "Generating summaries",
	model.StagePDFGeneration:   "Generating PDF",
	model.StageEmailSending:    "Sending to Kindle",
}

type metricDef struct {
	key    string
	label  string
	format func(v any) string
}

// metricDefs is the ordered allow-list of displayed stage details.
var metricDefs = []metricDef{
	{key: "keywords", label: "Keywords", format: formatValue},
	{key: "bookmark_count", label: "Total Bookmarks", format: formatValue},
	{key: "bookmarks_retrieved", label: "Retrieved", format: formatValue},
	{key: "bookmarks_with_content", label: "With Content", format: formatValue},
	{key: "bookmarks_summarized", label: "Summarized", format: formatValue},
	{key: "cluster_count", label: "Topic Clusters", format: formatValue},
	{key: "file_size_mb", label: "File Size", format: formatMegabytes},
	{key: "page_count", label: "Pages", format: formatValue},
}

// Metric is a displayable stage detail.
type Metric struct {
	Key   string
	Label string
	Value string
}

// ErrorView is the displayable job error.
type ErrorView struct {
	Message string
	// At is the timestamp of the most recent log entry, empty if there are no logs.
	At string
}

// View is the displayable state of a job derived from a progress snapshot.
type View struct {
	JobID      string
	Status     model.JobStatus
	Stage      model.Stage
	StageLabel string
	Percentage int
	Metrics    []Metric
	Error      *ErrorView
	Terminal   bool
}

// StageLabel returns the human label of a stage, unknown stages are returned as they are.
func StageLabel(s model.Stage) string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Derive derives the view of a snapshot. It has no side effects.
func Derive(s model.ProgressSnapshot) View {
	v := View{
		JobID:      s.JobID,
		Status:     s.Status,
		Stage:      s.CurrentStage,
		StageLabel: StageLabel(s.CurrentStage),
		Percentage: clampPercentage(s.CurrentPercentage),
		Metrics:    metrics(s.StageDetails),
		Terminal:   s.Terminal(),
	}

	if s.ErrorInfo != nil {
		msg := s.ErrorInfo.Message
		if msg == "" {
			msg = DefaultErrorMessage
		}
		v.Error = &ErrorView{
			Message: msg,
			At:      latestTimestamp(s.Logs),
		}
	}

	return v
}

func clampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func metrics(details map[string]any) []Metric {
	if len(details) == 0 {
		return nil
	}

	var ms []Metric
	for _, d := range metricDefs {
		v, ok := details[d.key]
		if !ok {
			continue
		}
		ms = append(ms, Metric{Key: d.key, Label: d.label, Value: d.format(v)})
	}
	return ms
}

func latestTimestamp(logs []model.LogEntry) string {
	if len(logs) == 0 {
		return ""
	}

	latest := logs[0]
	latestT := latest.Time()
	for _, l := range logs[1:] {
		if t := l.Time(); t.After(latestT) {
			latest, latestT = l, t
		}
	}
	return latest.Timestamp
}

func formatValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case int:
		return strconv.Itoa(vv)
	default:
		return fmt.Sprintf("%v", vv)
	}
}

func formatMegabytes(v any) string {
	var f float64
	switch vv := v.(type) {
	case float64:
		f = vv
	case int:
		f = float64(vv)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(vv), 64)
		if err != nil {
			return vv + " MB"
		}
		f = parsed
	default:
		return formatValue(v) + " MB"
	}
	return strconv.FormatFloat(f, 'f', 2, 64) + " MB"
}

// Tracker derives views keeping the displayed percentage of each job from
// ever decreasing. Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	high map[string]int
}

// NewTracker returns a new tracker.
func NewTracker() *Tracker {
	return &Tracker{high: map[string]int{}}
}

// Apply derives the view of the snapshot with the monotonic percentage clamp applied.
func (t *Tracker) Apply(s model.ProgressSnapshot) View {
	v := Derive(s)

	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.high[s.JobID]; ok && v.Percentage < h {
		v.Percentage = h
		return v
	}
	t.high[s.JobID] = v.Percentage

	return v
}

// Reset forgets the tracked percentage of a job.
func (t *Tracker) Reset(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.high, jobID)
}
