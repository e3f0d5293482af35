package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/rainpipe/pdfwatch/internal/gate"
	"github.com/rainpipe/pdfwatch/internal/jobview"
	"github.com/rainpipe/pdfwatch/internal/model"
)

// TerminalSurface renders a watched job as human readable text lines.
// Progress is only printed when it changes and every log entry is printed once.
type TerminalSurface struct {
	w io.Writer

	liveProgress bool
	viewOnly     bool
	controls     map[gate.Control]bool
	lastProgress string
	printedLogs  map[string]struct{}
}

var _ Surface = &TerminalSurface{}

// NewTerminalSurface returns a new terminal surface.
func NewTerminalSurface(w io.Writer) *TerminalSurface {
	return &TerminalSurface{
		w:           w,
		controls:    map[gate.Control]bool{},
		printedLogs: map[string]struct{}{},
	}
}

func (t *TerminalSurface) SetControl(c gate.Control, enabled, visible bool) {
	t.controls[c] = enabled && visible
}

func (t *TerminalSurface) SetLiveProgressVisible(visible bool) { t.liveProgress = visible }

func (t *TerminalSurface) SetViewOnly(shown bool) {
	if shown && !t.viewOnly {
		fmt.Fprintln(t.w, "View only: the job already finished, it can't be cancelled, retried or regenerated")
	}
	t.viewOnly = shown
}

// ControlEnabled returns true if the control can be used.
func (t *TerminalSurface) ControlEnabled(c gate.Control) bool { return t.controls[c] }

func (t *TerminalSurface) ShowForm(reason string) {
	if reason != "" {
		fmt.Fprintf(t.w, "%s\n", reason)
	}
	fmt.Fprintln(t.w, "Submit a new job with: pdfwatch generate --keywords <keywords>")
}

func (t *TerminalSurface) ShowError(err error) {
	fmt.Fprintf(t.w, "Error: %s\n", err)
}

func (t *TerminalSurface) ShowJob(jobID string) {
	t.liveProgress = true
	t.lastProgress = ""
	t.printedLogs = map[string]struct{}{}
	fmt.Fprintf(t.w, "Watching job %s\n", jobID)
}

func (t *TerminalSurface) ShowProgress(v jobview.View) {
	if !t.liveProgress {
		return
	}

	line := progressLine(v)
	if line == t.lastProgress {
		return
	}
	t.lastProgress = line
	fmt.Fprintln(t.w, line)

	if v.Error != nil {
		fmt.Fprintf(t.w, "  %s\n", errorLine(*v.Error))
	}
}

func (t *TerminalSurface) ShowLogs(entries []model.LogEntry) {
	// Entries come newest first, new ones are printed in chronological order.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		key := e.Timestamp + "\x00" + e.Stage + "\x00" + e.Message
		if _, ok := t.printedLogs[key]; ok {
			continue
		}
		t.printedLogs[key] = struct{}{}
		fmt.Fprintf(t.w, "  %s  %-16s %-5s %s\n", e.Timestamp, stageName(e.Stage), eventTag(e.EventType), e.Message)
	}
}

func (t *TerminalSurface) ShowCompletion(c Completion) {
	v := c.View
	switch v.Status {
	case model.JobStatusCompleted:
		fmt.Fprintf(t.w, "PDF generation complete for job %s\n", v.JobID)
		switch {
		case c.SendToKindle && c.KindleEmail != "":
			fmt.Fprintf(t.w, "Email sent to %s\n", c.KindleEmail)
		case !c.SendToKindle && c.PDFPath != "":
			fmt.Fprintf(t.w, "Download PDF: %s\n", c.PDFPath)
		}
	case model.JobStatusFailed:
		fmt.Fprintf(t.w, "PDF generation failed for job %s\n", v.JobID)
		ev := jobview.ErrorView{Message: jobview.DefaultErrorMessage}
		if v.Error != nil {
			ev = *v.Error
		}
		fmt.Fprintf(t.w, "  %s\n", errorLine(ev))
	case model.JobStatusCancelled:
		fmt.Fprintf(t.w, "Job %s was cancelled\n", v.JobID)
	default:
		fmt.Fprintf(t.w, "Job %s finished with status %s\n", v.JobID, v.Status)
	}
}

func (t *TerminalSurface) ShowStalled(jobID string, lastErr error) {
	msg := fmt.Sprintf("Lost contact with the PDF service, job %s state is unknown", jobID)
	if lastErr != nil {
		msg += fmt.Sprintf(" (%s)", lastErr)
	}
	fmt.Fprintln(t.w, msg)
	fmt.Fprintf(t.w, "Resume later with: pdfwatch watch %s\n", jobID)
}

func progressLine(v jobview.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%3d%%] %s", v.Percentage, v.StageLabel)
	for _, m := range v.Metrics {
		fmt.Fprintf(&b, " | %s: %s", m.Label, m.Value)
	}
	return b.String()
}

func errorLine(e jobview.ErrorView) string {
	if e.At == "" {
		return "Error: " + e.Message
	}
	return fmt.Sprintf("Error: %s (Error at: %s)", e.Message, e.At)
}
