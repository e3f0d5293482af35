package printer

import (
	"github.com/rainpipe/pdfwatch/internal/gate"
	"github.com/rainpipe/pdfwatch/internal/jobview"
	"github.com/rainpipe/pdfwatch/internal/model"
)

// Printer knows how to print job information in different formats.
type Printer interface {
	PrintJobHistory(items []model.HistoryItem) error
	PrintLogs(entries []model.LogEntry) error
	PrintMessage(msg string) error
}

// Completion is the terminal state of a job as shown to the user.
type Completion struct {
	View         jobview.View
	SendToKindle bool
	KindleEmail  string
	PDFPath      string
}

// Surface is where a watched job is rendered. It's driven from a single goroutine.
type Surface interface {
	gate.Target

	// ShowForm shows the submission entry point, reason explains why.
	ShowForm(reason string)
	// ShowError shows a local error (validation, rejected submission...).
	ShowError(err error)
	// ShowJob hides the form and shows the progress surface of the job.
	ShowJob(jobID string)
	ShowProgress(v jobview.View)
	// ShowLogs receives all the known log entries newest first.
	ShowLogs(entries []model.LogEntry)
	ShowCompletion(c Completion)
	// ShowStalled shows that the job state is unknown after polling gave up.
	ShowStalled(jobID string, lastErr error)
}
