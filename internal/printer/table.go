package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rainpipe/pdfwatch/internal/model"
)

// TablePrinter prints job information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintJobHistory prints the job history in a table format.
func (t *TablePrinter) PrintJobHistory(items []model.HistoryItem) error {
	if len(items) == 0 {
		fmt.Fprintln(t.writer, "No jobs found")
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "JOB ID\tKEYWORDS\tDATE\tSTATUS\tBOOKMARKS\tDURATION\tPDF")

	for _, it := range items {
		r := it.Record
		status := string(r.Status)
		if it.Current {
			status += " (In Progress)"
		}
		if it.ViewOnly {
			status += " [view only]"
		}
		pdf := r.PDFPath
		if pdf == "" {
			pdf = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.UUID,
			r.Keywords,
			FormatDate(r.CreatedAt),
			status,
			r.BookmarkCount,
			FormatDurationMinutes(r.DurationSeconds),
			pdf,
		)
	}

	return nil
}

// PrintLogs prints job log entries, in the received order.
func (t *TablePrinter) PrintLogs(entries []model.LogEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(t.writer, "No logs found")
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TIMESTAMP\tAGE\tSTAGE\tLEVEL\tMESSAGE")
	for _, e := range entries {
		ts, age := logTime(e)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ts, age, stageName(e.Stage), eventTag(e.EventType), e.Message)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

// logTime returns the display timestamp and age of an entry. Unparsable
// timestamps are shown as received.
func logTime(e model.LogEntry) (ts, age string) {
	t := e.Time()
	if t.Unix() == 0 {
		if e.Timestamp == "" {
			return "-", "-"
		}
		return e.Timestamp, "-"
	}
	return FormatTimestamp(t), TimeAgo(t)
}

func stageName(stage string) string {
	if stage == "" {
		return "unknown"
	}
	return stage
}

// eventTag returns the display tag of an event type, unknown types are shown as info.
func eventTag(et model.EventType) string {
	switch et {
	case model.EventTypeError:
		return "ERROR"
	case model.EventTypeWarning:
		return "WARN"
	case model.EventTypeRetry:
		return "RETRY"
	default:
		return "INFO"
	}
}
