package pdfwatch_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainpipe/pdfwatch/internal/devserver"
	intpdfwatch "github.com/rainpipe/pdfwatch/test/integration/pdfwatch"
)

// event matches the NDJSON output of `pdfwatch generate --format ndjson`.
type event struct {
	Event      string `json:"event"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Percentage *int   `json:"percentage"`
	Message    string `json:"message"`
	PDFPath    string `json:"pdf_path"`
}

// historyItem matches the JSON output of `pdfwatch history --format json`.
type historyItem struct {
	JobID         string `json:"job_id"`
	Keywords      string `json:"keywords"`
	Status        string `json:"status"`
	BookmarkCount int    `json:"bookmark_count"`
	PDFPath       string `json:"pdf_path"`
	Current       bool   `json:"current"`
	ViewOnly      bool   `json:"view_only"`
}

// logEntry matches the JSON output of `pdfwatch logs --format json`.
type logEntry struct {
	Timestamp string `json:"timestamp"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	EventType string `json:"event_type"`
}

func parseEvents(t *testing.T, out []byte) []event {
	t.Helper()

	var events []event
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		var e event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), "line: %s", sc.Text())
		events = append(events, e)
	}
	require.NoError(t, sc.Err())

	return events
}

func eventsOf(events []event, name string) []event {
	var res []event
	for _, e := range events {
		if e.Event == name {
			res = append(res, e)
		}
	}
	return res
}

func TestIntegrationGenerateAndWatch(t *testing.T) {
	config := intpdfwatch.NewConfig(t)

	tests := map[string]struct {
		keywords   string
		extra      []string
		expErr     bool
		expStatus  string
		expPDFPath string
	}{
		"Generating a PDF should be watched until it's completed.": {
			keywords:   "golang, rust",
			expStatus:  "completed",
			expPDFPath: "/pdfs/job-1.pdf",
		},

		"Generating and sending a PDF should be watched until it's completed.": {
			keywords:   "golang",
			extra:      []string{"--send-to-kindle", "--kindle-email", "me@kindle.com"},
			expStatus:  "completed",
			expPDFPath: "/pdfs/job-1.pdf",
		},

		"A failing job should make the command fail.": {
			keywords:  "broken",
			expErr:    true,
			expStatus: "failed",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			env := intpdfwatch.NewEnv(t, config, devserver.Config{
				NewJobID:    func() string { return "job-1" },
				FailKeyword: "broken",
			})

			stdout, stderr, err := env.RunGenerate(ctx, test.keywords, test.extra...)
			if test.expErr {
				assert.Error(err)
			} else {
				require.NoError(err, "stderr: %s", stderr)
			}

			events := parseEvents(t, stdout)
			require.NotEmpty(events)

			jobs := eventsOf(events, "job")
			require.Len(jobs, 1)
			assert.Equal("job-1", jobs[0].JobID)

			// Percentages never go backwards.
			last := 0
			for _, e := range eventsOf(events, "progress") {
				require.NotNil(e.Percentage)
				assert.GreaterOrEqual(*e.Percentage, last)
				last = *e.Percentage
			}

			completions := eventsOf(events, "completion")
			require.Len(completions, 1)
			assert.Equal(test.expStatus, completions[0].Status)
			assert.Equal(test.expPDFPath, completions[0].PDFPath)

			// A finished job is view only.
			viewOnly := eventsOf(events, "view_only")
			assert.NotEmpty(viewOnly)

			// Resuming a finished job shows the same final state without polling again.
			before := env.Server.ProgressRequests("job-1")
			stdout, stderr, err = env.RunWatch(ctx, "job-1")
			if test.expErr {
				assert.Error(err)
			} else {
				require.NoError(err, "stderr: %s", stderr)
			}
			completions = eventsOf(parseEvents(t, stdout), "completion")
			require.Len(completions, 1)
			assert.Equal(test.expStatus, completions[0].Status)
			assert.Equal(before+1, env.Server.ProgressRequests("job-1"))
		})
	}
}

func TestIntegrationGenerateInvalid(t *testing.T) {
	config := intpdfwatch.NewConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env := intpdfwatch.NewEnv(t, config, devserver.Config{})

	stdout, _, err := env.RunGenerate(ctx, "golang!")
	assert.Error(t, err)

	errs := eventsOf(parseEvents(t, stdout), "error")
	assert.Len(t, errs, 1)
	assert.Equal(t, 0, env.Server.JobCount())
}

func TestIntegrationWatchWithoutJobs(t *testing.T) {
	config := intpdfwatch.NewConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env := intpdfwatch.NewEnv(t, config, devserver.Config{})

	stdout, stderr, err := env.RunWatch(ctx, "")
	require.NoError(t, err, "stderr: %s", stderr)

	forms := eventsOf(parseEvents(t, stdout), "form")
	require.Len(t, forms, 1)
	assert.Equal(t, "There is no job to resume", forms[0].Message)
}

func TestIntegrationHistoryAndLogs(t *testing.T) {
	config := intpdfwatch.NewConfig(t)
	require := require.New(t)
	assert := assert.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	ids := []string{"job-1", "job-2"}
	env := intpdfwatch.NewEnv(t, config, devserver.Config{
		NewJobID: func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		},
	})

	_, stderr, err := env.RunGenerate(ctx, "golang")
	require.NoError(err, "stderr: %s", stderr)
	_, stderr, err = env.RunGenerate(ctx, "rust")
	require.NoError(err, "stderr: %s", stderr)

	// History.
	stdout, stderr, err := env.RunHistory(ctx)
	require.NoError(err, "stderr: %s", stderr)

	var items []historyItem
	require.NoError(json.Unmarshal(stdout, &items))
	require.Len(items, 2)
	assert.Equal("job-2", items[0].JobID)
	assert.Equal("rust", items[0].Keywords)
	assert.Equal("job-1", items[1].JobID)
	for _, it := range items {
		assert.Equal("completed", it.Status)
		assert.Equal(42, it.BookmarkCount)
		assert.True(it.ViewOnly)
		assert.False(it.Current)
	}

	// Logs.
	stdout, stderr, err = env.RunLogs(ctx, "job-1")
	require.NoError(err, "stderr: %s", stderr)

	var logs []logEntry
	require.NoError(json.Unmarshal(stdout, &logs))
	require.NotEmpty(logs)
	assert.Equal("PDF generated", logs[0].Message)
	for i := 1; i < len(logs); i++ {
		prev, err := time.Parse(time.RFC3339Nano, logs[i-1].Timestamp)
		require.NoError(err)
		cur, err := time.Parse(time.RFC3339Nano, logs[i].Timestamp)
		require.NoError(err)
		assert.False(cur.After(prev), "logs should be newest first")
	}
}
