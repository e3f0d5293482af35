package lib_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainpipe/pdfwatch/internal/devserver"
	"github.com/rainpipe/pdfwatch/pkg/lib"
)

// newTestClient creates a client against a simulated PDF service with a temp
// SQLite DB for test isolation.
func newTestClient(t *testing.T, devCfg devserver.Config) *lib.Client {
	t.Helper()

	dev, err := devserver.New(devCfg)
	require.NoError(t, err)
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	client, err := lib.New(context.Background(), lib.Config{
		APIURL:       srv.URL,
		DataDir:      t.TempDir(),
		DBPath:       filepath.Join(t.TempDir(), "test.db"),
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    lib.Config
		expErr bool
	}{
		"A valid config should work.": {
			cfg: lib.Config{APIURL: "http://127.0.0.1:4567"},
		},

		"A negative poll interval should fail.": {
			cfg:    lib.Config{PollInterval: -time.Second},
			expErr: true,
		},

		"An invalid API URL should fail.": {
			cfg:    lib.Config{APIURL: "127.0.0.1"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test.cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
			client, err := lib.New(context.Background(), test.cfg)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func TestSubmit(t *testing.T) {
	tests := map[string]struct {
		opts      lib.SubmitOpts
		expResult *lib.Result
		expErr    bool
		expIs     error
	}{
		"Submitting a valid generation should watch it until completed.": {
			opts: lib.SubmitOpts{Keywords: "golang, rust"},
			expResult: &lib.Result{
				JobID:   "job-1",
				Outcome: lib.OutcomeCompleted,
				Status:  lib.JobStatusCompleted,
			},
		},

		"Submitting with kindle should watch it until completed.": {
			opts: lib.SubmitOpts{Keywords: "golang", SendToKindle: true, KindleEmail: "me@kindle.com"},
			expResult: &lib.Result{
				JobID:   "job-1",
				Outcome: lib.OutcomeCompleted,
				Status:  lib.JobStatusCompleted,
			},
		},

		"A failing job should end with the failed status.": {
			opts: lib.SubmitOpts{Keywords: "broken"},
			expResult: &lib.Result{
				JobID:   "job-1",
				Outcome: lib.OutcomeCompleted,
				Status:  lib.JobStatusFailed,
			},
		},

		"Empty keywords should be rejected without calling the service.": {
			opts:      lib.SubmitOpts{Keywords: "  "},
			expResult: &lib.Result{Outcome: lib.OutcomeRejected},
			expErr:    true,
			expIs:     lib.ErrNotValid,
		},

		"Sending to kindle without email should be rejected.": {
			opts:      lib.SubmitOpts{Keywords: "golang", SendToKindle: true},
			expResult: &lib.Result{Outcome: lib.OutcomeRejected},
			expErr:    true,
			expIs:     lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			client := newTestClient(t, devserver.Config{
				NewJobID:    func() string { return "job-1" },
				FailKeyword: "broken",
			})

			res, err := client.Submit(context.Background(), test.opts, nil)

			if test.expErr {
				assert.Error(err)
				if test.expIs != nil {
					assert.ErrorIs(err, test.expIs)
				}
			} else {
				assert.NoError(err)
			}
			assert.Equal(test.expResult, res)
		})
	}
}

func TestSubmitUnreachableService(t *testing.T) {
	client, err := lib.New(context.Background(), lib.Config{
		APIURL: "http://127.0.0.1:1",
		DBPath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Submit(context.Background(), lib.SubmitOpts{Keywords: "golang"}, nil)
	assert.ErrorIs(t, err, lib.ErrTransport)
}

func TestWatch(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	client := newTestClient(t, devserver.Config{
		NewJobID: func() string { return "job-1" },
	})

	// Nothing to resume yet.
	res, err := client.Watch(ctx, "", nil)
	require.NoError(err)
	assert.Equal(lib.OutcomeFellBack, res.Outcome)

	// Unknown jobs can't be resumed.
	res, err = client.Watch(ctx, "missing", nil)
	require.NoError(err)
	assert.Equal(lib.OutcomeFellBack, res.Outcome)

	_, err = client.Submit(ctx, lib.SubmitOpts{Keywords: "golang"}, nil)
	require.NoError(err)

	// Resuming a finished job renders its final state.
	var out bytes.Buffer
	res, err = client.Watch(ctx, "job-1", &lib.WatchOpts{Output: &out, Format: lib.OutputNDJSON})
	require.NoError(err)
	assert.Equal(&lib.Result{JobID: "job-1", Outcome: lib.OutcomeCompleted, Status: lib.JobStatusCompleted}, res)
	assert.Contains(out.String(), `"event":"completion"`)
	assert.Contains(out.String(), `"pdf_path":"/pdfs/job-1.pdf"`)
}

func TestWatchSameJobConcurrently(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	// The job never finishes.
	var progressReqs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/progress" {
			http.NotFound(w, r)
			return
		}
		progressReqs.Add(1)
		_, _ = w.Write([]byte(`{"job_id":"abc","status":"processing","current_stage":"filtering",
			"current_percentage":25,"stage_details":{},"logs":[]}`))
	}))
	defer srv.Close()

	client, err := lib.New(context.Background(), lib.Config{
		APIURL:       srv.URL,
		DBPath:       filepath.Join(t.TempDir(), "test.db"),
		PollInterval: time.Hour,
	})
	require.NoError(err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type watchResult struct {
		res *lib.Result
		err error
	}
	firstC := make(chan watchResult, 1)
	go func() {
		res, err := client.Watch(ctx, "abc", nil)
		firstC <- watchResult{res: res, err: err}
	}()

	// Resume fetch plus the first poll.
	require.Eventually(func() bool { return progressReqs.Load() >= 2 }, 5*time.Second, time.Millisecond)

	_, err = client.Watch(ctx, "abc", nil)
	assert.ErrorIs(err, lib.ErrAlreadyExists)

	cancel()
	first := <-firstC
	require.NotNil(first.res)
	assert.Equal(lib.OutcomeInterrupted, first.res.Outcome)

	// Only the resume fetches and the single poller hit the service.
	assert.Equal(int32(3), progressReqs.Load())
}

func TestHistory(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	ids := []string{"job-1", "job-2"}
	client := newTestClient(t, devserver.Config{
		NewJobID: func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		},
	})

	_, err := client.Submit(ctx, lib.SubmitOpts{Keywords: "golang"}, nil)
	require.NoError(err)
	_, err = client.Submit(ctx, lib.SubmitOpts{Keywords: "broken, rust"}, nil)
	require.NoError(err)

	jobs, err := client.History(ctx)
	require.NoError(err)
	require.Len(jobs, 2)

	assert.Equal("job-2", jobs[0].ID)
	assert.Equal("job-1", jobs[1].ID)
	assert.Equal(lib.JobStatusCompleted, jobs[1].Status)
	assert.Equal("/pdfs/job-1.pdf", jobs[1].PDFPath)
	assert.Equal(42, jobs[1].BookmarkCount)
	assert.True(jobs[1].ViewOnly)
	assert.True(jobs[1].Status.Terminal())
}

func TestLogs(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	client := newTestClient(t, devserver.Config{
		NewJobID: func() string { return "job-1" },
	})

	_, err := client.Logs(ctx, "")
	assert.ErrorIs(err, lib.ErrNotValid)

	_, err = client.Submit(ctx, lib.SubmitOpts{Keywords: "golang"}, nil)
	require.NoError(err)

	logs, err := client.Logs(ctx, "job-1")
	require.NoError(err)
	require.NotEmpty(logs)

	for i := 1; i < len(logs); i++ {
		assert.False(logs[i].Timestamp.After(logs[i-1].Timestamp), "logs should be newest first")
	}
	assert.Equal("PDF generated", logs[0].Message)
}
