package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainpipe/pdfwatch/internal/api"
	"github.com/rainpipe/pdfwatch/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *api.HTTPClient {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := api.NewHTTPClient(api.HTTPClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClientConfig(t *testing.T) {
	tests := map[string]struct {
		cfg    api.HTTPClientConfig
		expErr bool
	}{
		"Empty config should use defaults.": {
			cfg: api.HTTPClientConfig{},
		},
		"A non http base URL should fail.": {
			cfg:    api.HTTPClientConfig{BaseURL: "ftp://localhost"},
			expErr: true,
		},
		"A negative rate should fail.": {
			cfg:    api.HTTPClientConfig{RequestsPerSecond: -1},
			expErr: true,
		},
		"A positive rate should be accepted.": {
			cfg: api.HTTPClientConfig{RequestsPerSecond: 5},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := api.NewHTTPClient(tc.cfg)
			if tc.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPClientGenerate(t *testing.T) {
	tests := map[string]struct {
		status   int
		body     string
		expJobID string
		expErr   error
	}{
		"A job id response should return the job id.": {
			status:   http.StatusOK,
			body:     `{"job_id":"abc"}`,
			expJobID: "abc",
		},
		"An error response should be rejected.": {
			status: http.StatusOK,
			body:   `{"error":"no bookmarks"}`,
			expErr: model.ErrRejected,
		},
		"An error response with a bad status should be rejected.": {
			status: http.StatusBadRequest,
			body:   `{"error":"invalid keywords"}`,
			expErr: model.ErrRejected,
		},
		"A response without job id should be rejected.": {
			status: http.StatusOK,
			body:   `{}`,
			expErr: model.ErrRejected,
		},
		"A server error should be a transport error.": {
			status: http.StatusInternalServerError,
			body:   `boom`,
			expErr: model.ErrTransport,
		},
		"A non JSON success should be a protocol error.": {
			status: http.StatusOK,
			body:   `<html></html>`,
			expErr: model.ErrProtocol,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			var gotForm map[string]string
			var gotRequestID string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/filtered_pdf/generate" {
					http.NotFound(w, r)
					return
				}
				_ = r.ParseForm()
				gotForm = map[string]string{
					"keywords":       r.PostForm.Get("keywords"),
					"send_to_kindle": r.PostForm.Get("send_to_kindle"),
					"kindle_email":   r.PostForm.Get("kindle_email"),
				}
				gotRequestID = r.Header.Get(api.RequestIDHeader)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			jobID, err := c.Generate(context.Background(), model.GenerateRequest{
				Keywords:     "Obsidian",
				SendToKindle: true,
				KindleEmail:  "me@kindle.com",
			})

			if tc.expErr != nil {
				require.ErrorIs(err, tc.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(t, tc.expJobID, jobID)
			assert.Equal(t, map[string]string{
				"keywords":       "Obsidian",
				"send_to_kindle": "true",
				"kindle_email":   "me@kindle.com",
			}, gotForm)
			assert.NotEmpty(t, gotRequestID)
		})
	}
}

func TestHTTPClientProgress(t *testing.T) {
	tests := map[string]struct {
		status      int
		body        string
		expSnapshot *model.ProgressSnapshot
		expErr      error
	}{
		"A complete snapshot should be decoded.": {
			status: http.StatusOK,
			body: `{"job_id":"abc","status":"processing","current_stage":"filtering","current_percentage":25,
				"stage_details":{"bookmark_count":10},
				"logs":[{"timestamp":"2024-01-01T00:00:00Z","stage":"filtering","message":"start","event_type":"info"}]}`,
			expSnapshot: &model.ProgressSnapshot{
				JobID:             "abc",
				Status:            model.JobStatusProcessing,
				CurrentStage:      model.StageFiltering,
				CurrentPercentage: 25,
				StageDetails:      map[string]any{"bookmark_count": float64(10)},
				Logs: []model.LogEntry{
					{Timestamp: "2024-01-01T00:00:00Z", Stage: "filtering", Message: "start", EventType: model.EventTypeInfo},
				},
			},
		},
		"A failed snapshot should carry the error info.": {
			status: http.StatusOK,
			body: `{"job_id":"abc","status":"failed","current_stage":"pdf_generation","current_percentage":80.4,
				"stage_details":{},"logs":[],"error_info":{"message":"render failed","status":"failed"}}`,
			expSnapshot: &model.ProgressSnapshot{
				JobID:             "abc",
				Status:            model.JobStatusFailed,
				CurrentStage:      model.StagePDFGeneration,
				CurrentPercentage: 80,
				StageDetails:      map[string]any{},
				ErrorInfo:         &model.ErrorInfo{Message: "render failed", Status: "failed"},
				Logs:              []model.LogEntry{},
			},
		},
		"Log entries with non string fields should be kept with empty values.": {
			status: http.StatusOK,
			body: `{"job_id":"abc","status":"processing","current_stage":"filtering","current_percentage":25,"stage_details":{},
				"logs":[{"timestamp":1700000000,"stage":{"name":"filtering"},"message":"start","event_type":7},
					{"timestamp":"2024-01-01T00:00:00Z","stage":"filtering","message":["odd"],"event_type":"info"}]}`,
			expSnapshot: &model.ProgressSnapshot{
				JobID:             "abc",
				Status:            model.JobStatusProcessing,
				CurrentStage:      model.StageFiltering,
				CurrentPercentage: 25,
				StageDetails:      map[string]any{},
				Logs: []model.LogEntry{
					{Timestamp: "", Stage: "", Message: "start", EventType: ""},
					{Timestamp: "2024-01-01T00:00:00Z", Stage: "filtering", Message: "", EventType: model.EventTypeInfo},
				},
			},
		},
		"Null stage details and logs should be decoded as empty.": {
			status: http.StatusOK,
			body:   `{"job_id":"abc","status":"pending","current_stage":"filtering","current_percentage":0,"stage_details":null,"logs":null}`,
			expSnapshot: &model.ProgressSnapshot{
				JobID:        "abc",
				Status:       model.JobStatusPending,
				CurrentStage: model.StageFiltering,
				StageDetails: map[string]any{},
				Logs:         []model.LogEntry{},
			},
		},
		"A snapshot missing logs should be a protocol error.": {
			status: http.StatusOK,
			body:   `{"job_id":"abc","status":"processing","current_stage":"filtering","current_percentage":25,"stage_details":{}}`,
			expErr: model.ErrProtocol,
		},
		"A snapshot with a null status should be a protocol error.": {
			status: http.StatusOK,
			body:   `{"job_id":"abc","status":null,"current_stage":"filtering","current_percentage":25,"stage_details":{},"logs":[]}`,
			expErr: model.ErrProtocol,
		},
		"A malformed body should be a protocol error.": {
			status: http.StatusOK,
			body:   `{"job_id":`,
			expErr: model.ErrProtocol,
		},
		"A not found status should be a transport error.": {
			status: http.StatusNotFound,
			body:   `{"error":"job not found"}`,
			expErr: model.ErrTransport,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/progress" || r.URL.Query().Get("job_id") != "abc" {
					http.NotFound(w, r)
					return
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))

			snap, err := c.Progress(context.Background(), "abc")
			if tc.expErr != nil {
				require.ErrorIs(err, tc.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(t, tc.expSnapshot, snap)
		})
	}
}

func TestHTTPClientProgressNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := api.NewHTTPClient(api.HTTPClientConfig{BaseURL: url})
	require.NoError(t, err)

	_, err = c.Progress(context.Background(), "abc")
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestHTTPClientJobHistory(t *testing.T) {
	require := require.New(t)

	var gotLimit string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"jobs":[
			{"uuid":"j1","keywords":"go","created_at":"2024-01-02T10:00:00Z","status":"completed","bookmark_count":12,"duration_seconds":125.0,"pdf_path":"/tmp/j1.pdf"},
			{"job_id":"j2","keywords":"rust","created_at":"2024-01-01T10:00:00Z","status":"processing","bookmark_count":null,"duration_seconds":null,"pdf_path":null}
		]}`))
	}))

	jobs, err := c.JobHistory(context.Background(), 10)
	require.NoError(err)
	assert.Equal(t, "10", gotLimit)

	require.Len(jobs, 2)
	assert.Equal(t, "j1", jobs[0].UUID)
	assert.Equal(t, 12, jobs[0].BookmarkCount)
	assert.Equal(t, 125.0, jobs[0].DurationSeconds)
	assert.Equal(t, "/tmp/j1.pdf", jobs[0].PDFPath)
	assert.Equal(t, 2024, jobs[0].CreatedAt.Year())
	assert.Equal(t, "j2", jobs[1].UUID)
	assert.Equal(t, model.JobStatusProcessing, jobs[1].Status)
	assert.Zero(t, jobs[1].BookmarkCount)
	assert.Empty(t, jobs[1].PDFPath)
}

func TestHTTPClientLogHistory(t *testing.T) {
	require := require.New(t)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("job_id") != "abc" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"logs":[
			{"timestamp":"2024-01-01T00:00:01Z","stage":"filtering","message":"done","event_type":"info"},
			{"timestamp":"2024-01-01T00:00:00Z","stage":null,"message":"queued","event_type":"stage_update"}
		]}`))
	}))

	logs, err := c.LogHistory(context.Background(), "abc")
	require.NoError(err)
	require.Len(logs, 2)
	assert.Equal(t, "done", logs[0].Message)
	assert.Equal(t, "", logs[1].Stage)
	assert.Equal(t, model.EventTypeStageUpdate, logs[1].EventType)
}
