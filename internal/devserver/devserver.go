// Package devserver is a simulated PDF service for local development and
// end to end tests. Jobs only advance when their progress is requested.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
)

// Config is the simulated service configuration.
type Config struct {
	// NewJobID returns the ID of a new job, random UUIDs by default.
	NewJobID func() string
	// Now returns the current time, time.Now by default.
	Now func() time.Time
	// FailKeyword makes jobs whose keywords contain it fail while summarizing.
	FailKeyword string
	// FailEvery makes every n-th progress request answer with an internal error, 0 disables it.
	FailEvery int
	// BookmarkCount is the number of bookmarks every job finds.
	BookmarkCount int
	Logger        log.Logger
}

func (c *Config) defaults() error {
	if c.NewJobID == nil {
		c.NewJobID = func() string { return uuid.NewString() }
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	if c.FailEvery < 0 {
		return fmt.Errorf("fail every can't be negative")
	}

	if c.BookmarkCount == 0 {
		c.BookmarkCount = 42
	}
	if c.BookmarkCount < 0 {
		return fmt.Errorf("bookmark count can't be negative")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "devserver.Server"})

	return nil
}

// step is a point of the simulated pipeline.
type step struct {
	stage      model.Stage
	percentage int
	message    string
}

var steps = []step{
	{stage: model.StageFiltering, percentage: 25, message: "Filtering bookmarks by keywords"},
	{stage: model.StageContentFetching, percentage: 40, message: "Fetching bookmark contents"},
	{stage: model.StageSummarization, percentage: 60, message: "Generating summaries"},
	{stage: model.StagePDFGeneration, percentage: 80, message: "Generating PDF"},
	{stage: model.StageEmailSending, percentage: 95, message: "Sending PDF to Kindle"},
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	EventType string `json:"event_type"`
}

type job struct {
	id           string
	keywords     string
	sendToKindle bool
	kindleEmail  string
	createdAt    time.Time
	finishedAt   time.Time
	status       model.JobStatus
	step         int
	details      map[string]any
	errorMessage string
	logs         []logEntry
	progressReqs int
}

// Server is the simulated PDF service.
type Server struct {
	cfg    Config
	logger log.Logger

	mu       sync.Mutex
	jobs     map[string]*job
	requests int
}

// New returns a new simulated PDF service.
func New(cfg Config) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		jobs:   map[string]*job{},
	}, nil
}

// Handler returns the HTTP handler of the service.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/filtered_pdf/generate", s.handleGenerate)
	r.Get("/api/progress", s.handleProgress)
	r.Get("/api/jobs/history", s.handleJobHistory)
	r.Get("/api/logs/history", s.handleLogHistory)

	return r
}

// ProgressRequests returns the number of progress requests received for a job.
func (s *Server) ProgressRequests(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return 0
	}
	return j.progressReqs
}

// JobCount returns the number of submitted jobs.
func (s *Server) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithValues(log.Kv{
			"request-id": middleware.GetReqID(r.Context()),
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Debugf("%s %s", r.Method, r.URL.Path)
	})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form")
		return
	}

	sendToKindle, _ := strconv.ParseBool(r.PostForm.Get("send_to_kindle"))
	req := model.GenerateRequest{
		Keywords:     strings.TrimSpace(r.PostForm.Get("keywords")),
		DateStart:    r.PostForm.Get("date_start"),
		DateEnd:      r.PostForm.Get("date_end"),
		SendToKindle: sendToKindle,
		KindleEmail:  strings.TrimSpace(r.PostForm.Get("kindle_email")),
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	id := s.cfg.NewJobID()
	if _, ok := s.jobs[id]; ok {
		s.mu.Unlock()
		respondError(w, http.StatusConflict, fmt.Sprintf("job %s already exists", id))
		return
	}
	j := &job{
		id:           id,
		keywords:     req.Keywords,
		sendToKindle: req.SendToKindle,
		kindleEmail:  req.KindleEmail,
		createdAt:    s.cfg.Now().UTC(),
		status:       model.JobStatusPending,
		step:         -1,
		details:      map[string]any{"keywords": req.Keywords},
	}
	j.addLog(s.cfg.Now(), "", "Job queued", string(model.EventTypeInfo))
	s.jobs[id] = j
	s.mu.Unlock()

	s.logger.Infof("Job %s created for keywords %q", id, req.Keywords)
	respondJSON(w, http.StatusOK, map[string]string{"job_id": id})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	j.progressReqs++
	s.requests++
	if s.cfg.FailEvery > 0 && s.requests%s.cfg.FailEvery == 0 {
		respondError(w, http.StatusInternalServerError, "simulated failure")
		return
	}

	if !j.status.IsTerminal() {
		s.advance(j)
	}

	respondJSON(w, http.StatusOK, j.progress())
}

// advance moves the job one step forward.
func (s *Server) advance(j *job) {
	now := s.cfg.Now()
	next := j.step + 1

	// Jobs not sent to Kindle skip the last stage.
	last := len(steps) - 1
	if !j.sendToKindle {
		last--
	}

	if next > last {
		j.status = model.JobStatusCompleted
		j.finishedAt = now.UTC()
		j.details["pdf_path"] = fmt.Sprintf("/pdfs/%s.pdf", j.id)
		msg := "PDF generated"
		if j.sendToKindle {
			msg = fmt.Sprintf("PDF sent to %s", j.kindleEmail)
		}
		j.addLog(now, string(steps[last].stage), msg, string(model.EventTypeInfo))
		return
	}

	st := steps[next]
	j.step = next
	j.status = model.JobStatusProcessing

	if s.cfg.FailKeyword != "" && st.stage == model.StageSummarization && strings.Contains(j.keywords, s.cfg.FailKeyword) {
		j.status = model.JobStatusFailed
		j.finishedAt = now.UTC()
		j.errorMessage = "Summarization service unavailable"
		j.addLog(now, string(st.stage), j.errorMessage, string(model.EventTypeError))
		return
	}

	n := s.cfg.BookmarkCount
	switch st.stage {
	case model.StageFiltering:
		j.details["bookmark_count"] = n
	case model.StageContentFetching:
		j.details["bookmarks_retrieved"] = n
		j.details["bookmarks_with_content"] = n - n/10
	case model.StageSummarization:
		j.details["bookmarks_summarized"] = n - n/10
		j.details["cluster_count"] = 1 + n/10
	case model.StagePDFGeneration:
		j.details["page_count"] = 2 * n
		j.details["file_size_mb"] = float64(n) * 0.05
	}

	j.addLog(now, string(st.stage), st.message, string(model.EventTypeStageUpdate))
}

func (j *job) addLog(t time.Time, stage, message, eventType string) {
	// Entries are 1ms apart so they never share a timestamp.
	ts := t.UTC().Add(time.Duration(len(j.logs)) * time.Millisecond)
	j.logs = append(j.logs, logEntry{
		Timestamp: ts.Format(time.RFC3339Nano),
		Stage:     stage,
		Message:   message,
		EventType: eventType,
	})
}

func (j *job) progress() map[string]any {
	stage, pct := "", 0
	if j.step >= 0 {
		stage, pct = string(steps[j.step].stage), steps[j.step].percentage
	}
	if j.status == model.JobStatusCompleted {
		pct = 100
	}

	details := make(map[string]any, len(j.details))
	for k, v := range j.details {
		details[k] = v
	}

	// Every response resends the whole log.
	logs := make([]logEntry, len(j.logs))
	copy(logs, j.logs)

	resp := map[string]any{
		"job_id":             j.id,
		"status":             string(j.status),
		"current_stage":      stage,
		"current_percentage": pct,
		"stage_details":      details,
		"logs":               logs,
	}
	if j.errorMessage != "" {
		resp["error_info"] = map[string]string{"message": j.errorMessage, "status": string(j.status)}
	}

	return resp
}

type jobRecord struct {
	UUID            string   `json:"uuid"`
	Keywords        string   `json:"keywords"`
	CreatedAt       string   `json:"created_at"`
	Status          string   `json:"status"`
	BookmarkCount   int      `json:"bookmark_count"`
	DurationSeconds *float64 `json:"duration_seconds"`
	PDFPath         *string  `json:"pdf_path"`
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		if jobs[i].createdAt.Equal(jobs[k].createdAt) {
			return jobs[i].id > jobs[k].id
		}
		return jobs[i].createdAt.After(jobs[k].createdAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	records := make([]jobRecord, 0, len(jobs))
	for _, j := range jobs {
		rec := jobRecord{
			UUID:      j.id,
			Keywords:  j.keywords,
			CreatedAt: j.createdAt.Format(time.RFC3339),
			Status:    string(j.status),
		}
		if c, ok := j.details["bookmark_count"].(int); ok {
			rec.BookmarkCount = c
		}
		if !j.finishedAt.IsZero() {
			d := j.finishedAt.Sub(j.createdAt).Seconds()
			rec.DurationSeconds = &d
		}
		if p, ok := j.details["pdf_path"].(string); ok {
			rec.PDFPath = &p
		}
		records = append(records, rec)
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{"jobs": records})
}

func (s *Server) handleLogHistory(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")

	s.mu.Lock()
	j, ok := s.jobs[jobID]
	var logs []logEntry
	if ok {
		logs = make([]logEntry, len(j.logs))
		copy(logs, j.logs)
	}
	s.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
