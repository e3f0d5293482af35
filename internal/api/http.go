package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
)

const (
	// DefaultBaseURL is the default PDF service address.
	DefaultBaseURL = "http://localhost:4567"

	// RequestIDHeader is the header used to correlate client requests with service logs.
	RequestIDHeader = "X-Request-Id"

	generatePath   = "/filtered_pdf/generate"
	progressPath   = "/api/progress"
	jobHistoryPath = "/api/jobs/history"
	logHistoryPath = "/api/logs/history"

	maxErrorBodyBytes = 512
)

// HTTPClientConfig configures the HTTP PDF service client.
type HTTPClientConfig struct {
	// BaseURL is the PDF service address (e.g. "http://localhost:4567").
	BaseURL string
	// HTTPClient is the HTTP client used for the requests.
	HTTPClient *http.Client
	// RequestsPerSecond limits the client request rate, 0 means unlimited.
	RequestsPerSecond float64
	// Logger for logging.
	Logger log.Logger
}

func (c *HTTPClientConfig) defaults() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q must be http or https", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.HTTP"})
	return nil
}

// HTTPClient implements Client against the PDF service HTTP API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger
}

// NewHTTPClient creates a new HTTP PDF service client.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		limiter:    limiter,
		logger:     cfg.Logger,
	}, nil
}

// --- JSON wire types (private, for the PDF service API) ---

type generateResponseJSON struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// progressRequiredFields must be present on every progress response.
var progressRequiredFields = []string{"status", "job_id", "current_stage", "current_percentage", "stage_details", "logs"}

// progressNullableFields may be null, they are decoded as empty.
var progressNullableFields = map[string]bool{"stage_details": true, "logs": true}

type progressJSON struct {
	JobID             string         `json:"job_id"`
	Status            string         `json:"status"`
	CurrentStage      string         `json:"current_stage"`
	CurrentPercentage float64        `json:"current_percentage"`
	StageDetails      map[string]any `json:"stage_details"`
	ErrorInfo         *errorInfoJSON `json:"error_info"`
	Logs              []logEntryJSON `json:"logs"`
}

type errorInfoJSON struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type logEntryJSON struct {
	Timestamp looseString `json:"timestamp"`
	Stage     looseString `json:"stage"`
	Message   looseString `json:"message"`
	EventType looseString `json:"event_type"`
}

// looseString keeps JSON strings verbatim and decodes any other value as "".
// A single odd log field must not discard the whole snapshot.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*l = ""
		return nil
	}
	*l = looseString(s)
	return nil
}

type jobHistoryJSON struct {
	Jobs []jobRecordJSON `json:"jobs"`
}

type jobRecordJSON struct {
	UUID            string   `json:"uuid"`
	JobID           string   `json:"job_id"`
	Keywords        string   `json:"keywords"`
	CreatedAt       string   `json:"created_at"`
	Status          string   `json:"status"`
	BookmarkCount   *int     `json:"bookmark_count"`
	DurationSeconds *float64 `json:"duration_seconds"`
	PDFPath         *string  `json:"pdf_path"`
}

type logHistoryJSON struct {
	Logs []logEntryJSON `json:"logs"`
}

func (p progressJSON) toModel() *model.ProgressSnapshot {
	pct := int(math.Round(p.CurrentPercentage))

	var errInfo *model.ErrorInfo
	if p.ErrorInfo != nil {
		errInfo = &model.ErrorInfo{
			Message: p.ErrorInfo.Message,
			Status:  p.ErrorInfo.Status,
		}
	}

	details := make(map[string]any, len(p.StageDetails))
	for k, v := range p.StageDetails {
		details[k] = v
	}

	return &model.ProgressSnapshot{
		JobID:             p.JobID,
		Status:            model.JobStatus(p.Status),
		CurrentStage:      model.Stage(p.CurrentStage),
		CurrentPercentage: pct,
		StageDetails:      details,
		ErrorInfo:         errInfo,
		Logs:              logEntriesToModel(p.Logs),
	}
}

func logEntriesToModel(entries []logEntryJSON) []model.LogEntry {
	logs := make([]model.LogEntry, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, model.LogEntry{
			Timestamp: string(e.Timestamp),
			Stage:     string(e.Stage),
			Message:   string(e.Message),
			EventType: model.EventType(e.EventType),
		})
	}
	return logs
}

func (j jobRecordJSON) toModel() model.JobRecord {
	id := j.UUID
	if id == "" {
		id = j.JobID
	}

	r := model.JobRecord{
		UUID:     id,
		Keywords: j.Keywords,
		Status:   model.JobStatus(j.Status),
		PDFPath:  deref(j.PDFPath),
	}
	if j.CreatedAt != "" {
		r.CreatedAt = model.ParseTimestamp(j.CreatedAt)
	}
	if j.BookmarkCount != nil {
		r.BookmarkCount = *j.BookmarkCount
	}
	if j.DurationSeconds != nil {
		r.DurationSeconds = *j.DurationSeconds
	}
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Client interface implementation ---

func (h *HTTPClient) Generate(ctx context.Context, req model.GenerateRequest) (string, error) {
	form := url.Values{}
	form.Set("keywords", req.Keywords)
	form.Set("date_start", req.DateStart)
	form.Set("date_end", req.DateEnd)
	form.Set("send_to_kindle", strconv.FormatBool(req.SendToKindle))
	form.Set("kindle_email", req.KindleEmail)

	body, status, err := h.do(ctx, http.MethodPost, generatePath, nil, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}

	// The service reports refusals in the body, sometimes with a non 2xx status.
	var resp generateResponseJSON
	decErr := json.Unmarshal(body, &resp)
	if decErr == nil && resp.Error != "" {
		return "", fmt.Errorf("generation refused: %s: %w", resp.Error, model.ErrRejected)
	}
	if !isSuccess(status) {
		return "", statusError(status, body)
	}
	if decErr != nil {
		return "", fmt.Errorf("could not decode generate response: %s: %w", decErr, model.ErrProtocol)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("no job_id in response: %w", model.ErrRejected)
	}

	h.logger.Debugf("Job submitted: %s", resp.JobID)
	return resp.JobID, nil
}

func (h *HTTPClient) Progress(ctx context.Context, jobID string) (*model.ProgressSnapshot, error) {
	query := url.Values{"job_id": []string{jobID}}
	body, err := h.get(ctx, progressPath, query)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("could not decode progress response: %s: %w", err, model.ErrProtocol)
	}
	for _, field := range progressRequiredFields {
		v, ok := raw[field]
		if !ok || (!progressNullableFields[field] && bytes.Equal(bytes.TrimSpace(v), []byte("null"))) {
			return nil, fmt.Errorf("missing required field %q: %w", field, model.ErrProtocol)
		}
	}

	var p progressJSON
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("could not decode progress response: %s: %w", err, model.ErrProtocol)
	}

	return p.toModel(), nil
}

func (h *HTTPClient) JobHistory(ctx context.Context, limit int) ([]model.JobRecord, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, err := h.get(ctx, jobHistoryPath, query)
	if err != nil {
		return nil, err
	}

	var resp jobHistoryJSON
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("could not decode job history response: %s: %w", err, model.ErrProtocol)
	}

	jobs := make([]model.JobRecord, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		jobs = append(jobs, j.toModel())
	}
	return jobs, nil
}

func (h *HTTPClient) LogHistory(ctx context.Context, jobID string) ([]model.LogEntry, error) {
	query := url.Values{"job_id": []string{jobID}}
	body, err := h.get(ctx, logHistoryPath, query)
	if err != nil {
		return nil, err
	}

	var resp logHistoryJSON
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("could not decode log history response: %s: %w", err, model.ErrProtocol)
	}

	return logEntriesToModel(resp.Logs), nil
}

// --- HTTP helpers ---

func (h *HTTPClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, status, err := h.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, statusError(status, body)
	}
	return body, nil
}

func (h *HTTPClient) do(ctx context.Context, method, path string, query url.Values, form io.Reader) ([]byte, int, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("request rate limit: %w", err)
	}

	u := h.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, form)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	h.logger.Debugf("%s %s (request %s)", method, u, requestID)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %s: %w", method, path, err, model.ErrTransport)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading %s response: %s: %w", path, err, model.ErrTransport)
	}

	return body, resp.StatusCode, nil
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodyBytes {
		msg = msg[:maxErrorBodyBytes]
	}
	if msg == "" {
		return fmt.Errorf("HTTP %d: %w", status, model.ErrTransport)
	}
	return fmt.Errorf("HTTP %d: %s: %w", status, msg, model.ErrTransport)
}
