package lib

import (
	"context"
	"fmt"
	"time"

	"github.com/rainpipe/pdfwatch/internal/api"
	"github.com/rainpipe/pdfwatch/internal/conventions"
	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/poller"
	"github.com/rainpipe/pdfwatch/internal/storage"
	"github.com/rainpipe/pdfwatch/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. An empty Config{} talks
// to the PDF service on http://localhost:4567 and stores the sessions in
// ~/.pdfwatch/pdfwatch.db.
type Config struct {
	// APIURL is the base URL of the PDF service.
	// Default: http://localhost:4567.
	APIURL string

	// RequestsPerSecond limits the requests sent to the PDF service.
	// Default: 0 (unlimited).
	RequestsPerSecond float64

	// DataDir is the base directory for pdfwatch data.
	// Default: ~/.pdfwatch.
	DataDir string

	// DBPath is the SQLite database path where the watched jobs are remembered.
	// Default: <DataDir>/pdfwatch.db.
	DBPath string

	// PollInterval is the delay between two progress requests of a watched job.
	// Default: 1s.
	PollInterval time.Duration

	// MaxRetries is the number of consecutive failed progress requests before
	// a watch gives up with [OutcomeStalled].
	// Default: 10.
	MaxRetries int

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.APIURL == "" {
		c.APIURL = api.DefaultBaseURL
	}

	if c.DataDir == "" {
		c.DataDir = conventions.DataDir()
	}

	if c.DBPath == "" {
		c.DBPath = conventions.DBPath(c.DataDir)
	}

	if c.PollInterval == 0 {
		c.PollInterval = poller.DefaultInterval
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval can't be negative")
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = poller.DefaultMaxRetries
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point to submit and watch PDF generations
// programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use, every watch gets its own poller and a
// job is only polled by one watch at a time.
type Client struct {
	api          *api.HTTPClient
	repo         storage.Repository
	registry     *poller.Registry
	logger       log.Logger
	pollInterval time.Duration
	maxRetries   int
	closeFn      func() error
}

// New creates a new SDK client backed by a SQLite database.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	apiClient, err := api.NewHTTPClient(api.HTTPClientConfig{
		BaseURL:           cfg.APIURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            cfg.Logger,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create api client: %w", err))
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return &Client{
		api:          apiClient,
		repo:         repo,
		registry:     poller.NewRegistry(),
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		maxRetries:   cfg.MaxRetries,
		closeFn:      repo.Close,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
