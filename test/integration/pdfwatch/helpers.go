package pdfwatch

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rainpipe/pdfwatch/internal/devserver"
	"github.com/rainpipe/pdfwatch/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "pdfwatch"
	}

	// go test changes the CWD to the test package directory, relative paths
	// would be resolved from there.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("PDFWATCH_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("pdfwatch binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "PDFWATCH_INTEGRATION"
		envBinary     = "PDFWATCH_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary: os.Getenv(envBinary),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Env is an isolated environment: a simulated PDF service and a fresh local database.
type Env struct {
	Config Config
	APIURL string
	DBPath string
	Server *devserver.Server
}

// NewEnv starts a simulated PDF service for the test.
func NewEnv(t *testing.T, config Config, devCfg devserver.Config) Env {
	t.Helper()

	dev, err := devserver.New(devCfg)
	if err != nil {
		t.Fatalf("could not create dev server: %s", err)
	}
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	return Env{
		Config: config,
		APIURL: srv.URL,
		DBPath: filepath.Join(t.TempDir(), "test-pdfwatch.db"),
		Server: dev,
	}
}

// RunCmd runs a pdfwatch command against the environment with logging disabled.
func (e Env) RunCmd(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	// Use a profile that doesn't exist so the user one is never loaded.
	base := []string{
		"--no-log",
		"--api-url", e.APIURL,
		"--db-path", e.DBPath,
		"--profile", filepath.Join(filepath.Dir(e.DBPath), "missing-profile.yaml"),
	}
	bin := testutils.Binary{Path: e.Config.Binary, Quiet: true}
	return bin.Run(ctx, append(base, args...)...)
}

// RunGenerate submits a generation and watches it with NDJSON output.
func (e Env) RunGenerate(ctx context.Context, keywords string, extra ...string) (stdout, stderr []byte, err error) {
	args := append([]string{"generate", "--keywords", keywords, "--format", "ndjson"}, extra...)
	return e.RunCmd(ctx, args...)
}

// RunWatch resumes a job with NDJSON output, an empty jobID resumes the latest active one.
func (e Env) RunWatch(ctx context.Context, jobID string) (stdout, stderr []byte, err error) {
	args := []string{"watch", "--format", "ndjson"}
	if jobID != "" {
		args = append(args, jobID)
	}
	return e.RunCmd(ctx, args...)
}

// RunHistory lists the job history in JSON format.
func (e Env) RunHistory(ctx context.Context) (stdout, stderr []byte, err error) {
	return e.RunCmd(ctx, "history", "--format", "json")
}

// RunLogs lists the logs of a job in JSON format.
func (e Env) RunLogs(ctx context.Context, jobID string) (stdout, stderr []byte, err error) {
	return e.RunCmd(ctx, "logs", jobID, "--format", "json")
}
