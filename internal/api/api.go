package api

import (
	"context"

	"github.com/rainpipe/pdfwatch/internal/model"
)

// Client is the PDF service API used to submit and monitor jobs.
type Client interface {
	// Generate submits a keyword filtered PDF generation and returns the job ID.
	Generate(ctx context.Context, req model.GenerateRequest) (jobID string, err error)
	// Progress returns the current progress snapshot of a job.
	Progress(ctx context.Context, jobID string) (*model.ProgressSnapshot, error)
	// JobHistory returns the most recent jobs, newest first.
	JobHistory(ctx context.Context, limit int) ([]model.JobRecord, error)
	// LogHistory returns the execution logs of a (possibly historical) job.
	LogHistory(ctx context.Context, jobID string) ([]model.LogEntry, error)
}

//go:generate mockery --case underscore --output apimock --outpkg apimock --name Client
