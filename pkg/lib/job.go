package lib

import (
	"context"
	"fmt"
	"io"

	"github.com/rainpipe/pdfwatch/internal/app/history"
	"github.com/rainpipe/pdfwatch/internal/app/session"
	"github.com/rainpipe/pdfwatch/internal/model"
	"github.com/rainpipe/pdfwatch/internal/poller"
	"github.com/rainpipe/pdfwatch/internal/printer"
)

// Submit submits a keyword filtered PDF generation and watches it until it
// reaches a terminal status, the watch stalls or ctx is cancelled.
//
// The submission is validated locally before any request is sent, invalid
// options return [ErrNotValid] with an [OutcomeRejected] result. A submission
// refused by the service returns [ErrRejected].
//
// Use opts to render the progress while watching, nil discards it.
func (c *Client) Submit(ctx context.Context, opts SubmitOpts, wopts *WatchOpts) (*Result, error) {
	svc, outErr, err := c.newSessionService(wopts)
	if err != nil {
		return nil, err
	}

	res, err := svc.Submit(ctx, model.GenerateRequest{
		Keywords:     opts.Keywords,
		DateStart:    opts.DateStart,
		DateEnd:      opts.DateEnd,
		SendToKindle: opts.SendToKindle,
		KindleEmail:  opts.KindleEmail,
	})
	if err != nil {
		return fromInternalResult(res), mapError(err)
	}

	if err := outErr(); err != nil {
		return fromInternalResult(res), fmt.Errorf("could not write output: %w", err)
	}

	return fromInternalResult(res), nil
}

// Watch resumes watching a job previously submitted or watched, or any job
// known by the service. An empty jobID resumes the latest job still in
// progress watched from this machine.
//
// When the job can't be resumed the result has [OutcomeFellBack] and no error
// is returned. Watching a job already watched by the client returns
// [ErrAlreadyExists].
func (c *Client) Watch(ctx context.Context, jobID string, wopts *WatchOpts) (*Result, error) {
	svc, outErr, err := c.newSessionService(wopts)
	if err != nil {
		return nil, err
	}

	res, err := svc.Resume(ctx, jobID)
	if err != nil {
		return fromInternalResult(res), mapError(err)
	}

	if err := outErr(); err != nil {
		return fromInternalResult(res), fmt.Errorf("could not write output: %w", err)
	}

	return fromInternalResult(res), nil
}

// History returns the latest jobs of the service, newest first. The job being
// watched from this machine is flagged with Current.
func (c *Client) History(ctx context.Context) ([]Job, error) {
	svc, err := history.NewService(history.ServiceConfig{
		Client:     c.api,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	items, err := svc.List(ctx, history.ListRequest{})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalHistory(items), nil
}

// Logs returns the execution log of a job, newest first and without duplicates.
//
// Returns [ErrNotValid] if jobID is empty.
func (c *Client) Logs(ctx context.Context, jobID string) ([]LogEntry, error) {
	svc, err := history.NewService(history.ServiceConfig{
		Client: c.api,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	entries, err := svc.Select(ctx, jobID)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalLogs(entries), nil
}

// newSessionService returns a session service with its own poller, so
// concurrent watches don't share state.
func (c *Client) newSessionService(wopts *WatchOpts) (*session.Service, func() error, error) {
	surface, outErr := newSurface(wopts)

	p, err := poller.New(poller.Config{
		Fetcher:    c.api,
		Interval:   c.pollInterval,
		MaxRetries: c.maxRetries,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create poller: %w", err)
	}

	svc, err := session.NewService(session.ServiceConfig{
		Client:     c.api,
		Surface:    surface,
		Repository: c.repo,
		Poller:     p,
		Registry:   c.registry,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create service: %w", err)
	}

	return svc, outErr, nil
}

func newSurface(wopts *WatchOpts) (printer.Surface, func() error) {
	if wopts == nil || wopts.Output == nil {
		return printer.NewTerminalSurface(io.Discard), func() error { return nil }
	}

	switch wopts.Format {
	case OutputNDJSON:
		s := printer.NewNDJSONSurface(wopts.Output)
		return s, s.Err
	default:
		return printer.NewTerminalSurface(wopts.Output), func() error { return nil }
	}
}
