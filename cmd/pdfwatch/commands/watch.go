package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rainpipe/pdfwatch/internal/app/session"
)

type WatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	jobID  string
	format string
}

// NewWatchCommand returns the watch command.
func NewWatchCommand(rootCmd *RootCommand, app *kingpin.Application) *WatchCommand {
	c := &WatchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("watch", "Resume watching a job, the latest active local job if none is given.")
	c.Cmd.Arg("job-id", "The job to watch.").StringVar(&c.jobID)
	c.Cmd.Flag("format", "Output format (text, ndjson).").Default(formatText).EnumVar(&c.format, formatText, formatNDJSON)

	return c
}

func (c WatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c WatchCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.NewClient(ctx)
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.NewRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	surface, surfaceErr := c.rootCmd.newSurface(c.format)
	svc, err := session.NewService(session.ServiceConfig{
		Client:     client,
		Surface:    surface,
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Resume(ctx, c.jobID)
	if res != nil && res.Outcome == session.OutcomeInterrupted {
		c.rootCmd.Logger.Infof("Stopped watching job %s, resume it with the watch command", res.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not watch job: %w", err)
	}

	if err := surfaceErr(); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}

	return resultError(res)
}
