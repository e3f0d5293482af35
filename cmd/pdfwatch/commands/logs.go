package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rainpipe/pdfwatch/internal/app/history"
)

type LogsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	jobID  string
	format string
}

// NewLogsCommand returns the logs command.
func NewLogsCommand(rootCmd *RootCommand, app *kingpin.Application) *LogsCommand {
	c := &LogsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("logs", "Show the execution logs of a job, newest first.")
	c.Cmd.Arg("job-id", "The job ID.").Required().StringVar(&c.jobID)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c LogsCommand) Name() string { return c.Cmd.FullCommand() }

func (c LogsCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.NewClient(ctx)
	if err != nil {
		return err
	}

	// Logs are read only, no local session is involved.
	svc, err := history.NewService(history.ServiceConfig{
		Client: client,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	entries, err := svc.Select(ctx, c.jobID)
	if err != nil {
		return fmt.Errorf("could not get logs: %w", err)
	}

	if err := c.rootCmd.newPrinter(c.format).PrintLogs(entries); err != nil {
		return fmt.Errorf("could not print logs: %w", err)
	}

	return nil
}
