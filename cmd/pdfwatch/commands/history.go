package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rainpipe/pdfwatch/internal/app/history"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	current string
	format  string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the most recent jobs.")
	c.Cmd.Flag("current", "Job to mark as in progress (defaults to the latest active local job).").StringVar(&c.current)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.NewClient(ctx)
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.NewRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Client:     client,
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	items, err := svc.List(ctx, history.ListRequest{CurrentJobID: c.current})
	if err != nil {
		return fmt.Errorf("could not list jobs: %w", err)
	}

	if err := c.rootCmd.newPrinter(c.format).PrintJobHistory(items); err != nil {
		return fmt.Errorf("could not print job history: %w", err)
	}

	return nil
}
