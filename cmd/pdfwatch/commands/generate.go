package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rainpipe/pdfwatch/internal/app/session"
	"github.com/rainpipe/pdfwatch/internal/model"
)

type GenerateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	keywords     string
	dateStart    string
	dateEnd      string
	sendToKindle bool
	kindleEmail  string
	format       string
}

// NewGenerateCommand returns the generate command.
func NewGenerateCommand(rootCmd *RootCommand, app *kingpin.Application) *GenerateCommand {
	c := &GenerateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("generate", "Submit a keyword filtered PDF generation and watch it until it finishes.")
	c.Cmd.Flag("keywords", "Keywords used to filter the bookmarks (comma separated).").Short('k').Required().StringVar(&c.keywords)
	c.Cmd.Flag("date-start", "Only bookmarks created after this date (YYYY-MM-DD).").StringVar(&c.dateStart)
	c.Cmd.Flag("date-end", "Only bookmarks created before this date (YYYY-MM-DD).").StringVar(&c.dateEnd)
	c.Cmd.Flag("send-to-kindle", "Send the PDF to Kindle (defaults to the profile).").BoolVar(&c.sendToKindle)
	c.Cmd.Flag("kindle-email", "Kindle delivery address (defaults to the profile).").StringVar(&c.kindleEmail)
	c.Cmd.Flag("format", "Output format (text, ndjson).").Default(formatText).EnumVar(&c.format, formatText, formatNDJSON)

	return c
}

func (c GenerateCommand) Name() string { return c.Cmd.FullCommand() }

func (c GenerateCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	prof, err := c.rootCmd.Profile(ctx)
	if err != nil {
		return err
	}

	req := model.GenerateRequest{
		Keywords:     c.keywords,
		DateStart:    c.dateStart,
		DateEnd:      c.dateEnd,
		SendToKindle: c.sendToKindle || prof.SendToKindle,
		KindleEmail:  c.kindleEmail,
	}
	if req.KindleEmail == "" {
		req.KindleEmail = prof.KindleEmail
	}

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
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Submit(ctx, req)
	if res != nil && res.Outcome == session.OutcomeInterrupted {
		c.rootCmd.Logger.Infof("Stopped watching job %s, resume it with the watch command", res.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not generate PDF: %w", err)
	}

	if err := surfaceErr(); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}

	return resultError(res)
}

// resultError returns an error for the sessions that didn't end well.
func resultError(res *session.Result) error {
	switch res.Outcome {
	case session.OutcomeCompleted:
		if res.Status != model.JobStatusCompleted {
			return fmt.Errorf("job %s finished with status %s", res.JobID, res.Status)
		}
		return nil
	case session.OutcomeStalled:
		if res.LastError == nil {
			return fmt.Errorf("job %s stalled, resume it with the watch command", res.JobID)
		}
		return fmt.Errorf("job %s stalled, resume it with the watch command: %w", res.JobID, res.LastError)
	default:
		return nil
	}
}
