package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rainpipe/pdfwatch/internal/conventions"
	"github.com/rainpipe/pdfwatch/internal/devserver"
)

type DevServerCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr  string
	failKeyword string
	failEvery   int
	bookmarks   int
}

// NewDevServerCommand returns the devserver command.
func NewDevServerCommand(rootCmd *RootCommand, app *kingpin.Application) *DevServerCommand {
	c := &DevServerCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("devserver", "Run a simulated PDF service for local development.")
	c.Cmd.Flag("listen", "Listen address.").Default(conventions.DevServerAddress).StringVar(&c.listenAddr)
	c.Cmd.Flag("fail-keyword", "Jobs whose keywords contain this value fail while summarizing.").StringVar(&c.failKeyword)
	c.Cmd.Flag("fail-every", "Answer every n-th progress request with an error, 0 disables it.").Default("0").IntVar(&c.failEvery)
	c.Cmd.Flag("bookmarks", "Number of bookmarks found by every job.").Default("42").IntVar(&c.bookmarks)

	return c
}

func (c DevServerCommand) Name() string { return c.Cmd.FullCommand() }

func (c DevServerCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	dev, err := devserver.New(devserver.Config{
		FailKeyword:   c.failKeyword,
		FailEvery:     c.failEvery,
		BookmarkCount: c.bookmarks,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create dev server: %w", err)
	}

	server := &http.Server{
		Addr:              c.listenAddr,
		Handler:           dev.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Infof("Simulated PDF service listening on %s", c.listenAddr)
		errC <- server.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shutdown dev server: %w", err)
	}
	logger.Infof("Simulated PDF service stopped")

	return nil
}
