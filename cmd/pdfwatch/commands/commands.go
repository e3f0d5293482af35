package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/rainpipe/pdfwatch/internal/api"
	"github.com/rainpipe/pdfwatch/internal/conventions"
	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
	"github.com/rainpipe/pdfwatch/internal/printer"
	storageio "github.com/rainpipe/pdfwatch/internal/storage/io"
	"github.com/rainpipe/pdfwatch/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatText   = "text"
	formatNDJSON = "ndjson"
	formatTable  = "table"
	formatJSON   = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug             bool
	NoLog             bool
	NoColor           bool
	LoggerType        string
	APIURL            string
	RequestsPerSecond float64
	ProfilePath       string
	DBPath            string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger

	profile *model.Profile
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("api-url", "PDF service base URL (overrides the profile).").StringVar(&c.APIURL)
	app.Flag("requests-per-second", "Limits the PDF service request rate, 0 is unlimited (overrides the profile).").Float64Var(&c.RequestsPerSecond)

	dataDir := conventions.DataDir()
	app.Flag("profile", "Path to the YAML profile with the user defaults.").Default(conventions.ProfilePath(dataDir)).StringVar(&c.ProfilePath)
	app.Flag("db-path", "Path to the SQLite session database file (overrides the profile).").StringVar(&c.DBPath)

	return c
}

// Profile returns the user profile. A missing profile file is not an error,
// flags set explicitly take precedence over the profile values.
func (r *RootCommand) Profile(ctx context.Context) (model.Profile, error) {
	if r.profile != nil {
		return *r.profile, nil
	}

	prof := model.Profile{}
	if r.ProfilePath != "" {
		dir, file := filepath.Split(r.ProfilePath)
		if dir == "" {
			dir = "."
		}
		p, err := storageio.NewProfileYAMLRepository(os.DirFS(dir)).GetProfile(ctx, file)
		switch {
		case err == nil:
			prof = p
		case errors.Is(err, fs.ErrNotExist):
			r.Logger.Debugf("Profile %s not found, using defaults", r.ProfilePath)
		default:
			return model.Profile{}, fmt.Errorf("could not load profile: %w", err)
		}
	}

	if r.APIURL != "" {
		prof.APIURL = r.APIURL
	}
	if prof.APIURL == "" {
		prof.APIURL = api.DefaultBaseURL
	}
	if r.RequestsPerSecond != 0 {
		prof.RequestsPerSecond = r.RequestsPerSecond
	}
	if r.DBPath != "" {
		prof.DBPath = r.DBPath
	}
	if prof.DBPath == "" {
		prof.DBPath = conventions.DBPath(conventions.DataDir())
	}

	if err := prof.Validate(); err != nil {
		return model.Profile{}, fmt.Errorf("invalid configuration: %w", err)
	}

	r.profile = &prof
	return prof, nil
}

// NewClient returns the PDF service client configured from the profile.
func (r *RootCommand) NewClient(ctx context.Context) (*api.HTTPClient, error) {
	prof, err := r.Profile(ctx)
	if err != nil {
		return nil, err
	}

	client, err := api.NewHTTPClient(api.HTTPClientConfig{
		BaseURL:           prof.APIURL,
		RequestsPerSecond: prof.RequestsPerSecond,
		Logger:            r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create api client: %w", err)
	}

	return client, nil
}

// NewRepository returns the local session store.
func (r *RootCommand) NewRepository(ctx context.Context) (*sqlite.Repository, error) {
	prof, err := r.Profile(ctx)
	if err != nil {
		return nil, err
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: prof.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return repo, nil
}

func (r *RootCommand) newPrinter(format string) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(r.Stdout)
	default:
		return printer.NewTablePrinter(r.Stdout)
	}
}

// newSurface returns the job surface of the format and a func returning its write error, if any.
func (r *RootCommand) newSurface(format string) (printer.Surface, func() error) {
	switch format {
	case formatNDJSON:
		s := printer.NewNDJSONSurface(r.Stdout)
		return s, s.Err
	default:
		return printer.NewTerminalSurface(r.Stdout), func() error { return nil }
	}
}
