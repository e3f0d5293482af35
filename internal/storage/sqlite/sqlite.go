package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
	"github.com/rainpipe/pdfwatch/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository, migrating the schema if required.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite session store initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const sessionColumns = `id, job_id, keywords, send_to_kindle, kindle_email, last_status, created_at, updated_at`

// CreateSession stores a new session.
func (r *Repository) CreateSession(ctx context.Context, s model.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.CreatedAt
	}

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.JobID,
		s.Keywords,
		s.SendToKindle,
		s.KindleEmail,
		string(s.LastStatus),
		s.CreatedAt.Unix(),
		updatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sessions.") {
			return fmt.Errorf("session already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert session: %w", err)
	}

	r.logger.Debugf("Created session %s for job %s", s.ID, s.JobID)
	return nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	s, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query session: %w", err)
	}

	return s, nil
}

// GetSessionByJobID retrieves the session of a job.
func (r *Repository) GetSessionByJobID(ctx context.Context, jobID string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE job_id = ?`

	s, err := r.scanOne(ctx, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session for job %s: %w", jobID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query session: %w", err)
	}

	return s, nil
}

// ListSessions returns all sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// UpdateSession updates an existing session.
func (r *Repository) UpdateSession(ctx context.Context, s model.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	query := `
		UPDATE sessions
		SET
			job_id = ?,
			keywords = ?,
			send_to_kindle = ?,
			kindle_email = ?,
			last_status = ?,
			created_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		s.JobID,
		s.Keywords,
		s.SendToKindle,
		s.KindleEmail,
		string(s.LastStatus),
		s.CreatedAt.Unix(),
		s.UpdatedAt.Unix(),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated session %s (%s)", s.ID, s.LastStatus)
	return nil
}

// DeleteSession deletes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted session %s", id)
	return nil
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*model.Session, error) {
	s, err := scanRow(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (model.Session, error) {
	var s model.Session
	var lastStatus string
	var createdAt, updatedAt int64

	err := sc.Scan(
		&s.ID,
		&s.JobID,
		&s.Keywords,
		&s.SendToKindle,
		&s.KindleEmail,
		&lastStatus,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Session{}, err
	}

	s.LastStatus = model.JobStatus(lastStatus)
	s.CreatedAt = timeFromUnix(createdAt)
	s.UpdatedAt = timeFromUnix(updatedAt)

	return s, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
