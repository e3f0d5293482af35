package storage

import (
	"context"

	"github.com/rainpipe/pdfwatch/internal/model"
)

// Repository is the interface for the local session persistence.
type Repository interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetSessionByJobID(ctx context.Context, jobID string) (*model.Session, error)
	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]model.Session, error)
	UpdateSession(ctx context.Context, s model.Session) error
	DeleteSession(ctx context.Context, id string) error
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name Repository
