package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrTransport is returned when the PDF service can't be reached or answers with a non 2xx status.
	ErrTransport = errors.New("transport error")
	// ErrProtocol is returned when the PDF service answers with a malformed or incomplete payload.
	ErrProtocol = errors.New("protocol error")
	// ErrRejected is returned when the PDF service refuses a job submission.
	ErrRejected = errors.New("rejected")
	// ErrReadOnly is returned when a write-like action is attempted on a job that can't be modified anymore.
	ErrReadOnly = errors.New("read only")
)
