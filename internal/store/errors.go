package store

import (
	"errors"

	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
)

// Sentinel errors. The coded ones match their internal/errors counterparts
// under errors.Is, so services can test either.
var (
	ErrNotFound      = apperrors.NotFound("resource not found")
	ErrAlreadyExists = apperrors.Conflict("resource already exists")
	ErrUsernameTaken = apperrors.Conflict("username already taken")

	// ErrBatchFull is returned when staging a write would exceed the batch bound.
	ErrBatchFull = errors.New("batch operation limit reached")

	// ErrBatchClosed is returned when a committed or discarded batch is reused.
	ErrBatchClosed = errors.New("batch already closed")
)
