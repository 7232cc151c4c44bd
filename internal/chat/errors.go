package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned when a message body is empty after
	// whitespace trimming. Checked before the transport is touched.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrNoActiveRoom is returned when a message is sent before a
	// conversation exists.
	ErrNoActiveRoom = errors.New("no active room")

	// ErrMissingIdentity is returned when initiation is attempted without
	// a user id or display name.
	ErrMissingIdentity = errors.New("user id and display name are required")
)

// Initiation stages, used for error reporting and metrics labels.
const (
	StageNonce   = "nonce"
	StageBackend = "backend"
	StageVerify  = "verify"
	StagePersist = "persist"
	StageHydrate = "hydrate"
	StageRestore = "restore"
)

// InitiationError reports a failed chat initiation and the stage it failed
// at. A restore-stage error means a stored session exists but could not be
// resumed; the remedy is to clear the session and initiate again.
type InitiationError struct {
	Stage string
	Err   error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("chat initiation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *InitiationError) Unwrap() error { return e.Err }
