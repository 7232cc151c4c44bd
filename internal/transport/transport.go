package transport

import (
	"context"

	"github.com/deskrelay/widget/internal/shared/types"
)

// EventKind classifies inbound transport events.
type EventKind string

const (
	EventMessage   EventKind = "message"
	EventTyping    EventKind = "typing"
	EventDelivered EventKind = "delivered"
	EventRead      EventKind = "read"
)

// Event is a single inbound event from the messaging transport. Fields are
// populated according to Kind: Message for message events, Typing/UserID
// for typing events, WatermarkID for receipt events.
type Event struct {
	Kind        EventKind
	RoomID      int64
	Message     *types.Message
	UserID      string
	Typing      bool
	WatermarkID int64
}

// Session is the narrow contract the orchestrator needs from the vendor
// messaging transport. Implementations own protocol internals; the
// orchestrator only sees authenticated messaging primitives.
type Session interface {
	// Nonce obtains a fresh one-time nonce proving possession of the
	// transport session. Single-use: callers must fetch a new one per
	// initiation attempt.
	Nonce(ctx context.Context) (string, error)

	// VerifyIdentityToken exchanges a backend-issued identity token for a
	// verified user record and the transport auth token.
	VerifyIdentityToken(ctx context.Context, identityToken string) (*types.UserRecord, string, error)

	// Authenticate resumes a session for a previously verified user using
	// the stored auth token.
	Authenticate(ctx context.Context, user *types.UserRecord, token string) (*types.UserRecord, error)

	// Authenticated reports whether the session holds a validated token.
	Authenticated() bool

	// Ready is closed once the transport's configuration handshake
	// completes after authentication.
	Ready() <-chan struct{}

	// FetchRoom returns the room and its inline recent messages.
	FetchRoom(ctx context.Context, roomID int64) (*types.Room, []types.Message, error)

	// FetchOlderMessages returns up to limit messages anchored strictly
	// before beforeID, oldest first.
	FetchOlderMessages(ctx context.Context, roomID int64, limit int, beforeID int64) ([]types.Message, error)

	// Send posts a message and returns the server-confirmed version,
	// which carries the permanent id alongside the original temp id.
	Send(ctx context.Context, roomID int64, msg *types.Message) (*types.Message, error)

	// Events is the inbound event stream. Closed when the session closes.
	Events() <-chan Event

	// Close tears down the stream connection.
	Close() error
}
