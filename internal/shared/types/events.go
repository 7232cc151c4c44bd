package types

// Lifecycle event names emitted by the orchestrator. Observers subscribe by
// name; delivery is synchronous and happens after the matching State Store
// mutation.
const (
	EventChatInitiated   = "chat.initiated"
	EventChatRestored    = "chat.restored"
	EventChatError       = "chat.error"
	EventChatCleared     = "chat.cleared"
	EventMessageSent     = "message.sent"
	EventMessageReceived = "message.received"
	EventMessageUpdated  = "message.updated"
	EventRoomLoaded      = "room.loaded"
	EventUnreadChanged   = "unread.changed"
	EventTyping          = "typing"
)

// ChatEvent is the payload for chat.initiated and chat.restored.
type ChatEvent struct {
	User     *UserRecord `json:"user"`
	RoomID   int64       `json:"room_id"`
	Room     *Room       `json:"room,omitempty"`
	Messages []Message   `json:"messages,omitempty"`
}

// ErrorEvent is the payload for chat.error.
type ErrorEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// RoomEvent is the payload for room.loaded.
type RoomEvent struct {
	Room     *Room     `json:"room"`
	Messages []Message `json:"messages"`
}

// UnreadEvent is the payload for unread.changed.
type UnreadEvent struct {
	Count int `json:"count"`
}

// TypingEvent is the payload for typing.
type TypingEvent struct {
	RoomID int64  `json:"room_id"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}
