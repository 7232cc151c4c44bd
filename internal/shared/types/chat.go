package types

import (
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// UserRecord identifies an authenticated widget visitor. The record is
// round-tripped verbatim through persistence; the orchestrator never
// reconstructs it field by field.
type UserRecord struct {
	ID          int64                  `json:"id"`
	Identifier  string                 `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	Extras      map[string]interface{} `json:"extras,omitempty"`
}

// SessionTuple is the persisted unit identifying a resumable conversation.
type SessionTuple struct {
	ApplicationID string      `json:"app_id"`
	User          *UserRecord `json:"user"`
	AuthToken     string      `json:"auth_token"`
	RoomID        *int64      `json:"room_id"`
}

// Usable reports whether the tuple can seed a session restoration for the
// given application. Tuples recorded for a different application are never
// reused, even if otherwise complete.
func (t *SessionTuple) Usable(applicationID string) bool {
	if t == nil || t.ApplicationID != applicationID {
		return false
	}
	return t.User != nil && t.AuthToken != "" && t.RoomID != nil
}

// Participant is a member of a conversation room.
type Participant struct {
	ID          int64                  `json:"id"`
	Identifier  string                 `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	Extras      map[string]interface{} `json:"extras,omitempty"`
}

// IsAgent reports whether the participant is a support agent rather than a
// visitor, based on the agent-type extra set by the backend.
func (p *Participant) IsAgent() bool {
	if p.Extras == nil {
		return false
	}
	kind, _ := p.Extras["type"].(string)
	return kind == "agent"
}

// Room is the server-side conversation object. Options carries a serialized
// sub-document owned by the backend; the resolution flag lives inside it.
type Room struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	AvatarURL     string        `json:"avatar_url,omitempty"`
	Participants  []Participant `json:"participants,omitempty"`
	LastMessageID int64         `json:"last_message_id,omitempty"`
	LastMessage   string        `json:"last_message,omitempty"`
	Options       string        `json:"options,omitempty"`
}

// roomOptions is the wire shape of the Options sub-document.
type roomOptions struct {
	IsResolved bool `json:"is_resolved"`
}

// Resolved reports whether an agent has closed the conversation. Malformed
// or missing option data counts as not resolved.
func (r *Room) Resolved() bool {
	if r == nil || r.Options == "" {
		return false
	}
	var opts roomOptions
	if err := sonic.UnmarshalString(r.Options, &opts); err != nil {
		return false
	}
	return opts.IsResolved
}

// DeliveryState tracks a message through the delivery pipeline.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
	DeliveryFailed    DeliveryState = "failed"
)

// Message is a single chat message. TempID is assigned client-side before
// the server assigns a permanent ID.
type Message struct {
	ID        int64                  `json:"id,omitempty"`
	TempID    string                 `json:"temp_id"`
	Body      string                 `json:"body"`
	Timestamp time.Time              `json:"timestamp"`
	Sender    Participant            `json:"sender"`
	Delivery  DeliveryState          `json:"delivery"`
	Extras    map[string]interface{} `json:"extras,omitempty"`
}

// Key returns the dedup-resolved identity: the permanent ID once assigned,
// otherwise the client-generated temporary ID.
func (m *Message) Key() string {
	if m.ID > 0 {
		return "id:" + strconv.FormatInt(m.ID, 10)
	}
	return "tmp:" + m.TempID
}

// Snapshot is the State Store's externally observable state.
type Snapshot struct {
	CurrentUser  *UserRecord `json:"current_user,omitempty"`
	Room         *Room       `json:"room,omitempty"`
	RoomID       *int64      `json:"room_id,omitempty"`
	Messages     []Message   `json:"messages"`
	LoggedIn     bool        `json:"logged_in"`
	Open         bool        `json:"open"`
	Typing       bool        `json:"typing"`
	UnreadCount  int         `json:"unread_count"`
	RoomSubtitle string      `json:"room_subtitle,omitempty"`
	RoomAvatar   string      `json:"room_avatar,omitempty"`
}
