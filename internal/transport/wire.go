package transport

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"

	"github.com/deskrelay/widget/internal/shared/types"
)

// REST envelopes. The messaging vendor wraps every response in "results".

type nonceEnvelope struct {
	Results struct {
		Nonce string `json:"nonce"`
	} `json:"results"`
}

type userEnvelope struct {
	Results struct {
		User wireUser `json:"user"`
	} `json:"results"`
}

type roomEnvelope struct {
	Results struct {
		Room     wireRoom      `json:"room"`
		Messages []wireMessage `json:"messages"`
	} `json:"results"`
}

type messagesEnvelope struct {
	Results struct {
		Messages []wireMessage `json:"messages"`
	} `json:"results"`
}

type messageEnvelope struct {
	Results struct {
		Message wireMessage `json:"message"`
	} `json:"results"`
}

type wireError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type wireUser struct {
	ID          int64                  `json:"id"`
	Identifier  string                 `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	AvatarURL   string                 `json:"avatar_url"`
	Token       string                 `json:"token"`
	Extras      map[string]interface{} `json:"extras"`
}

func (u *wireUser) toUser() *types.UserRecord {
	return &types.UserRecord{
		ID:          u.ID,
		Identifier:  u.Identifier,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Extras:      u.Extras,
	}
}

type wireParticipant struct {
	ID          int64                  `json:"id"`
	Identifier  string                 `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	AvatarURL   string                 `json:"avatar_url"`
	Extras      map[string]interface{} `json:"extras"`
}

func (p *wireParticipant) toParticipant() types.Participant {
	return types.Participant{
		ID:          p.ID,
		Identifier:  p.Identifier,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Extras:      p.Extras,
	}
}

type wireRoom struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	AvatarURL     string            `json:"avatar_url"`
	Participants  []wireParticipant `json:"participants"`
	LastMessageID int64             `json:"last_message_id"`
	LastMessage   string            `json:"last_message"`
	Options       string            `json:"options"`
}

func (r *wireRoom) toRoom() *types.Room {
	room := &types.Room{
		ID:            r.ID,
		Name:          r.Name,
		AvatarURL:     r.AvatarURL,
		LastMessageID: r.LastMessageID,
		LastMessage:   r.LastMessage,
		Options:       r.Options,
	}
	for i := range r.Participants {
		room.Participants = append(room.Participants, r.Participants[i].toParticipant())
	}
	return room
}

type wireMessage struct {
	ID        int64                  `json:"id"`
	TempID    string                 `json:"unique_temp_id"`
	RoomID    int64                  `json:"room_id"`
	Body      string                 `json:"message"`
	Timestamp string                 `json:"timestamp"`
	Status    string                 `json:"status"`
	Sender    wireParticipant        `json:"sender"`
	Extras    map[string]interface{} `json:"extras"`
}

func (m *wireMessage) toMessage() types.Message {
	ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	return types.Message{
		ID:        m.ID,
		TempID:    m.TempID,
		Body:      m.Body,
		Timestamp: ts,
		Sender:    m.Sender.toParticipant(),
		Delivery:  deliveryFromStatus(m.Status),
		Extras:    m.Extras,
	}
}

func deliveryFromStatus(status string) types.DeliveryState {
	switch status {
	case "pending":
		return types.DeliveryPending
	case "delivered":
		return types.DeliveryDelivered
	case "read":
		return types.DeliveryRead
	case "failed":
		return types.DeliveryFailed
	default:
		return types.DeliverySent
	}
}

// toMessages converts a wire batch to domain messages in ascending id
// order. The vendor returns history newest first; consumers expect
// chronological order.
func toMessages(wire []wireMessage) []types.Message {
	out := make([]types.Message, 0, len(wire))
	for i := range wire {
		out = append(out, wire[i].toMessage())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stream frames. Every frame is a type tag plus a type-specific payload.

type rawFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type typingPayload struct {
	RoomID int64  `json:"room_id"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

type receiptPayload struct {
	RoomID int64  `json:"room_id"`
	Kind   string `json:"kind"`
	LastID int64  `json:"last_id"`
}

const (
	frameConnected = "connected"
	frameMessage   = "message"
	frameTyping    = "typing"
	frameReceipt   = "receipt"
)

// decodeFrame parses a single stream frame into an Event. The connected
// handshake frame yields (nil, frameConnected, nil). Unknown frame types
// are skipped with (nil, type, nil) so protocol additions don't break
// older widgets.
func decodeFrame(data []byte) (*Event, string, error) {
	var raw rawFrame
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("decode frame: %w", err)
	}

	switch raw.Type {
	case frameConnected:
		return nil, frameConnected, nil

	case frameMessage:
		var wm wireMessage
		if err := sonic.Unmarshal(raw.Payload, &wm); err != nil {
			return nil, raw.Type, fmt.Errorf("decode message frame: %w", err)
		}
		msg := wm.toMessage()
		return &Event{Kind: EventMessage, RoomID: wm.RoomID, Message: &msg}, raw.Type, nil

	case frameTyping:
		var tp typingPayload
		if err := sonic.Unmarshal(raw.Payload, &tp); err != nil {
			return nil, raw.Type, fmt.Errorf("decode typing frame: %w", err)
		}
		return &Event{Kind: EventTyping, RoomID: tp.RoomID, UserID: tp.UserID, Typing: tp.Typing}, raw.Type, nil

	case frameReceipt:
		var rp receiptPayload
		if err := sonic.Unmarshal(raw.Payload, &rp); err != nil {
			return nil, raw.Type, fmt.Errorf("decode receipt frame: %w", err)
		}
		kind := EventDelivered
		if rp.Kind == "read" {
			kind = EventRead
		}
		return &Event{Kind: kind, RoomID: rp.RoomID, WatermarkID: rp.LastID}, raw.Type, nil

	default:
		return nil, raw.Type, nil
	}
}
