package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskrelay/widget/internal/shared/types"
)

func TestDecodeFrameConnected(t *testing.T) {
	event, frameType, err := decodeFrame([]byte(`{"type":"connected"}`))
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Equal(t, frameConnected, frameType)
}

func TestDecodeFrameMessage(t *testing.T) {
	data := []byte(`{
		"type": "message",
		"payload": {
			"id": 77,
			"unique_temp_id": "tmp_abc",
			"room_id": 42,
			"message": "hello",
			"timestamp": "2026-08-30T10:00:00Z",
			"status": "delivered",
			"sender": {"id": 3, "user_id": "agent-9", "display_name": "Dana", "extras": {"type": "agent"}}
		}
	}`)

	event, _, err := decodeFrame(data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, EventMessage, event.Kind)
	assert.Equal(t, int64(42), event.RoomID)
	require.NotNil(t, event.Message)
	assert.Equal(t, int64(77), event.Message.ID)
	assert.Equal(t, "tmp_abc", event.Message.TempID)
	assert.Equal(t, "hello", event.Message.Body)
	assert.Equal(t, types.DeliveryDelivered, event.Message.Delivery)
	assert.True(t, event.Message.Sender.IsAgent())
}

func TestDecodeFrameTyping(t *testing.T) {
	data := []byte(`{"type":"typing","payload":{"room_id":42,"user_id":"agent-9","typing":true}}`)

	event, _, err := decodeFrame(data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, EventTyping, event.Kind)
	assert.Equal(t, "agent-9", event.UserID)
	assert.True(t, event.Typing)
}

func TestDecodeFrameReceipts(t *testing.T) {
	event, _, err := decodeFrame([]byte(`{"type":"receipt","payload":{"room_id":42,"kind":"read","last_id":90}}`))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, EventRead, event.Kind)
	assert.Equal(t, int64(90), event.WatermarkID)

	event, _, err = decodeFrame([]byte(`{"type":"receipt","payload":{"room_id":42,"kind":"delivered","last_id":88}}`))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, EventDelivered, event.Kind)
}

func TestDecodeFrameUnknownTypeSkipped(t *testing.T) {
	event, frameType, err := decodeFrame([]byte(`{"type":"presence","payload":{"online":true}}`))
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Equal(t, "presence", frameType)
}

func TestDecodeFrameMalformed(t *testing.T) {
	_, _, err := decodeFrame([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestToMessagesSortsAscending(t *testing.T) {
	msgs := toMessages([]wireMessage{
		{ID: 9, Body: "newest", Timestamp: "2026-08-30T10:02:00Z"},
		{ID: 7, Body: "oldest", Timestamp: "2026-08-30T10:00:00Z"},
		{ID: 8, Body: "middle", Timestamp: "2026-08-30T10:01:00Z"},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "oldest", msgs[0].Body)
	assert.Equal(t, "newest", msgs[2].Body)
}

func TestWireMessageDefaultsToSent(t *testing.T) {
	wm := wireMessage{ID: 1, Body: "x", Status: "something-new"}
	assert.Equal(t, types.DeliverySent, wm.toMessage().Delivery)
}
