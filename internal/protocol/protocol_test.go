package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatsync/internal/domain"
	"chatsync/internal/protocol"
)

func TestDecode(t *testing.T) {
	t.Run("Ping", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`{"type":"ping"}`))
		assert.NoError(t, err)
		assert.IsType(t, protocol.Ping{}, ev)
	})

	t.Run("Message", func(t *testing.T) {
		raw := `{"type":"message","id":12,"sender_id":7,"receiver_id":5,"content":"hi","created_at":"2025-03-01T10:00:00Z","is_read":false}`
		ev, err := protocol.Decode([]byte(raw))
		assert.NoError(t, err)
		me, ok := ev.(protocol.MessageEvent)
		assert.True(t, ok)
		assert.Equal(t, int64(12), me.ID)
		assert.Equal(t, int64(7), me.SenderID)
		assert.Equal(t, "hi", me.Content)
	})

	t.Run("SharedPost", func(t *testing.T) {
		raw := `{"type":"shared_post","id":3,"sender_id":9,"receiver_id":5,"content":"","media_type":"image","media_url":"/m/3.jpg"}`
		ev, err := protocol.Decode([]byte(raw))
		assert.NoError(t, err)
		me, ok := ev.(protocol.MessageEvent)
		assert.True(t, ok)
		assert.Equal(t, domain.KindSharedPost, me.Kind)
		assert.Equal(t, "image", me.MediaType)
	})

	t.Run("MessageWithReplyReference", func(t *testing.T) {
		raw := `{"type":"message","id":13,"sender_id":7,"receiver_id":5,"content":"same here",
			"reply_to":{"msg_id":12,"content":"hi","sender_name":"alice"}}`
		ev, err := protocol.Decode([]byte(raw))
		assert.NoError(t, err)
		me, ok := ev.(protocol.MessageEvent)
		assert.True(t, ok)
		assert.NotNil(t, me.ReplyTo)
		assert.Equal(t, int64(12), me.ReplyTo.MessageID)
		assert.Equal(t, "alice", me.ReplyTo.SenderName)
	})

	t.Run("Reaction", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`{"type":"reaction","message_id":5,"reaction":"🔥","reacted_by":7}`))
		assert.NoError(t, err)
		re, ok := ev.(protocol.ReactionEvent)
		assert.True(t, ok)
		assert.Equal(t, int64(5), re.MessageID)
		assert.Equal(t, "🔥", re.Reaction)
	})

	t.Run("Edit", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`{"type":"edit_message","message_id":5,"new_content":"edited"}`))
		assert.NoError(t, err)
		assert.Equal(t, protocol.EditEvent{MessageID: 5, NewContent: "edited"}, ev)
	})

	t.Run("Delete", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`{"type":"delete_message","message_id":5}`))
		assert.NoError(t, err)
		assert.Equal(t, protocol.DeleteEvent{MessageID: 5}, ev)
	})

	t.Run("ReadReceipt", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`{"type":"read_receipt","reader_id":7}`))
		assert.NoError(t, err)
		assert.Equal(t, protocol.ReadReceiptEvent{ReaderID: 7}, ev)
	})

	t.Run("Typing", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`{"type":"typing","sender_id":7,"receiver_id":5,"is_typing":true}`))
		assert.NoError(t, err)
		assert.Equal(t, protocol.TypingEvent{SenderID: 7, ReceiverID: 5, IsTyping: true}, ev)
	})

	t.Run("UnknownDiscriminantIsIgnorable", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`{"type":"call_offer","sdp":"..."}`))
		assert.Nil(t, ev)
		assert.ErrorIs(t, err, domain.ErrUnknownFrame)
	})

	t.Run("MalformedPayloadDoesNotPanic", func(t *testing.T) {
		ev, err := protocol.Decode([]byte(`not json at all`))
		assert.Nil(t, ev)
		assert.ErrorIs(t, err, domain.ErrMalformedFrame)
	})
}

func TestEncode(t *testing.T) {
	t.Run("PlainSendHasNoDiscriminant", func(t *testing.T) {
		data, err := protocol.Encode(protocol.SendMessage{To: 7, Content: "hey"})
		assert.NoError(t, err)
		var fields map[string]any
		assert.NoError(t, json.Unmarshal(data, &fields))
		_, hasType := fields["type"]
		assert.False(t, hasType)
		assert.Equal(t, float64(7), fields["to"])
		assert.Equal(t, "hey", fields["content"])
	})

	t.Run("EditUsesMsgID", func(t *testing.T) {
		data, err := protocol.Encode(protocol.EditMessage{MsgID: 5, NewContent: "new", ReceiverID: 7})
		assert.NoError(t, err)
		var fields map[string]any
		assert.NoError(t, json.Unmarshal(data, &fields))
		assert.Equal(t, "edit_message", fields["type"])
		assert.Equal(t, float64(5), fields["msg_id"])
		assert.Equal(t, "new", fields["new_content"])
		assert.Equal(t, float64(7), fields["receiver_id"])
	})

	t.Run("DeleteForEveryoneUsesMessageID", func(t *testing.T) {
		data, err := protocol.Encode(protocol.DeleteForEveryone{MessageID: 5, ReceiverID: 7})
		assert.NoError(t, err)
		var fields map[string]any
		assert.NoError(t, json.Unmarshal(data, &fields))
		assert.Equal(t, "delete_for_everyone", fields["type"])
		assert.Equal(t, float64(5), fields["message_id"])
	})

	t.Run("Pong", func(t *testing.T) {
		data, err := protocol.Encode(protocol.Pong{})
		assert.NoError(t, err)
		assert.JSONEq(t, `{"type":"pong"}`, string(data))
	})

	t.Run("Reply", func(t *testing.T) {
		data, err := protocol.Encode(protocol.ReplyMessage{To: 7, ReplyMsgID: 3, Content: "same"})
		assert.NoError(t, err)
		var fields map[string]any
		assert.NoError(t, json.Unmarshal(data, &fields))
		assert.Equal(t, "reply_message", fields["type"])
		assert.Equal(t, float64(3), fields["reply_msg_id"])
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Run("RFC3339", func(t *testing.T) {
		got := protocol.ParseTimestamp("2025-03-01T10:00:00Z")
		assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("PythonIsoformat", func(t *testing.T) {
		got := protocol.ParseTimestamp("2025-03-01T10:00:00.123456")
		assert.Equal(t, 2025, got.Year())
		assert.Equal(t, 123456000, got.Nanosecond())
	})

	t.Run("GarbageFallsBackToNow", func(t *testing.T) {
		got := protocol.ParseTimestamp("whenever")
		assert.WithinDuration(t, time.Now().UTC(), got, 5*time.Second)
	})
}

func TestMessageEventToMessage(t *testing.T) {
	ev := protocol.MessageEvent{
		Kind:      domain.KindMessage,
		ID:        9,
		SenderID:  7,
		Content:   "hi",
		CreatedAt: "2025-03-01T10:00:00Z",
		ReplyTo:   &domain.ReplyRef{MessageID: 4},
	}
	m := ev.ToMessage()
	assert.Equal(t, int64(9), m.ID)
	assert.Equal(t, int64(7), m.SenderID)
	assert.Equal(t, 2025, m.CreatedAt.Year())
	assert.NotNil(t, m.ReplyTo)
	assert.Equal(t, int64(4), m.ReplyTo.MessageID)
}
