// Package protocol encodes and decodes the JSON frames of the chat wire
// protocol. It is pure and stateless: the connection layer feeds it raw
// frames and forwards the typed events it returns.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"chatsync/internal/domain"
)

// Event is one decoded inbound frame.
type Event interface {
	eventType() string
}

// Ping is the server keepalive probe; the connection manager answers it
// with a Pong before anything else sees it.
type Ping struct{}

// MessageEvent is a new chat message or shared post.
type MessageEvent struct {
	Kind           string           `json:"type"`
	ID             int64            `json:"id"`
	SenderID       int64            `json:"sender_id"`
	ReceiverID     int64            `json:"receiver_id"`
	SenderUsername string           `json:"sender_username"`
	Content        string           `json:"content"`
	CreatedAt      string           `json:"created_at"`
	ReplyTo        *domain.ReplyRef `json:"reply_to,omitempty"`
	IsRead         bool             `json:"is_read"`
	MediaType      string           `json:"media_type"`
	MediaURL       string           `json:"media_url"`
}

// ReactionEvent attaches an emoji reaction to an existing message.
type ReactionEvent struct {
	MessageID int64  `json:"message_id"`
	Reaction  string `json:"reaction"`
	ReactedBy int64  `json:"reacted_by"`
}

// EditEvent rewrites the content of an existing message.
type EditEvent struct {
	MessageID  int64  `json:"message_id"`
	NewContent string `json:"new_content"`
}

// DeleteEvent removes a message for everyone.
type DeleteEvent struct {
	MessageID int64 `json:"message_id"`
}

// ReadReceiptEvent is the watermark "peer has read everything" signal.
type ReadReceiptEvent struct {
	ReaderID int64 `json:"reader_id"`
}

// TypingEvent is the transient typing indicator.
type TypingEvent struct {
	SenderID   int64 `json:"sender_id"`
	ReceiverID int64 `json:"receiver_id"`
	IsTyping   bool  `json:"is_typing"`
}

func (Ping) eventType() string             { return "ping" }
func (MessageEvent) eventType() string     { return "message" }
func (ReactionEvent) eventType() string    { return "reaction" }
func (EditEvent) eventType() string        { return "edit_message" }
func (DeleteEvent) eventType() string      { return "delete_message" }
func (ReadReceiptEvent) eventType() string { return "read_receipt" }
func (TypingEvent) eventType() string      { return "typing" }

// Decode parses one inbound frame. Malformed payloads yield
// domain.ErrMalformedFrame and unrecognized discriminants yield
// domain.ErrUnknownFrame; both are recoverable and must not close the
// connection.
func Decode(data []byte) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}

	switch probe.Type {
	case "ping":
		return Ping{}, nil
	case "message", "shared_post":
		var ev MessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
		}
		return ev, nil
	case "reaction":
		var ev ReactionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
		}
		return ev, nil
	case "edit_message":
		var ev EditEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
		}
		return ev, nil
	case "delete_message":
		var ev DeleteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
		}
		return ev, nil
	case "read_receipt":
		var ev ReadReceiptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
		}
		return ev, nil
	case "typing":
		var ev TypingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFrame, probe.Type)
	}
}

// Action is one outbound frame.
type Action interface {
	actionType() string
}

// SendMessage is a plain chat message. It is the one frame without a
// discriminant: the server treats any payload with to/content as a send.
type SendMessage struct {
	To      int64  `json:"to"`
	Content string `json:"content"`
}

// ReplyMessage sends a message quoting an earlier one.
type ReplyMessage struct {
	To         int64  `json:"to"`
	ReplyMsgID int64  `json:"reply_msg_id"`
	Content    string `json:"content"`
}

// SendReaction reacts to a message with an emoji.
type SendReaction struct {
	MessageID int64  `json:"message_id"`
	Reaction  string `json:"reaction"`
}

// EditMessage rewrites one of the local user's messages.
type EditMessage struct {
	MsgID      int64  `json:"msg_id"`
	NewContent string `json:"new_content"`
	ReceiverID int64  `json:"receiver_id"`
}

// DeleteForEveryone removes a message on both sides.
type DeleteForEveryone struct {
	MessageID  int64 `json:"message_id"`
	ReceiverID int64 `json:"receiver_id"`
}

// Typing toggles the typing indicator for the receiver.
type Typing struct {
	IsTyping   bool  `json:"is_typing"`
	ReceiverID int64 `json:"receiver_id"`
}

// ReadReceipt marks every message from sender as read.
type ReadReceipt struct {
	SenderID int64 `json:"sender_id"`
}

// Pong answers a server Ping.
type Pong struct{}

func (SendMessage) actionType() string       { return "" }
func (ReplyMessage) actionType() string      { return "reply_message" }
func (SendReaction) actionType() string      { return "reaction" }
func (EditMessage) actionType() string       { return "edit_message" }
func (DeleteForEveryone) actionType() string { return "delete_for_everyone" }
func (Typing) actionType() string            { return "typing" }
func (ReadReceipt) actionType() string       { return "read_receipt" }
func (Pong) actionType() string              { return "pong" }

// Encode serializes an outbound action into a wire frame.
func Encode(a Action) ([]byte, error) {
	if _, ok := a.(SendMessage); ok {
		return json.Marshal(a)
	}
	// Every other action carries its discriminant in a "type" field.
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", a.actionType(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", a.actionType(), err)
	}
	fields["type"] = a.actionType()
	return json.Marshal(fields)
}

// timestamp layouts seen from the server: RFC3339 from Go peers and the
// zoneless isoformat the original backend emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a wire created_at value, falling back to now for
// empty or unparseable input so a bad clock field never drops a message.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// ToMessage converts an inbound message event into the domain model used
// by the stores.
func (ev MessageEvent) ToMessage() domain.Message {
	return domain.Message{
		ID:             ev.ID,
		Kind:           ev.Kind,
		SenderID:       ev.SenderID,
		ReceiverID:     ev.ReceiverID,
		SenderUsername: ev.SenderUsername,
		Content:        ev.Content,
		CreatedAt:      ParseTimestamp(ev.CreatedAt),
		ReplyTo:        ev.ReplyTo,
		IsRead:         ev.IsRead,
		MediaType:      ev.MediaType,
		MediaURL:       ev.MediaURL,
	}
}
