package domain

import "time"

// Message kinds as they appear on the wire and in chat history.
const (
	KindMessage    = "message"
	KindSharedPost = "shared_post"
)

// Reaction is one emoji reaction attached to a message. Reactions are
// append-only on the client; the server owns toggling/removal.
type Reaction struct {
	MessageID int64  `json:"message_id"`
	ReactedBy int64  `json:"reacted_by"`
	Emoji     string `json:"reaction"`
}

// ReplyRef points at the message a reply is quoting.
type ReplyRef struct {
	MessageID  int64  `json:"msg_id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
}

// Message is a single chat message in the active conversation.
// IDs are server-assigned and unique within a conversation; ordering in a
// store is insertion order, never re-sorted by timestamp.
type Message struct {
	ID             int64      `json:"id"`
	Kind           string     `json:"type"`
	SenderID       int64      `json:"sender_id"`
	ReceiverID     int64      `json:"receiver_id"`
	SenderUsername string     `json:"sender_username,omitempty"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	ReplyTo        *ReplyRef  `json:"reply_to,omitempty"`
	IsEdited       bool       `json:"is_edited"`
	IsRead         bool       `json:"is_read"`
	Reactions      []Reaction `json:"reactions,omitempty"`
	MediaType      string     `json:"media_type,omitempty"`
	MediaURL       string     `json:"media_url,omitempty"`
}

// LastMessage is the preview block of a conversation summary.
type LastMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
	IsMe      bool      `json:"is_me"`
	MediaType string    `json:"media_type,omitempty"`
}

// ConversationSummary is one entry of the recent-conversations list,
// keyed by the counterpart's user ID.
type ConversationSummary struct {
	PeerID      int64       `json:"id"`
	Username    string      `json:"username"`
	Nickname    string      `json:"nickname,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
	LastMessage LastMessage `json:"last_message"`
}

// PreviewText returns the sidebar preview for a last message: media
// collapses to a placeholder, text passes through.
func (l LastMessage) PreviewText() string {
	if l.MediaType != "" && l.MediaType != "false" {
		return "sent an attachment"
	}
	return l.Content
}

// User is an account on the chat server. Only the devserver persists
// users; the client sees peers through ConversationSummary.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Nickname       string    `json:"nickname,omitempty"`
	Avatar         string    `json:"avatar,omitempty"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
