package devserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"chatsync/internal/domain"
)

// inboundFrame is the superset of fields client frames may carry. The
// discriminant decides which ones matter; a frame with no recognized
// type but to/content present is a plain send.
type inboundFrame struct {
	Type       string `json:"type"`
	To         int64  `json:"to"`
	Content    string `json:"content"`
	MessageID  int64  `json:"message_id"`
	MsgID      int64  `json:"msg_id"`
	NewContent string `json:"new_content"`
	ReceiverID int64  `json:"receiver_id"`
	SenderID   int64  `json:"sender_id"`
	ReplyMsgID int64  `json:"reply_msg_id"`
	Reaction   string `json:"reaction"`
	IsTyping   bool   `json:"is_typing"`
}

var upgrader = websocket.Upgrader{
	// Dev harness: the client is a Go process, not a browser, so there
	// is no Origin header to validate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS authenticates the socket via the token query param, requires
// it to match the path user id, then runs the event loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	tokenUser, err := s.tokens.Parse(token)
	if err != nil || tokenUser != userID {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	s.hub.Register(userID, ws)
	defer s.hub.Unregister(userID, ws)

	ctx := context.Background()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("devserver: non-JSON frame from %d, ignoring", userID)
			continue
		}

		switch frame.Type {
		case "pong":
			s.hub.MarkPong(userID)

		case "reaction":
			s.handleReaction(ctx, userID, frame)

		case "edit_message":
			s.handleEdit(ctx, userID, frame)

		case "delete_for_everyone":
			s.handleDelete(ctx, userID, frame)

		case "typing":
			s.hub.SendJSON(frame.ReceiverID, map[string]any{
				"type":        "typing",
				"sender_id":   userID,
				"receiver_id": frame.ReceiverID,
				"is_typing":   frame.IsTyping,
			})

		case "read_receipt":
			s.handleReadReceipt(ctx, userID, frame)

		case "reply_message":
			s.handleSend(ctx, userID, frame.To, frame.Content, frame.ReplyMsgID)

		default:
			// Plain chat message: no discriminant on the wire.
			if frame.To == 0 || frame.Content == "" {
				log.Printf("devserver: unknown frame %q from %d, ignoring", frame.Type, userID)
				continue
			}
			s.handleSend(ctx, userID, frame.To, frame.Content, 0)
		}
	}
}

// handleSend persists a message and fans it out: delivery to the
// receiver if online (which marks it read-as-delivered), echo to the
// sender so the server-assigned id reaches the originating client.
func (s *Server) handleSend(ctx context.Context, senderID, to int64, content string, replyMsgID int64) {
	if to == senderID || content == "" {
		return
	}
	m := &domain.Message{
		Kind:       domain.KindMessage,
		SenderID:   senderID,
		ReceiverID: to,
		Content:    content,
	}
	if replyMsgID > 0 {
		m.ReplyTo = &domain.ReplyRef{MessageID: replyMsgID}
	}
	m.IsRead = s.hub.IsOnline(to)
	if err := s.messages.Create(ctx, m); err != nil {
		log.Printf("devserver: create message: %v", err)
		return
	}

	var username string
	if u, err := s.users.GetByID(ctx, senderID); err == nil {
		username = u.Username
	}
	frame := map[string]any{
		"type":            domain.KindMessage,
		"id":              m.ID,
		"sender_id":       m.SenderID,
		"receiver_id":     m.ReceiverID,
		"sender_username": username,
		"content":         m.Content,
		"created_at":      m.CreatedAt.UTC().Format(time.RFC3339),
		"is_read":         m.IsRead,
	}
	if m.ReplyTo != nil {
		frame["reply_to"] = map[string]any{"msg_id": m.ReplyTo.MessageID}
	}

	delivered := s.hub.SendJSON(to, frame)
	if !delivered && m.IsRead {
		// Receiver vanished between the online check and the write.
		m.IsRead = false
		frame["is_read"] = false
	}
	s.hub.SendJSON(senderID, frame)
}

func (s *Server) handleReaction(ctx context.Context, userID int64, frame inboundFrame) {
	if frame.MessageID == 0 || frame.Reaction == "" {
		return
	}
	if err := s.messages.AddReaction(ctx, frame.MessageID, userID, frame.Reaction); err != nil {
		log.Printf("devserver: reaction on %d by %d: %v", frame.MessageID, userID, err)
		return
	}
	m, err := s.messages.GetByID(ctx, frame.MessageID)
	if err != nil {
		return
	}
	out := map[string]any{
		"type":       "reaction",
		"message_id": frame.MessageID,
		"reaction":   frame.Reaction,
		"reacted_by": userID,
	}
	s.hub.SendJSON(m.SenderID, out)
	s.hub.SendJSON(m.ReceiverID, out)
}

func (s *Server) handleEdit(ctx context.Context, userID int64, frame inboundFrame) {
	if frame.MsgID == 0 || frame.NewContent == "" {
		return
	}
	ok, err := s.messages.Edit(ctx, frame.MsgID, userID, frame.NewContent)
	if err != nil || !ok {
		log.Printf("devserver: edit %d by %d rejected: %v", frame.MsgID, userID, err)
		return
	}
	out := map[string]any{
		"type":        "edit_message",
		"message_id":  frame.MsgID,
		"new_content": frame.NewContent,
	}
	s.hub.SendJSON(frame.ReceiverID, out)
	s.hub.SendJSON(userID, out)
}

func (s *Server) handleDelete(ctx context.Context, userID int64, frame inboundFrame) {
	if frame.MessageID == 0 {
		return
	}
	receiverID, err := s.messages.DeleteForEveryone(ctx, frame.MessageID, userID)
	if err != nil {
		log.Printf("devserver: delete %d by %d rejected: %v", frame.MessageID, userID, err)
		return
	}
	out := map[string]any{
		"type":       "delete_message",
		"message_id": frame.MessageID,
	}
	s.hub.SendJSON(receiverID, out)
	s.hub.SendJSON(userID, out)
}

// handleReadReceipt applies the watermark and tells the original sender
// their messages were seen.
func (s *Server) handleReadReceipt(ctx context.Context, readerID int64, frame inboundFrame) {
	if frame.SenderID == 0 {
		return
	}
	if err := s.messages.MarkAllReadFrom(ctx, frame.SenderID, readerID); err != nil {
		log.Printf("devserver: read receipt from %d: %v", readerID, err)
		return
	}
	s.hub.SendJSON(frame.SenderID, map[string]any{
		"type":      "read_receipt",
		"reader_id": readerID,
	})
}
