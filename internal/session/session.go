// Package session owns the chat state of one signed-in user: the single
// socket connection, the event fan-out, and the stores it feeds. Views
// receive the session by injection instead of opening sockets of their
// own, so two mounted views can never race to create competing
// connections.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"chatsync/internal/conversation"
	"chatsync/internal/dispatch"
	"chatsync/internal/domain"
	"chatsync/internal/protocol"
	"chatsync/internal/recent"
	"chatsync/internal/restapi"
	"chatsync/internal/unread"
	"chatsync/internal/wsclient"
)

// Session is the process-scoped chat service for one identity.
type Session struct {
	baseURL     string
	localUserID int64
	token       string

	rest       *restapi.Client
	dispatcher *dispatch.Dispatcher
	recent     *recent.Store
	unread     *unread.Coordinator
	conv       *conversation.Store

	mu              sync.Mutex
	conn            *wsclient.Conn
	convListener    uuid.UUID
	hasConvListener bool

	onTyping func(peerID int64, isTyping bool)
}

// New builds a session for the given identity and bearer credential.
// Connect must be called before any sends.
func New(baseURL string, localUserID int64, token string) *Session {
	s := &Session{
		baseURL:     baseURL,
		localUserID: localUserID,
		token:       token,
		rest:        restapi.New(baseURL, token),
		dispatcher:  dispatch.New(),
		recent:      recent.New(),
		unread:      unread.New(),
	}
	s.conv = conversation.New(localUserID, func(peerID int64) {
		s.SendReadReceipt(peerID)
	})
	// The global listener lives for the whole session: it keeps the
	// unread counter and the recent list current no matter which view
	// is mounted.
	s.dispatcher.Add(s.handleGlobal)
	return s
}

// Connect opens the socket. A still-open previous connection is torn
// down first so exactly one stream exists per identity.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	conn := wsclient.New(s.baseURL, s.localUserID, s.token)
	conn.OnEvent(s.dispatcher.Dispatch)
	conn.OnError(func(err error) {
		log.Printf("session: socket error (user %d): %v", s.localUserID, err)
	})
	conn.OnClose(func(err error) {
		if err != nil {
			log.Printf("session: socket closed (user %d): %v", s.localUserID, err)
		}
	})
	s.conn = conn
	s.mu.Unlock()

	if err := conn.Connect(ctx); err != nil {
		return err
	}
	if err := s.RefreshRecentChats(ctx); err != nil {
		log.Printf("session: initial recent-chats refresh: %v", err)
	}
	return nil
}

// Disconnect releases the stream. Safe on every exit path; a later
// Connect dials a fresh handle.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// EnterMessagesView resets the unread counter and refreshes the recent
// list; called when the messaging view mounts.
func (s *Session) EnterMessagesView(ctx context.Context) {
	s.unread.Reset()
	if err := s.RefreshRecentChats(ctx); err != nil {
		log.Printf("session: recent-chats refresh: %v", err)
	}
}

// OpenConversation selects a peer: marks it active for notification
// suppression, clears the message list, attaches the conversation
// listener, and fetches history in the background. The fetch is raced
// against further switches; a stale result is discarded by the store.
func (s *Session) OpenConversation(ctx context.Context, peerID int64) {
	s.unread.SetActive(peerID)
	s.conv.SetActivePeer(peerID)

	s.mu.Lock()
	if !s.hasConvListener {
		s.convListener = s.dispatcher.Add(s.handleConversation)
		s.hasConvListener = true
	}
	s.mu.Unlock()

	go func() {
		msgs, err := s.rest.ChatHistory(ctx, peerID)
		if err != nil {
			log.Printf("session: history fetch for %d: %v", peerID, err)
			return
		}
		if !s.conv.ReplaceHistory(peerID, msgs) {
			log.Printf("session: discarding stale history for %d", peerID)
		}
	}()
}

// CloseConversation deselects the active peer and detaches the
// conversation listener.
func (s *Session) CloseConversation() {
	s.unread.SetActive(0)
	s.conv.SetActivePeer(0)

	s.mu.Lock()
	if s.hasConvListener {
		s.dispatcher.Remove(s.convListener)
		s.hasConvListener = false
	}
	s.mu.Unlock()
}

// RefreshRecentChats replaces the recent list from the server.
func (s *Session) RefreshRecentChats(ctx context.Context) error {
	chats, err := s.rest.RecentChats(ctx)
	if err != nil {
		return err
	}
	s.recent.Replace(chats)
	return nil
}

// OnTyping registers the typing-indicator callback for the active
// conversation. Safe to call while the socket is live.
func (s *Session) OnTyping(fn func(peerID int64, isTyping bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTyping = fn
}

// AddListener exposes the dispatcher for extra consumers (e.g. a CLI
// printing raw activity). Returns the removal handle.
func (s *Session) AddListener(fn dispatch.Listener) uuid.UUID {
	return s.dispatcher.Add(fn)
}

// RemoveListener detaches a listener added with AddListener.
func (s *Session) RemoveListener(id uuid.UUID) {
	s.dispatcher.Remove(id)
}

// handleGlobal mirrors the ambient socket handler: every message or
// shared post updates the unread counter and the recent list, whatever
// view is mounted.
func (s *Session) handleGlobal(ev protocol.Event) {
	me, ok := ev.(protocol.MessageEvent)
	if !ok {
		return
	}
	s.unread.OnInboundActivity(me.SenderID, s.localUserID)
	s.recent.ApplyActivity(me.ToMessage(), s.localUserID)
}

// handleConversation applies events to the on-screen conversation.
func (s *Session) handleConversation(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.MessageEvent:
		s.conv.ApplyNewMessage(ev.ToMessage())
	case protocol.ReactionEvent:
		s.conv.ApplyReaction(domain.Reaction{
			MessageID: ev.MessageID,
			ReactedBy: ev.ReactedBy,
			Emoji:     ev.Reaction,
		})
	case protocol.EditEvent:
		s.conv.ApplyEdit(ev.MessageID, ev.NewContent)
	case protocol.DeleteEvent:
		s.conv.ApplyDelete(ev.MessageID)
	case protocol.ReadReceiptEvent:
		s.conv.ApplyReadReceipt(ev.ReaderID)
	case protocol.TypingEvent:
		if ev.ReceiverID != s.localUserID || ev.SenderID != s.conv.ActivePeer() {
			return
		}
		s.mu.Lock()
		fn := s.onTyping
		s.mu.Unlock()
		if fn != nil {
			fn(ev.SenderID, ev.IsTyping)
		}
	}
}

// send forwards an action to the connection; without one the action is
// dropped the same way an unopened socket drops it.
func (s *Session) send(a protocol.Action) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		log.Printf("session: dropping send, not connected (user %d)", s.localUserID)
		return
	}
	if err := conn.Send(a); err != nil {
		log.Printf("session: send failed: %v", err)
	}
}

// SendMessage sends a plain message.
func (s *Session) SendMessage(to int64, content string) {
	s.send(protocol.SendMessage{To: to, Content: content})
}

// SendReply sends a message quoting replyMsgID.
func (s *Session) SendReply(to, replyMsgID int64, content string) {
	s.send(protocol.ReplyMessage{To: to, ReplyMsgID: replyMsgID, Content: content})
}

// SendEdit rewrites one of the local user's messages.
func (s *Session) SendEdit(messageID int64, newContent string, receiverID int64) {
	s.send(protocol.EditMessage{MsgID: messageID, NewContent: newContent, ReceiverID: receiverID})
}

// SendDelete deletes a message for everyone.
func (s *Session) SendDelete(messageID, receiverID int64) {
	s.send(protocol.DeleteForEveryone{MessageID: messageID, ReceiverID: receiverID})
}

// SendReaction reacts to a message.
func (s *Session) SendReaction(messageID int64, emoji string) {
	s.send(protocol.SendReaction{MessageID: messageID, Reaction: emoji})
}

// SendTyping toggles the typing indicator for a peer.
func (s *Session) SendTyping(isTyping bool, receiverID int64) {
	s.send(protocol.Typing{IsTyping: isTyping, ReceiverID: receiverID})
}

// SendReadReceipt marks everything from senderID as read on the server.
func (s *Session) SendReadReceipt(senderID int64) {
	s.send(protocol.ReadReceipt{SenderID: senderID})
}

// Messages returns the active conversation's list.
func (s *Session) Messages() []domain.Message { return s.conv.Messages() }

// RecentChats returns the recent-conversations list.
func (s *Session) RecentChats() []domain.ConversationSummary { return s.recent.Chats() }

// UnreadCount returns the global unread counter.
func (s *Session) UnreadCount() int { return s.unread.Count() }

// ActivePeer returns the selected peer, or 0.
func (s *Session) ActivePeer() int64 { return s.conv.ActivePeer() }

// Connected reports whether the socket handle is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn.State() == wsclient.StateOpen
}
