// Package recent maintains the ordered recent-conversations list shown
// in the chat sidebar: one summary per counterpart, most recent activity
// first.
package recent

import (
	"strconv"
	"sync"

	"chatsync/internal/domain"
)

// Store is the head-ordered list of conversation summaries. Refreshing
// replaces the list from the server; live activity moves or synthesizes
// the touched summary at the head.
type Store struct {
	mu    sync.Mutex
	chats []domain.ConversationSummary
}

func New() *Store {
	return &Store{}
}

// Replace installs a full summary list from the recent-chats endpoint.
func (s *Store) Replace(chats []domain.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats[:0], chats...)
}

// ApplyActivity folds a live message into the list. The counterpart is
// the sender unless the local user sent it, in which case it is the
// receiver. An existing summary is updated and moved to the head; an
// unseen counterpart gets a minimal summary synthesized at the head.
func (s *Store) ApplyActivity(m domain.Message, localUserID int64) {
	counterpart := m.SenderID
	if counterpart == localUserID {
		counterpart = m.ReceiverID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.chats {
		if s.chats[i].PeerID == counterpart {
			idx = i
			break
		}
	}

	var chat domain.ConversationSummary
	if idx >= 0 {
		chat = s.chats[idx]
		s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	} else {
		chat = domain.ConversationSummary{
			PeerID:   counterpart,
			Username: m.SenderUsername,
		}
		if chat.Username == "" || m.SenderID == localUserID {
			// Best-available display name for an unseen peer.
			chat.Username = "user-" + strconv.FormatInt(counterpart, 10)
		}
	}

	chat.LastMessage = domain.LastMessage{
		Content:   m.Content,
		Timestamp: m.CreatedAt,
		IsRead:    m.SenderID == localUserID,
		IsMe:      m.SenderID == localUserID,
		MediaType: m.MediaType,
	}
	s.chats = append([]domain.ConversationSummary{chat}, s.chats...)
}

// Chats returns a copy of the list, most recent first.
func (s *Store) Chats() []domain.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ConversationSummary, len(s.chats))
	copy(out, s.chats)
	return out
}
