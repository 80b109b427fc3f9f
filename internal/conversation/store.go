// Package conversation maintains the ordered message list of the
// conversation currently on screen. The store holds one conversation at
// a time and switches wholesale: selecting a new peer discards the list
// and waits for a fresh history fetch.
package conversation

import (
	"sync"

	"chatsync/internal/domain"
)

// Store is the id-indexed, insertion-ordered message list for the active
// peer. Every Apply* is idempotent and order-tolerant: events for
// messages that are absent, already applied, or belong to an inactive
// conversation are no-ops, never errors. That is what makes the
// history-fetch / live-event race safe.
type Store struct {
	mu          sync.Mutex
	localUserID int64
	activePeer  int64 // 0 means no conversation selected
	order       []int64
	byID        map[int64]*domain.Message

	// sendRead fires the automatic read receipt when a message from the
	// active peer lands while their conversation is on screen.
	sendRead func(peerID int64)
}

func New(localUserID int64, sendRead func(peerID int64)) *Store {
	return &Store{
		localUserID: localUserID,
		byID:        make(map[int64]*domain.Message),
		sendRead:    sendRead,
	}
}

// SetActivePeer switches the store to a new conversation, discarding the
// previous list. Passing 0 deselects.
func (s *Store) SetActivePeer(peerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activePeer = peerID
	s.order = s.order[:0]
	s.byID = make(map[int64]*domain.Message)
}

// ActivePeer returns the peer whose conversation is loaded, or 0.
func (s *Store) ActivePeer() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

// ReplaceHistory installs a full history fetch result. The fetch for a
// previously selected peer may resolve after the user has moved on; a
// result whose peer no longer matches the active one is discarded and
// ReplaceHistory reports false. A live event that arrived before the
// fetch resolved is simply overwritten by the full list, by design.
func (s *Store) ReplaceHistory(peerID int64, msgs []domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if peerID != s.activePeer {
		return false
	}
	s.order = s.order[:0]
	s.byID = make(map[int64]*domain.Message, len(msgs))
	for i := range msgs {
		m := msgs[i]
		if _, dup := s.byID[m.ID]; dup {
			continue
		}
		s.order = append(s.order, m.ID)
		s.byID[m.ID] = &m
	}
	return true
}

// ApplyNewMessage appends a live message if it belongs to the active
// conversation, deduplicating by id. A message from the active peer
// addressed to the local user triggers the automatic read receipt.
func (s *Store) ApplyNewMessage(m domain.Message) bool {
	s.mu.Lock()
	if s.activePeer == 0 {
		s.mu.Unlock()
		return false
	}
	belongs := m.SenderID == s.activePeer ||
		(m.SenderID == s.localUserID && m.ReceiverID == s.activePeer)
	if !belongs {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.byID[m.ID]; dup {
		s.mu.Unlock()
		return false
	}
	s.order = append(s.order, m.ID)
	s.byID[m.ID] = &m
	fromPeer := m.SenderID == s.activePeer && m.ReceiverID == s.localUserID
	peer := s.activePeer
	s.mu.Unlock()

	if fromPeer && s.sendRead != nil {
		s.sendRead(peer)
	}
	return true
}

// ApplyEdit rewrites a message's content in place and flags it edited.
func (s *Store) ApplyEdit(messageID int64, newContent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[messageID]
	if !ok {
		return
	}
	m.Content = newContent
	m.IsEdited = true
}

// ApplyDelete removes a message by id. Removing twice leaves the list
// unchanged after the first application.
func (s *Store) ApplyDelete(messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[messageID]; !ok {
		return
	}
	delete(s.byID, messageID)
	for i, id := range s.order {
		if id == messageID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ApplyReaction appends a reaction record to the addressed message.
// Reactions are append-only here; the server owns toggling, so the same
// event applied twice appends twice.
func (s *Store) ApplyReaction(r domain.Reaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[r.MessageID]
	if !ok {
		return
	}
	m.Reactions = append(m.Reactions, r)
}

// ApplyReadReceipt marks the whole list read when the receipt comes from
// the active peer. Read state is a per-conversation watermark, not a
// per-message acknowledgement.
func (s *Store) ApplyReadReceipt(readerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if readerID != s.activePeer {
		return
	}
	for _, m := range s.byID {
		m.IsRead = true
	}
}

// Messages returns a copy of the list in insertion order.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Len reports the number of loaded messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
