package recent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatsync/internal/domain"
	"chatsync/internal/recent"
)

const localUser int64 = 5

func summary(peerID int64, username string) domain.ConversationSummary {
	return domain.ConversationSummary{PeerID: peerID, Username: username}
}

func activity(sender, receiver int64, content string) domain.Message {
	return domain.Message{
		ID:         1,
		Kind:       domain.KindMessage,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReplace(t *testing.T) {
	s := recent.New()
	s.Replace([]domain.ConversationSummary{summary(7, "alice"), summary(9, "bob")})

	chats := s.Chats()
	assert.Len(t, chats, 2)
	assert.Equal(t, int64(7), chats[0].PeerID)
}

func TestApplyActivityMovesExistingToHead(t *testing.T) {
	s := recent.New()
	s.Replace([]domain.ConversationSummary{summary(7, "alice"), summary(9, "bob")})

	s.ApplyActivity(activity(9, localUser, "newest"), localUser)

	chats := s.Chats()
	assert.Len(t, chats, 2)
	assert.Equal(t, int64(9), chats[0].PeerID)
	assert.Equal(t, "bob", chats[0].Username)
	assert.Equal(t, "newest", chats[0].LastMessage.Content)
	assert.False(t, chats[0].LastMessage.IsMe)
	assert.False(t, chats[0].LastMessage.IsRead)
}

func TestApplyActivitySynthesizesUnseenPeer(t *testing.T) {
	s := recent.New()

	m := activity(9, localUser, "hello there")
	m.SenderUsername = "carol"
	s.ApplyActivity(m, localUser)

	chats := s.Chats()
	assert.Len(t, chats, 1)
	assert.Equal(t, int64(9), chats[0].PeerID)
	assert.Equal(t, "carol", chats[0].Username)
}

func TestApplyActivityOwnMessageTargetsReceiver(t *testing.T) {
	s := recent.New()

	s.ApplyActivity(activity(localUser, 9, "sent by me"), localUser)

	chats := s.Chats()
	assert.Len(t, chats, 1)
	assert.Equal(t, int64(9), chats[0].PeerID)
	assert.Equal(t, "user-9", chats[0].Username)
	assert.True(t, chats[0].LastMessage.IsMe)
	assert.True(t, chats[0].LastMessage.IsRead)
}

func TestAttachmentPreview(t *testing.T) {
	s := recent.New()

	m := activity(9, localUser, "")
	m.MediaType = "image"
	s.ApplyActivity(m, localUser)

	assert.Equal(t, "sent an attachment", s.Chats()[0].LastMessage.PreviewText())
}

func TestChatsReturnsCopy(t *testing.T) {
	s := recent.New()
	s.Replace([]domain.ConversationSummary{summary(7, "alice")})

	chats := s.Chats()
	chats[0].Username = "mutated"

	assert.Equal(t, "alice", s.Chats()[0].Username)
}
