package conversation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatsync/internal/conversation"
	"chatsync/internal/domain"
)

const localUser int64 = 5

func msg(id, sender, receiver int64, content string) domain.Message {
	return domain.Message{
		ID:         id,
		Kind:       domain.KindMessage,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReplaceHistory(t *testing.T) {
	t.Run("InstallsForActivePeer", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)

		ok := s.ReplaceHistory(7, []domain.Message{
			msg(1, 7, localUser, "hi"),
			msg(2, localUser, 7, "hello"),
		})
		assert.True(t, ok)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("DiscardsStaleFetch", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)
		s.SetActivePeer(9)

		// The fetch for peer 7 resolves after the user switched to 9.
		ok := s.ReplaceHistory(7, []domain.Message{msg(1, 7, localUser, "old")})
		assert.False(t, ok)
		assert.Zero(t, s.Len())
	})

	t.Run("OverwritesLiveMessageThatBeatTheFetch", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)
		assert.True(t, s.ApplyNewMessage(msg(10, 7, localUser, "live")))

		s.ReplaceHistory(7, []domain.Message{msg(1, 7, localUser, "first")})

		msgs := s.Messages()
		assert.Len(t, msgs, 1)
		assert.Equal(t, int64(1), msgs[0].ID)
	})

	t.Run("DeduplicatesByID", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)
		s.ReplaceHistory(7, []domain.Message{
			msg(1, 7, localUser, "a"),
			msg(1, 7, localUser, "a again"),
		})
		assert.Equal(t, 1, s.Len())
	})
}

func TestApplyNewMessage(t *testing.T) {
	t.Run("AppendsBothDirections", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)

		assert.True(t, s.ApplyNewMessage(msg(1, 7, localUser, "from peer")))
		assert.True(t, s.ApplyNewMessage(msg(2, localUser, 7, "echo of mine")))
		assert.Equal(t, 2, s.Len())
	})

	t.Run("IgnoresOtherConversations", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)

		assert.False(t, s.ApplyNewMessage(msg(1, 9, localUser, "other peer")))
		assert.False(t, s.ApplyNewMessage(msg(2, localUser, 9, "mine to other")))
		assert.Zero(t, s.Len())
	})

	t.Run("IgnoresEverythingWhenNoPeerSelected", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		assert.False(t, s.ApplyNewMessage(msg(1, 7, localUser, "hi")))
	})

	t.Run("DeduplicatesByID", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)

		assert.True(t, s.ApplyNewMessage(msg(1, 7, localUser, "hi")))
		assert.False(t, s.ApplyNewMessage(msg(1, 7, localUser, "hi")))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("FiresReadReceiptForPeerMessageOnly", func(t *testing.T) {
		var receipts []int64
		s := conversation.New(localUser, func(peerID int64) {
			receipts = append(receipts, peerID)
		})
		s.SetActivePeer(7)

		s.ApplyNewMessage(msg(1, 7, localUser, "from peer"))
		s.ApplyNewMessage(msg(2, localUser, 7, "my echo"))
		s.ApplyNewMessage(msg(1, 7, localUser, "duplicate"))

		assert.Equal(t, []int64{7}, receipts)
	})
}

func TestApplyEdit(t *testing.T) {
	s := conversation.New(localUser, nil)
	s.SetActivePeer(7)
	s.ApplyNewMessage(msg(1, 7, localUser, "original"))

	s.ApplyEdit(1, "edited")
	s.ApplyEdit(999, "missing id is a no-op")

	msgs := s.Messages()
	assert.Equal(t, "edited", msgs[0].Content)
	assert.True(t, msgs[0].IsEdited)
	assert.Equal(t, 1, s.Len())
}

func TestApplyDeleteIsIdempotent(t *testing.T) {
	s := conversation.New(localUser, nil)
	s.SetActivePeer(7)
	s.ApplyNewMessage(msg(1, 7, localUser, "a"))
	s.ApplyNewMessage(msg(2, 7, localUser, "b"))

	s.ApplyDelete(1)
	s.ApplyDelete(1)
	s.ApplyDelete(999)

	msgs := s.Messages()
	assert.Len(t, msgs, 1)
	assert.Equal(t, int64(2), msgs[0].ID)
}

func TestApplyReactionAppendsWithoutDedup(t *testing.T) {
	s := conversation.New(localUser, nil)
	s.SetActivePeer(7)
	s.ApplyNewMessage(msg(1, 7, localUser, "hi"))

	r := domain.Reaction{MessageID: 1, ReactedBy: 7, Emoji: "🔥"}
	s.ApplyReaction(r)
	s.ApplyReaction(r)
	s.ApplyReaction(domain.Reaction{MessageID: 999, ReactedBy: 7, Emoji: "🔥"})

	msgs := s.Messages()
	assert.Len(t, msgs[0].Reactions, 2)
}

func TestApplyReadReceipt(t *testing.T) {
	t.Run("MarksWholeListRead", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)
		s.ApplyNewMessage(msg(1, localUser, 7, "one"))
		s.ApplyNewMessage(msg(2, localUser, 7, "two"))

		s.ApplyReadReceipt(7)

		for _, m := range s.Messages() {
			assert.True(t, m.IsRead)
		}
	})

	t.Run("IgnoresReceiptFromOtherReader", func(t *testing.T) {
		s := conversation.New(localUser, nil)
		s.SetActivePeer(7)
		s.ApplyNewMessage(msg(1, localUser, 7, "one"))

		s.ApplyReadReceipt(9)

		assert.False(t, s.Messages()[0].IsRead)
	})
}

func TestSetActivePeerClearsList(t *testing.T) {
	s := conversation.New(localUser, nil)
	s.SetActivePeer(7)
	s.ApplyNewMessage(msg(1, 7, localUser, "hi"))

	s.SetActivePeer(9)

	assert.Zero(t, s.Len())
	assert.Equal(t, int64(9), s.ActivePeer())
}
