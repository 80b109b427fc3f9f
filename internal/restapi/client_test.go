package restapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatsync/internal/domain"
	"chatsync/internal/restapi"
)

func TestChatHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/history/7", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"type":"message","id":1,"content":"hi","sender_id":7,"receiver_id":5,
			 "timestamp":"2025-03-01T10:00:00Z","is_read":true,"is_edited":false},
			{"type":"shared_post","shared_id":2,"message":"check this out","sender_id":5,
			 "receiver_id":7,"sender_nickname":"me","sent_at":"2025-03-01T10:05:00Z",
			 "media_type":"image","media_url":"/m/2.jpg"},
			{"type":"message","id":3,"content":"same here","sender_id":5,"receiver_id":7,
			 "timestamp":"2025-03-01T10:06:00Z",
			 "reply_to":{"msg_id":1,"content":"hi","sender_name":"alice"}}
		]`))
	}))
	defer srv.Close()

	c := restapi.New(srv.URL, "test-token")
	msgs, err := c.ChatHistory(context.Background(), 7)
	assert.NoError(t, err)
	assert.Len(t, msgs, 3)

	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, domain.KindMessage, msgs[0].Kind)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.True(t, msgs[0].IsRead)

	// Shared posts use different field names for the same concepts.
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, domain.KindSharedPost, msgs[1].Kind)
	assert.Equal(t, "check this out", msgs[1].Content)
	assert.Equal(t, "me", msgs[1].SenderUsername)
	assert.Equal(t, "image", msgs[1].MediaType)
	assert.Equal(t, 5, msgs[1].CreatedAt.Minute())

	// A reply keeps its quote.
	assert.NotNil(t, msgs[2].ReplyTo)
	assert.Equal(t, int64(1), msgs[2].ReplyTo.MessageID)
	assert.Equal(t, "alice", msgs[2].ReplyTo.SenderName)
}

func TestChatHistoryErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := restapi.New(srv.URL, "bad-token")
	msgs, err := c.ChatHistory(context.Background(), 7)
	assert.Nil(t, msgs)
	assert.ErrorContains(t, err, "status 401")
}

func TestRecentChats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/recent-chats", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":7,"username":"alice","nickname":"Alice","avatar":"/a/7.png",
			 "last_message":{"content":"see you","timestamp":"2025-03-01T10:00:00Z",
			 "is_read":false,"is_me":true,"media_type":""}}
		]`))
	}))
	defer srv.Close()

	c := restapi.New(srv.URL, "test-token")
	chats, err := c.RecentChats(context.Background())
	assert.NoError(t, err)
	assert.Len(t, chats, 1)
	assert.Equal(t, int64(7), chats[0].PeerID)
	assert.Equal(t, "alice", chats[0].Username)
	assert.Equal(t, "see you", chats[0].LastMessage.Content)
	assert.True(t, chats[0].LastMessage.IsMe)
	assert.False(t, chats[0].LastMessage.IsRead)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)

		var creds map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "alice" || creds["password"] != "pw" {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer",
			"user":{"id":5,"username":"alice"}}`))
	}))
	defer srv.Close()

	t.Run("Success", func(t *testing.T) {
		res, err := restapi.Login(context.Background(), srv.URL, "alice", "pw")
		assert.NoError(t, err)
		assert.Equal(t, "tok", res.AccessToken)
		assert.Equal(t, int64(5), res.User.ID)
	})

	t.Run("BadCredentials", func(t *testing.T) {
		res, err := restapi.Login(context.Background(), srv.URL, "alice", "wrong")
		assert.Nil(t, res)
		assert.ErrorContains(t, err, "status 401")
	})
}
