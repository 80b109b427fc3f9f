// Package restapi is the client for the REST collaborators of the chat
// core: history for a peer and the recent-conversations list, plus the
// login call that mints the bearer credential.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatsync/internal/domain"
	"chatsync/internal/protocol"
)

// Client calls the chat REST endpoints with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// historyItem covers both message and shared_post history entries; the
// two shapes diverge on id/content/timestamp field names.
type historyItem struct {
	Type           string           `json:"type"`
	ID             int64            `json:"id"`
	SharedID       int64            `json:"shared_id"`
	Content        string           `json:"content"`
	Message        string           `json:"message"`
	SenderID       int64            `json:"sender_id"`
	ReceiverID     int64            `json:"receiver_id"`
	SenderUsername string           `json:"sender_username"`
	SenderNickname string           `json:"sender_nickname"`
	Timestamp      string           `json:"timestamp"`
	SentAt         string           `json:"sent_at"`
	ReplyTo        *domain.ReplyRef `json:"reply_to"`
	IsRead         bool             `json:"is_read"`
	IsEdited       bool             `json:"is_edited"`
	MediaType      string           `json:"media_type"`
	MediaURL       string           `json:"media_url"`
}

func (it historyItem) toMessage() domain.Message {
	m := domain.Message{
		ID:             it.ID,
		Kind:           it.Type,
		SenderID:       it.SenderID,
		ReceiverID:     it.ReceiverID,
		SenderUsername: it.SenderUsername,
		Content:        it.Content,
		CreatedAt:      protocol.ParseTimestamp(it.Timestamp),
		ReplyTo:        it.ReplyTo,
		IsRead:         it.IsRead,
		IsEdited:       it.IsEdited,
		MediaType:      it.MediaType,
		MediaURL:       it.MediaURL,
	}
	if it.Type == domain.KindSharedPost {
		m.ID = it.SharedID
		m.Content = it.Message
		m.SenderUsername = it.SenderNickname
		m.CreatedAt = protocol.ParseTimestamp(it.SentAt)
	}
	return m
}

// ChatHistory fetches the ordered message list for a peer, oldest first.
func (c *Client) ChatHistory(ctx context.Context, peerID int64) ([]domain.Message, error) {
	var items []historyItem
	if err := c.getJSON(ctx, fmt.Sprintf("/chat/history/%d", peerID), &items); err != nil {
		return nil, fmt.Errorf("chat history for %d: %w", peerID, err)
	}
	msgs := make([]domain.Message, 0, len(items))
	for _, it := range items {
		msgs = append(msgs, it.toMessage())
	}
	return msgs, nil
}

type recentChatItem struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	LastMessage struct {
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
		IsRead    bool   `json:"is_read"`
		IsMe      bool   `json:"is_me"`
		MediaType string `json:"media_type"`
	} `json:"last_message"`
}

// RecentChats fetches the recent-conversations summary list.
func (c *Client) RecentChats(ctx context.Context) ([]domain.ConversationSummary, error) {
	var items []recentChatItem
	if err := c.getJSON(ctx, "/chat/recent-chats", &items); err != nil {
		return nil, fmt.Errorf("recent chats: %w", err)
	}
	chats := make([]domain.ConversationSummary, 0, len(items))
	for _, it := range items {
		chats = append(chats, domain.ConversationSummary{
			PeerID:   it.ID,
			Username: it.Username,
			Nickname: it.Nickname,
			Avatar:   it.Avatar,
			LastMessage: domain.LastMessage{
				Content:   it.LastMessage.Content,
				Timestamp: protocol.ParseTimestamp(it.LastMessage.Timestamp),
				IsRead:    it.LastMessage.IsRead,
				IsMe:      it.LastMessage.IsMe,
				MediaType: it.LastMessage.MediaType,
			},
		})
	}
	return chats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LoginResult is the token response of the auth endpoint.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        domain.User `json:"user"`
}

// Login exchanges credentials for a bearer token. It needs no prior
// token, so it is a package function rather than a Client method.
func Login(ctx context.Context, baseURL, username, password string) (*LoginResult, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(baseURL, "/") + "/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 15 * time.Second}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("login: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var res LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("login: decode response: %w", err)
	}
	return &res, nil
}
