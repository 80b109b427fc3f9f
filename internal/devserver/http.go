// Package devserver is an in-process chat server speaking the same wire
// protocol and REST endpoints as the production backend, so the client
// can be exercised end to end without external services. It is a
// harness: storage is a minimal sqlite log, not a product schema.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatsync/internal/config"
	"chatsync/internal/domain"
	"chatsync/internal/security"
	"chatsync/internal/store/sqlite"
)

// Server bundles the dev server dependencies.
type Server struct {
	cfg      *config.Config
	users    *sqlite.UserRepo
	messages *sqlite.MessageRepo
	tokens   *security.TokenService
	hasher   *security.PasswordHasher
	hub      *Hub
}

func NewServer(
	cfg *config.Config,
	users *sqlite.UserRepo,
	messages *sqlite.MessageRepo,
	tokens *security.TokenService,
	hasher *security.PasswordHasher,
	hub *Hub,
) *Server {
	return &Server{
		cfg:      cfg,
		users:    users,
		messages: messages,
		tokens:   tokens,
		hasher:   hasher,
		hub:      hub,
	}
}

// Router wires the REST and websocket endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/chat/history/{friendID}", s.handleHistory)
		r.Get("/chat/recent-chats", s.handleRecentChats)
	})

	// The socket endpoint authenticates itself via the token query
	// param, mirroring the production URL shape.
	r.Get("/chat/ws/{userID}", s.handleWS)

	return r
}

type contextKey string

const userIDContextKey contextKey = "currentUserID"

func currentUserID(r *http.Request) int64 {
	if v := r.Context().Value(userIDContextKey); v != nil {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// authMiddleware validates the Bearer token and attaches the user id to
// the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

		userID, err := s.tokens.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// tokenResponse mirrors the production token schema.
type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	if existing, err := s.users.GetByUsername(r.Context(), req.Username); err == nil && existing != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username already taken"})
		return
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash password"})
		return
	}
	user := &domain.User{
		Username:       req.Username,
		Nickname:       req.Nickname,
		HashedPassword: hashed,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		log.Printf("devserver: create user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create user"})
		return
	}

	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create token"})
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if err := s.hasher.Verify(req.Password, user.HashedPassword); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, err := s.tokens.CreateForUser(user.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create token"})
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	})
}

// handleHistory returns the ordered message list between the caller and
// a friend, oldest first, in the wire item shape.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	friendID, err := strconv.ParseInt(chi.URLParam(r, "friendID"), 10, 64)
	if err != nil || friendID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid friend id"})
		return
	}
	if friendID == userID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot chat with yourself"})
		return
	}

	msgs, err := s.messages.HistoryBetween(r.Context(), userID, friendID)
	if err != nil {
		log.Printf("devserver: history %d<->%d: %v", userID, friendID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}

	items := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		item := map[string]any{
			"type":        domain.KindMessage,
			"id":          m.ID,
			"content":     m.Content,
			"sender_id":   m.SenderID,
			"receiver_id": m.ReceiverID,
			"timestamp":   m.CreatedAt.UTC().Format(time.RFC3339),
			"is_read":     m.IsRead,
			"is_edited":   m.IsEdited,
			"media_type":  m.MediaType,
			"media_url":   m.MediaURL,
		}
		if m.ReplyTo != nil {
			item["reply_to"] = map[string]any{"msg_id": m.ReplyTo.MessageID}
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

// handleRecentChats returns one summary per counterpart, most recent
// first.
func (s *Server) handleRecentChats(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)

	chats, err := s.messages.RecentChats(r.Context(), userID)
	if err != nil {
		log.Printf("devserver: recent chats for %d: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load recent chats"})
		return
	}

	items := make([]map[string]any, 0, len(chats))
	for _, c := range chats {
		items = append(items, map[string]any{
			"id":       c.PeerID,
			"username": c.Username,
			"nickname": c.Nickname,
			"avatar":   c.Avatar,
			"last_message": map[string]any{
				"content":    c.LastMessage.Content,
				"timestamp":  c.LastMessage.Timestamp.UTC().Format(time.RFC3339),
				"is_read":    c.LastMessage.IsRead,
				"is_me":      c.LastMessage.IsMe,
				"media_type": c.LastMessage.MediaType,
			},
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
