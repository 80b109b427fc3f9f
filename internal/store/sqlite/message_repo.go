package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatsync/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (content, sender_id, receiver_id, created_at, reply_to_id, is_read, media_type, media_url)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?, ?, ?, ?)
	`
	var replyTo any
	if m.ReplyTo != nil {
		replyTo = m.ReplyTo.MessageID
	}
	res, err := r.db.ExecContext(ctx, query,
		m.Content,
		m.SenderID,
		m.ReceiverID,
		replyTo,
		m.IsRead,
		m.MediaType,
		m.MediaURL,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id

	// Read CreatedAt back so the echoed frame carries the stored value.
	row := r.db.QueryRowContext(ctx, `SELECT created_at FROM messages WHERE id = ?`, id)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("read back created_at: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := `
		SELECT id, content, sender_id, receiver_id, created_at, is_edited, is_read, is_deleted, media_type, media_url
		FROM messages WHERE id = ?
	`
	m := &domain.Message{}
	var isDeleted bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.Content,
		&m.SenderID,
		&m.ReceiverID,
		&m.CreatedAt,
		&m.IsEdited,
		&m.IsRead,
		&isDeleted,
		&m.MediaType,
		&m.MediaURL,
	)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && isDeleted) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.Kind = domain.KindMessage
	return m, nil
}

// HistoryBetween returns the non-deleted messages exchanged by the two
// users, oldest first.
func (r *MessageRepo) HistoryBetween(ctx context.Context, userID, friendID int64) ([]domain.Message, error) {
	query := `
		SELECT id, content, sender_id, receiver_id, created_at, reply_to_id, is_edited, is_read, media_type, media_url
		FROM messages
		WHERE is_deleted = 0
		  AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, friendID, friendID, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var res []domain.Message
	for rows.Next() {
		m := domain.Message{Kind: domain.KindMessage}
		var replyTo sql.NullInt64
		if err := rows.Scan(
			&m.ID,
			&m.Content,
			&m.SenderID,
			&m.ReceiverID,
			&m.CreatedAt,
			&replyTo,
			&m.IsEdited,
			&m.IsRead,
			&m.MediaType,
			&m.MediaURL,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if replyTo.Valid {
			m.ReplyTo = &domain.ReplyRef{MessageID: replyTo.Int64}
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// RecentChats returns one summary per counterpart the user has exchanged
// messages with, most recent activity first.
func (r *MessageRepo) RecentChats(ctx context.Context, userID int64) ([]domain.ConversationSummary, error) {
	query := `
		SELECT u.id, u.username, u.nickname, u.avatar,
		       m.content, m.created_at, m.is_read, m.sender_id, m.media_type
		FROM messages m
		JOIN (
			SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id,
			       MAX(id) AS last_id
			FROM messages
			WHERE is_deleted = 0 AND (sender_id = ? OR receiver_id = ?)
			GROUP BY peer_id
		) last ON last.last_id = m.id
		JOIN users u ON u.id = last.peer_id
		ORDER BY m.created_at DESC, m.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list recent chats: %w", err)
	}
	defer rows.Close()

	var res []domain.ConversationSummary
	for rows.Next() {
		var c domain.ConversationSummary
		var senderID int64
		if err := rows.Scan(
			&c.PeerID,
			&c.Username,
			&c.Nickname,
			&c.Avatar,
			&c.LastMessage.Content,
			&c.LastMessage.Timestamp,
			&c.LastMessage.IsRead,
			&senderID,
			&c.LastMessage.MediaType,
		); err != nil {
			return nil, fmt.Errorf("scan recent chat: %w", err)
		}
		c.LastMessage.IsMe = senderID == userID
		res = append(res, c)
	}
	return res, rows.Err()
}

// Edit rewrites a message's content; only the sender may edit. Reports
// whether a row changed.
func (r *MessageRepo) Edit(ctx context.Context, messageID, senderID int64, newContent string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, is_edited = 1
		WHERE id = ? AND sender_id = ? AND is_deleted = 0
	`, newContent, messageID, senderID)
	if err != nil {
		return false, fmt.Errorf("edit message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteForEveryone soft-deletes a sender's own message and returns the
// receiver to notify.
func (r *MessageRepo) DeleteForEveryone(ctx context.Context, messageID, senderID int64) (int64, error) {
	var receiverID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT receiver_id FROM messages WHERE id = ? AND sender_id = ? AND is_deleted = 0
	`, messageID, senderID).Scan(&receiverID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find message: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted = 1 WHERE id = ?`, messageID); err != nil {
		return 0, fmt.Errorf("delete message: %w", err)
	}
	return receiverID, nil
}

// MarkAllReadFrom applies the read watermark: everything senderID sent
// to readerID becomes read.
func (r *MessageRepo) MarkAllReadFrom(ctx context.Context, senderID, readerID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, read_at = CURRENT_TIMESTAMP
		WHERE sender_id = ? AND receiver_id = ? AND is_read = 0
	`, senderID, readerID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// AddReaction records a reaction if the reactor is a party to the
// message.
func (r *MessageRepo) AddReaction(ctx context.Context, messageID, userID int64, reaction string) error {
	var senderID, receiverID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT sender_id, receiver_id FROM messages WHERE id = ? AND is_deleted = 0
	`, messageID).Scan(&senderID, &receiverID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find message: %w", err)
	}
	if userID != senderID && userID != receiverID {
		return domain.ErrForbidden
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO message_reactions (message_id, user_id, reaction) VALUES (?, ?, ?)
	`, messageID, userID, reaction); err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}
