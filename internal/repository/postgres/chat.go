package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
)

func (r *chatRepository) Create(ctx context.Context, chat *model.Chat) error {
	query := `
		INSERT INTO chats (
			id, participant_a, participant_b, last_message_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		chat.ID,
		chat.ParticipantA,
		chat.ParticipantB,
		chat.LastMessageAt,
		chat.CreatedAt,
		chat.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "chats_participants_key") {
			return ErrChatExists
		}
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

const chatColumns = `
	id, participant_a, participant_b, last_message_at, created_at, updated_at
`

func (r *chatRepository) Get(ctx context.Context, id uuid.UUID) (*model.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`

	var chat model.Chat
	if err := r.db.GetContext(ctx, &chat, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (r *chatRepository) GetByParticipants(ctx context.Context, a, b uuid.UUID) (*model.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE participant_a = $1 AND participant_b = $2`

	var chat model.Chat
	if err := r.db.GetContext(ctx, &chat, query, a, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
	`
	var chats []*model.Chat
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

// AddMessage inserts the message and bumps the parent chat's
// last_message_at so conversation lists sort by recency.
func (r *chatRepository) AddMessage(ctx context.Context, msg *model.ChatMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO chat_messages (id, chat_id, sender_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insert,
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.IsRead, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	bump := `UPDATE chats SET last_message_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, msg.ChatID, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to update chat timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID uuid.UUID) ([]*model.ChatMessage, error) {
	query := `
		SELECT id, chat_id, sender_id, content, is_read, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`
	var messages []*model.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, chatID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// MarkMessagesRead flags every message the reader did not send. Idempotent.
func (r *chatRepository) MarkMessagesRead(ctx context.Context, chatID, readerID uuid.UUID) error {
	query := `
		UPDATE chat_messages
		SET is_read = true
		WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read
	`
	if _, err := r.db.ExecContext(ctx, query, chatID, readerID); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
