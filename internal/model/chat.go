package model

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Chat is a conversation between two users. The participant pair is stored
// in normalized order so each pair maps to exactly one chat row.
type Chat struct {
	Base
	ParticipantA  uuid.UUID  `json:"-" db:"participant_a"`
	ParticipantB  uuid.UUID  `json:"-" db:"participant_b"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`

	Participants []*UserSummary `json:"participants,omitempty" db:"-"`
	Messages     []*ChatMessage `json:"messages,omitempty" db:"-"`
}

// HasParticipant reports whether id is one of the two parties.
func (c *Chat) HasParticipant(id uuid.UUID) bool {
	return c.ParticipantA == id || c.ParticipantB == id
}

// NormalizePair orders two participant ids canonically.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

type ChatMessage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ChatID    uuid.UUID `json:"chat_id" db:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Sender *UserSummary `json:"sender,omitempty" db:"-"`
}

type OpenChatRequest struct {
	ParticipantID uuid.UUID `json:"participant_id" binding:"required"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
