// Package chat stores doctor-patient conversations. Messages are
// participant-gated: only the two parties of a chat may read or write it,
// with no admin bypass.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/service/directory"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type Service struct {
	repo repository.ChatRepository
	dir  *directory.Service
}

func NewService(repo repository.ChatRepository, dir *directory.Service) *Service {
	return &Service{repo: repo, dir: dir}
}

// Open returns the chat between the caller and the given participant,
// creating it on first contact. A concurrent first contact from the other
// side is absorbed by the unique participant-pair constraint.
func (s *Service) Open(ctx context.Context, principal model.Principal, participantID uuid.UUID) (*model.Chat, error) {
	if participantID == principal.UserID {
		return nil, apperrors.Validation("cannot open a chat with yourself")
	}
	if _, err := s.dir.FindByID(ctx, participantID); err != nil {
		return nil, err
	}

	a, b := model.NormalizePair(principal.UserID, participantID)

	chat, err := s.repo.GetByParticipants(ctx, a, b)
	if err == nil {
		s.enrich(ctx, chat)
		return chat, nil
	}
	if !errors.Is(err, postgres.ErrNoRows) {
		return nil, apperrors.Storage(err)
	}

	now := time.Now()
	chat = &model.Chat{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ParticipantA: a,
		ParticipantB: b,
	}
	if err := s.repo.Create(ctx, chat); err != nil {
		if errors.Is(err, postgres.ErrChatExists) {
			// Lost the race; the winner's row is the chat.
			chat, err = s.repo.GetByParticipants(ctx, a, b)
			if err != nil {
				return nil, apperrors.Storage(err)
			}
			s.enrich(ctx, chat)
			return chat, nil
		}
		return nil, apperrors.Storage(err)
	}
	s.enrich(ctx, chat)
	return chat, nil
}

// ListMine returns the caller's conversations, most recent activity first.
func (s *Service) ListMine(ctx context.Context, principal model.Principal) ([]*model.Chat, error) {
	chats, err := s.repo.ListForUser(ctx, principal.UserID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	for _, chat := range chats {
		s.enrich(ctx, chat)
	}
	return chats, nil
}

func (s *Service) SendMessage(ctx context.Context, principal model.Principal, chatID uuid.UUID, content string) (*model.ChatMessage, error) {
	chat, err := s.load(ctx, chatID, principal)
	if err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		SenderID:  principal.UserID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, apperrors.Storage(err)
	}
	msg.Sender = s.dir.Summary(ctx, msg.SenderID)
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, principal model.Principal, chatID uuid.UUID) ([]*model.ChatMessage, error) {
	if _, err := s.load(ctx, chatID, principal); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	for _, msg := range messages {
		msg.Sender = s.dir.Summary(ctx, msg.SenderID)
	}
	return messages, nil
}

// MarkRead flags every message from the other party as read.
func (s *Service) MarkRead(ctx context.Context, principal model.Principal, chatID uuid.UUID) error {
	if _, err := s.load(ctx, chatID, principal); err != nil {
		return err
	}
	if err := s.repo.MarkMessagesRead(ctx, chatID, principal.UserID); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

// load fetches the chat and gates on participation. Admins are not
// participants and get no bypass here.
func (s *Service) load(ctx context.Context, chatID uuid.UUID, principal model.Principal) (*model.Chat, error) {
	chat, err := s.repo.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound("chat")
		}
		return nil, apperrors.Storage(err)
	}
	if !chat.HasParticipant(principal.UserID) {
		return nil, apperrors.Forbidden("not a participant in this chat")
	}
	return chat, nil
}

func (s *Service) enrich(ctx context.Context, chat *model.Chat) {
	chat.Participants = chat.Participants[:0]
	for _, id := range []uuid.UUID{chat.ParticipantA, chat.ParticipantB} {
		if summary := s.dir.Summary(ctx, id); summary != nil {
			chat.Participants = append(chat.Participants, summary)
		}
	}
}
