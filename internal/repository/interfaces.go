package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
)

// UserRepository is the identity directory store. Users are soft-deactivated
// via is_active, never deleted.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByRoleAndID(ctx context.Context, role model.Role, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, role model.Role) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// AppointmentRepository owns appointment records. CreateScheduled must be
// atomic with the slot-uniqueness check: the partial unique index on
// (doctor_id, date, time) WHERE status='scheduled' is the authoritative
// guard and unique violations surface as ErrSlotTaken.
type AppointmentRepository interface {
	CreateScheduled(ctx context.Context, apt *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	SlotTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string) (bool, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	// UpdateVersioned applies the update only if the stored version matches
	// apt.Version, then increments it. A stale version yields ErrStaleVersion.
	UpdateVersioned(ctx context.Context, apt *model.Appointment) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	ListAll(ctx context.Context) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	SoftDelete(ctx context.Context, id, userID uuid.UUID) error
}

type ConsultationRepository interface {
	Create(ctx context.Context, c *model.Consultation) error
	Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Consultation, error)
	ListAll(ctx context.Context) ([]*model.Consultation, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *model.Prescription) error
	Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.PrescriptionStatus) error
}

// ChatRepository stores conversations and their messages. Participant
// pairs are normalized before storage; the unique constraint on
// (participant_a, participant_b) makes get-or-create race safe.
type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	Get(ctx context.Context, id uuid.UUID) (*model.Chat, error)
	GetByParticipants(ctx context.Context, a, b uuid.UUID) (*model.Chat, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Chat, error)
	AddMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]*model.ChatMessage, error)
	MarkMessagesRead(ctx context.Context, chatID, readerID uuid.UUID) error
}

// TokenRepository stores single-use password reset tokens.
type TokenRepository interface {
	StoreResetToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Time) error
	ValidateResetToken(ctx context.Context, token string) (uuid.UUID, error)
	InvalidateResetToken(ctx context.Context, token string) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}
