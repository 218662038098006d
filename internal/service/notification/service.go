// Package notification stores in-app notifications and materializes them
// from appointment events.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type Service struct {
	repo repository.NotificationRepository
}

func NewService(repo repository.NotificationRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Notify(ctx context.Context, userID uuid.UUID, typ model.NotificationType, title, body string, createdBy *uuid.UUID) error {
	now := time.Now()
	n := &model.Notification{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Body:      body,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

// NotifyAppointmentEvent fans an appointment event out to both parties.
func (s *Service) NotifyAppointmentEvent(ctx context.Context, eventType string, evt *model.AppointmentEvent) error {
	typ, title := describe(eventType, evt.Status)
	body := fmt.Sprintf("Appointment on %s at %s is now %s.",
		evt.Date.Format("2006-01-02"), evt.Time, evt.Status)

	if err := s.Notify(ctx, evt.PatientID, typ, title, body, nil); err != nil {
		return err
	}
	return s.Notify(ctx, evt.DoctorID, typ, title, body, nil)
}

// NotifyUserRegistered materializes the account-creation notification for
// a freshly registered user.
func (s *Service) NotifyUserRegistered(ctx context.Context, evt *model.UserEvent) error {
	body := fmt.Sprintf("Welcome, %s %s. Your account has been created.",
		evt.FirstName, evt.LastName)
	return s.Notify(ctx, evt.UserID, model.NotificationAccountCreation, "Account created", body, nil)
}

func describe(eventType string, status model.AppointmentStatus) (model.NotificationType, string) {
	if eventType == model.EventAppointmentCreated {
		return model.NotificationAppointmentBooking, "Appointment booked"
	}
	if status == model.AppointmentStatusCancelled {
		return model.NotificationAppointmentCancellation, "Appointment cancelled"
	}
	return model.NotificationAppointmentUpdate, "Appointment updated"
}

func (s *Service) ListMine(ctx context.Context, principal model.Principal) ([]*model.Notification, error) {
	notifications, err := s.repo.ListForUser(ctx, principal.UserID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return notifications, nil
}

// ListAll is the admin view across all users.
func (s *Service) ListAll(ctx context.Context, principal model.Principal) ([]*model.Notification, error) {
	if principal.Role != model.RoleAdmin {
		return nil, apperrors.Forbidden("admin access required")
	}
	notifications, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return notifications, nil
}

func (s *Service) MarkAllRead(ctx context.Context, principal model.Principal) error {
	if err := s.repo.MarkAllRead(ctx, principal.UserID); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	if err := s.repo.MarkRead(ctx, id, principal.UserID); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return apperrors.NotFound("notification")
		}
		return apperrors.Storage(err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	if err := s.repo.SoftDelete(ctx, id, principal.UserID); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return apperrors.NotFound("notification")
		}
		return apperrors.Storage(err)
	}
	return nil
}
