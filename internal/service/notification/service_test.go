package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type memNotificationRepo struct {
	notifications map[uuid.UUID]*model.Notification
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{notifications: make(map[uuid.UUID]*model.Notification)}
}

func (r *memNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	cp := *n
	r.notifications[n.ID] = &cp
	return nil
}

func (r *memNotificationRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsDeleted {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) ListAll(_ context.Context) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range r.notifications {
		if !n.IsDeleted {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID || n.IsDeleted {
		return postgres.ErrNoRows
	}
	n.IsRead = true
	return nil
}

func (r *memNotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsDeleted {
			n.IsRead = true
		}
	}
	return nil
}

func (r *memNotificationRepo) SoftDelete(_ context.Context, id, userID uuid.UUID) error {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return postgres.ErrNoRows
	}
	n.IsDeleted = true
	return nil
}

func TestNotifyAppointmentEvent(t *testing.T) {
	repo := newMemNotificationRepo()
	svc := NewService(repo)

	patientID := uuid.New()
	doctorID := uuid.New()
	err := svc.NotifyAppointmentEvent(context.Background(), model.EventAppointmentCreated, &model.AppointmentEvent{
		AppointmentID: uuid.New(),
		PatientID:     patientID,
		DoctorID:      doctorID,
		Date:          time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		Time:          "09:00",
		Status:        model.AppointmentStatusScheduled,
	})
	require.NoError(t, err)

	for _, userID := range []uuid.UUID{patientID, doctorID} {
		mine, err := svc.ListMine(context.Background(), model.Principal{UserID: userID, Role: model.RolePatient})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, model.NotificationAppointmentBooking, mine[0].Type)
	}
}

func TestNotifyUserRegistered(t *testing.T) {
	repo := newMemNotificationRepo()
	svc := NewService(repo)

	userID := uuid.New()
	err := svc.NotifyUserRegistered(context.Background(), &model.UserEvent{
		UserID:    userID,
		Email:     "jane@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      model.RolePatient,
	})
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), model.Principal{UserID: userID, Role: model.RolePatient})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.NotificationAccountCreation, mine[0].Type)
	assert.Contains(t, mine[0].Body, "Jane Doe")
}

func TestMarkAllRead(t *testing.T) {
	repo := newMemNotificationRepo()
	svc := NewService(repo)

	userID := uuid.New()
	other := uuid.New()
	require.NoError(t, svc.Notify(context.Background(), userID, model.NotificationAppointmentUpdate, "a", "b", nil))
	require.NoError(t, svc.Notify(context.Background(), userID, model.NotificationAppointmentUpdate, "c", "d", nil))
	require.NoError(t, svc.Notify(context.Background(), other, model.NotificationAppointmentUpdate, "e", "f", nil))

	require.NoError(t, svc.MarkAllRead(context.Background(), model.Principal{UserID: userID, Role: model.RolePatient}))

	mine, err := svc.ListMine(context.Background(), model.Principal{UserID: userID, Role: model.RolePatient})
	require.NoError(t, err)
	for _, n := range mine {
		assert.True(t, n.IsRead)
	}

	theirs, err := svc.ListMine(context.Background(), model.Principal{UserID: other, Role: model.RolePatient})
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.False(t, theirs[0].IsRead, "other users' notifications stay unread")
}

func TestListAll(t *testing.T) {
	repo := newMemNotificationRepo()
	svc := NewService(repo)

	require.NoError(t, svc.Notify(context.Background(), uuid.New(), model.NotificationAppointmentUpdate, "a", "b", nil))
	require.NoError(t, svc.Notify(context.Background(), uuid.New(), model.NotificationAppointmentUpdate, "c", "d", nil))

	t.Run("admin sees every user's notifications", func(t *testing.T) {
		all, err := svc.ListAll(context.Background(), model.Principal{UserID: uuid.New(), Role: model.RoleAdmin})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("forbidden for non-admins", func(t *testing.T) {
		_, err := svc.ListAll(context.Background(), model.Principal{UserID: uuid.New(), Role: model.RoleDoctor})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.Code(err))
	})
}
