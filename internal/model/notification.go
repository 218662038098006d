package model

import (
	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationAccountCreation         NotificationType = "account_creation"
	NotificationAppointmentBooking      NotificationType = "appointment_booking"
	NotificationAppointmentUpdate       NotificationType = "appointment_update"
	NotificationAppointmentCancellation NotificationType = "appointment_cancellation"
)

// Notification is an in-app message for a single user. Soft-deleted only.
type Notification struct {
	Base
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Body      string           `json:"body" db:"body"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	IsDeleted bool             `json:"-" db:"is_deleted"`
	CreatedBy *uuid.UUID       `json:"created_by,omitempty" db:"created_by"`
}
