package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is permitted.
func (s AppointmentStatus) Terminal() bool {
	return s.Valid() && s != AppointmentStatusScheduled
}

// CanTransitionTo enforces the one-way state machine: the only legal edges
// leave "scheduled".
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return s == AppointmentStatusScheduled && next.Valid() && next != AppointmentStatusScheduled
}

// Appointment is a booking of one doctor slot for one patient. The slot is
// the tuple (doctor_id, date, time); at most one scheduled appointment may
// occupy it, enforced by a partial unique index in storage. Version is the
// optimistic-concurrency token checked on every update.
type Appointment struct {
	Base
	PatientID    uuid.UUID         `json:"patient_id" db:"patient_id"`
	DoctorID     uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	Date         time.Time         `json:"date" db:"date"`
	Time         string            `json:"time" db:"time"`
	Status       AppointmentStatus `json:"status" db:"status"`
	Reason       string            `json:"reason" db:"reason"`
	Notes        string            `json:"notes,omitempty" db:"notes"`
	FollowUp     bool              `json:"follow_up" db:"follow_up"`
	FollowUpDate *time.Time        `json:"follow_up_date,omitempty" db:"follow_up_date"`
	Version      int               `json:"version" db:"version"`

	Patient *UserSummary `json:"patient,omitempty" db:"-"`
	Doctor  *UserSummary `json:"doctor,omitempty" db:"-"`
}

type CreateAppointmentRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	Date      string    `json:"date" binding:"required"`
	Time      string    `json:"time" binding:"required"`
	Reason    string    `json:"reason" binding:"required,max=1000"`
}

type UpdateAppointmentRequest struct {
	Status       *AppointmentStatus `json:"status"`
	Notes        *string            `json:"notes"`
	FollowUp     *bool              `json:"follow_up"`
	FollowUpDate *string            `json:"follow_up_date"`
}

// AppointmentFilters narrows list queries. The scheduler overrides DoctorID
// or PatientID with the principal's own id for non-admin callers.
type AppointmentFilters struct {
	Status    AppointmentStatus
	Date      *time.Time
	DoctorID  uuid.UUID
	PatientID uuid.UUID
}
