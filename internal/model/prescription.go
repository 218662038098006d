package model

import (
	"time"

	"github.com/google/uuid"
)

type PrescriptionStatus string

const (
	PrescriptionStatusActive    PrescriptionStatus = "active"
	PrescriptionStatusCompleted PrescriptionStatus = "completed"
	PrescriptionStatusCancelled PrescriptionStatus = "cancelled"
)

// DoseSchedule marks the times of day a prescription is taken.
type DoseSchedule struct {
	Morning   bool `json:"morning"`
	Afternoon bool `json:"afternoon"`
	Night     bool `json:"night"`
}

type Prescription struct {
	Base
	Name         string             `json:"name" db:"name"`
	PatientID    uuid.UUID          `json:"patient_id" db:"patient_id"`
	DoctorID     uuid.UUID          `json:"doctor_id" db:"doctor_id"`
	AssignDate   time.Time          `json:"assign_date" db:"assign_date"`
	Amount       int                `json:"amount" db:"amount"`
	DurationDays int                `json:"duration_days" db:"duration_days"`
	Dose         DoseSchedule       `json:"dose" db:"-"`
	DoseMorning  bool               `json:"-" db:"dose_morning"`
	DoseNoon     bool               `json:"-" db:"dose_afternoon"`
	DoseNight    bool               `json:"-" db:"dose_night"`
	Notes        string             `json:"notes,omitempty" db:"notes"`
	Status       PrescriptionStatus `json:"status" db:"status"`
}

type CreatePrescriptionRequest struct {
	Name         string       `json:"name" binding:"required"`
	PatientID    uuid.UUID    `json:"patient_id" binding:"required"`
	Amount       int          `json:"amount" binding:"required,gt=0"`
	DurationDays int          `json:"duration_days" binding:"required,gt=0"`
	Dose         DoseSchedule `json:"dose"`
	Notes        string       `json:"notes"`
}
