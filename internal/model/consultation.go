package model

import (
	"time"

	"github.com/google/uuid"
)

// Consultation is a doctor's visit record: vitals plus free-text findings.
type Consultation struct {
	Base
	PatientID     uuid.UUID `json:"patient_id" db:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id" db:"doctor_id"`
	Date          time.Time `json:"date" db:"date"`
	Time          string    `json:"time" db:"time"`
	Complaints    string    `json:"complaints" db:"complaints"`
	Note          string    `json:"note,omitempty" db:"note"`
	BloodPressure string    `json:"blood_pressure,omitempty" db:"blood_pressure"`
	Pulse         string    `json:"pulse,omitempty" db:"pulse"`
	Temperature   string    `json:"temperature,omitempty" db:"temperature"`
	Weight        string    `json:"weight,omitempty" db:"weight"`

	Patient *UserSummary `json:"patient,omitempty" db:"-"`
	Doctor  *UserSummary `json:"doctor,omitempty" db:"-"`
}

type CreateConsultationRequest struct {
	PatientID     uuid.UUID `json:"patient_id" binding:"required"`
	Date          string    `json:"date" binding:"required"`
	Time          string    `json:"time" binding:"required"`
	Complaints    string    `json:"complaints" binding:"required"`
	Note          string    `json:"note"`
	BloodPressure string    `json:"blood_pressure"`
	Pulse         string    `json:"pulse"`
	Temperature   string    `json:"temperature"`
	Weight        string    `json:"weight"`
}
