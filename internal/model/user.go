package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role tags a user record. Roles are immutable after creation; there is no
// escalation path.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(s)) {
	case RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is the envelope common to every role. Role-specific fields live in
// the profile variant matching the role; exactly one of PatientProfile and
// DoctorProfile is set for those roles, neither for admins.
type User struct {
	Base
	Email          string          `json:"email" db:"email"`
	PasswordHash   string          `json:"-" db:"password_hash"`
	Role           Role            `json:"role" db:"role"`
	FirstName      string          `json:"first_name" db:"first_name"`
	LastName       string          `json:"last_name" db:"last_name"`
	PhoneNumber    string          `json:"phone_number,omitempty" db:"phone_number"`
	Sex            string          `json:"sex,omitempty" db:"sex"`
	Address        string          `json:"address,omitempty" db:"address"`
	DateOfBirth    *time.Time      `json:"date_of_birth,omitempty" db:"date_of_birth"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	PatientProfile *PatientProfile `json:"patient_profile,omitempty" db:"patient_profile"`
	DoctorProfile  *DoctorProfile  `json:"doctor_profile,omitempty" db:"doctor_profile"`
}

// PatientProfile carries the fields required when role=patient.
type PatientProfile struct {
	EmergencyNumber string   `json:"emergency_number"`
	BloodGroup      string   `json:"blood_group"`
	Genotype        string   `json:"genotype,omitempty"`
	Allergies       []string `json:"allergies"`
	PastSurgeries   []string `json:"past_surgeries"`
}

// DoctorProfile carries the fields required when role=doctor.
type DoctorProfile struct {
	Specialization    string   `json:"specialization"`
	Hospital          string   `json:"hospital,omitempty"`
	DegreeType        string   `json:"degree_type,omitempty"`
	YearsOfExperience int      `json:"years_of_experience"`
	Qualifications    []string `json:"qualifications,omitempty"`
}

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// Validate checks the per-variant required fields at construction time.
func (p *PatientProfile) Validate() error {
	if p == nil {
		return fmt.Errorf("patient profile is required")
	}
	if p.EmergencyNumber == "" {
		return fmt.Errorf("emergency number is required")
	}
	if !validBloodGroups[p.BloodGroup] {
		return fmt.Errorf("invalid blood group %q", p.BloodGroup)
	}
	return nil
}

func (p *DoctorProfile) Validate() error {
	if p == nil {
		return fmt.Errorf("doctor profile is required")
	}
	if p.Specialization == "" {
		return fmt.Errorf("specialization is required")
	}
	return nil
}

// NewPatientUser builds a patient user, validating the variant up front so
// no conditionally-required checks are needed later.
func NewPatientUser(email, firstName, lastName string, profile *PatientProfile) (*User, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return newUser(email, firstName, lastName, RolePatient, profile, nil)
}

// NewDoctorUser builds a doctor user with a validated doctor variant.
func NewDoctorUser(email, firstName, lastName string, profile *DoctorProfile) (*User, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return newUser(email, firstName, lastName, RoleDoctor, nil, profile)
}

// NewAdminUser builds an admin user; admins carry no variant.
func NewAdminUser(email, firstName, lastName string) (*User, error) {
	return newUser(email, firstName, lastName, RoleAdmin, nil, nil)
}

func newUser(email, firstName, lastName string, role Role, pp *PatientProfile, dp *DoctorProfile) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("first and last name are required")
	}
	now := time.Now()
	return &User{
		Base: Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Email:          strings.ToLower(strings.TrimSpace(email)),
		Role:           role,
		FirstName:      firstName,
		LastName:       lastName,
		IsActive:       true,
		PatientProfile: pp,
		DoctorProfile:  dp,
	}, nil
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Profiles persist as jsonb.

func (p PatientProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PatientProfile) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func (p DoctorProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *DoctorProfile) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func scanJSON(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	return json.Unmarshal(b, dst)
}

// UserSummary is the projection embedded in appointment responses for
// display enrichment.
type UserSummary struct {
	ID             uuid.UUID `json:"id" db:"id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          string    `json:"email" db:"email"`
	Specialization string    `json:"specialization,omitempty" db:"-"`
}
