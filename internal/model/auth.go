package model

import (
	"github.com/google/uuid"
)

// Principal is the authenticated identity attached to a request. The role
// is re-resolved from the user directory on every request; it is never
// taken from client-supplied claims.
type Principal struct {
	UserID uuid.UUID
	Role   Role
	Email  string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RegisterRequest struct {
	Email          string          `json:"email" binding:"required,email"`
	Password       string          `json:"password" binding:"required,min=8"`
	Role           string          `json:"role" binding:"required,oneof=patient doctor"`
	FirstName      string          `json:"first_name" binding:"required"`
	LastName       string          `json:"last_name" binding:"required"`
	PhoneNumber    string          `json:"phone_number"`
	Sex            string          `json:"sex" binding:"omitempty,oneof=male female other"`
	Address        string          `json:"address"`
	DateOfBirth    string          `json:"date_of_birth"`
	PatientProfile *PatientProfile `json:"patient_profile"`
	DoctorProfile  *DoctorProfile  `json:"doctor_profile"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}
