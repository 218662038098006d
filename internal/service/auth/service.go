package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/service/directory"
	pkgauth "github.com/clinicore/clinic-api/pkg/auth"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
)

const (
	resetTokenExpiry = 1 * time.Hour
	bcryptCost       = 12
)

// decoyHash is compared against when the email is unknown, so that path
// costs a bcrypt verify just like a wrong password does.
var decoyHash, _ = bcrypt.GenerateFromPassword([]byte("login-decoy"), bcryptCost)

type Service struct {
	dir       *directory.Service
	jwtSvc    pkgauth.JWTService
	tokenRepo repository.TokenRepository
	outbox    repository.OutboxRepository
	emailSvc  email.Service
	logger    *logger.Logger
}

func NewService(dir *directory.Service, jwtSvc pkgauth.JWTService, tokenRepo repository.TokenRepository, outbox repository.OutboxRepository, emailSvc email.Service, log *logger.Logger) *Service {
	return &Service{
		dir:       dir,
		jwtSvc:    jwtSvc,
		tokenRepo: tokenRepo,
		outbox:    outbox,
		emailSvc:  emailSvc,
		logger:    log,
	}
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.dir.FindByEmail(ctx, req.Email)
	if err != nil {
		// Indistinguishable from a bad password, in both message and
		// bcrypt cost.
		_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(req.Password))
		return nil, apperrors.Unauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	return s.generateTokens(user)
}

// Register creates a patient or doctor account. The role-specific fields
// are validated by the profile variant constructors; the role is fixed at
// creation and never changes afterwards.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	var user *model.User
	switch role {
	case model.RolePatient:
		user, err = model.NewPatientUser(req.Email, req.FirstName, req.LastName, req.PatientProfile)
	case model.RoleDoctor:
		user, err = model.NewDoctorUser(req.Email, req.FirstName, req.LastName, req.DoctorProfile)
	default:
		return nil, apperrors.Validation("role must be patient or doctor")
	}
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	user.PhoneNumber = req.PhoneNumber
	user.Sex = req.Sex
	user.Address = req.Address
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, apperrors.Validation("date_of_birth must be YYYY-MM-DD")
		}
		user.DateOfBirth = &dob
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("failed to hash password: %w", err))
	}
	user.PasswordHash = string(hash)

	if err := s.dir.Create(ctx, user); err != nil {
		return nil, err
	}

	s.emitRegistered(ctx, user)

	// Fire and forget.
	go func() {
		if err := s.emailSvc.SendWelcome(user.Email, user.FullName()); err != nil {
			s.logger.Error(err, "failed to send welcome email", "email", user.Email)
		}
	}()

	return user, nil
}

// emitRegistered enqueues the account-creation event; failures are logged
// and never roll back the registration.
func (s *Service) emitRegistered(ctx context.Context, user *model.User) {
	payload, err := json.Marshal(model.UserEvent{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal user event")
		return
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventUserRegistered,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to enqueue user event", "user_id", user.ID.String())
	}
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.dir.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	return s.generateTokens(user)
}

// ForgotPassword issues a single-use reset token. A missing account is not
// reported to the caller.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := s.dir.FindByEmail(ctx, emailAddr)
	if err != nil {
		return nil
	}

	token := uuid.New().String()
	if err := s.tokenRepo.StoreResetToken(ctx, user.ID, token, time.Now().Add(resetTokenExpiry)); err != nil {
		return apperrors.Storage(err)
	}

	go func() {
		if err := s.emailSvc.SendPasswordReset(user.Email, token); err != nil {
			s.logger.Error(err, "failed to send reset email", "email", user.Email)
		}
	}()

	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokenRepo.ValidateResetToken(ctx, token)
	if err != nil {
		return apperrors.Unauthorized("invalid or expired reset token")
	}

	user, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return apperrors.Storage(fmt.Errorf("failed to hash password: %w", err))
	}
	user.PasswordHash = string(hash)

	if err := s.dir.Update(ctx, user); err != nil {
		return err
	}
	return s.invalidateToken(ctx, token)
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error {
	user, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return apperrors.Storage(fmt.Errorf("failed to hash password: %w", err))
	}
	user.PasswordHash = string(hash)

	return s.dir.Update(ctx, user)
}

// ResolvePrincipal re-resolves the verified token subject through the
// directory on every request; the role in the principal always comes from
// the user record, never from token claims.
func (s *Service) ResolvePrincipal(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token")
	}

	user, err := s.dir.FindByID(ctx, claims.UserID)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrNotFound {
			return nil, apperrors.Unauthorized("invalid token")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	return &model.Principal{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
	}, nil
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	accessToken, err := s.jwtSvc.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("failed to generate access token: %w", err))
	}

	refreshToken, err := s.jwtSvc.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("failed to generate refresh token: %w", err))
	}

	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) invalidateToken(ctx context.Context, token string) error {
	if err := s.tokenRepo.InvalidateResetToken(ctx, token); err != nil {
		if !errors.Is(err, postgres.ErrNoRows) {
			return apperrors.Storage(err)
		}
	}
	return nil
}
