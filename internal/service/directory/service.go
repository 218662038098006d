// Package directory is the identity directory: user lookup by id, email and
// role for the rest of the system. It owns user records but knows nothing
// about appointments.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type Service struct {
	repo repository.UserRepository
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound("user")
		}
		return nil, apperrors.Storage(err)
	}
	return user, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound("user")
		}
		return nil, apperrors.Storage(err)
	}
	return user, nil
}

func (s *Service) FindByRoleAndID(ctx context.Context, role model.Role, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetByRoleAndID(ctx, role, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound(string(role))
		}
		return nil, apperrors.Storage(err)
	}
	return user, nil
}

func (s *Service) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsActive, nil
}

func (s *Service) List(ctx context.Context, role model.Role) ([]*model.User, error) {
	users, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return users, nil
}

func (s *Service) Create(ctx context.Context, user *model.User) error {
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, postgres.ErrDuplicateEmail) {
			return apperrors.Validation("user already exists")
		}
		return apperrors.Storage(err)
	}
	return nil
}

func (s *Service) Update(ctx context.Context, user *model.User) error {
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return apperrors.NotFound("user")
		}
		return apperrors.Storage(err)
	}
	return nil
}

// Deactivate soft-disables the account; user records are never hard
// deleted.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return apperrors.NotFound("user")
		}
		return apperrors.Storage(err)
	}
	return nil
}

// Summaries look up display projections for record enrichment; a missing
// user yields nil rather than an error so enrichment never fails a read.
func (s *Service) Summary(ctx context.Context, id uuid.UUID) *model.UserSummary {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil
	}
	summary := &model.UserSummary{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
	if user.DoctorProfile != nil {
		summary.Specialization = user.DoctorProfile.Specialization
	}
	return summary
}
