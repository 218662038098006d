package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/service/authz"
	"github.com/clinicore/clinic-api/internal/service/directory"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

type Service struct {
	repo repository.PrescriptionRepository
	dir  *directory.Service
}

func NewService(repo repository.PrescriptionRepository, dir *directory.Service) *Service {
	return &Service{repo: repo, dir: dir}
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	if _, err := s.dir.FindByRoleAndID(ctx, model.RolePatient, req.PatientID); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.Prescription{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:         req.Name,
		PatientID:    req.PatientID,
		DoctorID:     doctorID,
		AssignDate:   now,
		Amount:       req.Amount,
		DurationDays: req.DurationDays,
		Dose:         req.Dose,
		Notes:        req.Notes,
		Status:       model.PrescriptionStatusActive,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperrors.Storage(err)
	}
	return p, nil
}

func (s *Service) ListMine(ctx context.Context, principal model.Principal) ([]*model.Prescription, error) {
	var (
		prescriptions []*model.Prescription
		err           error
	)
	switch principal.Role {
	case model.RoleDoctor:
		prescriptions, err = s.repo.ListForDoctor(ctx, principal.UserID)
	default:
		prescriptions, err = s.repo.ListForPatient(ctx, principal.UserID)
	}
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return prescriptions, nil
}

// UpdateStatus lets the prescribing doctor (or an admin) complete or cancel
// a prescription.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, actor model.Principal, status model.PrescriptionStatus) (*model.Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound("prescription")
		}
		return nil, apperrors.Storage(err)
	}

	if err := authz.AuthorizeOwnership(actor, p.DoctorID); err != nil {
		return nil, err
	}

	switch status {
	case model.PrescriptionStatusActive, model.PrescriptionStatusCompleted, model.PrescriptionStatusCancelled:
	default:
		return nil, apperrors.Validation("invalid prescription status")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound("prescription")
		}
		return nil, apperrors.Storage(err)
	}
	p.Status = status
	return p, nil
}
