package consultation

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
	repo repository.ConsultationRepository
	dir  *directory.Service
}

func NewService(repo repository.ConsultationRepository, dir *directory.Service) *Service {
	return &Service{repo: repo, dir: dir}
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	if _, err := s.dir.FindByRoleAndID(ctx, model.RolePatient, req.PatientID); err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apperrors.Validation("date must be YYYY-MM-DD")
	}

	now := time.Now()
	c := &model.Consultation{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID:     req.PatientID,
		DoctorID:      doctorID,
		Date:          date,
		Time:          req.Time,
		Complaints:    req.Complaints,
		Note:          req.Note,
		BloodPressure: req.BloodPressure,
		Pulse:         req.Pulse,
		Temperature:   req.Temperature,
		Weight:        req.Weight,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, apperrors.Storage(err)
	}
	s.enrich(ctx, c)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, actor model.Principal) (*model.Consultation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound("consultation")
		}
		return nil, apperrors.Storage(err)
	}
	if err := authz.AuthorizeOwnership(actor, c.PatientID, c.DoctorID); err != nil {
		return nil, err
	}
	s.enrich(ctx, c)
	return c, nil
}

// ListMine scopes to the caller's role: doctors see consultations they ran,
// patients the ones they attended, admins everything.
func (s *Service) ListMine(ctx context.Context, principal model.Principal) ([]*model.Consultation, error) {
	var (
		consultations []*model.Consultation
		err           error
	)
	switch principal.Role {
	case model.RoleDoctor:
		consultations, err = s.repo.ListForDoctor(ctx, principal.UserID)
	case model.RolePatient:
		consultations, err = s.repo.ListForPatient(ctx, principal.UserID)
	default:
		consultations, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	for _, c := range consultations {
		s.enrich(ctx, c)
	}
	return consultations, nil
}

func (s *Service) enrich(ctx context.Context, c *model.Consultation) {
	c.Patient = s.dir.Summary(ctx, c.PatientID)
	c.Doctor = s.dir.Summary(ctx, c.DoctorID)
}
