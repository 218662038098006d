// Package scheduler owns appointment records: booking with slot conflict
// avoidance, the status state machine, follow-up linkage and role-scoped
// queries.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/service/authz"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

// Directory is the slice of the identity directory the scheduler consumes.
type Directory interface {
	FindByRoleAndID(ctx context.Context, role model.Role, id uuid.UUID) (*model.User, error)
	Summary(ctx context.Context, id uuid.UUID) *model.UserSummary
}

type Service struct {
	repo    repository.AppointmentRepository
	dir     Directory
	outbox  repository.OutboxRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.AppointmentRepository, dir Directory, outbox repository.OutboxRepository, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		dir:     dir,
		outbox:  outbox,
		logger:  log,
		metrics: m,
	}
}

// Create books a slot for a patient. The patient must resolve to an active
// user with role=patient; the slot (doctor, date, time) must have no
// scheduled appointment. The existence check here is only a fast pre-check:
// the insert itself is guarded by the store's partial unique index, so two
// concurrent creates for the same slot cannot both succeed.
func (s *Service) Create(ctx context.Context, doctorID, patientID uuid.UUID, date time.Time, slot, reason string) (*model.Appointment, error) {
	if reason == "" {
		return nil, apperrors.Validation("reason is required")
	}
	if slot == "" {
		return nil, apperrors.Validation("time slot is required")
	}

	patient, err := s.dir.FindByRoleAndID(ctx, model.RolePatient, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.IsActive {
		return nil, apperrors.NotFound("patient")
	}

	taken, err := s.repo.SlotTaken(ctx, doctorID, date, slot)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if taken {
		s.countConflict()
		return nil, apperrors.SlotConflict("time slot is already booked")
	}

	now := time.Now()
	apt := &model.Appointment{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      slot,
		Status:    model.AppointmentStatusScheduled,
		Reason:    reason,
		Version:   1,
	}

	if err := s.repo.CreateScheduled(ctx, apt); err != nil {
		if errors.Is(err, postgres.ErrSlotTaken) {
			s.countConflict()
			return nil, apperrors.SlotConflict("time slot is already booked")
		}
		return nil, apperrors.Storage(err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsCreated.Inc()
	}
	s.emit(ctx, model.EventAppointmentCreated, apt)
	s.enrich(ctx, apt)
	return apt, nil
}

// TransitionParams carries the optional fields of a transition call. A nil
// Status means notes/follow-up edit only, which is allowed in any state;
// status itself only moves out of "scheduled".
type TransitionParams struct {
	Status       *model.AppointmentStatus
	Notes        *string
	FollowUp     *bool
	FollowUpDate *time.Time
}

// Transition applies a status change and/or field edits after an ownership
// check against the booking's patient and doctor. Updates are guarded by
// the record's version so simultaneous transitions cannot lose writes.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, actor model.Principal, params TransitionParams) (*model.Appointment, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authz.AuthorizeOwnership(actor, apt.PatientID, apt.DoctorID); err != nil {
		return nil, err
	}

	if params.Status != nil && *params.Status != apt.Status {
		if !apt.Status.CanTransitionTo(*params.Status) {
			if s.metrics != nil {
				s.metrics.TransitionsRejected.Inc()
			}
			return nil, apperrors.InvalidTransition(
				"cannot transition from " + string(apt.Status) + " to " + string(*params.Status))
		}
		apt.Status = *params.Status
		if s.metrics != nil {
			s.metrics.StatusTransitions.WithLabelValues(string(apt.Status)).Inc()
		}
	}

	if params.Notes != nil {
		apt.Notes = *params.Notes
	}
	if params.FollowUp != nil {
		apt.FollowUp = *params.FollowUp
	}
	// A follow-up date is meaningful only when follow-up is set.
	if apt.FollowUp {
		if params.FollowUpDate != nil {
			apt.FollowUpDate = params.FollowUpDate
		}
	} else {
		apt.FollowUpDate = nil
	}

	if err := s.repo.UpdateVersioned(ctx, apt); err != nil {
		switch {
		case errors.Is(err, postgres.ErrNoRows):
			return nil, apperrors.NotFound("appointment")
		case errors.Is(err, postgres.ErrStaleVersion):
			return nil, apperrors.VersionConflict("appointment")
		default:
			return nil, apperrors.Storage(err)
		}
	}

	if params.Status != nil {
		s.emit(ctx, model.EventAppointmentStatusChanged, apt)
	}
	s.enrich(ctx, apt)
	return apt, nil
}

// Cancel soft-cancels the booking. The record is never removed; audit
// history survives cancellation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor model.Principal) (*model.Appointment, error) {
	cancelled := model.AppointmentStatusCancelled
	return s.Transition(ctx, id, actor, TransitionParams{Status: &cancelled})
}

// Get loads one appointment, visible only to its patient, its doctor or an
// admin.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor model.Principal) (*model.Appointment, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.AuthorizeOwnership(actor, apt.PatientID, apt.DoctorID); err != nil {
		return nil, err
	}
	s.enrich(ctx, apt)
	return apt, nil
}

// List returns appointments scoped to the principal's role: doctors see only
// their own book, patients only their own visits, admins whatever the
// filters say. Caller-supplied doctor/patient filters are overridden for
// non-admin roles, never trusted.
func (s *Service) List(ctx context.Context, principal model.Principal, filters model.AppointmentFilters) ([]*model.Appointment, error) {
	switch principal.Role {
	case model.RoleDoctor:
		filters.DoctorID = principal.UserID
	case model.RolePatient:
		filters.PatientID = principal.UserID
	}

	appointments, err := s.repo.List(ctx, &filters)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	for _, apt := range appointments {
		s.enrich(ctx, apt)
	}
	return appointments, nil
}

// ListAll is the unscoped admin view.
func (s *Service) ListAll(ctx context.Context, principal model.Principal) ([]*model.Appointment, error) {
	if err := authz.Authorize(principal, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.List(ctx, principal, model.AppointmentFilters{})
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, apperrors.NotFound("appointment")
		}
		return nil, apperrors.Storage(err)
	}
	return apt, nil
}

// emit writes the side-effect request to the outbox. Delivery failures are
// logged and never roll back the appointment operation.
func (s *Service) emit(ctx context.Context, eventType string, apt *model.Appointment) {
	payload, err := json.Marshal(model.AppointmentEvent{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		Date:          apt.Date,
		Time:          apt.Time,
		Status:        apt.Status,
		Reason:        apt.Reason,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal appointment event")
		return
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to enqueue appointment event",
			"event_type", eventType, "appointment_id", apt.ID.String())
	}
}

func (s *Service) enrich(ctx context.Context, apt *model.Appointment) {
	apt.Patient = s.dir.Summary(ctx, apt.PatientID)
	apt.Doctor = s.dir.Summary(ctx, apt.DoctorID)
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.SlotConflicts.Inc()
	}
}
