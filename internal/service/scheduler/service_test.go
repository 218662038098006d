package scheduler

import (
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/logger"
)

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	createErr    error
	updateErr    error
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *fakeAppointmentRepo) CreateScheduled(_ context.Context, apt *model.Appointment) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.appointments {
		if existing.DoctorID == apt.DoctorID &&
			existing.Date.Equal(apt.Date) &&
			existing.Time == apt.Time &&
			existing.Status == model.AppointmentStatusScheduled {
			return postgres.ErrSlotTaken
		}
	}
	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := r.appointments[id]
	if !ok {
		return nil, postgres.ErrNoRows
	}
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) SlotTaken(_ context.Context, doctorID uuid.UUID, date time.Time, slot string) (bool, error) {
	for _, apt := range r.appointments {
		if apt.DoctorID == doctorID && apt.Date.Equal(date) && apt.Time == slot &&
			apt.Status == model.AppointmentStatusScheduled {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if filters.DoctorID != uuid.Nil && apt.DoctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && apt.PatientID != filters.PatientID {
			continue
		}
		if filters.Status != "" && apt.Status != filters.Status {
			continue
		}
		if filters.Date != nil && !apt.Date.Equal(*filters.Date) {
			continue
		}
		cp := *apt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (r *fakeAppointmentRepo) UpdateVersioned(_ context.Context, apt *model.Appointment) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.appointments[apt.ID]
	if !ok {
		return postgres.ErrNoRows
	}
	if stored.Version != apt.Version {
		return postgres.ErrStaleVersion
	}
	apt.Version++
	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

type fakeDirectory struct {
	users map[uuid.UUID]*model.User
}

func newFakeDirectory(users ...*model.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[uuid.UUID]*model.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) FindByRoleAndID(_ context.Context, role model.Role, id uuid.UUID) (*model.User, error) {
	u, ok := d.users[id]
	if !ok || u.Role != role {
		return nil, apperrors.NotFound(string(role))
	}
	return u, nil
}

func (d *fakeDirectory) Summary(_ context.Context, id uuid.UUID) *model.UserSummary {
	u, ok := d.users[id]
	if !ok {
		return nil
	}
	return &model.UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

type fakeOutbox struct {
	events []*model.OutboxEvent
}

func (o *fakeOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	o.events = append(o.events, event)
	return nil
}

func (o *fakeOutbox) GetPending(context.Context, int) ([]*model.OutboxEvent, error) { return nil, nil }
func (o *fakeOutbox) MarkProcessed(context.Context, uuid.UUID) error                { return nil }
func (o *fakeOutbox) MarkRetry(context.Context, uuid.UUID, string) error            { return nil }
func (o *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string) error           { return nil }

func testUser(role model.Role, active bool) *model.User {
	return &model.User{
		Base:      model.Base{ID: uuid.New()},
		Email:     string(role) + "@example.com",
		Role:      role,
		FirstName: "Test",
		LastName:  string(role),
		IsActive:  active,
	}
}

type fixture struct {
	svc     *Service
	repo    *fakeAppointmentRepo
	outbox  *fakeOutbox
	doctor  *model.User
	patient *model.User
	admin   *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doctor := testUser(model.RoleDoctor, true)
	patient := testUser(model.RolePatient, true)
	admin := testUser(model.RoleAdmin, true)

	repo := newFakeAppointmentRepo()
	outbox := &fakeOutbox{}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	return &fixture{
		svc:     NewService(repo, newFakeDirectory(doctor, patient, admin), outbox, log, nil),
		repo:    repo,
		outbox:  outbox,
		doctor:  doctor,
		patient: patient,
		admin:   admin,
	}
}

func principal(u *model.User) model.Principal {
	return model.Principal{UserID: u.ID, Role: u.Role, Email: u.Email}
}

var testDate = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

func (f *fixture) book(t *testing.T, slot string) *model.Appointment {
	t.Helper()
	apt, err := f.svc.Create(context.Background(), f.doctor.ID, f.patient.ID, testDate, slot, "checkup")
	require.NoError(t, err)
	return apt
}

func TestCreate(t *testing.T) {
	t.Run("books a free slot", func(t *testing.T) {
		f := newFixture(t)
		apt, err := f.svc.Create(context.Background(), f.doctor.ID, f.patient.ID, testDate, "10:00", "checkup")
		require.NoError(t, err)

		assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
		assert.Equal(t, 1, apt.Version)
		assert.Equal(t, f.doctor.ID, apt.DoctorID)
		assert.Equal(t, f.patient.ID, apt.PatientID)
		require.NotNil(t, apt.Patient)
		assert.Equal(t, f.patient.ID, apt.Patient.ID)

		require.Len(t, f.outbox.events, 1)
		assert.Equal(t, model.EventAppointmentCreated, f.outbox.events[0].EventType)
	})

	t.Run("rejects an occupied slot", func(t *testing.T) {
		f := newFixture(t)
		f.book(t, "10:00")

		_, err := f.svc.Create(context.Background(), f.doctor.ID, f.patient.ID, testDate, "10:00", "second booking")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrSlotConflict, apperrors.Code(err))
	})

	t.Run("rejects slot lost to a concurrent insert", func(t *testing.T) {
		// The pre-check passes but the store's unique index fires.
		f := newFixture(t)
		f.repo.createErr = postgres.ErrSlotTaken

		_, err := f.svc.Create(context.Background(), f.doctor.ID, f.patient.ID, testDate, "10:00", "checkup")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrSlotConflict, apperrors.Code(err))
	})

	t.Run("allows the same time for a different doctor", func(t *testing.T) {
		f := newFixture(t)
		f.book(t, "10:00")

		other := testUser(model.RoleDoctor, true)
		otherSvc := NewService(f.repo, newFakeDirectory(other, f.patient), f.outbox,
			logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}), nil)
		_, err := otherSvc.Create(context.Background(), other.ID, f.patient.ID, testDate, "10:00", "checkup")
		assert.NoError(t, err)
	})

	t.Run("rejects unknown patient", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(context.Background(), f.doctor.ID, uuid.New(), testDate, "10:00", "checkup")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrNotFound, apperrors.Code(err))
	})

	t.Run("rejects a non-patient target", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(context.Background(), f.doctor.ID, f.admin.ID, testDate, "10:00", "checkup")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrNotFound, apperrors.Code(err))
	})

	t.Run("rejects a deactivated patient", func(t *testing.T) {
		doctor := testUser(model.RoleDoctor, true)
		inactive := testUser(model.RolePatient, false)
		repo := newFakeAppointmentRepo()
		svc := NewService(repo, newFakeDirectory(doctor, inactive), &fakeOutbox{},
			logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}), nil)

		_, err := svc.Create(context.Background(), doctor.ID, inactive.ID, testDate, "10:00", "checkup")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrNotFound, apperrors.Code(err))
	})

	t.Run("requires reason and slot", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Create(context.Background(), f.doctor.ID, f.patient.ID, testDate, "10:00", "")
		assert.Equal(t, apperrors.ErrValidation, apperrors.Code(err))

		_, err = f.svc.Create(context.Background(), f.doctor.ID, f.patient.ID, testDate, "", "checkup")
		assert.Equal(t, apperrors.ErrValidation, apperrors.Code(err))
	})

	t.Run("frees the slot after cancellation", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		_, err := f.svc.Cancel(context.Background(), apt.ID, principal(f.doctor))
		require.NoError(t, err)

		_, err = f.svc.Create(context.Background(), f.doctor.ID, f.patient.ID, testDate, "10:00", "rebooked")
		assert.NoError(t, err)
	})
}

func TestTransition(t *testing.T) {
	status := func(s model.AppointmentStatus) *model.AppointmentStatus { return &s }

	t.Run("completes a scheduled appointment", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		updated, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{Status: status(model.AppointmentStatusCompleted)})
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusCompleted, updated.Status)
		assert.Equal(t, 2, updated.Version)

		require.Len(t, f.outbox.events, 2)
		assert.Equal(t, model.EventAppointmentStatusChanged, f.outbox.events[1].EventType)
	})

	t.Run("rejects transitions out of a terminal state", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		_, err := f.svc.Cancel(context.Background(), apt.ID, principal(f.doctor))
		require.NoError(t, err)

		for _, next := range []model.AppointmentStatus{
			model.AppointmentStatusScheduled,
			model.AppointmentStatusCompleted,
			model.AppointmentStatusNoShow,
		} {
			_, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
				TransitionParams{Status: status(next)})
			require.Error(t, err, "transition to %s", next)
			assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.Code(err))
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		_, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{Status: status(model.AppointmentStatus("archived"))})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.Code(err))
	})

	t.Run("allows notes edits on a completed appointment", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		_, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{Status: status(model.AppointmentStatusCompleted)})
		require.NoError(t, err)

		notes := "prescribed rest"
		final, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{Notes: &notes})
		require.NoError(t, err)
		assert.Equal(t, notes, final.Notes)
		assert.Equal(t, model.AppointmentStatusCompleted, final.Status)
	})

	t.Run("clears follow-up date when follow-up is off", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		followUp := true
		followUpDate := testDate.AddDate(0, 0, 14)
		updated, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{FollowUp: &followUp, FollowUpDate: &followUpDate})
		require.NoError(t, err)
		require.NotNil(t, updated.FollowUpDate)

		off := false
		updated, err = f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{FollowUp: &off})
		require.NoError(t, err)
		assert.Nil(t, updated.FollowUpDate)
	})

	t.Run("ignores follow-up date without follow-up", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		followUpDate := testDate.AddDate(0, 0, 14)
		updated, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{FollowUpDate: &followUpDate})
		require.NoError(t, err)
		assert.Nil(t, updated.FollowUpDate)
	})

	t.Run("forbids unrelated principals", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		outsider := testUser(model.RoleDoctor, true)
		_, err := f.svc.Transition(context.Background(), apt.ID, principal(outsider),
			TransitionParams{Status: status(model.AppointmentStatusCompleted)})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.Code(err))
	})

	t.Run("allows the patient to cancel", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		updated, err := f.svc.Cancel(context.Background(), apt.ID, principal(f.patient))
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusCancelled, updated.Status)
	})

	t.Run("allows an admin on any appointment", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")

		_, err := f.svc.Transition(context.Background(), apt.ID, principal(f.admin),
			TransitionParams{Status: status(model.AppointmentStatusNoShow)})
		assert.NoError(t, err)
	})

	t.Run("surfaces a stale version as a conflict", func(t *testing.T) {
		f := newFixture(t)
		apt := f.book(t, "10:00")
		f.repo.updateErr = postgres.ErrStaleVersion

		_, err := f.svc.Transition(context.Background(), apt.ID, principal(f.doctor),
			TransitionParams{Status: status(model.AppointmentStatusCompleted)})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrVersionConflict, apperrors.Code(err))
	})

	t.Run("missing appointment yields not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Transition(context.Background(), uuid.New(), principal(f.doctor),
			TransitionParams{})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrNotFound, apperrors.Code(err))
	})
}

func TestCancelKeepsRecord(t *testing.T) {
	f := newFixture(t)
	apt := f.book(t, "10:00")

	_, err := f.svc.Cancel(context.Background(), apt.ID, principal(f.patient))
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), apt.ID, principal(f.patient))
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	apt := f.book(t, "10:00")

	t.Run("visible to both parties and admin", func(t *testing.T) {
		for _, p := range []model.Principal{principal(f.patient), principal(f.doctor), principal(f.admin)} {
			got, err := f.svc.Get(context.Background(), apt.ID, p)
			require.NoError(t, err)
			assert.Equal(t, apt.ID, got.ID)
		}
	})

	t.Run("hidden from outsiders", func(t *testing.T) {
		outsider := testUser(model.RolePatient, true)
		_, err := f.svc.Get(context.Background(), apt.ID, principal(outsider))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.Code(err))
	})
}

func TestList(t *testing.T) {
	f := newFixture(t)

	otherPatient := testUser(model.RolePatient, true)
	otherDoctor := testUser(model.RoleDoctor, true)
	dir := newFakeDirectory(f.doctor, f.patient, f.admin, otherPatient, otherDoctor)
	svc := NewService(f.repo, dir, f.outbox,
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}), nil)

	mustCreate := func(doctorID, patientID uuid.UUID, slot string) {
		t.Helper()
		_, err := svc.Create(context.Background(), doctorID, patientID, testDate, slot, "visit")
		require.NoError(t, err)
	}
	mustCreate(f.doctor.ID, f.patient.ID, "09:00")
	mustCreate(f.doctor.ID, otherPatient.ID, "10:00")
	mustCreate(otherDoctor.ID, f.patient.ID, "09:00")

	t.Run("doctor sees only own book even with a foreign filter", func(t *testing.T) {
		got, err := svc.List(context.Background(), principal(f.doctor),
			model.AppointmentFilters{DoctorID: otherDoctor.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, apt := range got {
			assert.Equal(t, f.doctor.ID, apt.DoctorID)
		}
	})

	t.Run("patient sees only own visits", func(t *testing.T) {
		got, err := svc.List(context.Background(), principal(f.patient), model.AppointmentFilters{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, apt := range got {
			assert.Equal(t, f.patient.ID, apt.PatientID)
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		got, err := svc.ListAll(context.Background(), principal(f.admin))
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("admin view is closed to others", func(t *testing.T) {
		_, err := svc.ListAll(context.Background(), principal(f.doctor))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrForbidden, apperrors.Code(err))
	})

	t.Run("results ordered by date then time", func(t *testing.T) {
		got, err := svc.List(context.Background(), principal(f.doctor), model.AppointmentFilters{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "09:00", got[0].Time)
		assert.Equal(t, "10:00", got[1].Time)
	})
}
