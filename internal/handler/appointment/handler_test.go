package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/service/scheduler"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
	"github.com/clinicore/clinic-api/pkg/logger"
)

type memAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
}

func (r *memAppointmentRepo) CreateScheduled(_ context.Context, apt *model.Appointment) error {
	for _, existing := range r.appointments {
		if existing.DoctorID == apt.DoctorID && existing.Date.Equal(apt.Date) &&
			existing.Time == apt.Time && existing.Status == model.AppointmentStatusScheduled {
			return postgres.ErrSlotTaken
		}
	}
	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

func (r *memAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := r.appointments[id]
	if !ok {
		return nil, postgres.ErrNoRows
	}
	cp := *apt
	return &cp, nil
}

func (r *memAppointmentRepo) SlotTaken(_ context.Context, doctorID uuid.UUID, date time.Time, slot string) (bool, error) {
	for _, apt := range r.appointments {
		if apt.DoctorID == doctorID && apt.Date.Equal(date) && apt.Time == slot &&
			apt.Status == model.AppointmentStatusScheduled {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAppointmentRepo) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if filters.DoctorID != uuid.Nil && apt.DoctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && apt.PatientID != filters.PatientID {
			continue
		}
		cp := *apt
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAppointmentRepo) UpdateVersioned(_ context.Context, apt *model.Appointment) error {
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

type memDirectory struct {
	users map[uuid.UUID]*model.User
}

func (d *memDirectory) FindByRoleAndID(_ context.Context, role model.Role, id uuid.UUID) (*model.User, error) {
	u, ok := d.users[id]
	if !ok || u.Role != role {
		return nil, apperrors.NotFound(string(role))
	}
	return u, nil
}

func (d *memDirectory) Summary(_ context.Context, id uuid.UUID) *model.UserSummary {
	u, ok := d.users[id]
	if !ok {
		return nil
	}
	return &model.UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

type memOutbox struct{}

func (memOutbox) Create(context.Context, *model.OutboxEvent) error { return nil }
func (memOutbox) GetPending(context.Context, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}
func (memOutbox) MarkProcessed(context.Context, uuid.UUID) error      { return nil }
func (memOutbox) MarkRetry(context.Context, uuid.UUID, string) error  { return nil }
func (memOutbox) MarkFailed(context.Context, uuid.UUID, string) error { return nil }

type env struct {
	router  *gin.Engine
	repo    *memAppointmentRepo
	doctor  *model.User
	patient *model.User
	admin   *model.User

	// principal is mutable so one router can serve requests as different
	// callers.
	principal *model.Principal
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	doctor := &model.User{Base: model.Base{ID: uuid.New()}, Role: model.RoleDoctor, FirstName: "Sam", LastName: "Lee", Email: "doc@example.com", IsActive: true}
	patient := &model.User{Base: model.Base{ID: uuid.New()}, Role: model.RolePatient, FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", IsActive: true}
	admin := &model.User{Base: model.Base{ID: uuid.New()}, Role: model.RoleAdmin, FirstName: "Ada", LastName: "Min", Email: "admin@example.com", IsActive: true}

	repo := &memAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
	dir := &memDirectory{users: map[uuid.UUID]*model.User{
		doctor.ID: doctor, patient.ID: patient, admin.ID: admin,
	}}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := scheduler.NewService(repo, dir, memOutbox{}, log, nil)

	e := &env{repo: repo, doctor: doctor, patient: patient, admin: admin, principal: &model.Principal{}}

	h := NewHandler(svc)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, *e.principal)
		c.Next()
	})
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/admin", h.ListAllAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.CancelAppointment)
	e.router = r

	return e
}

func (e *env) as(u *model.User) *env {
	*e.principal = model.Principal{UserID: u.ID, Role: u.Role, Email: u.Email}
	return e
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func createBody(patientID uuid.UUID) gin.H {
	return gin.H{
		"patient_id": patientID,
		"date":       "2026-09-14",
		"time":       "10:00",
		"reason":     "checkup",
	}
}

func (e *env) mustBook(t *testing.T) uuid.UUID {
	t.Helper()
	w := e.as(e.doctor).do(t, http.MethodPost, "/api/v1/appointments", createBody(e.patient.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode(t, w)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var apt model.Appointment
	require.NoError(t, json.Unmarshal(data, &apt))
	return apt.ID
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	t.Run("returns 201 with the booking", func(t *testing.T) {
		e := newEnv(t)
		w := e.as(e.doctor).do(t, http.MethodPost, "/api/v1/appointments", createBody(e.patient.ID))

		require.Equal(t, http.StatusCreated, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})

	t.Run("returns 409 for a booked slot", func(t *testing.T) {
		e := newEnv(t)
		e.mustBook(t)

		w := e.as(e.doctor).do(t, http.MethodPost, "/api/v1/appointments", createBody(e.patient.ID))
		require.Equal(t, http.StatusConflict, w.Code)
		resp := decode(t, w)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, http.StatusConflict, resp.Error.Code)
	})

	t.Run("returns 404 for an unknown patient", func(t *testing.T) {
		e := newEnv(t)
		w := e.as(e.doctor).do(t, http.MethodPost, "/api/v1/appointments", createBody(uuid.New()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("returns 400 for malformed input", func(t *testing.T) {
		e := newEnv(t)

		w := e.as(e.doctor).do(t, http.MethodPost, "/api/v1/appointments", gin.H{
			"patient_id": e.patient.ID, "date": "14-09-2026", "time": "10:00", "reason": "checkup",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = e.as(e.doctor).do(t, http.MethodPost, "/api/v1/appointments", gin.H{
			"patient_id": e.patient.ID, "date": "2026-09-14", "time": "25:99", "reason": "checkup",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = e.as(e.doctor).do(t, http.MethodPost, "/api/v1/appointments", gin.H{
			"patient_id": e.patient.ID, "date": "2026-09-14", "time": "10:00",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateAppointmentEndpoint(t *testing.T) {
	t.Run("transitions status", func(t *testing.T) {
		e := newEnv(t)
		id := e.mustBook(t)

		w := e.as(e.doctor).do(t, http.MethodPut, "/api/v1/appointments/"+id.String(),
			gin.H{"status": "completed"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("returns 400 for an illegal transition", func(t *testing.T) {
		e := newEnv(t)
		id := e.mustBook(t)

		w := e.as(e.doctor).do(t, http.MethodPut, "/api/v1/appointments/"+id.String(),
			gin.H{"status": "cancelled"})
		require.Equal(t, http.StatusOK, w.Code)

		w = e.as(e.doctor).do(t, http.MethodPut, "/api/v1/appointments/"+id.String(),
			gin.H{"status": "completed"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 403 for an unrelated caller", func(t *testing.T) {
		e := newEnv(t)
		id := e.mustBook(t)

		outsider := &model.User{Base: model.Base{ID: uuid.New()}, Role: model.RolePatient, Email: "other@example.com"}
		w := e.as(outsider).do(t, http.MethodPut, "/api/v1/appointments/"+id.String(),
			gin.H{"status": "cancelled"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("returns 404 for a missing id", func(t *testing.T) {
		e := newEnv(t)
		w := e.as(e.doctor).do(t, http.MethodPut, "/api/v1/appointments/"+uuid.NewString(),
			gin.H{"notes": "hello"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("returns 400 for a bad id", func(t *testing.T) {
		e := newEnv(t)
		w := e.as(e.doctor).do(t, http.MethodPut, "/api/v1/appointments/not-a-uuid",
			gin.H{"notes": "hello"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCancelAppointmentEndpoint(t *testing.T) {
	e := newEnv(t)
	id := e.mustBook(t)

	w := e.as(e.patient).do(t, http.MethodDelete, "/api/v1/appointments/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Cancellation is soft; the record remains readable.
	w = e.as(e.patient).do(t, http.MethodGet, "/api/v1/appointments/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)
}

func TestListAppointmentsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.mustBook(t)

	t.Run("doctor scoped to own book", func(t *testing.T) {
		w := e.as(e.doctor).do(t, http.MethodGet, "/api/v1/appointments?doctor_id="+uuid.NewString(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
	})

	t.Run("unrelated patient sees nothing", func(t *testing.T) {
		stranger := &model.User{Base: model.Base{ID: uuid.New()}, Role: model.RolePatient, Email: "s@example.com"}
		w := e.as(stranger).do(t, http.MethodGet, "/api/v1/appointments", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":0`)
	})

	t.Run("rejects a bad status filter", func(t *testing.T) {
		w := e.as(e.doctor).do(t, http.MethodGet, "/api/v1/appointments?status=archived", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("admin list returns everything", func(t *testing.T) {
		w := e.as(e.admin).do(t, http.MethodGet, "/api/v1/appointments/admin", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
	})

	t.Run("admin list closed to doctors", func(t *testing.T) {
		w := e.as(e.doctor).do(t, http.MethodGet, "/api/v1/appointments/admin", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
