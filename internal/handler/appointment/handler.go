package appointment

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/scheduler"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service *scheduler.Service
}

func NewHandler(service *scheduler.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	appointments := r.Group("/appointments")
	appointments.Use(auth.Authenticate())
	{
		appointments.POST("", auth.RequireRoles(model.RoleDoctor), h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/admin", auth.RequireRoles(model.RoleAdmin), h.ListAllAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.CancelAppointment)
	}
}

// CreateAppointment books a slot. Doctor-only route; the doctor is the
// creator and owner, so the doctor id comes from the principal, not the
// body.
func (h *Handler) CreateAppointment(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("date must be YYYY-MM-DD"))
		return
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("time must be HH:MM"))
		return
	}

	apt, err := h.service.Create(c.Request.Context(), principal.UserID, req.PatientID, date, req.Time, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid appointment ID"))
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id, principal)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

// ListAppointments is the auto-scoped list: doctors and patients only ever
// see their own records regardless of the filters they send.
func (h *Handler) ListAppointments(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	filters, err := parseFilters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appointments, err := h.service.List(c.Request.Context(), principal, filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithList(c, appointments, len(appointments))
}

func (h *Handler) ListAllAppointments(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	appointments, err := h.service.ListAll(c.Request.Context(), principal)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithList(c, appointments, len(appointments))
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid appointment ID"))
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	params := scheduler.TransitionParams{
		Status:   req.Status,
		Notes:    req.Notes,
		FollowUp: req.FollowUp,
	}
	if req.FollowUpDate != nil {
		followUpDate, err := time.Parse(dateLayout, *req.FollowUpDate)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation("follow_up_date must be YYYY-MM-DD"))
			return
		}
		params.FollowUpDate = &followUpDate
	}

	apt, err := h.service.Transition(c.Request.Context(), id, principal, params)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

// CancelAppointment soft-cancels; the record stays for audit history.
func (h *Handler) CancelAppointment(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid appointment ID"))
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), id, principal)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func parseFilters(c *gin.Context) (model.AppointmentFilters, error) {
	var filters model.AppointmentFilters

	if status := c.Query("status"); status != "" {
		s := model.AppointmentStatus(status)
		if !s.Valid() {
			return filters, apperrors.Validation("invalid status filter")
		}
		filters.Status = s
	}

	if date := c.Query("date"); date != "" {
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return filters, apperrors.Validation("date filter must be YYYY-MM-DD")
		}
		filters.Date = &d
	}

	if id := c.Query("doctor_id"); id != "" {
		doctorID, err := uuid.Parse(id)
		if err != nil {
			return filters, apperrors.Validation("invalid doctor ID")
		}
		filters.DoctorID = doctorID
	}

	if id := c.Query("patient_id"); id != "" {
		patientID, err := uuid.Parse(id)
		if err != nil {
			return filters, apperrors.Validation("invalid patient ID")
		}
		filters.PatientID = patientID
	}

	return filters, nil
}
