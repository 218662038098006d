package notification

import (
	"context"

	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/directory"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// Emailer decorates the notification service with confirmation emails for
// new bookings. Email failures are logged only; the in-app notification is
// the delivery that matters.
type Emailer struct {
	inner    *Service
	dir      *directory.Service
	emailSvc email.Service
	logger   *logger.Logger
}

func NewEmailer(inner *Service, dir *directory.Service, emailSvc email.Service, log *logger.Logger) *Emailer {
	return &Emailer{
		inner:    inner,
		dir:      dir,
		emailSvc: emailSvc,
		logger:   log,
	}
}

func (e *Emailer) NotifyUserRegistered(ctx context.Context, evt *model.UserEvent) error {
	// The welcome email is sent at registration time; only the in-app
	// notification is materialized here.
	return e.inner.NotifyUserRegistered(ctx, evt)
}

func (e *Emailer) NotifyAppointmentEvent(ctx context.Context, eventType string, evt *model.AppointmentEvent) error {
	if err := e.inner.NotifyAppointmentEvent(ctx, eventType, evt); err != nil {
		return err
	}

	if eventType != model.EventAppointmentCreated {
		return nil
	}

	patient, err := e.dir.FindByID(ctx, evt.PatientID)
	if err != nil {
		e.logger.Error(err, "failed to resolve patient for confirmation email",
			"patient_id", evt.PatientID.String())
		return nil
	}

	doctorName := "your doctor"
	if doctor := e.dir.Summary(ctx, evt.DoctorID); doctor != nil {
		doctorName = "Dr. " + doctor.FirstName + " " + doctor.LastName
	}

	if err := e.emailSvc.SendAppointmentConfirmation(
		patient.Email, doctorName, evt.Date.Format("2006-01-02"), evt.Time,
	); err != nil {
		e.logger.Error(err, "failed to send confirmation email", "email", patient.Email)
	}
	return nil
}
