package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/clinicore/clinic-api/internal/config"
)

type Service interface {
	SendWelcome(to, name string) error
	SendPasswordReset(to, token string) error
	SendAppointmentConfirmation(to, doctorName, date, slot string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendWelcome(to, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour clinic account has been created.", name)
	return s.send(to, "Welcome to the clinic", body)
}

func (s *smtpService) SendPasswordReset(to, token string) error {
	body := fmt.Sprintf("Use this token to reset your password: %s\n\nThe token expires in one hour.", token)
	return s.send(to, "Password reset", body)
}

func (s *smtpService) SendAppointmentConfirmation(to, doctorName, date, slot string) error {
	body := fmt.Sprintf("Your appointment with %s on %s at %s is confirmed.", doctorName, date, slot)
	return s.send(to, "Appointment confirmed", body)
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
