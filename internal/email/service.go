package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Service sends appointment notifications to the account owner. Senders are
// best-effort collaborators: a failure is logged by the caller, never
// surfaced to the scheduling request.
type Service interface {
	SendBookingConfirmation(ctx context.Context, to, patientName, date, timeRange string) error
	SendCancellationNotice(ctx context.Context, to, patientName, date, timeRange string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendBookingConfirmation(_ context.Context, to, patientName, date, timeRange string) error {
	subject := fmt.Sprintf("Appointment booked for %s", patientName)
	body := fmt.Sprintf("An appointment for %s was booked on %s, %s.", patientName, date, timeRange)
	return s.send(to, subject, body)
}

func (s *smtpService) SendCancellationNotice(_ context.Context, to, patientName, date, timeRange string) error {
	subject := fmt.Sprintf("Appointment cancelled for %s", patientName)
	body := fmt.Sprintf("The appointment for %s on %s, %s was cancelled.", patientName, date, timeRange)
	return s.send(to, subject, body)
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
