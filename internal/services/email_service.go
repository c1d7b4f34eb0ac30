package services

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"hospitalrecords/internal/models"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService sends one-time codes by SMTP.
type EmailService struct {
	sender mailSender
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) *EmailService {
	return &EmailService{
		sender: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

func (s *EmailService) Channel() string { return "email" }

func (s *EmailService) Address(a *models.Account) string { return a.Email }

func (s *EmailService) SendCode(_ context.Context, address, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", address)
	m.SetHeader("Subject", "Your sign-in verification code")

	body := fmt.Sprintf(`
		<h3>Verification code</h3>
		<p>%s</p>
		<p>If you did not try to sign in or reset your password, contact the hospital IT desk.</p>
	`, codeMessage(fmt.Sprintf("<strong>%s</strong>", code)))
	m.SetBody("text/html", body)
	m.AddAlternative("text/plain", codeMessage(code))

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: email: %v", ErrNotificationDelivery, err)
	}
	return nil
}
