package services

import (
	"fmt"
	"html"
	"log/slog"

	"gopkg.in/gomail.v2"

	"raceday-api/config"
	"raceday-api/models"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService sends registration confirmations over SMTP.
type EmailService struct {
	config *config.Config
	dialer mailSender
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		config: cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

func (es *EmailService) SendRegistrationConfirmation(reg *models.Registration, event *models.Event) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", es.config.FromEmail, es.config.FromName)
	m.SetAddressHeader("To", reg.Email, reg.Name+" "+reg.Surname)
	m.SetHeader("Subject", fmt.Sprintf("%s - start number %d", event.EventName, reg.StartNumber))

	when := event.EventTime.UTC().Format("Monday, 2 January 2006 15:04 MST")
	start := ""
	if event.EventStart != nil {
		start = fmt.Sprintf("<p>Start: %s</p>", html.EscapeString(*event.EventStart))
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Registration confirmed</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .number { background: #e9ecef; padding: 20px; text-align: center; border-radius: 8px; margin: 20px 0; }
        .number span { font-size: 40px; font-weight: bold; color: #d9480f; }
    </style>
</head>
<body>
    <div class="container">
        <h2>Hello %s!</h2>
        <p>You are registered for <strong>%s</strong> on %s.</p>
        %s
        <div class="number">Your start number<br><span>%d</span></div>
        <p>See you at the start line.</p>
    </div>
</body>
</html>`,
		html.EscapeString(reg.Name),
		html.EscapeString(event.EventName),
		when,
		start,
		reg.StartNumber,
	)

	textBody := fmt.Sprintf("Hello %s!\n\nYou are registered for %s on %s.\nYour start number: %d\n",
		reg.Name, event.EventName, when, reg.StartNumber)

	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	if err := es.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}

	slog.Info("confirmation email sent", "registration_id", reg.ID, "event_id", event.ID)
	return nil
}
