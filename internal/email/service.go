package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/contact"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
)

// headerSafe keeps user input from starting a new mail header
var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

// Service notifies an administrator about new contact messages
type Service struct {
	sender Sender
	to     string
	logger *logging.Logger
}

func NewService(sender Sender, to string, logger *logging.Logger) *Service {
	return &Service{
		sender: sender,
		to:     to,
		logger: logger,
	}
}

// NewServiceFromConfig picks SendGrid when an API key is set, otherwise SMTP.
// It returns nil when there is no recipient or no transport configured.
func NewServiceFromConfig(cfg config.EmailConfig, logger *logging.Logger) *Service {
	if cfg.ContactNotify == "" || cfg.From == "" {
		return nil
	}

	switch {
	case cfg.SendGridAPIKey != "":
		return NewService(NewSendGridSender(cfg.SendGridAPIKey, cfg.From), cfg.ContactNotify, logger)
	case cfg.SMTPHost != "":
		return NewService(NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From), cfg.ContactNotify, logger)
	default:
		return nil
	}
}

// NotifyContact emails the administrator a copy of the message.
// This method is designed to be called in a goroutine.
func (s *Service) NotifyContact(ctx context.Context, m contact.Message) error {
	subject := fmt.Sprintf("New contact message from %s", headerSafe.Replace(m.Name))

	htmlBody, err := renderContactTemplate(m)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	textBody := fmt.Sprintf("From: %s <%s>\nReceived: %s\n\n%s\n", m.Name, m.Email, m.CreatedAt.Format(time.RFC1123), m.Message)

	if err := s.sender.Send(ctx, s.to, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("contact notification sent", "message_id", m.ID)
	return nil
}

var contactTemplate = template.Must(template.New("contact").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #0F766E;
            color: white;
            padding: 20px;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
            white-space: pre-wrap;
        }
    </style>
</head>
<body>
    <div class="header">
        <h2>New contact message</h2>
        <p>{{.Name}} &lt;{{.Email}}&gt; &middot; {{.Received}}</p>
    </div>
    <div class="content">{{.Message}}</div>
</body>
</html>
`))

func renderContactTemplate(m contact.Message) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Name     string
		Email    string
		Message  string
		Received string
	}{
		Name:     m.Name,
		Email:    m.Email,
		Message:  m.Message,
		Received: m.CreatedAt.Format(time.RFC1123),
	}

	if err := contactTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
