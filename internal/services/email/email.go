package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/softwarepar/backend/internal/config"
	"github.com/softwarepar/backend/internal/models"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer sends the transactional emails of the platform
type Mailer interface {
	SendWelcome(ctx context.Context, to, fullName string, role models.Role) error
	SendContactNotification(ctx context.Context, msg ContactMessage) error
	SendCommissionNotification(ctx context.Context, to, fullName string, amount models.Money, projectName string) error
}

// ContactMessage is a submission of the public contact form
type ContactMessage struct {
	FullName    string
	Email       string
	Company     string
	ServiceType string
	Budget      string
	Message     string
}

// Sender delivers composed messages
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService handles sending emails over SMTP
type EmailService struct {
	sender      Sender
	from        string
	adminEmail  string
	frontendURL string
	logger      *zap.Logger
}

// NewEmailService creates an SMTP email service. Without an SMTP host emails are only logged.
func NewEmailService(cfg config.SMTPConfig, frontendURL string, logger *zap.Logger) *EmailService {
	var sender Sender
	if cfg.Host != "" {
		sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return NewEmailServiceWithSender(sender, cfg.From, cfg.AdminEmail, frontendURL, logger)
}

// NewEmailServiceWithSender builds the service around an explicit sender
func NewEmailServiceWithSender(sender Sender, from, adminEmail, frontendURL string, logger *zap.Logger) *EmailService {
	return &EmailService{
		sender:      sender,
		from:        from,
		adminEmail:  adminEmail,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>Welcome to SoftwarePar, {{.FullName}}!</h2>
	<p>Your {{.Role}} account is ready.</p>
	{{if eq .Role "partner"}}<p>Share your referral code from the partner dashboard to start earning commissions.</p>{{end}}
	<p><a href="{{.DashboardURL}}">Go to your dashboard</a></p>
</div>`))

var contactTemplate = template.Must(template.New("contact").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>New contact request</h2>
	<p><strong>Name:</strong> {{.FullName}}</p>
	<p><strong>Email:</strong> {{.Email}}</p>
	{{if .Company}}<p><strong>Company:</strong> {{.Company}}</p>{{end}}
	{{if .ServiceType}}<p><strong>Service:</strong> {{.ServiceType}}</p>{{end}}
	{{if .Budget}}<p><strong>Budget:</strong> {{.Budget}}</p>{{end}}
	<p><strong>Message:</strong></p>
	<p>{{.Message}}</p>
</div>`))

var commissionTemplate = template.Must(template.New("commission").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>Commission paid</h2>
	<p>Hi {{.FullName}},</p>
	<p>A commission of <strong>${{.Amount}}</strong>{{if .ProjectName}} for the project <em>{{.ProjectName}}</em>{{end}} has been credited to your partner account.</p>
	<p><a href="{{.DashboardURL}}">View your earnings</a></p>
</div>`))

func (s *EmailService) SendWelcome(ctx context.Context, to, fullName string, role models.Role) error {
	body, err := render(welcomeTemplate, map[string]interface{}{
		"FullName":     fullName,
		"Role":         string(role),
		"DashboardURL": s.frontendURL + "/dashboard",
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, "", "Welcome to SoftwarePar", body)
}

func (s *EmailService) SendContactNotification(ctx context.Context, msg ContactMessage) error {
	body, err := render(contactTemplate, msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("New contact from %s", msg.FullName)
	return s.send(ctx, s.adminEmail, msg.Email, subject, body)
}

func (s *EmailService) SendCommissionNotification(ctx context.Context, to, fullName string, amount models.Money, projectName string) error {
	body, err := render(commissionTemplate, map[string]interface{}{
		"FullName":     fullName,
		"Amount":       amount.String(),
		"ProjectName":  projectName,
		"DashboardURL": s.frontendURL + "/partner",
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, "", "Your commission has been paid", body)
}

func (s *EmailService) send(ctx context.Context, to, replyTo, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.sender == nil {
		s.logger.Info("smtp disabled, email not sent", zap.String("to", to), zap.String("subject", subject))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	if replyTo != "" {
		m.SetHeader("Reply-To", replyTo)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email to %s: %w", to, err)
	}
	return nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error rendering %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
