package services

import (
	"fmt"
	"html"
	"net/smtp"

	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/models"
	"github.com/dimitrije/toolshare/internal/outbox"
)

type EmailService struct {
	cfg     config.SMTPConfig
	baseURL string
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(cfg config.SMTPConfig, baseURL string) *EmailService {
	return &EmailService{cfg: cfg, baseURL: baseURL, send: smtp.SendMail}
}

func (s *EmailService) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != "" && s.cfg.From != ""
}

func (s *EmailService) Send(to, subject, body string) error {
	if !s.IsConfigured() {
		return nil
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.cfg.From, to, subject, body)

	return s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg))
}

func (s *EmailService) InviteURL(token string) string {
	return fmt.Sprintf("%s/invite/%s", s.baseURL, token)
}

func (s *EmailService) SendToolInvite(n outbox.InviteNotification) error {
	access := "view"
	if n.Level == models.LevelEdit {
		access = "edit"
	}

	subject := fmt.Sprintf("%s invited you to %s in %s", n.InviterName, n.ToolName, n.ProjectName)
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>You're invited</h2>
			<p>Hi,</p>
			<p><strong>%s</strong> has invited you to %s <strong>%s</strong> in the project <strong>%s</strong>.</p>
			<p><a href="%s">Click here to view and accept this invitation</a></p>
			<p>This invitation expires on %s.</p>
		</body>
		</html>
	`,
		html.EscapeString(n.InviterName),
		access,
		html.EscapeString(n.ToolName),
		html.EscapeString(n.ProjectName),
		s.InviteURL(n.Token),
		n.ExpiresAt.UTC().Format("January 2, 2006"),
	)

	return s.Send(n.Email, subject, body)
}
