package dispatcher

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/smallbiznis/tradeway/internal/notification/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailDispatcher renders the notification type's template and sends it over SMTP.
type EmailDispatcher struct {
	cfg  EmailConfig
	send SendFunc
}

func NewEmailDispatcher(cfg EmailConfig, send SendFunc) *EmailDispatcher {
	if send == nil {
		send = smtp.SendMail
	}
	return &EmailDispatcher{cfg: cfg, send: send}
}

func (d *EmailDispatcher) Name() string { return "email" }

func (d *EmailDispatcher) Dispatch(_ context.Context, n domain.Notification) error {
	if !n.HasChannel(domain.ChannelEmail) || len(n.Recipients) == 0 {
		return nil
	}

	name := templateName(n.Type)
	if templates.Lookup(name) == nil {
		return fmt.Errorf("no email template for %s", n.Type)
	}
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, n.Data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	subject := n.Subject
	if subject == "" {
		subject = defaultSubject(n.Type)
	}

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	if err := d.send(addr, auth, d.cfg.From, n.Recipients, buildMessage(d.cfg.From, n.Recipients, subject, body.String())); err != nil {
		return errors.Join(errors.New("smtp send failed"), err)
	}
	return nil
}

func templateName(t domain.Type) string {
	return strings.ReplaceAll(string(t), ".", "_") + ".html"
}

func defaultSubject(t domain.Type) string {
	switch t {
	case domain.TypeOrderCommitted:
		return "Your order has been placed"
	case domain.TypeOrderMessagePosted:
		return "New message on your order"
	default:
		return "Notification"
	}
}

func buildMessage(from string, to []string, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
