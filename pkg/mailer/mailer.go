package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	"sync"
	texttmpl "text/template"

	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// Template names shipped with the binary.
const (
	TemplateWelcome            = "welcome"
	TemplatePasswordReset      = "password_reset"
	TemplateVacationEnrollment = "vacation_enrollment"
	TemplatePreEnrollment      = "pre_enrollment_status"
)

//go:embed templates/*
var templateFS embed.FS

// Message is an outbound email. Either Template or Text must be set.
type Message struct {
	To       []mail.Address
	Subject  string
	Template string
	Data     interface{}

	Text string
	HTML string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

type templateData struct {
	SchoolName  string
	FrontendURL string
	Data        interface{}
}

type templateSet struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

var (
	parsed    map[string]templateSet
	parseErr  error
	parseOnce sync.Once
)

func loadTemplates() {
	parsed = make(map[string]templateSet)
	for _, name := range []string{TemplateWelcome, TemplatePasswordReset, TemplateVacationEnrollment, TemplatePreEnrollment} {
		txt, err := texttmpl.ParseFS(templateFS, "templates/_base.txt", "templates/"+name+".txt")
		if err != nil {
			parseErr = fmt.Errorf("parse %s.txt: %w", name, err)
			return
		}
		html, err := htmltmpl.ParseFS(templateFS, "templates/_base.gohtml", "templates/"+name+".gohtml")
		if err != nil {
			parseErr = fmt.Errorf("parse %s.gohtml: %w", name, err)
			return
		}
		parsed[name] = templateSet{text: txt.Option("missingkey=error"), html: html}
	}
}

// Render fills Text and HTML from the message template.
func (m *Message) Render(school config.SchoolConfig, frontendURL string) error {
	if m.Template == "" {
		if m.Text == "" && m.HTML == "" {
			return fmt.Errorf("message has no content")
		}
		return nil
	}

	parseOnce.Do(loadTemplates)
	if parseErr != nil {
		return parseErr
	}
	set, ok := parsed[m.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", m.Template)
	}

	data := templateData{SchoolName: school.Name, FrontendURL: strings.TrimRight(frontendURL, "/"), Data: m.Data}

	var text bytes.Buffer
	if err := set.text.ExecuteTemplate(&text, "base", data); err != nil {
		return fmt.Errorf("render %s text: %w", m.Template, err)
	}
	var html bytes.Buffer
	if err := set.html.ExecuteTemplate(&html, "base", data); err != nil {
		return fmt.Errorf("render %s html: %w", m.Template, err)
	}
	m.Text, m.HTML = text.String(), html.String()
	return nil
}

// New builds the mailer selected by MAIL_DRIVER.
func New(cfg config.Config, logger *zap.Logger) (Mailer, error) {
	switch cfg.Mail.Driver {
	case "", config.MailDriverLog:
		return NewLogMailer(cfg, logger), nil
	case config.MailDriverSendGrid:
		if cfg.Mail.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid mail driver")
		}
		return NewSendGrid(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}
