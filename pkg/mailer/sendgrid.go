package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGrid delivers mail through the SendGrid v3 API.
type SendGrid struct {
	key         string
	from        *sgmail.Email
	school      config.SchoolConfig
	frontendURL string
}

var _ Mailer = (*SendGrid)(nil)

// NewSendGrid builds a SendGrid mailer.
func NewSendGrid(cfg config.Config) *SendGrid {
	return &SendGrid{
		key:         cfg.Mail.SendGridAPIKey,
		from:        sgmail.NewEmail(cfg.Mail.FromName, cfg.Mail.FromAddress),
		school:      cfg.School,
		frontendURL: cfg.Mail.FrontendURL,
	}
}

// Send renders and posts the message. Non-2xx responses are returned as errors
// so the job queue can retry them.
func (s *SendGrid) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := msg.Render(s.school, s.frontendURL); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequest(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendGrid) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
