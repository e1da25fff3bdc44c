package mailer

import (
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

func testConfig() config.Config {
	return config.Config{
		School: config.SchoolConfig{Name: "U.E. San Andrés"},
		Mail:   config.MailConfig{FrontendURL: "https://colegio.example/"},
	}
}

func TestLogMailerRendersWelcome(t *testing.T) {
	m := NewLogMailer(testConfig(), nil)

	err := m.Send(context.Background(), &Message{
		To:       []mail.Address{{Name: "Ana", Address: "ana@example.com"}},
		Subject:  "Bienvenido",
		Template: TemplateWelcome,
		Data: map[string]string{
			"FullName": "Ana Quispe",
			"Username": "anaquispe",
			"Password": "7654321",
		},
	})
	require.NoError(t, err)

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "U.E. San Andrés")
	assert.Contains(t, sent[0].Text, "Usuario: anaquispe")
	assert.Contains(t, sent[0].Text, "https://colegio.example/login")
	assert.Contains(t, sent[0].HTML, "<strong>anaquispe</strong>")
}

func TestRenderEscapesHTML(t *testing.T) {
	msg := &Message{
		Template: TemplatePreEnrollment,
		Data: map[string]string{
			"GuardianName": "<script>",
			"Code":         "PRE-2025-0001",
			"StudentName":  "Luis",
			"Status":       "rechazada",
			"Reason":       "cupo",
		},
	}
	require.NoError(t, msg.Render(config.SchoolConfig{Name: "UE"}, ""))
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "Motivo: cupo")
}

func TestRenderUnknownTemplate(t *testing.T) {
	msg := &Message{Template: "nope"}
	assert.Error(t, msg.Render(config.SchoolConfig{}, ""))
}

func TestRenderPlainMessageNeedsContent(t *testing.T) {
	assert.Error(t, (&Message{}).Render(config.SchoolConfig{}, ""))
	assert.NoError(t, (&Message{Text: "hola"}).Render(config.SchoolConfig{}, ""))
}

func TestNewSelectsDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.Driver = config.MailDriverSendGrid
	_, err := New(cfg, nil)
	assert.Error(t, err)

	cfg.Mail.SendGridAPIKey = "SG.key"
	m, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &SendGrid{}, m)

	cfg.Mail.Driver = "pigeon"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestSendGridBuildsPersonalizedMail(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.FromName = "Secretaría"
	cfg.Mail.FromAddress = "secretaria@colegio.example"
	sg := NewSendGrid(cfg)

	msg := &Message{
		To:      []mail.Address{{Name: "Ana", Address: "ana@example.com"}},
		Subject: "Aviso",
		Text:    "hola",
		HTML:    "<p>hola</p>",
	}
	body := sg.prepare(msg)
	require.Len(t, body.Personalizations, 1)
	assert.Equal(t, "Aviso", body.Personalizations[0].Subject)
	assert.Equal(t, "ana@example.com", body.Personalizations[0].To[0].Address)
	assert.Equal(t, "secretaria@colegio.example", body.From.Address)
	require.Len(t, body.Content, 2)
	assert.Equal(t, "text/plain", body.Content[0].Type)
}

func TestSendGridStopsOnCancelledContext(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.SendGridAPIKey = "SG.key"
	sg := NewSendGrid(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sg.Send(ctx, &Message{To: []mail.Address{{Address: "ana@example.com"}}, Text: "hola"})
	assert.ErrorIs(t, err, context.Canceled)
}
