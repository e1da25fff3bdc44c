package mailer

import (
	"context"
	"net/mail"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// LogMailer renders messages and writes them to the logger instead of
// delivering them. Sent messages are kept for inspection.
type LogMailer struct {
	logger      *zap.Logger
	school      config.SchoolConfig
	frontendURL string

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer builds the development mailer.
func NewLogMailer(cfg config.Config, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger, school: cfg.School, frontendURL: cfg.Mail.FrontendURL}
}

// Send renders msg and logs it.
func (l *LogMailer) Send(_ context.Context, msg *Message) error {
	if err := msg.Render(l.school, l.frontendURL); err != nil {
		return err
	}

	l.mu.Lock()
	l.sent = append(l.sent, *msg)
	l.mu.Unlock()

	l.logger.Info("email",
		zap.Strings("to", addresses(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

// Sent returns a copy of every message handled so far.
func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.sent))
	copy(out, l.sent)
	return out
}

func addresses(list []mail.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.String())
	}
	return out
}
