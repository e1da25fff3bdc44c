package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/jobs"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
)

// JobTypeEmail identifies mail jobs on the notification queue.
const JobTypeEmail = "email"

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// notifier queues outbound mail. Delivery failures never reach the caller.
type notifier interface {
	Notify(ctx context.Context, msg *mailer.Message)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *mailer.Message) {}

// NotificationService renders and delivers email on a background queue.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   jobQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs a NotificationService. Attach a queue
// with UseQueue before serving traffic; without one messages are dropped.
func NewNotificationService(m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: m, metrics: metrics, logger: logger}
}

// UseQueue sets the queue Notify pushes to.
func (s *NotificationService) UseQueue(q jobQueue) {
	s.queue = q
}

// Notify enqueues msg without blocking.
func (s *NotificationService) Notify(_ context.Context, msg *mailer.Message) {
	if msg == nil || len(msg.To) == 0 {
		return
	}
	if s.queue == nil {
		s.logger.Warn("notification queue not configured, dropping email", zap.String("template", msg.Template))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: JobTypeEmail, Payload: msg}); err != nil {
		s.metrics.ObserveMail(msg.Template, "dropped")
		s.logger.Warn("failed to enqueue email", zap.String("template", msg.Template), zap.Error(err))
	}
}

// Handle is the queue handler. Returned errors make the queue retry.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(*mailer.Message)
	if !ok {
		s.logger.Error("unexpected job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.ObserveMail(msg.Template, models.OutcomeFailure)
		return fmt.Errorf("send %s email: %w", msg.Template, err)
	}
	s.metrics.ObserveMail(msg.Template, models.OutcomeSuccess)
	return nil
}

func recipient(name, address string) []mail.Address {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}
	return []mail.Address{{Name: name, Address: address}}
}

func welcomeMessage(fullName, email string, creds *models.Credentials) *mailer.Message {
	if creds == nil {
		return nil
	}
	return &mailer.Message{
		To:       recipient(fullName, email),
		Subject:  "Su cuenta de acceso",
		Template: mailer.TemplateWelcome,
		Data: map[string]string{
			"FullName": fullName,
			"Username": creds.Username,
			"Password": creds.Password,
		},
	}
}
