package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/kendall-kelly/servicepro-api/metrics"
	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Email is a single outgoing HTML message
type Email struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers transactional email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// ResendMailer sends email through the Resend API
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer creates a mailer for the given API key and sender address
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}

// LogMailer only logs messages; used when no mail provider is configured
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.logger.Info("email not sent, no mail provider configured",
		zap.Strings("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}

const jobCreatedSubject = "Your job has been created"

var jobCreatedTemplate = template.Must(template.New("job_created").Parse(`<!DOCTYPE html>
<html>
<body style="background-color:#ffffff;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif">
<div style="margin:0 auto;padding:20px 0 48px">
<p style="font-size:16px;line-height:26px">Hi there,</p>
<p style="font-size:16px;line-height:26px">Your job with ID {{.JobID}} has been successfully created.</p>
</div>
</body>
</html>
`))

// JobCreatedEmail renders the "job created" message for a customer address
func JobCreatedEmail(to string, jobID uint) (Email, error) {
	var buf bytes.Buffer
	if err := jobCreatedTemplate.Execute(&buf, struct{ JobID uint }{jobID}); err != nil {
		return Email{}, fmt.Errorf("failed to render job created email: %w", err)
	}
	return Email{To: []string{to}, Subject: jobCreatedSubject, HTML: buf.String()}, nil
}

// ErrDispatcherFull is returned when the send queue is at capacity
var ErrDispatcherFull = errors.New("notifications: queue is full")

// ErrDispatcherClosed is returned after Shutdown
var ErrDispatcherClosed = errors.New("notifications: dispatcher is closed")

// NotificationDispatcher sends notification email on a bounded set of workers
// so a slow mail provider never holds up the request that triggered it.
type NotificationDispatcher struct {
	mailer  Mailer
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	tasks  chan Email
	wg     sync.WaitGroup
	once   sync.Once
}

// NewNotificationDispatcher starts workers goroutines feeding mailer
func NewNotificationDispatcher(mailer Mailer, workers int, logger *zap.Logger) *NotificationDispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &NotificationDispatcher{
		mailer:  mailer,
		logger:  logger,
		timeout: 15 * time.Second,
		tasks:   make(chan Email, workers*16),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// JobCreated queues the "job created" email for a job whose customer has an
// email address. Failures are logged and counted, never returned to the caller.
func (d *NotificationDispatcher) JobCreated(job *models.Job) {
	if job == nil || job.Customer == nil || !job.Customer.HasEmail() {
		return
	}

	email, err := JobCreatedEmail(*job.Customer.Email, job.ID)
	if err != nil {
		d.logger.Error("failed to build notification", zap.Uint("job_id", job.ID), zap.Error(err))
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}

	if err := d.enqueue(email); err != nil {
		d.logger.Warn("notification dropped", zap.Uint("job_id", job.ID), zap.Error(err))
		metrics.Notifications.WithLabelValues("dropped").Inc()
	}
}

func (d *NotificationDispatcher) enqueue(email Email) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.tasks <- email:
		return nil
	default:
		return ErrDispatcherFull
	}
}

// Shutdown stops accepting messages and waits for queued ones to be sent.
// Safe to call more than once.
func (d *NotificationDispatcher) Shutdown() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.tasks)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for email := range d.tasks {
		d.send(email)
	}
}

func (d *NotificationDispatcher) send(email Email) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while sending notification", zap.Any("panic", r))
			metrics.Notifications.WithLabelValues("failed").Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.mailer.Send(ctx, email); err != nil {
		d.logger.Error("failed to send notification",
			zap.Strings("to", email.To),
			zap.String("subject", email.Subject),
			zap.Error(err))
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
}
