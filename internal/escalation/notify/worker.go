package notify

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	escapp "servicedesk-cloud/internal/escalation/application"
	escalation "servicedesk-cloud/internal/escalation/domain"
)

// DeliverySource hands out pending notifications and records outcomes.
type DeliverySource interface {
	PendingForDelivery(ctx context.Context) ([]escapp.PendingNotification, error)
	UpdateStatus(ctx context.Context, notificationID string, status escalation.DeliveryStatus, sentAt time.Time, errorMessage string) error
}

// Clock provides time for delivery stamps.
type Clock interface {
	Now() time.Time
}

// Worker drains pending notifications onto a channel on an interval.
type Worker struct {
	source   DeliverySource
	channel  Channel
	template *Template
	interval time.Duration
	clock    Clock
	logger   *log.Logger
}

// WorkerOption configures the worker.
type WorkerOption func(*Worker)

// WithInterval overrides the poll interval.
func WithInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) WorkerOption {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// NewWorker constructs a delivery worker.
func NewWorker(source DeliverySource, channel Channel, template *Template, logger *log.Logger, opts ...WorkerOption) (*Worker, error) {
	if source == nil {
		return nil, errors.New("delivery worker: nil source")
	}
	if channel == nil {
		return nil, errors.New("delivery worker: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	w := &Worker{
		source:   source,
		channel:  channel,
		template: template,
		interval: time.Minute,
		clock:    systemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start polls for pending notifications until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if w == nil {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce delivers every pending notification and settles its status.
func (w *Worker) RunOnce(ctx context.Context) {
	if w == nil {
		return
	}
	pending, err := w.source.PendingForDelivery(ctx)
	if err != nil {
		w.printf("delivery poll failed: %v", err)
		return
	}
	for _, item := range pending {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, item)
	}
}

func (w *Worker) deliver(ctx context.Context, item escapp.PendingNotification) {
	content, err := w.template.Render(buildTemplateData(item))
	if err != nil {
		w.settle(ctx, item.Notification.ID, escalation.StatusFailed, err.Error())
		return
	}
	if err := w.channel.Send(ctx, content); err != nil {
		w.printf("delivery failed: notification=%s err=%v", item.Notification.ID, err)
		w.settle(ctx, item.Notification.ID, escalation.StatusFailed, err.Error())
		return
	}
	w.settle(ctx, item.Notification.ID, escalation.StatusSent, "")
}

func (w *Worker) settle(ctx context.Context, notificationID string, status escalation.DeliveryStatus, errorMessage string) {
	if err := w.source.UpdateStatus(ctx, notificationID, status, w.clock.Now().UTC(), errorMessage); err != nil {
		w.printf("status update failed: notification=%s status=%s err=%v", notificationID, status, err)
	}
}

func (w *Worker) printf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

func buildTemplateData(item escapp.PendingNotification) TemplateData {
	emails := make([]string, 0, len(item.Notification.Recipients))
	for _, recipient := range item.Notification.Recipients {
		emails = append(emails, recipient.Email)
	}
	subject := item.Ticket.Subject
	if subject == "" {
		subject = item.Ticket.ID
	}
	return TemplateData{
		Ticket:       subject,
		TicketID:     item.Ticket.ID,
		Priority:     item.Ticket.Priority,
		Level:        item.Notification.Level,
		Trigger:      string(item.Notification.Trigger),
		TriggerLabel: triggerLabel(item.Notification.Trigger),
		Recipients:   strings.Join(emails, ", "),
		RepeatCount:  item.Notification.RepeatCount,
		FiredAt:      item.Notification.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func triggerLabel(trigger escalation.TriggerType) string {
	switch trigger {
	case escalation.TriggerWarningZone:
		return "Warning"
	case escalation.TriggerImminentBreach:
		return "Imminent Breach"
	case escalation.TriggerBreached:
		return "Breached"
	case escalation.TriggerRecurringBreach:
		return "Repeat Breach"
	default:
		return string(trigger)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
