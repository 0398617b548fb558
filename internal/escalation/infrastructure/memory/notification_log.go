package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	application "servicedesk-cloud/internal/escalation/application"
	escalation "servicedesk-cloud/internal/escalation/domain"
)

// NotificationLog is an in-memory escalation log. It enforces the same
// (tracking, rule, repeat) uniqueness as the Postgres repository.
type NotificationLog struct {
	mu     sync.Mutex
	byID   map[string]*escalation.Notification
	byTrio map[string]string
}

// NewNotificationLog constructs an empty log.
func NewNotificationLog() *NotificationLog {
	return &NotificationLog{
		byID:   make(map[string]*escalation.Notification),
		byTrio: make(map[string]string),
	}
}

// History returns the committed history for a (tracking, rule) pair.
func (l *NotificationLog) History(ctx context.Context, trackingID, ruleID string) (application.History, error) {
	_ = ctx
	if trackingID == "" || ruleID == "" {
		return application.History{}, errors.New("memory log: invalid query")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var hist application.History
	for _, notification := range l.byID {
		if notification.TrackingID != trackingID || notification.RuleID != ruleID {
			continue
		}
		hist.ExistingCount++
		if notification.RepeatCount > hist.MaxRepeatCount {
			hist.MaxRepeatCount = notification.RepeatCount
		}
	}
	return hist, nil
}

// Record appends a pending notification, rejecting duplicates.
func (l *NotificationLog) Record(ctx context.Context, notification *escalation.Notification) error {
	_ = ctx
	if notification == nil {
		return errors.New("memory log: nil notification")
	}
	if err := notification.Validate(); err != nil {
		return err
	}
	key := trioKey(notification.TrackingID, notification.RuleID, notification.RepeatCount)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.byTrio[key]; exists {
		return escalation.ErrDuplicateNotification
	}
	stored := *notification
	stored.Recipients = append([]escalation.Recipient(nil), notification.Recipients...)
	l.byID[stored.ID] = &stored
	l.byTrio[key] = stored.ID
	return nil
}

// UpdateStatus records a delivery outcome for a pending notification.
func (l *NotificationLog) UpdateStatus(ctx context.Context, notificationID string, status escalation.DeliveryStatus, sentAt time.Time, errorMessage string) error {
	_ = ctx
	if notificationID == "" {
		return errors.New("memory log: empty notification id")
	}
	if !status.Valid() {
		return errors.New("memory log: invalid status")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	notification, ok := l.byID[notificationID]
	if !ok {
		return escalation.ErrNotFound
	}
	if notification.Status.Settled() {
		return escalation.ErrAlreadySettled
	}
	notification.Status = status
	notification.ErrorMessage = errorMessage
	if !sentAt.IsZero() {
		notification.SentAt = sentAt.UTC()
	}
	return nil
}

// ListPending returns notifications awaiting delivery, oldest first.
func (l *NotificationLog) ListPending(ctx context.Context) ([]escalation.Notification, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []escalation.Notification
	for _, notification := range l.byID {
		if notification.Status == escalation.StatusPending {
			result = append(result, cloneNotification(notification))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// ListByTracking returns every notification for a tracking record.
func (l *NotificationLog) ListByTracking(ctx context.Context, trackingID string) ([]escalation.Notification, error) {
	_ = ctx
	if trackingID == "" {
		return nil, errors.New("memory log: empty tracking id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []escalation.Notification
	for _, notification := range l.byID {
		if notification.TrackingID == trackingID {
			result = append(result, cloneNotification(notification))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Level != result[j].Level {
			return result[i].Level < result[j].Level
		}
		return result[i].RepeatCount < result[j].RepeatCount
	})
	return result, nil
}

func cloneNotification(notification *escalation.Notification) escalation.Notification {
	clone := *notification
	clone.Recipients = append([]escalation.Recipient(nil), notification.Recipients...)
	return clone
}

func trioKey(trackingID, ruleID string, repeatCount int) string {
	return fmt.Sprintf("%s|%s|%d", trackingID, ruleID, repeatCount)
}
