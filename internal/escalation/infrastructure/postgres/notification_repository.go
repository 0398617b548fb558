package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	application "servicedesk-cloud/internal/escalation/application"
	escalation "servicedesk-cloud/internal/escalation/domain"
)

// NotificationRepository is the Postgres escalation log. The unique index on
// (tracking_id, rule_id, repeat_count) is the last-resort guard against
// concurrent evaluations of the same ticket.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository constructs a repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// History returns the committed notification history for a (tracking, rule) pair.
func (r *NotificationRepository) History(ctx context.Context, trackingID, ruleID string) (application.History, error) {
	if r == nil || r.db == nil {
		return application.History{}, errors.New("notification repo: nil db")
	}
	if trackingID == "" || ruleID == "" {
		return application.History{}, errors.New("notification repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(MAX(repeat_count), 0)
FROM escalation_notifications
WHERE tracking_id = $1 AND rule_id = $2`, trackingID, ruleID)
	var hist application.History
	if err := row.Scan(&hist.ExistingCount, &hist.MaxRepeatCount); err != nil {
		return application.History{}, err
	}
	return hist, nil
}

// Record appends a pending notification. A conflicting insert reports
// ErrDuplicateNotification.
func (r *NotificationRepository) Record(ctx context.Context, notification *escalation.Notification) error {
	if r == nil || r.db == nil {
		return errors.New("notification repo: nil db")
	}
	if notification == nil {
		return errors.New("notification repo: nil notification")
	}
	if err := notification.Validate(); err != nil {
		return err
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	recipients, err := json.Marshal(notification.Recipients)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
INSERT INTO escalation_notifications (
	id, tracking_id, rule_id, escalation_level, trigger_type, recipients,
	repeat_count, status, error_message, created_at, sent_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10, NULL
)
ON CONFLICT (tracking_id, rule_id, repeat_count) DO NOTHING`,
		notification.ID, notification.TrackingID, notification.RuleID, notification.Level,
		string(notification.Trigger), recipients, notification.RepeatCount,
		string(notification.Status), notification.ErrorMessage, notification.CreatedAt)
	if err != nil {
		// A concurrent duplicate can trip the id primary key before the
		// (tracking_id, rule_id, repeat_count) arbiter, since the id is
		// derived from the same triple.
		if isUniqueViolation(err) {
			return escalation.ErrDuplicateNotification
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return escalation.ErrDuplicateNotification
	}
	return nil
}

// UpdateStatus records a delivery outcome for a pending notification.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, notificationID string, status escalation.DeliveryStatus, sentAt time.Time, errorMessage string) error {
	if r == nil || r.db == nil {
		return errors.New("notification repo: nil db")
	}
	if notificationID == "" {
		return errors.New("notification repo: empty notification id")
	}
	if !status.Valid() {
		return errors.New("notification repo: invalid status")
	}
	var sent sql.NullTime
	if !sentAt.IsZero() {
		sent = sql.NullTime{Time: sentAt.UTC(), Valid: true}
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE escalation_notifications
SET status = $2, sent_at = $3, error_message = $4
WHERE id = $1 AND status = 'pending'`,
		notificationID, string(status), sent, errorMessage)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var existing string
		row := r.db.QueryRowContext(ctx, `SELECT status FROM escalation_notifications WHERE id = $1`, notificationID)
		if err := row.Scan(&existing); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return escalation.ErrNotFound
			}
			return err
		}
		return escalation.ErrAlreadySettled
	}
	return nil
}

// ListPending returns notifications awaiting delivery, oldest first.
func (r *NotificationRepository) ListPending(ctx context.Context) ([]escalation.Notification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("notification repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectNotification+`
WHERE status = 'pending'
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ListByTracking returns every notification for a tracking record in fired order.
func (r *NotificationRepository) ListByTracking(ctx context.Context, trackingID string) ([]escalation.Notification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("notification repo: nil db")
	}
	if trackingID == "" {
		return nil, errors.New("notification repo: empty tracking id")
	}
	rows, err := r.db.QueryContext(ctx, selectNotification+`
WHERE tracking_id = $1
ORDER BY escalation_level ASC, repeat_count ASC, created_at ASC`, trackingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const selectNotification = `
SELECT id, tracking_id, rule_id, escalation_level, trigger_type, recipients,
	repeat_count, status, error_message, created_at, sent_at
FROM escalation_notifications`

func scanNotifications(rows *sql.Rows) ([]escalation.Notification, error) {
	var result []escalation.Notification
	for rows.Next() {
		var notification escalation.Notification
		var trigger, status string
		var recipients []byte
		var sentAt sql.NullTime
		if err := rows.Scan(
			&notification.ID,
			&notification.TrackingID,
			&notification.RuleID,
			&notification.Level,
			&trigger,
			&recipients,
			&notification.RepeatCount,
			&status,
			&notification.ErrorMessage,
			&notification.CreatedAt,
			&sentAt,
		); err != nil {
			return nil, err
		}
		notification.Trigger = escalation.TriggerType(trigger)
		notification.Status = escalation.DeliveryStatus(status)
		if len(recipients) > 0 {
			if err := json.Unmarshal(recipients, &notification.Recipients); err != nil {
				return nil, err
			}
		}
		notification.CreatedAt = notification.CreatedAt.UTC()
		if sentAt.Valid {
			notification.SentAt = sentAt.Time.UTC()
		}
		result = append(result, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
