package escalation

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// DeliveryStatus is the lifecycle state of a notification record.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// Valid returns true when the status is supported.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	default:
		return false
	}
}

// Settled returns true once a delivery outcome has been recorded.
func (s DeliveryStatus) Settled() bool {
	return s == StatusSent || s == StatusFailed
}

// Recipient is one addressable user resolved for a notification.
type Recipient struct {
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Type  RecipientType `json:"type"`
}

// Notification is one fired escalation instance for a (tracking, rule) pair.
// Recipients keep resolution order; RepeatCount is the sequence number within
// the pair (always 1 for non-recurring triggers).
type Notification struct {
	ID           string
	TrackingID   string
	RuleID       string
	Level        int
	Trigger      TriggerType
	Recipients   []Recipient
	RepeatCount  int
	Status       DeliveryStatus
	ErrorMessage string
	CreatedAt    time.Time
	SentAt       time.Time
}

// Validate checks notification invariants before persisting.
func (n Notification) Validate() error {
	if n.ID == "" {
		return errors.New("escalation notification: empty id")
	}
	if n.TrackingID == "" {
		return errors.New("escalation notification: empty tracking id")
	}
	if n.RuleID == "" {
		return errors.New("escalation notification: empty rule id")
	}
	if n.Level <= 0 {
		return errors.New("escalation notification: level must be positive")
	}
	if !n.Trigger.Valid() {
		return errors.New("escalation notification: invalid trigger type")
	}
	if n.RepeatCount <= 0 {
		return errors.New("escalation notification: repeat count must be positive")
	}
	if !n.Status.Valid() {
		return errors.New("escalation notification: invalid status")
	}
	return nil
}

// BuildNotificationID derives a stable id for a (tracking, rule, repeat) triple.
func BuildNotificationID(trackingID, ruleID string, repeatCount int) string {
	sum := sha1.Sum([]byte(trackingID + "|" + ruleID + "|" + strconv.Itoa(repeatCount)))
	return "esc-" + hex.EncodeToString(sum[:8])
}
