package sla

import (
	"errors"
	"time"
)

// Rule defines turnaround-time thresholds for a ticket category, in minutes.
type Rule struct {
	ID            string
	Name          string
	AvgTATMinutes int
	MaxTATMinutes int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks rule invariants.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.New("sla rule: empty id")
	}
	if r.AvgTATMinutes <= 0 {
		return errors.New("sla rule: avg tat must be positive")
	}
	if r.MaxTATMinutes <= 0 {
		return errors.New("sla rule: max tat must be positive")
	}
	if r.MaxTATMinutes < r.AvgTATMinutes {
		return errors.New("sla rule: max tat below avg tat")
	}
	return nil
}

// Tracking is the running state of one ticket against one SLA rule. Elapsed
// business minutes come from the external calendar oracle; this engine only
// reads them.
type Tracking struct {
	ID             string
	TicketID       string
	SlaRuleID      string
	ElapsedMinutes int
	Paused         bool
	ResolvedAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Open returns true while the tracking record is eligible for evaluation.
func (t Tracking) Open() bool {
	return t.ResolvedAt.IsZero() && !t.Paused
}
