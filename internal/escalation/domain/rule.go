package escalation

import (
	"errors"
	"time"
)

// TriggerType identifies when an escalation rule fires relative to its SLA threshold.
type TriggerType string

const (
	TriggerWarningZone     TriggerType = "warning_zone"
	TriggerImminentBreach  TriggerType = "imminent_breach"
	TriggerBreached        TriggerType = "breached"
	TriggerRecurringBreach TriggerType = "recurring_breach"
)

// ReferenceThreshold selects which SLA turnaround time a rule measures against.
type ReferenceThreshold string

const (
	ReferenceAvgTAT ReferenceThreshold = "avg_tat"
	ReferenceMaxTAT ReferenceThreshold = "max_tat"
)

// RecipientType selects the recipient resolution strategy for a rule.
type RecipientType string

const (
	RecipientAssignedEngineer  RecipientType = "assigned_engineer"
	RecipientCoordinator       RecipientType = "coordinator"
	RecipientITHead            RecipientType = "it_head"
	RecipientAdmin             RecipientType = "admin"
	RecipientSuperadmin        RecipientType = "superadmin"
	RecipientDepartmentHead    RecipientType = "department_head"
	RecipientCustomRole        RecipientType = "custom_role"
	RecipientCustomDesignation RecipientType = "custom_designation"
)

// Rule defines one escalation threshold plus recipient policy for an SLA rule.
type Rule struct {
	ID                    string
	SlaRuleID             string
	Level                 int
	Trigger               TriggerType
	Reference             ReferenceThreshold
	OffsetMinutes         int
	RepeatIntervalMinutes int
	MaxRepeatCount        int
	RecipientType         RecipientType
	RecipientRole         string
	RecipientDesignation  string
	MaxRecipients         int
	Enabled               bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Validate checks rule invariants.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.New("escalation rule: empty id")
	}
	if r.SlaRuleID == "" {
		return errors.New("escalation rule: empty sla rule id")
	}
	if r.Level <= 0 {
		return errors.New("escalation rule: level must be positive")
	}
	if !r.Trigger.Valid() {
		return errors.New("escalation rule: invalid trigger type")
	}
	if !r.Reference.Valid() {
		return errors.New("escalation rule: invalid reference threshold")
	}
	if r.Trigger == TriggerRecurringBreach && r.RepeatIntervalMinutes <= 0 {
		return errors.New("escalation rule: recurring rule requires repeat interval")
	}
	if r.MaxRepeatCount < 0 {
		return errors.New("escalation rule: negative max repeat count")
	}
	if !r.RecipientType.Valid() {
		return errors.New("escalation rule: invalid recipient type")
	}
	if r.RecipientType == RecipientCustomRole && r.RecipientRole == "" {
		return errors.New("escalation rule: custom_role requires recipient role")
	}
	if r.RecipientType == RecipientCustomDesignation && r.RecipientDesignation == "" {
		return errors.New("escalation rule: custom_designation requires recipient designation")
	}
	if r.MaxRecipients < 0 {
		return errors.New("escalation rule: negative recipient cap")
	}
	return nil
}

// Valid returns true when the trigger type is supported.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerWarningZone, TriggerImminentBreach, TriggerBreached, TriggerRecurringBreach:
		return true
	default:
		return false
	}
}

// Recurring returns true when the rule fires repeatedly after a breach.
func (t TriggerType) Recurring() bool {
	return t == TriggerRecurringBreach
}

// Valid returns true when the reference threshold is supported.
func (r ReferenceThreshold) Valid() bool {
	switch r {
	case ReferenceAvgTAT, ReferenceMaxTAT:
		return true
	default:
		return false
	}
}

// Valid returns true when the recipient type is supported.
func (r RecipientType) Valid() bool {
	switch r {
	case RecipientAssignedEngineer, RecipientCoordinator, RecipientITHead,
		RecipientAdmin, RecipientSuperadmin, RecipientDepartmentHead,
		RecipientCustomRole, RecipientCustomDesignation:
		return true
	default:
		return false
	}
}
