package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	escalation "servicedesk-cloud/internal/escalation/domain"
)

// RuleRepository is a Postgres repository for escalation rules.
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository constructs a repository.
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create inserts an escalation rule.
func (r *RuleRepository) Create(ctx context.Context, rule *escalation.Rule) error {
	if r == nil || r.db == nil {
		return errors.New("escalation rule repo: nil db")
	}
	if rule == nil {
		return errors.New("escalation rule repo: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = rule.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO escalation_rules (
	id, sla_rule_id, escalation_level, trigger_type, reference_threshold,
	trigger_offset_minutes, repeat_interval_minutes, max_repeat_count,
	recipient_type, recipient_role, recipient_designation, number_of_recipients,
	enabled, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8,
	$9, $10, $11, $12,
	$13, $14, $15
)`, rule.ID, rule.SlaRuleID, rule.Level, string(rule.Trigger), string(rule.Reference),
		rule.OffsetMinutes, rule.RepeatIntervalMinutes, rule.MaxRepeatCount,
		string(rule.RecipientType), rule.RecipientRole, rule.RecipientDesignation, rule.MaxRecipients,
		rule.Enabled, rule.CreatedAt, rule.UpdatedAt)
	return err
}

// ActiveBySlaRule returns enabled rules for an SLA rule, ascending by level.
func (r *RuleRepository) ActiveBySlaRule(ctx context.Context, slaRuleID string) ([]escalation.Rule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("escalation rule repo: nil db")
	}
	if slaRuleID == "" {
		return nil, errors.New("escalation rule repo: empty sla rule id")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, sla_rule_id, escalation_level, trigger_type, reference_threshold,
	trigger_offset_minutes, repeat_interval_minutes, max_repeat_count,
	recipient_type, recipient_role, recipient_designation, number_of_recipients,
	enabled, created_at, updated_at
FROM escalation_rules
WHERE sla_rule_id = $1 AND enabled = TRUE
ORDER BY escalation_level ASC`, slaRuleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []escalation.Rule
	for rows.Next() {
		var rule escalation.Rule
		var trigger, reference, recipientType string
		if err := rows.Scan(
			&rule.ID,
			&rule.SlaRuleID,
			&rule.Level,
			&trigger,
			&reference,
			&rule.OffsetMinutes,
			&rule.RepeatIntervalMinutes,
			&rule.MaxRepeatCount,
			&recipientType,
			&rule.RecipientRole,
			&rule.RecipientDesignation,
			&rule.MaxRecipients,
			&rule.Enabled,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.Trigger = escalation.TriggerType(trigger)
		rule.Reference = escalation.ReferenceThreshold(reference)
		rule.RecipientType = escalation.RecipientType(recipientType)
		rule.CreatedAt = rule.CreatedAt.UTC()
		rule.UpdatedAt = rule.UpdatedAt.UTC()
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
