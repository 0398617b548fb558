package postgres

import (
	"context"
	"database/sql"
	"errors"

	sla "servicedesk-cloud/internal/sla/domain"
)

// ElapsedOracle computes elapsed business minutes for a tracking record. The
// business-hours calendar lives outside this engine; a nil oracle makes
// RefreshElapsed a no-op and elapsed minutes are maintained externally.
type ElapsedOracle interface {
	ElapsedMinutes(ctx context.Context, tracking sla.Tracking) (int, error)
}

// TrackingRepository is the Postgres SLA tracking store.
type TrackingRepository struct {
	db     *sql.DB
	oracle ElapsedOracle
}

// TrackingOption customizes the repository.
type TrackingOption func(*TrackingRepository)

// WithElapsedOracle injects the business-calendar oracle.
func WithElapsedOracle(oracle ElapsedOracle) TrackingOption {
	return func(r *TrackingRepository) {
		r.oracle = oracle
	}
}

// NewTrackingRepository constructs a repository.
func NewTrackingRepository(db *sql.DB, opts ...TrackingOption) *TrackingRepository {
	repo := &TrackingRepository{db: db}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

const selectTracking = `
SELECT id, ticket_id, sla_rule_id, elapsed_minutes, is_paused, resolved_at, created_at, updated_at
FROM sla_tracking`

// TrackingByTicket loads the tracking record for a ticket.
func (r *TrackingRepository) TrackingByTicket(ctx context.Context, ticketID string) (*sla.Tracking, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tracking repo: nil db")
	}
	if ticketID == "" {
		return nil, errors.New("tracking repo: empty ticket id")
	}
	row := r.db.QueryRowContext(ctx, selectTracking+` WHERE ticket_id = $1 LIMIT 1`, ticketID)
	return scanTracking(row)
}

// TrackingByID loads a tracking record by id.
func (r *TrackingRepository) TrackingByID(ctx context.Context, trackingID string) (*sla.Tracking, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tracking repo: nil db")
	}
	if trackingID == "" {
		return nil, errors.New("tracking repo: empty tracking id")
	}
	row := r.db.QueryRowContext(ctx, selectTracking+` WHERE id = $1 LIMIT 1`, trackingID)
	return scanTracking(row)
}

// RefreshElapsed recomputes elapsed business minutes through the oracle and
// persists the result. Resolved or paused records are left untouched.
func (r *TrackingRepository) RefreshElapsed(ctx context.Context, ticketID string) error {
	if r == nil || r.db == nil {
		return errors.New("tracking repo: nil db")
	}
	if r.oracle == nil {
		return nil
	}
	tracking, err := r.TrackingByTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if tracking == nil || !tracking.Open() {
		return nil
	}
	elapsed, err := r.oracle.ElapsedMinutes(ctx, *tracking)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE sla_tracking
SET elapsed_minutes = $2, updated_at = NOW()
WHERE id = $1 AND resolved_at IS NULL AND is_paused = FALSE`, tracking.ID, elapsed)
	return err
}

// ListOpen returns all open, unresolved, unpaused tracking records.
func (r *TrackingRepository) ListOpen(ctx context.Context) ([]sla.Tracking, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tracking repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectTracking+`
WHERE resolved_at IS NULL AND is_paused = FALSE
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []sla.Tracking
	for rows.Next() {
		tracking, err := scanTrackingRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tracking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RuleByID loads SLA thresholds for a rule.
func (r *TrackingRepository) RuleByID(ctx context.Context, slaRuleID string) (*sla.Rule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tracking repo: nil db")
	}
	if slaRuleID == "" {
		return nil, errors.New("tracking repo: empty sla rule id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, avg_tat_minutes, max_tat_minutes, created_at, updated_at
FROM sla_rules
WHERE id = $1 LIMIT 1`, slaRuleID)
	var rule sla.Rule
	if err := row.Scan(&rule.ID, &rule.Name, &rule.AvgTATMinutes, &rule.MaxTATMinutes, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return &rule, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTracking(row *sql.Row) (*sla.Tracking, error) {
	tracking, err := scanTrackingRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tracking, nil
}

func scanTrackingRow(scanner rowScanner) (sla.Tracking, error) {
	var tracking sla.Tracking
	var resolvedAt sql.NullTime
	if err := scanner.Scan(
		&tracking.ID,
		&tracking.TicketID,
		&tracking.SlaRuleID,
		&tracking.ElapsedMinutes,
		&tracking.Paused,
		&resolvedAt,
		&tracking.CreatedAt,
		&tracking.UpdatedAt,
	); err != nil {
		return sla.Tracking{}, err
	}
	if resolvedAt.Valid {
		tracking.ResolvedAt = resolvedAt.Time.UTC()
	}
	tracking.CreatedAt = tracking.CreatedAt.UTC()
	tracking.UpdatedAt = tracking.UpdatedAt.UTC()
	return tracking, nil
}
