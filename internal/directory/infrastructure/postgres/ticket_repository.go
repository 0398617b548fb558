package postgres

import (
	"context"
	"database/sql"
	"errors"

	directory "servicedesk-cloud/internal/directory/domain"
)

// TicketRepository reads ticket context. Ticket CRUD is owned elsewhere; this
// engine only needs the people and department a ticket routes to.
type TicketRepository struct {
	db *sql.DB
}

// NewTicketRepository constructs a repository.
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// TicketByID loads a ticket by id.
func (r *TicketRepository) TicketByID(ctx context.Context, ticketID string) (*directory.Ticket, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ticket repo: nil db")
	}
	if ticketID == "" {
		return nil, errors.New("ticket repo: empty ticket id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, subject, priority, status, department_id,
	COALESCE(assigned_engineer_id, ''), COALESCE(coordinator_id, ''), created_by, created_at
FROM tickets
WHERE id = $1 LIMIT 1`, ticketID)
	var ticket directory.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Priority,
		&ticket.Status,
		&ticket.DepartmentID,
		&ticket.AssignedEngineerID,
		&ticket.CoordinatorID,
		&ticket.CreatedBy,
		&ticket.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	return &ticket, nil
}
