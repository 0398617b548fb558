package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	directory "servicedesk-cloud/internal/directory/domain"
)

// Directory is an in-memory user and ticket directory for tests.
type Directory struct {
	mu      sync.RWMutex
	users   map[string]*directory.User
	tickets map[string]*directory.Ticket
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users:   make(map[string]*directory.User),
		tickets: make(map[string]*directory.Ticket),
	}
}

// PutUser stores a user.
func (d *Directory) PutUser(user directory.User) {
	d.mu.Lock()
	stored := user
	d.users[user.ID] = &stored
	d.mu.Unlock()
}

// PutTicket stores a ticket.
func (d *Directory) PutTicket(ticket directory.Ticket) {
	d.mu.Lock()
	stored := ticket
	d.tickets[ticket.ID] = &stored
	d.mu.Unlock()
}

// UserByID returns a user by id.
func (d *Directory) UserByID(ctx context.Context, id string) (*directory.User, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory directory: empty user id")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

// ActiveByRole returns active users with the given role, id order.
func (d *Directory) ActiveByRole(ctx context.Context, role string) ([]directory.User, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []directory.User
	for _, user := range d.users {
		if string(user.Role) == role && user.Active {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ActiveByDesignation returns active users with the given designation, id order.
func (d *Directory) ActiveByDesignation(ctx context.Context, designation string) ([]directory.User, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []directory.User
	for _, user := range d.users {
		if user.Designation == designation && user.Active {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// TicketByID returns a ticket by id.
func (d *Directory) TicketByID(ctx context.Context, ticketID string) (*directory.Ticket, error) {
	_ = ctx
	if ticketID == "" {
		return nil, errors.New("memory directory: empty ticket id")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	ticket, ok := d.tickets[ticketID]
	if !ok {
		return nil, nil
	}
	clone := *ticket
	return &clone, nil
}
