package directory

import "time"

// Ticket is the read-only ticket context this engine needs: the people and
// department an escalation can be routed to. Ticket CRUD lives elsewhere.
type Ticket struct {
	ID                 string
	Subject            string
	Priority           string
	Status             string
	DepartmentID       string
	AssignedEngineerID string
	CoordinatorID      string
	CreatedBy          string
	CreatedAt          time.Time
}
