package recipients

import (
	"context"
	"testing"

	directory "servicedesk-cloud/internal/directory/domain"
	directorymem "servicedesk-cloud/internal/directory/infrastructure/memory"
	escalation "servicedesk-cloud/internal/escalation/domain"
)

func seedDirectory() *directorymem.Directory {
	dir := directorymem.NewDirectory()
	dir.PutUser(directory.User{ID: "eng-1", Name: "Priya", Email: "priya@example.com", Role: directory.RoleEngineer, Active: true})
	dir.PutUser(directory.User{ID: "eng-2", Name: "Marco", Email: "marco@example.com", Role: directory.RoleEngineer, Active: false})
	dir.PutUser(directory.User{ID: "coord-1", Name: "Ali", Email: "ali@example.com", Role: directory.RoleCoordinator, Active: true})
	dir.PutUser(directory.User{ID: "coord-2", Name: "Dana", Email: "dana@example.com", Role: directory.RoleCoordinator, Active: true})
	dir.PutUser(directory.User{ID: "coord-3", Name: "Kim", Email: "kim@example.com", Role: directory.RoleCoordinator, Active: true})
	dir.PutUser(directory.User{ID: "head-1", Name: "Noor", Email: "noor@example.com", Role: directory.RoleDepartmentHead, DepartmentID: "dept-net", Active: true})
	dir.PutUser(directory.User{ID: "head-2", Name: "Sam", Email: "sam@example.com", Role: directory.RoleDepartmentHead, DepartmentID: "dept-app", Active: true})
	dir.PutUser(directory.User{ID: "dba-1", Name: "Lena", Email: "lena@example.com", Role: directory.RoleEngineer, Designation: "dba", DepartmentID: "dept-app", Active: true})
	dir.PutUser(directory.User{ID: "dba-2", Name: "Omar", Email: "omar@example.com", Role: directory.RoleEngineer, Designation: "dba", DepartmentID: "dept-net", Active: true})
	return dir
}

func testTicket() directory.Ticket {
	return directory.Ticket{
		ID:                 "tkt-1",
		Subject:            "VPN down",
		Priority:           "P2",
		Status:             "open",
		DepartmentID:       "dept-net",
		AssignedEngineerID: "eng-1",
		CoordinatorID:      "coord-2",
	}
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	resolver, err := NewResolver(seedDirectory(), WithSelector(NewRoundRobinSelector()))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func TestResolveAssignedEngineer(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{RecipientType: escalation.RecipientAssignedEngineer}

	got, err := resolver.Resolve(context.Background(), rule, testTicket())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0].Email != "priya@example.com" {
		t.Fatalf("unexpected recipients: %+v", got)
	}
	if got[0].Type != escalation.RecipientAssignedEngineer {
		t.Fatalf("recipient type = %s", got[0].Type)
	}
}

func TestResolveAssignedEngineerInactiveIsEmpty(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{RecipientType: escalation.RecipientAssignedEngineer}
	ticket := testTicket()
	ticket.AssignedEngineerID = "eng-2"

	got, err := resolver.Resolve(context.Background(), rule, ticket)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("inactive engineer resolved: %+v", got)
	}
}

func TestResolveUnassignedTicketIsEmpty(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{RecipientType: escalation.RecipientAssignedEngineer}
	ticket := testTicket()
	ticket.AssignedEngineerID = ""

	got, err := resolver.Resolve(context.Background(), rule, ticket)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unassigned ticket resolved: %+v", got)
	}
}

func TestResolveCoordinatorPrefersOwn(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{RecipientType: escalation.RecipientCoordinator, MaxRecipients: 2}

	got, err := resolver.Resolve(context.Background(), rule, testTicket())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d recipients, want 2", len(got))
	}
	if got[0].Email != "dana@example.com" {
		t.Fatalf("own coordinator not first: %+v", got)
	}
}

func TestResolveRoleCapDefaultsToOne(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{RecipientType: escalation.RecipientCoordinator}

	got, err := resolver.Resolve(context.Background(), rule, directory.Ticket{ID: "tkt-2"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("default cap not applied: %+v", got)
	}
}

func TestResolveDepartmentHeadPrefersTicketDepartment(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{RecipientType: escalation.RecipientDepartmentHead}

	got, err := resolver.Resolve(context.Background(), rule, testTicket())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0].Email != "noor@example.com" {
		t.Fatalf("department head mismatch: %+v", got)
	}
}

func TestResolveCustomDesignation(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{
		RecipientType:        escalation.RecipientCustomDesignation,
		RecipientDesignation: "dba",
		MaxRecipients:        5,
	}

	got, err := resolver.Resolve(context.Background(), rule, testTicket())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d recipients, want 2", len(got))
	}
	// dept-net dba comes first.
	if got[0].Email != "omar@example.com" {
		t.Fatalf("own-department dba not first: %+v", got)
	}
}

func TestResolveCustomDesignationFallsBackToRole(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{
		RecipientType: escalation.RecipientCustomDesignation,
		RecipientRole: "dba",
	}

	got, err := resolver.Resolve(context.Background(), rule, testTicket())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("fallback designation lookup failed: %+v", got)
	}
}

func TestResolveUnknownTypeErrors(t *testing.T) {
	resolver := newTestResolver(t)
	rule := escalation.Rule{RecipientType: escalation.RecipientType("pager")}

	if _, err := resolver.Resolve(context.Background(), rule, testTicket()); err == nil {
		t.Fatal("unknown recipient type accepted")
	}
}

func TestResolveDedupesByEmail(t *testing.T) {
	dir := directorymem.NewDirectory()
	dir.PutUser(directory.User{ID: "coord-1", Name: "Ali", Email: "shared@example.com", Role: directory.RoleCoordinator, Active: true})
	dir.PutUser(directory.User{ID: "coord-2", Name: "Ali B", Email: "shared@example.com", Role: directory.RoleCoordinator, Active: true})
	resolver, err := NewResolver(dir, WithSelector(NewRoundRobinSelector()))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	rule := escalation.Rule{RecipientType: escalation.RecipientCoordinator, MaxRecipients: 5}

	got, err := resolver.Resolve(context.Background(), rule, directory.Ticket{ID: "tkt-1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("duplicate email not collapsed: %+v", got)
	}
}

func TestRandomSelectorIsSeedStable(t *testing.T) {
	users := []directory.User{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com"},
		{ID: "u3", Email: "u3@example.com"},
		{ID: "u4", Email: "u4@example.com"},
	}
	first := NewRandomSelector(42).Pick(users, 2)
	second := NewRandomSelector(42).Pick(users, 2)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("pick sizes: %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("same seed diverged: %v vs %v", first, second)
		}
	}
}

func TestRoundRobinSelectorRotates(t *testing.T) {
	users := []directory.User{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com"},
		{ID: "u3", Email: "u3@example.com"},
	}
	selector := NewRoundRobinSelector()
	first := selector.Pick(users, 1)
	second := selector.Pick(users, 1)
	third := selector.Pick(users, 1)
	fourth := selector.Pick(users, 1)
	if first[0].ID != "u1" || second[0].ID != "u2" || third[0].ID != "u3" || fourth[0].ID != "u1" {
		t.Fatalf("rotation broken: %s %s %s %s", first[0].ID, second[0].ID, third[0].ID, fourth[0].ID)
	}
}

func TestWithStrategyOverride(t *testing.T) {
	resolver, err := NewResolver(seedDirectory(), WithStrategy(escalation.RecipientAssignedEngineer, staticStrategy{}))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	rule := escalation.Rule{RecipientType: escalation.RecipientAssignedEngineer}
	got, err := resolver.Resolve(context.Background(), rule, testTicket())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0].Email != "oncall@example.com" {
		t.Fatalf("override not applied: %+v", got)
	}
}

type staticStrategy struct{}

func (staticStrategy) Resolve(_ context.Context, _ escalation.Rule, _ directory.Ticket) ([]directory.User, error) {
	return []directory.User{{ID: "oncall", Name: "On Call", Email: "oncall@example.com"}}, nil
}
