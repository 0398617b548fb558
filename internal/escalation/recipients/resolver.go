package recipients

import (
	"context"
	"errors"
	"fmt"
	"time"

	directory "servicedesk-cloud/internal/directory/domain"
	escalation "servicedesk-cloud/internal/escalation/domain"
)

// Directory is the user-directory contract the resolver depends on. Lookups
// return active users only.
type Directory interface {
	UserByID(ctx context.Context, id string) (*directory.User, error)
	ActiveByRole(ctx context.Context, role string) ([]directory.User, error)
	ActiveByDesignation(ctx context.Context, designation string) ([]directory.User, error)
}

// Strategy resolves recipients for one recipient type.
type Strategy interface {
	Resolve(ctx context.Context, rule escalation.Rule, ticket directory.Ticket) ([]directory.User, error)
}

// Resolver maps a rule's recipient settings to an ordered, de-duplicated
// list of addressable users, capped at the rule's recipient limit. Missing or
// inactive users yield an empty list, never an error.
type Resolver struct {
	strategies map[escalation.RecipientType]Strategy
}

// ResolverOption customizes the resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	selector Selector
	extra    map[escalation.RecipientType]Strategy
}

// WithSelector injects the padding selection strategy.
func WithSelector(selector Selector) ResolverOption {
	return func(c *resolverConfig) {
		if selector != nil {
			c.selector = selector
		}
	}
}

// WithStrategy registers or replaces the strategy for a recipient type.
func WithStrategy(recipientType escalation.RecipientType, strategy Strategy) ResolverOption {
	return func(c *resolverConfig) {
		if strategy != nil {
			c.extra[recipientType] = strategy
		}
	}
}

// NewResolver constructs a resolver with one strategy per recipient type.
func NewResolver(dir Directory, opts ...ResolverOption) (*Resolver, error) {
	if dir == nil {
		return nil, errors.New("recipient resolver: nil directory")
	}
	cfg := resolverConfig{
		selector: NewRandomSelector(time.Now().UnixNano()),
		extra:    make(map[escalation.RecipientType]Strategy),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	strategies := map[escalation.RecipientType]Strategy{
		escalation.RecipientAssignedEngineer: assignedEngineerStrategy{dir: dir},
		escalation.RecipientCoordinator:      coordinatorStrategy{dir: dir, selector: cfg.selector},
		escalation.RecipientITHead:           roleStrategy{dir: dir, selector: cfg.selector, role: directory.RoleITHead},
		escalation.RecipientAdmin:            roleStrategy{dir: dir, selector: cfg.selector, role: directory.RoleAdmin},
		escalation.RecipientSuperadmin:       roleStrategy{dir: dir, selector: cfg.selector, role: directory.RoleSuperadmin},
		escalation.RecipientDepartmentHead:   departmentHeadStrategy{dir: dir, selector: cfg.selector},
		escalation.RecipientCustomRole:       customRoleStrategy{dir: dir, selector: cfg.selector},
		escalation.RecipientCustomDesignation: customDesignationStrategy{
			dir:      dir,
			selector: cfg.selector,
		},
	}
	for recipientType, strategy := range cfg.extra {
		strategies[recipientType] = strategy
	}
	return &Resolver{strategies: strategies}, nil
}

// Resolve returns the capped, ordered recipient list for a rule and ticket.
func (r *Resolver) Resolve(ctx context.Context, rule escalation.Rule, ticket directory.Ticket) ([]escalation.Recipient, error) {
	if r == nil {
		return nil, errors.New("recipient resolver: nil resolver")
	}
	strategy, ok := r.strategies[rule.RecipientType]
	if !ok {
		return nil, fmt.Errorf("recipient resolver: no strategy for %q", rule.RecipientType)
	}
	users, err := strategy.Resolve(ctx, rule, ticket)
	if err != nil {
		return nil, err
	}
	return toRecipients(users, rule.RecipientType, recipientCap(rule)), nil
}

func recipientCap(rule escalation.Rule) int {
	if rule.MaxRecipients <= 0 {
		return 1
	}
	return rule.MaxRecipients
}

func toRecipients(users []directory.User, recipientType escalation.RecipientType, limit int) []escalation.Recipient {
	if len(users) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(users))
	result := make([]escalation.Recipient, 0, limit)
	for _, user := range users {
		if user.Email == "" {
			continue
		}
		if _, dup := seen[user.Email]; dup {
			continue
		}
		seen[user.Email] = struct{}{}
		result = append(result, escalation.Recipient{Name: user.Name, Email: user.Email, Type: recipientType})
		if len(result) >= limit {
			break
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

type assignedEngineerStrategy struct {
	dir Directory
}

func (s assignedEngineerStrategy) Resolve(ctx context.Context, _ escalation.Rule, ticket directory.Ticket) ([]directory.User, error) {
	if ticket.AssignedEngineerID == "" {
		return nil, nil
	}
	user, err := s.dir.UserByID(ctx, ticket.AssignedEngineerID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, nil
	}
	return []directory.User{*user}, nil
}

// coordinatorStrategy puts the ticket's own coordinator first, then pads
// with other active coordinators via the selector.
type coordinatorStrategy struct {
	dir      Directory
	selector Selector
}

func (s coordinatorStrategy) Resolve(ctx context.Context, rule escalation.Rule, ticket directory.Ticket) ([]directory.User, error) {
	coordinators, err := s.dir.ActiveByRole(ctx, string(directory.RoleCoordinator))
	if err != nil {
		return nil, err
	}
	var own []directory.User
	var others []directory.User
	for _, user := range coordinators {
		if ticket.CoordinatorID != "" && user.ID == ticket.CoordinatorID {
			own = append(own, user)
			continue
		}
		others = append(others, user)
	}
	return padPreferred(own, others, s.selector, recipientCap(rule)), nil
}

// roleStrategy handles the flat role-based recipient types.
type roleStrategy struct {
	dir      Directory
	selector Selector
	role     directory.Role
}

func (s roleStrategy) Resolve(ctx context.Context, rule escalation.Rule, _ directory.Ticket) ([]directory.User, error) {
	users, err := s.dir.ActiveByRole(ctx, string(s.role))
	if err != nil {
		return nil, err
	}
	return s.selector.Pick(users, recipientCap(rule)), nil
}

// departmentHeadStrategy prefers heads of the ticket's own department.
type departmentHeadStrategy struct {
	dir      Directory
	selector Selector
}

func (s departmentHeadStrategy) Resolve(ctx context.Context, rule escalation.Rule, ticket directory.Ticket) ([]directory.User, error) {
	heads, err := s.dir.ActiveByRole(ctx, string(directory.RoleDepartmentHead))
	if err != nil {
		return nil, err
	}
	own, others := splitByDepartment(heads, ticket.DepartmentID)
	return padPreferred(own, others, s.selector, recipientCap(rule)), nil
}

type customRoleStrategy struct {
	dir      Directory
	selector Selector
}

func (s customRoleStrategy) Resolve(ctx context.Context, rule escalation.Rule, _ directory.Ticket) ([]directory.User, error) {
	if rule.RecipientRole == "" {
		return nil, nil
	}
	users, err := s.dir.ActiveByRole(ctx, rule.RecipientRole)
	if err != nil {
		return nil, err
	}
	return s.selector.Pick(users, recipientCap(rule)), nil
}

// customDesignationStrategy matches by designation, preferring the ticket's
// own department.
type customDesignationStrategy struct {
	dir      Directory
	selector Selector
}

func (s customDesignationStrategy) Resolve(ctx context.Context, rule escalation.Rule, ticket directory.Ticket) ([]directory.User, error) {
	designation := rule.RecipientDesignation
	if designation == "" {
		designation = rule.RecipientRole
	}
	if designation == "" {
		return nil, nil
	}
	users, err := s.dir.ActiveByDesignation(ctx, designation)
	if err != nil {
		return nil, err
	}
	own, others := splitByDepartment(users, ticket.DepartmentID)
	return padPreferred(own, others, s.selector, recipientCap(rule)), nil
}

func splitByDepartment(users []directory.User, departmentID string) (own, others []directory.User) {
	for _, user := range users {
		if departmentID != "" && user.DepartmentID == departmentID {
			own = append(own, user)
			continue
		}
		others = append(others, user)
	}
	return own, others
}

// padPreferred keeps every preferred user (up to the cap), then fills the
// remainder from the selector.
func padPreferred(preferred, others []directory.User, selector Selector, limit int) []directory.User {
	if limit <= 0 {
		return nil
	}
	result := make([]directory.User, 0, limit)
	for _, user := range preferred {
		result = append(result, user)
		if len(result) >= limit {
			return result
		}
	}
	if selector == nil {
		return result
	}
	result = append(result, selector.Pick(others, limit-len(result))...)
	return result
}
