package memory

import (
	"context"
	"sort"
	"sync"

	escalation "servicedesk-cloud/internal/escalation/domain"
)

// RuleRepository is an in-memory escalation rule repository.
type RuleRepository struct {
	mu    sync.RWMutex
	rules []escalation.Rule
}

// NewRuleRepository constructs a repository seeded with rules.
func NewRuleRepository(rules ...escalation.Rule) *RuleRepository {
	repo := &RuleRepository{}
	repo.rules = append(repo.rules, rules...)
	return repo
}

// Add appends a rule.
func (r *RuleRepository) Add(rule escalation.Rule) {
	r.mu.Lock()
	r.rules = append(r.rules, rule)
	r.mu.Unlock()
}

// ActiveBySlaRule returns enabled rules for an SLA rule, ascending by level.
func (r *RuleRepository) ActiveBySlaRule(ctx context.Context, slaRuleID string) ([]escalation.Rule, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []escalation.Rule
	for _, rule := range r.rules {
		if rule.SlaRuleID == slaRuleID && rule.Enabled {
			result = append(result, rule)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Level < result[j].Level })
	return result, nil
}
