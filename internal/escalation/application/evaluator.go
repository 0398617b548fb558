package application

import (
	"errors"
	"fmt"

	escalation "servicedesk-cloud/internal/escalation/domain"
	sla "servicedesk-cloud/internal/sla/domain"
)

// RepeatPolicy names the re-fire behavior for recurring_breach rules.
type RepeatPolicy string

const (
	// RepeatPolicyIntervalBoundary fires one notification per crossed repeat
	// interval: a candidate is suppressed until the expected interval count
	// exceeds the highest repeat count already logged.
	RepeatPolicyIntervalBoundary RepeatPolicy = "interval_boundary"

	// RepeatPolicyCapOnly gates only on max_repeat_count, re-firing on every
	// evaluation once the first interval has elapsed. This reproduces the
	// legacy behavior and exists so the ambiguity stays visible.
	RepeatPolicyCapOnly RepeatPolicy = "cap_only"
)

// Valid returns true when the policy is supported.
func (p RepeatPolicy) Valid() bool {
	switch p {
	case RepeatPolicyIntervalBoundary, RepeatPolicyCapOnly:
		return true
	default:
		return false
	}
}

// History summarizes prior notifications for one (tracking, rule) pair.
type History struct {
	ExistingCount  int
	MaxRepeatCount int
}

// Decision is the evaluator output for one rule against one snapshot.
type Decision struct {
	Fire        bool
	Reason      string
	RepeatCount int
}

// Evaluator decides whether an escalation rule fires for a tracking snapshot.
type Evaluator struct {
	policy RepeatPolicy
}

// NewEvaluator constructs an evaluator with the given recurring re-fire policy.
func NewEvaluator(policy RepeatPolicy) (*Evaluator, error) {
	if policy == "" {
		policy = RepeatPolicyIntervalBoundary
	}
	if !policy.Valid() {
		return nil, errors.New("evaluator: invalid repeat policy")
	}
	return &Evaluator{policy: policy}, nil
}

// Policy returns the configured recurring re-fire policy.
func (e *Evaluator) Policy() RepeatPolicy {
	if e == nil {
		return ""
	}
	return e.policy
}

// Evaluate applies the rule's trigger window to the tracking snapshot and the
// idempotence gate to the notification history. It never consults the clock:
// elapsed business minutes are the only time input.
func (e *Evaluator) Evaluate(rule escalation.Rule, tracking sla.Tracking, slaRule sla.Rule, hist History) Decision {
	if e == nil {
		return Decision{Reason: "nil evaluator"}
	}
	if !tracking.Open() {
		return Decision{Reason: "tracking resolved or paused"}
	}

	base := slaRule.MaxTATMinutes
	if rule.Reference == escalation.ReferenceAvgTAT {
		base = slaRule.AvgTATMinutes
	}
	point := base + rule.OffsetMinutes
	elapsed := tracking.ElapsedMinutes

	switch rule.Trigger {
	case escalation.TriggerWarningZone, escalation.TriggerImminentBreach:
		// Both trigger types share the pre-threshold window; they differ only
		// in the configured offset.
		if elapsed < point || elapsed >= base {
			return Decision{Reason: fmt.Sprintf("elapsed %dm outside window [%dm,%dm)", elapsed, point, base)}
		}
		return e.gateOnce(rule, hist, fmt.Sprintf("elapsed %dm within window [%dm,%dm)", elapsed, point, base))
	case escalation.TriggerBreached:
		if elapsed < base {
			return Decision{Reason: fmt.Sprintf("elapsed %dm below threshold %dm", elapsed, base)}
		}
		return e.gateOnce(rule, hist, fmt.Sprintf("elapsed %dm breached threshold %dm", elapsed, base))
	case escalation.TriggerRecurringBreach:
		return e.evaluateRecurring(rule, hist, elapsed, base)
	default:
		return Decision{Reason: fmt.Sprintf("unsupported trigger type %q", rule.Trigger)}
	}
}

func (e *Evaluator) gateOnce(rule escalation.Rule, hist History, firedReason string) Decision {
	if hist.ExistingCount > 0 {
		return Decision{Reason: fmt.Sprintf("level %d already notified", rule.Level)}
	}
	return Decision{Fire: true, Reason: firedReason, RepeatCount: hist.ExistingCount + 1}
}

func (e *Evaluator) evaluateRecurring(rule escalation.Rule, hist History, elapsed, base int) Decision {
	if elapsed < base {
		return Decision{Reason: fmt.Sprintf("elapsed %dm below threshold %dm", elapsed, base)}
	}
	if rule.RepeatIntervalMinutes <= 0 {
		return Decision{Reason: "recurring rule without repeat interval"}
	}
	overage := elapsed - base
	expected := overage / rule.RepeatIntervalMinutes
	if expected <= 0 {
		return Decision{Reason: fmt.Sprintf("overage %dm below first interval %dm", overage, rule.RepeatIntervalMinutes)}
	}
	if rule.MaxRepeatCount > 0 && hist.MaxRepeatCount >= rule.MaxRepeatCount {
		return Decision{Reason: fmt.Sprintf("repeat cap %d reached", rule.MaxRepeatCount)}
	}
	if e.policy == RepeatPolicyIntervalBoundary && expected <= hist.MaxRepeatCount {
		return Decision{Reason: fmt.Sprintf("interval %d already notified", hist.MaxRepeatCount)}
	}
	return Decision{
		Fire:        true,
		Reason:      fmt.Sprintf("overage %dm crossed interval %d of %dm", overage, hist.MaxRepeatCount+1, rule.RepeatIntervalMinutes),
		RepeatCount: hist.MaxRepeatCount + 1,
	}
}
