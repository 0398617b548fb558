package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	directory "servicedesk-cloud/internal/directory/domain"
	escalation "servicedesk-cloud/internal/escalation/domain"
	"servicedesk-cloud/internal/observability/metrics"
	sla "servicedesk-cloud/internal/sla/domain"
)

// TrackingStore supplies per-ticket elapsed business time and SLA thresholds.
// Mutable only through RefreshElapsed, which delegates to the external
// business-calendar oracle.
type TrackingStore interface {
	TrackingByTicket(ctx context.Context, ticketID string) (*sla.Tracking, error)
	TrackingByID(ctx context.Context, trackingID string) (*sla.Tracking, error)
	RefreshElapsed(ctx context.Context, ticketID string) error
	ListOpen(ctx context.Context) ([]sla.Tracking, error)
	RuleByID(ctx context.Context, slaRuleID string) (*sla.Rule, error)
}

// RuleRepository supplies active escalation rules, ordered by level.
type RuleRepository interface {
	ActiveBySlaRule(ctx context.Context, slaRuleID string) ([]escalation.Rule, error)
}

// NotificationLog is the idempotence guard and single source of truth for
// fired escalations.
type NotificationLog interface {
	History(ctx context.Context, trackingID, ruleID string) (History, error)
	Record(ctx context.Context, notification *escalation.Notification) error
	UpdateStatus(ctx context.Context, notificationID string, status escalation.DeliveryStatus, sentAt time.Time, errorMessage string) error
	ListPending(ctx context.Context) ([]escalation.Notification, error)
	ListByTracking(ctx context.Context, trackingID string) ([]escalation.Notification, error)
}

// TicketReader resolves ticket context for recipient routing and templating.
type TicketReader interface {
	TicketByID(ctx context.Context, ticketID string) (*directory.Ticket, error)
}

// RecipientResolver maps a rule's recipient settings to addressable users.
type RecipientResolver interface {
	Resolve(ctx context.Context, rule escalation.Rule, ticket directory.Ticket) ([]escalation.Recipient, error)
}

// TicketLocker serializes evaluation per ticket across overlapping sweeps.
type TicketLocker interface {
	TryAcquire(ctx context.Context, ticketID string) (release func(), ok bool, err error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// TicketResult is the per-ticket outcome of a sweep.
type TicketResult struct {
	TicketID string
	Fired    []escalation.Notification
	Err      error
}

// PendingNotification joins a pending record with the ticket context a
// delivery worker needs for templating.
type PendingNotification struct {
	Notification escalation.Notification
	Ticket       directory.Ticket
}

// Service drives escalation evaluation for single tickets and full sweeps.
type Service struct {
	store     TrackingStore
	rules     RuleRepository
	log       NotificationLog
	tickets   TicketReader
	resolver  RecipientResolver
	evaluator *Evaluator
	locker    TicketLocker
	clock     Clock
	logger    *log.Logger
	workers   int
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithLocker assigns a per-ticket locker.
func WithLocker(locker TicketLocker) ServiceOption {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithWorkers bounds sweep parallelism.
func WithWorkers(workers int) ServiceOption {
	return func(s *Service) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// WithRepeatPolicy selects the recurring-breach re-fire policy.
func WithRepeatPolicy(policy RepeatPolicy) ServiceOption {
	return func(s *Service) {
		if evaluator, err := NewEvaluator(policy); err == nil {
			s.evaluator = evaluator
		}
	}
}

// NewService constructs the escalation engine.
func NewService(store TrackingStore, rules RuleRepository, notificationLog NotificationLog, tickets TicketReader, resolver RecipientResolver, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("escalation service: nil tracking store")
	}
	if rules == nil {
		return nil, errors.New("escalation service: nil rule repository")
	}
	if notificationLog == nil {
		return nil, errors.New("escalation service: nil notification log")
	}
	if tickets == nil {
		return nil, errors.New("escalation service: nil ticket reader")
	}
	if resolver == nil {
		return nil, errors.New("escalation service: nil recipient resolver")
	}
	evaluator, err := NewEvaluator(RepeatPolicyIntervalBoundary)
	if err != nil {
		return nil, err
	}
	service := &Service{
		store:     store,
		rules:     rules,
		log:       notificationLog,
		tickets:   tickets,
		resolver:  resolver,
		evaluator: evaluator,
		clock:     systemClock{},
		logger:    logger,
		workers:   4,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ProcessTicket evaluates every active rule for one ticket in ascending level
// order and records each fired escalation. A missing, resolved, or paused
// tracking record is a no-op.
func (s *Service) ProcessTicket(ctx context.Context, ticketID string) ([]escalation.Notification, error) {
	if s == nil {
		return nil, errors.New("escalation service: nil service")
	}
	if ticketID == "" {
		return nil, errors.New("escalation service: empty ticket id")
	}

	if s.locker != nil {
		release, ok, err := s.locker.TryAcquire(ctx, ticketID)
		if err != nil {
			return nil, fmt.Errorf("escalation service: acquire lease: %w", err)
		}
		if !ok {
			// Another sweep holds the ticket; its evaluation covers this tick.
			s.printf("ticket lease held elsewhere: ticket=%s", ticketID)
			return nil, nil
		}
		defer release()
	}

	if err := s.store.RefreshElapsed(ctx, ticketID); err != nil {
		return nil, fmt.Errorf("escalation service: refresh elapsed: %w", err)
	}
	tracking, err := s.store.TrackingByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("escalation service: load tracking: %w", err)
	}
	if tracking == nil || !tracking.Open() {
		return nil, nil
	}

	slaRule, err := s.store.RuleByID(ctx, tracking.SlaRuleID)
	if err != nil {
		return nil, fmt.Errorf("escalation service: load sla rule: %w", err)
	}
	if slaRule == nil {
		return nil, fmt.Errorf("escalation service: sla rule %s not found", tracking.SlaRuleID)
	}

	rules, err := s.rules.ActiveBySlaRule(ctx, tracking.SlaRuleID)
	if err != nil {
		return nil, fmt.Errorf("escalation service: load escalation rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Level < rules[j].Level })

	ticket, err := s.tickets.TicketByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("escalation service: load ticket: %w", err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("escalation service: ticket %s not found", ticketID)
	}

	var fired []escalation.Notification
	for _, rule := range rules {
		hist, err := s.log.History(ctx, tracking.ID, rule.ID)
		if err != nil {
			// Never assume "fire" on an unreadable history; retry next sweep.
			return fired, fmt.Errorf("escalation service: read history: %w", err)
		}
		decision := s.evaluator.Evaluate(rule, *tracking, *slaRule, hist)
		if !decision.Fire {
			continue
		}

		recipientList, rerr := s.resolver.Resolve(ctx, rule, *ticket)
		if rerr != nil {
			// A missed notification is worse than one with partial recipients.
			metrics.IncResolverDegraded()
			s.printf("recipient resolution degraded: ticket=%s rule=%s err=%v", ticketID, rule.ID, rerr)
		}

		notification := escalation.Notification{
			ID:          escalation.BuildNotificationID(tracking.ID, rule.ID, decision.RepeatCount),
			TrackingID:  tracking.ID,
			RuleID:      rule.ID,
			Level:       rule.Level,
			Trigger:     rule.Trigger,
			Recipients:  recipientList,
			RepeatCount: decision.RepeatCount,
			Status:      escalation.StatusPending,
			CreatedAt:   s.clock.Now().UTC(),
		}
		if err := s.log.Record(ctx, &notification); err != nil {
			if errors.Is(err, escalation.ErrDuplicateNotification) {
				metrics.IncDuplicateSkipped()
				s.printf("duplicate escalation skipped: ticket=%s rule=%s repeat=%d", ticketID, rule.ID, decision.RepeatCount)
				continue
			}
			return fired, fmt.Errorf("escalation service: record notification: %w", err)
		}
		metrics.IncEscalationFired(string(rule.Trigger))
		s.printf("escalation fired: ticket=%s rule=%s level=%d repeat=%d reason=%q recipients=%d",
			ticketID, rule.ID, rule.Level, decision.RepeatCount, decision.Reason, len(notification.Recipients))
		fired = append(fired, notification)
	}
	return fired, nil
}

// ProcessAllPending sweeps every open, unresolved, unpaused tracking record.
// Tickets are processed by a bounded worker pool; one failing ticket never
// aborts the sweep. Cancellation stops dispatching new tickets while letting
// in-flight evaluations finish.
func (s *Service) ProcessAllPending(ctx context.Context) ([]TicketResult, error) {
	if s == nil {
		return nil, errors.New("escalation service: nil service")
	}
	start := s.clock.Now()

	open, err := s.store.ListOpen(ctx)
	if err != nil {
		metrics.ObserveSweep(metrics.ResultError, s.clock.Now().Sub(start))
		return nil, fmt.Errorf("escalation service: list open tracking: %w", err)
	}
	if len(open) == 0 {
		metrics.ObserveSweep(metrics.ResultSuccess, s.clock.Now().Sub(start))
		return nil, nil
	}

	results := make([]TicketResult, len(open))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := s.workers
	if workers > len(open) {
		workers = len(open)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				ticketID := open[idx].TicketID
				fired, err := s.ProcessTicket(ctx, ticketID)
				results[idx] = TicketResult{TicketID: ticketID, Fired: fired, Err: err}
				if err != nil {
					metrics.IncSweepTicket(metrics.ResultError)
					s.printf("sweep ticket error: ticket=%s err=%v", ticketID, err)
					continue
				}
				metrics.IncSweepTicket(metrics.ResultSuccess)
			}
		}()
	}

dispatch:
	for idx := range open {
		select {
		case <-ctx.Done():
			for rest := idx; rest < len(open); rest++ {
				results[rest] = TicketResult{TicketID: open[rest].TicketID, Err: ctx.Err()}
			}
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	metrics.ObserveSweep(metrics.ResultSuccess, s.clock.Now().Sub(start))
	return results, nil
}

// History returns every notification recorded for a ticket's tracking record,
// for UI and audit display.
func (s *Service) History(ctx context.Context, ticketID string) ([]escalation.Notification, error) {
	if s == nil {
		return nil, errors.New("escalation service: nil service")
	}
	if ticketID == "" {
		return nil, errors.New("escalation service: empty ticket id")
	}
	tracking, err := s.store.TrackingByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if tracking == nil {
		return nil, nil
	}
	return s.log.ListByTracking(ctx, tracking.ID)
}

// UpdateStatus records a delivery outcome reported by the delivery worker.
func (s *Service) UpdateStatus(ctx context.Context, notificationID string, status escalation.DeliveryStatus, sentAt time.Time, errorMessage string) error {
	if s == nil {
		return errors.New("escalation service: nil service")
	}
	if notificationID == "" {
		return errors.New("escalation service: empty notification id")
	}
	if !status.Settled() {
		return fmt.Errorf("escalation service: invalid delivery status %q", status)
	}
	if err := s.log.UpdateStatus(ctx, notificationID, status, sentAt, errorMessage); err != nil {
		return err
	}
	metrics.IncDelivery(string(status))
	return nil
}

// PendingForDelivery returns undelivered notifications joined with ticket
// context for templating.
func (s *Service) PendingForDelivery(ctx context.Context) ([]PendingNotification, error) {
	if s == nil {
		return nil, errors.New("escalation service: nil service")
	}
	pending, err := s.log.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]PendingNotification, 0, len(pending))
	for _, notification := range pending {
		item := PendingNotification{Notification: notification}
		tracking, err := s.store.TrackingByID(ctx, notification.TrackingID)
		if err == nil && tracking != nil {
			if ticket, terr := s.tickets.TicketByID(ctx, tracking.TicketID); terr == nil && ticket != nil {
				item.Ticket = *ticket
			}
		}
		if item.Ticket.ID == "" {
			s.printf("pending notification without ticket context: id=%s tracking=%s", notification.ID, notification.TrackingID)
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *Service) printf(format string, args ...any) {
	if s != nil && s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
