package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	sla "servicedesk-cloud/internal/sla/domain"
)

// TrackingStore is an in-memory SLA tracking store for tests and local runs.
type TrackingStore struct {
	mu        sync.RWMutex
	trackings map[string]*sla.Tracking
	rules     map[string]*sla.Rule
	refresh   func(ctx context.Context, ticketID string) error
}

// NewTrackingStore constructs an empty store.
func NewTrackingStore() *TrackingStore {
	return &TrackingStore{
		trackings: make(map[string]*sla.Tracking),
		rules:     make(map[string]*sla.Rule),
	}
}

// PutRule stores an SLA rule.
func (s *TrackingStore) PutRule(rule sla.Rule) {
	s.mu.Lock()
	stored := rule
	s.rules[rule.ID] = &stored
	s.mu.Unlock()
}

// PutTracking stores a tracking record.
func (s *TrackingStore) PutTracking(tracking sla.Tracking) {
	s.mu.Lock()
	stored := tracking
	s.trackings[tracking.ID] = &stored
	s.mu.Unlock()
}

// SetElapsed updates elapsed minutes for a tracking record.
func (s *TrackingStore) SetElapsed(trackingID string, minutes int) {
	s.mu.Lock()
	if tracking, ok := s.trackings[trackingID]; ok {
		tracking.ElapsedMinutes = minutes
	}
	s.mu.Unlock()
}

// SetRefreshFunc overrides RefreshElapsed, letting tests inject failures.
func (s *TrackingStore) SetRefreshFunc(refresh func(ctx context.Context, ticketID string) error) {
	s.mu.Lock()
	s.refresh = refresh
	s.mu.Unlock()
}

// TrackingByTicket returns the tracking record for a ticket.
func (s *TrackingStore) TrackingByTicket(ctx context.Context, ticketID string) (*sla.Tracking, error) {
	_ = ctx
	if ticketID == "" {
		return nil, errors.New("memory tracking: empty ticket id")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tracking := range s.trackings {
		if tracking.TicketID == ticketID {
			clone := *tracking
			return &clone, nil
		}
	}
	return nil, nil
}

// TrackingByID returns a tracking record by id.
func (s *TrackingStore) TrackingByID(ctx context.Context, trackingID string) (*sla.Tracking, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracking, ok := s.trackings[trackingID]
	if !ok {
		return nil, nil
	}
	clone := *tracking
	return &clone, nil
}

// RefreshElapsed invokes the injected refresh hook when present.
func (s *TrackingStore) RefreshElapsed(ctx context.Context, ticketID string) error {
	s.mu.RLock()
	refresh := s.refresh
	s.mu.RUnlock()
	if refresh == nil {
		return nil
	}
	return refresh(ctx, ticketID)
}

// ListOpen returns open, unresolved, unpaused tracking records.
func (s *TrackingStore) ListOpen(ctx context.Context) ([]sla.Tracking, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []sla.Tracking
	for _, tracking := range s.trackings {
		if tracking.Open() {
			result = append(result, *tracking)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TicketID < result[j].TicketID })
	return result, nil
}

// RuleByID returns an SLA rule by id.
func (s *TrackingStore) RuleByID(ctx context.Context, slaRuleID string) (*sla.Rule, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[slaRuleID]
	if !ok {
		return nil, nil
	}
	clone := *rule
	return &clone, nil
}
