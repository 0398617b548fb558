package recipients

import (
	"math/rand"
	"sort"
	"sync"

	directory "servicedesk-cloud/internal/directory/domain"
)

// Selector picks up to n users from a candidate set. The production default
// is random (the legacy system ordered padding candidates randomly in SQL);
// tests inject a seed or the deterministic round-robin implementation.
type Selector interface {
	Pick(candidates []directory.User, n int) []directory.User
}

// RandomSelector shuffles candidates before taking the first n.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector constructs a seeded random selector.
func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

// Pick returns up to n candidates in shuffled order.
func (s *RandomSelector) Pick(candidates []directory.User, n int) []directory.User {
	if s == nil || n <= 0 || len(candidates) == 0 {
		return nil
	}
	shuffled := make([]directory.User, len(candidates))
	copy(shuffled, candidates)
	s.mu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.mu.Unlock()
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// RoundRobinSelector picks candidates in id order, rotating the starting
// offset on each call so load spreads deterministically.
type RoundRobinSelector struct {
	mu   sync.Mutex
	next int
}

// NewRoundRobinSelector constructs a round-robin selector.
func NewRoundRobinSelector() *RoundRobinSelector {
	return &RoundRobinSelector{}
}

// Pick returns up to n candidates starting at the rotating offset.
func (s *RoundRobinSelector) Pick(candidates []directory.User, n int) []directory.User {
	if s == nil || n <= 0 || len(candidates) == 0 {
		return nil
	}
	ordered := make([]directory.User, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	s.mu.Lock()
	start := s.next % len(ordered)
	s.next++
	s.mu.Unlock()

	if n > len(ordered) {
		n = len(ordered)
	}
	result := make([]directory.User, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, ordered[(start+i)%len(ordered)])
	}
	return result
}
