package rules

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the durable collection of alert rules. Implementations are pure data
// access: they validate on write but apply no alerting policy.
type Store interface {
	Create(ctx context.Context, rule *Rule) (*Rule, error)
	Get(ctx context.Context, id string) (*Rule, error)
	Update(ctx context.Context, id string, patch Patch) (*Rule, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]*Rule, error)
}

// MemoryStore keeps rules in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory rule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]*Rule),
		now:   time.Now,
	}
}

// Create validates and stores a new rule. An empty ID is replaced with a UUID.
func (s *MemoryStore) Create(ctx context.Context, rule *Rule) (*Rule, error) {
	if err := Validate(rule); err != nil {
		return nil, err
	}

	r := rule.Clone()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now().UTC()
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[r.ID]; exists {
		return nil, fmt.Errorf("rule already exists: %s", r.ID)
	}
	s.rules[r.ID] = r
	return r.Clone(), nil
}

// Get returns a copy of the rule with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return r.Clone(), nil
}

// Update applies patch to the rule. A failed validation leaves the rule unchanged.
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if patch.Version != nil && *patch.Version != current.Version {
		return nil, fmt.Errorf("%w: expected version %d, have %d", ErrVersionMismatch, *patch.Version, current.Version)
	}

	updated := patch.Apply(current)
	if err := Validate(updated); err != nil {
		return nil, err
	}
	updated.Version = current.Version + 1
	updated.UpdatedAt = s.now().UTC()
	s.rules[id] = updated
	return updated.Clone(), nil
}

// Delete removes a rule.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(s.rules, id)
	return nil
}

// List returns the rules matching filter, oldest first.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Rule) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
