package memory

import (
	"context"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/routing"
)

func (s *Store) ListRules(context.Context) ([]domain.RoutingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoutingRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *r)
	}
	return out, nil
}

func (s *Store) CreateRule(_ context.Context, r *domain.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleSeq++
	r.Seq = s.ruleSeq
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return routing.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}
