package infra

import (
	"context"
	"sync"

	"account-dispatcher/dispatcher/domain"
)

// Counters agrega desfechos por tipo.
type Counters map[string]int64

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e para o endpoint de contas.
//
// Não faz expiração e não é indicada para produção com muitas contas.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byAccount map[string]Counters

	trackAccounts bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackAccounts(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackAccounts = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total:     make(Counters),
		byAccount: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[ev.Outcome]++
	if s.trackAccounts && ev.Username != "" {
		c, ok := s.byAccount[ev.Username]
		if !ok {
			c = make(Counters)
			s.byAccount[ev.Username] = c
		}
		c[ev.Outcome]++
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.total)
}

func (s *MemoryStatsStore) ByAccount(username string) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.byAccount[username])
}

func copyCounters(c Counters) Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
