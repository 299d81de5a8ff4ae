package infra

import (
	"context"
	"sync"
	"time"

	"account-dispatcher/dispatcher/domain"

	"golang.org/x/time/rate"
)

// Store guarda um token bucket (x/time/rate) por username e implementa
// domain.LimiterStore para o PacingService.
//
// Cada conta tem o próprio bucket: rps tokens por segundo, até burst
// acumulados. Um despacho consome um token ao começar, então rps limita
// o ritmo de inícios da conta, não a concorrência (essa é do SlotPool).
// Contas sem despacho há mais de idleTTL perdem o bucket e voltam cheias.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*paced

	limit        rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type paced struct {
	bucket *rate.Limiter
	last   time.Time
}

type StoreOption func(*Store)

// WithIdleTTL define depois de quanto tempo sem uso o bucket da conta é descartado.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

// WithCleanupEvery define o intervalo do janitor; 0 desliga.
func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		accounts:     make(map[string]*paced),
		limit:        rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get devolve o bucket da conta, criando-o cheio no primeiro uso.
func (s *Store) Get(username string) domain.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.accounts[username]
	if !ok {
		p = &paced{bucket: rate.NewLimiter(s.limit, s.burst)}
		s.accounts[username] = p
	}
	p.last = time.Now()
	return p.bucket
}

// Tracked informa quantas contas têm bucket no momento.
func (s *Store) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// Cleanup descarta os buckets das contas ociosas e devolve quantos saíram.
func (s *Store) Cleanup() int {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for username, p := range s.accounts {
		if p.last.Before(cutoff) {
			delete(s.accounts, username)
			n++
		}
	}
	return n
}

// StartJanitor roda Cleanup a cada cleanupEvery até o ctx ser cancelado.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(s.cleanupEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
