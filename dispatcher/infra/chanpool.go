package infra

import (
	"context"
	"sync"

	"account-dispatcher/dispatcher/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com capacidade `max`.
//
// O envio no channel com buffer é a checagem e o incremento ao mesmo tempo,
// então duas goroutines nunca passam do limite.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) TryAcquire() (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return p.releaseOnce(), true
	default:
		return nil, false
	}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return p.releaseOnce(), true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *chanPool) InFlight() int { return len(p.sem) }
func (p *chanPool) Cap() int      { return cap(p.sem) }

// release idempotente: um segundo release não pode liberar a vaga de outro.
func (p *chanPool) releaseOnce() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-p.sem })
	}
}
