package application

import (
	"context"
	"iter"
	"sync"
	"time"

	"account-dispatcher/dispatcher/domain"
)

// Admission concentra a regra de vagas por conta, sem saber nada sobre HTTP.
//
// Cada conta tem o seu SlotPool; contas diferentes nunca disputam o mesmo lock.
type Admission struct {
	pools   sync.Map // username -> domain.SlotPool
	newPool func(max int) domain.SlotPool

	// AcquireTimeout > 0 faz a admissão esperar por uma vaga até esse prazo.
	// Com 0 (padrão) a conta cheia é rejeitada na hora.
	AcquireTimeout time.Duration
}

// NewAdmission cria os pools das contas conhecidas de antemão.
// Contas fora dessa lista ganham um pool na primeira admissão.
func NewAdmission(newPool func(max int) domain.SlotPool, accounts iter.Seq[domain.Account]) *Admission {
	a := &Admission{newPool: newPool}
	if accounts != nil {
		for acc := range accounts {
			a.pool(acc)
		}
	}
	return a
}

func (a *Admission) pool(acc domain.Account) domain.SlotPool {
	if p, ok := a.pools.Load(acc.Username()); ok {
		return p.(domain.SlotPool)
	}
	p, _ := a.pools.LoadOrStore(acc.Username(), a.newPool(acc.MaxConcurrent()))
	return p.(domain.SlotPool)
}

// Check antecipa a rejeição por concorrência sem ocupar vaga.
// O resultado é só uma leitura; a garantia do limite vem de Acquire.
func (a *Admission) Check(acc domain.Account) error {
	if a.AcquireTimeout > 0 {
		return nil
	}
	p := a.pool(acc)
	if n := p.InFlight(); n >= p.Cap() {
		return rejected(acc, n, p.Cap())
	}
	return nil
}

// Acquire ocupa uma vaga da conta.
//   - Se `AcquireTimeout <= 0`, não espera: conta cheia devolve *domain.AdmissionError.
//   - Se `AcquireTimeout > 0`, espera até o timeout (ou até ctx cancelar).
//
// O release devolvido libera a vaga exatamente uma vez.
func (a *Admission) Acquire(ctx context.Context, acc domain.Account) (func(), error) {
	p := a.pool(acc)

	if a.AcquireTimeout <= 0 {
		if release, ok := p.TryAcquire(); ok {
			return release, nil
		}
		return nil, rejected(acc, p.InFlight(), p.Cap())
	}

	acqCtx, cancel := context.WithTimeout(ctx, a.AcquireTimeout)
	defer cancel()
	if release, ok := p.Acquire(acqCtx); ok {
		return release, nil
	}
	return nil, rejected(acc, p.InFlight(), p.Cap())
}

func (a *Admission) InFlight(acc domain.Account) int {
	return a.pool(acc).InFlight()
}

// Snapshot retrata a carga de cada conta da sequência.
func (a *Admission) Snapshot(accounts iter.Seq[domain.Account]) []domain.AccountLoad {
	var out []domain.AccountLoad
	for acc := range accounts {
		p := a.pool(acc)
		out = append(out, domain.AccountLoad{
			Username: acc.Username(),
			InFlight: p.InFlight(),
			Max:      p.Cap(),
		})
	}
	return out
}

func rejected(acc domain.Account, inFlight, limit int) *domain.AdmissionError {
	return &domain.AdmissionError{
		Username: acc.Username(),
		Reason:   domain.AdmissionConcurrency,
		InFlight: inFlight,
		Limit:    limit,
	}
}
