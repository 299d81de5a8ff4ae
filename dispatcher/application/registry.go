package application

import (
	"errors"
	"fmt"
	"iter"

	"account-dispatcher/dispatcher/domain"
)

// Registry é o conjunto imutável de contas, carregado uma vez no início do processo.
// Leituras concorrentes não precisam de lock.
type Registry struct {
	accounts []domain.Account
	index    map[string]int
}

// Load valida todos os registros e monta o registry.
// Qualquer registro inválido ou username repetido falha com *domain.ValidationError.
func Load(records []domain.Record) (*Registry, error) {
	r := &Registry{
		accounts: make([]domain.Account, 0, len(records)),
		index:    make(map[string]int, len(records)),
	}
	for i, rec := range records {
		acc, err := domain.NewAccount(rec)
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				ve.Index = i
			}
			return nil, err
		}
		if _, dup := r.index[acc.Username()]; dup {
			return nil, &domain.ValidationError{
				Index:    i,
				Username: acc.Username(),
				Field:    "username",
				Reason:   "is not unique",
			}
		}
		r.index[acc.Username()] = len(r.accounts)
		r.accounts = append(r.accounts, acc)
	}
	return r, nil
}

func (r *Registry) Get(username string) (domain.Account, error) {
	i, ok := r.index[username]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: %q", domain.ErrNotFound, username)
	}
	return r.accounts[i], nil
}

// ListActive devolve uma sequência preguiçosa das contas ativas, na ordem de origem.
// Cada chamada começa uma iteração nova.
func (r *Registry) ListActive() iter.Seq[domain.Account] {
	return func(yield func(domain.Account) bool) {
		for _, acc := range r.accounts {
			if !acc.Active() {
				continue
			}
			if !yield(acc) {
				return
			}
		}
	}
}

// All inclui as inativas.
func (r *Registry) All() iter.Seq[domain.Account] {
	return func(yield func(domain.Account) bool) {
		for _, acc := range r.accounts {
			if !yield(acc) {
				return
			}
		}
	}
}

func (r *Registry) Len() int { return len(r.accounts) }
