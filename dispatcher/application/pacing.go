package application

import (
	"time"

	"account-dispatcher/dispatcher/domain"
)

// PacingService decide se a conta pode iniciar mais um despacho agora.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Sem Store, tudo é permitido.
type PacingService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s PacingService) Decide(username string) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(username)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter}
}
