package domain

// Ritmo (pacing) opcional por conta.
//
// Contratos sem dependência de net/http. A camada de infra usa golang.org/x/time/rate.

import "time"

// Limiter representa algo que pode decidir se uma ação é permitida agora.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por username.
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(username string) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é a recomendação devolvida ao chamador quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
