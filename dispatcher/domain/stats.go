package domain

import (
	"context"
	"time"
)

// Resultados possíveis de um despacho.
const (
	OutcomeOK                  = "ok"
	OutcomeInactive            = "inactive"
	OutcomeRejected            = "rejected"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeUpstreamError       = "upstream_error"
	OutcomeNetworkError        = "network_error"
	OutcomeInvalidRequest      = "invalid_request"
	OutcomeNoEligibleAccount   = "no_eligible_account"
)

// StatsEvent representa o desfecho de um despacho.
//
// Nunca carrega a senha nem a URL do proxy. Host é apenas o host do destino
// (sem path/query) para manter a cardinalidade sob controle.
type StatsEvent struct {
	RequestID string `json:"request_id"`
	Username  string `json:"account"`
	Outcome   string `json:"outcome"`

	Method     string `json:"method"`
	Host       string `json:"host"`
	StatusCode int    `json:"status,omitempty"`

	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// StatsStore é a estratégia de registro dos desfechos.
//
// Implementações podem gravar em Redis, NATS, log, memória, etc.
// O dispatcher trata erro como best-effort (nunca derruba o despacho).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
