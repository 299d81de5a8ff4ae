package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrNotFound: conta desconhecida (erro do chamador).
	ErrNotFound = errors.New("account not found")
	// ErrInactiveAccount: conta desativada; permanente.
	ErrInactiveAccount = errors.New("account is inactive")
	// ErrInsufficientBalance: saldo informado abaixo de min_balance; permanente.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrAdmissionRejected: sem vaga (ou sem token) para a conta agora; transitório.
	ErrAdmissionRejected = errors.New("admission rejected")
	// ErrInvalidRequest: requisição de saída malformada (erro do chamador).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrResponseTooLarge: resposta 2xx acima do limite de corpo; vem dentro de NetworkError.
	ErrResponseTooLarge = errors.New("response body too large")
	// ErrNoEligibleAccount: nenhuma conta pôde atender e nenhuma recusa foi transitória
	// (todas inativas, sem saldo, ou não havia contas).
	ErrNoEligibleAccount = errors.New("no eligible account")
)

// ValidationError indica configuração inválida. Fatal apenas na carga inicial.
type ValidationError struct {
	// Index é a posição do registro na origem (-1 quando não se aplica).
	Index    int
	Username string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	msg := "invalid account"
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s #%d", msg, e.Index)
	}
	if e.Username != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Username)
	}
	return fmt.Sprintf("%s: %s %s", msg, e.Field, e.Reason)
}

// AdmissionError é o sinal de back-pressure. Casa com ErrAdmissionRejected via errors.Is.
type AdmissionError struct {
	Username string
	Reason   string // "concurrency" ou "rate"
	InFlight int
	Limit    int
	// RetryAfter é uma recomendação ao chamador. Se 0, não há recomendação.
	RetryAfter time.Duration
}

func (e *AdmissionError) Error() string {
	who := "admission rejected"
	if e.Username != "" {
		who += " for " + e.Username
	}
	if e.Reason == AdmissionRate {
		return who + ": rate limit"
	}
	return fmt.Sprintf("%s: %d/%d in flight", who, e.InFlight, e.Limit)
}

func (e *AdmissionError) Is(target error) bool { return target == ErrAdmissionRejected }

const (
	AdmissionConcurrency = "concurrency"
	AdmissionRate        = "rate"
)

// UpstreamError: o destino respondeu com status fora de 2xx.
type UpstreamError struct {
	StatusCode int
	// Body é o corpo truncado da resposta.
	Body string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// NetworkError: falha de transporte (conexão, proxy, timeout, cancelamento).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout informa se a falha foi por prazo estourado.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// IsTransient separa falhas que o chamador pode tentar de novo mais tarde
// (admissão, rede) das permanentes (inativa, saldo, validação).
func IsTransient(err error) bool {
	if errors.Is(err, ErrAdmissionRejected) {
		return true
	}
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Kind devolve um nome estável para o tipo do erro, usado em respostas e stats.
func Kind(err error) string {
	var (
		ve *ValidationError
		ue *UpstreamError
		ne *NetworkError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &ve):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRequest):
		return OutcomeInvalidRequest
	case errors.Is(err, ErrInactiveAccount):
		return OutcomeInactive
	case errors.Is(err, ErrAdmissionRejected):
		return OutcomeRejected
	case errors.Is(err, ErrInsufficientBalance):
		return OutcomeInsufficientBalance
	case errors.Is(err, ErrNoEligibleAccount):
		return OutcomeNoEligibleAccount
	case errors.As(err, &ue):
		return OutcomeUpstreamError
	case errors.As(err, &ne):
		return OutcomeNetworkError
	default:
		return "internal_error"
	}
}
