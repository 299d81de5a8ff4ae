package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Request é uma requisição de saída feita em nome de uma conta.
type Request struct {
	// ID identifica o despacho; gerado pelo dispatcher quando vazio.
	ID      string
	Method  string
	URL     string
	Header  map[string][]string
	Body    []byte
	// Balance é o retrato do saldo informado pelo chamador, comparado com min_balance.
	Balance decimal.Decimal
	// Timeout opcional por chamada. 0 = sem prazo além do ctx do chamador.
	Timeout time.Duration
}

type Response struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
}

// Transport executa a requisição através do proxy da conta.
//
// Falhas de conexão/timeout devem voltar como *NetworkError. Qualquer status
// HTTP recebido volta como Response (a classificação 2xx fica com o dispatcher).
type Transport interface {
	Do(ctx context.Context, acc Account, req Request) (*Response, error)
}
