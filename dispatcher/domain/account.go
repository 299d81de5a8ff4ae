package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Secret guarda um valor sensível (ex: senha da conta).
//
// Nunca renderiza o valor em logs, %v/%#v ou JSON. Use Reveal apenas na
// fronteira que realmente precisa do valor (ex: login).
type Secret string

const redacted = "[REDACTED]"

func (s Secret) Reveal() string { return string(s) }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Valores usados quando a chave não aparece no arquivo de contas.
const (
	DefaultMaxConcurrentBets = 3
	DefaultMinBalance        = 100
)

// Record é o formato externo de uma conta, como vem do arquivo de configuração.
//
// Active é ponteiro para distinguir "ausente" (padrão true) de false explícito.
type Record struct {
	Username          string  `json:"username" mapstructure:"username"`
	Password          Secret  `json:"password" mapstructure:"password"`
	Active            *bool   `json:"active" mapstructure:"active"`
	MaxConcurrentBets int     `json:"max_concurrent_bets" mapstructure:"max_concurrent_bets"`
	MinBalance        float64 `json:"min_balance" mapstructure:"min_balance"`
	Proxy             string  `json:"proxy" mapstructure:"proxy"`
}

// Account é a identidade e a política de despacho de uma conta.
//
// Os campos são privados: depois de construída a conta é imutável.
type Account struct {
	username      string
	password      Secret
	active        bool
	maxConcurrent int
	minBalance    decimal.Decimal
	proxy         url.URL
}

// NewAccount valida um Record isolado e constrói a Account correspondente.
// Unicidade de username é responsabilidade do registry.
func NewAccount(rec Record) (Account, error) {
	username := strings.TrimSpace(rec.Username)
	if username == "" {
		return Account{}, invalid("", "username", "must not be empty")
	}
	if rec.MaxConcurrentBets <= 0 {
		return Account{}, invalid(username, "max_concurrent_bets", fmt.Sprintf("must be > 0, got %d", rec.MaxConcurrentBets))
	}
	minBalance := decimal.NewFromFloat(rec.MinBalance)
	if minBalance.IsNegative() {
		return Account{}, invalid(username, "min_balance", "must be >= 0")
	}
	proxy, err := parseProxyURL(rec.Proxy)
	if err != nil {
		return Account{}, invalid(username, "proxy", err.Error())
	}

	active := true
	if rec.Active != nil {
		active = *rec.Active
	}

	return Account{
		username:      username,
		password:      rec.Password,
		active:        active,
		maxConcurrent: rec.MaxConcurrentBets,
		minBalance:    minBalance,
		proxy:         *proxy,
	}, nil
}

func invalid(username, field, reason string) *ValidationError {
	return &ValidationError{Index: -1, Username: username, Field: field, Reason: reason}
}

func parseProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		// a mensagem do url.Error repete a URL inteira, que pode conter credenciais
		return nil, errors.New("malformed url")
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("missing host")
	}
	if u.Port() == "" {
		return nil, errors.New("missing port")
	}
	if u.Path != "" && u.Path != "/" {
		return nil, errors.New("unexpected path")
	}
	return u, nil
}

func (a Account) Username() string            { return a.username }
func (a Account) Password() Secret            { return a.password }
func (a Account) Active() bool                { return a.active }
func (a Account) MaxConcurrent() int          { return a.maxConcurrent }
func (a Account) MinBalance() decimal.Decimal { return a.minBalance }

// Proxy retorna uma cópia da URL do proxy (incluindo credenciais embutidas).
func (a Account) Proxy() *url.URL {
	u := a.proxy
	if a.proxy.User != nil {
		user := *a.proxy.User
		u.User = &user
	}
	return &u
}

// ProxyRedacted é a forma segura de exibir o proxy em logs.
func (a Account) ProxyRedacted() string {
	return a.proxy.Redacted()
}

// String nunca inclui a senha nem as credenciais do proxy.
func (a Account) String() string {
	return fmt.Sprintf("account{username=%s active=%t max=%d min_balance=%s proxy=%s}",
		a.username, a.active, a.maxConcurrent, a.minBalance.String(), a.ProxyRedacted())
}

// AccountLoad é o retrato da carga atual de uma conta.
type AccountLoad struct {
	Username string `json:"username"`
	InFlight int    `json:"in_flight"`
	Max      int    `json:"max"`
}

func (a Account) GoString() string { return a.String() }
