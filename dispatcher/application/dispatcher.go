package application

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"sync"
	"time"

	"account-dispatcher/dispatcher/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/net/http/httpguts"
)

const defaultMaxErrorBody = 512

// Dispatcher executa uma requisição de saída em nome de uma conta,
// aplicando a admissão antes de tocar a rede. Não faz retry.
type Dispatcher struct {
	Admission *Admission
	Pacing    PacingService
	Transport domain.Transport
	// Stats é opcional e best-effort.
	Stats domain.StatsStore
	// MaxErrorBody limita o corpo guardado em UpstreamError. 0 = 512 bytes.
	MaxErrorBody int
}

// Dispatch checa, nesta ordem: conta ativa, vaga livre, saldo >= min_balance.
// Admitido, ocupa a vaga, faz a requisição pelo proxy da conta e libera a vaga
// ao final, qualquer que seja o desfecho.
func (d *Dispatcher) Dispatch(ctx context.Context, acc domain.Account, req domain.Request) (body []byte, err error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Method = methodOf(req)
	start := time.Now()
	ev := domain.StatsEvent{
		RequestID: req.ID,
		Username:  acc.Username(),
		Method:    req.Method,
		Host:      hostOf(req.URL),
		At:        start,
	}
	defer func() {
		ev.Outcome = domain.Kind(err)
		ev.Duration = time.Since(start)
		d.record(ctx, ev)
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !acc.Active() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInactiveAccount, acc.Username())
	}
	if err := d.Admission.Check(acc); err != nil {
		return nil, err
	}
	if req.Balance.LessThan(acc.MinBalance()) {
		return nil, fmt.Errorf("%w: %s has %s, needs %s",
			domain.ErrInsufficientBalance, acc.Username(), req.Balance.String(), acc.MinBalance().String())
	}

	release, err := d.Admission.Acquire(ctx, acc)
	if err != nil {
		return nil, err
	}
	defer release()

	if dec := d.Pacing.Decide(acc.Username()); !dec.Allowed {
		return nil, &domain.AdmissionError{
			Username:   acc.Username(),
			Reason:     domain.AdmissionRate,
			RetryAfter: dec.RetryAfter,
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := d.Transport.Do(ctx, acc, req)
	if err != nil {
		var ne *domain.NetworkError
		if !errors.As(err, &ne) && ctx.Err() != nil {
			err = &domain.NetworkError{Err: err}
		}
		return nil, err
	}

	ev.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       truncate(resp.Body, d.maxErrorBody()),
		}
	}
	return resp.Body, nil
}

// BalanceFunc devolve o retrato do saldo de uma conta, informado pelo chamador.
type BalanceFunc func(username string) decimal.Decimal

// DispatchAny roda pelas contas na ordem da sequência e despacha pela primeira
// que for admitida. Contas recusadas na admissão (inativa, cheia, sem saldo)
// são puladas; erros de upstream ou de rede voltam na hora, sem tentar a próxima.
//
// Se nenhuma conta for admitida, o erro é transitório (AdmissionError) apenas
// quando alguma conta estava cheia ou sem ritmo; senão é ErrNoEligibleAccount
// junto com os motivos permanentes.
func (d *Dispatcher) DispatchAny(ctx context.Context, accounts iter.Seq[domain.Account], balance BalanceFunc, req domain.Request) (domain.Account, []byte, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var skips skipped
	for acc := range accounts {
		if err := ctx.Err(); err != nil {
			return domain.Account{}, nil, &domain.NetworkError{Err: err}
		}

		body, err := d.Dispatch(ctx, acc, withBalance(req, acc, balance))
		if err == nil {
			return acc, body, nil
		}
		if !skips.add(err) {
			return acc, nil, err
		}
	}
	return domain.Account{}, nil, skips.err()
}

// DispatchResult é o desfecho de uma conta em DispatchAll.
type DispatchResult struct {
	Account domain.Account
	Body    []byte
	Err     error
}

// DispatchAll despacha a mesma requisição por todas as contas da sequência,
// em paralelo, cada uma com a própria admissão e liberação de vaga.
// Os resultados saem na ordem da sequência.
//
// O erro é nil se ao menos uma conta teve sucesso. Caso contrário, é o primeiro
// erro de upstream/rede; sem nenhum, vale a mesma regra de DispatchAny.
func (d *Dispatcher) DispatchAll(ctx context.Context, accounts iter.Seq[domain.Account], balance BalanceFunc, req domain.Request) ([]DispatchResult, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var results []DispatchResult
	for acc := range accounts {
		results = append(results, DispatchResult{Account: acc})
	}

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc := results[i].Account
			attempt := withBalance(req, acc, balance)
			attempt.ID = req.ID + "/" + acc.Username()
			results[i].Body, results[i].Err = d.Dispatch(ctx, acc, attempt)
		}()
	}
	wg.Wait()

	var (
		skips skipped
		first error
	)
	for _, r := range results {
		if r.Err == nil {
			return results, nil
		}
		if !skips.add(r.Err) && first == nil {
			first = r.Err
		}
	}
	if first != nil {
		return results, first
	}
	return results, skips.err()
}

func withBalance(req domain.Request, acc domain.Account, balance BalanceFunc) domain.Request {
	if balance != nil {
		req.Balance = balance(acc.Username())
	}
	return req
}

// skipped acumula as recusas de admissão de uma rodada por várias contas.
type skipped struct {
	tried     int
	admission *domain.AdmissionError
	inactive  bool
	balance   bool
}

// add registra a recusa e informa se ela permite seguir para a próxima conta.
func (s *skipped) add(err error) bool {
	var ae *domain.AdmissionError
	switch {
	case errors.As(err, &ae):
		s.admission = ae
	case errors.Is(err, domain.ErrAdmissionRejected):
		s.admission = &domain.AdmissionError{Reason: domain.AdmissionConcurrency}
	case errors.Is(err, domain.ErrInactiveAccount):
		s.inactive = true
	case errors.Is(err, domain.ErrInsufficientBalance):
		s.balance = true
	default:
		return false
	}
	s.tried++
	return true
}

func (s *skipped) err() error {
	if s.admission != nil {
		return fmt.Errorf("no account admitted (%d tried): %w", s.tried, s.admission)
	}

	var reasons []error
	if s.balance {
		reasons = append(reasons, domain.ErrInsufficientBalance)
	}
	if s.inactive {
		reasons = append(reasons, domain.ErrInactiveAccount)
	}
	if len(reasons) == 0 {
		return fmt.Errorf("%w: no accounts to try", domain.ErrNoEligibleAccount)
	}
	return fmt.Errorf("%w (%d tried): %w", domain.ErrNoEligibleAccount, s.tried, errors.Join(reasons...))
}

func (d *Dispatcher) record(ctx context.Context, ev domain.StatsEvent) {
	if d.Stats == nil {
		return
	}
	// o ctx do chamador pode já ter sido cancelado (timeout); o registro não depende dele
	_ = d.Stats.Record(context.WithoutCancel(ctx), ev)
}

func (d *Dispatcher) maxErrorBody() int {
	if d.MaxErrorBody <= 0 {
		return defaultMaxErrorBody
	}
	return d.MaxErrorBody
}

func validateRequest(req domain.Request) error {
	if !validMethod(req.Method) {
		return fmt.Errorf("%w: invalid method %q", domain.ErrInvalidRequest, req.Method)
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("%w: malformed url", domain.ErrInvalidRequest)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidRequest, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidRequest)
	}
	return nil
}

// validMethod segue a gramática de token do HTTP, como o net/http faz.
func validMethod(m string) bool {
	return m != "" && strings.IndexFunc(m, func(r rune) bool { return !httpguts.IsTokenRune(r) }) < 0
}

func methodOf(req domain.Request) string {
	if req.Method == "" {
		return "GET"
	}
	return strings.ToUpper(req.Method)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.ToValidUTF8(string(b), "")
}
