package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"account-dispatcher/dispatcher/application"
	"account-dispatcher/dispatcher/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Registry   *application.Registry
	Dispatcher *application.Dispatcher

	AccountFn     AccountFunc
	AccountHeader string
	// RetryAfter é usado quando a rejeição não traz recomendação própria.
	RetryAfter time.Duration
	// MaxBodyBytes limita o JSON de entrada.
	MaxBodyBytes int64
	// LiveInterval é o intervalo entre quadros do /ws.
	LiveInterval time.Duration

	Log *logrus.Entry
}

func (o *Options) defaults() {
	if o.RetryAfter <= 0 {
		o.RetryAfter = 1 * time.Second
	}
	if o.AccountFn == nil {
		o.AccountFn = DefaultAccountFunc(o.AccountHeader)
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.LiveInterval <= 0 {
		o.LiveInterval = 1 * time.Second
	}
	if o.Log == nil {
		o.Log = logrus.NewEntry(logrus.StandardLogger())
	}
}

type dispatchRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Balance decimal.Decimal   `json:"balance"`
	Timeout string            `json:"timeout"`
}

type dispatchAnyRequest struct {
	dispatchRequest
	Balances map[string]decimal.Decimal `json:"balances"`
}

type errorBody struct {
	Error          string `json:"error"`
	Detail         string `json:"detail"`
	Transient      bool   `json:"transient"`
	RequestID      string `json:"request_id,omitempty"`
	Account        string `json:"account,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

// NewMux monta as rotas do serviço.
func NewMux(opts Options) *http.ServeMux {
	opts.defaults()

	mux := http.NewServeMux()
	mux.Handle("POST /dispatch", DispatchHandler(opts))
	mux.Handle("POST /dispatch/any", DispatchAnyHandler(opts))
	mux.Handle("POST /dispatch/all", DispatchAllHandler(opts))
	mux.Handle("GET /accounts", AccountsHandler(opts))
	mux.Handle("GET /ws", LiveHandler(func() []domain.AccountLoad {
		return opts.Dispatcher.Admission.Snapshot(opts.Registry.ListActive())
	}, opts.LiveInterval, opts.Log))
	return mux
}

// DispatchHandler atende POST /dispatch: um despacho pela conta indicada.
func DispatchHandler(opts Options) http.Handler {
	opts.defaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFrom(r)
		w.Header().Set("X-Request-Id", requestID)

		username := opts.AccountFn(r)
		if username == "" {
			writeBadRequest(w, requestID, "", "missing account")
			return
		}

		var in dispatchRequest
		if err := decodeJSON(w, r, opts.MaxBodyBytes, &in); err != nil {
			writeBadRequest(w, requestID, username, err.Error())
			return
		}
		req, err := in.toDomain(requestID)
		if err != nil {
			writeBadRequest(w, requestID, username, err.Error())
			return
		}

		acc, err := opts.Registry.Get(username)
		if err != nil {
			writeDispatchError(w, opts, requestID, username, err)
			return
		}

		body, err := opts.Dispatcher.Dispatch(r.Context(), acc, req)
		if err != nil {
			writeDispatchError(w, opts, requestID, username, err)
			return
		}
		writeBody(w, username, body)
	})
}

// DispatchAnyHandler atende POST /dispatch/any: usa a primeira conta ativa admitida,
// na ordem do arquivo de contas. O saldo de cada conta vem de `balances`.
func DispatchAnyHandler(opts Options) http.Handler {
	opts.defaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFrom(r)
		w.Header().Set("X-Request-Id", requestID)

		var in dispatchAnyRequest
		if err := decodeJSON(w, r, opts.MaxBodyBytes, &in); err != nil {
			writeBadRequest(w, requestID, "", err.Error())
			return
		}
		req, err := in.toDomain(requestID)
		if err != nil {
			writeBadRequest(w, requestID, "", err.Error())
			return
		}

		balance := func(username string) decimal.Decimal { return in.Balances[username] }
		acc, body, err := opts.Dispatcher.DispatchAny(r.Context(), opts.Registry.ListActive(), balance, req)
		if err != nil {
			writeDispatchError(w, opts, requestID, acc.Username(), err)
			return
		}
		writeBody(w, acc.Username(), body)
	})
}

type accountResult struct {
	Account        string `json:"account"`
	OK             bool   `json:"ok"`
	Body           string `json:"body,omitempty"`
	Error          string `json:"error,omitempty"`
	Detail         string `json:"detail,omitempty"`
	Transient      bool   `json:"transient,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

type dispatchAllResponse struct {
	RequestID string          `json:"request_id"`
	Results   []accountResult `json:"results"`
}

// DispatchAllHandler atende POST /dispatch/all: a mesma requisição por todas as
// contas ativas ao mesmo tempo. Responde 200 com o resultado de cada conta se
// ao menos uma teve sucesso; senão, o erro como em /dispatch.
func DispatchAllHandler(opts Options) http.Handler {
	opts.defaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFrom(r)
		w.Header().Set("X-Request-Id", requestID)

		var in dispatchAnyRequest
		if err := decodeJSON(w, r, opts.MaxBodyBytes, &in); err != nil {
			writeBadRequest(w, requestID, "", err.Error())
			return
		}
		req, err := in.toDomain(requestID)
		if err != nil {
			writeBadRequest(w, requestID, "", err.Error())
			return
		}

		balance := func(username string) decimal.Decimal { return in.Balances[username] }
		results, err := opts.Dispatcher.DispatchAll(r.Context(), opts.Registry.ListActive(), balance, req)
		if err != nil {
			writeDispatchError(w, opts, requestID, "", err)
			return
		}

		out := dispatchAllResponse{RequestID: requestID, Results: make([]accountResult, 0, len(results))}
		for _, res := range results {
			ar := accountResult{Account: res.Account.Username(), OK: res.Err == nil, Body: string(res.Body)}
			if res.Err != nil {
				ar.Error = domain.Kind(res.Err)
				ar.Detail = res.Err.Error()
				ar.Transient = domain.IsTransient(res.Err)
				var ue *domain.UpstreamError
				if errors.As(res.Err, &ue) {
					ar.UpstreamStatus = ue.StatusCode
				}
			}
			out.Results = append(out.Results, ar)
		}
		writeJSON(w, http.StatusOK, out)
	})
}

type accountView struct {
	Username          string `json:"username"`
	Active            bool   `json:"active"`
	MaxConcurrentBets int    `json:"max_concurrent_bets"`
	MinBalance        string `json:"min_balance"`
	Proxy             string `json:"proxy"`
	InFlight          int    `json:"in_flight"`
}

// AccountsHandler lista as contas ativas (ou todas, com ?all=true) e a carga atual.
// Nunca expõe senha nem credenciais do proxy.
func AccountsHandler(opts Options) http.Handler {
	opts.defaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seq := opts.Registry.ListActive()
		if r.URL.Query().Get("all") == "true" {
			seq = opts.Registry.All()
		}

		out := []accountView{}
		for acc := range seq {
			out = append(out, accountView{
				Username:          acc.Username(),
				Active:            acc.Active(),
				MaxConcurrentBets: acc.MaxConcurrent(),
				MinBalance:        acc.MinBalance().String(),
				Proxy:             acc.ProxyRedacted(),
				InFlight:          opts.Dispatcher.Admission.InFlight(acc),
			})
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func (in dispatchRequest) toDomain(requestID string) (domain.Request, error) {
	req := domain.Request{
		ID:      requestID,
		Method:  strings.ToUpper(strings.TrimSpace(in.Method)),
		URL:     strings.TrimSpace(in.URL),
		Balance: in.Balance,
	}
	if req.URL == "" {
		return domain.Request{}, errors.New("url is required")
	}
	if in.Body != "" {
		req.Body = []byte(in.Body)
	}
	if len(in.Headers) > 0 {
		req.Header = make(map[string][]string, len(in.Headers))
		for k, v := range in.Headers {
			req.Header[http.CanonicalHeaderKey(k)] = []string{v}
		}
	}
	if in.Timeout != "" {
		d, err := time.ParseDuration(in.Timeout)
		if err != nil || d < 0 {
			return domain.Request{}, errors.New("timeout must be a positive duration (ex: 5s)")
		}
		req.Timeout = d
	}
	return req, nil
}

func requestIDFrom(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Request-Id")); v != "" && len(v) <= 128 {
		return v
	}
	return uuid.NewString()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json body: " + err.Error())
	}
	return nil
}

// StatusFor traduz o erro do despacho para o status HTTP da resposta.
func StatusFor(err error) int {
	var ne *domain.NetworkError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInactiveAccount):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrAdmissionRejected):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNoEligibleAccount):
		return http.StatusUnprocessableEntity
	case errors.As(err, new(*domain.UpstreamError)):
		return http.StatusBadGateway
	case errors.As(err, &ne):
		if ne.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDispatchError(w http.ResponseWriter, opts Options, requestID, username string, err error) {
	status := StatusFor(err)

	var ae *domain.AdmissionError
	if errors.As(err, &ae) {
		retry := ae.RetryAfter
		if retry <= 0 {
			retry = opts.RetryAfter
		}
		w.Header().Set("Retry-After", formatRetryAfter(retry))
	} else if errors.Is(err, domain.ErrAdmissionRejected) {
		w.Header().Set("Retry-After", formatRetryAfter(opts.RetryAfter))
	}

	if status == http.StatusInternalServerError {
		opts.Log.WithFields(logrus.Fields{"request_id": requestID, "account": username}).WithError(err).Error("dispatch failed unexpectedly")
	}

	body := errorBody{
		Error:     domain.Kind(err),
		Detail:    err.Error(),
		Transient: domain.IsTransient(err),
		RequestID: requestID,
		Account:   username,
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		body.UpstreamStatus = ue.StatusCode
		body.UpstreamBody = ue.Body
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, requestID, username, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     domain.OutcomeInvalidRequest,
		Detail:    detail,
		RequestID: requestID,
		Account:   username,
	})
}

func writeBody(w http.ResponseWriter, username string, body []byte) {
	w.Header().Set("X-Account", username)
	w.Header().Set("Content-Type", http.DetectContentType(body))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
