package infra

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"account-dispatcher/dispatcher/domain"
)

// ProxyTransport implementa domain.Transport com um *http.Client por conta,
// cada um saindo pelo proxy configurado da conta.
//
// A verificação TLS fica ligada por padrão; desligar exige WithInsecureSkipVerify(true).
type ProxyTransport struct {
	clients sync.Map // username -> *http.Client

	insecureSkipVerify  bool
	maxBodyBytes        int64
	dialTimeout         time.Duration
	idleConnTimeout     time.Duration
	maxIdleConnsPerHost int
}

type TransportOption func(*ProxyTransport)

func WithInsecureSkipVerify(skip bool) TransportOption {
	return func(t *ProxyTransport) { t.insecureSkipVerify = skip }
}

// WithMaxBodyBytes limita o corpo da resposta. Uma resposta 2xx maior que o
// limite falha com NetworkError (ErrResponseTooLarge) em vez de voltar cortada.
func WithMaxBodyBytes(n int64) TransportOption {
	return func(t *ProxyTransport) { t.maxBodyBytes = n }
}

func WithDialTimeout(d time.Duration) TransportOption {
	return func(t *ProxyTransport) { t.dialTimeout = d }
}

func WithMaxIdleConnsPerHost(n int) TransportOption {
	return func(t *ProxyTransport) { t.maxIdleConnsPerHost = n }
}

func NewProxyTransport(opts ...TransportOption) *ProxyTransport {
	t := &ProxyTransport{
		maxBodyBytes:        10 << 20,
		dialTimeout:         10 * time.Second,
		idleConnTimeout:     90 * time.Second,
		maxIdleConnsPerHost: 4,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ProxyTransport) InsecureSkipVerify() bool { return t.insecureSkipVerify }

func (t *ProxyTransport) Do(ctx context.Context, acc domain.Account, req domain.Request) (*domain.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrInvalidRequest, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.client(acc).Do(httpReq)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	// lê um byte além do limite para distinguir "cabe" de "foi cortado"
	b, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodyBytes+1))
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	if int64(len(b)) > t.maxBodyBytes {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return nil, &domain.NetworkError{Err: fmt.Errorf("%w: over %d bytes", domain.ErrResponseTooLarge, t.maxBodyBytes)}
		}
		// corpo de erro só vira detalhe truncado em UpstreamError
		b = b[:t.maxBodyBytes]
	}

	return &domain.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
	}, nil
}

// CloseIdleConnections fecha as conexões ociosas de todas as contas.
func (t *ProxyTransport) CloseIdleConnections() {
	t.clients.Range(func(_, v any) bool {
		v.(*http.Client).CloseIdleConnections()
		return true
	})
}

func (t *ProxyTransport) client(acc domain.Account) *http.Client {
	if c, ok := t.clients.Load(acc.Username()); ok {
		return c.(*http.Client)
	}
	c := &http.Client{Transport: t.roundTripper(acc.Proxy())}
	actual, _ := t.clients.LoadOrStore(acc.Username(), c)
	return actual.(*http.Client)
}

func (t *ProxyTransport) roundTripper(proxy *url.URL) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   t.dialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:               http.ProxyURL(proxy),
		DialContext:         dialer.DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: t.insecureSkipVerify}, //nolint:gosec // opt-in explícito
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     t.idleConnTimeout,
		MaxIdleConnsPerHost: t.maxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}
}
