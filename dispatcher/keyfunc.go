package dispatcher

import (
	"net/http"
	"strings"
)

// AccountFunc extrai da requisição o username da conta a usar.
type AccountFunc func(r *http.Request) string

// DefaultAccountFunc procura a conta no header indicado e, se vazio, no query param "account".
func DefaultAccountFunc(header string) AccountFunc {
	if header == "" {
		header = "X-Account"
	}
	return func(r *http.Request) string {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
		return strings.TrimSpace(r.URL.Query().Get("account"))
	}
}
