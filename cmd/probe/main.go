// probe envia um único GET pelo proxy de uma conta e imprime a resposta.
// Útil para conferir se o proxy da conta está de pé e qual IP o destino enxerga.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"account-dispatcher/dispatcher/application"
	"account-dispatcher/dispatcher/domain"
	"account-dispatcher/dispatcher/infra"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ACCOUNTS_FILE", "config.json")
	v.SetDefault("PROBE_URL", "https://api.ipify.org?format=json")
	v.SetDefault("PROBE_TIMEOUT", 30*time.Second)
	v.SetDefault("INSECURE_SKIP_VERIFY", false)

	username := strings.TrimSpace(v.GetString("PROBE_ACCOUNT"))
	if len(os.Args) > 1 {
		username = os.Args[1]
	}

	records, err := infra.LoadRecordsFile(v.GetString("ACCOUNTS_FILE"))
	if err != nil {
		log.Fatalf("accounts file error: %v", err)
	}
	registry, err := application.Load(records)
	if err != nil {
		log.Fatalf("accounts error: %v", err)
	}

	acc, err := pickAccount(registry, username)
	if err != nil {
		log.Fatal(err)
	}

	// sem saldo informado, usa o mínimo da conta: a sonda só testa o caminho de rede
	balance := acc.MinBalance()
	if raw := strings.TrimSpace(v.GetString("PROBE_BALANCE")); raw != "" {
		balance, err = decimal.NewFromString(raw)
		if err != nil {
			log.Fatalf("invalid PROBE_BALANCE %q: %v", raw, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	transport := infra.NewProxyTransport(infra.WithInsecureSkipVerify(v.GetBool("INSECURE_SKIP_VERIFY")))
	defer transport.CloseIdleConnections()

	d := &application.Dispatcher{
		Admission: application.NewAdmission(infra.NewChanPool, registry.All()),
		Transport: transport,
		Stats:     infra.NewLogStatsStore(log.WithField("component", "probe")),
	}

	log.WithFields(logrus.Fields{
		"account": acc.Username(),
		"proxy":   acc.ProxyRedacted(),
		"url":     v.GetString("PROBE_URL"),
	}).Info("probing")

	body, err := d.Dispatch(ctx, acc, domain.Request{
		Method:  "GET",
		URL:     v.GetString("PROBE_URL"),
		Balance: balance,
		Timeout: v.GetDuration("PROBE_TIMEOUT"),
	})
	if err != nil {
		log.WithField("kind", domain.Kind(err)).Fatalf("probe failed: %v", err)
	}

	fmt.Println(render(body))
}

func pickAccount(registry *application.Registry, username string) (domain.Account, error) {
	if username != "" {
		return registry.Get(username)
	}
	for acc := range registry.ListActive() {
		return acc, nil
	}
	return domain.Account{}, errors.New("no active account in registry")
}

// render devolve o JSON indentado quando o corpo é JSON; senão o texto cru.
func render(body []byte) string {
	var out bytes.Buffer
	if json.Valid(body) && json.Indent(&out, body, "", "  ") == nil {
		return out.String()
	}
	return string(body)
}
