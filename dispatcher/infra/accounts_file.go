package infra

import (
	"fmt"
	"strings"

	"account-dispatcher/dispatcher/domain"

	"github.com/spf13/viper"
)

// LoadRecordsFile lê a lista `accounts` de um arquivo de configuração
// (JSON, YAML ou TOML, pela extensão) na ordem em que aparece.
//
// Chaves ausentes recebem os padrões: active=true, max_concurrent_bets=3,
// min_balance=100. A validação fica com o registry.
func LoadRecordsFile(path string) ([]domain.Record, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	if !v.IsSet("accounts") {
		return nil, fmt.Errorf("accounts file %s: missing \"accounts\" list", path)
	}

	entries, err := accountEntries(v.Get("accounts"))
	if err != nil {
		return nil, fmt.Errorf("accounts file %s: %w", path, err)
	}
	for _, e := range entries {
		setDefault(e, "max_concurrent_bets", domain.DefaultMaxConcurrentBets)
		setDefault(e, "min_balance", domain.DefaultMinBalance)
	}
	v.Set("accounts", entries)

	var records []domain.Record
	if err := v.UnmarshalKey("accounts", &records); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return records, nil
}

func accountEntries(raw any) ([]map[string]any, error) {
	switch list := raw.(type) {
	case []map[string]any:
		return list, nil
	case []any:
		out := make([]map[string]any, 0, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("account #%d is not an object", i)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("\"accounts\" must be a list, got %T", raw)
	}
}

func setDefault(m map[string]any, key string, def any) {
	for k := range m {
		if strings.EqualFold(k, key) {
			return
		}
	}
	m[key] = def
}
