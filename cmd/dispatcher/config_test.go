package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_Defaults(t *testing.T) {
	cfg, err := readConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, "config.json", cfg.accountsFile)
	assert.False(t, cfg.insecureSkipVerify, "TLS verification must be on by default")
	assert.Equal(t, 512, cfg.maxErrorBody)
	assert.Equal(t, int64(10<<20), cfg.maxBody)
	assert.Equal(t, time.Second, cfg.retryAfter)
	assert.Zero(t, cfg.rateRPS)
	assert.False(t, cfg.statsRedisEnabled)
	assert.Equal(t, "dispatch.events", cfg.statsNatsSubject)
}

func TestReadConfig_FromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("ACCOUNTS_FILE", "/etc/dispatcher/accounts.yaml")
	t.Setenv("INSECURE_SKIP_VERIFY", "true")
	t.Setenv("ACCOUNT_RATE_RPS", "0.5")
	t.Setenv("ACCOUNT_RATE_BURST", "2")
	t.Setenv("RETRY_AFTER", "3s")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.listenAddr)
	assert.Equal(t, "/etc/dispatcher/accounts.yaml", cfg.accountsFile)
	assert.True(t, cfg.insecureSkipVerify)
	assert.Equal(t, 0.5, cfg.rateRPS)
	assert.Equal(t, 2, cfg.rateBurst)
	assert.Equal(t, 3*time.Second, cfg.retryAfter)
	assert.Equal(t, "json", cfg.logFormat)
}

func TestReadConfig_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"redis without addr": {"STATS_REDIS_ENABLED": "true"},
		"negative rps":       {"ACCOUNT_RATE_RPS": "-1"},
		"zero burst":         {"ACCOUNT_RATE_RPS": "1", "ACCOUNT_RATE_BURST": "0"},
		"bad log format":     {"LOG_FORMAT": "xml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readConfig(newViper())
			assert.Error(t, err)
		})
	}
}
