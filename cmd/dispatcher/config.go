package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type config struct {
	listenAddr         string
	accountsFile       string
	accountHeader      string
	insecureSkipVerify bool
	maxErrorBody       int
	maxBody            int64
	acquireTimeout     time.Duration
	retryAfter         time.Duration
	liveInterval       time.Duration

	rateRPS   float64
	rateBurst int

	statsRedisEnabled  bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsRedisPrefix   string
	statsRedisTTL      time.Duration
	statsRedisBucket   string
	statsTrackAccounts bool

	statsNatsEnabled bool
	statsNatsURL     string
	statsNatsSubject string

	logLevel  string
	logFormat string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("ACCOUNTS_FILE", "config.json")
	v.SetDefault("ACCOUNT_HEADER", "X-Account")
	v.SetDefault("INSECURE_SKIP_VERIFY", false)
	v.SetDefault("DISPATCH_MAX_ERROR_BODY", 512)
	v.SetDefault("DISPATCH_MAX_BODY", 10<<20)
	v.SetDefault("ACQUIRE_TIMEOUT", 0)
	v.SetDefault("RETRY_AFTER", time.Second)
	v.SetDefault("LIVE_INTERVAL", time.Second)

	// 0 desliga o ritmo por conta; só a concorrência vale
	v.SetDefault("ACCOUNT_RATE_RPS", 0)
	v.SetDefault("ACCOUNT_RATE_BURST", 1)

	v.SetDefault("STATS_REDIS_ENABLED", false)
	v.SetDefault("STATS_REDIS_ADDR", "")
	v.SetDefault("STATS_REDIS_PASSWORD", "")
	v.SetDefault("STATS_REDIS_DB", 0)
	v.SetDefault("STATS_REDIS_PREFIX", "dispatch:stats")
	v.SetDefault("STATS_REDIS_TTL", 24*time.Hour)
	v.SetDefault("STATS_REDIS_BUCKET", "minute")
	v.SetDefault("STATS_TRACK_ACCOUNTS", true)

	v.SetDefault("STATS_NATS_ENABLED", false)
	v.SetDefault("STATS_NATS_URL", "nats://localhost:4222")
	v.SetDefault("STATS_NATS_SUBJECT", "dispatch.events")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	return v
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{
		listenAddr:         v.GetString("LISTEN_ADDR"),
		accountsFile:       strings.TrimSpace(v.GetString("ACCOUNTS_FILE")),
		accountHeader:      v.GetString("ACCOUNT_HEADER"),
		insecureSkipVerify: v.GetBool("INSECURE_SKIP_VERIFY"),
		maxErrorBody:       v.GetInt("DISPATCH_MAX_ERROR_BODY"),
		maxBody:            v.GetInt64("DISPATCH_MAX_BODY"),
		acquireTimeout:     v.GetDuration("ACQUIRE_TIMEOUT"),
		retryAfter:         v.GetDuration("RETRY_AFTER"),
		liveInterval:       v.GetDuration("LIVE_INTERVAL"),

		rateRPS:   v.GetFloat64("ACCOUNT_RATE_RPS"),
		rateBurst: v.GetInt("ACCOUNT_RATE_BURST"),

		statsRedisEnabled:  v.GetBool("STATS_REDIS_ENABLED"),
		statsRedisAddr:     v.GetString("STATS_REDIS_ADDR"),
		statsRedisPassword: v.GetString("STATS_REDIS_PASSWORD"),
		statsRedisDB:       v.GetInt("STATS_REDIS_DB"),
		statsRedisPrefix:   v.GetString("STATS_REDIS_PREFIX"),
		statsRedisTTL:      v.GetDuration("STATS_REDIS_TTL"),
		statsRedisBucket:   v.GetString("STATS_REDIS_BUCKET"),
		statsTrackAccounts: v.GetBool("STATS_TRACK_ACCOUNTS"),

		statsNatsEnabled: v.GetBool("STATS_NATS_ENABLED"),
		statsNatsURL:     v.GetString("STATS_NATS_URL"),
		statsNatsSubject: v.GetString("STATS_NATS_SUBJECT"),

		logLevel:  v.GetString("LOG_LEVEL"),
		logFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if cfg.accountsFile == "" {
		return config{}, errors.New("ACCOUNTS_FILE is required")
	}
	if cfg.statsRedisEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_REDIS_ENABLED=true")
	}
	if cfg.statsNatsEnabled && strings.TrimSpace(cfg.statsNatsURL) == "" {
		return config{}, errors.New("STATS_NATS_URL is required when STATS_NATS_ENABLED=true")
	}
	if cfg.rateRPS < 0 {
		return config{}, errors.New("ACCOUNT_RATE_RPS must be >= 0")
	}
	if cfg.rateRPS > 0 && cfg.rateBurst <= 0 {
		return config{}, errors.New("ACCOUNT_RATE_BURST must be > 0")
	}
	if cfg.maxBody <= 0 {
		return config{}, errors.New("DISPATCH_MAX_BODY must be > 0")
	}
	if cfg.acquireTimeout < 0 {
		return config{}, errors.New("ACQUIRE_TIMEOUT must be >= 0")
	}
	if cfg.logFormat != "text" && cfg.logFormat != "json" {
		return config{}, errors.New("LOG_FORMAT must be text or json")
	}
	return cfg, nil
}
