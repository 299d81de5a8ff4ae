package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account-dispatcher/dispatcher"
	"account-dispatcher/dispatcher/application"
	"account-dispatcher/dispatcher/domain"
	"account-dispatcher/dispatcher/infra"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()

	cfg, err := readConfig(newViper())
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	setupLogger(log, cfg)

	records, err := infra.LoadRecordsFile(cfg.accountsFile)
	if err != nil {
		log.Fatalf("accounts file error: %v", err)
	}
	registry, err := application.Load(records)
	if err != nil {
		log.Fatalf("accounts error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	transport := infra.NewProxyTransport(
		infra.WithInsecureSkipVerify(cfg.insecureSkipVerify),
		infra.WithMaxBodyBytes(cfg.maxBody),
	)
	defer transport.CloseIdleConnections()

	admission := application.NewAdmission(infra.NewChanPool, registry.All())
	admission.AcquireTimeout = cfg.acquireTimeout

	pacing := application.PacingService{RetryAfter: cfg.retryAfter}
	if cfg.rateRPS > 0 {
		store := infra.NewStore(cfg.rateRPS, cfg.rateBurst)
		store.StartJanitor(ctx)
		pacing.Store = store
	}

	stats := []domain.StatsStore{
		infra.NewMemoryStatsStore(infra.WithTrackAccounts(cfg.statsTrackAccounts)),
		infra.NewLogStatsStore(log.WithField("component", "stats")),
	}

	if cfg.statsRedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsRedisPrefix),
			infra.WithStatsTTL(cfg.statsRedisTTL),
			infra.WithStatsBucket(cfg.statsRedisBucket),
			infra.WithStatsTrackAccounts(cfg.statsTrackAccounts),
		))
	}

	if cfg.statsNatsEnabled {
		nc, err := nats.Connect(cfg.statsNatsURL, nats.Name("account-dispatcher"))
		if err != nil {
			log.Fatalf("nats stats connect error: %v", err)
		}
		defer nc.Drain()

		stats = append(stats, infra.NewNatsStatsStore(nc, cfg.statsNatsSubject))
	}

	d := &application.Dispatcher{
		Admission:    admission,
		Pacing:       pacing,
		Transport:    transport,
		Stats:        infra.NewMultiStatsStore(stats...),
		MaxErrorBody: cfg.maxErrorBody,
	}

	srv := &http.Server{
		Addr: cfg.listenAddr,
		Handler: dispatcher.NewMux(dispatcher.Options{
			Registry:      registry,
			Dispatcher:    d,
			AccountHeader: cfg.accountHeader,
			RetryAfter:    cfg.retryAfter,
			LiveInterval:  cfg.liveInterval,
			Log:           log.WithField("component", "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// sem WriteTimeout: o /ws e despachos longos controlam o próprio prazo
		IdleTimeout: 90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("dispatcher listening on %s", cfg.listenAddr)
	log.WithFields(logrus.Fields{
		"file":     cfg.accountsFile,
		"accounts": registry.Len(),
	}).Info("accounts loaded")
	for acc := range registry.All() {
		// nunca logar a senha; o proxy sai com a credencial mascarada
		log.WithFields(logrus.Fields{
			"account":             acc.Username(),
			"active":              acc.Active(),
			"max_concurrent_bets": acc.MaxConcurrent(),
			"min_balance":         acc.MinBalance().String(),
			"proxy":               acc.ProxyRedacted(),
		}).Debug("account")
	}
	if cfg.insecureSkipVerify {
		log.Warn("TLS verification is DISABLED for outbound requests (INSECURE_SKIP_VERIFY=true)")
	}
	log.Infof("pacing: rps=%.3f burst=%d retryAfter=%s", cfg.rateRPS, cfg.rateBurst, cfg.retryAfter)
	log.Infof("stats: redis=%v nats=%v trackAccounts=%v", cfg.statsRedisEnabled, cfg.statsNatsEnabled, cfg.statsTrackAccounts)
	log.Infof("admission: acquireTimeout=%s", cfg.acquireTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func setupLogger(log *logrus.Logger, cfg config) {
	log.SetOutput(os.Stderr)
	if cfg.logFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		log.Warnf("invalid LOG_LEVEL %q, using info", cfg.logLevel)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}
