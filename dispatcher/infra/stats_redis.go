package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"account-dispatcher/dispatcher/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore acumula desfechos em hashes do Redis:
//
//	<prefix>:total                 outcome -> n
//	<prefix>:minute:<yyyymmddhhmm> outcome -> n   (expira em ttl)
//	<prefix>:account:<username>    outcome -> n   (expira em ttl)
//	<prefix>:status                <code>  -> n
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por conta.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackAccounts bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackAccounts(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackAccounts = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "dispatch:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := ev.Outcome
	if field == "" {
		field = "unknown"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if ev.StatusCode > 0 {
		pipe.HIncrBy(ctx, s.prefix+":status", fmt.Sprint(ev.StatusCode), 1)
	}

	if s.trackAccounts {
		if u := strings.TrimSpace(ev.Username); u != "" {
			accountKey := s.prefix + ":account:" + u
			pipe.HIncrBy(ctx, accountKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, accountKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
