// Package cache keeps throttle state in Redis so several bot processes, or a
// restarted one, share the daily trade count.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"okx-trader/internal/risk"
)

const defaultPrefix = "okx-trader:throttle:"

// RedisConfig holds connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // expiry of stored state; 0 keeps it forever
}

// ThrottleStore implements risk.ThrottleStore on a Redis hash per key.
type ThrottleStore struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ risk.ThrottleStore = (*ThrottleStore)(nil)

// NewThrottleStore connects to Redis and verifies the connection.
func NewThrottleStore(ctx context.Context, cfg RedisConfig) (*ThrottleStore, error) {
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return newThrottleStore(cli, cfg), nil
}

func newThrottleStore(cli *redis.Client, cfg RedisConfig) *ThrottleStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ThrottleStore{cli: cli, prefix: prefix, ttl: cfg.TTL}
}

func (s *ThrottleStore) key(k string) string { return s.prefix + k }

// LoadThrottle reads the hash for key.
func (s *ThrottleStore) LoadThrottle(ctx context.Context, key string) (risk.ThrottleState, bool, error) {
	fields, err := s.cli.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return risk.ThrottleState{}, false, fmt.Errorf("redis load throttle: %w", err)
	}
	return decodeState(fields)
}

// SaveThrottle writes the hash for key in one transaction.
func (s *ThrottleStore) SaveThrottle(ctx context.Context, key string, st risk.ThrottleState) error {
	k := s.key(key)
	_, err := s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, encodeState(st))
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save throttle: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *ThrottleStore) Close() error { return s.cli.Close() }

func encodeState(st risk.ThrottleState) map[string]any {
	return map[string]any{
		"trades_today":    st.TradesToday,
		"last_trade_date": st.LastTradeDate,
	}
}

func decodeState(fields map[string]string) (risk.ThrottleState, bool, error) {
	if len(fields) == 0 {
		return risk.ThrottleState{}, false, nil
	}
	n, err := strconv.Atoi(fields["trades_today"])
	if err != nil {
		return risk.ThrottleState{}, false, fmt.Errorf("redis throttle trades_today %q: %w", fields["trades_today"], err)
	}
	return risk.ThrottleState{TradesToday: n, LastTradeDate: fields["last_trade_date"]}, true, nil
}
