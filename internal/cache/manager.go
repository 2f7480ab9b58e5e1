package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned when a key is absent from both tiers.
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss reports whether err is a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Config holds cache substrate configuration.
type Config struct {
	// Addr is the redis address. Empty disables L2.
	Addr string `yaml:"addr" env:"ADDR"`

	// Password authenticates against redis.
	Password string `yaml:"password" env:"PASSWORD"`

	// DB selects the redis database number.
	DB int `yaml:"db" env:"DB"`

	// Enabled toggles the whole substrate; when false every read misses and
	// every write is a no-op.
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// DefaultTTL applies when a caller passes a zero TTL.
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`

	// Version namespaces every key; bump to abandon all current entries.
	Version int `yaml:"version" env:"VERSION"`

	// CompressThreshold is the serialized size at which values are
	// gzip+base64 encoded before the L2 write.
	CompressThreshold int `yaml:"compress_threshold" env:"COMPRESS_THRESHOLD"`

	// FastTimeout bounds the single L2 attempt on the fast path.
	FastTimeout time.Duration `yaml:"fast_timeout" env:"FAST_TIMEOUT"`

	// ReliableRetries is the number of extra L2 attempts on the reliable path.
	ReliableRetries int `yaml:"reliable_retries" env:"RELIABLE_RETRIES"`

	// L1Size bounds the in-process tier.
	L1Size int `yaml:"l1_size" env:"L1_SIZE"`

	// L1TTL caps per-entry lifetime in the in-process tier. Cross-process
	// staleness is bounded by this value.
	L1TTL time.Duration `yaml:"l1_ttl" env:"L1_TTL"`

	// PoolSize is the redis connection pool size.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              "localhost:6379",
		Enabled:           true,
		DefaultTTL:        time.Hour,
		Version:           1,
		CompressThreshold: 1024,
		FastTimeout:       30 * time.Millisecond,
		ReliableRetries:   2,
		L1Size:            1000,
		L1TTL:             5 * time.Minute,
		PoolSize:          10,
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	L1Hits           uint64  `json:"l1_hits"`
	L2Hits           uint64  `json:"l2_hits"`
	Misses           uint64  `json:"misses"`
	ConnectionErrors uint64  `json:"connection_errors"`
	TimeoutErrors    uint64  `json:"timeout_errors"`
	OtherErrors      uint64  `json:"other_errors"`
	TotalRequests    uint64  `json:"total_requests"`
	HitRate          float64 `json:"hit_rate"`
}

// Manager is the two-tier cache. L2 errors are logged and counted, never
// propagated: reads degrade to a miss and writes report failure, so the
// request path proceeds without the cache.
type Manager struct {
	rdb    redis.UniversalClient
	l1     *LRU
	keys   Keys
	config Config
	logger *zap.Logger

	statsMu sync.Mutex
	stats   Stats

	mu     sync.RWMutex
	closed bool
}

// NewManager creates the cache substrate. A redis connection failure at
// startup is tolerated: the manager starts L1-only and L2 operations count
// as errors until the store becomes reachable.
func NewManager(config Config, logger *zap.Logger) *Manager {
	m := &Manager{
		l1:     NewLRU(config.L1Size),
		keys:   NewKeys(config.Version),
		config: config,
		logger: logger.With(zap.String("component", "cache")),
	}
	if !config.Enabled {
		m.logger.Info("cache disabled by configuration")
		return m
	}
	if config.Addr != "" {
		m.rdb = redis.NewClient(&redis.Options{
			Addr:       config.Addr,
			Password:   config.Password,
			DB:         config.DB,
			PoolSize:   config.PoolSize,
			MaxRetries: -1, // retry policy is owned by this package
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.rdb.Ping(ctx).Err(); err != nil {
			m.logger.Warn("redis unreachable at startup, continuing with L1 only",
				zap.String("addr", config.Addr), zap.Error(err))
		}
	}
	m.logger.Info("cache manager initialized",
		zap.String("addr", config.Addr),
		zap.Int("l1_size", config.L1Size),
		zap.Int("version", config.Version),
	)
	return m
}

// Keys exposes the versioned key builder bound to this manager.
func (m *Manager) Keys() Keys { return m.keys }

// Enabled reports whether the substrate is active.
func (m *Manager) Enabled() bool { return m.config.Enabled }

// GetFast is the request-critical read: one L2 attempt under the fast
// budget, then L1. Returns ErrCacheMiss when the key is in neither tier.
func (m *Manager) GetFast(ctx context.Context, key string, dest any) error {
	if !m.usable() {
		return ErrCacheMiss
	}
	m.countRequest()

	if m.rdb != nil {
		fastCtx, cancel := context.WithTimeout(ctx, m.config.FastTimeout)
		raw, err := m.rdb.Get(fastCtx, key).Result()
		cancel()
		switch {
		case err == nil:
			if derr := decodeValue(raw, dest); derr == nil {
				m.countL2Hit()
				m.l1.Set(key, raw, m.l1TTL())
				return nil
			}
			// Undecodable entry: treat as corrupt and drop it.
			m.countError(fmt.Errorf("corrupt cache entry: %s", key))
			go m.deleteQuiet(key)
		case errors.Is(err, redis.Nil):
			// fall through to L1
		default:
			m.countError(err)
		}
	}

	if raw, ok := m.l1.Get(key); ok {
		if err := decodeValue(raw, dest); err == nil {
			m.countL1Hit()
			return nil
		}
		m.l1.Delete(key)
	}
	m.countMiss()
	return ErrCacheMiss
}

// GetReliable reads with bounded retries against L2, then L1.
func (m *Manager) GetReliable(ctx context.Context, key string, dest any) error {
	if !m.usable() {
		return ErrCacheMiss
	}
	m.countRequest()

	if m.rdb != nil {
		var lastErr error
		for attempt := 0; attempt <= m.config.ReliableRetries; attempt++ {
			if attempt > 0 {
				if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
					return ErrCacheMiss
				}
			}
			raw, err := m.rdb.Get(ctx, key).Result()
			if err == nil {
				if derr := decodeValue(raw, dest); derr == nil {
					m.countL2Hit()
					m.l1.Set(key, raw, m.l1TTL())
					return nil
				}
				m.countError(fmt.Errorf("corrupt cache entry: %s", key))
				go m.deleteQuiet(key)
				break
			}
			if errors.Is(err, redis.Nil) {
				lastErr = nil
				break
			}
			lastErr = err
		}
		if lastErr != nil {
			m.countError(lastErr)
		}
	}

	if raw, ok := m.l1.Get(key); ok {
		if err := decodeValue(raw, dest); err == nil {
			m.countL1Hit()
			return nil
		}
		m.l1.Delete(key)
	}
	m.countMiss()
	return ErrCacheMiss
}

// Set writes to both tiers on the reliable path. An L2 failure is reported
// after the retry budget but the L1 write still happens, so the local
// process keeps its snapshot.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !m.usable() {
		return nil
	}
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}
	raw, err := encodeValue(value, m.config.CompressThreshold)
	if err != nil {
		return err
	}
	m.l1.Set(key, raw, minDuration(ttl, m.l1TTL()))

	if m.rdb == nil {
		return nil
	}
	var lastErr error
	for attempt := 0; attempt <= m.config.ReliableRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
				return err
			}
		}
		if lastErr = m.rdb.Set(ctx, key, raw, ttl).Err(); lastErr == nil {
			return nil
		}
	}
	m.countError(lastErr)
	m.logger.Warn("cache set failed", zap.String("key", key), zap.Error(lastErr))
	return fmt.Errorf("cache set %s: %w", key, lastErr)
}

// Delete removes keys from both tiers.
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if !m.usable() || len(keys) == 0 {
		return nil
	}
	m.l1.Delete(keys...)
	if m.rdb == nil {
		return nil
	}
	if err := m.rdb.Del(ctx, keys...).Err(); err != nil {
		m.countError(err)
		m.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// InvalidatePattern removes every key matching a glob pattern from both
// tiers using SCAN cursor iteration. Returns the number of L2 keys deleted.
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if !m.usable() {
		return 0, nil
	}
	prefix := pattern
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		prefix = pattern[:i]
	}
	m.l1.DeletePrefix(prefix)

	if m.rdb == nil {
		return 0, nil
	}
	deleted := 0
	var cursor uint64
	for {
		keys, next, err := m.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			m.countError(err)
			return deleted, fmt.Errorf("cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := m.rdb.Del(ctx, keys...).Err(); err != nil {
				m.countError(err)
				return deleted, fmt.Errorf("cache scan delete: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping probes the L2 connection.
func (m *Manager) Ping(ctx context.Context) error {
	if m.rdb == nil {
		return errors.New("cache: no L2 configured")
	}
	return m.rdb.Ping(ctx).Err()
}

// GetStats returns a snapshot of the counters with the hit rate computed.
func (m *Manager) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	s := m.stats
	if s.TotalRequests > 0 {
		s.HitRate = float64(s.L1Hits+s.L2Hits) / float64(s.TotalRequests)
	}
	return s
}

// Close releases the L2 client.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.logger.Info("closing cache manager")
	if m.rdb != nil {
		return m.rdb.Close()
	}
	return nil
}

func (m *Manager) usable() bool {
	if !m.config.Enabled {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

func (m *Manager) l1TTL() time.Duration {
	if m.config.L1TTL > 0 {
		return m.config.L1TTL
	}
	return 5 * time.Minute
}

func (m *Manager) deleteQuiet(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.l1.Delete(key)
	if m.rdb != nil {
		_ = m.rdb.Del(ctx, key).Err()
	}
}

func (m *Manager) countRequest() {
	m.statsMu.Lock()
	m.stats.TotalRequests++
	m.statsMu.Unlock()
}

func (m *Manager) countL1Hit() {
	m.statsMu.Lock()
	m.stats.L1Hits++
	m.statsMu.Unlock()
}

func (m *Manager) countL2Hit() {
	m.statsMu.Lock()
	m.stats.L2Hits++
	m.statsMu.Unlock()
}

func (m *Manager) countMiss() {
	m.statsMu.Lock()
	m.stats.Misses++
	m.statsMu.Unlock()
}

func (m *Manager) countError(err error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	switch classifyError(err) {
	case "timeout":
		m.stats.TimeoutErrors++
	case "connection":
		m.stats.ConnectionErrors++
	default:
		m.stats.OtherErrors++
	}
}

// classifyError buckets an L2 error into connection, timeout or other.
func classifyError(err error) string {
	if err == nil {
		return "other"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "closed"):
		return "connection"
	default:
		return "other"
	}
}

// backoffDelay is 0.1s x attempt, matching the reliable-path budget.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(attempt) * 100 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
