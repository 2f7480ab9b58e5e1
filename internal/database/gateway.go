package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotConnected is returned by fast-fail paths when the gateway has no
// live connection and reconnection has been suspended.
var ErrNotConnected = errors.New("database: not connected")

// Config holds connection-pool configuration.
type Config struct {
	// URL is the postgres DSN.
	URL string `yaml:"url" env:"URL"`

	// MinConns connections are opened and probed at startup.
	MinConns int `yaml:"min_conns" env:"MIN_CONNS"`

	// MaxConns bounds the pool.
	MaxConns int `yaml:"max_conns" env:"MAX_CONNS"`

	// CommandTimeout bounds each gateway operation.
	CommandTimeout time.Duration `yaml:"command_timeout" env:"COMMAND_TIMEOUT"`

	// StatementTimeout is applied server-side on connection setup.
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"STATEMENT_TIMEOUT"`

	// ConnMaxLifetime recycles pooled connections.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`

	// HealthCheckInterval paces the background probe.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`

	// MaxReconnectFailures suspends reconnection after this many consecutive
	// failed attempts, until Reset is called.
	MaxReconnectFailures int `yaml:"max_reconnect_failures" env:"MAX_RECONNECT_FAILURES"`
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MinConns:             5,
		MaxConns:             30,
		CommandTimeout:       10 * time.Second,
		StatementTimeout:     60 * time.Second,
		ConnMaxLifetime:      time.Hour,
		HealthCheckInterval:  30 * time.Second,
		MaxReconnectFailures: 5,
	}
}

// Gateway is the relational store gateway.
type Gateway struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config Config
	logger *zap.Logger

	connected atomic.Bool

	reconnectMu       sync.Mutex
	reconnectFailures int
	suspended         bool

	stopCh    chan struct{}
	stopOnce  sync.Once
	closed    atomic.Bool
}

// NewGateway opens the pool, pre-warms MinConns connections with a health
// probe on each, and starts the background probe loop. A startup connection
// failure is returned; callers decide whether to run degraded.
func NewGateway(config Config, logger *zap.Logger) (*Gateway, error) {
	dsn := config.URL
	if config.StatementTimeout > 0 && !strings.Contains(dsn, "statement_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += fmt.Sprintf("%soptions=-c%%20statement_timeout%%3D%d", sep, config.StatementTimeout.Milliseconds())
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGatewayFromGorm(db, config, logger)
}

// NewGatewayWithDB wraps an existing connection, used by tests and by the
// migration CLI.
func NewGatewayWithDB(conn *sql.DB, config Config, logger *zap.Logger) (*Gateway, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("wrap connection: %w", err)
	}
	return NewGatewayFromGorm(db, config, logger)
}

// NewGatewayFromGorm wraps an already-open gorm handle. Tests use this with
// an embedded sqlite database.
func NewGatewayFromGorm(db *gorm.DB, config Config, logger *zap.Logger) (*Gateway, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MinConns)
	sqlDB.SetMaxOpenConns(config.MaxConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	g := &Gateway{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "database")),
		stopCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandTimeout)
	defer cancel()
	if err := g.prewarm(ctx); err != nil {
		g.logger.Warn("database pre-warm failed", zap.Error(err))
		g.connected.Store(false)
	} else {
		g.connected.Store(true)
	}

	if config.HealthCheckInterval > 0 {
		go g.healthLoop()
	}

	g.logger.Info("database gateway initialized",
		zap.Int("min_conns", config.MinConns),
		zap.Int("max_conns", config.MaxConns),
		zap.Bool("connected", g.connected.Load()),
	)
	return g, nil
}

// prewarm opens MinConns connections and issues a probe on each.
func (g *Gateway) prewarm(ctx context.Context) error {
	conns := make([]*sql.Conn, 0, g.config.MinConns)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < g.config.MinConns; i++ {
		conn, err := g.sqlDB.Conn(ctx)
		if err != nil {
			return err
		}
		conns = append(conns, conn)
		if err := conn.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the gorm handle for repository use.
func (g *Gateway) DB() *gorm.DB { return g.db }

// IsConnected reflects the last known connection state without probing.
func (g *Gateway) IsConnected() bool { return g.connected.Load() }

// EnsureConnected probes the store and reconnects if needed.
func (g *Gateway) EnsureConnected(ctx context.Context) error {
	if err := g.sqlDB.PingContext(ctx); err == nil {
		g.connected.Store(true)
		return nil
	}
	return g.reconnect(ctx)
}

// Reset clears the suspended state after repeated reconnect failures.
func (g *Gateway) Reset() {
	g.reconnectMu.Lock()
	defer g.reconnectMu.Unlock()
	g.reconnectFailures = 0
	g.suspended = false
	g.logger.Info("database reconnect state reset")
}

// Fetch scans all rows of a parameterized query into dest (a slice pointer).
func (g *Gateway) Fetch(ctx context.Context, dest any, query string, args ...any) error {
	return g.withRetry(ctx, func(ctx context.Context) error {
		return g.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
	})
}

// FetchRow scans the first row into dest. Missing rows leave dest untouched
// and return gorm.ErrRecordNotFound.
func (g *Gateway) FetchRow(ctx context.Context, dest any, query string, args ...any) error {
	return g.withRetry(ctx, func(ctx context.Context) error {
		res := g.db.WithContext(ctx).Raw(query, args...)
		if res.Error != nil {
			return res.Error
		}
		tx := res.Scan(dest)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FetchVal scans a single scalar into dest.
func (g *Gateway) FetchVal(ctx context.Context, dest any, query string, args ...any) error {
	return g.withRetry(ctx, func(ctx context.Context) error {
		row := g.db.WithContext(ctx).Raw(query, args...).Row()
		return row.Scan(dest)
	})
}

// Execute runs a statement and returns the affected row count.
func (g *Gateway) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := g.withRetry(ctx, func(ctx context.Context) error {
		tx := g.db.WithContext(ctx).Exec(query, args...)
		affected = tx.RowsAffected
		return tx.Error
	})
	return affected, err
}

// WithTransaction executes fn inside a transaction.
func (g *Gateway) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	opCtx, cancel := g.opContext(ctx)
	defer cancel()
	return g.db.WithContext(opCtx).Transaction(fn)
}

// withRetry runs op, transparently reconnecting and retrying exactly once on
// a connection-class error. Other errors propagate unchanged.
func (g *Gateway) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	opCtx, cancel := g.opContext(ctx)
	err := op(opCtx)
	cancel()
	if err == nil || !isConnectionError(err) {
		if err == nil {
			g.connected.Store(true)
		}
		return err
	}

	g.connected.Store(false)
	g.logger.Warn("database operation hit connection error, reconnecting once", zap.Error(err))
	if rerr := g.reconnect(ctx); rerr != nil {
		return err
	}

	opCtx, cancel = g.opContext(ctx)
	defer cancel()
	retryErr := op(opCtx)
	if retryErr == nil {
		g.connected.Store(true)
	}
	return retryErr
}

func (g *Gateway) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.CommandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.config.CommandTimeout)
}

// reconnect probes under a lock with capped exponential backoff. After
// MaxReconnectFailures consecutive failures it suspends until Reset.
func (g *Gateway) reconnect(ctx context.Context) error {
	g.reconnectMu.Lock()
	defer g.reconnectMu.Unlock()

	if g.suspended {
		return ErrNotConnected
	}

	// Another goroutine may have recovered the connection while this one
	// waited on the lock.
	if err := g.sqlDB.PingContext(ctx); err == nil {
		g.connected.Store(true)
		g.reconnectFailures = 0
		return nil
	}

	backoff := time.Duration(1<<uint(min(g.reconnectFailures, 4))) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
	}

	if err := g.sqlDB.PingContext(ctx); err != nil {
		g.reconnectFailures++
		if g.reconnectFailures >= g.config.MaxReconnectFailures {
			g.suspended = true
			g.logger.Error("database reconnect suspended after repeated failures",
				zap.Int("failures", g.reconnectFailures))
		}
		return fmt.Errorf("database reconnect: %w", err)
	}

	g.connected.Store(true)
	g.reconnectFailures = 0
	g.logger.Info("database connection re-established")
	return nil
}

func (g *Gateway) healthLoop() {
	ticker := time.NewTicker(g.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := g.sqlDB.PingContext(ctx); err != nil {
			g.connected.Store(false)
			g.logger.Warn("database health probe failed", zap.Error(err))
			_ = g.reconnect(ctx)
		} else {
			g.connected.Store(true)
		}
		cancel()
	}
}

// Stats returns pool statistics.
func (g *Gateway) Stats() sql.DBStats { return g.sqlDB.Stats() }

// Close stops the health loop and releases the pool.
func (g *Gateway) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	g.stopOnce.Do(func() { close(g.stopCh) })
	g.logger.Info("closing database gateway")
	return g.sqlDB.Close()
}

// isConnectionError reports whether err is connection-class and therefore
// worth one transparent retry.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"bad connection",
		"connection refused",
		"connection reset",
		"broken pipe",
		"server closed",
		"unexpected eof",
		"conn closed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
