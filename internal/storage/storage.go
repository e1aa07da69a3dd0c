// Package storage owns the three on-device SQLite databases. Each logical
// store is opened independently, carries its own schema, and is guarded by a
// liveness probe: the platform can silently invalidate an open handle after
// an interruption, so every handle fetch re-verifies the connection and
// reopens it (with bounded backoff) instead of letting downstream queries
// fail one by one.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/glebarez/go-sqlite"
	"go.uber.org/zap"

	apperrors "github.com/medtrackr/backend/internal/errors"
)

// Options controls connection-retry and lock-acquisition behaviour
type Options struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	LockTimeout    time.Duration
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
		LockTimeout:    5 * time.Second,
	}
}

// Store is one logical embedded database: a lazily-opened connection, its
// schema DDL, and a set of named in-process locks for compound writes.
type Store struct {
	name   string
	path   string
	schema []string
	opts   Options
	logger *zap.Logger

	mu sync.Mutex // guards db handle open/close
	db *sql.DB

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// New creates a Store. The database is not opened until the first EnsureReady
// or DB call.
func New(name, path string, schema []string, opts Options, logger *zap.Logger) *Store {
	return &Store{
		name:   name,
		path:   path,
		schema: schema,
		opts:   opts,
		logger: logger,
		locks:  make(map[string]chan struct{}),
	}
}

// EnsureReady opens the database if needed, creates tables if absent, and
// verifies liveness with a probe query. A cached handle that fails the probe
// is discarded and reopened. Safe to call from any goroutine; idempotent.
func (s *Store) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := probe(ctx, s.db); err == nil {
			return nil
		}
		s.logger.Warn("liveness probe failed, discarding cached connection",
			zap.String("store", s.name),
		)
		_ = s.db.Close()
		s.db = nil
	}

	open := func() error {
		db, err := sql.Open("sqlite", s.dsn())
		if err != nil {
			return fmt.Errorf("open %s store: %w", s.name, err)
		}
		if err := probe(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("probe %s store: %w", s.name, err)
		}
		for _, stmt := range s.schema {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				return fmt.Errorf("create tables in %s store: %w", s.name, err)
			}
		}
		s.db = db
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.opts.RetryBaseDelay
	expo.MaxElapsedTime = 0

	err := backoff.Retry(open, backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.opts.RetryAttempts)), ctx))
	if err != nil {
		s.logger.Error("failed to open store after retries",
			zap.Error(err),
			zap.String("store", s.name),
			zap.Int("attempts", s.opts.RetryAttempts+1),
		)
		return apperrors.NewUnavailable(fmt.Sprintf("%s store unavailable", s.name), err)
	}

	s.logger.Info("store ready", zap.String("store", s.name), zap.String("path", s.path))
	return nil
}

// DB returns a live database handle, reopening the connection if the liveness
// probe fails.
func (s *Store) DB(ctx context.Context) (*sql.DB, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db, nil
}

// WithLock runs fn while holding the named in-process lock. Compound
// multi-statement operations on the same store must not interleave; reads
// never take locks. Acquisition that exceeds the configured timeout fails
// loudly with a StorageBusy error rather than queueing forever.
func (s *Store) WithLock(ctx context.Context, resource string, fn func() error) error {
	ch := s.lockChan(resource)

	timer := time.NewTimer(s.opts.LockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
	case <-timer.C:
		s.logger.Error("lock acquisition timed out",
			zap.String("store", s.name),
			zap.String("resource", resource),
			zap.Duration("timeout", s.opts.LockTimeout),
		)
		return apperrors.NewBusy(fmt.Sprintf("timed out acquiring %q lock on %s store", resource, s.name), nil)
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()

	return fn()
}

// WithTx runs fn inside a transaction: commit on nil, rollback on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := s.DB(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return TranslateBusy(err, fmt.Sprintf("begin transaction on %s store", s.name))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return TranslateBusy(err, fmt.Sprintf("commit transaction on %s store", s.name))
	}
	return nil
}

// Close releases the underlying connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Name returns the logical store name
func (s *Store) Name() string { return s.name }

func (s *Store) dsn() string {
	// busy_timeout lets the engine wait briefly on contention before
	// reporting SQLITE_BUSY; WAL keeps readers from blocking the writer.
	return s.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(3000)&_pragma=foreign_keys(0)"
}

func (s *Store) lockChan(resource string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[resource]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[resource] = ch
	}
	return ch
}

func probe(ctx context.Context, db *sql.DB) error {
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// IsEngineBusy reports whether err is the engine's lock/contention failure
func IsEngineBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "DATABASE IS LOCKED") || strings.Contains(msg, "DATABASE TABLE IS LOCKED")
}

// TranslateBusy converts an engine contention error into a typed StorageBusy
// error so callers can prompt a retry; other errors pass through wrapped.
func TranslateBusy(err error, message string) error {
	if err == nil {
		return nil
	}
	if IsEngineBusy(err) {
		return apperrors.NewBusy(message, err)
	}
	return fmt.Errorf("%s: %w", message, err)
}
