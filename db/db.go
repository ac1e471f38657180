package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"bidtracker/config"
	"bidtracker/internal/metrics"
)

// Storage доступ к данным заявок поверх пула соединений
type Storage struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Storage)

// WithMetrics включает метрики длительности операций
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Storage) { s.metrics = m }
}

// WithClock подменяет часы (для тестов ссылок)
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

func NewStorage(db *sqlx.DB, opts ...Option) *Storage {
	s := &Storage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect открывает пул соединений с PostgreSQL
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return conn, nil
}

// withTx выполняет fn в транзакции; при ошибке или панике всё откатывается
func (s *Storage) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) (err error) {
	defer s.track(op)()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return classify(err)
	}
	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Storage) track(op string) func() {
	if s.metrics == nil {
		return func() {}
	}
	return s.metrics.TrackDB(op)
}

// nullIfEmpty пустая строка уходит в БД как NULL (для DATE)
func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
