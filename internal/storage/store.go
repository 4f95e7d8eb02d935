// Package storage persists calculation records through gorm. PostgreSQL is
// the production dialect; SQLite serves local runs and tests.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"go-chi-calculator/internal/config"
)

var tracer = otel.Tracer("storage")

// Store is the durable home of calculation records. It is safe for
// concurrent use; every write is its own transaction.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	driver string
}

// Open connects to the configured database, retrying with exponential
// backoff up to cfg.ConnectAttempts times. A failure to connect wraps
// ErrUnavailable.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger:  newZapLogger(logger, cfg.SlowThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	connect := func() (*gorm.DB, error) {
		dialector, err := newDialector(cfg)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		db, err := gorm.Open(dialector, gormCfg)
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}

		return db, nil
	}

	policy := backoff.NewExponentialBackOff()
	if cfg.ConnectInterval > 0 {
		policy.InitialInterval = cfg.ConnectInterval
	}

	attempts := max(cfg.ConnectAttempts, 1)

	db, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("database connection attempt failed",
				zap.String("driver", cfg.Driver),
				zap.Error(err),
				zap.Duration("retry_in", next),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w: %w", cfg.Driver, ErrUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite allows a single writer, and each :memory: connection would
		// otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	logger.Info("connected to database", zap.String("driver", cfg.Driver))

	return &Store{db: db, sqlDB: sqlDB, driver: cfg.Driver}, nil
}

func newDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates the calculations table and its indexes if absent.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "storage.migrate")
	defer span.End()

	if err := s.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return s.fail(span, classifyError("migrate", err))
	}
	return nil
}

// Check inspects a row as the database stored it, before it is committed.
type Check func(stored *Record) error

// Create inserts rec and reloads it inside one transaction so ID and
// CreatedAt reflect what the database stored. A failing check rolls the
// insert back and its error is returned unchanged.
func (s *Store) Create(ctx context.Context, rec *Record, checks ...Check) error {
	ctx, span := s.startSpan(ctx, "storage.create",
		attribute.String("calculator.operation", rec.Operation),
	)
	defer span.End()

	var checkErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *rec
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		var stored Record
		if err := tx.First(&stored, row.ID).Error; err != nil {
			return err
		}

		for _, check := range checks {
			if checkErr = check(&stored); checkErr != nil {
				return checkErr
			}
		}

		*rec = stored
		return nil
	})
	if checkErr != nil {
		return s.fail(span, checkErr)
	}
	if err != nil {
		return s.fail(span, classifyError("insert calculation", err))
	}

	span.SetAttributes(attribute.Int64("calculation.id", int64(rec.ID)))
	return nil
}

// Get returns the record with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uint) (*Record, error) {
	ctx, span := s.startSpan(ctx, "storage.get",
		attribute.Int64("calculation.id", int64(id)),
	)
	defer span.End()

	var rec Record
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.SetAttributes(attribute.Bool("calculation.found", false))
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(span, classifyError("get calculation", err))
	}
	return &rec, nil
}

// List returns at most limit records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	ctx, span := s.startSpan(ctx, "storage.list",
		attribute.Int("history.limit", limit),
	)
	defer span.End()

	records := make([]Record, 0)
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, s.fail(span, classifyError("list calculations", err))
	}

	span.SetAttributes(attribute.Int("history.count", len(records)))
	return records, nil
}

// Ping checks that the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Collector exposes connection pool statistics to Prometheus.
func (s *Store) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(s.sqlDB, "calculations")
}

func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func (s *Store) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", s.driver))
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (s *Store) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
