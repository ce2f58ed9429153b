// Package database opens the database grids are read from.
//
// Two drivers are supported:
//   - postgres: a pgx connection pool with New Relic and, in the local
//     environment, SQL trace logging
//   - sqlite: modernc.org/sqlite behind database/sql
//
// Either way the Database implements sqlset.Runner, so grid querysets do
// not care which one is in use.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/deppfellow/go-datatables/internal/config"
	loggerConfig "github.com/deppfellow/go-datatables/internal/logger"
	"github.com/deppfellow/go-datatables/internal/queryset"
	"github.com/deppfellow/go-datatables/internal/queryset/sqlset"
)

// DatabasePingTimeout is how many seconds startup waits for the first ping.
const DatabasePingTimeout = 10

// Database is the open connection pool of one driver. Exactly one of Pool
// and SQL is set.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB

	dialect   sqlset.Dialect
	sqlRunner sqlset.SQLRunner
	log       *zerolog.Logger
	slowQuery time.Duration
}

// multiTracer fans pgx query tracing out to several tracers; pgx only has
// one tracer slot.
type multiTracer struct {
	tracers []any
}

func (mt *multiTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryStart(context.Context, *pgx.Conn, pgx.TraceQueryStartData) context.Context
		}); ok {
			ctx = t.TraceQueryStart(ctx, conn, data)
		}
	}
	return ctx
}

func (mt *multiTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData)
		}); ok {
			t.TraceQueryEnd(ctx, conn, data)
		}
	}
}

// New opens the configured database and pings it.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	var (
		db  *Database
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = newPostgres(cfg, logger, loggerService)
	case "sqlite":
		db, err = newSQLite(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}
	db.slowQuery = cfg.Observability.Logging.SlowQueryThreshold

	ctx, cancel := context.WithTimeout(context.Background(), DatabasePingTimeout*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to the database")
	return db, nil
}

// PostgresDSN builds the connection URL, escaping the password.
func PostgresDSN(cfg config.DatabaseConfig) string {
	hostPort := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		hostPort,
		cfg.Name,
		cfg.SSLMode,
	)
}

func newPostgres(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	pgxPoolConfig, err := pgxpool.ParseConfig(PostgresDSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}
	pgxPoolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	pgxPoolConfig.MaxConnLifetime = time.Duration(cfg.Database.ConnMaxLifetime) * time.Second
	pgxPoolConfig.MaxConnIdleTime = time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second

	if loggerService.GetApplication() != nil {
		pgxPoolConfig.ConnConfig.Tracer = nrpgx5.NewTracer()
	}

	// SQL logging is far too noisy outside local development.
	if cfg.Primary.Env == "local" {
		globalLevel := logger.GetLevel()
		localTracer := &tracelog.TraceLog{
			Logger:   pgxzero.NewLogger(loggerConfig.NewPgxLogger(globalLevel)),
			LogLevel: tracelog.LogLevel(loggerConfig.GetPgxTraceLogLevel(globalLevel)),
		}
		if pgxPoolConfig.ConnConfig.Tracer != nil {
			pgxPoolConfig.ConnConfig.Tracer = &multiTracer{
				tracers: []any{pgxPoolConfig.ConnConfig.Tracer, localTracer},
			}
		} else {
			pgxPoolConfig.ConnConfig.Tracer = localTracer
		}
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	return &Database{
		Pool:    pool,
		dialect: sqlset.Postgres{},
		log:     logger,
	}, nil
}

func newSQLite(cfg *config.Config, logger *zerolog.Logger) (*Database, error) {
	db, err := OpenSQLite(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &Database{
		SQL:       db,
		dialect:   sqlset.SQLite{},
		sqlRunner: sqlset.SQLRunner{DB: db},
		log:       logger,
	}, nil
}

// OpenSQLite opens a SQLite database with the configured pool limits. An
// in-memory database is held on a single connection, since each new
// connection would see an empty database of its own.
func OpenSQLite(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", cfg.Path, err)
	}
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return db, nil
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	return db, nil
}

// NewFromSQL wraps an already open SQLite handle.
func NewFromSQL(db *sql.DB, logger *zerolog.Logger) *Database {
	return &Database{
		SQL:       db,
		dialect:   sqlset.SQLite{},
		sqlRunner: sqlset.SQLRunner{DB: db},
		log:       logger,
	}
}

// Dialect returns the SQL dialect of the open driver.
func (db *Database) Dialect() sqlset.Dialect {
	return db.dialect
}

// Ping checks that the database answers.
func (db *Database) Ping(ctx context.Context) error {
	if db.Pool != nil {
		return db.Pool.Ping(ctx)
	}
	return db.SQL.PingContext(ctx)
}

// Close releases the pool.
func (db *Database) Close() error {
	db.log.Info().Msg("closing database connection pool")
	if db.Pool != nil {
		db.Pool.Close()
		return nil
	}
	return db.SQL.Close()
}

// QueryRows runs a query and returns every row keyed by column name.
func (db *Database) QueryRows(ctx context.Context, query string, args ...any) ([]queryset.Row, error) {
	defer db.observe(ctx, query, time.Now())

	if db.Pool == nil {
		return db.sqlRunner.QueryRows(ctx, query, args...)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	out := make([]queryset.Row, len(maps))
	for i, m := range maps {
		for k, v := range m {
			m[k] = normalize(v)
		}
		out[i] = queryset.Row(m)
	}
	return out, nil
}

// QueryCount runs a query returning a single integer.
func (db *Database) QueryCount(ctx context.Context, query string, args ...any) (int, error) {
	defer db.observe(ctx, query, time.Now())

	if db.Pool == nil {
		return db.sqlRunner.QueryCount(ctx, query, args...)
	}

	var n int64
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (db *Database) observe(ctx context.Context, query string, start time.Time) {
	elapsed := time.Since(start)
	if db.slowQuery <= 0 || elapsed < db.slowQuery {
		return
	}
	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = db.log
	}
	log.Warn().
		Dur("duration", elapsed).
		Str("query", query).
		Msg("slow grid query")
}

// normalize turns pgx values that do not encode well as JSON into plain
// ones.
func normalize(v any) any {
	switch v := v.(type) {
	case [16]byte:
		return uuid.UUID(v).String()
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
