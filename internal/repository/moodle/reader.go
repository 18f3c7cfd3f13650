package moodle

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// Supported MOODLE_DRIVER values
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Reader loads a dataset straight from a Moodle database
type Reader struct {
	db      *sqlx.DB
	queries *queries
	timeout time.Duration
	log     *zap.Logger
}

// Open connects to the Moodle database described by cfg
func Open(ctx context.Context, cfg config.Moodle, log *zap.Logger) (*Reader, error) {
	driverName, dialectName, err := resolveDriver(cfg, log)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open Moodle database: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSec) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		log.Error("Failed to ping Moodle database", zap.Error(err))
		return nil, fmt.Errorf("failed to ping Moodle database: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	log.Info("Moodle database connection established successfully",
		zap.String("driver", cfg.Driver),
		zap.String("table_prefix", cfg.TablePrefix))

	return NewReader(db, dialectName, cfg.TablePrefix, time.Duration(cfg.QueryTimeoutSec)*time.Second, log), nil
}

// NewReader wraps an open connection. dialectName is one of the entgo dialect names.
func NewReader(db *sqlx.DB, dialectName, tablePrefix string, timeout time.Duration, log *zap.Logger) *Reader {
	return &Reader{
		db:      db,
		queries: newQueries(dialectName, tablePrefix),
		timeout: timeout,
		log:     log,
	}
}

// resolveDriver maps the configured driver onto a database/sql driver and an
// entgo dialect, validating the DSN where the driver can parse it
func resolveDriver(cfg config.Moodle, log *zap.Logger) (string, string, error) {
	if cfg.DSN == "" {
		return "", "", fmt.Errorf("MOODLE_DSN is required")
	}

	switch cfg.Driver {
	case DriverMySQL:
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
		}
		log.Info("Connecting to Moodle database",
			zap.String("driver", cfg.Driver),
			zap.String("address", parsed.Addr),
			zap.String("database", parsed.DBName))
		return "mysql", dialect.MySQL, nil
	case DriverPostgres:
		parsed, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return "", "", fmt.Errorf("failed to parse PostgreSQL DSN: %w", err)
		}
		log.Info("Connecting to Moodle database",
			zap.String("driver", cfg.Driver),
			zap.String("host", parsed.Host),
			zap.String("database", parsed.Database))
		return "pgx", dialect.Postgres, nil
	case DriverSQLite:
		log.Info("Connecting to Moodle database",
			zap.String("driver", cfg.Driver),
			zap.String("path", cfg.DSN))
		return "sqlite", dialect.SQLite, nil
	}
	return "", "", fmt.Errorf("unsupported Moodle driver %q (supported: mysql, postgres, sqlite)", cfg.Driver)
}

// Load reads all six tables. Any query failure aborts the load.
func (r *Reader) Load(ctx context.Context) (*domain.Dataset, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	ds := &domain.Dataset{}

	if err := r.selectInto(ctx, &ds.Events, "events", r.queries.events); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &ds.Quizzes, "quizzes", r.queries.quizzes); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &ds.Posts, "posts", r.queries.posts); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &ds.Completions, "completions", r.queries.completions); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &ds.Courses, "courses", r.queries.courses); err != nil {
		return nil, err
	}
	if err := r.selectInto(ctx, &ds.Users, "users", r.queries.users); err != nil {
		return nil, err
	}

	var enrolments []enrolmentCount
	if err := r.selectInto(ctx, &enrolments, "enrolments", r.queries.enrolments); err != nil {
		return nil, err
	}
	applyEnrolments(ds.Courses, enrolments)
	normalizeTimes(ds)

	r.log.Info("Loaded Moodle dataset",
		zap.Int("events", len(ds.Events)),
		zap.Int("quizzes", len(ds.Quizzes)),
		zap.Int("posts", len(ds.Posts)),
		zap.Int("completions", len(ds.Completions)),
		zap.Int("courses", len(ds.Courses)),
		zap.Int("users", len(ds.Users)),
		zap.Duration("duration", time.Since(start)))

	return ds, nil
}

func (r *Reader) selectInto(ctx context.Context, dest interface{}, table string, build func() (string, []any)) error {
	query, args := build()
	if err := r.db.SelectContext(ctx, dest, query, args...); err != nil {
		r.log.Error("Failed to query Moodle table", zap.String("table", table), zap.Error(err))
		return fmt.Errorf("failed to load %s: %w: %w", table, domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

// Ping checks if the Moodle connection is alive
func (r *Reader) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the Moodle connection
func (r *Reader) Close() error {
	return r.db.Close()
}

type enrolmentCount struct {
	CourseID string `db:"course_id"`
	Users    int    `db:"enrolled_users"`
}

func applyEnrolments(courses []domain.Course, counts []enrolmentCount) {
	byCourse := make(map[string]int, len(counts))
	for _, c := range counts {
		byCourse[c.CourseID] = c.Users
	}
	for i := range courses {
		courses[i].EnrolledUsers = byCourse[courses[i].CourseID]
	}
}

// normalizeTimes turns Moodle's 0 "not set" timestamps into nil
func normalizeTimes(ds *domain.Dataset) {
	for i := range ds.Quizzes {
		q := &ds.Quizzes[i]
		q.StartTime = zeroToNil(q.StartTime)
		q.FinishTime = zeroToNil(q.FinishTime)
	}
	for i := range ds.Completions {
		c := &ds.Completions[i]
		c.Enrolled = zeroToNil(c.Enrolled)
		c.Started = zeroToNil(c.Started)
		c.Completed = zeroToNil(c.Completed)
	}
	for i := range ds.Users {
		ds.Users[i].LastAccess = zeroToNil(ds.Users[i].LastAccess)
	}
}

func zeroToNil(v *int64) *int64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}
