package warehouse

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ConnectParams are the warehouse connection parameters. The password is
// resolved from the environment (DATAMEDIC_WAREHOUSE_PASSWORD, then
// PGPASSWORD) so it never lives in config files.
type ConnectParams struct {
	Host     string
	Port     int
	User     string
	Database string
	SSLMode  string
}

// Session is the single warehouse session shared by every worker in a run.
//
// The underlying client is not safe for concurrent statement submission over
// one connection, so Session serializes submission with a mutex; workers
// multiplex the session but never interleave statements.
type Session struct {
	db    *sqlx.DB
	runID string

	mu  sync.Mutex
	log *zap.Logger
}

// Option configures a Session at connect time.
type Option func(*Session)

// WithQueryLog attaches a structured audit logger; every executed statement
// is recorded with its check name, duration, and error.
func WithQueryLog(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.log = logger
		}
	}
}

// Connect opens the single shared session for a run and verifies it with a
// ping. A failure here is fatal to the whole run: it is returned as an
// error, never converted into per-check outcomes.
func Connect(ctx context.Context, p ConnectParams, opts ...Option) (*Session, error) {
	if p.Host == "" {
		return nil, fmt.Errorf("warehouse host is required")
	}
	if p.Database == "" {
		return nil, fmt.Errorf("warehouse database is required")
	}

	db, err := sqlx.Open("postgres", buildDSN(p))
	if err != nil {
		return nil, fmt.Errorf("open warehouse connection: %w", err)
	}
	// One shared physical connection: workers serialize on it anyway, and a
	// single session avoids redundant authentication round-trips.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to warehouse %s/%s: %w", p.Host, p.Database, err)
	}

	s := &Session{
		db:    db,
		runID: uuid.NewString(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info("session established",
		zap.String("run_id", s.runID),
		zap.String("host", p.Host),
		zap.String("database", p.Database),
	)
	return s, nil
}

// RunID identifies this session's run in audit logs and result metadata.
func (s *Session) RunID() string { return s.runID }

// QueryRow executes a query expected to return a single row and scans it
// into dest (a struct or primitive, per sqlx.Get).
func (s *Session) QueryRow(ctx context.Context, checkName, query string, dest any, args ...any) error {
	return s.serialized(ctx, checkName, query, func(qctx context.Context) error {
		return s.db.GetContext(qctx, dest, query, args...)
	})
}

// QueryAll executes a query and scans all rows into dest (a slice pointer,
// per sqlx.Select).
func (s *Session) QueryAll(ctx context.Context, checkName, query string, dest any, args ...any) error {
	return s.serialized(ctx, checkName, query, func(qctx context.Context) error {
		return s.db.SelectContext(qctx, dest, query, args...)
	})
}

// Count executes a query whose first column is a count and returns it.
func (s *Session) Count(ctx context.Context, checkName, query string, args ...any) (int64, error) {
	var n int64
	err := s.QueryRow(ctx, checkName, query, &n, args...)
	return n, err
}

func (s *Session) serialized(ctx context.Context, checkName, query string, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	err := fn(ctx)
	elapsed := time.Since(started)

	fields := []zap.Field{
		zap.String("run_id", s.runID),
		zap.String("check", checkName),
		zap.String("query", collapseWhitespace(query)),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		s.log.Error("query failed", append(fields, zap.Error(err))...)
		return err
	}
	s.log.Info("query executed", fields...)
	return nil
}

// Close releases the shared session.
func (s *Session) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.log.Info("session closed", zap.String("run_id", s.runID))
	return s.db.Close()
}

// QualifyTable builds the fully qualified, quoted identifier for a table.
func QualifyTable(database, schema, table string) string {
	return fmt.Sprintf("%s.%s.%s", quoteIdent(database), quoteIdent(schema), quoteIdent(table))
}

// QualifySchema builds the fully qualified, quoted identifier for a schema.
func QualifySchema(database, schema string) string {
	return fmt.Sprintf("%s.%s", quoteIdent(database), quoteIdent(schema))
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func buildDSN(p ConnectParams) string {
	port := p.Port
	if port == 0 {
		port = 5432
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}

	parts := []string{
		"host=" + dsnValue(p.Host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + dsnValue(p.Database),
		"sslmode=" + dsnValue(sslmode),
	}
	if p.User != "" {
		parts = append(parts, "user="+dsnValue(p.User))
	}
	if pw := resolvePassword(); pw != "" {
		parts = append(parts, "password="+dsnValue(pw))
	}
	return strings.Join(parts, " ")
}

func resolvePassword() string {
	if pw := os.Getenv("DATAMEDIC_WAREHOUSE_PASSWORD"); pw != "" {
		return pw
	}
	return os.Getenv("PGPASSWORD")
}

// dsnValue quotes a libpq keyword/value entry when it needs it.
func dsnValue(v string) string {
	if v == "" || strings.ContainsAny(v, " '\\") {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		return "'" + v + "'"
	}
	return v
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
