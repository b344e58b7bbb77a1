// Package pg implementa el backend de documentos sobre PostgreSQL (pgx).
//
// Cada colección es una tabla con el documento en jsonb más las columnas que
// el store necesita indexar:
//
//	seq bigserial | id text | tenant text | doc jsonb | deleted_at timestamptz
//
// Las queries se traducen a operadores jsonb; claves y valores viajan siempre
// como parámetros.
package pg

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
	"github.com/wenex-org/platform-sub000/internal/store"
)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg store.Config) (store.Backend, error) {
		return Open(ctx, cfg)
	})
}

var validIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// querier lo cumplen *pgxpool.Pool y pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Backend es un pool pgx más el registro de tablas ya creadas.
type Backend struct {
	pool   *pgxpool.Pool
	schema string

	mu      sync.Mutex
	ensured map[string]bool
}

// Open crea el pool y verifica la conexión.
func Open(ctx context.Context, cfg store.Config) (*Backend, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("pg: empty DSN")
	}
	if cfg.Schema != "" && !validIdentifier.MatchString(cfg.Schema) {
		return nil, fmt.Errorf("pg: invalid schema %q", cfg.Schema)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Backend{pool: pool, schema: cfg.Schema, ensured: map[string]bool{}}, nil
}

func (b *Backend) Name() string { return "postgres" }

func (b *Backend) Ping(ctx context.Context) error { return b.pool.Ping(ctx) }

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func (b *Backend) Collection(name string) resource.Documents {
	return &collection{b: b, name: name}
}

// Begin abre una transacción que vive hasta Commit/Rollback de la saga.
func (b *Backend) Begin(ctx context.Context) (resource.Session, error) {
	// la tx no debe morir con el request que la abrió
	tx, err := b.pool.Begin(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("pg: begin: %w", err)
	}
	return &session{id: uuid.NewString(), b: b, tx: tx}, nil
}

func (b *Backend) table(name string) (string, error) {
	if !validIdentifier.MatchString(name) {
		return "", fmt.Errorf("%w: invalid collection name %q", resource.ErrInvalidInput, name)
	}
	if b.schema != "" {
		return pgx.Identifier{b.schema, name}.Sanitize(), nil
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// ensure crea la tabla de la colección la primera vez que se usa.
func (b *Backend) ensure(ctx context.Context, name string) (string, error) {
	tbl, err := b.table(name)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ensured[name] {
		return tbl, nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + tbl + ` (
			seq        bigserial PRIMARY KEY,
			id         text NOT NULL,
			tenant     text NOT NULL DEFAULT '',
			doc        jsonb NOT NULL,
			deleted_at timestamptz,
			UNIQUE (tenant, id)
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{name + "_doc_idx"}.Sanitize() + ` ON ` + tbl + ` USING gin (doc jsonb_path_ops)`,
	}
	for _, s := range stmts {
		if _, err := b.pool.Exec(ctx, s); err != nil {
			return "", fmt.Errorf("pg: ensure %s: %w", name, err)
		}
	}
	b.ensured[name] = true
	logger.From(ctx).Debug("collection table ready",
		logger.Layer("store"), logger.Component("pg"), logger.String("table", name))
	return tbl, nil
}

// ─── sesión ───

type session struct {
	id   string
	b    *Backend
	tx   pgx.Tx
	mu   sync.Mutex
	done bool
}

func (s *session) ID() string { return s.id }

func (s *session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return fmt.Errorf("%w: session %s is closed", resource.ErrWrongState, s.id)
	}
	s.done = true
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg: commit: %w", err)
	}
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return fmt.Errorf("%w: session %s is closed", resource.ErrWrongState, s.id)
	}
	s.done = true
	if err := s.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("pg: rollback: %w", err)
	}
	return nil
}
