package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

type collection struct {
	b    *Backend
	name string
}

// run ejecuta fn con el querier correcto: la tx de la saga si hay una en el
// contexto, si no el pool.
func (c *collection) run(ctx context.Context, fn func(q querier) error) error {
	if s, ok := resource.SessionFrom(ctx); ok {
		ps, ok := s.(*session)
		if !ok || ps.b != c.b {
			return fmt.Errorf("%w: session %s belongs to another backend", resource.ErrInvalidInput, s.ID())
		}
		ps.mu.Lock()
		defer ps.mu.Unlock()
		if ps.done {
			return fmt.Errorf("%w: session %s is closed", resource.ErrWrongState, ps.id)
		}
		return fn(ps.tx)
	}
	return fn(c.b.pool)
}

// atomic es run pero garantiza transacción: usa la de la saga o abre una.
func (c *collection) atomic(ctx context.Context, fn func(q querier) error) error {
	if _, ok := resource.SessionFrom(ctx); ok {
		return c.run(ctx, fn)
	}
	tx, err := c.b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg: commit: %w", err)
	}
	return nil
}

func decode(raw []byte) (resource.Document, error) {
	var doc resource.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("pg: decode document: %w", err)
	}
	return doc, nil
}

func encode(doc resource.Document) (string, *time.Time, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", resource.ErrInvalidInput, err)
	}
	var deletedAt *time.Time
	if s := doc.String(resource.KeyDeletedAt); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return "", nil, fmt.Errorf("%w: deleted_at: %v", resource.ErrInvalidInput, err)
		}
		deletedAt = &t
	}
	return string(raw), deletedAt, nil
}

func mapErr(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", name, resource.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", name, resource.ErrConflict)
		case "22P02", "22023":
			return fmt.Errorf("%s: %w: %s", name, resource.ErrInvalidInput, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (c *collection) Count(ctx context.Context, tenant string, q resource.Query) (int64, error) {
	tbl, err := c.b.ensure(ctx, c.name)
	if err != nil {
		return 0, err
	}
	cond, args, err := where(tenant, q, resource.Live)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.run(ctx, func(db querier) error {
		return db.QueryRow(ctx, "SELECT count(*) FROM "+tbl+" WHERE "+cond, args...).Scan(&n)
	})
	return n, mapErr(c.name, err)
}

func (c *collection) Insert(ctx context.Context, tenant string, docs ...resource.Document) error {
	tbl, err := c.b.ensure(ctx, c.name)
	if err != nil {
		return err
	}
	err = c.atomic(ctx, func(db querier) error {
		for _, d := range docs {
			raw, deletedAt, err := encode(d)
			if err != nil {
				return err
			}
			_, err = db.Exec(ctx,
				"INSERT INTO "+tbl+" (id, tenant, doc, deleted_at) VALUES ($1, $2, $3::jsonb, $4)",
				d.String(resource.KeyID), tenant, raw, deletedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return mapErr(c.name, err)
}

func (c *collection) Find(ctx context.Context, tenant string, f resource.Filter) ([]resource.Document, error) {
	var out []resource.Document
	err := c.Iterate(ctx, tenant, f, func(d resource.Document) error {
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []resource.Document{}
	}
	return out, nil
}

func (c *collection) Iterate(ctx context.Context, tenant string, f resource.Filter, fn func(resource.Document) error) error {
	tbl, err := c.b.ensure(ctx, c.name)
	if err != nil {
		return err
	}
	sql, args, err := selectSQL(tbl, "doc", tenant, f)
	if err != nil {
		return err
	}
	err = c.run(ctx, func(db querier) error {
		rows, err := db.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			doc, err := decode(raw)
			if err != nil {
				return err
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	return mapErr(c.name, err)
}

func (c *collection) FindOne(ctx context.Context, tenant string, q resource.Query, scope resource.Scope) (resource.Document, error) {
	tbl, err := c.b.ensure(ctx, c.name)
	if err != nil {
		return nil, err
	}
	cond, args, err := where(tenant, q, scope)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = c.run(ctx, func(db querier) error {
		return db.QueryRow(ctx, "SELECT doc FROM "+tbl+" WHERE "+cond+" ORDER BY seq LIMIT 1", args...).Scan(&raw)
	})
	if err != nil {
		return nil, mapErr(c.name, err)
	}
	return decode(raw)
}

func (c *collection) UpdateOne(ctx context.Context, tenant string, q resource.Query, scope resource.Scope, mutate resource.Mutator) (resource.Document, error) {
	tbl, err := c.b.ensure(ctx, c.name)
	if err != nil {
		return nil, err
	}
	cond, args, err := where(tenant, q, scope)
	if err != nil {
		return nil, err
	}
	var result resource.Document
	err = c.atomic(ctx, func(db querier) error {
		var (
			seq int64
			raw []byte
		)
		row := db.QueryRow(ctx, "SELECT seq, doc FROM "+tbl+" WHERE "+cond+" ORDER BY seq LIMIT 1 FOR UPDATE", args...)
		if err := row.Scan(&seq, &raw); err != nil {
			return err
		}
		doc, err := decode(raw)
		if err != nil {
			return err
		}
		next, err := mutate(doc)
		if err != nil {
			return err
		}
		enc, deletedAt, err := encode(next)
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, "UPDATE "+tbl+" SET doc = $1::jsonb, deleted_at = $2 WHERE seq = $3", enc, deletedAt, seq); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, mapErr(c.name, err)
	}
	return result, nil
}

func (c *collection) UpdateMany(ctx context.Context, tenant string, q resource.Query, mutate resource.Mutator) (int64, error) {
	tbl, err := c.b.ensure(ctx, c.name)
	if err != nil {
		return 0, err
	}
	cond, args, err := where(tenant, q, resource.Live)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.atomic(ctx, func(db querier) error {
		rows, err := db.Query(ctx, "SELECT seq, doc FROM "+tbl+" WHERE "+cond+" ORDER BY seq FOR UPDATE", args...)
		if err != nil {
			return err
		}
		type pending struct {
			seq int64
			doc resource.Document
		}
		var batch []pending
		for rows.Next() {
			var (
				seq int64
				raw []byte
			)
			if err := rows.Scan(&seq, &raw); err != nil {
				rows.Close()
				return err
			}
			doc, err := decode(raw)
			if err != nil {
				rows.Close()
				return err
			}
			batch = append(batch, pending{seq: seq, doc: doc})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, p := range batch {
			next, err := mutate(p.doc)
			if err != nil {
				return err
			}
			enc, deletedAt, err := encode(next)
			if err != nil {
				return err
			}
			if _, err := db.Exec(ctx, "UPDATE "+tbl+" SET doc = $1::jsonb, deleted_at = $2 WHERE seq = $3", enc, deletedAt, p.seq); err != nil {
				return err
			}
		}
		n = int64(len(batch))
		return nil
	})
	return n, mapErr(c.name, err)
}

func (c *collection) DeleteOne(ctx context.Context, tenant string, q resource.Query, scope resource.Scope) (resource.Document, error) {
	tbl, err := c.b.ensure(ctx, c.name)
	if err != nil {
		return nil, err
	}
	cond, args, err := where(tenant, q, scope)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = c.atomic(ctx, func(db querier) error {
		var seq int64
		row := db.QueryRow(ctx, "SELECT seq, doc FROM "+tbl+" WHERE "+cond+" ORDER BY seq LIMIT 1 FOR UPDATE", args...)
		if err := row.Scan(&seq, &raw); err != nil {
			return err
		}
		_, err := db.Exec(ctx, "DELETE FROM "+tbl+" WHERE seq = $1", seq)
		return err
	})
	if err != nil {
		return nil, mapErr(c.name, err)
	}
	return decode(raw)
}
