package graph

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medkg/medkg/internal/platform/db"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations is the schema of the postgres backend.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// PGSchema is where the kg_node and kg_edge tables live.
const PGSchema = "public"

// PGStore keeps the graph in two tables: kg_node keyed by (label, key) and
// kg_edge keyed by type and endpoints, with foreign keys to kg_node.
type PGStore struct {
	pool  *pgxpool.Pool
	batch int
}

// NewPGStore wraps an open pool. batch bounds the statements queued per
// round trip; all batches of one call share a transaction.
func NewPGStore(pool *pgxpool.Pool, batch int) *PGStore {
	if batch <= 0 {
		batch = 1000
	}
	return &PGStore{pool: pool, batch: batch}
}

// EnsureConstraints applies pending migrations; the uniqueness constraints
// are the primary keys and the partial index they create.
func (s *PGStore) EnsureConstraints(ctx context.Context) error {
	if _, err := db.NewMigrator(s.pool, Migrations()).Up(ctx, PGSchema); err != nil {
		return fmt.Errorf("migrate graph schema: %w", err)
	}
	return nil
}

const upsertNode = `
INSERT INTO kg_node (label, key, props) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (label, key) DO UPDATE SET props = kg_node.props || EXCLUDED.props, updated_at = NOW()`

const upsertEdge = `
INSERT INTO kg_edge (rel, from_label, from_key, to_label, to_key, props) VALUES ($1, $2, $3, $4, $5, $6::jsonb)
ON CONFLICT (rel, from_label, from_key, to_label, to_key) DO UPDATE SET props = kg_edge.props || EXCLUDED.props, updated_at = NOW()`

func (s *PGStore) MergeNodes(ctx context.Context, label string, nodes []Node) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.queueNodes(ctx, tx, label, nodes)
	})
}

func (s *PGStore) MergeEdges(ctx context.Context, rel string, edges []Edge) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.queueEdges(ctx, tx, rel, edges)
	})
}

// MergeSteps writes the steps in order inside one transaction; the foreign
// keys of later edge steps see the nodes of earlier ones.
func (s *PGStore) MergeSteps(ctx context.Context, steps []Step) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, st := range steps {
			var err error
			if st.Rel != "" {
				err = s.queueEdges(ctx, tx, st.Rel, st.Edges)
			} else {
				err = s.queueNodes(ctx, tx, st.Label, st.Nodes)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) queueNodes(ctx context.Context, tx pgx.Tx, label string, nodes []Node) error {
	keyProp, ok := KeyProps[label]
	if !ok {
		return fmt.Errorf("unknown label %q", label)
	}
	b := &pgx.Batch{}
	for _, n := range nodes {
		props := map[string]any{keyProp: n.Key}
		for k, v := range n.Props {
			if v != nil {
				props[k] = v
			}
		}
		data, err := json.Marshal(props)
		if err != nil {
			return fmt.Errorf("encode %s %v: %w", label, n.Key, err)
		}
		b.Queue(upsertNode, label, keyString(n.Key), string(data))
		if b.Len() >= s.batch {
			if err := send(ctx, tx, b); err != nil {
				return err
			}
			b = &pgx.Batch{}
		}
	}
	return send(ctx, tx, b)
}

func (s *PGStore) queueEdges(ctx context.Context, tx pgx.Tx, rel string, edges []Edge) error {
	ends, ok := Endpoints[rel]
	if !ok {
		return fmt.Errorf("unknown relationship type %q", rel)
	}
	b := &pgx.Batch{}
	for _, e := range edges {
		props := e.Props
		if props == nil {
			props = map[string]any{}
		}
		data, err := json.Marshal(props)
		if err != nil {
			return fmt.Errorf("encode %s edge: %w", rel, err)
		}
		b.Queue(upsertEdge, rel, ends[0], keyString(e.From), ends[1], keyString(e.To), string(data))
		if b.Len() >= s.batch {
			if err := send(ctx, tx, b); err != nil {
				return err
			}
			b = &pgx.Batch{}
		}
	}
	return send(ctx, tx, b)
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return classifyPG(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyPG(err)
	}
	return nil
}

func send(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

// classifyPG maps unique violations to ErrConstraintViolation and foreign
// key violations (an edge to a node not yet loaded) to ErrLoadOrder.
func classifyPG(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s (%s)", pipeline.ErrConstraintViolation, pgErr.Message, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s (%s)", pipeline.ErrLoadOrder, pgErr.Message, pgErr.ConstraintName)
		}
	}
	return err
}

func (s *PGStore) count(ctx context.Context, query string) (Counts, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	defer rows.Close()

	out := make(Counts)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}

func (s *PGStore) CountNodes(ctx context.Context) (Counts, error) {
	return s.count(ctx, `SELECT label, COUNT(*) FROM kg_node GROUP BY label`)
}

func (s *PGStore) CountEdges(ctx context.Context) (Counts, error) {
	return s.count(ctx, `SELECT rel, COUNT(*) FROM kg_edge GROUP BY rel`)
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PoolStats reports connection pool statistics for the status API.
func (s *PGStore) PoolStats() *db.PoolStats {
	return db.GetPoolStats(s.pool)
}

func (s *PGStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}
