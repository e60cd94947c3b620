package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Neo4jStore writes the graph with Cypher MERGE over UNWIND batches.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	batch    int
}

// NewNeo4jStore connects and verifies connectivity.
func NewNeo4jStore(ctx context.Context, uri, user, password, database string, batch int) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: neo4j driver: %v", pipeline.ErrConfig, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect neo4j %s: %w", uri, err)
	}
	if batch <= 0 {
		batch = 1000
	}
	return &Neo4jStore{driver: driver, database: database, batch: batch}, nil
}

func (s *Neo4jStore) EnsureConstraints(ctx context.Context) error {
	for _, c := range Constraints {
		q := fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			c.Name(), c.Label, c.Property)
		if _, err := neo4j.ExecuteQuery(ctx, s.driver, q, nil, neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database)); err != nil {
			return fmt.Errorf("create constraint %s: %w", c.Name(), err)
		}
	}
	return nil
}

func (s *Neo4jStore) MergeNodes(ctx context.Context, label string, nodes []Node) error {
	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		return s.runNodes(ctx, tx, label, nodes)
	})
}

// MergeEdges matches both endpoints first; a row whose endpoint is missing
// merges nothing and fails the batch with ErrLoadOrder.
func (s *Neo4jStore) MergeEdges(ctx context.Context, rel string, edges []Edge) error {
	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		return s.runEdges(ctx, tx, rel, edges)
	})
}

// MergeSteps runs every step in one managed write transaction.
func (s *Neo4jStore) MergeSteps(ctx context.Context, steps []Step) error {
	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, st := range steps {
			var err error
			if st.Rel != "" {
				err = s.runEdges(ctx, tx, st.Rel, st.Edges)
			} else {
				err = s.runNodes(ctx, tx, st.Label, st.Nodes)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Neo4jStore) runNodes(ctx context.Context, tx neo4j.ManagedTransaction, label string, nodes []Node) error {
	keyProp, ok := KeyProps[label]
	if !ok {
		return fmt.Errorf("unknown label %q", label)
	}
	q := fmt.Sprintf("UNWIND $rows AS row MERGE (n:%s {%s: row.key}) SET n += row.props", label, keyProp)
	rows := make([]any, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, map[string]any{"key": n.Key, "props": n.Props})
	}
	for _, chunk := range chunks(rows, s.batch) {
		res, err := tx.Run(ctx, q, map[string]any{"rows": chunk})
		if err != nil {
			return err
		}
		if _, err := res.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Neo4jStore) runEdges(ctx context.Context, tx neo4j.ManagedTransaction, rel string, edges []Edge) error {
	ends, ok := Endpoints[rel]
	if !ok {
		return fmt.Errorf("unknown relationship type %q", rel)
	}
	q := fmt.Sprintf(`UNWIND $rows AS row
MATCH (a:%s {%s: row.from})
MATCH (b:%s {%s: row.to})
MERGE (a)-[r:%s]->(b)
SET r += row.props
RETURN count(r) AS merged`, ends[0], KeyProps[ends[0]], ends[1], KeyProps[ends[1]], rel)
	rows := make([]any, 0, len(edges))
	for _, e := range edges {
		props := e.Props
		if props == nil {
			props = map[string]any{}
		}
		rows = append(rows, map[string]any{"from": e.From, "to": e.To, "props": props})
	}
	for _, chunk := range chunks(rows, s.batch) {
		res, err := tx.Run(ctx, q, map[string]any{"rows": chunk})
		if err != nil {
			return err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return err
		}
		merged, _ := rec.Get("merged")
		if n, _ := merged.(int64); int(n) != len(chunk) {
			return fmt.Errorf("%w: %s merged %d of %d edges, endpoints missing",
				pipeline.ErrLoadOrder, rel, n, len(chunk))
		}
	}
	return nil
}

func (s *Neo4jStore) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return classifyNeo4j(err)
}

func classifyNeo4j(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed" {
		return fmt.Errorf("%w: %s", pipeline.ErrConstraintViolation, neoErr.Msg)
	}
	return err
}

func (s *Neo4jStore) count(ctx context.Context, query string) (Counts, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, query, nil, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database), neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	out := make(Counts, len(res.Records))
	for _, rec := range res.Records {
		name, _ := rec.Values[0].(string)
		n, _ := rec.Values[1].(int64)
		out[name] = int(n)
	}
	return out, nil
}

func (s *Neo4jStore) CountNodes(ctx context.Context) (Counts, error) {
	return s.count(ctx, "MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS n")
}

func (s *Neo4jStore) CountEdges(ctx context.Context) (Counts, error) {
	return s.count(ctx, "MATCH ()-[r]->() RETURN type(r) AS rel, count(*) AS n")
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func chunks(rows []any, size int) [][]any {
	var out [][]any
	for size < len(rows) {
		rows, out = rows[size:], append(out, rows[:size])
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}
