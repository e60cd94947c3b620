package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkg/medkg/internal/platform/db"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

func TestClassifyPG(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"23505", pipeline.ErrConstraintViolation},
		{"23503", pipeline.ErrLoadOrder},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := classifyPG(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tt.code, Message: "violation"}))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, classifyPG(other))
}

// pgTestStore connects to MEDKG_TEST_DATABASE_URL. The database is
// disposable: the graph tables are truncated before each test.
func pgTestStore(t *testing.T) *PGStore {
	t.Helper()
	url := os.Getenv("MEDKG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MEDKG_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, 4, 1)
	require.NoError(t, err)

	s := NewPGStore(pool, 2)
	t.Cleanup(func() { s.Close(ctx) })
	require.NoError(t, s.EnsureConstraints(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE kg_edge, kg_node`)
	require.NoError(t, err)
	return s
}

func TestPGStore_Assemble(t *testing.T) {
	s := pgTestStore(t)

	r, _ := assemble(t, s, fixture())
	mem, _ := assemble(t, NewMemoryStore(), fixture())
	assert.Equal(t, mem.Nodes, r.Nodes)
	assert.Equal(t, mem.Edges, r.Edges)

	again, _ := assemble(t, s, fixture())
	assert.Equal(t, r.Nodes, again.Nodes)
	assert.Equal(t, r.Edges, again.Edges)
}

func TestPGStore_Violations(t *testing.T) {
	s := pgTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MergeNodes(ctx, LabelProcedure, []Node{
		{Key: "Q2000", Props: map[string]any{"kdrg_code_en": "Q2000E"}},
	}))
	err := s.MergeNodes(ctx, LabelProcedure, []Node{
		{Key: "Q2001", Props: map[string]any{"kdrg_code_en": "Q2000E"}},
	})
	assert.ErrorIs(t, err, pipeline.ErrConstraintViolation)

	err = s.MergeEdges(ctx, RelHasBiomarker, []Edge{{From: "C16", To: "BM_HER2"}})
	assert.ErrorIs(t, err, pipeline.ErrLoadOrder)

	nodes, err := s.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, nodes[LabelProcedure])
}

func TestPGStore_MergeStepsRollsBack(t *testing.T) {
	s := pgTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MergeNodes(ctx, LabelDrug, []Node{{Key: "L01XA03"}}))
	err := s.MergeSteps(ctx, []Step{
		{Label: LabelRegimen, Group: GroupRegimens, Nodes: []Node{{Key: "aaaa"}}},
		{Rel: RelIncludes, Group: GroupRegimens, Edges: []Edge{{From: "aaaa", To: "L99XX99"}}},
	})
	assert.ErrorIs(t, err, pipeline.ErrLoadOrder)

	nodes, err := s.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{LabelDrug: 1}, nodes)
}
