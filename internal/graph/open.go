package graph

import (
	"context"
	"fmt"

	"github.com/medkg/medkg/internal/config"
	"github.com/medkg/medkg/internal/platform/db"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Open connects the backend named by cfg.GraphBackend. The caller closes
// the store on every exit path.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if err := cfg.ValidateGraph(); err != nil {
		return nil, err
	}
	switch cfg.GraphBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendNeo4j:
		return NewNeo4jStore(ctx, cfg.GraphURI, cfg.GraphUser, cfg.GraphPassword, cfg.GraphDatabase, cfg.GraphBatchSize)
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return NewPGStore(pool, cfg.GraphBatchSize), nil
	}
	return nil, fmt.Errorf("%w: unknown graph backend %q", pipeline.ErrConfig, cfg.GraphBackend)
}
