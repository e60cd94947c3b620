package graph

import "context"

// Store is a property-graph backend. Writes are upserts: a node is keyed by
// label and key property, an edge by type and endpoint pair. Each
// MergeNodes, MergeEdges or MergeSteps call is one transaction; a failed
// call leaves nothing behind.
type Store interface {
	EnsureConstraints(ctx context.Context) error
	MergeNodes(ctx context.Context, label string, nodes []Node) error
	MergeEdges(ctx context.Context, rel string, edges []Edge) error
	// MergeSteps writes several steps, in order, as one transaction.
	MergeSteps(ctx context.Context, steps []Step) error
	CountNodes(ctx context.Context) (Counts, error)
	CountEdges(ctx context.Context) (Counts, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
