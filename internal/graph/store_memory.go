package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

type edgeKey struct {
	from, to string
}

// MemoryStore keeps the graph in maps. It enforces the same constraints as
// the database stores and is used for tests and dry runs.
type MemoryStore struct {
	mu          sync.RWMutex
	constraints bool
	nodes       map[string]map[string]map[string]any
	edges       map[string]map[edgeKey]map[string]any
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]map[string]map[string]any),
		edges: make(map[string]map[edgeKey]map[string]any),
	}
}

func (s *MemoryStore) EnsureConstraints(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.constraints = true
	return nil
}

// MergeNodes validates the whole batch before applying any of it.
func (s *MemoryStore) MergeNodes(ctx context.Context, label string, nodes []Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeNodes(label, nodes)
}

func (s *MemoryStore) mergeNodes(label string, nodes []Node) error {
	keyProp, ok := KeyProps[label]
	if !ok {
		return fmt.Errorf("unknown label %q", label)
	}
	existing := s.nodes[label]
	if err := s.checkSecondary(label, keyProp, existing, nodes); err != nil {
		return err
	}
	if existing == nil {
		existing = make(map[string]map[string]any, len(nodes))
		s.nodes[label] = existing
	}
	for _, n := range nodes {
		k := keyString(n.Key)
		props, ok := existing[k]
		if !ok {
			props = map[string]any{keyProp: n.Key}
			existing[k] = props
		}
		for p, v := range n.Props {
			if v == nil {
				delete(props, p)
				continue
			}
			props[p] = v
		}
	}
	return nil
}

// checkSecondary enforces the non-key uniqueness constraints.
func (s *MemoryStore) checkSecondary(label, keyProp string, existing map[string]map[string]any, nodes []Node) error {
	if !s.constraints {
		return nil
	}
	for _, c := range Constraints {
		if c.Label != label || c.Property == keyProp {
			continue
		}
		owner := make(map[string]string)
		for k, props := range existing {
			if v, ok := props[c.Property]; ok && v != nil {
				owner[keyString(v)] = k
			}
		}
		for _, n := range nodes {
			v, ok := n.Props[c.Property]
			if !ok || v == nil {
				continue
			}
			k := keyString(n.Key)
			if prev, taken := owner[keyString(v)]; taken && prev != k {
				return fmt.Errorf("%w: %s.%s %v held by %s and %s",
					pipeline.ErrConstraintViolation, label, c.Property, v, prev, k)
			}
			owner[keyString(v)] = k
		}
	}
	return nil
}

// MergeEdges fails with ErrLoadOrder when an endpoint node is absent.
func (s *MemoryStore) MergeEdges(ctx context.Context, rel string, edges []Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeEdges(rel, edges)
}

func (s *MemoryStore) mergeEdges(rel string, edges []Edge) error {
	ends, ok := Endpoints[rel]
	if !ok {
		return fmt.Errorf("unknown relationship type %q", rel)
	}
	for _, e := range edges {
		if _, ok := s.nodes[ends[0]][keyString(e.From)]; !ok {
			return fmt.Errorf("%w: %s edge from missing %s %v", pipeline.ErrLoadOrder, rel, ends[0], e.From)
		}
		if _, ok := s.nodes[ends[1]][keyString(e.To)]; !ok {
			return fmt.Errorf("%w: %s edge to missing %s %v", pipeline.ErrLoadOrder, rel, ends[1], e.To)
		}
	}
	m := s.edges[rel]
	if m == nil {
		m = make(map[edgeKey]map[string]any, len(edges))
		s.edges[rel] = m
	}
	for _, e := range edges {
		k := edgeKey{keyString(e.From), keyString(e.To)}
		props, ok := m[k]
		if !ok {
			props = make(map[string]any, len(e.Props))
			m[k] = props
		}
		for p, v := range e.Props {
			props[p] = v
		}
	}
	return nil
}

// MergeSteps applies the steps to a copy of the graph and swaps it in only
// when every step succeeds.
func (s *MemoryStore) MergeSteps(ctx context.Context, steps []Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, edges := s.nodes, s.edges
	s.nodes, s.edges = cloneNodes(nodes), cloneEdges(edges)
	for _, st := range steps {
		var err error
		if st.Rel != "" {
			err = s.mergeEdges(st.Rel, st.Edges)
		} else {
			err = s.mergeNodes(st.Label, st.Nodes)
		}
		if err != nil {
			s.nodes, s.edges = nodes, edges
			return err
		}
	}
	return nil
}

func cloneNodes(in map[string]map[string]map[string]any) map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any, len(in))
	for label, byKey := range in {
		m := make(map[string]map[string]any, len(byKey))
		for k, props := range byKey {
			m[k] = copyProps(props)
		}
		out[label] = m
	}
	return out
}

func cloneEdges(in map[string]map[edgeKey]map[string]any) map[string]map[edgeKey]map[string]any {
	out := make(map[string]map[edgeKey]map[string]any, len(in))
	for rel, byKey := range in {
		m := make(map[edgeKey]map[string]any, len(byKey))
		for k, props := range byKey {
			m[k] = copyProps(props)
		}
		out[rel] = m
	}
	return out
}

func (s *MemoryStore) CountNodes(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Counts, len(s.nodes))
	for l, m := range s.nodes {
		if len(m) > 0 {
			out[l] = len(m)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountEdges(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Counts, len(s.edges))
	for r, m := range s.edges {
		if len(m) > 0 {
			out[r] = len(m)
		}
	}
	return out, nil
}

// Node returns a copy of one node's properties.
func (s *MemoryStore) Node(label string, key any) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props, ok := s.nodes[label][keyString(key)]
	if !ok {
		return nil, false
	}
	return copyProps(props), true
}

// Edges returns the edges of one type leaving from, keyed by target.
func (s *MemoryStore) Edges(rel string, from any) map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]any)
	f := keyString(from)
	for k, props := range s.edges[rel] {
		if k.from == f {
			out[k.to] = copyProps(props)
		}
	}
	return out
}

// EdgeProps returns every edge of one type, for histogram comparisons.
func (s *MemoryStore) EdgeProps(rel string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, 0, len(s.edges[rel]))
	for _, props := range s.edges[rel] {
		out = append(out, copyProps(props))
	}
	return out
}

func (s *MemoryStore) Ping(_ context.Context) error  { return nil }
func (s *MemoryStore) Close(_ context.Context) error { return nil }

func copyProps(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
