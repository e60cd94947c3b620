package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Report is the outcome of the verification phase.
type Report struct {
	Nodes    Counts   `json:"nodes"`
	Edges    Counts   `json:"edges"`
	Problems []string `json:"problems,omitempty"`
}

// Assembler loads a plan into a Store and verifies the result.
type Assembler struct {
	store Store
	log   zerolog.Logger
}

// NewAssembler creates an Assembler over store.
func NewAssembler(store Store, log zerolog.Logger) *Assembler {
	return &Assembler{store: store, log: log}
}

// Load declares constraints and writes the steps in order. An edge step
// whose endpoint labels have not been written earlier in the same load
// fails with ErrLoadOrder before touching the store.
func (a *Assembler) Load(ctx context.Context, p *Plan, sum *pipeline.Summary) error {
	if err := a.store.EnsureConstraints(ctx); err != nil {
		return fmt.Errorf("ensure constraints: %w", err)
	}
	loaded := make(map[string]bool, len(Labels))
	for i := 0; i < len(p.Steps); {
		if err := ctx.Err(); err != nil {
			return err
		}
		j := i + 1
		if g := p.Steps[i].Group; g != "" {
			for j < len(p.Steps) && p.Steps[j].Group == g {
				j++
			}
		}
		batch := p.Steps[i:j]
		for _, s := range batch {
			if s.Rel == "" {
				loaded[s.Label] = true
				continue
			}
			for _, l := range Endpoints[s.Rel] {
				if !loaded[l] {
					return fmt.Errorf("%w: %s before %s nodes", pipeline.ErrLoadOrder, s.Rel, l)
				}
			}
		}
		if err := a.write(ctx, batch); err != nil {
			return err
		}
		for _, s := range batch {
			a.log.Debug().Str("step", s.Name()).Str("group", s.Group).Int("records", s.Size()).Msg("graph step loaded")
		}
		i = j
	}
	sum.Set("STEPS_LOADED", len(p.Steps))
	return nil
}

// write commits one step alone or a group of steps as a single transaction.
// Empty steps are skipped.
func (a *Assembler) write(ctx context.Context, batch []Step) error {
	steps := make([]Step, 0, len(batch))
	for _, s := range batch {
		if s.Size() > 0 {
			steps = append(steps, s)
		}
	}
	switch {
	case len(steps) == 0:
		return nil
	case len(batch) > 1:
		if err := a.store.MergeSteps(ctx, steps); err != nil {
			return fmt.Errorf("merge %s group: %w", batch[0].Group, err)
		}
	case steps[0].Rel != "":
		if err := a.store.MergeEdges(ctx, steps[0].Rel, steps[0].Edges); err != nil {
			return fmt.Errorf("merge %s: %w", steps[0].Rel, err)
		}
	default:
		if err := a.store.MergeNodes(ctx, steps[0].Label, steps[0].Nodes); err != nil {
			return fmt.Errorf("merge %s: %w", steps[0].Label, err)
		}
	}
	return nil
}

// Verify counts each label and relationship type in the store. A label or
// type the plan writes to that holds fewer records than planned is a
// problem; in strict mode problems fail with ErrPartialLoad.
func (a *Assembler) Verify(ctx context.Context, p *Plan, strict bool, sum *pipeline.Summary) (*Report, error) {
	nodes, err := a.store.CountNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}
	edges, err := a.store.CountEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("count edges: %w", err)
	}
	r := &Report{Nodes: nodes, Edges: edges}

	wantNodes, wantEdges := p.Expected()
	r.Problems = append(r.Problems, shortfalls("label", wantNodes, nodes)...)
	r.Problems = append(r.Problems, shortfalls("relationship", wantEdges, edges)...)

	for _, l := range Labels {
		sum.Set("COUNT_"+strings.ToUpper(l), nodes[l])
	}
	for _, t := range RelTypes {
		sum.Set("COUNT_"+t, edges[t])
	}
	for _, msg := range r.Problems {
		sum.Warn("%s", msg)
		a.log.Warn().Msg(msg)
	}
	if len(r.Problems) > 0 && strict {
		return r, fmt.Errorf("%w: %s", pipeline.ErrPartialLoad, strings.Join(r.Problems, "; "))
	}
	return r, nil
}

func shortfalls(kind string, want, got Counts) []string {
	names := make([]string, 0, len(want))
	for n := range want {
		names = append(names, n)
	}
	sort.Strings(names)
	var out []string
	for _, n := range names {
		if w := want[n]; w > 0 && got[n] < w {
			out = append(out, fmt.Sprintf("%s %s has %d of %d planned", kind, n, got[n], w))
		}
	}
	return out
}

// Run plans, loads and verifies.
func (a *Assembler) Run(ctx context.Context, b *Bridges, strict bool, sum *pipeline.Summary) (*Report, error) {
	for _, f := range b.Files {
		sum.Input(f)
	}
	for _, m := range b.Missing {
		sum.Warn("bridge absent: %s", m)
	}
	p, err := BuildPlan(b, sum)
	if err != nil {
		return nil, err
	}
	a.logGaps(sum)
	if err := a.Load(ctx, p, sum); err != nil {
		return nil, err
	}
	r, err := a.Verify(ctx, p, strict, sum)
	if err != nil {
		return r, err
	}
	a.log.Info().
		Interface("nodes", r.Nodes).
		Interface("edges", r.Edges).
		Int("problems", len(r.Problems)).
		Msg("graph assembled")
	return r, nil
}

func (a *Assembler) logGaps(sum *pipeline.Summary) {
	for _, reason := range []string{ReasonFKGapKCD, ReasonFKGapCancer, ReasonFKGapBiomarker, ReasonFKGapTest, ReasonFKGapDrug, ReasonCancerTypeConflict} {
		if n := sum.Count(reason); n > 0 {
			a.log.Warn().Str("reason", reason).Int("count", n).Msg("edges skipped")
		}
	}
}
