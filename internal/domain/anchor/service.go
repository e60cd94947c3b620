package anchor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Summary counters beyond the reason codes.
const (
	CounterInputRows      = "INPUT_ROWS"
	CounterExceptions     = "EXCEPTIONS"
	CounterAliasSeed      = "ALIAS_SEED"
	CounterAliasMaster    = "ALIAS_MASTER"
	CounterAliasContext   = "ALIAS_CONTEXT"
	CounterAliasConflicts = "ALIAS_CONFLICTS"
)

// Input names the stage inputs. SeedPath and MasterPath are optional.
type Input struct {
	CandidatesPath string
	SeedPath       string
	MasterPath     string
	OutDir         string
}

// Result is what a refinement run produced.
type Result struct {
	Dictionary     Dictionary
	Aliases        BrandAlias
	DictionaryPath string
	AliasPath      string
	Summary        *pipeline.Summary
}

// Service runs the anchor refinement stage.
type Service struct {
	refiner *Refiner
	log     zerolog.Logger
}

// NewService creates a Service over compiled filters.
func NewService(f *Filters, log zerolog.Logger) *Service {
	return &Service{refiner: NewRefiner(f, log), log: log}
}

// Refine classifies every candidate and returns the merged dictionary along
// with the decisions in input order.
func (s *Service) Refine(ctx context.Context, cs []Candidate, sum *pipeline.Summary) ([]Decision, Dictionary, error) {
	b := NewDictionaryBuilder()
	decisions := make([]Decision, 0, len(cs))
	for _, c := range cs {
		if err := ctx.Err(); err != nil {
			return nil, Dictionary{}, err
		}
		d := s.refiner.Evaluate(c)
		decisions = append(decisions, d)
		b.Add(d)
		sum.Inc("VERDICT_" + strings.ToUpper(string(d.Verdict)))
		for _, r := range d.Reasons {
			if strings.HasPrefix(r, ReasonExceptionPrefix) {
				sum.Inc(CounterExceptions)
			}
			sum.Inc(r)
		}
	}
	sum.Set(CounterInputRows, len(cs))
	if b.Rows() != len(cs) {
		return nil, Dictionary{}, fmt.Errorf("anchor refinement lost rows: %d decisions for %d candidates", b.Rows(), len(cs))
	}
	return decisions, b.Build(s.refiner.filters.Config.Romanization), nil
}

// BuildAliases merges the curated seed, master brands and context
// extractions, in that order.
func (s *Service) BuildAliases(seed *AliasSeed, master []drug.Ingredient, decisions []Decision, sum *pipeline.Summary) BrandAlias {
	ab := NewAliasBuilder(s.log)
	for _, ing := range master {
		ko := ing.IngredientKo
		for _, n := range []string{ing.IngredientKo, ing.IngredientBaseKo, ing.IngredientEn, ing.IngredientBaseEn} {
			ab.KnowIngredient(n, ko)
		}
	}
	for _, d := range decisions {
		if d.Verdict == VerdictActive {
			ab.KnowIngredient(d.EN, d.KO)
			ab.KnowIngredient(d.KO, d.KO)
		}
	}

	if seed != nil {
		for brand, ing := range seed.Brands {
			ab.Add(brand, ing, OriginSeed)
			sum.Inc(CounterAliasSeed)
		}
	}
	for _, ing := range master {
		for _, brand := range ing.BrandNames {
			ab.Add(brand, ing.IngredientKo, OriginMaster)
			sum.Inc(CounterAliasMaster)
			if base := drug.StripFormSuffix(brand); base != brand {
				ab.Add(base, ing.IngredientKo, OriginMaster)
			}
		}
	}
	for _, d := range decisions {
		if d.Candidate.Context != "" {
			sum.Add(CounterAliasContext, ab.ExtractContext(d.Candidate.Context))
		}
	}
	sum.Set(CounterAliasConflicts, ab.Conflicts())
	return ab.Build()
}

// Run reads candidates, refines them and writes drug.yaml and
// brand_alias.yaml under OutDir.
func (s *Service) Run(ctx context.Context, in Input) (*Result, error) {
	sum := pipeline.NewSummary("anchors")
	res := &Result{
		DictionaryPath: filepath.Join(in.OutDir, DictionaryFile),
		AliasPath:      filepath.Join(in.OutDir, BrandAliasFile),
		Summary:        sum,
	}

	sum.Input(in.CandidatesPath)
	cs, err := ReadCandidates(in.CandidatesPath)
	if err != nil {
		return res, err
	}
	if len(cs) == 0 {
		return res, fmt.Errorf("%w: no anchor candidates in %s", pipeline.ErrEmptyResult, in.CandidatesPath)
	}

	var seed *AliasSeed
	if in.SeedPath != "" {
		sum.Input(in.SeedPath)
		seed = &AliasSeed{}
		if err := pipeline.ReadYAML(in.SeedPath, seed); err != nil {
			return res, err
		}
	}
	var master []drug.Ingredient
	if in.MasterPath != "" {
		sum.Input(in.MasterPath)
		if err := pipeline.ReadJSON(in.MasterPath, &master); err != nil {
			return res, err
		}
	}

	decisions, dict, err := s.Refine(ctx, cs, sum)
	if err != nil {
		return res, err
	}
	res.Dictionary = dict
	res.Aliases = s.BuildAliases(seed, master, decisions, sum)

	if err := pipeline.WriteYAML(res.DictionaryPath, res.Dictionary); err != nil {
		return res, err
	}
	if err := pipeline.WriteYAML(res.AliasPath, res.Aliases); err != nil {
		return res, err
	}
	sum.Output(res.DictionaryPath)
	sum.Output(res.AliasPath)
	sum.Finish(nil)
	if err := pipeline.WriteSummary(res.DictionaryPath, sum); err != nil {
		return res, err
	}

	s.log.Info().
		Int("candidates", len(cs)).
		Int("active", dict.Counts[string(VerdictActive)]).
		Int("pending", dict.Counts[string(VerdictPending)]).
		Int("alias_conflicts", sum.Count(CounterAliasConflicts)).
		Msg("anchor dictionary written")
	return res, nil
}
