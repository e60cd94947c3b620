package biomarker

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/domain/anchor"
	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Service runs the biomarker stages.
type Service struct {
	log zerolog.Logger
}

// NewService creates a Service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log}
}

// ScanInput names the inputs of the scan-codes aid.
type ScanInput struct {
	BiomarkersPath string
	CrosswalkPath  string
	OutPath        string
}

// Scan writes a keyword-scanned code table for reviewers to freeze.
func (s *Service) Scan(ctx context.Context, in ScanInput) (*pipeline.Summary, error) {
	sum := pipeline.NewSummary("biomarkers-scan")
	sum.Input(in.BiomarkersPath)
	sum.Input(in.CrosswalkPath)

	bms, err := ReadBiomarkers(in.BiomarkersPath)
	if err != nil {
		return sum, err
	}
	rows, err := ReadCrosswalk(in.CrosswalkPath)
	if err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	table := ScanCodes(bms, rows)
	for _, cs := range table {
		if len(cs.LOINCCodes) == 0 && len(cs.SNOMEDCodes) == 0 {
			sum.Inc(ReasonNoCodeSet)
			sum.Warn("no crosswalk codes for %s", cs.BiomarkerID)
		}
	}
	if err := pipeline.WriteJSON(in.OutPath, table); err != nil {
		return sum, err
	}
	sum.Output(in.OutPath)
	sum.Finish(nil)
	if err := pipeline.WriteSummary(in.OutPath, sum); err != nil {
		return sum, err
	}
	s.log.Info().Int("biomarkers", len(table)).Int("crosswalk_rows", len(rows)).Msg("code table scanned")
	return sum, nil
}

// MapInput names the inputs of the mapping stage. CodeTablePath,
// MasterPath and AliasPath are optional.
type MapInput struct {
	BiomarkersPath string
	CrosswalkPath  string
	CodeTablePath  string
	MasterPath     string
	AliasPath      string
	OutDir         string
}

// MapResult is what a mapping run produced.
type MapResult struct {
	Mappings   MappingFile
	Biomarkers []Biomarker
	Tests      []Test
	CodeTable  []CodeSet
	Summary    *pipeline.Summary
}

// Map links biomarkers to tests by code equality and writes the mapping,
// code table, enriched biomarker and test bridges.
func (s *Service) Map(ctx context.Context, in MapInput) (*MapResult, error) {
	sum := pipeline.NewSummary("biomarkers")
	res := &MapResult{Summary: sum}

	sum.Input(in.BiomarkersPath)
	bms, err := ReadBiomarkers(in.BiomarkersPath)
	if err != nil {
		return res, err
	}
	sum.Input(in.CrosswalkPath)
	rows, err := ReadCrosswalk(in.CrosswalkPath)
	if err != nil {
		return res, err
	}

	var table []CodeSet
	if in.CodeTablePath != "" {
		sum.Input(in.CodeTablePath)
		if table, err = LoadCodeTable(in.CodeTablePath); err != nil {
			return res, err
		}
	}
	MergeCodeTable(bms, table, sum)
	if table == nil {
		table = codeTableFrom(bms)
	}

	if in.MasterPath != "" {
		sum.Input(in.MasterPath)
		idx, _, err := drug.LoadIndex(in.MasterPath)
		if err != nil {
			return res, err
		}
		if in.AliasPath != "" {
			sum.Input(in.AliasPath)
			aliases, err := anchor.LoadBrandAliases(in.AliasPath)
			if err != nil {
				return res, err
			}
			sum.Set("BRAND_ALIASES", anchor.ExtendIndex(idx, aliases))
		}
		s.ResolveTargets(bms, idx, sum)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	tests := BuildTests(rows, sum)
	res.Mappings = MapTests(bms, tests, sum)
	res.Biomarkers = bms
	res.Tests = tests
	res.CodeTable = table

	mappingsPath := filepath.Join(in.OutDir, MappingsFile)
	outputs := []struct {
		path string
		v    interface{}
	}{
		{mappingsPath, res.Mappings},
		{filepath.Join(in.OutDir, CodeTableFile), table},
		{filepath.Join(in.OutDir, BiomarkersFile), bms},
		{filepath.Join(in.OutDir, TestsFile), tests},
	}
	for _, o := range outputs {
		if err := pipeline.WriteJSON(o.path, o.v); err != nil {
			return res, err
		}
		sum.Output(o.path)
	}
	for _, id := range res.Mappings.Summary.UnmatchedBiomarkers {
		sum.Warn("biomarker %s has no matched tests", id)
	}
	sum.Finish(nil)
	if err := pipeline.WriteSummary(mappingsPath, sum); err != nil {
		return res, err
	}

	s.log.Info().
		Int("biomarkers", len(bms)).
		Int("tests", len(tests)).
		Int("links", res.Mappings.Summary.Links).
		Int("unmatched", len(res.Mappings.Summary.UnmatchedBiomarkers)).
		Msg("biomarker test mappings written")
	return res, nil
}

// ResolveTargets resolves each biomarker's target drugs to master ATC codes
// and sets drug_count to the number of distinct drugs found.
func (s *Service) ResolveTargets(bms []Biomarker, idx *drug.Index, sum *pipeline.Summary) {
	for i := range bms {
		b := &bms[i]
		b.Targets = nil
		seen := make(map[string]bool)
		for _, td := range b.TargetDrugs {
			atc := td.ATCCode
			if atc == "" || !idx.Has(atc) {
				var ok bool
				if atc, ok = idx.Resolve(td.Name); !ok {
					sum.Inc(ReasonTargetUnresolved)
					s.log.Debug().Str("biomarker", b.BiomarkerID).Str("drug", td.Name).Msg("target drug not in master")
					continue
				}
			}
			sum.Inc(ReasonTargetResolved)
			if seen[atc] {
				continue
			}
			seen[atc] = true
			b.Targets = append(b.Targets, Target{ATCCode: atc, Name: td.Name, Mechanism: td.Mechanism})
		}
		b.DrugCount = len(b.Targets)
	}
}

func codeTableFrom(bms []Biomarker) []CodeSet {
	out := make([]CodeSet, 0, len(bms))
	for _, b := range bms {
		out = append(out, CodeSet{
			BiomarkerID: b.BiomarkerID,
			Name:        b.NameEn,
			LOINCCodes:  append([]string{}, b.LOINCCodes...),
			SNOMEDCodes: append([]string{}, b.SNOMEDCodes...),
		})
	}
	return out
}
