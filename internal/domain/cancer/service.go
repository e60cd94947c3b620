package cancer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Input names the NCC stage inputs. KCDPath and DraftPath are optional;
// DraftPath requires KCDPath.
type Input struct {
	PagesPath   string
	MappingPath string
	KCDPath     string
	DraftPath   string
	OutDir      string
}

// Result is what an NCC run produced.
type Result struct {
	Cancers  []Cancer
	Mappings []Mapping
	Draft    []DraftRow
	Summary  *pipeline.Summary
}

// Builder runs the NCC cancer bridge stage.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log}
}

// Run writes cancers.json and cancer_kcd_mapping.json from the parsed pages
// and the reviewed mapping CSV, plus the optional reviewer draft.
func (b *Builder) Run(ctx context.Context, in Input) (*Result, error) {
	sum := pipeline.NewSummary("ncc")
	res := &Result{Summary: sum}

	if in.DraftPath != "" {
		if in.KCDPath == "" {
			return res, fmt.Errorf("%w: the mapping draft needs the KCD bridge", pipeline.ErrConfig)
		}
		if filepath.Clean(in.DraftPath) == filepath.Clean(in.MappingPath) {
			return res, fmt.Errorf("%w: draft output must not overwrite the reviewed mapping %s", pipeline.ErrConfig, in.MappingPath)
		}
	}

	sum.Input(in.PagesPath)
	pages, err := ReadPages(in.PagesPath)
	if err != nil {
		return res, err
	}
	cancers, err := BuildCancers(pages, sum)
	if err != nil {
		return res, err
	}

	var kcd disease.Lookup
	var diseases []disease.Disease
	if in.KCDPath != "" {
		sum.Input(in.KCDPath)
		if diseases, err = disease.LoadDiseases(in.KCDPath); err != nil {
			return res, err
		}
		kcd = disease.NewLookup(diseases)
	}

	sum.Input(in.MappingPath)
	rows, err := ReadMapping(in.MappingPath)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	res.Mappings = ApplyMapping(cancers, rows, kcd, sum)
	res.Cancers = cancers

	cancersPath := filepath.Join(in.OutDir, CancersFile)
	mappingPath := filepath.Join(in.OutDir, MappingFile)
	if err := pipeline.WriteJSON(cancersPath, cancers); err != nil {
		return res, err
	}
	if err := pipeline.WriteJSON(mappingPath, nonNil(res.Mappings)); err != nil {
		return res, err
	}
	sum.Output(cancersPath)
	sum.Output(mappingPath)

	if in.DraftPath != "" {
		res.Draft = Draft(cancers, diseases)
		data, err := EncodeDraft(res.Draft)
		if err != nil {
			return res, err
		}
		if err := pipeline.WriteFileAtomic(in.DraftPath, data); err != nil {
			return res, err
		}
		sum.Set(ReasonDraftRows, len(res.Draft))
		sum.Output(in.DraftPath)
	}

	sum.Finish(nil)
	if err := pipeline.WriteSummary(cancersPath, sum); err != nil {
		return res, err
	}
	b.log.Info().
		Int("cancers", len(cancers)).
		Int("mappings", len(res.Mappings)).
		Int("unknown_kcd", sum.Count(ReasonUnknownKCD)).
		Msg("ncc bridge written")
	return res, nil
}

func nonNil(ms []Mapping) []Mapping {
	if ms == nil {
		return []Mapping{}
	}
	return ms
}
