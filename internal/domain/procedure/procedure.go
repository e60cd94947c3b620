package procedure

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// RawCode is one code triple parsed from the published KDRG tables.
type RawCode struct {
	KoreanCode  string `json:"korean_code"`
	EnglishCode string `json:"english_code"`
	Name        string `json:"name"`
	TableIndex  int    `json:"table_index"`
}

// Procedure is one row of procedures.json.
type Procedure struct {
	KDRGCodeKr string `json:"kdrg_code_kr"`
	KDRGCodeEn string `json:"kdrg_code_en,omitempty"`
	Name       string `json:"name"`
}

// ProceduresFile is the bridge file name.
const ProceduresFile = "procedures.json"

// Summary counters.
const (
	ReasonCodesRead     = "CODES_READ"
	ReasonMissingKrCode = "MISSING_KOREAN_CODE"
	ReasonDuplicateKr   = "DUPLICATE_KOREAN_CODE"
	ReasonDuplicateEn   = "DUPLICATE_ENGLISH_CODE"
	ReasonProcedures    = "PROCEDURES"
)

type source struct {
	Codes []RawCode `json:"codes"`
}

// Build deduplicates by Korean code, then by English code. On each
// collision the record with the longer name survives; ties keep the first.
func Build(codes []RawCode, sum *pipeline.Summary) ([]Procedure, error) {
	byKr := make(map[string]int)
	var kept []Procedure
	for _, c := range codes {
		sum.Inc(ReasonCodesRead)
		p := Procedure{
			KDRGCodeKr: strings.ToUpper(strings.TrimSpace(c.KoreanCode)),
			KDRGCodeEn: strings.ToUpper(strings.TrimSpace(c.EnglishCode)),
			Name:       strings.Join(strings.Fields(c.Name), " "),
		}
		if p.KDRGCodeKr == "" {
			sum.Inc(ReasonMissingKrCode)
			continue
		}
		if i, dup := byKr[p.KDRGCodeKr]; dup {
			sum.Inc(ReasonDuplicateKr)
			if longer(p.Name, kept[i].Name) {
				kept[i] = p
			}
			continue
		}
		byKr[p.KDRGCodeKr] = len(kept)
		kept = append(kept, p)
	}

	byEn := make(map[string]int)
	var out []Procedure
	for _, p := range kept {
		if p.KDRGCodeEn == "" {
			out = append(out, p)
			continue
		}
		if i, dup := byEn[p.KDRGCodeEn]; dup {
			sum.Inc(ReasonDuplicateEn)
			if longer(p.Name, out[i].Name) {
				out[i] = p
			}
			continue
		}
		byEn[p.KDRGCodeEn] = len(out)
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no KDRG procedure codes", pipeline.ErrEmptyResult)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KDRGCodeKr < out[j].KDRGCodeKr })
	sum.Set(ReasonProcedures, len(out))
	return out, nil
}

func longer(a, b string) bool {
	return utf8.RuneCountInString(a) > utf8.RuneCountInString(b)
}

// Input names the KDRG stage inputs.
type Input struct {
	SourcePath string
	OutDir     string
}

// Builder runs the KDRG bridge stage.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log}
}

// Run reads the parsed KDRG tables and writes procedures.json.
func (b *Builder) Run(ctx context.Context, in Input) ([]Procedure, *pipeline.Summary, error) {
	sum := pipeline.NewSummary("kdrg")
	sum.Input(in.SourcePath)

	var src source
	if err := pipeline.ReadJSON(in.SourcePath, &src); err != nil {
		return nil, sum, err
	}
	if err := ctx.Err(); err != nil {
		return nil, sum, err
	}
	ps, err := Build(src.Codes, sum)
	if err != nil {
		return nil, sum, err
	}

	out := filepath.Join(in.OutDir, ProceduresFile)
	if err := pipeline.WriteJSON(out, ps); err != nil {
		return ps, sum, err
	}
	sum.Output(out)
	sum.Finish(nil)
	if err := pipeline.WriteSummary(out, sum); err != nil {
		return ps, sum, err
	}
	b.log.Info().
		Int("codes", len(src.Codes)).
		Int("procedures", len(ps)).
		Int("duplicates_kr", sum.Count(ReasonDuplicateKr)).
		Int("duplicates_en", sum.Count(ReasonDuplicateEn)).
		Msg("kdrg bridge written")
	return ps, sum, nil
}

// LoadProcedures reads procedures.json.
func LoadProcedures(path string) ([]Procedure, error) {
	var ps []Procedure
	if err := pipeline.ReadJSON(path, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}
