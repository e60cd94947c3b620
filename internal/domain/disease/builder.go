package disease

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/platform/pipeline"
	"github.com/medkg/medkg/internal/platform/tabular"
)

// Row is one KCD master row before normalization.
type Row struct {
	Code     string
	NameKr   string
	NameEn   string
	IsLowest *bool
}

// RowsFromTable maps KCD master columns onto rows. The lowest-level column
// is optional.
func RowsFromTable(t *tabular.Table) ([]Row, error) {
	codeIdx, err := t.Require("code", "상병기호", "질병분류기호", "kcd코드", "kcd_code")
	if err != nil {
		return nil, err
	}
	krIdx, err := t.Require("name_kr", "한글명", "한글명칭", "상병명")
	if err != nil {
		return nil, err
	}
	enIdx, err := t.Require("name_en", "영문명", "영문명칭", "영문상병명")
	if err != nil {
		return nil, err
	}
	lowIdx := t.Column("is_lowest", "완전코드구분", "최하위코드여부", "최하위여부")

	rows := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := Row{
			Code:   tabular.Cell(r, codeIdx),
			NameKr: tabular.Cell(r, krIdx),
			NameEn: tabular.Cell(r, enIdx),
		}
		if lowIdx >= 0 {
			v := parseFlag(tabular.Cell(r, lowIdx))
			row.IsLowest = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "o", "완전", "완전코드", "최하위":
		return true
	}
	return false
}

// Build normalizes rows into diseases sorted by code. Range and malformed
// codes are skipped and counted; the first row wins on duplicates.
func Build(rows []Row, sum *pipeline.Summary) ([]Disease, error) {
	byCode := make(map[string]*Disease, len(rows))
	explicit := make(map[string]bool, len(rows))
	for _, r := range rows {
		sum.Inc(ReasonRowsRead)
		code, inserted := NormalizeCode(r.Code)
		if IsRange(code) {
			sum.Inc(ReasonRangeCode)
			continue
		}
		if !Valid(code) {
			sum.Inc(ReasonInvalidCode)
			continue
		}
		if inserted {
			sum.Inc(ReasonDotInserted)
		}
		if _, dup := byCode[code]; dup {
			sum.Inc(ReasonDuplicateCode)
			continue
		}
		d := &Disease{
			Code:     code,
			NameKr:   strings.TrimSpace(r.NameKr),
			NameEn:   strings.TrimSpace(r.NameEn),
			IsLowest: true,
			IsCancer: IsCancer(code),
			Chapter:  Chapter(code),
		}
		if r.IsLowest != nil {
			d.IsLowest = *r.IsLowest
			explicit[code] = true
		}
		byCode[code] = d
	}
	if len(byCode) == 0 {
		return nil, fmt.Errorf("%w: no valid KCD codes", pipeline.ErrEmptyResult)
	}

	// A code with a child in the master is not a leaf unless the master
	// said otherwise.
	for code := range byCode {
		p, ok := parent(code)
		for ok {
			if d, exists := byCode[p]; exists && !explicit[p] {
				if d.IsLowest {
					sum.Inc(ReasonLowestDerived)
				}
				d.IsLowest = false
			}
			p, ok = parent(p)
		}
	}

	out := make([]Disease, 0, len(byCode))
	for _, d := range byCode {
		out = append(out, *d)
		if d.IsCancer {
			sum.Inc(ReasonCancers)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	sum.Set(ReasonDiseases, len(out))
	return out, nil
}

// Input names the KCD stage inputs.
type Input struct {
	MasterPath string
	OutDir     string
}

// Result is what a KCD run produced.
type Result struct {
	Diseases   []Disease
	Lookup     Lookup
	OutPath    string
	LookupPath string
	Summary    *pipeline.Summary
}

// Builder runs the KCD bridge stage.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log}
}

// Run reads the KCD master (header on row 3) and writes diseases.json and
// kcd_lookup.json.
func (b *Builder) Run(ctx context.Context, in Input) (*Result, error) {
	sum := pipeline.NewSummary("kcd")
	res := &Result{
		OutPath:    filepath.Join(in.OutDir, DiseasesFile),
		LookupPath: filepath.Join(in.OutDir, LookupFile),
		Summary:    sum,
	}
	sum.Input(in.MasterPath)

	headerRow := KCDHeaderRow
	if ext := strings.ToLower(filepath.Ext(in.MasterPath)); ext == ".csv" || ext == ".txt" {
		headerRow = 1
	}
	t, err := tabular.ReadFile(in.MasterPath, tabular.Options{HeaderRow: headerRow})
	if err != nil {
		return res, err
	}
	rows, err := RowsFromTable(t)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	ds, err := Build(rows, sum)
	if err != nil {
		return res, err
	}
	res.Diseases = ds
	res.Lookup = NewLookup(ds)

	if err := pipeline.WriteJSON(res.OutPath, ds); err != nil {
		return res, err
	}
	if err := pipeline.WriteJSON(res.LookupPath, res.Lookup); err != nil {
		return res, err
	}
	sum.Output(res.OutPath)
	sum.Output(res.LookupPath)
	sum.Finish(nil)
	if err := pipeline.WriteSummary(res.OutPath, sum); err != nil {
		return res, err
	}

	b.log.Info().
		Int("rows", len(rows)).
		Int("diseases", len(ds)).
		Int("cancers", sum.Count(ReasonCancers)).
		Int("range_codes", sum.Count(ReasonRangeCode)).
		Msg("kcd bridge written")
	return res, nil
}
