package cancer

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/platform/pipeline"
	"github.com/medkg/medkg/internal/platform/tabular"
)

// ReadMapping loads the reviewed cancer_seq, cancer_name, kcd_code CSV.
func ReadMapping(path string) ([]Mapping, error) {
	t, err := tabular.ReadFile(path, tabular.Options{})
	if err != nil {
		return nil, err
	}
	seqIdx, err := t.Require("cancer_seq", "seq")
	if err != nil {
		return nil, err
	}
	codeIdx, err := t.Require("kcd_code", "kcd")
	if err != nil {
		return nil, err
	}
	nameIdx := t.Column("cancer_name", "name")

	out := make([]Mapping, 0, len(t.Rows))
	for i, r := range t.Rows {
		raw := tabular.Cell(r, seqIdx)
		seq, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: cancer_seq %q is not an integer",
				pipeline.ErrInputFormat, path, i+1, raw)
		}
		out = append(out, Mapping{
			CancerSeq:     seq,
			CancerName:    tabular.Cell(r, nameIdx),
			KCDCode:       tabular.Cell(r, codeIdx),
			MappingMethod: MethodManual,
		})
	}
	return out, nil
}

// ApplyMapping validates reviewed rows against the cancers and, when given,
// the KCD master. Kept rows are attached to their cancer's kcd_codes and
// returned sorted by (cancer_seq, kcd_code).
func ApplyMapping(cancers []Cancer, rows []Mapping, kcd disease.Lookup, sum *pipeline.Summary) []Mapping {
	bySeq := make(map[int]*Cancer, len(cancers))
	for i := range cancers {
		bySeq[cancers[i].CancerSeq] = &cancers[i]
	}
	type key struct {
		seq  int
		code string
	}
	seen := make(map[key]bool, len(rows))
	var kept []Mapping
	for _, m := range rows {
		sum.Inc(ReasonMappingRows)
		code, _ := disease.NormalizeCode(m.KCDCode)
		if disease.IsRange(code) || !disease.Valid(code) {
			sum.Inc(ReasonInvalidKCD)
			sum.Warn("cancer %d: invalid kcd code %q", m.CancerSeq, m.KCDCode)
			continue
		}
		c, ok := bySeq[m.CancerSeq]
		if !ok {
			sum.Inc(ReasonUnknownCancerSeq)
			sum.Warn("mapping references unknown cancer_seq %d", m.CancerSeq)
			continue
		}
		if kcd != nil && !kcd.Has(code) {
			sum.Inc(ReasonUnknownKCD)
			sum.Warn("cancer %d: kcd code %s not in master", m.CancerSeq, code)
			continue
		}
		k := key{m.CancerSeq, code}
		if seen[k] {
			sum.Inc(ReasonDuplicateMapping)
			continue
		}
		seen[k] = true
		m.KCDCode = code
		if m.CancerName == "" {
			m.CancerName = c.Name
		}
		m.MappingMethod = MethodManual
		c.KCDCodes = append(c.KCDCodes, code)
		kept = append(kept, m)
	}
	for i := range cancers {
		sort.Strings(cancers[i].KCDCodes)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].CancerSeq != kept[j].CancerSeq {
			return kept[i].CancerSeq < kept[j].CancerSeq
		}
		return kept[i].KCDCode < kept[j].KCDCode
	})
	sum.Set(ReasonMappingKept, len(kept))
	return kept
}

// LoadMapping reads cancer_kcd_mapping.json.
func LoadMapping(path string) ([]Mapping, error) {
	var ms []Mapping
	if err := pipeline.ReadJSON(path, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// LoadCancers reads cancers.json.
func LoadCancers(path string) ([]Cancer, error) {
	var cs []Cancer
	if err := pipeline.ReadJSON(path, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}
