package anchor

import (
	"sort"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

type entryKey struct {
	en, ko  string
	verdict Verdict
}

// DictionaryBuilder merges decisions into drug.yaml sections. Identical
// (en, ko, verdict) rows are folded together.
type DictionaryBuilder struct {
	entries map[entryKey]*Entry
	order   []entryKey
	counts  map[Verdict]int
}

// NewDictionaryBuilder creates an empty builder.
func NewDictionaryBuilder() *DictionaryBuilder {
	return &DictionaryBuilder{
		entries: make(map[entryKey]*Entry),
		counts:  make(map[Verdict]int),
	}
}

// Add folds one decision in. Counts per verdict track input rows, not
// merged entries.
func (b *DictionaryBuilder) Add(d Decision) {
	b.counts[d.Verdict]++
	k := entryKey{en: d.EN, ko: d.KO, verdict: d.Verdict}
	e, ok := b.entries[k]
	if !ok {
		e = &Entry{EN: d.EN, KO: d.KO}
		b.entries[k] = e
		b.order = append(b.order, k)
	}
	e.Count += d.Candidate.Count
	e.Sources = appendUnique(e.Sources, d.Candidate.Source)
	for _, r := range d.Reasons {
		e.Reasons = appendUnique(e.Reasons, r)
	}
	if d.Score != nil && (e.Score == nil || *d.Score > *e.Score) {
		s := *d.Score
		e.Score = &s
	}
}

// Rows is the number of decisions folded in.
func (b *DictionaryBuilder) Rows() int {
	n := 0
	for _, c := range b.counts {
		n += c
	}
	return n
}

// Build renders the dictionary with every section ordered by descending
// count, ties broken by en then ko.
func (b *DictionaryBuilder) Build(romanization string) Dictionary {
	d := Dictionary{
		Version:      1,
		Romanization: romanization,
		Counts:       make(map[string]int, len(Verdicts)),
		Active:       []Entry{},
		Pending:      []Entry{},
		Dropped:      []Entry{},
		Routed:       Routed{Regimen: []Entry{}, Biomarker: []Entry{}, Disease: []Entry{}},
	}
	for _, v := range Verdicts {
		d.Counts[string(v)] = b.counts[v]
	}
	for _, k := range b.order {
		e := *b.entries[k]
		switch k.verdict {
		case VerdictActive:
			d.Active = append(d.Active, e)
		case VerdictPending:
			d.Pending = append(d.Pending, e)
		case VerdictDrop:
			d.Dropped = append(d.Dropped, e)
		case VerdictRouteRegimen:
			d.Routed.Regimen = append(d.Routed.Regimen, e)
		case VerdictRouteBiomarker:
			d.Routed.Biomarker = append(d.Routed.Biomarker, e)
		case VerdictRouteDisease:
			d.Routed.Disease = append(d.Routed.Disease, e)
		}
	}
	for _, section := range [][]Entry{d.Active, d.Pending, d.Dropped, d.Routed.Regimen, d.Routed.Biomarker, d.Routed.Disease} {
		sortEntries(section)
	}
	return d
}

// LoadDictionary reads a drug.yaml written by a previous run.
func LoadDictionary(path string) (*Dictionary, error) {
	var d Dictionary
	if err := pipeline.ReadYAML(path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func sortEntries(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Count != es[j].Count {
			return es[i].Count > es[j].Count
		}
		if es[i].EN != es[j].EN {
			return es[i].EN < es[j].EN
		}
		return es[i].KO < es[j].KO
	})
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
