package regimen

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/domain/anchor"
	"github.com/medkg/medkg/internal/domain/cancer"
	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// CancerKCD resolves a regimen's cancer to KCD codes from the reviewed
// cancer mapping, by cancer_seq or by name.
type CancerKCD struct {
	bySeq  map[int][]string
	byName map[string][]string
}

// NewCancerKCD indexes reviewed mapping rows.
func NewCancerKCD(ms []cancer.Mapping) *CancerKCD {
	c := &CancerKCD{bySeq: make(map[int][]string), byName: make(map[string][]string)}
	for _, m := range ms {
		c.bySeq[m.CancerSeq] = append(c.bySeq[m.CancerSeq], m.KCDCode)
		if name := nameKey(m.CancerName); name != "" {
			c.byName[name] = append(c.byName[name], m.KCDCode)
		}
	}
	return c
}

// Codes returns the mapped codes for a cancer, seq taking precedence.
func (c *CancerKCD) Codes(seq int, name string) []string {
	if c == nil {
		return nil
	}
	if codes, ok := c.bySeq[seq]; ok && seq > 0 {
		return codes
	}
	return c.byName[nameKey(name)]
}

func nameKey(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

// Builder turns parsed announcements into regimen records.
type Builder struct {
	drugs  *drug.Index
	cancer *CancerKCD
	log    zerolog.Logger
}

// NewBuilder creates a Builder. cancerKCD may be nil.
func NewBuilder(drugs *drug.Index, cancerKCD *CancerKCD, log zerolog.Logger) *Builder {
	return &Builder{drugs: drugs, cancer: cancerKCD, log: log}
}

// Build emits one regimen per distinct regimen_id, sorted by id.
func (b *Builder) Build(anns []Announcement, sum *pipeline.Summary) ([]Regimen, error) {
	seen := make(map[string]bool)
	var out []Regimen
	for _, a := range anns {
		for _, raw := range a.Regimens {
			sum.Inc(ReasonRegimensRead)
			names, source := drugNames(raw)
			id := RegimenID(a.AnnouncementNo, source)
			if seen[id] {
				sum.Inc(ReasonDuplicateID)
				continue
			}
			seen[id] = true
			out = append(out, b.buildOne(a, raw, names, source, sum))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no regimens in announcements", pipeline.ErrEmptyResult)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegimenID < out[j].RegimenID })
	sum.Set(ReasonRegimens, len(out))
	return out, nil
}

// drugNames returns the constituent names and the source text the id is
// derived from, synthesized when the announcement gave none.
func drugNames(raw RawRegimen) (names []string, source string) {
	names = raw.Drugs
	if len(names) == 0 {
		names = SplitDrugs(raw.DrugsText)
	}
	source = strings.TrimSpace(raw.SourceText)
	if source == "" {
		source = strings.TrimSpace(raw.CancerName) + ": " + strings.Join(names, " + ")
	}
	return names, source
}

func (b *Builder) buildOne(a Announcement, raw RawRegimen, names []string, source string, sum *pipeline.Summary) Regimen {
	r := Regimen{
		RegimenID:        RegimenID(a.AnnouncementNo, source),
		CancerName:       strings.TrimSpace(raw.CancerName),
		AnnouncementNo:   a.AnnouncementNo,
		AnnouncementDate: a.AnnouncementDate,
		Drugs:            []Drug{},
		KCDCodes:         []string{},
		SourceText:       source,
	}
	var ok bool
	if r.Line, ok = NormalizeLine(raw.Line); !ok {
		sum.Inc(ReasonUnknownLine)
	}
	if r.Purpose, ok = NormalizePurpose(raw.Purpose); !ok {
		sum.Inc(ReasonUnknownPurpose)
	}
	if r.Action, ok = NormalizeAction(raw.Action); !ok {
		sum.Inc(ReasonUnknownAction)
	}

	// Order is the 1-based declared position; unresolved drugs keep their
	// slot with an empty ATC code.
	seenATC := make(map[string]bool, len(names))
	declared, resolved := 0, 0
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		declared++
		atc, found := b.drugs.Resolve(n)
		if !found {
			sum.Inc(ReasonUnresolvedDrug)
			r.UnresolvedDrugs = append(r.UnresolvedDrugs, n)
			r.Drugs = append(r.Drugs, Drug{Name: n, Order: declared})
			b.log.Debug().Str("regimen", r.RegimenID).Str("drug", n).Msg("regimen drug not in master")
			continue
		}
		if seenATC[atc] {
			sum.Inc(ReasonDuplicateDrug)
			continue
		}
		seenATC[atc] = true
		resolved++
		r.Drugs = append(r.Drugs, Drug{ATCCode: atc, Name: n, Order: declared})
	}
	if declared == 0 {
		sum.Inc(ReasonNoDrugs)
	}
	r.HasAllDrugs = declared > 0 && len(r.UnresolvedDrugs) == 0
	if len(r.UnresolvedDrugs) > 0 && resolved > 0 {
		sum.Inc(ReasonPartialDrugs)
	}
	r.RegimenType = TypeMono
	if len(r.Drugs) > 1 {
		r.RegimenType = TypeCombination
	}

	for _, c := range raw.KCDCodes {
		code, _ := disease.NormalizeCode(c)
		if disease.IsRange(code) || !disease.Valid(code) {
			sum.Inc(ReasonInvalidKCD)
			continue
		}
		r.KCDCodes = appendUnique(r.KCDCodes, code)
	}
	if len(r.KCDCodes) == 0 {
		if codes := b.cancer.Codes(raw.CancerSeq, raw.CancerName); len(codes) > 0 {
			for _, c := range codes {
				r.KCDCodes = appendUnique(r.KCDCodes, c)
			}
			sum.Inc(ReasonKCDFromCancer)
		}
	}
	sort.Strings(r.KCDCodes)
	r.HasKCD = len(r.KCDCodes) > 0
	if !r.HasKCD {
		sum.Inc(ReasonNoKCD)
	}
	return r
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// ReadAnnouncements loads parsed announcements.
func ReadAnnouncements(path string) ([]Announcement, error) {
	var anns []Announcement
	if err := pipeline.ReadJSON(path, &anns); err != nil {
		return nil, err
	}
	return anns, nil
}

// LoadRegimens reads regimens.json.
func LoadRegimens(path string) ([]Regimen, error) {
	var rs []Regimen
	if err := pipeline.ReadJSON(path, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Input names the HIRA stage inputs. AliasPath and CancerKCDPath are
// optional.
type Input struct {
	AnnouncementsPath string
	MasterPath        string
	AliasPath         string
	CancerKCDPath     string
	OutDir            string
}

// Run resolves drugs against the anticancer master and writes
// regimens.json.
func Run(ctx context.Context, in Input, log zerolog.Logger) ([]Regimen, *pipeline.Summary, error) {
	sum := pipeline.NewSummary("regimens")

	sum.Input(in.MasterPath)
	idx, _, err := drug.LoadIndex(in.MasterPath)
	if err != nil {
		return nil, sum, err
	}
	if in.AliasPath != "" {
		sum.Input(in.AliasPath)
		aliases, err := anchor.LoadBrandAliases(in.AliasPath)
		if err != nil {
			return nil, sum, err
		}
		sum.Set("BRAND_ALIASES", anchor.ExtendIndex(idx, aliases))
	}
	var ck *CancerKCD
	if in.CancerKCDPath != "" {
		sum.Input(in.CancerKCDPath)
		ms, err := cancer.LoadMapping(in.CancerKCDPath)
		if err != nil {
			return nil, sum, err
		}
		ck = NewCancerKCD(ms)
	}

	sum.Input(in.AnnouncementsPath)
	anns, err := ReadAnnouncements(in.AnnouncementsPath)
	if err != nil {
		return nil, sum, err
	}
	if err := ctx.Err(); err != nil {
		return nil, sum, err
	}
	rs, err := NewBuilder(idx, ck, log).Build(anns, sum)
	if err != nil {
		return nil, sum, err
	}

	out := filepath.Join(in.OutDir, RegimensFile)
	if err := pipeline.WriteJSON(out, rs); err != nil {
		return rs, sum, err
	}
	sum.Output(out)
	sum.Finish(nil)
	if err := pipeline.WriteSummary(out, sum); err != nil {
		return rs, sum, err
	}
	log.Info().
		Int("regimens", len(rs)).
		Int("unresolved_drugs", sum.Count(ReasonUnresolvedDrug)).
		Int("without_kcd", sum.Count(ReasonNoKCD)).
		Msg("regimen bridge written")
	return rs, sum, nil
}
