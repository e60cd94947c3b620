package biomarker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// ReadBiomarkers loads the biomarker list, either a bare JSON array or an
// object with a "biomarkers" array.
func ReadBiomarkers(path string) ([]Biomarker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var list []Biomarker
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Biomarkers []Biomarker `json:"biomarkers"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrInputFormat, path, err)
		}
		list = wrapped.Biomarkers
	} else if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrInputFormat, path, err)
	}
	for i, b := range list {
		if strings.TrimSpace(b.BiomarkerID) == "" {
			return nil, fmt.Errorf("%w: %s: biomarker %d has no biomarker_id", pipeline.ErrInputFormat, path, i)
		}
	}
	return list, nil
}

// LoadCodeTable reads a frozen biomarker_code_mapping.json.
func LoadCodeTable(path string) ([]CodeSet, error) {
	var sets []CodeSet
	if err := pipeline.ReadJSON(path, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// MergeCodeTable folds the frozen table into the biomarkers' own code lists.
// Biomarkers without any codes afterwards are counted, not dropped.
func MergeCodeTable(bms []Biomarker, table []CodeSet, sum *pipeline.Summary) {
	byID := make(map[string]CodeSet, len(table))
	for _, cs := range table {
		byID[cs.BiomarkerID] = cs
	}
	for i := range bms {
		b := &bms[i]
		if cs, ok := byID[b.BiomarkerID]; ok {
			b.LOINCCodes = union(b.LOINCCodes, cs.LOINCCodes)
			b.SNOMEDCodes = union(b.SNOMEDCodes, cs.SNOMEDCodes)
		}
		if len(b.LOINCCodes) == 0 && len(b.SNOMEDCodes) == 0 {
			sum.Inc(ReasonNoCodeSet)
		}
	}
}

// Keywords are the search terms used to scan the crosswalk for a biomarker:
// its id, English and Korean names.
func Keywords(b Biomarker) []string {
	var out []string
	for _, k := range []string{b.BiomarkerID, b.NameEn, b.NameKo} {
		k = strings.TrimSpace(k)
		if k != "" {
			out = appendUnique(out, k)
		}
	}
	return out
}

// ScanCodes is the developer aid that produces the frozen code table. It is
// the only place biomarker names are matched against crosswalk text; ASCII
// keywords must match on word boundaries, case-insensitively.
func ScanCodes(bms []Biomarker, rows []CrosswalkRow) []CodeSet {
	out := make([]CodeSet, 0, len(bms))
	for _, b := range bms {
		kws := Keywords(b)
		matchers := make([]func(string) bool, 0, len(kws))
		for _, kw := range kws {
			matchers = append(matchers, keywordMatcher(kw))
		}
		cs := CodeSet{
			BiomarkerID: b.BiomarkerID,
			Name:        b.NameEn,
			Keywords:    kws,
			LOINCCodes:  []string{},
			SNOMEDCodes: []string{},
		}
		for _, r := range rows {
			text := r.NameKo + " " + r.NameEn
			hit := false
			for _, m := range matchers {
				if m(text) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
			cs.LOINCCodes = appendUnique(cs.LOINCCodes, r.LOINCCode)
			cs.SNOMEDCodes = appendUnique(cs.SNOMEDCodes, r.SNOMEDPre)
			cs.SNOMEDCodes = appendUnique(cs.SNOMEDCodes, r.SNOMEDPost)
		}
		sort.Strings(cs.LOINCCodes)
		sort.Strings(cs.SNOMEDCodes)
		out = append(out, cs)
	}
	return out
}

func keywordMatcher(kw string) func(string) bool {
	if isASCII(kw) {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		return re.MatchString
	}
	lower := strings.ToLower(kw)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, v := range b {
		out = appendUnique(out, v)
	}
	return out
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
