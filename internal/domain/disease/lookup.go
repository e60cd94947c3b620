package disease

import (
	"sort"
	"strings"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Lookup is the code -> record map written as kcd_lookup.json.
type Lookup map[string]Disease

// NewLookup indexes diseases by code.
func NewLookup(ds []Disease) Lookup {
	l := make(Lookup, len(ds))
	for _, d := range ds {
		l[d.Code] = d
	}
	return l
}

// LoadDiseases reads diseases.json.
func LoadDiseases(path string) ([]Disease, error) {
	var ds []Disease
	if err := pipeline.ReadJSON(path, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// Expand maps a KCD code as cited elsewhere (possibly dotless or a
// category) to disease keys: the code itself when it is a leaf, otherwise
// every lowest-level descendant starting with "<code>.". A code unknown to
// the master expands to nothing.
func (l Lookup) Expand(raw string) []string {
	code, _ := NormalizeCode(raw)
	d, ok := l[code]
	if !ok {
		return nil
	}
	if d.IsLowest {
		return []string{code}
	}
	prefix := code
	if !strings.Contains(code, ".") {
		prefix = code + "."
	}
	var out []string
	for k, v := range l {
		if v.IsLowest && strings.HasPrefix(k, prefix) && k != code {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Has reports whether the normalized code exists in the master.
func (l Lookup) Has(raw string) bool {
	code, _ := NormalizeCode(raw)
	_, ok := l[code]
	return ok
}
