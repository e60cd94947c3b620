package drug

import (
	"strings"
	"unicode"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Index resolves free-text drug names (Korean or English ingredient, brand)
// to ATC codes of the anticancer master. The first record to claim a name
// keeps it.
type Index struct {
	byName map[string]string
	byATC  map[string]*Ingredient
}

// NewIndex indexes every name form of the given ingredients.
func NewIndex(ings []Ingredient) *Index {
	x := &Index{
		byName: make(map[string]string),
		byATC:  make(map[string]*Ingredient),
	}
	for i := range ings {
		ing := &ings[i]
		if ing.ATCCode == "" {
			continue
		}
		if _, ok := x.byATC[ing.ATCCode]; !ok {
			x.byATC[ing.ATCCode] = ing
		}
		names := []string{ing.IngredientKo, ing.IngredientBaseKo, ing.IngredientEn, ing.IngredientBaseEn}
		for _, b := range ing.BrandNames {
			names = append(names, b, StripFormSuffix(b))
		}
		for _, n := range names {
			x.add(n, ing.ATCCode)
		}
	}
	return x
}

// LoadIndex reads an anticancer_master bridge and indexes it.
func LoadIndex(path string) (*Index, []Ingredient, error) {
	var ings []Ingredient
	if err := pipeline.ReadJSON(path, &ings); err != nil {
		return nil, nil, err
	}
	return NewIndex(ings), ings, nil
}

func (x *Index) add(name, atc string) bool {
	k := NameKey(name)
	if k == "" {
		return false
	}
	if _, taken := x.byName[k]; taken {
		return false
	}
	x.byName[k] = atc
	return true
}

// AddAlias makes alias resolve to whatever target resolves to. It reports
// false when target is unknown or alias is already taken.
func (x *Index) AddAlias(alias, target string) bool {
	atc, ok := x.Resolve(target)
	if !ok {
		return false
	}
	return x.add(alias, atc)
}

// Resolve looks a name up directly, then with salt and dosage-form
// suffixes removed.
func (x *Index) Resolve(name string) (string, bool) {
	candidates := []string{name}
	if b, salt := SplitSaltKo(name); salt != "" {
		candidates = append(candidates, b)
	}
	if b, salt := SplitSaltEn(name); salt != "" {
		candidates = append(candidates, b)
	}
	candidates = append(candidates, StripFormSuffix(strings.TrimSpace(name)))
	for _, c := range candidates {
		if atc, ok := x.byName[NameKey(c)]; ok {
			return atc, true
		}
	}
	return "", false
}

// Has reports whether the ATC code belongs to the master.
func (x *Index) Has(atc string) bool {
	_, ok := x.byATC[atc]
	return ok
}

// Ingredient returns the record an ATC code was indexed from.
func (x *Index) Ingredient(atc string) (*Ingredient, bool) {
	ing, ok := x.byATC[atc]
	return ing, ok
}

// Len is the number of indexed names.
func (x *Index) Len() int { return len(x.byName) }

// NameKey folds case and drops spaces, hyphens and punctuation.
func NameKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
