package anchor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Brand alias origins, in the order they are merged.
const (
	OriginSeed    = "seed"
	OriginMaster  = "master"
	OriginContext = "context"
)

// AliasSeed is the curated brand_alias seed document.
type AliasSeed struct {
	Brands map[string]string `yaml:"brands"`
}

// parenPair matches "outer(inner)" as written in free text, e.g.
// "키트루다(펨브롤리주맙)" or "펨브롤리주맙(키트루다)".
var parenPair = regexp.MustCompile(`([가-힣A-Za-z][가-힣A-Za-z0-9\-]*)\s*\(\s*([가-힣A-Za-z][가-힣A-Za-z0-9\- ]*[가-힣A-Za-z0-9])\s*\)`)

// AliasBuilder accumulates brand -> ingredient mappings. A brand mapped to
// several ingredients keeps all of them forward; the first ingredient
// written wins on reverse lookup.
type AliasBuilder struct {
	forward   map[string][]string
	first     map[string]string
	conflicts map[string]bool
	known     map[string]string
	log       zerolog.Logger
}

// NewAliasBuilder creates an empty builder.
func NewAliasBuilder(log zerolog.Logger) *AliasBuilder {
	return &AliasBuilder{
		forward:   make(map[string][]string),
		first:     make(map[string]string),
		conflicts: make(map[string]bool),
		known:     make(map[string]string),
		log:       log,
	}
}

// KnowIngredient registers a name (Korean or English) that resolves to the
// canonical Korean ingredient ko. Context extraction only trusts pairs with
// one known side.
func (b *AliasBuilder) KnowIngredient(name, ko string) {
	k := aliasKey(name)
	if k == "" || ko == "" {
		return
	}
	if _, ok := b.known[k]; !ok {
		b.known[k] = ko
	}
}

// Add maps brand to ingredient. It reports whether the brand already
// pointed at a different ingredient.
func (b *AliasBuilder) Add(brand, ingredient, origin string) bool {
	brand = NormalizeText(brand)
	ingredient = NormalizeText(ingredient)
	if brand == "" || ingredient == "" || brand == ingredient {
		return false
	}
	existing := b.forward[brand]
	for _, ing := range existing {
		if ing == ingredient {
			return false
		}
	}
	b.forward[brand] = append(existing, ingredient)
	if len(existing) == 0 {
		b.first[brand] = ingredient
		return false
	}
	b.conflicts[brand] = true
	b.log.Warn().
		Str("brand", brand).
		Strs("ingredients", b.forward[brand]).
		Str("origin", origin).
		Msg("brand alias maps to more than one ingredient")
	return true
}

// ExtractContext scans free text for brand(ingredient) and
// ingredient(brand) pairs and adds those with exactly one known side.
// It returns the number of pairs added.
func (b *AliasBuilder) ExtractContext(text string) int {
	added := 0
	for _, m := range parenPair.FindAllStringSubmatch(NormalizeText(text), -1) {
		outer, inner := m[1], m[2]
		outerKo, outerKnown := b.known[aliasKey(outer)]
		innerKo, innerKnown := b.known[aliasKey(inner)]
		switch {
		case innerKnown && !outerKnown:
			b.Add(outer, innerKo, OriginContext)
			added++
		case outerKnown && !innerKnown:
			b.Add(inner, outerKo, OriginContext)
			added++
		}
	}
	return added
}

// Conflicts is the number of brands mapped to more than one ingredient.
func (b *AliasBuilder) Conflicts() int { return len(b.conflicts) }

// Build renders both directions with sorted value lists for the reverse
// map. Forward lists keep insertion order so the first mapping stays first.
func (b *AliasBuilder) Build() BrandAlias {
	out := BrandAlias{
		BrandToIngredient:  make(map[string][]string, len(b.forward)),
		IngredientToBrands: make(map[string][]string),
	}
	for brand, ings := range b.forward {
		out.BrandToIngredient[brand] = append([]string(nil), ings...)
	}
	for brand, ing := range b.first {
		out.IngredientToBrands[ing] = append(out.IngredientToBrands[ing], brand)
	}
	for _, brands := range out.IngredientToBrands {
		sort.Strings(brands)
	}
	return out
}

func aliasKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(NormalizeText(s), " ", ""))
}

// LoadBrandAliases reads a brand_alias.yaml written by a previous run.
func LoadBrandAliases(path string) (*BrandAlias, error) {
	var a BrandAlias
	if err := pipeline.ReadYAML(path, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ExtendIndex teaches idx every brand whose first ingredient it already
// resolves. It returns the number of brands added.
func ExtendIndex(idx *drug.Index, a *BrandAlias) int {
	brands := make([]string, 0, len(a.BrandToIngredient))
	for b := range a.BrandToIngredient {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	added := 0
	for _, b := range brands {
		ings := a.BrandToIngredient[b]
		if len(ings) > 0 && idx.AddAlias(b, ings[0]) {
			added++
		}
	}
	return added
}
