package drug

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/platform/pipeline"
	"github.com/medkg/medkg/internal/platform/tabular"
)

// Normalizer turns the product-level price master into the ingredient-level
// anticancer_master bridge.
type Normalizer struct {
	log zerolog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log.With().Str("stage", "drugs").Logger()}
}

// ProductsFromTable maps price-master columns onto Products. The ATC code
// and product name columns are required.
func ProductsFromTable(t *tabular.Table) ([]Product, error) {
	atcCol, err := t.Require("atc_code", "ATC코드", "ATC 코드", "ATC")
	if err != nil {
		return nil, err
	}
	nameCol, err := t.Require("product_name", "제품명", "품목명")
	if err != nil {
		return nil, err
	}
	atcNameCol := t.Column("atc_name", "ATC코드 명칭", "ATC명칭", "ATC코드명")
	genericCol := t.Column("generic_name", "일반명", "주성분명", "성분명")
	mfrCol := t.Column("manufacturer", "업체명", "제조사", "제조업체")
	codeCol := t.Column("product_code", "제품코드", "품목코드")
	ingCodeCol := t.Column("ingredient_code", "주성분코드", "일반명코드")

	products := make([]Product, 0, len(t.Rows))
	for _, row := range t.Rows {
		products = append(products, Product{
			ATCCode:        strings.ToUpper(tabular.Cell(row, atcCol)),
			ATCName:        tabular.Cell(row, atcNameCol),
			GenericName:    tabular.Cell(row, genericCol),
			ProductName:    tabular.Cell(row, nameCol),
			Manufacturer:   tabular.Cell(row, mfrCol),
			ProductCode:    tabular.Cell(row, codeCol),
			IngredientCode: tabular.Cell(row, ingCodeCol),
		})
	}
	return products, nil
}

type group struct {
	key             string
	fromProductName bool
	atc             map[string]int
	atcName         string
	brands          map[string]bool
	manufacturers   map[string]bool
	productCodes    map[string]bool
	ingredientCodes map[string]bool
	baseKo          map[string]int
	saltKo          map[string]int
	english         map[string]int
	baseEn          map[string]int
	saltEn          map[string]int
	products        int
}

func newGroup(key string) *group {
	return &group{
		key:             key,
		atc:             map[string]int{},
		brands:          map[string]bool{},
		manufacturers:   map[string]bool{},
		productCodes:    map[string]bool{},
		ingredientCodes: map[string]bool{},
		baseKo:          map[string]int{},
		saltKo:          map[string]int{},
		english:         map[string]int{},
		baseEn:          map[string]int{},
		saltEn:          map[string]int{},
	}
}

// Normalize filters products to L01/L02 and aggregates them by Korean
// ingredient. Individual malformed rows never fail the run; an empty
// filter result does.
func (n *Normalizer) Normalize(products []Product, sum *pipeline.Summary) ([]Ingredient, error) {
	groups := make(map[string]*group)

	for _, p := range products {
		sum.Inc(ReasonRowsRead)
		if !IsAnticancerATC(p.ATCCode) {
			sum.Inc(ReasonFilteredOutATC)
			continue
		}
		sum.Inc(ReasonKeptATC)

		parsed, perr := ParseProductName(p.ProductName)
		if perr != nil {
			if perr.Malformed() {
				sum.Inc(ReasonMalformedProductName)
				sum.Inc(perr.Reason)
				n.log.Debug().Str("product", p.ProductName).Str("phase", string(perr.Phase)).Msg("malformed product name")
			} else {
				sum.Inc(ReasonNoIngredientGroup)
			}
		}

		key, fallback := groupKey(p, parsed)
		if fallback {
			sum.Inc(ReasonIngredientFallback)
		}
		g, ok := groups[key]
		if !ok {
			g = newGroup(key)
			g.fromProductName = fallback
			groups[key] = g
		}
		if !fallback {
			g.fromProductName = false
		}
		g.products++
		g.atc[p.ATCCode]++
		if g.atcName == "" {
			g.atcName = p.ATCName
		}
		if parsed.BrandKo != nil {
			g.brands[*parsed.BrandKo] = true
		}
		addNonEmpty(g.manufacturers, p.Manufacturer)
		addNonEmpty(g.productCodes, p.ProductCode)
		addNonEmpty(g.ingredientCodes, p.IngredientCode)
		if parsed.IngredientBaseKo != nil {
			g.baseKo[*parsed.IngredientBaseKo]++
		}
		if parsed.SaltForm != nil {
			g.saltKo[*parsed.SaltForm]++
			sum.Inc(ReasonSaltDetached)
		}
		if p.GenericName != "" {
			en := CleanEnglish(p.GenericName)
			base, salt := SplitSaltEn(p.GenericName)
			if en != "" {
				g.english[en]++
				g.baseEn[base]++
			}
			if salt != "" {
				g.saltEn[salt]++
			}
		}
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no L01/L02 products among %d rows", pipeline.ErrEmptyResult, len(products))
	}

	out := make([]Ingredient, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.ingredient(sum))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientKo < out[j].IngredientKo })
	sum.Set(ReasonIngredients, len(out))
	return out, nil
}

// groupKey picks the aggregation key: the parsed ingredient, else the brand
// with form suffixes stripped, else the product name reduced by
// ProductNameKey so strengths of one product share a key.
func groupKey(p Product, parsed ParsedName) (string, bool) {
	if parsed.IngredientKo != nil && *parsed.IngredientKo != "" {
		return *parsed.IngredientKo, false
	}
	if parsed.BrandBase != nil && *parsed.BrandBase != "" {
		return *parsed.BrandBase, true
	}
	return ProductNameKey(p.ProductName), true
}

func (g *group) ingredient(sum *pipeline.Summary) Ingredient {
	atcs := sortedKeys(g.atc)
	atc := majority(g.atc)
	if len(atcs) > 1 {
		sum.Inc(ReasonMultipleATC)
	}
	ing := Ingredient{
		IngredientKo:      g.key,
		IngredientBaseKo:  majority(g.baseKo),
		IngredientEn:      majority(g.english),
		IngredientBaseEn:  majority(g.baseEn),
		ATCCode:           atc,
		ATCCodes:          atcs,
		ATCLevel3:         ATCLevel3(atc),
		ATCName:           g.atcName,
		MechanismOfAction: MechanismOfAction(atc, g.atcName),
		BrandNames:        sortedSet(g.brands),
		Manufacturers:     sortedSet(g.manufacturers),
		ProductCodes:      sortedSet(g.productCodes),
		IngredientCodes:   sortedSet(g.ingredientCodes),
		ProductCount:      g.products,
		FromProductName:   g.fromProductName,
	}
	if ing.IngredientBaseKo == "" {
		ing.IngredientBaseKo, _ = SplitSaltKo(g.key)
	}
	if salt := majority(g.saltKo); salt != "" {
		ing.SaltForm = &salt
	} else if salt := majority(g.saltEn); salt != "" {
		ing.SaltForm = &salt
	}
	ing.IsRecombinant = IsRecombinant(ing.IngredientBaseEn)
	ing.BrandCount = len(ing.BrandNames)
	ing.BrandNamePrimary = PrimaryBrand(ing.BrandNames)
	return ing
}

// PrimaryBrand is the shortest brand, ties broken lexicographically.
func PrimaryBrand(brands []string) string {
	best := ""
	for _, b := range brands {
		if best == "" {
			best = b
			continue
		}
		lb, lbest := utf8.RuneCountInString(b), utf8.RuneCountInString(best)
		if lb < lbest || (lb == lbest && b < best) {
			best = b
		}
	}
	return best
}

// Input names the files of one drugs run.
type Input struct {
	PricePath string
	OutDir    string
}

// Result is what a drugs run produced.
type Result struct {
	Ingredients []Ingredient
	JSONPath    string
	CSVPath     string
	Summary     *pipeline.Summary
}

// Run reads the price master, normalizes it and writes anticancer_master
// (JSON and CSV) plus its run summary. Nothing is written on failure.
func (n *Normalizer) Run(ctx context.Context, in Input) (*Result, error) {
	sum := pipeline.NewSummary("drugs")
	sum.Input(in.PricePath)

	tbl, err := tabular.ReadFile(in.PricePath, tabular.Options{})
	if err != nil {
		return &Result{Summary: sum}, err
	}
	products, err := ProductsFromTable(tbl)
	if err != nil {
		return &Result{Summary: sum}, err
	}
	if err := ctx.Err(); err != nil {
		return &Result{Summary: sum}, err
	}
	ings, err := n.Normalize(products, sum)
	if err != nil {
		return &Result{Summary: sum}, err
	}

	res := &Result{
		Ingredients: ings,
		JSONPath:    filepath.Join(in.OutDir, MasterFile),
		CSVPath:     filepath.Join(in.OutDir, MasterCSVFile),
		Summary:     sum,
	}
	if err := pipeline.WriteJSON(res.JSONPath, ings); err != nil {
		return res, err
	}
	csvData, err := EncodeCSV(ings)
	if err != nil {
		return res, err
	}
	if err := pipeline.WriteFileAtomic(res.CSVPath, csvData); err != nil {
		return res, err
	}
	sum.Output(res.JSONPath)
	sum.Output(res.CSVPath)
	sum.Finish(nil)
	if err := pipeline.WriteSummary(res.JSONPath, sum); err != nil {
		return res, err
	}

	n.log.Info().
		Int("products", len(products)).
		Int("ingredients", len(ings)).
		Int("malformed", sum.Count(ReasonMalformedProductName)).
		Msg("anticancer master written")
	return res, nil
}

var csvHeader = []string{
	"ingredient_ko", "ingredient_base_ko", "ingredient_base_en", "salt_form",
	"atc_code", "atc_level3", "mechanism_of_action", "is_recombinant",
	"brand_name_primary", "brand_count", "brand_names", "manufacturers", "product_codes",
}

// EncodeCSV renders the bridge as UTF-8-BOM CSV; set-valued fields are
// written as repr-style lists (['a', 'b']).
func EncodeCSV(ings []Ingredient) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, ing := range ings {
		salt := ""
		if ing.SaltForm != nil {
			salt = *ing.SaltForm
		}
		rec := []string{
			ing.IngredientKo, ing.IngredientBaseKo, ing.IngredientBaseEn, salt,
			ing.ATCCode, ing.ATCLevel3, ing.MechanismOfAction, pyBool(ing.IsRecombinant),
			ing.BrandNamePrimary, strconv.Itoa(ing.BrandCount),
			ReprList(ing.BrandNames), ReprList(ing.Manufacturers), ReprList(ing.ProductCodes),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ReprList renders a string list the way Python's repr does.
func ReprList(items []string) string {
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = reprString(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func reprString(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
	}
	r := strings.NewReplacer(`\`, `\\`, "'", `\'`)
	return "'" + r.Replace(s) + "'"
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func addNonEmpty(set map[string]bool, v string) {
	if v = strings.TrimSpace(v); v != "" {
		set[v] = true
	}
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// majority returns the most frequent key, ties broken by the smallest key.
func majority(m map[string]int) string {
	best, bestN := "", 0
	for _, k := range sortedKeys(m) {
		if k == "" {
			continue
		}
		if m[k] > bestN {
			best, bestN = k, m[k]
		}
	}
	return best
}
