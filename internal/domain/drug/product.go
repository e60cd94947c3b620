package drug

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Phase names one step of product-name decomposition.
type Phase string

const (
	PhaseSplit       Phase = "split"
	PhaseStripDigits Phase = "strip-dosage-digits"
	PhaseStripForm   Phase = "strip-form-suffix"
	PhaseIngredient  Phase = "extract-ingredient"
	PhaseSalt        Phase = "extract-salt"
)

// Phase failure reasons.
const (
	DefectEmptyProductName = "EMPTY_PRODUCT_NAME"
	DefectNoBrandPrefix    = "NO_BRAND_PREFIX"
	DefectNoIngredient     = "NO_INGREDIENT_GROUP"
)

// PhaseError reports which phase could not complete.
type PhaseError struct {
	Phase  Phase
	Reason string
	Input  string
}

func (e *PhaseError) Error() string {
	return string(e.Phase) + ": " + e.Reason + " (" + e.Input + ")"
}

// Malformed reports whether the failure leaves the name unusable (no brand).
// A missing ingredient group alone is not malformed.
func (e *PhaseError) Malformed() bool {
	return e.Phase == PhaseSplit || e.Phase == PhaseStripDigits
}

// formSuffixes is the closed set of dosage-form suffixes stripped from brand
// names. Longest first so 서방정 wins over 정.
var formSuffixes = sortedByLength([]string{
	"정", "정제", "서방정", "장용정", "필름코팅정", "츄어블정",
	"캡슐", "연질캡슐", "경질캡슐", "연질", "경질",
	"주", "주사", "주사액", "주사용", "주입액", "프리필드시린지",
	"현탁액", "시럽", "분말", "과립", "패치", "펜", "키트", "액",
})

// ParseProductName runs every phase over a product name. The returned
// ParsedName carries whatever phases succeeded; the error names the first
// phase that failed. The ingredient is extracted even when the brand phases
// fail: 5-FU주250mg(플루오로우라실) has no brand prefix but still groups
// under 플루오로우라실.
func ParseProductName(name string) (ParsedName, *PhaseError) {
	var p ParsedName

	prefix, err := splitPrefix(name)
	if err != nil {
		return p, err
	}
	var first *PhaseError
	if brand, err := stripDosageDigits(prefix); err != nil {
		first = err
	} else {
		base := StripFormSuffix(brand)
		p.BrandKo = &brand
		p.BrandBase = &base
	}

	ing, err := extractIngredient(name)
	if err != nil {
		if first == nil {
			first = err
		}
		return p, first
	}
	p.IngredientKo = &ing

	ingBase, salt := SplitSaltKo(ing)
	p.IngredientBaseKo = &ingBase
	if salt != "" {
		p.SaltForm = &salt
	}
	return p, first
}

var dosageQuantity = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:mg|mcg|μg|ug|ml|iu|g|l|밀리그램|마이크로그램|그램|밀리리터|단위)`)

// ProductNameKey reduces a product name to a strength-free key for rows
// with no parseable ingredient or brand: the text after the first '(' or
// '_' is dropped, then dosage quantities, trailing digits and one form
// suffix. 5-FU주250mg_(250mg/5mL) -> 5-FU.
func ProductNameKey(name string) string {
	s := strings.TrimSpace(name)
	if i := strings.IndexAny(s, "(_"); i >= 0 {
		s = s[:i]
	}
	s = dosageQuantity.ReplaceAllString(s, "")
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsDigit(r) || unicode.IsSpace(r) || r == '.' || r == '/'
	})
	s = StripFormSuffix(strings.TrimSpace(s))
	if s == "" {
		return strings.TrimSpace(name)
	}
	return s
}

// splitPrefix returns the text before the first '(' or '_'.
func splitPrefix(name string) (string, *PhaseError) {
	s := strings.TrimSpace(name)
	if s == "" {
		return "", &PhaseError{Phase: PhaseSplit, Reason: DefectEmptyProductName, Input: name}
	}
	if i := strings.IndexAny(s, "(_"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s), nil
}

// stripDosageDigits cuts the prefix at its first digit:
// 버제니오정50밀리그램 -> 버제니오정.
func stripDosageDigits(prefix string) (string, *PhaseError) {
	s := prefix
	if i := strings.IndexFunc(s, unicode.IsDigit); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &PhaseError{Phase: PhaseStripDigits, Reason: DefectNoBrandPrefix, Input: prefix}
	}
	return s, nil
}

// StripFormSuffix removes one dosage-form suffix. A name that is nothing but
// a form word is returned unchanged.
func StripFormSuffix(brand string) string {
	for _, suf := range formSuffixes {
		if strings.HasSuffix(brand, suf) && utf8.RuneCountInString(brand) > utf8.RuneCountInString(suf) {
			return strings.TrimSpace(strings.TrimSuffix(brand, suf))
		}
	}
	return brand
}

// extractIngredient returns the first parenthesized group, first comma
// clause only. A group that starts with a digit is a strength, not an
// ingredient.
func extractIngredient(name string) (string, *PhaseError) {
	open := strings.IndexRune(name, '(')
	if open < 0 {
		return "", &PhaseError{Phase: PhaseIngredient, Reason: DefectNoIngredient, Input: name}
	}
	rest := name[open+1:]
	if close := strings.IndexRune(rest, ')'); close >= 0 {
		rest = rest[:close]
	}
	if i := strings.IndexAny(rest, ",，"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", &PhaseError{Phase: PhaseIngredient, Reason: DefectNoIngredient, Input: name}
	}
	if r, _ := utf8.DecodeRuneInString(rest); unicode.IsDigit(r) {
		return "", &PhaseError{Phase: PhaseIngredient, Reason: DefectNoIngredient, Input: name}
	}
	return rest, nil
}

func sortedByLength(in []string) []string {
	out := append([]string(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}
