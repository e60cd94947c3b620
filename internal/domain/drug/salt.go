package drug

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// saltsKo are the Korean salt-form suffixes detached from ingredient names.
var saltsKo = sortedByLength([]string{
	"아세테이트", "염산염", "황산염", "구연산염", "말레산염", "주석산염", "인산염",
	"칼륨", "나트륨", "칼슘", "마그네슘",
})

// saltsEn mirrors saltsKo as trailing English words.
var saltsEn = map[string]bool{
	"acetate":       true,
	"hydrochloride": true,
	"sulfate":       true,
	"citrate":       true,
	"maleate":       true,
	"tartrate":      true,
	"phosphate":     true,
	"potassium":     true,
	"sodium":        true,
	"calcium":       true,
	"magnesium":     true,
}

var recombinantMarkers = []string{"filgrastim", "interferon", "interleukin"}

// SplitSaltKo detaches a Korean salt suffix: 이리노테칸염산염 -> (이리노테칸, 염산염).
// The base is never left empty.
func SplitSaltKo(ingredient string) (base, salt string) {
	s := strings.TrimSpace(ingredient)
	for _, suf := range saltsKo {
		if !strings.HasSuffix(s, suf) {
			continue
		}
		b := strings.TrimSpace(strings.TrimSuffix(s, suf))
		if utf8.RuneCountInString(b) == 0 {
			break
		}
		return b, suf
	}
	return s, ""
}

// CleanEnglish lowercases a generic name and cuts it at the first digit,
// which is where the strength starts in the price master.
func CleanEnglish(generic string) string {
	s := strings.ToLower(strings.TrimSpace(generic))
	if i := strings.IndexFunc(s, unicode.IsDigit); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, " ,;/(")
	return strings.Join(strings.Fields(s), " ")
}

// SplitSaltEn detaches a trailing English salt word:
// "irinotecan hydrochloride" -> ("irinotecan", "hydrochloride").
func SplitSaltEn(generic string) (base, salt string) {
	s := CleanEnglish(generic)
	words := strings.Fields(s)
	if len(words) > 1 && saltsEn[words[len(words)-1]] {
		return strings.Join(words[:len(words)-1], " "), words[len(words)-1]
	}
	return s, ""
}

// IsRecombinant reports biologics: monoclonal antibodies (-mab) and the
// recombinant cytokine families.
func IsRecombinant(ingredientEn string) bool {
	s := strings.ToLower(strings.TrimSpace(ingredientEn))
	if s == "" {
		return false
	}
	if strings.HasSuffix(s, "mab") {
		return true
	}
	for _, m := range recombinantMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// mechanisms is keyed by ATC prefix; the longest matching prefix wins.
var mechanisms = map[string]string{
	"L01A":  "alkylating agent",
	"L01B":  "antimetabolite",
	"L01C":  "plant alkaloid",
	"L01D":  "cytotoxic antibiotic",
	"L01E":  "protein kinase inhibitor",
	"L01F":  "monoclonal antibody",
	"L01X":  "other antineoplastic agent",
	"L01XA": "platinum compound",
	"L01XC": "monoclonal antibody",
	"L01XE": "protein kinase inhibitor",
	"L01XG": "proteasome inhibitor",
	"L01XK": "PARP inhibitor",
	"L02A":  "hormone",
	"L02AE": "gonadotropin releasing hormone analogue",
	"L02B":  "hormone antagonist",
	"L02BA": "anti-estrogen",
	"L02BB": "anti-androgen",
	"L02BG": "aromatase inhibitor",
}

// MechanismOfAction derives a mechanism label from the ATC code, falling
// back to the ATC English name.
func MechanismOfAction(atc, atcName string) string {
	code := strings.ToUpper(strings.TrimSpace(atc))
	for n := len(code); n >= 4; n-- {
		if m, ok := mechanisms[code[:n]]; ok {
			return m
		}
	}
	return strings.ToLower(strings.TrimSpace(atcName))
}

// ATCLevel3 is the four-character pharmacological subgroup (L01X).
func ATCLevel3(atc string) string {
	code := strings.ToUpper(strings.TrimSpace(atc))
	if len(code) < 4 {
		return code
	}
	return code[:4]
}

// IsAnticancerATC keeps antineoplastic (L01) and endocrine therapy (L02).
func IsAnticancerATC(atc string) bool {
	code := strings.ToUpper(strings.TrimSpace(atc))
	return strings.HasPrefix(code, "L01") || strings.HasPrefix(code, "L02")
}
