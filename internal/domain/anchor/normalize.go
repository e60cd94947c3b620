package anchor

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var punctFolder = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "′", "'",
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-",
	"―", "-", "−", "-", "﹣", "-", "－", "-",
)

// NormalizeText applies NFKC, folds typographic quotes and hyphens, and
// collapses whitespace.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = punctFolder.Replace(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// NormalizeEN is NormalizeText followed by lowercasing.
func NormalizeEN(s string) string {
	return strings.ToLower(NormalizeText(s))
}

func hasHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
