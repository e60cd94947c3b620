package regimen

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

type vocab struct {
	value string
	words []string
}

var lines = []vocab{
	{LineThird, []string{"3rd", "third", "3차", "삼차", "4차", "4th"}},
	{LineSecond, []string{"2nd", "second", "2차", "이차"}},
	{LineFirst, []string{"1st", "first", "1차", "일차"}},
}

// neoadjuvant words are checked first: they contain the adjuvant ones.
var purposes = []vocab{
	{PurposeNeoadjuvant, []string{"neoadjuvant", "neo-adjuvant", "선행", "수술 전", "수술전"}},
	{PurposeAdjuvant, []string{"adjuvant", "보조", "수술 후", "수술후"}},
	{PurposePalliative, []string{"palliative", "고식", "완화"}},
}

var actions = []vocab{
	{ActionRemoved, []string{"removed", "deleted", "삭제"}},
	{ActionModified, []string{"modified", "changed", "변경", "개정"}},
	{ActionAdded, []string{"added", "new", "신설", "추가", "신규"}},
}

func lookup(table []vocab, raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", true
	}
	for _, v := range table {
		for _, w := range v.words {
			if strings.Contains(s, w) {
				return v.value, true
			}
		}
	}
	return "", false
}

// NormalizeLine maps Korean or English line-of-therapy text to 1st, 2nd or
// 3rd+. ok is false for non-empty text it cannot place.
func NormalizeLine(raw string) (string, bool) { return lookup(lines, raw) }

// NormalizePurpose maps purpose text to palliative, adjuvant or
// neoadjuvant.
func NormalizePurpose(raw string) (string, bool) { return lookup(purposes, raw) }

// NormalizeAction maps the announcement change type to added, modified or
// removed.
func NormalizeAction(raw string) (string, bool) { return lookup(actions, raw) }

var drugSeparators = regexp.MustCompile(`\s*(?:\+|/|,|·|＋| and | 및 )\s*`)

// SplitDrugs splits "oxaliplatin + capecitabine" style text.
func SplitDrugs(text string) []string {
	var out []string
	for _, p := range drugSeparators.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RegimenID is the first 16 hex characters of SHA-256 over the
// announcement number and source text joined by NUL.
func RegimenID(announcementNo, sourceText string) string {
	sum := sha256.Sum256([]byte(announcementNo + "\x00" + sourceText))
	return hex.EncodeToString(sum[:])[:16]
}
