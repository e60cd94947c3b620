package anchor

import (
	"strings"
	"unicode"
)

const (
	hangulBase  = 0xAC00
	hangulLast  = 0xD7A3
	medialCount = 21
	finalCount  = 28
)

// Revised Romanization of Korean, simplified to what a consonant skeleton
// needs: finals take their representative sound.
var (
	rrInitials = [...]string{"g", "kk", "n", "d", "tt", "r", "m", "b", "pp", "s", "ss", "", "j", "jj", "ch", "k", "t", "p", "h"}
	rrMedials  = [...]string{"a", "ae", "ya", "yae", "eo", "e", "yeo", "ye", "o", "wa", "wae", "oe", "yo", "u", "wo", "we", "wi", "yu", "eu", "ui", "i"}
	rrFinals   = [...]string{"", "k", "k", "k", "n", "n", "n", "t", "l", "k", "m", "l", "l", "l", "p", "l", "m", "p", "p", "t", "t", "ng", "t", "t", "k", "t", "p", "t"}
)

const (
	initialRieul = 5
	finalRieul   = 8
)

// Romanize transliterates Hangul syllables with Revised Romanization.
// ASCII letters and digits pass through lowercased; everything else is
// dropped except single spaces between words.
func Romanize(s string) string {
	var b strings.Builder
	prevFinal := -1
	for _, r := range s {
		if r >= hangulBase && r <= hangulLast {
			idx := int(r - hangulBase)
			initial := idx / (medialCount * finalCount)
			medial := (idx % (medialCount * finalCount)) / finalCount
			final := idx % finalCount

			if initial == initialRieul && prevFinal == finalRieul {
				b.WriteString("l")
			} else {
				b.WriteString(rrInitials[initial])
			}
			b.WriteString(rrMedials[medial])
			b.WriteString(rrFinals[final])
			prevFinal = final
			continue
		}
		prevFinal = -1
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
		}
	}
	return strings.TrimSpace(b.String())
}
