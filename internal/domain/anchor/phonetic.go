package anchor

import "strings"

// PhoneticKey reduces a romanized or English term to its consonant skeleton.
// Voicing and aspiration are merged because Korean loanword spelling does not
// preserve them.
func PhoneticKey(s string) string {
	s = strings.ToLower(s)
	var letters []byte
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			letters = append(letters, c)
		}
	}

	var out []byte
	emit := func(c byte) {
		if n := len(out); n > 0 && out[n-1] == c {
			return
		}
		out = append(out, c)
	}
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		var next byte
		if i+1 < len(letters) {
			next = letters[i+1]
		}
		switch {
		case c == 'p' && next == 'h':
			emit('p')
			i++
		case c == 't' && next == 'h':
			emit('t')
			i++
		case c == 'c' && next == 'h':
			emit('k')
			i++
		case c == 's' && next == 'h':
			emit('s')
			i++
		case c == 'c' && next == 'k':
			emit('k')
			i++
		case c == 'q' && next == 'u':
			emit('k')
			i++
		case c == 'n' && next == 'g':
			emit('n')
			i++
		case c == 'x':
			emit('k')
			emit('s')
		case c == 'c':
			if next == 'e' || next == 'i' || next == 'y' {
				emit('s')
			} else {
				emit('k')
			}
		default:
			if k := consonantClass(c); k != 0 {
				emit(k)
			}
		}
	}
	return string(out)
}

func consonantClass(c byte) byte {
	switch c {
	case 'b', 'p', 'f', 'v':
		return 'p'
	case 'd', 't':
		return 't'
	case 'g', 'k', 'q':
		return 'k'
	case 's', 'z', 'j':
		return 's'
	case 'l', 'r':
		return 'l'
	case 'm':
		return 'm'
	case 'n':
		return 'n'
	}
	return 0
}

// Similarity is the bigram Dice coefficient of two phonetic keys. Keys too
// short to form a bigram score 1 when equal and 0 otherwise.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if len(a) < 2 || len(b) < 2 {
		if a == b {
			return 1
		}
		return 0
	}
	counts := make(map[string]int, len(a))
	for i := 0; i+1 < len(a); i++ {
		counts[a[i:i+2]]++
	}
	common := 0
	for i := 0; i+1 < len(b); i++ {
		bg := b[i : i+2]
		if counts[bg] > 0 {
			counts[bg]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(a)-1+len(b)-1)
}

// PhoneticScore compares an English term with a Korean one. ok is false when
// either side has no consonant skeleton to compare.
func PhoneticScore(en, ko string) (score float64, ok bool) {
	ka := PhoneticKey(en)
	kb := PhoneticKey(Romanize(ko))
	if ka == "" || kb == "" {
		return 0, false
	}
	return Similarity(ka, kb), true
}
