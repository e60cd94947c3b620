package disease

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	codeGrammar = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,3})?$`)
	dotless     = regexp.MustCompile(`^([A-Z][0-9]{2})([0-9A-Z]{1,3})$`)
	codeMarks   = strings.NewReplacer("†", "", "*", "", "+", "", " ", "")
)

// NormalizeCode uppercases a KCD code, drops dagger/asterisk marks and
// inserts the missing dot (C341 -> C34.1). It reports whether a dot was
// inserted. Range codes are returned unchanged.
func NormalizeCode(raw string) (code string, dotInserted bool) {
	code = strings.ToUpper(codeMarks.Replace(strings.TrimSpace(raw)))
	if m := dotless.FindStringSubmatch(code); m != nil {
		return m[1] + "." + m[2], true
	}
	return code, false
}

// IsRange reports codes that name a span such as C00-C97.
func IsRange(code string) bool {
	return strings.ContainsAny(code, "-~")
}

// Valid reports whether code matches the KCD entity-key grammar.
func Valid(code string) bool {
	return codeGrammar.MatchString(code)
}

// Category is the three-character head of a code: C34.1 -> C34.
func Category(code string) string {
	if len(code) < 3 {
		return code
	}
	return code[:3]
}

// IsCancer covers malignant neoplasms C00-C97 and in situ, benign and
// uncertain neoplasms D00-D48.
func IsCancer(code string) bool {
	if !Valid(code) {
		return false
	}
	n, err := strconv.Atoi(code[1:3])
	if err != nil {
		return false
	}
	switch code[0] {
	case 'C':
		return n <= 97
	case 'D':
		return n <= 48
	}
	return false
}

var chapters = []struct {
	numeral  string
	from, to string
}{
	{"I", "A00", "B99"},
	{"II", "C00", "D48"},
	{"III", "D50", "D89"},
	{"IV", "E00", "E90"},
	{"V", "F00", "F99"},
	{"VI", "G00", "G99"},
	{"VII", "H00", "H59"},
	{"VIII", "H60", "H95"},
	{"IX", "I00", "I99"},
	{"X", "J00", "J99"},
	{"XI", "K00", "K93"},
	{"XII", "L00", "L99"},
	{"XIII", "M00", "M99"},
	{"XIV", "N00", "N99"},
	{"XV", "O00", "O99"},
	{"XVI", "P00", "P96"},
	{"XVII", "Q00", "Q99"},
	{"XVIII", "R00", "R99"},
	{"XIX", "S00", "T98"},
	{"XX", "V01", "Y98"},
	{"XXI", "Z00", "Z99"},
	{"XXII", "U00", "U99"},
}

// Chapter returns the ICD chapter numeral for a code, or "" when the
// category falls in no chapter.
func Chapter(code string) string {
	cat := Category(code)
	for _, c := range chapters {
		if cat >= c.from && cat <= c.to {
			return c.numeral
		}
	}
	return ""
}

// parent returns the code one level up: C34.10 -> C34.1, C34.1 -> C34.
func parent(code string) (string, bool) {
	dot := strings.IndexByte(code, '.')
	if dot < 0 {
		return "", false
	}
	if len(code)-dot-1 > 1 {
		return code[:len(code)-1], true
	}
	return code[:dot], true
}
