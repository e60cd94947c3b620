package anchor

import "testing"

func TestRomanize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"파클리탁셀", "pakeullitaksel"},
		{"알람", "allam"},
		{"타목시펜", "tamoksipen"},
		{"HER2 양성", "her2 yangseong"},
		{"(주)", "ju"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Romanize(tt.in); got != tt.want {
			t.Errorf("Romanize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhoneticKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"paclitaxel", "pkltksl"},
		{"pakeullitaksel", "pkltksl"},
		{"cyclophosphamide", "sklpspmt"},
		{"quinine", "kn"},
		{"aeiou", ""},
	}
	for _, tt := range tests {
		if got := PhoneticKey(tt.in); got != tt.want {
			t.Errorf("PhoneticKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("pkltksl", "pkltksl"); got != 1 {
		t.Errorf("identical keys = %v, want 1", got)
	}
	if got := Similarity("tmkspn", "plpstlnt"); got != 0 {
		t.Errorf("disjoint keys = %v, want 0", got)
	}
	if got := Similarity("p", "p"); got != 1 {
		t.Errorf("short equal keys = %v, want 1", got)
	}
	if got := Similarity("p", "t"); got != 0 {
		t.Errorf("short different keys = %v, want 0", got)
	}
	if got := Similarity("", "pk"); got != 0 {
		t.Errorf("empty key = %v, want 0", got)
	}
}

func TestPhoneticScore(t *testing.T) {
	pairs := []struct {
		en, ko string
	}{
		{"pembrolizumab", "펨브롤리주맙"},
		{"oxaliplatin", "옥살리플라틴"},
		{"bortezomib", "보르테조밉"},
		{"letrozole", "레트로졸"},
	}
	for _, p := range pairs {
		score, ok := PhoneticScore(p.en, p.ko)
		if !ok || score != 1 {
			t.Errorf("PhoneticScore(%q, %q) = %v, %v; want 1, true", p.en, p.ko, score, ok)
		}
	}
	if _, ok := PhoneticScore("busulfan", "123"); ok {
		t.Error("digits-only Korean side should not be comparable")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  R‐CHOP  ", "R-CHOP"},
		{"“HER2”", `"HER2"`},
		{"a\t\n b", "a b"},
		{"ＡＢＣ＋", "ABC+"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
