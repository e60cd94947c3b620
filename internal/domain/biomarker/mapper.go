package biomarker

import (
	"sort"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// codeIndex holds one biomarker's codes as sets.
type codeIndex struct {
	loinc  map[string]bool
	snomed map[string]bool
}

func indexCodes(b Biomarker) codeIndex {
	ix := codeIndex{loinc: make(map[string]bool), snomed: make(map[string]bool)}
	for _, c := range b.LOINCCodes {
		if c != "" {
			ix.loinc[c] = true
		}
	}
	for _, c := range b.SNOMEDCodes {
		if c != "" {
			ix.snomed[c] = true
		}
	}
	return ix
}

// matchRule is one code-equality rule. Rules run in priority order and the
// first hit decides the match type.
type matchRule struct {
	matchType string
	testCode  func(Test) string
	codes     func(codeIndex) map[string]bool
	blacklist bool
}

var matchRules = []matchRule{
	{
		matchType: MatchLOINC,
		testCode:  func(t Test) string { return t.LOINCCode },
		codes:     func(ix codeIndex) map[string]bool { return ix.loinc },
	},
	{
		matchType: MatchSNOMEDPre,
		testCode:  func(t Test) string { return t.SNOMEDPre },
		codes:     func(ix codeIndex) map[string]bool { return ix.snomed },
		blacklist: true,
	},
	{
		matchType: MatchSNOMEDPost,
		testCode:  func(t Test) string { return t.SNOMEDPost },
		codes:     func(ix codeIndex) map[string]bool { return ix.snomed },
		blacklist: true,
	},
}

// match applies the rules to one biomarker/test pair. blacklisted reports
// that a SNOMED rule would have fired on a generic concept.
func match(ix codeIndex, t Test) (m MatchedTest, ok, blacklisted bool) {
	for _, r := range matchRules {
		code := r.testCode(t)
		if code == "" || !r.codes(ix)[code] {
			continue
		}
		if r.blacklist && GenericSNOMED[code] {
			blacklisted = true
			continue
		}
		return MatchedTest{
			TestID:      t.TestID,
			EDICode:     t.EDICode,
			NameKo:      t.NameKo,
			Category:    t.Category,
			MatchType:   r.matchType,
			Confidence:  Confidence[r.matchType],
			MatchedCode: code,
		}, true, blacklisted
	}
	return MatchedTest{}, false, blacklisted
}

// MapTests links every biomarker to the tests sharing one of its codes. A
// test may appear under any number of biomarkers.
func MapTests(bms []Biomarker, tests []Test, sum *pipeline.Summary) MappingFile {
	out := MappingFile{
		Mappings: make([]Mapping, 0, len(bms)),
		Summary: MappingSummary{
			Biomarkers:          len(bms),
			Tests:               len(tests),
			ByMatchType:         map[string]int{MatchLOINC: 0, MatchSNOMEDPre: 0, MatchSNOMEDPost: 0},
			UnmatchedBiomarkers: []string{},
		},
	}
	for _, b := range bms {
		ix := indexCodes(b)
		mp := Mapping{BiomarkerID: b.BiomarkerID, BiomarkerName: b.NameEn, MatchedTests: []MatchedTest{}}
		for _, t := range tests {
			m, ok, blacklisted := match(ix, t)
			if blacklisted {
				sum.Inc(ReasonBlacklistedCode)
			}
			if !ok {
				continue
			}
			mp.MatchedTests = append(mp.MatchedTests, m)
			out.Summary.ByMatchType[m.MatchType]++
			sum.Inc(m.MatchType)
		}
		sort.SliceStable(mp.MatchedTests, func(i, j int) bool {
			a, c := mp.MatchedTests[i], mp.MatchedTests[j]
			if a.Confidence != c.Confidence {
				return a.Confidence > c.Confidence
			}
			return a.EDICode < c.EDICode
		})
		if len(mp.MatchedTests) == 0 {
			out.Summary.UnmatchedBiomarkers = append(out.Summary.UnmatchedBiomarkers, b.BiomarkerID)
			sum.Inc(ReasonUnmatched)
		}
		out.Summary.Links += len(mp.MatchedTests)
		out.Mappings = append(out.Mappings, mp)
	}
	return out
}
