package biomarker

import (
	"strings"

	"github.com/medkg/medkg/internal/platform/pipeline"
	"github.com/medkg/medkg/internal/platform/tabular"
)

// CrosswalkRow is one raw row of the EDI <-> SNOMED CT crosswalk.
type CrosswalkRow struct {
	NameKo     string
	NameEn     string
	EDICode    string
	LOINCCode  string
	SNOMEDPre  string
	SNOMEDPost string
	Category   string
}

// ReadCrosswalk loads the crosswalk table. The EDI code and both name
// columns are required; code columns may be absent.
func ReadCrosswalk(path string) ([]CrosswalkRow, error) {
	t, err := tabular.ReadFile(path, tabular.Options{})
	if err != nil {
		return nil, err
	}
	return CrosswalkFromTable(t)
}

// CrosswalkFromTable maps table columns onto crosswalk rows.
func CrosswalkFromTable(t *tabular.Table) ([]CrosswalkRow, error) {
	koIdx, err := t.Require("korean term", "한글명", "한글명칭", "name_ko", "korean")
	if err != nil {
		return nil, err
	}
	enIdx, err := t.Require("english term", "영문명", "영문명칭", "name_en", "english")
	if err != nil {
		return nil, err
	}
	ediIdx, err := t.Require("edi code", "EDI코드", "edi_code", "수가코드")
	if err != nil {
		return nil, err
	}
	loincIdx := t.Column("loinc id", "loinc", "loinc_code", "LOINC코드")
	preIdx := t.Column("pre-coordinated snomed", "snomed pre", "snomed_pre", "snomed ct id", "snomed_ct_id", "pre-coordinated")
	postIdx := t.Column("post-coordinated snomed", "snomed post", "snomed_post", "post-coordinated")
	catIdx := t.Column("category", "분류", "검사분류")

	rows := make([]CrosswalkRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		rows = append(rows, CrosswalkRow{
			NameKo:     tabular.Cell(r, koIdx),
			NameEn:     tabular.Cell(r, enIdx),
			EDICode:    strings.ToUpper(tabular.Cell(r, ediIdx)),
			LOINCCode:  tabular.Cell(r, loincIdx),
			SNOMEDPre:  cleanSCTID(tabular.Cell(r, preIdx)),
			SNOMEDPost: cleanSCTID(tabular.Cell(r, postIdx)),
			Category:   tabular.Cell(r, catIdx),
		})
	}
	return rows, nil
}

// BuildTests deduplicates crosswalk rows by EDI code; the first row wins.
func BuildTests(rows []CrosswalkRow, sum *pipeline.Summary) []Test {
	seen := make(map[string]bool, len(rows))
	tests := make([]Test, 0, len(rows))
	for _, r := range rows {
		sum.Inc(ReasonCrosswalkRows)
		if r.EDICode == "" {
			sum.Inc(ReasonNoEDICode)
			continue
		}
		if seen[r.EDICode] {
			sum.Inc(ReasonDuplicateEDI)
			continue
		}
		seen[r.EDICode] = true
		category := r.Category
		if category == "" {
			category = CategoryFor(r.NameKo, r.NameEn)
		}
		tests = append(tests, Test{
			TestID:        TestID(r.EDICode),
			EDICode:       r.EDICode,
			NameKo:        r.NameKo,
			NameEn:        r.NameEn,
			Category:      category,
			LOINCCode:     r.LOINCCode,
			SNOMEDPre:     r.SNOMEDPre,
			SNOMEDPost:    r.SNOMEDPost,
			BiomarkerName: AnalyteName(r.NameEn),
		})
	}
	return tests
}

// TestID is the stable test identifier derived from an EDI code.
func TestID(edi string) string {
	return "TEST_" + edi
}

// AnalyteName takes the English term up to the first bracket, parenthesis
// or comma: "HER2 [IHC], tissue" -> "HER2".
func AnalyteName(nameEn string) string {
	s := nameEn
	if i := strings.IndexAny(s, "[(,"); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"molecular", []string{"유전자", "염기서열", "pcr", "ngs", "fish", "sequencing", "mutation", "gene"}},
	{"immunohistochemistry", []string{"면역조직화학", "ihc", "immunohisto"}},
	{"pathology", []string{"병리", "조직", "cytology", "biopsy"}},
}

// CategoryFor classifies a test by its method words when the crosswalk
// carries no category column.
func CategoryFor(nameKo, nameEn string) string {
	text := strings.ToLower(nameKo + " " + nameEn)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(text, w) {
				return c.category
			}
		}
	}
	return "laboratory"
}

// cleanSCTID strips the ".0" suffix spreadsheets add to numeric cells.
func cleanSCTID(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".0")
}
