package biomarker

// Match types, strongest first.
const (
	MatchLOINC      = "loinc_code"
	MatchSNOMEDPre  = "snomed_code_pre"
	MatchSNOMEDPost = "snomed_code_post"
)

// Confidences attached to each match type.
var Confidence = map[string]float64{
	MatchLOINC:      0.98,
	MatchSNOMEDPre:  0.95,
	MatchSNOMEDPost: 0.93,
}

// GenericSNOMED holds procedure-level SNOMED CT concepts that say how a
// test is run, not what it measures. They never justify a match.
var GenericSNOMED = map[string]bool{
	"117617002": true, // immunohistochemistry procedure
	"108252007": true, // laboratory procedure
	"15220000":  true, // laboratory test
	"386053000": true, // evaluation procedure
	"127789004": true, // laboratory procedure categorized by method
}

// Biomarker types.
const (
	TypeGene     = "gene"
	TypeProtein  = "protein"
	TypeReceptor = "receptor"
	TypePathway  = "pathway"
	TypeFusion   = "fusion"
)

// TargetDrug is a drug named as acting on a biomarker.
type TargetDrug struct {
	Name      string `json:"name"`
	ATCCode   string `json:"atc_code,omitempty"`
	Mechanism string `json:"mechanism,omitempty"`
}

// Target is a TargetDrug resolved against the anticancer master.
type Target struct {
	ATCCode   string `json:"atc_code"`
	Name      string `json:"name"`
	Mechanism string `json:"mechanism,omitempty"`
}

// Biomarker is one entry of the pre-extracted biomarker list, enriched with
// its frozen code lists and resolved targets on output.
type Biomarker struct {
	BiomarkerID string       `json:"biomarker_id"`
	NameEn      string       `json:"name_en"`
	NameKo      string       `json:"name_ko"`
	Type        string       `json:"type"`
	CancerTypes []string     `json:"cancer_types"`
	KCDCodes    []string     `json:"kcd_codes"`
	LOINCCodes  []string     `json:"loinc_codes"`
	SNOMEDCodes []string     `json:"snomed_codes"`
	TargetDrugs []TargetDrug `json:"target_drugs,omitempty"`
	Targets     []Target     `json:"targets,omitempty"`
	DrugCount   int          `json:"drug_count"`
}

// Test is a deduplicated crosswalk row keyed by EDI code.
type Test struct {
	TestID        string `json:"test_id"`
	EDICode       string `json:"edi_code"`
	NameKo        string `json:"name_ko"`
	NameEn        string `json:"name_en"`
	Category      string `json:"category"`
	LOINCCode     string `json:"loinc_code,omitempty"`
	SNOMEDPre     string `json:"snomed_ct_id,omitempty"`
	SNOMEDPost    string `json:"snomed_post_id,omitempty"`
	BiomarkerName string `json:"biomarker_name"`
}

// CodeSet is the frozen code list for one biomarker.
type CodeSet struct {
	BiomarkerID string   `json:"biomarker_id"`
	Name        string   `json:"name"`
	Keywords    []string `json:"keywords,omitempty"`
	LOINCCodes  []string `json:"loinc_codes"`
	SNOMEDCodes []string `json:"snomed_codes"`
}

// MatchedTest is one biomarker -> test link.
type MatchedTest struct {
	TestID      string  `json:"test_id"`
	EDICode     string  `json:"edi_code"`
	NameKo      string  `json:"name_ko"`
	Category    string  `json:"category"`
	MatchType   string  `json:"match_type"`
	Confidence  float64 `json:"confidence"`
	MatchedCode string  `json:"matched_code"`
}

// Mapping lists the tests matched for one biomarker.
type Mapping struct {
	BiomarkerID   string        `json:"biomarker_id"`
	BiomarkerName string        `json:"biomarker_name"`
	MatchedTests  []MatchedTest `json:"matched_tests"`
}

// MappingSummary reports totals and the biomarkers left without tests.
type MappingSummary struct {
	Biomarkers          int            `json:"biomarkers"`
	Tests               int            `json:"tests"`
	Links               int            `json:"links"`
	ByMatchType         map[string]int `json:"by_match_type"`
	UnmatchedBiomarkers []string       `json:"unmatched_biomarkers"`
}

// MappingFile is biomarker_test_mappings.json.
type MappingFile struct {
	Mappings []Mapping      `json:"mappings"`
	Summary  MappingSummary `json:"summary"`
}

// Output file names.
const (
	MappingsFile   = "biomarker_test_mappings.json"
	CodeTableFile  = "biomarker_code_mapping.json"
	BiomarkersFile = "biomarkers.json"
	TestsFile      = "tests.json"
)

// Summary counters.
const (
	ReasonCrosswalkRows    = "CROSSWALK_ROWS"
	ReasonNoEDICode        = "NO_EDI_CODE"
	ReasonDuplicateEDI     = "DUPLICATE_EDI_CODE"
	ReasonBlacklistedCode  = "BLACKLISTED_SNOMED"
	ReasonUnmatched        = "UNMATCHED_BIOMARKER"
	ReasonTargetResolved   = "TARGET_RESOLVED"
	ReasonTargetUnresolved = "TARGET_UNRESOLVED"
	ReasonNoCodeSet        = "NO_CODE_SET"
)
