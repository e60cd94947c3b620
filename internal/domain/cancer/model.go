package cancer

// Canonical cancer tags.
const (
	TagMajor     = "major"
	TagAdult     = "adult"
	TagPediatric = "pediatric"
)

// tagOrder fixes the output order of tags.
var tagOrder = []string{TagMajor, TagAdult, TagPediatric}

var tagAliases = map[string]string{
	"주요암":       TagMajor,
	"성인암":       TagAdult,
	"소아청소년암":    TagPediatric,
	"소아암":       TagPediatric,
	"major":     TagMajor,
	"adult":     TagAdult,
	"pediatric": TagPediatric,
}

// Page is one parsed NCC cancer information page.
type Page struct {
	CancerSeq int      `json:"cancer_seq"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags"`
	Content   string   `json:"content,omitempty"`
}

// Cancer is one row of cancers.json.
type Cancer struct {
	CancerSeq int      `json:"cancer_seq"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags"`
	KCDCodes  []string `json:"kcd_codes"`
}

// Mapping is one reviewed cancer -> KCD row.
type Mapping struct {
	CancerSeq     int    `json:"cancer_seq"`
	CancerName    string `json:"cancer_name"`
	KCDCode       string `json:"kcd_code"`
	MappingMethod string `json:"mapping_method"`
}

// MethodManual marks mappings taken from the reviewed CSV.
const MethodManual = "manual"

// MethodKeywordDraft marks rows in the reviewer draft.
const MethodKeywordDraft = "keyword_draft"

// Output file names.
const (
	CancersFile = "cancers.json"
	MappingFile = "cancer_kcd_mapping.json"
)

// Summary counters.
const (
	ReasonPages            = "PAGES"
	ReasonDuplicateSeq     = "DUPLICATE_CANCER_SEQ"
	ReasonMissingSeq       = "MISSING_CANCER_SEQ"
	ReasonUnknownTag       = "UNKNOWN_TAG"
	ReasonMappingRows      = "MAPPING_ROWS"
	ReasonMappingKept      = "MAPPING_KEPT"
	ReasonUnknownCancerSeq = "UNKNOWN_CANCER_SEQ"
	ReasonUnknownKCD       = "UNKNOWN_KCD"
	ReasonInvalidKCD       = "INVALID_KCD"
	ReasonDuplicateMapping = "DUPLICATE_MAPPING"
	ReasonDraftRows        = "DRAFT_ROWS"
)
