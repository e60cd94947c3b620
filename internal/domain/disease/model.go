package disease

// Disease is one KCD code as written to diseases.json.
type Disease struct {
	Code     string `json:"code"`
	NameKr   string `json:"name_kr"`
	NameEn   string `json:"name_en"`
	IsLowest bool   `json:"is_lowest"`
	IsCancer bool   `json:"is_cancer"`
	Chapter  string `json:"chapter"`
}

// Output file names.
const (
	DiseasesFile = "diseases.json"
	LookupFile   = "kcd_lookup.json"
)

// KCDHeaderRow is where the published KCD master keeps its column names.
const KCDHeaderRow = 3

// Summary counters.
const (
	ReasonRowsRead      = "ROWS_READ"
	ReasonRangeCode     = "RANGE_CODE"
	ReasonInvalidCode   = "INVALID_CODE"
	ReasonDuplicateCode = "DUPLICATE_CODE"
	ReasonDotInserted   = "DOT_INSERTED"
	ReasonDiseases      = "DISEASES"
	ReasonCancers       = "CANCERS"
	ReasonLowestDerived = "IS_LOWEST_DERIVED"
)
