package regimen

// Normalized values.
const (
	TypeCombination = "combination"
	TypeMono        = "mono"

	LineFirst  = "1st"
	LineSecond = "2nd"
	LineThird  = "3rd+"

	PurposePalliative  = "palliative"
	PurposeAdjuvant    = "adjuvant"
	PurposeNeoadjuvant = "neoadjuvant"

	ActionAdded    = "added"
	ActionModified = "modified"
	ActionRemoved  = "removed"
)

// Announcement is one parsed HIRA announcement with the regimens it lists.
type Announcement struct {
	AnnouncementNo   string       `json:"announcement_no"`
	AnnouncementDate string       `json:"announcement_date"`
	Title            string       `json:"title,omitempty"`
	Board            string       `json:"board,omitempty"`
	Regimens         []RawRegimen `json:"regimens"`
}

// RawRegimen is a regimen as extracted from announcement text. Drugs may
// be given as a list or as one "a + b" string.
type RawRegimen struct {
	CancerName string   `json:"cancer_name"`
	CancerSeq  int      `json:"cancer_seq,omitempty"`
	KCDCodes   []string `json:"kcd_codes,omitempty"`
	Drugs      []string `json:"drugs,omitempty"`
	DrugsText  string   `json:"drugs_text,omitempty"`
	Line       string   `json:"line,omitempty"`
	Purpose    string   `json:"purpose,omitempty"`
	Action     string   `json:"action,omitempty"`
	SourceText string   `json:"source_text,omitempty"`
}

// Drug is a regimen constituent in declared order. ATCCode is empty when
// the name did not resolve against the master.
type Drug struct {
	ATCCode string `json:"atc_code"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
}

// Regimen is one row of regimens.json.
type Regimen struct {
	RegimenID        string   `json:"regimen_id"`
	CancerName       string   `json:"cancer_name"`
	RegimenType      string   `json:"regimen_type"`
	Line             string   `json:"line,omitempty"`
	Purpose          string   `json:"purpose,omitempty"`
	Action           string   `json:"action,omitempty"`
	AnnouncementNo   string   `json:"announcement_no"`
	AnnouncementDate string   `json:"announcement_date,omitempty"`
	Drugs            []Drug   `json:"drugs"`
	UnresolvedDrugs  []string `json:"unresolved_drugs,omitempty"`
	KCDCodes         []string `json:"kcd_codes"`
	HasKCD           bool     `json:"has_kcd"`
	HasAllDrugs      bool     `json:"has_all_drugs"`
	SourceText       string   `json:"source_text"`
}

// RegimensFile is the bridge file name.
const RegimensFile = "regimens.json"

// Summary counters.
const (
	ReasonRegimensRead   = "REGIMENS_READ"
	ReasonRegimens       = "REGIMENS"
	ReasonDuplicateID    = "DUPLICATE_REGIMEN_ID"
	ReasonNoDrugs        = "NO_DRUGS"
	ReasonUnresolvedDrug = "UNRESOLVED_DRUG"
	ReasonDuplicateDrug  = "DUPLICATE_DRUG"
	ReasonPartialDrugs   = "PARTIAL_DRUGS"
	ReasonKCDFromCancer  = "KCD_FROM_CANCER_MAPPING"
	ReasonNoKCD          = "NO_KCD"
	ReasonInvalidKCD     = "INVALID_KCD"
	ReasonUnknownLine    = "UNKNOWN_LINE"
	ReasonUnknownPurpose = "UNKNOWN_PURPOSE"
	ReasonUnknownAction  = "UNKNOWN_ACTION"
)
