package anchor

// Verdict is the gate chain's classification of a candidate pair.
type Verdict string

const (
	VerdictActive         Verdict = "active"
	VerdictPending        Verdict = "pending"
	VerdictDrop           Verdict = "drop"
	VerdictRouteRegimen   Verdict = "route_regimen"
	VerdictRouteBiomarker Verdict = "route_biomarker"
	VerdictRouteDisease   Verdict = "route_disease"
)

// Verdicts lists every verdict in output order.
var Verdicts = []Verdict{
	VerdictActive, VerdictPending, VerdictDrop,
	VerdictRouteRegimen, VerdictRouteBiomarker, VerdictRouteDisease,
}

// Reason codes attached to a decision.
const (
	ReasonRouteRegimen     = "ROUTE_REGIMEN"
	ReasonRouteBiomarker   = "ROUTE_BIOMARKER"
	ReasonRouteDisease     = "ROUTE_DISEASE"
	ReasonEmptyTerm        = "EMPTY_TERM"
	ReasonFormTerm         = "FORM_TERM"
	ReasonFormConditional  = "FORM_TERM_CONDITIONAL"
	ReasonNoIngredientHint = "NO_INGREDIENT_HINT"
	ReasonSuffixMismatch   = "SUFFIX_MISMATCH"
	ReasonPhoneticFail     = "PHONETIC_FAIL"
	ReasonUntranslatable   = "PHONETIC_UNTRANSLATABLE"
	ReasonPassAll          = "PASS_ALL"
	ReasonExceptionPrefix  = "EXCEPTION:"
)

// Candidate is one (en, ko) pair mined upstream.
type Candidate struct {
	EN      string `json:"en" yaml:"en"`
	KO      string `json:"ko" yaml:"ko"`
	Count   int    `json:"count" yaml:"count"`
	Source  string `json:"source,omitempty" yaml:"source,omitempty"`
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Decision is the outcome of running one candidate through the chain.
type Decision struct {
	Candidate Candidate
	EN        string
	KO        string
	Verdict   Verdict
	Reasons   []string
	Score     *float64
}

// Entry is one merged row of drug.yaml.
type Entry struct {
	EN      string   `yaml:"en"`
	KO      string   `yaml:"ko"`
	Count   int      `yaml:"count"`
	Sources []string `yaml:"sources,omitempty"`
	Reasons []string `yaml:"reasons,omitempty"`
	Score   *float64 `yaml:"phonetic_score,omitempty"`
}

// Routed collects pairs handed to other extractors.
type Routed struct {
	Regimen   []Entry `yaml:"regimen"`
	Biomarker []Entry `yaml:"biomarker"`
	Disease   []Entry `yaml:"disease"`
}

// Dictionary is the drug.yaml document.
type Dictionary struct {
	Version      int            `yaml:"version"`
	Romanization string         `yaml:"romanization"`
	Counts       map[string]int `yaml:"counts"`
	Active       []Entry        `yaml:"active"`
	Pending      []Entry        `yaml:"pending"`
	Dropped      []Entry        `yaml:"dropped"`
	Routed       Routed         `yaml:"routed"`
}

// BrandAlias is the brand_alias.yaml document.
type BrandAlias struct {
	BrandToIngredient  map[string][]string `yaml:"brand_to_ingredient"`
	IngredientToBrands map[string][]string `yaml:"ingredient_to_brands"`
}

// Output file names.
const (
	DictionaryFile = "drug.yaml"
	BrandAliasFile = "brand_alias.yaml"
)
