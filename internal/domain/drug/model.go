package drug

// Product is one row of the drug price master.
type Product struct {
	ATCCode        string `json:"atc_code"`
	ATCName        string `json:"atc_name"`
	GenericName    string `json:"generic_name"`
	ProductName    string `json:"product_name"`
	Manufacturer   string `json:"manufacturer"`
	ProductCode    string `json:"product_code"`
	IngredientCode string `json:"ingredient_code"`
}

// ParsedName is the decomposition of a product name. Nil fields were not
// recoverable from the name.
type ParsedName struct {
	BrandKo          *string `json:"brand_ko"`
	BrandBase        *string `json:"brand_base"`
	IngredientKo     *string `json:"ingredient_ko"`
	IngredientBaseKo *string `json:"ingredient_base_ko"`
	SaltForm         *string `json:"salt_form"`
}

// Ingredient is one record of the anticancer_master bridge: every product
// sharing an ingredient, aggregated.
type Ingredient struct {
	IngredientKo      string   `json:"ingredient_ko"`
	IngredientBaseKo  string   `json:"ingredient_base_ko"`
	IngredientEn      string   `json:"ingredient_en,omitempty"`
	IngredientBaseEn  string   `json:"ingredient_base_en"`
	SaltForm          *string  `json:"salt_form"`
	ATCCode           string   `json:"atc_code"`
	ATCCodes          []string `json:"atc_codes"`
	ATCLevel3         string   `json:"atc_level3"`
	ATCName           string   `json:"atc_name,omitempty"`
	MechanismOfAction string   `json:"mechanism_of_action"`
	IsRecombinant     bool     `json:"is_recombinant"`
	BrandNames        []string `json:"brand_names"`
	BrandNamePrimary  string   `json:"brand_name_primary"`
	BrandCount        int      `json:"brand_count"`
	Manufacturers     []string `json:"manufacturers"`
	ProductCodes      []string `json:"product_codes"`
	IngredientCodes   []string `json:"ingredient_codes,omitempty"`
	ProductCount      int      `json:"product_count"`
	// FromProductName marks records whose ingredient could not be parsed
	// and whose key fell back to the product name.
	FromProductName bool `json:"from_product_name,omitempty"`
}

// Reason codes recorded in the drugs run summary.
const (
	ReasonRowsRead             = "ROWS_READ"
	ReasonFilteredOutATC       = "FILTERED_OUT_ATC"
	ReasonKeptATC              = "KEPT_ATC"
	ReasonMalformedProductName = "MALFORMED_PRODUCT_NAME"
	ReasonNoIngredientGroup    = "NO_INGREDIENT_GROUP"
	ReasonIngredientFallback   = "INGREDIENT_FALLBACK_PRODUCT_NAME"
	ReasonSaltDetached         = "SALT_DETACHED"
	ReasonIngredients          = "INGREDIENTS"
	ReasonMultipleATC          = "MULTIPLE_ATC_PER_INGREDIENT"
)

// Bridge file names.
const (
	MasterFile    = "anticancer_master.json"
	MasterCSVFile = "anticancer_master.csv"
)
