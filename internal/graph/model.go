package graph

import "fmt"

// Node labels.
const (
	LabelDrug      = "Drug"
	LabelDisease   = "Disease"
	LabelCancer    = "Cancer"
	LabelBiomarker = "Biomarker"
	LabelTest      = "Test"
	LabelProcedure = "Procedure"
	LabelRegimen   = "Regimen"
)

// Relationship types.
const (
	RelHasBiomarker = "HAS_BIOMARKER"
	RelTestedBy     = "TESTED_BY"
	RelTargets      = "TARGETS"
	RelTreatedBy    = "TREATED_BY"
	RelIncludes     = "INCLUDES"
	RelCancerType   = "CANCER_TYPE"
)

// Labels lists every node label in load order.
var Labels = []string{
	LabelDisease, LabelProcedure, LabelCancer, LabelDrug,
	LabelBiomarker, LabelTest, LabelRegimen,
}

// RelTypes lists every relationship type in load order.
var RelTypes = []string{
	RelCancerType, RelHasBiomarker, RelTestedBy, RelTargets, RelTreatedBy, RelIncludes,
}

// KeyProps is the identifying property of each label.
var KeyProps = map[string]string{
	LabelDrug:      "atc_code",
	LabelDisease:   "kcd_code",
	LabelCancer:    "cancer_seq",
	LabelBiomarker: "biomarker_id",
	LabelTest:      "edi_code",
	LabelProcedure: "kdrg_code_kr",
	LabelRegimen:   "regimen_id",
}

// Constraint is a uniqueness constraint on one label property.
type Constraint struct {
	Label    string
	Property string
}

// Name is the constraint name used by stores that name constraints.
func (c Constraint) Name() string {
	return fmt.Sprintf("%s_%s_unique", c.Label, c.Property)
}

// Constraints are declared before any write. Procedure carries a second
// key that is unique when present.
var Constraints = []Constraint{
	{LabelDrug, "atc_code"},
	{LabelDisease, "kcd_code"},
	{LabelCancer, "cancer_seq"},
	{LabelBiomarker, "biomarker_id"},
	{LabelTest, "edi_code"},
	{LabelProcedure, "kdrg_code_kr"},
	{LabelProcedure, "kdrg_code_en"},
	{LabelRegimen, "regimen_id"},
}

// Endpoints are the labels a relationship type connects.
var Endpoints = map[string][2]string{
	RelHasBiomarker: {LabelDisease, LabelBiomarker},
	RelTestedBy:     {LabelBiomarker, LabelTest},
	RelTargets:      {LabelDrug, LabelBiomarker},
	RelTreatedBy:    {LabelDisease, LabelRegimen},
	RelIncludes:     {LabelRegimen, LabelDrug},
	RelCancerType:   {LabelDisease, LabelCancer},
}

// Node is one entity to upsert. Props holds the key property too.
type Node struct {
	Key   any
	Props map[string]any
}

// Edge is one relationship to upsert, identified by its endpoints and type.
type Edge struct {
	From  any
	To    any
	Props map[string]any
}

// keyString is the identity used by stores that key on text.
func keyString(k any) string {
	return fmt.Sprint(k)
}

// Counts maps a label or relationship type to a count.
type Counts map[string]int
