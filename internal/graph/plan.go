package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medkg/medkg/internal/domain/biomarker"
	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Summary counters.
const (
	ReasonDrugMerged         = "DRUG_RECORDS_MERGED"
	ReasonDrugNoATC          = "DRUG_NO_ATC"
	ReasonNonAnticancerATC   = "NON_ANTICANCER_ATC"
	ReasonInvalidKCD         = "INVALID_KCD_KEY"
	ReasonFKGapKCD           = "FK_GAP_KCD"
	ReasonFKGapCancer        = "FK_GAP_CANCER"
	ReasonFKGapBiomarker     = "FK_GAP_BIOMARKER"
	ReasonFKGapTest          = "FK_GAP_TEST"
	ReasonFKGapDrug          = "FK_GAP_DRUG"
	ReasonCancerTypeConflict = "CANCER_TYPE_CONFLICT"
	ReasonRegimenDupDrug     = "REGIMEN_DUPLICATE_DRUG"
	ReasonRegimenDowngraded  = "REGIMEN_HAS_ALL_DRUGS_CLEARED"
	ReasonRegimenUnresolved  = "REGIMEN_UNRESOLVED_DRUG"
)

// EvidenceBiomarkerList marks HAS_BIOMARKER edges taken from the kcd_codes
// of the biomarker list.
const EvidenceBiomarkerList = "biomarker_list"

// Step is one unit of the load: the nodes of one label or the edges of one
// relationship type. Consecutive steps sharing a Group are committed
// together.
type Step struct {
	Label string
	Rel   string
	Group string
	Nodes []Node
	Edges []Edge
}

// GroupRegimens ties Regimen nodes to their TREATED_BY and INCLUDES edges.
const GroupRegimens = "regimens"

// Name is the label or relationship type.
func (s Step) Name() string {
	if s.Rel != "" {
		return s.Rel
	}
	return s.Label
}

// Size is the number of records the step writes.
func (s Step) Size() int {
	return len(s.Nodes) + len(s.Edges)
}

// Plan is the ordered list of steps derived from the bridges.
type Plan struct {
	Steps []Step
}

// Expected returns planned node and edge counts.
func (p *Plan) Expected() (nodes, edges Counts) {
	nodes, edges = make(Counts), make(Counts)
	for _, s := range p.Steps {
		if s.Rel != "" {
			edges[s.Rel] += len(s.Edges)
		} else {
			nodes[s.Label] += len(s.Nodes)
		}
	}
	return nodes, edges
}

// edgeSet collects edges of one type, keeping the first of duplicates.
type edgeSet struct {
	seen  map[[2]string]bool
	edges []Edge
}

func newEdgeSet() *edgeSet { return &edgeSet{seen: make(map[[2]string]bool)} }

func (s *edgeSet) add(from, to any, props map[string]any) {
	k := [2]string{keyString(from), keyString(to)}
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.edges = append(s.edges, Edge{From: from, To: to, Props: props})
}

// planner carries the key sets later steps resolve foreign keys against.
type planner struct {
	b        *Bridges
	sum      *pipeline.Summary
	plan     *Plan
	kcd      disease.Lookup
	seqs     map[int]bool
	atcs     map[string]bool
	markers  map[string]bool
	edis     map[string]bool
	provided map[string]bool
	group    string
}

// BuildPlan turns bridges into the ordered load plan. It is pure: nothing
// is written. A bridge whose foreign keys point at a bridge that is absent
// fails with ErrLoadOrder; duplicate keys within a bridge fail with
// ErrConstraintViolation.
func BuildPlan(b *Bridges, sum *pipeline.Summary) (*Plan, error) {
	p := &planner{b: b, sum: sum, plan: &Plan{}, provided: make(map[string]bool)}
	for _, f := range []func() error{
		p.diseases, p.procedures, p.cancers, p.drugList, p.cancerTypes,
		p.biomarkers, p.hasBiomarker, p.testList, p.testedBy, p.targets,
		p.regimens,
	} {
		if err := f(); err != nil {
			return nil, err
		}
	}
	for _, s := range p.plan.Steps {
		if s.Rel != "" {
			sum.Set("EDGES_"+s.Rel, len(s.Edges))
		} else {
			sum.Set("NODES_"+strings.ToUpper(s.Label), len(s.Nodes))
		}
	}
	return p.plan, nil
}

func (p *planner) addNodes(label string, nodes []Node) {
	p.provided[label] = true
	p.plan.Steps = append(p.plan.Steps, Step{Label: label, Group: p.group, Nodes: nodes})
}

func (p *planner) addEdges(rel string, s *edgeSet) {
	p.plan.Steps = append(p.plan.Steps, Step{Rel: rel, Group: p.group, Edges: s.edges})
}

// require fails when a bridge feeding rel is present but an endpoint's
// bridge is not.
func (p *planner) require(rel, source string) error {
	for _, l := range Endpoints[rel] {
		if !p.provided[l] {
			return fmt.Errorf("%w: %s from %s needs %s nodes, whose bridge is absent",
				pipeline.ErrLoadOrder, rel, source, l)
		}
	}
	return nil
}

func duplicate(label string, key any) error {
	return fmt.Errorf("%w: duplicate %s key %v in bridge", pipeline.ErrConstraintViolation, label, key)
}

func setStr(props map[string]any, k, v string) {
	if v != "" {
		props[k] = v
	}
}

func (p *planner) diseases() error {
	if p.b.Diseases == nil {
		return nil
	}
	nodes := make([]Node, 0, len(p.b.Diseases))
	valid := make([]disease.Disease, 0, len(p.b.Diseases))
	seen := make(map[string]bool, len(p.b.Diseases))
	for _, d := range p.b.Diseases {
		if disease.IsRange(d.Code) || !disease.Valid(d.Code) {
			p.sum.Inc(ReasonInvalidKCD)
			continue
		}
		if seen[d.Code] {
			return duplicate(LabelDisease, d.Code)
		}
		seen[d.Code] = true
		valid = append(valid, d)
		props := map[string]any{
			"is_lowest": d.IsLowest,
			"is_cancer": disease.IsCancer(d.Code),
		}
		setStr(props, "name_kr", d.NameKr)
		setStr(props, "name_en", d.NameEn)
		setStr(props, "chapter", d.Chapter)
		nodes = append(nodes, Node{Key: d.Code, Props: props})
	}
	p.kcd = disease.NewLookup(valid)
	p.addNodes(LabelDisease, nodes)
	return nil
}

func (p *planner) procedures() error {
	if p.b.Procedures == nil {
		return nil
	}
	nodes := make([]Node, 0, len(p.b.Procedures))
	seenKr := make(map[string]bool)
	seenEn := make(map[string]bool)
	for _, pr := range p.b.Procedures {
		if seenKr[pr.KDRGCodeKr] {
			return duplicate(LabelProcedure, pr.KDRGCodeKr)
		}
		seenKr[pr.KDRGCodeKr] = true
		props := map[string]any{"name": pr.Name}
		if pr.KDRGCodeEn != "" {
			if seenEn[pr.KDRGCodeEn] {
				return duplicate(LabelProcedure, pr.KDRGCodeEn)
			}
			seenEn[pr.KDRGCodeEn] = true
			props["kdrg_code_en"] = pr.KDRGCodeEn
		}
		nodes = append(nodes, Node{Key: pr.KDRGCodeKr, Props: props})
	}
	p.addNodes(LabelProcedure, nodes)
	return nil
}

func (p *planner) cancers() error {
	if p.b.Cancers == nil {
		return nil
	}
	nodes := make([]Node, 0, len(p.b.Cancers))
	p.seqs = make(map[int]bool, len(p.b.Cancers))
	for _, c := range p.b.Cancers {
		if p.seqs[c.CancerSeq] {
			return duplicate(LabelCancer, c.CancerSeq)
		}
		p.seqs[c.CancerSeq] = true
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		nodes = append(nodes, Node{Key: c.CancerSeq, Props: map[string]any{"name": c.Name, "tags": tags}})
	}
	p.addNodes(LabelCancer, nodes)
	return nil
}

// drugList merges ingredient records that share an ATC code: scalar fields
// come from the first record, list fields are unioned.
func (p *planner) drugList() error {
	if p.b.Drugs == nil {
		return nil
	}
	type merged struct {
		first    drug.Ingredient
		brands   map[string]bool
		products map[string]bool
		makers   map[string]bool
	}
	byATC := make(map[string]*merged)
	var order []string
	for _, ing := range p.b.Drugs {
		atc := strings.ToUpper(strings.TrimSpace(ing.ATCCode))
		switch {
		case atc == "":
			p.sum.Inc(ReasonDrugNoATC)
			continue
		case !drug.IsAnticancerATC(atc):
			p.sum.Inc(ReasonNonAnticancerATC)
			continue
		}
		m, ok := byATC[atc]
		if !ok {
			m = &merged{first: ing, brands: map[string]bool{}, products: map[string]bool{}, makers: map[string]bool{}}
			byATC[atc] = m
			order = append(order, atc)
		} else {
			p.sum.Inc(ReasonDrugMerged)
		}
		addAll(m.brands, ing.BrandNames)
		addAll(m.products, ing.ProductCodes)
		addAll(m.makers, ing.Manufacturers)
	}
	sort.Strings(order)

	p.atcs = make(map[string]bool, len(order))
	nodes := make([]Node, 0, len(order))
	for _, atc := range order {
		m := byATC[atc]
		ing := m.first
		p.atcs[atc] = true
		props := map[string]any{
			"ingredient_ko":       ing.IngredientKo,
			"ingredient_base_ko":  ing.IngredientBaseKo,
			"ingredient_base_en":  ing.IngredientBaseEn,
			"mechanism_of_action": ing.MechanismOfAction,
			"is_recombinant":      ing.IsRecombinant,
			"atc_level3":          ing.ATCLevel3,
			"brand_names":         sortedKeys(m.brands),
			"product_codes":       sortedKeys(m.products),
			"manufacturers":       sortedKeys(m.makers),
			"salt_form":           nil,
		}
		if ing.SaltForm != nil {
			props["salt_form"] = *ing.SaltForm
		}
		nodes = append(nodes, Node{Key: atc, Props: props})
	}
	p.addNodes(LabelDrug, nodes)
	return nil
}

// cancerTypes attaches diseases to cancers from the reviewed mapping. A
// disease keeps the first cancer it is mapped to.
func (p *planner) cancerTypes() error {
	if len(p.b.CancerKCD) == 0 {
		return nil
	}
	if err := p.require(RelCancerType, "cancer_kcd_mapping"); err != nil {
		return err
	}
	edges := newEdgeSet()
	owner := make(map[string]int)
	for _, m := range p.b.CancerKCD {
		if !p.seqs[m.CancerSeq] {
			p.sum.Inc(ReasonFKGapCancer)
			continue
		}
		codes := p.kcd.Expand(m.KCDCode)
		if len(codes) == 0 {
			p.sum.Inc(ReasonFKGapKCD)
			continue
		}
		method := m.MappingMethod
		if method == "" {
			method = "manual"
		}
		for _, code := range codes {
			if seq, ok := owner[code]; ok {
				if seq != m.CancerSeq {
					p.sum.Inc(ReasonCancerTypeConflict)
				}
				continue
			}
			owner[code] = m.CancerSeq
			edges.add(code, m.CancerSeq, map[string]any{"mapping_method": method})
		}
	}
	p.addEdges(RelCancerType, edges)
	return nil
}

// targetCount is the drug_count of a biomarker: its resolved targets that
// exist as Drug nodes.
func (p *planner) targetCount(bm biomarker.Biomarker) int {
	seen := make(map[string]bool)
	for _, t := range bm.Targets {
		if p.atcs[t.ATCCode] {
			seen[t.ATCCode] = true
		}
	}
	return len(seen)
}

func (p *planner) biomarkers() error {
	if p.b.Biomarkers == nil {
		return nil
	}
	nodes := make([]Node, 0, len(p.b.Biomarkers))
	p.markers = make(map[string]bool, len(p.b.Biomarkers))
	for _, bm := range p.b.Biomarkers {
		if p.markers[bm.BiomarkerID] {
			return duplicate(LabelBiomarker, bm.BiomarkerID)
		}
		p.markers[bm.BiomarkerID] = true
		drugCount := bm.DrugCount
		if p.atcs != nil {
			drugCount = p.targetCount(bm)
		}
		props := map[string]any{
			"name_en":      bm.NameEn,
			"name_ko":      bm.NameKo,
			"type":         bm.Type,
			"cancer_types": nonNil(bm.CancerTypes),
			"kcd_codes":    nonNil(bm.KCDCodes),
			"loinc_codes":  nonNil(bm.LOINCCodes),
			"snomed_codes": nonNil(bm.SNOMEDCodes),
			"drug_count":   drugCount,
		}
		nodes = append(nodes, Node{Key: bm.BiomarkerID, Props: props})
	}
	p.addNodes(LabelBiomarker, nodes)
	return nil
}

func (p *planner) hasBiomarker() error {
	var found bool
	for _, bm := range p.b.Biomarkers {
		if len(bm.KCDCodes) > 0 {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	if err := p.require(RelHasBiomarker, "biomarkers"); err != nil {
		return err
	}
	edges := newEdgeSet()
	for _, bm := range p.b.Biomarkers {
		for _, raw := range bm.KCDCodes {
			codes := p.kcd.Expand(raw)
			if len(codes) == 0 {
				p.sum.Inc(ReasonFKGapKCD)
				continue
			}
			for _, code := range codes {
				edges.add(code, bm.BiomarkerID, map[string]any{"evidence_source": EvidenceBiomarkerList})
			}
		}
	}
	p.addEdges(RelHasBiomarker, edges)
	return nil
}

func (p *planner) testList() error {
	if p.b.Tests == nil {
		return nil
	}
	nodes := make([]Node, 0, len(p.b.Tests))
	p.edis = make(map[string]bool, len(p.b.Tests))
	for _, t := range p.b.Tests {
		if p.edis[t.EDICode] {
			return duplicate(LabelTest, t.EDICode)
		}
		p.edis[t.EDICode] = true
		props := map[string]any{
			"test_id":        t.TestID,
			"name_ko":        t.NameKo,
			"name_en":        t.NameEn,
			"category":       t.Category,
			"biomarker_name": t.BiomarkerName,
		}
		setStr(props, "loinc_code", t.LOINCCode)
		setStr(props, "snomed_ct_id", t.SNOMEDPre)
		setStr(props, "snomed_post_id", t.SNOMEDPost)
		nodes = append(nodes, Node{Key: t.EDICode, Props: props})
	}
	p.addNodes(LabelTest, nodes)
	return nil
}

// ValidateMatch checks a TESTED_BY edge against the match-type table.
func ValidateMatch(mt biomarker.MatchedTest) error {
	want, ok := biomarker.Confidence[mt.MatchType]
	if !ok {
		return fmt.Errorf("%w: TESTED_BY %s has unknown match_type %q",
			pipeline.ErrConstraintViolation, mt.EDICode, mt.MatchType)
	}
	if mt.Confidence != want {
		return fmt.Errorf("%w: TESTED_BY %s %s confidence %v, want %v",
			pipeline.ErrConstraintViolation, mt.EDICode, mt.MatchType, mt.Confidence, want)
	}
	return nil
}

func (p *planner) testedBy() error {
	if len(p.b.Mappings) == 0 {
		return nil
	}
	if err := p.require(RelTestedBy, "biomarker_test_mappings"); err != nil {
		return err
	}
	edges := newEdgeSet()
	for _, m := range p.b.Mappings {
		if !p.markers[m.BiomarkerID] {
			p.sum.Add(ReasonFKGapBiomarker, len(m.MatchedTests))
			continue
		}
		for _, mt := range m.MatchedTests {
			if err := ValidateMatch(mt); err != nil {
				return err
			}
			if !p.edis[mt.EDICode] {
				p.sum.Inc(ReasonFKGapTest)
				continue
			}
			edges.add(m.BiomarkerID, mt.EDICode, map[string]any{
				"match_type":   mt.MatchType,
				"confidence":   mt.Confidence,
				"matched_code": mt.MatchedCode,
			})
		}
	}
	p.addEdges(RelTestedBy, edges)
	return nil
}

func (p *planner) targets() error {
	var found bool
	for _, bm := range p.b.Biomarkers {
		if len(bm.Targets) > 0 {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	if err := p.require(RelTargets, "biomarkers"); err != nil {
		return err
	}
	edges := newEdgeSet()
	for _, bm := range p.b.Biomarkers {
		for _, t := range bm.Targets {
			if !p.atcs[t.ATCCode] {
				p.sum.Inc(ReasonFKGapDrug)
				continue
			}
			props := map[string]any{}
			setStr(props, "mechanism", t.Mechanism)
			edges.add(t.ATCCode, bm.BiomarkerID, props)
		}
	}
	p.addEdges(RelTargets, edges)
	return nil
}

func (p *planner) regimens() error {
	if p.b.Regimens == nil {
		return nil
	}
	if len(p.b.Regimens) > 0 {
		if err := p.require(RelIncludes, "regimens"); err != nil {
			return err
		}
		if err := p.require(RelTreatedBy, "regimens"); err != nil {
			return err
		}
	}
	nodes := make([]Node, 0, len(p.b.Regimens))
	includes := newEdgeSet()
	treated := newEdgeSet()
	seen := make(map[string]bool, len(p.b.Regimens))
	for _, r := range p.b.Regimens {
		if seen[r.RegimenID] {
			return duplicate(LabelRegimen, r.RegimenID)
		}
		seen[r.RegimenID] = true

		// drug_atc_codes and drug_names stay parallel to the declared list;
		// an unresolved drug contributes an empty ATC code and no edge.
		hasAll := r.HasAllDrugs
		var atcs, names []string
		inRegimen := make(map[string]bool, len(r.Drugs))
		for i, d := range r.Drugs {
			order := d.Order
			if order <= 0 {
				order = i + 1
			}
			if d.ATCCode == "" {
				p.sum.Inc(ReasonRegimenUnresolved)
				hasAll = false
				atcs = append(atcs, "")
				names = append(names, d.Name)
				continue
			}
			if inRegimen[d.ATCCode] {
				p.sum.Inc(ReasonRegimenDupDrug)
				continue
			}
			inRegimen[d.ATCCode] = true
			atcs = append(atcs, d.ATCCode)
			names = append(names, d.Name)
			if !p.atcs[d.ATCCode] {
				p.sum.Inc(ReasonFKGapDrug)
				hasAll = false
				continue
			}
			includes.add(r.RegimenID, d.ATCCode, map[string]any{
				"order":                order,
				"drug_name_as_written": d.Name,
			})
		}
		if r.HasAllDrugs && !hasAll {
			p.sum.Inc(ReasonRegimenDowngraded)
		}

		for _, raw := range r.KCDCodes {
			codes := p.kcd.Expand(raw)
			if len(codes) == 0 {
				p.sum.Inc(ReasonFKGapKCD)
				continue
			}
			for _, code := range codes {
				props := map[string]any{}
				setStr(props, "line", r.Line)
				setStr(props, "purpose", r.Purpose)
				setStr(props, "announcement_no", r.AnnouncementNo)
				setStr(props, "announcement_date", r.AnnouncementDate)
				treated.add(code, r.RegimenID, props)
			}
		}

		props := map[string]any{
			"cancer_name":    r.CancerName,
			"regimen_type":   r.RegimenType,
			"kcd_codes":      nonNil(r.KCDCodes),
			"has_kcd":        r.HasKCD,
			"has_all_drugs":  hasAll,
			"drug_atc_codes": nonNil(atcs),
			"drug_names":     nonNil(names),
		}
		setStr(props, "line", r.Line)
		setStr(props, "purpose", r.Purpose)
		setStr(props, "action", r.Action)
		setStr(props, "announcement_no", r.AnnouncementNo)
		setStr(props, "announcement_date", r.AnnouncementDate)
		nodes = append(nodes, Node{Key: r.RegimenID, Props: props})
	}
	p.group = GroupRegimens
	p.addNodes(LabelRegimen, nodes)
	p.addEdges(RelTreatedBy, treated)
	p.addEdges(RelIncludes, includes)
	p.group = ""
	return nil
}

func addAll(set map[string]bool, vs []string) {
	for _, v := range vs {
		if v != "" {
			set[v] = true
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
