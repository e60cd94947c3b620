package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkg/medkg/internal/domain/biomarker"
	"github.com/medkg/medkg/internal/domain/cancer"
	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/domain/procedure"
	"github.com/medkg/medkg/internal/domain/regimen"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

func fixture() *Bridges {
	return &Bridges{
		Diseases: []disease.Disease{
			{Code: "C16", NameKr: "위의 악성 신생물", IsCancer: true},
			{Code: "C16.0", NameKr: "분문", IsLowest: true, IsCancer: true},
			{Code: "C16.9", NameKr: "상세불명의 위", IsLowest: true, IsCancer: true},
			{Code: "C50", NameKr: "유방의 악성 신생물", IsCancer: true},
			{Code: "C50.9", NameKr: "상세불명의 유방", IsLowest: true, IsCancer: true},
			{Code: "D05.1", NameKr: "유방의 관상피내암종", IsLowest: true, IsCancer: true},
			{Code: "D50.0", NameKr: "만성 실혈에 의한 철결핍빈혈", IsLowest: true},
			{Code: "I10", NameKr: "본태성 고혈압", IsLowest: true},
		},
		Procedures: []procedure.Procedure{{KDRGCodeKr: "Q2000", KDRGCodeEn: "Q2000E", Name: "위절제술"}},
		Cancers: []cancer.Cancer{
			{CancerSeq: 1, Name: "위암", Tags: []string{"major"}},
			{CancerSeq: 5, Name: "유방암", Tags: []string{"major", "adult"}},
		},
		CancerKCD: []cancer.Mapping{
			{CancerSeq: 1, CancerName: "위암", KCDCode: "C16", MappingMethod: cancer.MethodManual},
			{CancerSeq: 5, CancerName: "유방암", KCDCode: "C50", MappingMethod: cancer.MethodManual},
			{CancerSeq: 5, CancerName: "유방암", KCDCode: "C16.0", MappingMethod: cancer.MethodManual},
			{CancerSeq: 9, CancerName: "없는암", KCDCode: "C50"},
		},
		Drugs: []drug.Ingredient{
			{IngredientKo: "옥살리플라틴", ATCCode: "L01XA03", BrandNames: []string{"엘록사틴"}},
			{IngredientKo: "카페시타빈", ATCCode: "L01BC06", BrandNames: []string{"젤로다"}},
			{IngredientKo: "트라스투주맙", ATCCode: "L01XC03", BrandNames: []string{"허쥬마"}, ProductCodes: []string{"2"}},
			{IngredientKo: "트라스투주맙", ATCCode: "L01XC03", BrandNames: []string{"허셉틴"}, ProductCodes: []string{"1"}},
			{IngredientKo: "메트포르민", ATCCode: "A10BA02"},
		},
		Biomarkers: []biomarker.Biomarker{
			{
				BiomarkerID: "BM_HER2", NameEn: "HER2", Type: biomarker.TypeReceptor,
				KCDCodes:   []string{"C50", "C16"},
				LOINCCodes: []string{"12345-6"},
				Targets: []biomarker.Target{
					{ATCCode: "L01XC03", Name: "trastuzumab", Mechanism: "HER2 antagonist"},
					{ATCCode: "L99XX99", Name: "unknown"},
				},
			},
			{BiomarkerID: "BM_EGFR", NameEn: "EGFR", Type: biomarker.TypeGene},
		},
		Tests: []biomarker.Test{
			{TestID: "TEST_C5800", EDICode: "C5800", NameKo: "HER2 검사", LOINCCode: "12345-6"},
			{TestID: "TEST_C5801", EDICode: "C5801", NameKo: "EGFR 검사"},
		},
		Mappings: []biomarker.Mapping{{
			BiomarkerID: "BM_HER2",
			MatchedTests: []biomarker.MatchedTest{
				{EDICode: "C5800", MatchType: biomarker.MatchLOINC, Confidence: 0.98, MatchedCode: "12345-6"},
				{EDICode: "C5899", MatchType: biomarker.MatchSNOMEDPre, Confidence: 0.95, MatchedCode: "1"},
			},
		}},
		Regimens: []regimen.Regimen{
			{
				RegimenID: "aaaa", CancerName: "위암", RegimenType: regimen.TypeCombination,
				Line: regimen.LineFirst, Purpose: regimen.PurposeAdjuvant, AnnouncementNo: "2024-100",
				Drugs: []regimen.Drug{
					{ATCCode: "L01XA03", Name: "oxaliplatin", Order: 1},
					{ATCCode: "L01BC06", Name: "capecitabine", Order: 2},
				},
				KCDCodes: []string{"C16"}, HasKCD: true, HasAllDrugs: true,
			},
			{
				RegimenID: "bbbb", CancerName: "유방암", RegimenType: regimen.TypeCombination,
				Drugs: []regimen.Drug{
					{ATCCode: "L01XC03", Name: "trastuzumab", Order: 1},
					{ATCCode: "L01XX99", Name: "newdrug", Order: 2},
				},
				KCDCodes: []string{"C50.9"}, HasKCD: true, HasAllDrugs: true,
			},
		},
	}
}

func assemble(t *testing.T, store Store, b *Bridges) (*Report, *pipeline.Summary) {
	t.Helper()
	sum := pipeline.NewSummary("assemble")
	r, err := NewAssembler(store, zerolog.Nop()).Run(context.Background(), b, true, sum)
	require.NoError(t, err)
	return r, sum
}

func TestBuildPlan_Order(t *testing.T) {
	p, err := BuildPlan(fixture(), pipeline.NewSummary("assemble"))
	require.NoError(t, err)

	var names, grouped []string
	for _, s := range p.Steps {
		names = append(names, s.Name())
		if s.Group == GroupRegimens {
			grouped = append(grouped, s.Name())
		}
	}
	assert.Equal(t, []string{
		LabelDisease, LabelProcedure, LabelCancer, LabelDrug, RelCancerType,
		LabelBiomarker, RelHasBiomarker, LabelTest, RelTestedBy, RelTargets,
		LabelRegimen, RelTreatedBy, RelIncludes,
	}, names)
	assert.Equal(t, []string{LabelRegimen, RelTreatedBy, RelIncludes}, grouped)
}

func TestAssemble(t *testing.T) {
	store := NewMemoryStore()
	r, sum := assemble(t, store, fixture())

	assert.Equal(t, Counts{
		LabelDisease: 8, LabelProcedure: 1, LabelCancer: 2, LabelDrug: 3,
		LabelBiomarker: 2, LabelTest: 2, LabelRegimen: 2,
	}, r.Nodes)
	assert.Equal(t, Counts{
		RelCancerType: 3, RelHasBiomarker: 3, RelTestedBy: 1,
		RelTargets: 1, RelTreatedBy: 3, RelIncludes: 3,
	}, r.Edges)
	assert.Empty(t, r.Problems)

	assert.Equal(t, 1, sum.Count(ReasonNonAnticancerATC))
	assert.Equal(t, 1, sum.Count(ReasonDrugMerged))
	assert.Equal(t, 1, sum.Count(ReasonCancerTypeConflict))
	assert.Equal(t, 1, sum.Count(ReasonFKGapCancer))
	assert.Equal(t, 1, sum.Count(ReasonFKGapTest))
	assert.Equal(t, 2, sum.Count(ReasonFKGapDrug))
	assert.Equal(t, 1, sum.Count(ReasonRegimenDowngraded))

	t.Run("drug records sharing an ATC merge", func(t *testing.T) {
		d, ok := store.Node(LabelDrug, "L01XC03")
		require.True(t, ok)
		assert.Equal(t, []string{"허셉틴", "허쥬마"}, d["brand_names"])
		assert.Equal(t, []string{"1", "2"}, d["product_codes"])
		assert.Equal(t, "L01XC03", d["atc_code"])
	})

	t.Run("non-leaf codes expand to lowest descendants", func(t *testing.T) {
		assert.Len(t, store.Edges(RelCancerType, "C16.0"), 1)
		assert.Contains(t, store.Edges(RelCancerType, "C16.0"), "1")
		assert.Contains(t, store.Edges(RelCancerType, "C50.9"), "5")
		assert.Empty(t, store.Edges(RelCancerType, "C16"))
		assert.Contains(t, store.Edges(RelHasBiomarker, "C16.9"), "BM_HER2")
		assert.Contains(t, store.Edges(RelTreatedBy, "C16.9"), "aaaa")
	})

	t.Run("regimen drugs keep declared order", func(t *testing.T) {
		inc := store.Edges(RelIncludes, "aaaa")
		require.Len(t, inc, 2)
		assert.Equal(t, 1, inc["L01XA03"]["order"])
		assert.Equal(t, 2, inc["L01BC06"]["order"])
		assert.Equal(t, "capecitabine", inc["L01BC06"]["drug_name_as_written"])

		treated := store.Edges(RelTreatedBy, "C16.0")["aaaa"]
		assert.Equal(t, regimen.LineFirst, treated["line"])
		assert.Equal(t, "2024-100", treated["announcement_no"])
	})

	t.Run("missing drug clears has_all_drugs", func(t *testing.T) {
		rg, ok := store.Node(LabelRegimen, "bbbb")
		require.True(t, ok)
		assert.Equal(t, false, rg["has_all_drugs"])
		assert.Len(t, store.Edges(RelIncludes, "bbbb"), 1)
	})

	t.Run("drug_count counts resolved targets", func(t *testing.T) {
		bm, ok := store.Node(LabelBiomarker, "BM_HER2")
		require.True(t, ok)
		assert.Equal(t, 1, bm["drug_count"])
		tb := store.Edges(RelTestedBy, "BM_HER2")["C5800"]
		assert.Equal(t, biomarker.MatchLOINC, tb["match_type"])
		assert.Equal(t, 0.98, tb["confidence"])
	})
}

func TestAssemble_Invariants(t *testing.T) {
	store := NewMemoryStore()
	assemble(t, store, fixture())
	b := fixture()

	for _, ing := range b.Drugs {
		if _, ok := store.Node(LabelDrug, ing.ATCCode); ok {
			assert.True(t, strings.HasPrefix(ing.ATCCode, "L01") || strings.HasPrefix(ing.ATCCode, "L02"), ing.ATCCode)
		}
	}
	for _, d := range b.Diseases {
		n, ok := store.Node(LabelDisease, d.Code)
		require.True(t, ok, d.Code)
		assert.Equal(t, disease.IsCancer(d.Code), n["is_cancer"], d.Code)
	}
	inSitu, _ := store.Node(LabelDisease, "D05.1")
	assert.Equal(t, true, inSitu["is_cancer"])
	anemia, _ := store.Node(LabelDisease, "D50.0")
	assert.Equal(t, false, anemia["is_cancer"])
	for _, e := range store.EdgeProps(RelTestedBy) {
		c := e["confidence"].(float64)
		assert.Contains(t, []float64{0.93, 0.95, 0.98}, c)
		assert.Contains(t, []string{biomarker.MatchLOINC, biomarker.MatchSNOMEDPre, biomarker.MatchSNOMEDPost}, e["match_type"])
	}
	for _, r := range b.Regimens {
		n, ok := store.Node(LabelRegimen, r.RegimenID)
		require.True(t, ok)
		if n["has_all_drugs"] != true {
			continue
		}
		inc := store.Edges(RelIncludes, r.RegimenID)
		assert.Len(t, inc, len(r.Drugs))
		for _, d := range r.Drugs {
			assert.Contains(t, inc, d.ATCCode)
		}
	}
}

func TestAssemble_RegimenDeclaredOrder(t *testing.T) {
	b := fixture()
	b.Regimens = append(b.Regimens, regimen.Regimen{
		RegimenID: "cccc", CancerName: "위암", RegimenType: regimen.TypeCombination,
		Drugs: []regimen.Drug{
			{ATCCode: "L01XA03", Name: "oxaliplatin", Order: 1},
			{Name: "leucovorin", Order: 2},
			{Name: "irinotecan", Order: 3},
			{ATCCode: "L01BC06", Name: "capecitabine", Order: 4},
		},
		UnresolvedDrugs: []string{"leucovorin", "irinotecan"},
		KCDCodes:        []string{},
	})
	store := NewMemoryStore()
	_, sum := assemble(t, store, b)

	inc := store.Edges(RelIncludes, "cccc")
	require.Len(t, inc, 2)
	assert.Equal(t, 1, inc["L01XA03"]["order"])
	assert.Equal(t, 4, inc["L01BC06"]["order"])

	rg, ok := store.Node(LabelRegimen, "cccc")
	require.True(t, ok)
	assert.Equal(t, false, rg["has_all_drugs"])
	assert.Equal(t, []string{"L01XA03", "", "", "L01BC06"}, rg["drug_atc_codes"])
	assert.Equal(t, []string{"oxaliplatin", "leucovorin", "irinotecan", "capecitabine"}, rg["drug_names"])

	assert.Equal(t, 2, sum.Count(ReasonRegimenUnresolved))
	assert.Equal(t, 0, sum.Count(ReasonRegimenDupDrug))
}

func histogram(s *MemoryStore) []string {
	var out []string
	for _, rel := range RelTypes {
		for _, p := range s.EdgeProps(rel) {
			out = append(out, rel+fmt.Sprint(p))
		}
	}
	sort.Strings(out)
	return out
}

func TestAssemble_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	first, _ := assemble(t, store, fixture())
	hist := histogram(store)

	second, _ := assemble(t, store, fixture())
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, hist, histogram(store))
}

func TestBuildPlan_LoadOrder(t *testing.T) {
	b := fixture()
	b.Drugs = nil
	_, err := BuildPlan(b, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrLoadOrder)

	b = fixture()
	b.Diseases = nil
	_, err = BuildPlan(b, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrLoadOrder)
}

func TestLoad_EdgesBeforeNodes(t *testing.T) {
	p := &Plan{Steps: []Step{
		{Label: LabelDisease, Nodes: []Node{{Key: "C16.0"}}},
		{Rel: RelCancerType, Edges: []Edge{{From: "C16.0", To: 1}}},
		{Label: LabelCancer, Nodes: []Node{{Key: 1}}},
	}}
	store := NewMemoryStore()
	err := NewAssembler(store, zerolog.Nop()).Load(context.Background(), p, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrLoadOrder)

	nodes, _ := store.CountNodes(context.Background())
	assert.Equal(t, Counts{LabelDisease: 1}, nodes)
}

// recordingStore notes which write method each step reached.
type recordingStore struct {
	*MemoryStore
	writes []string
}

func (s *recordingStore) MergeNodes(ctx context.Context, label string, nodes []Node) error {
	s.writes = append(s.writes, label)
	return s.MemoryStore.MergeNodes(ctx, label, nodes)
}

func (s *recordingStore) MergeEdges(ctx context.Context, rel string, edges []Edge) error {
	s.writes = append(s.writes, rel)
	return s.MemoryStore.MergeEdges(ctx, rel, edges)
}

func (s *recordingStore) MergeSteps(ctx context.Context, steps []Step) error {
	names := make([]string, len(steps))
	for i, st := range steps {
		names[i] = st.Name()
	}
	s.writes = append(s.writes, "["+strings.Join(names, " ")+"]")
	return s.MemoryStore.MergeSteps(ctx, steps)
}

func TestLoad_RegimenGroupIsOneWrite(t *testing.T) {
	store := &recordingStore{MemoryStore: NewMemoryStore()}
	assemble(t, store, fixture())

	require.NotEmpty(t, store.writes)
	assert.Equal(t, "[Regimen TREATED_BY INCLUDES]", store.writes[len(store.writes)-1])
	assert.Contains(t, store.writes, LabelDisease)
	assert.NotContains(t, store.writes, LabelRegimen)
	assert.NotContains(t, store.writes, RelIncludes)
}

func TestLoad_FailedGroupLeavesNoRegimens(t *testing.T) {
	p := &Plan{Steps: []Step{
		{Label: LabelDrug, Nodes: []Node{{Key: "L01XA03"}}},
		{Label: LabelRegimen, Group: GroupRegimens, Nodes: []Node{{Key: "aaaa"}}},
		{Rel: RelIncludes, Group: GroupRegimens, Edges: []Edge{
			{From: "aaaa", To: "L01XA03"},
			{From: "zzzz", To: "L01XA03"},
		}},
	}}
	store := NewMemoryStore()
	err := NewAssembler(store, zerolog.Nop()).Load(context.Background(), p, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrLoadOrder)

	nodes, _ := store.CountNodes(context.Background())
	assert.Equal(t, Counts{LabelDrug: 1}, nodes)
	edges, _ := store.CountEdges(context.Background())
	assert.Empty(t, edges)
}

func TestMemoryStore_MergeStepsRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureConstraints(ctx))
	require.NoError(t, store.MergeNodes(ctx, LabelProcedure, []Node{
		{Key: "Q2000", Props: map[string]any{"kdrg_code_en": "Q2000E", "name": "위절제술"}},
	}))

	err := store.MergeSteps(ctx, []Step{
		{Label: LabelProcedure, Nodes: []Node{{Key: "Q2000", Props: map[string]any{"name": "changed"}}}},
		{Label: LabelProcedure, Nodes: []Node{{Key: "Q2001", Props: map[string]any{"kdrg_code_en": "Q2000E"}}}},
	})
	assert.ErrorIs(t, err, pipeline.ErrConstraintViolation)

	n, ok := store.Node(LabelProcedure, "Q2000")
	require.True(t, ok)
	assert.Equal(t, "위절제술", n["name"])
	_, ok = store.Node(LabelProcedure, "Q2001")
	assert.False(t, ok)
}

func TestBuildPlan_ConstraintViolations(t *testing.T) {
	b := fixture()
	b.Mappings[0].MatchedTests[0].Confidence = 0.9
	_, err := BuildPlan(b, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrConstraintViolation)

	b = fixture()
	b.Mappings[0].MatchedTests[0].MatchType = "keyword"
	_, err = BuildPlan(b, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrConstraintViolation)

	b = fixture()
	b.Tests = append(b.Tests, b.Tests[0])
	_, err = BuildPlan(b, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrConstraintViolation)

	b = fixture()
	b.Procedures = append(b.Procedures, procedure.Procedure{KDRGCodeKr: "Q2001", KDRGCodeEn: "Q2000E"})
	_, err = BuildPlan(b, pipeline.NewSummary("assemble"))
	assert.ErrorIs(t, err, pipeline.ErrConstraintViolation)
}

func TestMemoryStore_SecondaryKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureConstraints(ctx))
	require.NoError(t, s.MergeNodes(ctx, LabelProcedure, []Node{
		{Key: "Q2000", Props: map[string]any{"kdrg_code_en": "Q2000E"}},
	}))
	// same node again is fine
	require.NoError(t, s.MergeNodes(ctx, LabelProcedure, []Node{
		{Key: "Q2000", Props: map[string]any{"kdrg_code_en": "Q2000E", "name": "위절제술"}},
	}))

	err := s.MergeNodes(ctx, LabelProcedure, []Node{
		{Key: "Q2001", Props: map[string]any{"kdrg_code_en": "Q2000E"}},
	})
	assert.ErrorIs(t, err, pipeline.ErrConstraintViolation)
	_, ok := s.Node(LabelProcedure, "Q2001")
	assert.False(t, ok)
}

func TestVerify(t *testing.T) {
	p, err := BuildPlan(fixture(), pipeline.NewSummary("verify"))
	require.NoError(t, err)
	a := NewAssembler(NewMemoryStore(), zerolog.Nop())

	r, err := a.Verify(context.Background(), p, false, pipeline.NewSummary("verify"))
	require.NoError(t, err)
	assert.NotEmpty(t, r.Problems)
	assert.Contains(t, r.Problems, "label Disease has 0 of 8 planned")

	_, err = a.Verify(context.Background(), p, true, pipeline.NewSummary("verify"))
	assert.ErrorIs(t, err, pipeline.ErrPartialLoad)
}

func TestLoadBridges(t *testing.T) {
	dir := t.TempDir()
	b := fixture()
	require.NoError(t, pipeline.WriteJSON(filepath.Join(dir, disease.DiseasesFile), b.Diseases))
	require.NoError(t, pipeline.WriteJSON(filepath.Join(dir, drug.MasterFile), b.Drugs))
	require.NoError(t, pipeline.WriteJSON(filepath.Join(dir, regimen.RegimensFile), b.Regimens))
	require.NoError(t, pipeline.WriteJSON(filepath.Join(dir, biomarker.MappingsFile), biomarker.MappingFile{}))

	got, err := LoadBridges(dir)
	require.NoError(t, err)
	assert.Len(t, got.Diseases, 8)
	assert.Len(t, got.Regimens, 2)
	assert.NotNil(t, got.Mappings)
	assert.Empty(t, got.Mappings)
	assert.Nil(t, got.Cancers)
	assert.ElementsMatch(t, []string{
		procedure.ProceduresFile, cancer.CancersFile, cancer.MappingFile,
		biomarker.BiomarkersFile, biomarker.TestsFile,
	}, got.Missing)

	_, err = LoadBridges(t.TempDir())
	assert.ErrorIs(t, err, pipeline.ErrMissingInput)
}

func TestStatusServer(t *testing.T) {
	store := NewMemoryStore()
	assemble(t, store, fixture())
	dir := t.TempDir()
	for _, stage := range []string{"kcd", "ncc", "assemble"} {
		sum := pipeline.NewSummary(stage)
		sum.Finish(nil)
		require.NoError(t, pipeline.WriteSummary(filepath.Join(dir, stage+".json"), sum))
	}
	e := NewStatusServer(store, "memory", dir, zerolog.Nop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "memory", health["backend"])

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph/counts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var counts Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 8, counts.Nodes[LabelDisease])
	assert.Equal(t, 3, counts.Edges[RelIncludes])

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data    []pipeline.Summary `json:"data"`
		Total   int                `json:"total"`
		HasMore bool               `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Data, 2)
	assert.True(t, page.HasMore)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?stage=ncc", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "ncc", page.Data[0].Stage)
}
