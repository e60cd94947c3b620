package regimen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkg/medkg/internal/domain/anchor"
	"github.com/medkg/medkg/internal/domain/cancer"
	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

func master() []drug.Ingredient {
	return []drug.Ingredient{
		{IngredientKo: "옥살리플라틴", IngredientBaseKo: "옥살리플라틴", IngredientEn: "oxaliplatin", IngredientBaseEn: "oxaliplatin", ATCCode: "L01XA03"},
		{IngredientKo: "카페시타빈", IngredientBaseKo: "카페시타빈", IngredientEn: "capecitabine", IngredientBaseEn: "capecitabine", ATCCode: "L01BC06"},
		{IngredientKo: "파클리탁셀", IngredientBaseKo: "파클리탁셀", IngredientEn: "paclitaxel", IngredientBaseEn: "paclitaxel", ATCCode: "L01CD01"},
	}
}

func TestNormalizers(t *testing.T) {
	lineTests := map[string]string{"1차": LineFirst, "2nd line": LineSecond, "3차 이상": LineThird, "4th-line": LineThird, "": ""}
	for in, want := range lineTests {
		got, ok := NormalizeLine(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeLine("maintenance")
	assert.False(t, ok)

	purposeTests := map[string]string{
		"고식적요법":   PurposePalliative,
		"수술 후 보조": PurposeAdjuvant,
		"수술 전 보조": PurposeNeoadjuvant,
		"Neoadjuvant": PurposeNeoadjuvant,
		"adjuvant":    PurposeAdjuvant,
	}
	for in, want := range purposeTests {
		got, ok := NormalizePurpose(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for in, want := range map[string]string{"신설": ActionAdded, "변경": ActionModified, "삭제": ActionRemoved, "Added": ActionAdded} {
		got, ok := NormalizeAction(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestSplitDrugs(t *testing.T) {
	assert.Equal(t, []string{"oxaliplatin", "capecitabine"}, SplitDrugs("oxaliplatin + capecitabine"))
	assert.Equal(t, []string{"파클리탁셀", "카보플라틴", "베바시주맙"}, SplitDrugs("파클리탁셀/카보플라틴, 베바시주맙"))
	assert.Empty(t, SplitDrugs("  "))
}

func TestRegimenID(t *testing.T) {
	a := RegimenID("2024-100", "위암: XELOX")
	assert.Len(t, a, 16)
	assert.Equal(t, a, RegimenID("2024-100", "위암: XELOX"))
	assert.NotEqual(t, a, RegimenID("2024-101", "위암: XELOX"))
	// NUL separator keeps the two fields apart
	assert.NotEqual(t, RegimenID("a", "bc"), RegimenID("ab", "c"))
}

func TestBuild(t *testing.T) {
	ck := NewCancerKCD([]cancer.Mapping{
		{CancerSeq: 1, CancerName: "위암", KCDCode: "C16"},
		{CancerSeq: 5, CancerName: "유방암", KCDCode: "C50"},
	})
	b := NewBuilder(drug.NewIndex(master()), ck, zerolog.Nop())
	anns := []Announcement{{
		AnnouncementNo:   "2024-100",
		AnnouncementDate: "2024-03-01",
		Regimens: []RawRegimen{
			{
				CancerName: "위암", CancerSeq: 1,
				Drugs: []string{"oxaliplatin", "capecitabine", "옥살리플라틴"},
				Line:  "1차", Purpose: "수술 후 보조", Action: "신설",
				SourceText: "위암 수술 후 보조요법 XELOX",
			},
			{
				CancerName: "유방암",
				DrugsText:  "paclitaxel + trastuzumab-xyz",
				KCDCodes:   []string{"C509", "C00-C97"},
				Line:       "2차", Purpose: "고식적", Action: "변경",
			},
			{
				CancerName: "위암", CancerSeq: 1,
				Drugs:      []string{"oxaliplatin"},
				SourceText: "위암 수술 후 보조요법 XELOX",
			},
			{CancerName: "희귀암", Drugs: []string{"paclitaxel"}, Line: "maintenance"},
		},
	}}
	sum := pipeline.NewSummary("regimens")

	rs, err := b.Build(anns, sum)
	require.NoError(t, err)
	require.Len(t, rs, 3)

	byCancer := map[string]Regimen{}
	for _, r := range rs {
		byCancer[r.CancerName] = r
	}

	xelox := byCancer["위암"]
	assert.Equal(t, RegimenID("2024-100", "위암 수술 후 보조요법 XELOX"), xelox.RegimenID)
	assert.Equal(t, []Drug{
		{ATCCode: "L01XA03", Name: "oxaliplatin", Order: 1},
		{ATCCode: "L01BC06", Name: "capecitabine", Order: 2},
	}, xelox.Drugs)
	assert.True(t, xelox.HasAllDrugs)
	assert.Equal(t, TypeCombination, xelox.RegimenType)
	assert.Equal(t, []string{"C16"}, xelox.KCDCodes)
	assert.True(t, xelox.HasKCD)
	assert.Equal(t, LineFirst, xelox.Line)
	assert.Equal(t, PurposeAdjuvant, xelox.Purpose)
	assert.Equal(t, ActionAdded, xelox.Action)

	breast := byCancer["유방암"]
	assert.False(t, breast.HasAllDrugs)
	assert.Equal(t, []string{"trastuzumab-xyz"}, breast.UnresolvedDrugs)
	assert.Equal(t, []Drug{
		{ATCCode: "L01CD01", Name: "paclitaxel", Order: 1},
		{Name: "trastuzumab-xyz", Order: 2},
	}, breast.Drugs)
	assert.Equal(t, []string{"C50.9"}, breast.KCDCodes)
	assert.Equal(t, "유방암: paclitaxel + trastuzumab-xyz", breast.SourceText)
	assert.Equal(t, PurposePalliative, breast.Purpose)

	rare := byCancer["희귀암"]
	assert.False(t, rare.HasKCD)
	assert.Equal(t, TypeMono, rare.RegimenType)

	assert.Equal(t, 1, sum.Count(ReasonDuplicateID))
	assert.Equal(t, 1, sum.Count(ReasonDuplicateDrug))
	assert.Equal(t, 1, sum.Count(ReasonUnresolvedDrug))
	assert.Equal(t, 1, sum.Count(ReasonInvalidKCD))
	assert.Equal(t, 1, sum.Count(ReasonKCDFromCancer))
	assert.Equal(t, 1, sum.Count(ReasonNoKCD))
	assert.Equal(t, 1, sum.Count(ReasonUnknownLine))
}

func TestBuild_UnresolvedDrugKeepsDeclaredOrder(t *testing.T) {
	b := NewBuilder(drug.NewIndex(master()), nil, zerolog.Nop())
	anns := []Announcement{{
		AnnouncementNo: "2024-200",
		Regimens: []RawRegimen{
			{CancerName: "대장암", DrugsText: "oxaliplatin + leucovorin + capecitabine"},
			{CancerName: "췌장암", DrugsText: "leucovorin + irinotecan"},
		},
	}}
	sum := pipeline.NewSummary("regimens")

	rs, err := b.Build(anns, sum)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	byCancer := map[string]Regimen{}
	for _, r := range rs {
		byCancer[r.CancerName] = r
	}

	colon := byCancer["대장암"]
	assert.Equal(t, []Drug{
		{ATCCode: "L01XA03", Name: "oxaliplatin", Order: 1},
		{Name: "leucovorin", Order: 2},
		{ATCCode: "L01BC06", Name: "capecitabine", Order: 3},
	}, colon.Drugs)
	assert.Equal(t, []string{"leucovorin"}, colon.UnresolvedDrugs)
	assert.False(t, colon.HasAllDrugs)
	assert.Equal(t, TypeCombination, colon.RegimenType)

	// two unresolved drugs are not duplicates of each other
	assert.Equal(t, []Drug{
		{Name: "leucovorin", Order: 1},
		{Name: "irinotecan", Order: 2},
	}, byCancer["췌장암"].Drugs)
	assert.Equal(t, 0, sum.Count(ReasonDuplicateDrug))
	assert.Equal(t, 3, sum.Count(ReasonUnresolvedDrug))
	assert.Equal(t, 1, sum.Count(ReasonPartialDrugs))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	masterPath := filepath.Join(dir, drug.MasterFile)
	require.NoError(t, pipeline.WriteJSON(masterPath, master()))
	aliasPath := filepath.Join(dir, anchor.BrandAliasFile)
	require.NoError(t, pipeline.WriteYAML(aliasPath, anchor.BrandAlias{
		BrandToIngredient: map[string][]string{"젤로다": {"카페시타빈"}},
	}))
	mappingPath := filepath.Join(dir, cancer.MappingFile)
	require.NoError(t, pipeline.WriteJSON(mappingPath, []cancer.Mapping{{CancerSeq: 1, CancerName: "위암", KCDCode: "C16"}}))
	annPath := filepath.Join(dir, "hira_announcements.json")
	require.NoError(t, pipeline.WriteJSON(annPath, []Announcement{{
		AnnouncementNo: "2024-7",
		Regimens:       []RawRegimen{{CancerName: "위암", DrugsText: "옥살리플라틴 + 젤로다"}},
	}}))

	rs, sum, err := Run(context.Background(), Input{
		AnnouncementsPath: annPath,
		MasterPath:        masterPath,
		AliasPath:         aliasPath,
		CancerKCDPath:     mappingPath,
		OutDir:            filepath.Join(dir, "bridges"),
	}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.True(t, rs[0].HasAllDrugs)
	assert.Equal(t, "L01BC06", rs[0].Drugs[1].ATCCode)
	assert.Equal(t, []string{"C16"}, rs[0].KCDCodes)
	assert.Equal(t, 1, sum.Count("BRAND_ALIASES"))

	loaded, err := LoadRegimens(filepath.Join(dir, "bridges", RegimensFile))
	require.NoError(t, err)
	assert.Equal(t, rs, loaded)
}

func TestRun_MissingMaster(t *testing.T) {
	_, _, err := Run(context.Background(), Input{MasterPath: filepath.Join(t.TempDir(), "none.json")}, zerolog.Nop())
	assert.ErrorIs(t, err, pipeline.ErrMissingInput)
}
