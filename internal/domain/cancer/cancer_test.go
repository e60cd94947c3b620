package cancer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

func TestNormalizeTags(t *testing.T) {
	tags, unknown := NormalizeTags([]string{"성인암", "주요암", " 소아청소년암 ", "주요암", "희귀암", ""})
	assert.Equal(t, []string{TagMajor, TagAdult, TagPediatric}, tags)
	assert.Equal(t, []string{"희귀암"}, unknown)

	tags, unknown = NormalizeTags(nil)
	assert.Equal(t, []string{}, tags)
	assert.Empty(t, unknown)
}

func TestBuildCancers(t *testing.T) {
	pages := []Page{
		{CancerSeq: 3, Name: "폐암", Tags: []string{"주요암", "성인암"}},
		{CancerSeq: 1, Name: "위암", Tags: []string{"주요암"}},
		{CancerSeq: 3, Name: "폐암 중복"},
		{Name: "번호 없음"},
	}
	sum := pipeline.NewSummary("ncc")

	cs, err := BuildCancers(pages, sum)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, 1, cs[0].CancerSeq)
	assert.Equal(t, []string{TagMajor, TagAdult}, cs[1].Tags)
	assert.Equal(t, 1, sum.Count(ReasonDuplicateSeq))
	assert.Equal(t, 1, sum.Count(ReasonMissingSeq))

	_, err = BuildCancers([]Page{{Name: "x"}}, pipeline.NewSummary("ncc"))
	assert.ErrorIs(t, err, pipeline.ErrEmptyResult)
}

func TestApplyMapping(t *testing.T) {
	cancers := []Cancer{
		{CancerSeq: 1, Name: "위암", KCDCodes: []string{}},
		{CancerSeq: 3, Name: "폐암", KCDCodes: []string{}},
	}
	kcd := disease.NewLookup([]disease.Disease{
		{Code: "C16", IsCancer: true},
		{Code: "C34", IsCancer: true},
		{Code: "C34.1", IsCancer: true, IsLowest: true},
	})
	rows := []Mapping{
		{CancerSeq: 3, KCDCode: "C34"},
		{CancerSeq: 3, KCDCode: "C341"},
		{CancerSeq: 3, KCDCode: "C34.1"},
		{CancerSeq: 1, CancerName: "위암", KCDCode: "C16"},
		{CancerSeq: 9, KCDCode: "C16"},
		{CancerSeq: 1, KCDCode: "C18-C20"},
		{CancerSeq: 1, KCDCode: "C99"},
	}
	sum := pipeline.NewSummary("ncc")

	kept := ApplyMapping(cancers, rows, kcd, sum)

	assert.Equal(t, []Mapping{
		{CancerSeq: 1, CancerName: "위암", KCDCode: "C16", MappingMethod: MethodManual},
		{CancerSeq: 3, CancerName: "폐암", KCDCode: "C34", MappingMethod: MethodManual},
		{CancerSeq: 3, CancerName: "폐암", KCDCode: "C34.1", MappingMethod: MethodManual},
	}, kept)
	assert.Equal(t, []string{"C34", "C34.1"}, cancers[1].KCDCodes)
	assert.Equal(t, 1, sum.Count(ReasonDuplicateMapping))
	assert.Equal(t, 1, sum.Count(ReasonUnknownCancerSeq))
	assert.Equal(t, 1, sum.Count(ReasonInvalidKCD))
	assert.Equal(t, 1, sum.Count(ReasonUnknownKCD))
}

func writeFixtures(t *testing.T) (dir, pages, mapping, kcd string) {
	t.Helper()
	dir = t.TempDir()
	pagesDir := filepath.Join(dir, "ncc")
	require.NoError(t, os.MkdirAll(pagesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pagesDir, "001.json"),
		[]byte(`{"cancer_seq": 1, "name": "위암", "tags": ["주요암", "성인암"], "content": "..."}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pagesDir, "002.json"),
		[]byte(`[{"cancer_seq": 3, "name": "폐암", "tags": ["주요암"]}]`), 0o644))

	mapping = filepath.Join(dir, "cancer_kcd_manual.csv")
	require.NoError(t, os.WriteFile(mapping, []byte("cancer_seq,cancer_name,kcd_code\n1,위암,C16\n3,폐암,C34\n"), 0o644))

	kcd = filepath.Join(dir, disease.DiseasesFile)
	require.NoError(t, pipeline.WriteJSON(kcd, []disease.Disease{
		{Code: "C16", NameKr: "위의 악성 신생물", IsCancer: true},
		{Code: "C16.0", NameKr: "분문", IsCancer: true, IsLowest: true},
		{Code: "C34", NameKr: "기관지 및 폐의 악성 신생물", IsCancer: true},
		{Code: "J18", NameKr: "상세불명 병원체의 폐렴"},
	}))
	return dir, pagesDir, mapping, kcd
}

func TestBuilder_RunWithDraft(t *testing.T) {
	dir, pages, mapping, kcd := writeFixtures(t)
	out := filepath.Join(dir, "bridges")
	draft := filepath.Join(dir, "review", "cancer_kcd_draft.csv")

	res, err := NewBuilder(zerolog.Nop()).Run(context.Background(), Input{
		PagesPath:   pages,
		MappingPath: mapping,
		KCDPath:     kcd,
		DraftPath:   draft,
		OutDir:      out,
	})
	require.NoError(t, err)
	require.Len(t, res.Cancers, 2)
	assert.Equal(t, []string{"C16"}, res.Cancers[0].KCDCodes)
	assert.Len(t, res.Mappings, 2)

	data, err := os.ReadFile(draft)
	require.NoError(t, err)
	body := strings.TrimPrefix(string(data), "\ufeff")
	assert.Contains(t, body, "1,위암,C16,위의 악성 신생물,keyword_draft")
	assert.Contains(t, body, "3,폐암,C34,")
	assert.NotContains(t, body, "J18")

	loaded, err := LoadMapping(filepath.Join(out, MappingFile))
	require.NoError(t, err)
	assert.Equal(t, res.Mappings, loaded)
}

func TestBuilder_DraftMustNotOverwriteMapping(t *testing.T) {
	dir, pages, mapping, kcd := writeFixtures(t)

	_, err := NewBuilder(zerolog.Nop()).Run(context.Background(), Input{
		PagesPath:   pages,
		MappingPath: mapping,
		KCDPath:     kcd,
		DraftPath:   mapping,
		OutDir:      dir,
	})
	assert.ErrorIs(t, err, pipeline.ErrConfig)
}

func TestReadMapping_BadSeq(t *testing.T) {
	p := filepath.Join(t.TempDir(), "m.csv")
	require.NoError(t, os.WriteFile(p, []byte("cancer_seq,kcd_code\nabc,C16\n"), 0o644))
	_, err := ReadMapping(p)
	assert.ErrorIs(t, err, pipeline.ErrInputFormat)
}
