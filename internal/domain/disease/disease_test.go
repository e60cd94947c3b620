package disease

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		inserted bool
	}{
		{"C341", "C34.1", true},
		{"c34.1", "C34.1", false},
		{" C50 ", "C50", false},
		{"A01.0†", "A01.0", false},
		{"C3410", "C34.10", true},
		{"C00-C97", "C00-C97", false},
	}
	for _, tt := range tests {
		got, inserted := NormalizeCode(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.inserted, inserted, tt.in)
	}
}

func TestCodeClassification(t *testing.T) {
	assert.True(t, IsCancer("C00"))
	assert.True(t, IsCancer("C97"))
	assert.True(t, IsCancer("D48.9"))
	assert.False(t, IsCancer("D50"))
	assert.False(t, IsCancer("E11"))

	assert.Equal(t, "II", Chapter("C34.1"))
	assert.Equal(t, "II", Chapter("D48"))
	assert.Equal(t, "III", Chapter("D50.0"))
	assert.Equal(t, "XIX", Chapter("T14"))
	assert.Equal(t, "XXII", Chapter("U07.1"))
	assert.Equal(t, "", Chapter("W99"))

	assert.True(t, IsRange("C00-C97"))
	assert.False(t, Valid("C00-C97"))
	assert.False(t, Valid("C3"))
	assert.True(t, Valid("C34.1"))
}

func TestBuild_DerivesLowestAndSkipsBadCodes(t *testing.T) {
	rows := []Row{
		{Code: "C34", NameKr: "기관지 및 폐의 악성 신생물", NameEn: "Malignant neoplasm of bronchus and lung"},
		{Code: "C341", NameKr: "상엽", NameEn: "Upper lobe"},
		{Code: "C34.3", NameKr: "하엽", NameEn: "Lower lobe"},
		{Code: "C34.1", NameKr: "중복", NameEn: "dup"},
		{Code: "C00-C97", NameKr: "악성 신생물", NameEn: "range"},
		{Code: "XYZ", NameKr: "bad", NameEn: "bad"},
		{Code: "E11", NameKr: "2형 당뇨병", NameEn: "Type 2 diabetes"},
	}
	sum := pipeline.NewSummary("kcd")

	ds, err := Build(rows, sum)
	require.NoError(t, err)

	l := NewLookup(ds)
	require.Len(t, ds, 4)
	assert.False(t, l["C34"].IsLowest)
	assert.True(t, l["C34.1"].IsLowest)
	assert.Equal(t, "상엽", l["C34.1"].NameKr)
	assert.True(t, l["C34"].IsCancer)
	assert.False(t, l["E11"].IsCancer)
	assert.Equal(t, "IV", l["E11"].Chapter)

	assert.Equal(t, 1, sum.Count(ReasonRangeCode))
	assert.Equal(t, 1, sum.Count(ReasonInvalidCode))
	assert.Equal(t, 1, sum.Count(ReasonDuplicateCode))
	assert.Equal(t, 1, sum.Count(ReasonDotInserted))
	assert.Equal(t, 3, sum.Count(ReasonCancers))

	assert.Equal(t, []string{"C34.1", "C34.3"}, l.Expand("C34"))
	assert.Equal(t, []string{"C34.1"}, l.Expand("C341"))
	assert.Nil(t, l.Expand("C99"))
}

func TestBuild_ExplicitLowestWins(t *testing.T) {
	yes, no := true, false
	rows := []Row{
		{Code: "C50", IsLowest: &yes},
		{Code: "C50.9", IsLowest: &no},
	}
	ds, err := Build(rows, pipeline.NewSummary("kcd"))
	require.NoError(t, err)
	l := NewLookup(ds)
	assert.True(t, l["C50"].IsLowest)
	assert.False(t, l["C50.9"].IsLowest)
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build([]Row{{Code: "C00-C97"}}, pipeline.NewSummary("kcd"))
	assert.ErrorIs(t, err, pipeline.ErrEmptyResult)
}

func TestBuilder_RunExcel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kcd9.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"KCD-9 분류표"},
		{""},
		{"상병기호", "한글명", "영문명", "완전코드구분"},
		{"C50", "유방의 악성 신생물", "Malignant neoplasm of breast", "N"},
		{"C509", "상세불명의 유방", "Breast, unspecified", "Y"},
		{"C00-C97", "악성 신생물", "Malignant neoplasms", ""},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "bridges")
	res, err := NewBuilder(zerolog.Nop()).Run(context.Background(), Input{MasterPath: path, OutDir: out})
	require.NoError(t, err)
	require.Len(t, res.Diseases, 2)

	var lookup Lookup
	require.NoError(t, pipeline.ReadJSON(filepath.Join(out, LookupFile), &lookup))
	assert.True(t, lookup["C50.9"].IsLowest)
	assert.False(t, lookup["C50"].IsLowest)
	assert.FileExists(t, filepath.Join(out, "diseases.summary.json"))
}

func TestBuilder_RunMissing(t *testing.T) {
	_, err := NewBuilder(zerolog.Nop()).Run(context.Background(), Input{MasterPath: "nope.xlsx", OutDir: t.TempDir()})
	assert.ErrorIs(t, err, pipeline.ErrMissingInput)
}
