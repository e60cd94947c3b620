package procedure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

func TestBuild_Dedupe(t *testing.T) {
	codes := []RawCode{
		{KoreanCode: "q2501", EnglishCode: "Q0711", Name: "폐 절제술"},
		{KoreanCode: "Q2501", EnglishCode: "Q0711", Name: "폐 부분 절제술", TableIndex: 2},
		{KoreanCode: "Q2502", EnglishCode: "Q0711", Name: "폐엽 절제"},
		{KoreanCode: "Q2503", EnglishCode: "", Name: "기관지 성형술"},
		{KoreanCode: "", EnglishCode: "Q0799", Name: "no korean code"},
		{KoreanCode: "Q2504", EnglishCode: "Q0712", Name: "  전폐   절제술 "},
	}
	sum := pipeline.NewSummary("kdrg")

	ps, err := Build(codes, sum)
	require.NoError(t, err)

	assert.Equal(t, []Procedure{
		{KDRGCodeKr: "Q2501", KDRGCodeEn: "Q0711", Name: "폐 부분 절제술"},
		{KDRGCodeKr: "Q2503", Name: "기관지 성형술"},
		{KDRGCodeKr: "Q2504", KDRGCodeEn: "Q0712", Name: "전폐 절제술"},
	}, ps)
	assert.Equal(t, 1, sum.Count(ReasonDuplicateKr))
	assert.Equal(t, 1, sum.Count(ReasonDuplicateEn))
	assert.Equal(t, 1, sum.Count(ReasonMissingKrCode))
}

func TestBuild_EnglishCollisionLongestWins(t *testing.T) {
	ps, err := Build([]RawCode{
		{KoreanCode: "A1", EnglishCode: "E1", Name: "짧음"},
		{KoreanCode: "A2", EnglishCode: "E1", Name: "더 긴 이름"},
	}, pipeline.NewSummary("kdrg"))
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "A2", ps[0].KDRGCodeKr)
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil, pipeline.NewSummary("kdrg"))
	assert.ErrorIs(t, err, pipeline.ErrEmptyResult)
}

func TestBuilder_Run(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "kdrg_codes.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"codes":[
		{"korean_code":"Q2501","english_code":"Q0711","name":"폐 절제술","table_index":1}
	]}`), 0o644))

	ps, sum, err := NewBuilder(zerolog.Nop()).Run(context.Background(), Input{SourcePath: src, OutDir: dir})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, 1, sum.Count(ReasonProcedures))

	loaded, err := LoadProcedures(filepath.Join(dir, ProceduresFile))
	require.NoError(t, err)
	assert.Equal(t, ps, loaded)
}
