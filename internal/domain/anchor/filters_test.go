package anchor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

func TestLoadFilters_Default(t *testing.T) {
	f, err := LoadFilters("")
	require.NoError(t, err)

	assert.Equal(t, RomanizationRevised, f.Config.Romanization)
	assert.Equal(t, 0.25, f.threshold(20))
	assert.Equal(t, 0.35, f.threshold(19))
	assert.NotEmpty(t, f.Config.FormTerms.Hard)
	assert.NotEmpty(t, f.Config.IngredientHints)
}

func TestLoadFilters_LongestSuffixWins(t *testing.T) {
	f, err := LoadFilters("")
	require.NoError(t, err)

	r, ok := f.suffixRule("prednisolone")
	require.True(t, ok)
	assert.Equal(t, "olone", r.EN)

	r, ok = f.suffixRule("dexamethasone")
	require.True(t, ok)
	assert.Equal(t, "sone", r.EN)

	_, ok = f.suffixRule("busulfan")
	assert.False(t, ok)
}

func TestLoadFilters_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml")},
		{"broken yaml", write("broken.yaml", "routing: [\n")},
		{"unknown key", write("unknown.yaml", "romanization: revised\nphonetics: {}\n")},
		{"bad regex", write("regex.yaml", `
romanization: revised
phonetic: {strict_threshold: 0.25, loose_threshold: 0.35, high_frequency_threshold: 20}
routing:
  regimen: ['(folfox']
`)},
		{"bad threshold", write("threshold.yaml", `
romanization: revised
phonetic: {strict_threshold: 1.5, loose_threshold: 0.35, high_frequency_threshold: 20}
`)},
		{"other romanization", write("yale.yaml", `
romanization: yale
phonetic: {strict_threshold: 0.25, loose_threshold: 0.35, high_frequency_threshold: 20}
`)},
		{"suffix rule without ko", write("suffix.yaml", `
romanization: revised
phonetic: {strict_threshold: 0.25, loose_threshold: 0.35, high_frequency_threshold: 20}
suffix_rules:
  - {en: mab, strict: true}
`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFilters(tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, pipeline.ErrConfig)
			assert.Equal(t, pipeline.ExitConfig, pipeline.ExitCode(err))
		})
	}
}
