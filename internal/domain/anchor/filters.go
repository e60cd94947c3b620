package anchor

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

//go:embed default_filters.yaml
var defaultFilters []byte

// RomanizationRevised is the only romanization scheme implemented.
const RomanizationRevised = "revised"

// FilterConfig is the YAML document driving the gate chain.
type FilterConfig struct {
	Version         int             `yaml:"version"`
	Romanization    string          `yaml:"romanization"`
	Phonetic        PhoneticConfig  `yaml:"phonetic"`
	Routing         RoutingConfig   `yaml:"routing"`
	FormTerms       FormTermsConfig `yaml:"form_terms"`
	IngredientHints []string        `yaml:"ingredient_hints"`
	SuffixRules     []SuffixRule    `yaml:"suffix_rules"`
}

// PhoneticConfig holds the similarity thresholds.
type PhoneticConfig struct {
	StrictThreshold        float64 `yaml:"strict_threshold"`
	LooseThreshold         float64 `yaml:"loose_threshold"`
	HighFrequencyThreshold int     `yaml:"high_frequency_threshold"`
}

// RoutingConfig lists regex patterns per routing class.
type RoutingConfig struct {
	Regimen   []string `yaml:"regimen"`
	Biomarker []string `yaml:"biomarker"`
	Disease   []string `yaml:"disease"`
}

// FormTermsConfig lists hard form nouns and conditional strength patterns.
type FormTermsConfig struct {
	Hard        []string `yaml:"hard"`
	Conditional []string `yaml:"conditional"`
}

// SuffixRule maps an English suffix to the Korean suffixes expected with it.
type SuffixRule struct {
	EN     string   `yaml:"en"`
	KO     []string `yaml:"ko"`
	Strict bool     `yaml:"strict"`
}

// Filters is a validated FilterConfig with its patterns compiled.
type Filters struct {
	Config FilterConfig

	regimen     []*regexp.Regexp
	biomarker   []*regexp.Regexp
	disease     []*regexp.Regexp
	conditional []*regexp.Regexp
	suffixes    []SuffixRule
}

// LoadFilters reads the filter YAML at path, or the embedded default when
// path is empty. Every problem is a configuration error.
func LoadFilters(path string) (*Filters, error) {
	data := defaultFilters
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: anchor filters %s not found", pipeline.ErrConfig, path)
			}
			return nil, fmt.Errorf("%w: read anchor filters: %v", pipeline.ErrConfig, err)
		}
		data = b
	}
	return ParseFilters(data)
}

// ParseFilters decodes and compiles a filter document. Unknown keys are
// rejected so a typo cannot silently disable a gate.
func ParseFilters(data []byte) (*Filters, error) {
	var cfg FilterConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse anchor filters: %v", pipeline.ErrConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrConfig, err)
	}

	f := &Filters{Config: cfg}
	var err error
	if f.regimen, err = compileAll("routing.regimen", cfg.Routing.Regimen); err != nil {
		return nil, err
	}
	if f.biomarker, err = compileAll("routing.biomarker", cfg.Routing.Biomarker); err != nil {
		return nil, err
	}
	if f.disease, err = compileAll("routing.disease", cfg.Routing.Disease); err != nil {
		return nil, err
	}
	if f.conditional, err = compileAll("form_terms.conditional", cfg.FormTerms.Conditional); err != nil {
		return nil, err
	}

	f.suffixes = make([]SuffixRule, 0, len(cfg.SuffixRules))
	for _, r := range cfg.SuffixRules {
		r.EN = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(r.EN), "-"))
		f.suffixes = append(f.suffixes, r)
	}
	sort.SliceStable(f.suffixes, func(i, j int) bool { return len(f.suffixes[i].EN) > len(f.suffixes[j].EN) })
	return f, nil
}

func (c *FilterConfig) validate() error {
	if c.Romanization == "" {
		return fmt.Errorf("romanization is required")
	}
	if c.Romanization != RomanizationRevised {
		return fmt.Errorf("unsupported romanization %q (want %q)", c.Romanization, RomanizationRevised)
	}
	p := c.Phonetic
	if p.StrictThreshold <= 0 || p.StrictThreshold > 1 {
		return fmt.Errorf("phonetic.strict_threshold must be in (0,1], got %v", p.StrictThreshold)
	}
	if p.LooseThreshold <= 0 || p.LooseThreshold > 1 {
		return fmt.Errorf("phonetic.loose_threshold must be in (0,1], got %v", p.LooseThreshold)
	}
	if p.HighFrequencyThreshold <= 0 {
		return fmt.Errorf("phonetic.high_frequency_threshold must be positive, got %d", p.HighFrequencyThreshold)
	}
	for i, r := range c.SuffixRules {
		if strings.TrimSpace(r.EN) == "" || len(r.KO) == 0 {
			return fmt.Errorf("suffix_rules[%d]: en and ko are required", i)
		}
	}
	return nil
}

func compileAll(key string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad pattern %q: %v", pipeline.ErrConfig, key, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	if s == "" {
		return false
	}
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// suffixRule returns the longest rule whose English suffix ends en.
func (f *Filters) suffixRule(en string) (SuffixRule, bool) {
	for _, r := range f.suffixes {
		if r.EN != "" && strings.HasSuffix(en, r.EN) {
			return r, true
		}
	}
	return SuffixRule{}, false
}

func (f *Filters) threshold(count int) float64 {
	if count >= f.Config.Phonetic.HighFrequencyThreshold {
		return f.Config.Phonetic.StrictThreshold
	}
	return f.Config.Phonetic.LooseThreshold
}
