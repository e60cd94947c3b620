package cancer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// ReadPages loads parsed NCC pages from a JSON file (one page or an array)
// or from every *.json file in a directory, in file name order.
func ReadPages(path string) ([]Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return readPageFile(path)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	sort.Strings(files)
	var pages []Page
	for _, f := range files {
		ps, err := readPageFile(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, ps...)
	}
	return pages, nil
}

func readPageFile(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var p Page
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrInputFormat, path, err)
		}
		return []Page{p}, nil
	}
	var ps []Page
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrInputFormat, path, err)
	}
	return ps, nil
}

// NormalizeTags maps Korean or English tag labels onto the canonical set,
// in canonical order. Unknown labels are returned separately.
func NormalizeTags(raw []string) (tags, unknown []string) {
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(r), " ", ""))
		if key == "" {
			continue
		}
		t, ok := tagAliases[key]
		if !ok {
			unknown = append(unknown, r)
			continue
		}
		seen[t] = true
	}
	tags = []string{}
	for _, t := range tagOrder {
		if seen[t] {
			tags = append(tags, t)
		}
	}
	return tags, unknown
}

// BuildCancers turns pages into cancer records sorted by cancer_seq. The
// first page wins on a repeated sequence number.
func BuildCancers(pages []Page, sum *pipeline.Summary) ([]Cancer, error) {
	seen := make(map[int]bool, len(pages))
	out := make([]Cancer, 0, len(pages))
	for _, p := range pages {
		sum.Inc(ReasonPages)
		if p.CancerSeq <= 0 {
			sum.Inc(ReasonMissingSeq)
			continue
		}
		if seen[p.CancerSeq] {
			sum.Inc(ReasonDuplicateSeq)
			continue
		}
		seen[p.CancerSeq] = true
		tags, unknown := NormalizeTags(p.Tags)
		for _, u := range unknown {
			sum.Inc(ReasonUnknownTag)
			sum.Warn("cancer %d: unknown tag %q", p.CancerSeq, u)
		}
		out = append(out, Cancer{
			CancerSeq: p.CancerSeq,
			Name:      strings.TrimSpace(p.Name),
			Tags:      tags,
			KCDCodes:  []string{},
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no NCC cancer pages with a cancer_seq", pipeline.ErrEmptyResult)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CancerSeq < out[j].CancerSeq })
	return out, nil
}
