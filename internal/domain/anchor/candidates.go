package anchor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/medkg/medkg/internal/platform/pipeline"
	"github.com/medkg/medkg/internal/platform/tabular"
)

// ReadCandidates loads candidate rows from a JSON array or a CSV/Excel
// table with en, ko, count, source and context columns.
func ReadCandidates(path string) ([]Candidate, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var cs []Candidate
		if err := pipeline.ReadJSON(path, &cs); err != nil {
			return nil, err
		}
		return cs, nil
	}

	t, err := tabular.ReadFile(path, tabular.Options{})
	if err != nil {
		return nil, err
	}
	enIdx, err := t.Require("en", "english", "term_en")
	if err != nil {
		return nil, err
	}
	koIdx, err := t.Require("ko", "korean", "term_ko")
	if err != nil {
		return nil, err
	}
	countIdx := t.Column("count", "freq", "frequency")
	sourceIdx := t.Column("source")
	contextIdx := t.Column("context", "snippet")

	out := make([]Candidate, 0, len(t.Rows))
	for i, row := range t.Rows {
		c := Candidate{
			EN:      tabular.Cell(row, enIdx),
			KO:      tabular.Cell(row, koIdx),
			Count:   1,
			Source:  tabular.Cell(row, sourceIdx),
			Context: tabular.Cell(row, contextIdx),
		}
		if raw := tabular.Cell(row, countIdx); raw != "" {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d: count %q is not an integer",
					pipeline.ErrInputFormat, path, i+1, raw)
			}
			c.Count = n
		}
		out = append(out, c)
	}
	return out, nil
}
