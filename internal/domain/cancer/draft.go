package cancer

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/medkg/medkg/internal/domain/disease"
)

// DraftRow is a keyword-matched suggestion for reviewers.
type DraftRow struct {
	CancerSeq  int
	CancerName string
	KCDCode    string
	KCDName    string
}

// Draft suggests KCD categories whose Korean name contains the cancer's
// organ word (the name without its trailing 암). The result only seeds a
// human review; nothing reads it back.
func Draft(cancers []Cancer, diseases []disease.Disease) []DraftRow {
	var out []DraftRow
	for _, c := range cancers {
		organ := strings.TrimSpace(strings.TrimSuffix(c.Name, "암"))
		if organ == "" {
			continue
		}
		for _, d := range diseases {
			if !d.IsCancer || strings.Contains(d.Code, ".") {
				continue
			}
			if strings.Contains(d.NameKr, organ) {
				out = append(out, DraftRow{
					CancerSeq:  c.CancerSeq,
					CancerName: c.Name,
					KCDCode:    d.Code,
					KCDName:    d.NameKr,
				})
			}
		}
	}
	return out
}

// EncodeDraft renders draft rows as UTF-8-BOM CSV in the reviewed-mapping
// column layout plus the KCD name and method for context.
func EncodeDraft(rows []DraftRow) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"cancer_seq", "cancer_name", "kcd_code", "kcd_name", "method"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.CancerSeq), r.CancerName, r.KCDCode, r.KCDName, MethodKeywordDraft}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
