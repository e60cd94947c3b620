package graph

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/medkg/medkg/internal/domain/biomarker"
	"github.com/medkg/medkg/internal/domain/cancer"
	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/domain/procedure"
	"github.com/medkg/medkg/internal/domain/regimen"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Bridges is every bridge the assembler reads. A nil slice means the file
// was absent; an empty one means it was present with no records.
type Bridges struct {
	Diseases   []disease.Disease
	Procedures []procedure.Procedure
	Cancers    []cancer.Cancer
	CancerKCD  []cancer.Mapping
	Drugs      []drug.Ingredient
	Biomarkers []biomarker.Biomarker
	Tests      []biomarker.Test
	Mappings   []biomarker.Mapping
	Regimens   []regimen.Regimen

	Files   []string
	Missing []string
}

// LoadBridges reads the bridge directory. Absent files are recorded in
// Missing; it fails with ErrMissingInput only when nothing is present.
func LoadBridges(dir string) (*Bridges, error) {
	b := &Bridges{}
	var mappings biomarker.MappingFile
	files := []struct {
		name string
		dst  any
	}{
		{disease.DiseasesFile, &b.Diseases},
		{procedure.ProceduresFile, &b.Procedures},
		{cancer.CancersFile, &b.Cancers},
		{cancer.MappingFile, &b.CancerKCD},
		{drug.MasterFile, &b.Drugs},
		{biomarker.BiomarkersFile, &b.Biomarkers},
		{biomarker.TestsFile, &b.Tests},
		{biomarker.MappingsFile, &mappings},
		{regimen.RegimensFile, &b.Regimens},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		err := pipeline.ReadJSON(path, f.dst)
		switch {
		case errors.Is(err, pipeline.ErrMissingInput):
			b.Missing = append(b.Missing, f.name)
		case err != nil:
			return nil, err
		default:
			b.Files = append(b.Files, path)
		}
	}
	if len(b.Files) == 0 {
		return nil, fmt.Errorf("%w: no bridges in %s", pipeline.ErrMissingInput, dir)
	}
	b.Mappings = mappings.Mappings
	b.fillEmpty()
	return b, nil
}

// fillEmpty turns present-but-null JSON arrays into empty slices so that
// presence is decided by the file alone.
func (b *Bridges) fillEmpty() {
	present := make(map[string]bool, len(b.Files))
	for _, f := range b.Files {
		present[filepath.Base(f)] = true
	}
	if present[disease.DiseasesFile] && b.Diseases == nil {
		b.Diseases = []disease.Disease{}
	}
	if present[procedure.ProceduresFile] && b.Procedures == nil {
		b.Procedures = []procedure.Procedure{}
	}
	if present[cancer.CancersFile] && b.Cancers == nil {
		b.Cancers = []cancer.Cancer{}
	}
	if present[cancer.MappingFile] && b.CancerKCD == nil {
		b.CancerKCD = []cancer.Mapping{}
	}
	if present[drug.MasterFile] && b.Drugs == nil {
		b.Drugs = []drug.Ingredient{}
	}
	if present[biomarker.BiomarkersFile] && b.Biomarkers == nil {
		b.Biomarkers = []biomarker.Biomarker{}
	}
	if present[biomarker.TestsFile] && b.Tests == nil {
		b.Tests = []biomarker.Test{}
	}
	if present[biomarker.MappingsFile] && b.Mappings == nil {
		b.Mappings = []biomarker.Mapping{}
	}
	if present[regimen.RegimensFile] && b.Regimens == nil {
		b.Regimens = []regimen.Regimen{}
	}
}
