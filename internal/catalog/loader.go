package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/clinlab/amrclassify/internal/domain"
)

// LoadPath reads, merges, and builds the catalog at path without
// publishing it anywhere. It is used by the rules dry-run CLI
// subcommand, which needs to inspect a candidate catalog without ever
// affecting the running Store's published snapshot.
func LoadPath(path string, maxFileSizeBytes int64) (*domain.RuleCatalog, error) {
	files, err := collectFilesAt(path)
	if err != nil {
		return nil, domain.NewLoadError(domain.ErrCodeFileMissing, err.Error(), nil)
	}
	if len(files) == 0 {
		return nil, domain.NewLoadError(domain.ErrCodeFileMissing, fmt.Sprintf("no catalog files found under %s", path), nil)
	}

	merged := document{}
	for _, f := range files {
		if maxFileSizeBytes > 0 {
			info, err := os.Stat(f)
			if err != nil {
				return nil, domain.NewLoadError(domain.ErrCodeFileMissing, err.Error(), nil)
			}
			if info.Size() > maxFileSizeBytes {
				return nil, domain.NewLoadError(domain.ErrCodeParseError, fmt.Sprintf("%s exceeds max catalog file size of %d bytes", f, maxFileSizeBytes), nil)
			}
		}
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, domain.NewLoadError(domain.ErrCodeFileMissing, err.Error(), nil)
		}
		var doc document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, domain.NewLoadError(domain.ErrCodeParseError, fmt.Sprintf("%s: %v", f, err), nil)
		}
		merged.merge(doc)
	}

	if violations := validate(&merged); len(violations) > 0 {
		return nil, domain.NewLoadError(domain.ErrCodeSchemaViolation, "catalog failed validation", violations)
	}

	versionLabel := merged.Version
	if versionLabel == "" {
		versionLabel = "unversioned"
	}
	return build(&merged, versionLabel), nil
}

// Validate reads and merges the catalog at path and returns every
// violation found, without requiring the build step to succeed.
func Validate(path string) ([]domain.ValidationError, error) {
	files, err := collectFilesAt(path)
	if err != nil {
		return nil, err
	}
	merged := document{}
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		var doc document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		merged.merge(doc)
	}
	return validate(&merged), nil
}

func collectFilesAt(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".json":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
