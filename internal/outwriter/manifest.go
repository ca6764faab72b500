package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/huangsam/ckscan/schema"
)

// Manifest file names inside the data directory.
const (
	ManifestJSONName = "repositories.json"
	ManifestCSVName  = "repositories.csv"
)

// ErrManifestMissing is returned when analysis starts before collection.
var ErrManifestMissing = errors.New("repository manifest not found; run collect first")

// WriteManifest writes the discovered repositories as JSON and CSV.
func WriteManifest(dir string, repos []schema.RepositoryDescriptor) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	jsonPath := filepath.Join(dir, ManifestJSONName)
	if err := writeWithFile(jsonPath, func(w io.Writer) error {
		return writeJSON(w, repos)
	}, "Wrote JSON"); err != nil {
		return err
	}

	csvPath := filepath.Join(dir, ManifestCSVName)
	return writeWithFile(csvPath, func(w io.Writer) error {
		return writeCSVWithHeader(w, schema.ManifestHeader, func(cw *csv.Writer) error {
			for _, repo := range repos {
				if err := cw.Write(repo.ManifestRow()); err != nil {
					return fmt.Errorf("failed to write manifest row: %w", err)
				}
			}
			return nil
		})
	}, "Wrote CSV")
}

// ReadManifest loads repositories.json from dir.
func ReadManifest(dir string) ([]schema.RepositoryDescriptor, error) {
	path := filepath.Join(dir, ManifestJSONName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrManifestMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var repos []schema.RepositoryDescriptor
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return repos, nil
}
