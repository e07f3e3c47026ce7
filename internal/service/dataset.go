package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeblew999/sichatas/internal/geodata"
)

// ErrDatasetNotFound is returned for names outside the catalog.
var ErrDatasetNotFound = errors.New("dataset not found")

// ErrSourceMissing is returned when a catalog dataset has no file on disk.
var ErrSourceMissing = errors.New("dataset source file missing")

// DatasetService serves catalog datasets from files in the sources directory.
type DatasetService struct {
	sourcesDir string
	catalog    geodata.Catalog
}

// NewDatasetService creates a dataset service reading {dataDir}/sources.
func NewDatasetService(dataDir string, catalog geodata.Catalog) *DatasetService {
	return &DatasetService{
		sourcesDir: filepath.Join(dataDir, "sources"),
		catalog:    catalog,
	}
}

// Catalog returns the dataset catalog.
func (s *DatasetService) Catalog() geodata.Catalog {
	return s.catalog
}

// List describes every catalog dataset and whether its file exists.
func (s *DatasetService) List() []DatasetFile {
	files := make([]DatasetFile, 0, len(s.catalog.Datasets))
	for _, ds := range s.catalog.Datasets {
		f := DatasetFile{
			Name:     ds.Name,
			Endpoint: "/api/" + ds.Endpoint,
			Label:    ds.Label,
			File:     ds.File,
		}
		if info, err := os.Stat(s.path(ds)); err == nil && !info.IsDir() {
			f.Available = true
			f.Size = formatSize(info.Size())
		}
		files = append(files, f)
	}
	return files
}

// Read returns the raw source bytes for the dataset served at endpoint.
// Validation happens in the client, which accepts both a feature collection
// and a bare feature array.
func (s *DatasetService) Read(endpoint string) (geodata.Dataset, []byte, error) {
	ds, ok := s.catalog.ByEndpoint(endpoint)
	if !ok {
		return geodata.Dataset{}, nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, endpoint)
	}
	data, err := os.ReadFile(s.path(ds))
	if err != nil {
		if os.IsNotExist(err) {
			return ds, nil, fmt.Errorf("%w: %s", ErrSourceMissing, ds.File)
		}
		return ds, nil, fmt.Errorf("reading %s: %w", ds.File, err)
	}
	return ds, data, nil
}

func (s *DatasetService) path(ds geodata.Dataset) string {
	return filepath.Join(s.sourcesDir, filepath.Base(ds.File))
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
