// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mdscan/internal/mineru"
)

// manifestFile is the per-batch metadata record written next to the merged
// Markdown.
const manifestFile = "manifest.yaml"

// Manifest records what went into one converted result.
type Manifest struct {
	BatchID    string         `yaml:"batch_id"`
	CreatedAt  time.Time      `yaml:"created_at"`
	ImageCount int            `yaml:"image_count"`
	Files      []ManifestItem `yaml:"files"`
}

// ManifestItem is one source file's outcome.
type ManifestItem struct {
	Name   string `yaml:"name"`
	DataID string `yaml:"data_id"`
	State  string `yaml:"state"`
	Error  string `yaml:"error,omitempty"`
}

func writeManifest(outputDir, batchID string, results []mineru.FileResult, imageCount int) error {
	m := Manifest{
		BatchID:    batchID,
		CreatedAt:  time.Now().UTC(),
		ImageCount: imageCount,
		Files:      make([]ManifestItem, len(results)),
	}
	for i, r := range results {
		m.Files[i] = ManifestItem{
			Name:   r.FileName,
			DataID: r.DataID,
			State:  string(r.State),
			Error:  r.ErrMsg,
		}
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, manifestFile), data, 0o644)
}
