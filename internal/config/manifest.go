package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arkilian/cpkpack/internal/cpk"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// ManifestFile is the name of the manifest inside an input directory.
const ManifestFile = "_meta.json"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Manifest describes one archive build: its layout options and the files
// to pack, in order.
type Manifest struct {
	Alignment        *int            `json:"alignment"`
	EncryptTables    *bool           `json:"encrypt-tables"`
	RandomizePadding *bool           `json:"randomize-padding"`
	Entries          []ManifestEntry `json:"entries"`
}

// ManifestEntry names one input file. Path is relative to the manifest's
// directory.
type ManifestEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// LoadManifest reads a UTF-8 manifest, with or without a byte order mark.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// LoadManifestDir reads the manifest of an input directory.
func LoadManifestDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, cpkerrors.Wrap(cpkerrors.ErrCategoryValidation, cpkerrors.CodeInvalidManifest,
			"manifest: failed to parse JSON", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the alignment and that every entry has a name and a
// path. Duplicate ids and names are left to the archive writer.
func (m *Manifest) Validate() error {
	if m.Alignment != nil && *m.Alignment <= 0 {
		return invalidManifest("alignment must be positive, got %d", *m.Alignment)
	}
	for i, e := range m.Entries {
		if e.Name == "" {
			return invalidManifest("entry %d has no name", i)
		}
		if e.Path == "" {
			return invalidManifest("entry %d (%q) has no path", i, e.Name)
		}
	}
	return nil
}

// ArchiveConfig overlays the manifest's options on base.
func (m *Manifest) ArchiveConfig(base cpk.Config) cpk.Config {
	cfg := base
	if m.Alignment != nil {
		cfg.Alignment = *m.Alignment
	}
	if m.EncryptTables != nil {
		cfg.CipherTables = *m.EncryptTables
	}
	if m.RandomizePadding != nil {
		cfg.RandomizePadding = *m.RandomizePadding
	}
	return cfg
}

func invalidManifest(format string, args ...interface{}) error {
	return cpkerrors.NewValidationError(cpkerrors.CodeInvalidManifest, fmt.Sprintf("manifest: "+format, args...))
}
