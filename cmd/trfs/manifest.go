package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// manifest describes an archive build: which directories and individual
// files go in, and under which virtual paths.
//
//	codec: zstd
//	dirs:
//	  - assets
//	files:
//	  - source: art/car_final.png
//	    path: images/car.png
type manifest struct {
	Codec string         `yaml:"codec"`
	Dirs  []string       `yaml:"dirs"`
	Files []manifestFile `yaml:"files"`
}

// manifestFile maps one file on disk to a virtual path.
type manifestFile struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
}

// loadManifest reads the manifest at path. Relative sources and dirs are
// resolved against the manifest's directory.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, dir := range m.Dirs {
		m.Dirs[i] = resolve(base, dir)
	}
	for i := range m.Files {
		m.Files[i].Source = resolve(base, m.Files[i].Source)
	}
	return m, nil
}

// parseManifest decodes and validates manifest YAML. Unknown keys are
// rejected so typos do not silently drop files.
func parseManifest(data []byte) (*manifest, error) {
	var m manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	for i, f := range m.Files {
		if f.Source == "" {
			return nil, fmt.Errorf("files[%d]: missing source", i)
		}
		if f.Path == "" {
			return nil, fmt.Errorf("files[%d]: missing path", i)
		}
	}
	for i, dir := range m.Dirs {
		if dir == "" {
			return nil, fmt.Errorf("dirs[%d]: empty", i)
		}
	}
	return &m, nil
}

func resolve(base, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
