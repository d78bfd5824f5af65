package assets

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed manifest/slots.yaml
var defaultManifest []byte

type manifestFile struct {
	Slots []Slot `yaml:"slots"`
}

// DefaultRegistry builds the registry from the embedded slot manifest.
func DefaultRegistry() (*Registry, error) {
	return LoadManifest(bytes.NewReader(defaultManifest))
}

// LoadManifest decodes a YAML slot manifest. Unknown fields are rejected.
func LoadManifest(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var mf manifestFile
	if err := dec.Decode(&mf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("assets: manifest is empty")
		}
		return nil, fmt.Errorf("assets: decode manifest: %w", err)
	}
	return NewRegistry(mf.Slots...)
}

// LoadManifestFile reads a manifest from disk.
func LoadManifestFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("assets: open manifest: %w", err)
	}
	defer f.Close()
	return LoadManifest(f)
}
