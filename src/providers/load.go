package providers

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"screen-capture-upload/src/uploader"
)

// File is the on-disk provider registry: one entry per configured backend
// with its saved authentication state.
type File struct {
	Providers []Entry `yaml:"providers"`
}

// Entry describes one registered provider.
type Entry struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"` // "s3" or "http"
	Enabled *bool         `yaml:"enabled"`
	S3      *S3Settings   `yaml:"s3,omitempty"`
	HTTP    *HTTPSettings `yaml:"http,omitempty"`
}

// LoadFile parses a providers file. A missing file is not an error: the
// tool then runs with an empty registry and saves captures locally.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}
	return &f, nil
}

// RegisterAll constructs and registers every entry of a providers file.
// Entries that fail to construct are skipped with a log line so one broken
// backend does not take the others down.
func RegisterAll(registry *uploader.Registry, path string) error {
	f, err := LoadFile(path)
	if err != nil {
		return err
	}

	for _, entry := range f.Providers {
		provider, err := build(entry)
		if err != nil {
			log.Printf("providers: skipping %q: %v", entry.Name, err)
			continue
		}
		if err := registry.Register(provider); err != nil {
			log.Printf("providers: skipping %q: %v", entry.Name, err)
			continue
		}
		if entry.Enabled != nil && !*entry.Enabled {
			registry.SetEnabled(entry.Name, false)
		}
		log.Printf("providers: registered %q (%s)", entry.Name, entry.Type)
	}
	return nil
}

func build(entry Entry) (uploader.Provider, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("provider entry without a name")
	}
	switch entry.Type {
	case "s3":
		if entry.S3 == nil {
			return nil, fmt.Errorf("s3 provider without s3 settings")
		}
		return NewS3Provider(entry.Name, *entry.S3)
	case "http":
		if entry.HTTP == nil {
			return nil, fmt.Errorf("http provider without http settings")
		}
		return NewHTTPProvider(entry.Name, *entry.HTTP)
	default:
		return nil, fmt.Errorf("unknown provider type %q", entry.Type)
	}
}
