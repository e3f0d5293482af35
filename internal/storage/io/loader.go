package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/rainpipe/pdfwatch/internal/model"
)

// ProfileYAMLRepository loads user profiles from YAML files.
type ProfileYAMLRepository struct {
	fs fs.FS
}

// NewProfileYAMLRepository creates a new YAML profile repository.
func NewProfileYAMLRepository(filesystem fs.FS) *ProfileYAMLRepository {
	return &ProfileYAMLRepository{fs: filesystem}
}

// GetProfile loads a profile from a YAML file and returns a validated domain model.
func (r *ProfileYAMLRepository) GetProfile(ctx context.Context, path string) (model.Profile, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Profile{}, fmt.Errorf("reading profile file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Profile{}, ctx.Err()
	}

	var p ProfileConfig
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.Profile{}, fmt.Errorf("parsing YAML: %w", err)
	}

	prof := p.toModel()
	if err := prof.Validate(); err != nil {
		return model.Profile{}, fmt.Errorf("invalid profile: %w", err)
	}

	return prof, nil
}

// ProfileConfig represents the YAML structure of a profile.
type ProfileConfig struct {
	API    APIConfig    `yaml:"api"`
	Kindle KindleConfig `yaml:"kindle"`
	DBPath string       `yaml:"db_path"`
}

// APIConfig represents the YAML structure of the PDF service settings.
type APIConfig struct {
	URL               string  `yaml:"url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// KindleConfig represents the YAML structure of the Kindle delivery settings.
type KindleConfig struct {
	Send  bool   `yaml:"send"`
	Email string `yaml:"email"`
}

func (c ProfileConfig) toModel() model.Profile {
	return model.Profile{
		APIURL:            c.API.URL,
		RequestsPerSecond: c.API.RequestsPerSecond,
		SendToKindle:      c.Kindle.Send,
		KindleEmail:       c.Kindle.Email,
		DBPath:            c.DBPath,
	}
}
