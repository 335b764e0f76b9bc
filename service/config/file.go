package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// NewFile loads settings from a YAML file on top of the defaults, then
// applies environment variable overrides. An empty path skips the file.
func NewFile(path string) (IService, error) {
	settings := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, xerrors.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&settings); err != nil {
		return nil, xerrors.Errorf("parse env overrides: %w", err)
	}

	return NewFromSettings(settings)
}
