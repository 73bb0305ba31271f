package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dqfoundry/dqengine/engine"
)

// LoadChecksFile loads check definitions from a YAML or JSON file. JSON
// parses as a YAML subset, so one decoder covers both. The result can be
// validated and built with engine.BuildRules. A missing file wraps
// ErrMissingFile.
func LoadChecksFile(path string) ([]engine.CheckSpec, error) {
	if path == "" {
		return nil, errors.New("checks file path must be provided")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checks file %s: %w", path, ErrMissingFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checks file %s: %w", path, err)
	}

	var specs []engine.CheckSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse checks file %s: %w", path, err)
	}

	slog.Debug("loaded checks file", "path", path, "checks", len(specs))
	return specs, nil
}

// SaveChecksFile writes check definitions to a YAML file.
func SaveChecksFile(path string, specs []engine.CheckSpec) error {
	data, err := yaml.Marshal(specs)
	if err != nil {
		return fmt.Errorf("failed to encode checks: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checks file %s: %w", path, err)
	}
	return nil
}
