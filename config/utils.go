package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
)

// ToYaml formats the configuration into YAML and returns the bytes.
func ToYaml(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

// ToYamlFile writes the configuration to a YAML file.
func ToYamlFile(c Config, path string) error {
	b, err := ToYaml(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Parse parses a YAML doc into the given Config instance.
func Parse(raw []byte, conf *Config) error {
	if err := yaml.Unmarshal(raw, conf); err != nil {
		return fmt.Errorf("parsing config: %v", err)
	}
	return nil
}

// ParseFile parses a weir config file, which is formatted in YAML,
// into the given Config instance. An empty path parses nothing.
func ParseFile(relpath string, conf *Config) error {
	if relpath == "" {
		return nil
	}

	path, err := filepath.Abs(relpath)
	if err != nil {
		path = relpath
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config at %s: %v", path, err)
	}

	if err := Parse(source, conf); err != nil {
		return fmt.Errorf("config at %s: %v", path, err)
	}
	return nil
}
