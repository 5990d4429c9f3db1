package conda

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvironmentFile is a parsed environment.yml. Dependencies holds the raw
// entries: plain package specs decode as strings, nested sections such as
// the pip list decode as maps.
type EnvironmentFile struct {
	Name         string        `yaml:"name"`
	Channels     []string      `yaml:"channels"`
	Dependencies []interface{} `yaml:"dependencies"`
}

// ParseEnvironmentFile reads and decodes an environment.yml.
func ParseEnvironmentFile(path string) (EnvironmentFile, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return EnvironmentFile{}, fmt.Errorf("failed to read environment file: %w", err)
	}

	var file EnvironmentFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return EnvironmentFile{}, fmt.Errorf("failed to parse environment file %s: %w", path, err)
	}

	return file, nil
}

// PythonVersion returns the version pinned by a python=X.Y dependency, or
// an empty string when the file does not pin python.
func (f EnvironmentFile) PythonVersion() string {
	for _, dependency := range f.Dependencies {
		spec, ok := dependency.(string)
		if !ok {
			continue
		}

		name, version, ok := strings.Cut(spec, "=")
		if ok && name == "python" {
			return strings.TrimPrefix(version, "=")
		}
	}

	return ""
}

// CreateFromEnvironmentFile creates or updates env from an environment.yml.
// When env is the root sentinel the file's name field selects the target
// named environment instead; a file without a name is an error in that
// case.
func (c Conda) CreateFromEnvironmentFile(env Environment, path string) error {
	file, err := ParseEnvironmentFile(path)
	if err != nil {
		return err
	}

	if env.IsRoot() {
		if file.Name == "" {
			return fmt.Errorf("environment file %s has no name: pass a target environment", path)
		}
		env = NamedEnv(file.Name)
	}

	prefix, err := env.Prefix(c.config)
	if err != nil {
		return err
	}

	return c.runner.Run(env, "env", "update", "--prefix", prefix, "--file", path)
}
