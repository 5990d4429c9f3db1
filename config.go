package conda

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config holds the constants resolved at setup time: where the conda
// installation lives, which installer release and flavor bootstrap it, and
// optionally an explicit conda executable. It is written once by Setup and
// read back by LoadConfig on every subsequent use.
type Config struct {
	// RootPrefix is the directory containing the conda installation and the
	// envs directory with all named environments.
	RootPrefix string `toml:"root-prefix"`

	// Version selects the installer release downloaded during bootstrap.
	// It only applies to the miniconda flavor; miniforge always uses the
	// latest release.
	Version string `toml:"version"`

	// Flavor is either FlavorMiniconda or FlavorMiniforge.
	Flavor string `toml:"flavor"`

	// CondaExe optionally points at an existing conda executable. When
	// empty the executable path is derived from RootPrefix.
	CondaExe string `toml:"conda-exe,omitempty"`

	// Quiet suppresses conda progress bars. It is detected from the CI
	// environment variable on every load and never persisted.
	Quiet bool `toml:"-"`
}

// CondaExePath returns the conda executable the binding invokes: the
// explicit override when one is configured, otherwise the root-prefix
// executable for the host platform.
func (c Config) CondaExePath() string {
	return c.condaExePath(runtime.GOOS)
}

func (c Config) condaExePath(goos string) string {
	if c.CondaExe != "" {
		return c.CondaExe
	}
	return condaExe(c.RootPrefix, goos)
}

// BuildConfigPath returns the location of the generated TOML file for the
// configured root prefix.
func (c Config) BuildConfigPath() string {
	return filepath.Join(c.RootPrefix, BuildConfigName)
}

func defaultRootPrefix() (string, error) {
	if root := os.Getenv(RootPrefixEnv); root != "" {
		return root, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	return filepath.Join(home, ".condakit"), nil
}

func configFromEnvironment() (Config, error) {
	root, err := defaultRootPrefix()
	if err != nil {
		return Config{}, err
	}

	config := Config{
		RootPrefix: root,
		Version:    DefaultMinicondaVersion,
		Flavor:     FlavorMiniforge,
		CondaExe:   os.Getenv(CondaExeEnv),
		Quiet:      os.Getenv(CIEnv) == "true",
	}

	if version := os.Getenv(VersionEnv); version != "" {
		config.Version = version
	}

	if os.Getenv(MiniforgeEnv) == "false" {
		config.Flavor = FlavorMiniconda
	}

	return config, nil
}

// Setup resolves the configuration from environment variables and defaults
// and persists it to <root-prefix>/condakit.toml. It is meant to run once
// per installation; rerunning it overwrites the previous file.
func Setup() (Config, error) {
	config, err := configFromEnvironment()
	if err != nil {
		return Config{}, err
	}

	if err := writeBuildConfig(config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// LoadConfig reads the persisted build configuration and applies the
// per-process environment overrides. It fails when the file is missing, and
// it fails loudly when a version override disagrees with an existing
// installation: an installed root prefix is never silently migrated to a
// different installer release.
func LoadConfig() (Config, error) {
	root, err := defaultRootPrefix()
	if err != nil {
		return Config{}, err
	}

	path := filepath.Join(root, BuildConfigName)

	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("build configuration %s is missing: run Setup first", path)
		}
		return Config{}, fmt.Errorf("failed to read build configuration %s: %w", path, err)
	}

	if version := os.Getenv(VersionEnv); version != "" && version != config.Version {
		if _, err := os.Stat(config.CondaExePath()); err == nil {
			return Config{}, fmt.Errorf(
				"requested installer version %s but %s was installed with %s: remove %s or unset %s",
				version, config.RootPrefix, config.Version, config.RootPrefix, VersionEnv)
		}

		config.Version = version
		if err := writeBuildConfig(config); err != nil {
			return Config{}, err
		}
	}

	if exe := os.Getenv(CondaExeEnv); exe != "" {
		config.CondaExe = exe
	}

	config.Quiet = os.Getenv(CIEnv) == "true"

	return config, nil
}

func writeBuildConfig(config Config) error {
	if err := os.MkdirAll(config.RootPrefix, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create root prefix: %w", err)
	}

	file, err := os.Create(config.BuildConfigPath())
	if err != nil {
		return fmt.Errorf("failed to write build configuration: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode build configuration: %w", err)
	}

	return nil
}
