package conda

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

type environmentKind int

const (
	rootEnvironment environmentKind = iota
	namedEnvironment
	prefixEnvironment
)

// Environment identifies a conda environment: the root environment, a named
// environment underneath the root prefix, or an explicit prefix directory.
// Identity is purely nominal; every path below it is computed on demand and
// nothing is cached.
type Environment struct {
	kind   environmentKind
	name   string
	prefix string
}

// RootEnv returns a reference to the root environment.
func RootEnv() Environment {
	return Environment{kind: rootEnvironment}
}

// NamedEnv returns a reference to the environment called name, which lives
// at <root-prefix>/envs/<name>.
func NamedEnv(name string) Environment {
	return Environment{kind: namedEnvironment, name: name}
}

// PrefixEnv returns a reference to the environment rooted at the given
// directory. The directory must already exist when paths are resolved.
func PrefixEnv(path string) Environment {
	return Environment{kind: prefixEnvironment, prefix: path}
}

// IsRoot reports whether the reference designates the root environment.
func (e Environment) IsRoot() bool {
	return e.kind == rootEnvironment
}

// Name returns the environment name, or "base" for the root environment.
func (e Environment) Name() string {
	switch e.kind {
	case namedEnvironment:
		return e.name
	case prefixEnvironment:
		return filepath.Base(e.prefix)
	default:
		return "base"
	}
}

func (e Environment) String() string {
	if e.kind == prefixEnvironment {
		return e.prefix
	}
	return e.Name()
}

// Prefix resolves the environment's filesystem prefix. Named environments
// always resolve to <root-prefix>/envs/<name>; an empty name is invalid.
// Prefix environments must exist as a directory at resolution time.
func (e Environment) Prefix(config Config) (string, error) {
	switch e.kind {
	case namedEnvironment:
		if e.name == "" {
			return "", fmt.Errorf("environment name must not be empty")
		}
		return filepath.Join(config.RootPrefix, "envs", e.name), nil

	case prefixEnvironment:
		info, err := os.Stat(e.prefix)
		if err != nil {
			return "", fmt.Errorf("environment prefix %q does not exist: %w", e.prefix, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("environment prefix %q is not a directory", e.prefix)
		}
		return e.prefix, nil

	default:
		return config.RootPrefix, nil
	}
}

// BinDir resolves the directory that holds the environment's binaries.
func (e Environment) BinDir(config Config) (string, error) {
	prefix, err := e.Prefix(config)
	if err != nil {
		return "", err
	}
	return binDir(prefix, runtime.GOOS), nil
}

// ScriptDir resolves the directory that holds entry-point scripts such as
// pip. On POSIX systems this is the bin directory.
func (e Environment) ScriptDir(config Config) (string, error) {
	prefix, err := e.Prefix(config)
	if err != nil {
		return "", err
	}
	return scriptDir(prefix, runtime.GOOS), nil
}

// LibDir resolves the directory that holds the environment's libraries.
func (e Environment) LibDir(config Config) (string, error) {
	prefix, err := e.Prefix(config)
	if err != nil {
		return "", err
	}
	return libDir(prefix, runtime.GOOS), nil
}

// PythonDir resolves the directory that holds the python interpreter.
func (e Environment) PythonDir(config Config) (string, error) {
	prefix, err := e.Prefix(config)
	if err != nil {
		return "", err
	}
	return pythonDir(prefix, runtime.GOOS), nil
}

// CondarcPath resolves the environment's private channel configuration file.
func (e Environment) CondarcPath(config Config) (string, error) {
	prefix, err := e.Prefix(config)
	if err != nil {
		return "", err
	}
	return filepath.Join(prefix, CondarcName), nil
}

// Windows keeps binaries and libraries under Library\bin, entry-point
// scripts under Scripts, and the interpreter at the prefix itself. POSIX
// systems use the usual bin/lib layout for all of them.

func binDir(prefix, goos string) string {
	if goos == "windows" {
		return filepath.Join(prefix, "Library", "bin")
	}
	return filepath.Join(prefix, "bin")
}

func scriptDir(prefix, goos string) string {
	if goos == "windows" {
		return filepath.Join(prefix, "Scripts")
	}
	return binDir(prefix, goos)
}

func libDir(prefix, goos string) string {
	if goos == "windows" {
		return filepath.Join(prefix, "Library", "bin")
	}
	return filepath.Join(prefix, "lib")
}

func pythonDir(prefix, goos string) string {
	if goos == "windows" {
		return prefix
	}
	return binDir(prefix, goos)
}

func condaExe(rootPrefix, goos string) string {
	if goos == "windows" {
		return filepath.Join(rootPrefix, "Scripts", "conda.exe")
	}
	return filepath.Join(rootPrefix, "bin", "conda")
}

func pipExe(prefix, goos string) string {
	if goos == "windows" {
		return filepath.Join(scriptDir(prefix, goos), "pip.exe")
	}
	return filepath.Join(scriptDir(prefix, goos), "pip")
}
