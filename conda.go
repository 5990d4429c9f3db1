package conda

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/paketo-buildpacks/packit/v2/cargo"
	"github.com/paketo-buildpacks/packit/v2/chronos"
	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
)

//go:generate faux --interface CommandRunner --output fakes/command_runner.go

// CommandRunner defines the interface for executing conda subcommands on
// behalf of the package and channel operations.
type CommandRunner interface {
	Run(env Environment, args ...string) error
	Output(env Environment, args ...string) ([]byte, error)
	RunJSON(env Environment, out interface{}, args ...string) error
	RunExecutable(env Environment, executable Executable, args ...string) error
}

// ErrPackageNotFound is returned by Version when no installed package
// matches the requested name.
var ErrPackageNotFound = errors.New("package not found")

// ErrPipInteropDisabled is returned by Pip when pip interoperability has
// not been enabled for the target environment.
var ErrPipInteropDisabled = errors.New("pip interop is not enabled")

// Conda exposes the package manager operations. Every operation is a
// stateless request against the external conda executable; pass RootEnv()
// to target the default environment.
type Conda struct {
	config    Config
	runner    CommandRunner
	bootstrap Bootstrapper
	logger    scribe.Emitter
}

// New wires up a Conda with the default runner, installer and transport,
// logging to stdout.
func New(config Config) Conda {
	logger := scribe.NewEmitter(os.Stdout)
	executable := pexec.NewExecutable(config.CondaExePath())
	installer := NewInstaller(config, cargo.NewTransport(), pexec.NewExecutable("bash"), executable, logger, chronos.DefaultClock)
	runner := NewRunner(config, installer, executable, logger, os.Stdout)

	return NewConda(config, runner, installer, logger)
}

// NewConda creates a Conda from explicit collaborators.
func NewConda(config Config, runner CommandRunner, bootstrap Bootstrapper, logger scribe.Emitter) Conda {
	return Conda{
		config:    config,
		runner:    runner,
		bootstrap: bootstrap,
		logger:    logger,
	}
}

// AddOptions adjusts how packages are installed.
type AddOptions struct {
	// Channel overrides the configured channels for this installation.
	Channel string

	// ExtraArgs are passed to conda install verbatim, before the package
	// specs. This is the escape hatch for solver flags.
	ExtraArgs []string
}

// Add installs one or more packages into env.
func (c Conda) Add(env Environment, packages ...string) error {
	return c.AddWithOptions(env, packages, AddOptions{})
}

// AddWithOptions installs packages with an optional channel override and
// extra conda install flags.
func (c Conda) AddWithOptions(env Environment, packages []string, options AddOptions) error {
	args := []string{"install", "-y"}
	if options.Channel != "" {
		args = append(args, "-c", options.Channel)
	}
	args = append(args, options.ExtraArgs...)
	args = append(args, packages...)

	return c.runner.Run(env, args...)
}

// Remove uninstalls one or more packages from env.
func (c Conda) Remove(env Environment, packages ...string) error {
	args := append([]string{"remove", "-y"}, packages...)
	return c.runner.Run(env, args...)
}

// Update updates all packages in env. The root environment additionally
// updates conda itself.
func (c Conda) Update(env Environment) error {
	args := []string{"update", "-y", "--all"}
	if env.IsRoot() {
		args = append(args, "conda")
	}

	return c.runner.Run(env, args...)
}

// Create makes sure env exists, creating it when necessary.
func (c Conda) Create(env Environment) error {
	return c.bootstrap.Ensure(env)
}

type listEntry struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	BuildString string `json:"build_string"`
	Channel     string `json:"channel"`
}

// List returns the packages installed in env. Version strings that fail to
// parse degrade to the Unparseable variant instead of failing the listing.
func (c Conda) List(env Environment) ([]Package, error) {
	var entries []listEntry
	if err := c.runner.RunJSON(env, &entries, "list"); err != nil {
		return nil, err
	}

	var packages []Package
	for _, entry := range entries {
		version := ParsePackageVersion(entry.Version)
		if version.Unparseable {
			c.logger.Detail("could not parse version %q of package %s", entry.Version, entry.Name)
		}

		packages = append(packages, Package{
			Name:        entry.Name,
			Version:     version,
			BuildString: entry.BuildString,
			Channel:     entry.Channel,
		})
	}

	return packages, nil
}

// InstalledNames returns the names of the packages installed in env.
func (c Conda) InstalledNames(env Environment) ([]string, error) {
	packages, err := c.List(env)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(packages))
	for _, pkg := range packages {
		names = append(names, pkg.Name)
	}

	return names, nil
}

// Version returns the version of the first installed package whose name
// starts with name, or ErrPackageNotFound.
func (c Conda) Version(env Environment, name string) (PackageVersion, error) {
	packages, err := c.List(env)
	if err != nil {
		return PackageVersion{}, err
	}

	for _, pkg := range packages {
		if strings.HasPrefix(pkg.Name, name) {
			return pkg.Version, nil
		}
	}

	return PackageVersion{}, fmt.Errorf("could not find package %s: %w", name, ErrPackageNotFound)
}

type searchEntry struct {
	Version string `json:"version"`
}

// Search queries the package index for the given match spec and returns
// the names of matching packages.
func (c Conda) Search(env Environment, spec string) ([]string, error) {
	return c.SearchWithVersion(env, spec, "")
}

// SearchWithVersion queries the package index and keeps only packages that
// provide the requested version, matched either literally or by parsed
// equality. An empty version keeps everything.
func (c Conda) SearchWithVersion(env Environment, spec, version string) ([]string, error) {
	var results map[string][]searchEntry
	if err := c.runner.RunJSON(env, &results, "search", spec); err != nil {
		return nil, err
	}

	wanted := ParsePackageVersion(version)

	var names []string
	for name, entries := range results {
		if version == "" {
			names = append(names, name)
			continue
		}

		for _, entry := range entries {
			if entry.Version == version {
				names = append(names, name)
				break
			}

			found := ParsePackageVersion(entry.Version)
			if !found.Unparseable && !wanted.Unparseable && found.Equal(wanted) {
				names = append(names, name)
				break
			}
		}
	}

	sort.Strings(names)

	return names, nil
}

// Exists reports whether a package matching spec is available. The spec may
// pin an exact version with the name==version syntax.
func (c Conda) Exists(env Environment, spec string) (bool, error) {
	name, version, pinned := strings.Cut(spec, "==")

	var names []string
	var err error
	if pinned {
		names, err = c.SearchWithVersion(env, name, version)
	} else {
		names, err = c.Search(env, name)
	}
	if err != nil {
		return false, err
	}

	for _, found := range names {
		if found == name {
			return true, nil
		}
	}

	return false, nil
}

type configGetResult struct {
	Get struct {
		Channels          []string `json:"channels"`
		PipInteropEnabled bool     `json:"pip_interop_enabled"`
	} `json:"get"`
}

// Channels returns the channels registered in env's private channel
// configuration, in priority order.
func (c Conda) Channels(env Environment) ([]string, error) {
	condarc, err := env.CondarcPath(c.config)
	if err != nil {
		return nil, err
	}

	var result configGetResult
	err = c.runner.RunJSON(env, &result, "config", "--get", "channels", "--file", condarc)
	if err != nil {
		return nil, err
	}

	return result.Get.Channels, nil
}

// AddChannel registers a channel at the top of env's private channel
// configuration. Adding an already-registered channel is idempotent.
func (c Conda) AddChannel(env Environment, channel string) error {
	condarc, err := env.CondarcPath(c.config)
	if err != nil {
		return err
	}

	return c.runner.Run(env, "config", "--add", "channels", channel, "--file", condarc, "--force")
}

// RmChannel removes a channel from env's private channel configuration.
func (c Conda) RmChannel(env Environment, channel string) error {
	condarc, err := env.CondarcPath(c.config)
	if err != nil {
		return err
	}

	return c.runner.Run(env, "config", "--remove", "channels", channel, "--file", condarc, "--force")
}

// ExportList writes env's explicit package manifest, one name=version=build
// triple per line, to out.
func (c Conda) ExportList(env Environment, out io.Writer) error {
	manifest, err := c.runner.Output(env, "list", "--export")
	if err != nil {
		return err
	}

	if _, err := out.Write(manifest); err != nil {
		return fmt.Errorf("failed to write package manifest: %w", err)
	}

	return nil
}

// ExportListFile writes env's explicit package manifest to the given path.
func (c Conda) ExportListFile(env Environment, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create package manifest: %w", err)
	}
	defer file.Close()

	return c.ExportList(env, file)
}

// ImportList creates env from a package manifest written by ExportList.
// The manifest format does not record channels, so the given channels are
// both used for the installation and re-registered afterwards; Channels
// then reports them in the order given here.
func (c Conda) ImportList(env Environment, path string, channels ...string) error {
	prefix, err := env.Prefix(c.config)
	if err != nil {
		return err
	}

	args := []string{"create", "-y", "-p", prefix}
	for _, channel := range channels {
		args = append(args, "-c", channel)
	}
	args = append(args, "--file", path)

	if err := c.runner.Run(env, args...); err != nil {
		return err
	}

	// config --add prepends, so register in reverse to preserve order.
	for i := len(channels) - 1; i >= 0; i-- {
		if err := c.AddChannel(env, channels[i]); err != nil {
			return err
		}
	}

	return nil
}

// PipInterop toggles whether the conda solver acknowledges pip-installed
// packages in env. Pip refuses to run until this has been enabled.
func (c Conda) PipInterop(env Environment, enabled bool) error {
	condarc, err := env.CondarcPath(c.config)
	if err != nil {
		return err
	}

	return c.runner.Run(env, "config", "--set", "pip_interop_enabled", strconv.FormatBool(enabled), "--file", condarc, "--force")
}

// Pip runs env's pip executable with the given command and package specs.
// The command may carry flags, e.g. "uninstall -y". It fails with
// ErrPipInteropDisabled unless PipInterop(env, true) was called first.
func (c Conda) Pip(env Environment, command string, packages ...string) error {
	enabled, err := c.pipInteropEnabled(env)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("cannot run pip %s in %s: %w", command, env, ErrPipInteropDisabled)
	}

	prefix, err := env.Prefix(c.config)
	if err != nil {
		return err
	}

	args := append(strings.Fields(command), packages...)

	return c.runner.RunExecutable(env, c.pipExecutable(prefix), args...)
}

func (c Conda) pipInteropEnabled(env Environment) (bool, error) {
	condarc, err := env.CondarcPath(c.config)
	if err != nil {
		return false, err
	}

	var result configGetResult
	err = c.runner.RunJSON(env, &result, "config", "--get", "pip_interop_enabled", "--file", condarc)
	if err != nil {
		return false, err
	}

	return result.Get.PipInteropEnabled, nil
}

// CleanOptions selects which conda caches Clean removes.
type CleanOptions struct {
	// Debug turns on verbose cleanup output. It is not a cleanup target on
	// its own.
	Debug bool

	Index    bool
	Locks    bool
	Tarballs bool
	Packages bool
	Sources  bool
}

// DefaultCleanOptions removes the index cache, unused tarballs and unused
// package dirs.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{Index: true, Tarballs: true, Packages: true}
}

// Clean removes the selected conda caches from the root installation. When
// no cleanup target is selected it warns and does nothing.
func (c Conda) Clean(options CleanOptions) error {
	if !options.Index && !options.Locks && !options.Tarballs && !options.Packages && !options.Sources {
		c.logger.Process("WARNING: no cleanup targets selected, nothing to clean")
		return nil
	}

	args := []string{"clean", "-y"}
	if options.Debug {
		args = append(args, "--debug")
	}
	if options.Index {
		args = append(args, "--index-cache")
	}
	if options.Locks {
		args = append(args, "--locks")
	}
	if options.Tarballs {
		args = append(args, "--tarballs")
	}
	if options.Packages {
		args = append(args, "--packages")
	}
	if options.Sources {
		args = append(args, "--source-cache")
	}

	return c.runner.Run(RootEnv(), args...)
}

func (c Conda) pipExecutable(prefix string) Executable {
	return pexec.NewExecutable(pipExe(prefix, runtime.GOOS))
}
