package conda

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/paketo-buildpacks/packit/v2/chronos"
	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
)

//go:generate faux --interface Downloader --output fakes/downloader.go

// Downloader defines the interface for fetching the installer archive.
type Downloader interface {
	Drop(root, uri string) (io.ReadCloser, error)
}

// Installer bootstraps a conda installation: it downloads the
// platform-specific installer, runs it non-interactively into the root
// prefix, and creates missing named environments. It implements the
// Bootstrapper interface consumed by the Runner.
type Installer struct {
	config    Config
	transport Downloader
	shell     Executable
	conda     Executable
	logger    scribe.Emitter
	clock     chronos.Clock
}

// NewInstaller creates an Installer given a Downloader for the installer
// archive, an Executable that runs `bash`, and an Executable that runs the
// conda binary for the post-install steps.
func NewInstaller(config Config, transport Downloader, shell Executable, conda Executable, logger scribe.Emitter, clock chronos.Clock) Installer {
	return Installer{
		config:    config,
		transport: transport,
		shell:     shell,
		conda:     conda,
		logger:    logger,
		clock:     clock,
	}
}

// Ensure guarantees that a working conda executable exists under the root
// prefix and that env's directory exists, installing and creating as
// needed. Running it against an installed root is a no-op check.
func (i Installer) Ensure(env Environment) error {
	if err := i.Install(false); err != nil {
		return err
	}

	if env.IsRoot() {
		return nil
	}

	prefix, err := env.Prefix(i.config)
	if err != nil {
		return err
	}

	if _, err := os.Stat(prefix); err == nil {
		return nil
	}

	i.logger.Process("Creating environment %s", env.Name())

	commandEnv, err := commandEnv(i.config, env, os.Environ(), runtime.GOOS)
	if err != nil {
		return err
	}

	err = i.conda.Execute(pexec.Execution{
		Args: []string{"create", "-y", "-q", "-p", prefix},
		Env:  commandEnv,
	})
	if err != nil {
		return fmt.Errorf("failed to create environment %s: %w", env.Name(), err)
	}

	return nil
}

// Install bootstraps the root installation. When force is false and the
// conda executable is already present this only validates that the
// executable lives under the root prefix.
func (i Installer) Install(force bool) error {
	exePath := i.config.CondaExePath()

	rel, err := filepath.Rel(i.config.RootPrefix, exePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("conda executable %s is not inside the root prefix %s", exePath, i.config.RootPrefix)
	}

	if !force {
		if _, err := os.Stat(exePath); err == nil {
			return nil
		}
	}

	uri, err := installerURI(i.config, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	i.logger.Process("Installing %s", i.config.Flavor)
	i.logger.Subprocess("Downloading %s", uri)

	var installerPath string
	duration, err := i.clock.Measure(func() error {
		installerPath, err = i.download(uri)
		return err
	})
	if err != nil {
		return err
	}

	i.logger.Action("Completed in %s", duration.Round(time.Millisecond))
	i.logger.Break()

	defer os.Remove(installerPath)

	i.logger.Subprocess("Running installer")

	duration, err = i.clock.Measure(func() error {
		return i.runInstaller(installerPath)
	})
	if err != nil {
		return err
	}

	i.logger.Action("Completed in %s", duration.Round(time.Millisecond))
	i.logger.Break()

	return i.postInstall()
}

func (i Installer) download(uri string) (string, error) {
	source, err := i.transport.Drop("", uri)
	if err != nil {
		return "", fmt.Errorf("failed to download installer: %w", err)
	}
	defer source.Close()

	file, err := os.CreateTemp("", "condakit-installer-*"+installerExt(runtime.GOOS))
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, source); err != nil {
		return "", fmt.Errorf("failed to write installer: %w", err)
	}

	if err := os.Chmod(file.Name(), 0550); err != nil {
		return "", err
	}

	return file.Name(), nil
}

func (i Installer) runInstaller(installerPath string) error {
	if err := os.MkdirAll(filepath.Dir(i.config.RootPrefix), os.ModePerm); err != nil {
		return err
	}

	var err error
	if runtime.GOOS == "windows" {
		// The Windows installer is itself the executable. Shortcuts,
		// registry entries and PATH edits are all suppressed.
		err = pexec.NewExecutable(installerPath).Execute(pexec.Execution{
			Args: []string{
				"/S",
				"/InstallationType=JustMe",
				"/AddToPath=0",
				"/RegisterPython=0",
				"/NoShortcuts=1",
				"/D=" + i.config.RootPrefix,
			},
		})
	} else {
		err = i.shell.Execute(pexec.Execution{
			Args: []string{
				installerPath,
				"-b",
				"-f",
				"-p", i.config.RootPrefix,
			},
		})
	}
	if err != nil {
		return fmt.Errorf("failed while running %s install script: %w", i.config.Flavor, err)
	}

	return nil
}

// postInstall registers the default channel in the root environment's
// private channel config and self-updates conda.
func (i Installer) postInstall() error {
	condarc, err := RootEnv().CondarcPath(i.config)
	if err != nil {
		return err
	}

	rootEnv, err := commandEnv(i.config, RootEnv(), os.Environ(), runtime.GOOS)
	if err != nil {
		return err
	}

	i.logger.Subprocess("Registering channel %s", DefaultChannel)

	err = i.conda.Execute(pexec.Execution{
		Args: []string{"config", "--add", "channels", DefaultChannel, "--file", condarc, "--force"},
		Env:  rootEnv,
	})
	if err != nil {
		return fmt.Errorf("failed to register channel %s: %w", DefaultChannel, err)
	}

	i.logger.Subprocess("Updating conda")

	err = i.conda.Execute(pexec.Execution{
		Args: []string{"update", "-y", "-q", "conda"},
		Env:  rootEnv,
	})
	if err != nil {
		return fmt.Errorf("failed to update conda: %w", err)
	}

	return nil
}

func installerURI(config Config, goos, goarch string) (string, error) {
	platform, err := installerPlatform(goos, goarch)
	if err != nil {
		return "", err
	}

	ext := installerExt(goos)

	if config.Flavor == FlavorMiniforge {
		return fmt.Sprintf("https://github.com/conda-forge/miniforge/releases/latest/download/Miniforge3-%s%s", platform, ext), nil
	}

	return fmt.Sprintf("https://repo.anaconda.com/miniconda/Miniconda3-%s-%s%s", config.Version, platform, ext), nil
}

func installerPlatform(goos, goarch string) (string, error) {
	platforms := map[string]string{
		"linux/amd64":   "Linux-x86_64",
		"linux/arm64":   "Linux-aarch64",
		"linux/ppc64le": "Linux-ppc64le",
		"darwin/amd64":  "MacOSX-x86_64",
		"darwin/arm64":  "MacOSX-arm64",
		"windows/amd64": "Windows-x86_64",
	}

	platform, ok := platforms[goos+"/"+goarch]
	if !ok {
		return "", fmt.Errorf("unsupported platform %s/%s", goos, goarch)
	}

	return platform, nil
}

func installerExt(goos string) string {
	if goos == "windows" {
		return ".exe"
	}
	return ".sh"
}
