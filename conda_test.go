package conda_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/condakit/conda"
	"github.com/condakit/conda/fakes"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testOperations(t *testing.T, context spec.G, it spec.S) {
	var (
		Expect = NewWithT(t).Expect

		config    conda.Config
		env       conda.Environment
		condarc   string
		buffer    *bytes.Buffer
		runner    *fakes.CommandRunner
		bootstrap *fakes.Bootstrapper

		// canned JSON responses keyed by the joined subcommand
		responses map[string]string

		manager conda.Conda
	)

	it.Before(func() {
		config = conda.Config{RootPrefix: filepath.Join("some", "root")}
		env = conda.NamedEnv("science")
		condarc = filepath.Join("some", "root", "envs", "science", "condarc-condakit.yml")

		buffer = bytes.NewBuffer(nil)
		runner = &fakes.CommandRunner{}
		bootstrap = &fakes.Bootstrapper{}

		responses = map[string]string{}
		runner.RunJSONCall.Stub = func(env conda.Environment, out interface{}, args ...string) error {
			response, ok := responses[strings.Join(args, " ")]
			if !ok {
				return errors.New("unexpected subcommand")
			}
			return json.Unmarshal([]byte(response), out)
		}

		manager = conda.NewConda(config, runner, bootstrap, scribe.NewEmitter(buffer))
	})

	context("Add", func() {
		it("installs the packages", func() {
			err := manager.Add(env, "numpy", "pandas")
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Env).To(Equal(env))
			Expect(runner.RunCall.Receives.Args).To(Equal([]string{"install", "-y", "numpy", "pandas"}))
		})

		it("honors a channel override and extra flags", func() {
			err := manager.AddWithOptions(env, []string{"numpy"}, conda.AddOptions{
				Channel:   "conda-forge",
				ExtraArgs: []string{"--no-deps"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{"install", "-y", "-c", "conda-forge", "--no-deps", "numpy"}))
		})

		context("failure cases", func() {
			it.Before(func() {
				runner.RunCall.Returns.Error = errors.New("solver failed")
			})

			it("returns the error", func() {
				err := manager.Add(env, "numpy")
				Expect(err).To(MatchError("solver failed"))
			})
		})
	})

	context("Remove", func() {
		it("uninstalls the packages", func() {
			err := manager.Remove(env, "numpy")
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{"remove", "-y", "numpy"}))
		})
	})

	context("Update", func() {
		it("updates everything in the environment", func() {
			err := manager.Update(env)
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{"update", "-y", "--all"}))
		})

		it("also updates conda in the root environment", func() {
			err := manager.Update(conda.RootEnv())
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{"update", "-y", "--all", "conda"}))
		})
	})

	context("Create", func() {
		it("delegates to the bootstrapper", func() {
			err := manager.Create(env)
			Expect(err).NotTo(HaveOccurred())

			Expect(bootstrap.EnsureCall.CallCount).To(Equal(1))
			Expect(bootstrap.EnsureCall.Receives.Env).To(Equal(env))
		})
	})

	context("List", func() {
		it.Before(func() {
			responses["list"] = `[
				{"name": "numpy", "version": "1.26.4", "build_string": "py312h0", "channel": "defaults"},
				{"name": "custom", "version": "weird-version", "build_string": "0", "channel": "local"}
			]`
		})

		it("returns the installed packages", func() {
			packages, err := manager.List(env)
			Expect(err).NotTo(HaveOccurred())

			Expect(packages).To(HaveLen(2))
			Expect(packages[0].Name).To(Equal("numpy"))
			Expect(packages[0].Version).To(Equal(conda.PackageVersion{Raw: "1.26.4", Major: 1, Minor: 26, Patch: 4}))
			Expect(packages[0].BuildString).To(Equal("py312h0"))
			Expect(packages[0].Channel).To(Equal("defaults"))
		})

		it("degrades unparseable versions instead of failing", func() {
			packages, err := manager.List(env)
			Expect(err).NotTo(HaveOccurred())

			Expect(packages[1].Version.Unparseable).To(BeTrue())
			Expect(packages[1].Version.Raw).To(Equal("weird-version"))
			Expect(buffer.String()).To(ContainSubstring(`could not parse version "weird-version" of package custom`))
		})

		it("exposes just the names", func() {
			names, err := manager.InstalledNames(env)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"numpy", "custom"}))
		})
	})

	context("Version", func() {
		it.Before(func() {
			responses["list"] = `[
				{"name": "python", "version": "3.12.4", "build_string": "h0", "channel": "defaults"}
			]`
		})

		it("returns the version of the matching package", func() {
			version, err := manager.Version(env, "python")
			Expect(err).NotTo(HaveOccurred())
			Expect(version.String()).To(Equal("3.12.4"))
		})

		it("matches by name prefix", func() {
			version, err := manager.Version(env, "pyth")
			Expect(err).NotTo(HaveOccurred())
			Expect(version.Major).To(Equal(3))
		})

		it("reports missing packages", func() {
			_, err := manager.Version(env, "numpy")
			Expect(err).To(MatchError(conda.ErrPackageNotFound))
			Expect(err).To(MatchError(ContainSubstring("could not find package numpy")))
		})
	})

	context("Search", func() {
		it.Before(func() {
			responses["search numpy"] = `{
				"numpy": [{"version": "1.26.4"}, {"version": "2.0.1"}],
				"numpy-base": [{"version": "1.26.4"}]
			}`
		})

		it("returns the matching package names sorted", func() {
			names, err := manager.Search(env, "numpy")
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"numpy", "numpy-base"}))
		})

		it("filters by literal version", func() {
			names, err := manager.SearchWithVersion(env, "numpy", "2.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"numpy"}))
		})

		it("filters by parsed version equality", func() {
			responses["search numpy"] = `{"numpy": [{"version": "v2.0.1"}]}`

			names, err := manager.SearchWithVersion(env, "numpy", "2.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"numpy"}))
		})
	})

	context("Exists", func() {
		it.Before(func() {
			responses["search numpy"] = `{
				"numpy": [{"version": "1.26.4"}],
				"numpy-base": [{"version": "1.26.4"}]
			}`
		})

		it("finds a package by exact name", func() {
			exists, err := manager.Exists(env, "numpy")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		it("rejects a pinned version that is not available", func() {
			exists, err := manager.Exists(env, "numpy==9.9.9")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		it("accepts a pinned version that is available", func() {
			exists, err := manager.Exists(env, "numpy==1.26.4")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})
	})

	context("Channels", func() {
		it("reads the channels from the private channel config", func() {
			responses["config --get channels --file "+condarc] = `{"get": {"channels": ["conda-forge", "defaults"]}}`

			channels, err := manager.Channels(env)
			Expect(err).NotTo(HaveOccurred())
			Expect(channels).To(Equal([]string{"conda-forge", "defaults"}))
		})

		it("registers a channel", func() {
			err := manager.AddChannel(env, "bioconda")
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{
				"config", "--add", "channels", "bioconda", "--file", condarc, "--force",
			}))
		})

		it("removes a channel", func() {
			err := manager.RmChannel(env, "bioconda")
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{
				"config", "--remove", "channels", "bioconda", "--file", condarc, "--force",
			}))
		})
	})

	context("ExportList", func() {
		it.Before(func() {
			runner.OutputCall.Returns.ByteSlice = []byte("numpy=1.26.4=py312h0\n")
		})

		it("writes the explicit manifest", func() {
			out := bytes.NewBuffer(nil)
			err := manager.ExportList(env, out)
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.OutputCall.Receives.Args).To(Equal([]string{"list", "--export"}))
			Expect(out.String()).To(Equal("numpy=1.26.4=py312h0\n"))
		})

		it("writes the manifest to a file", func() {
			path := filepath.Join(t.TempDir(), "packages.txt")
			err := manager.ExportListFile(env, path)
			Expect(err).NotTo(HaveOccurred())

			contents, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(contents)).To(Equal("numpy=1.26.4=py312h0\n"))
		})
	})

	context("ImportList", func() {
		var runs [][]string

		it.Before(func() {
			runs = nil
			runner.RunCall.Stub = func(env conda.Environment, args ...string) error {
				runs = append(runs, args)
				return nil
			}
		})

		it("recreates the environment and re-registers channels in order", func() {
			err := manager.ImportList(env, "packages.txt", "conda-forge", "bioconda")
			Expect(err).NotTo(HaveOccurred())

			prefix := filepath.Join("some", "root", "envs", "science")
			Expect(runs).To(HaveLen(3))
			Expect(runs[0]).To(Equal([]string{
				"create", "-y", "-p", prefix,
				"-c", "conda-forge", "-c", "bioconda",
				"--file", "packages.txt",
			}))

			// --add prepends, so the last registration ends up first
			Expect(runs[1]).To(Equal([]string{"config", "--add", "channels", "bioconda", "--file", condarc, "--force"}))
			Expect(runs[2]).To(Equal([]string{"config", "--add", "channels", "conda-forge", "--file", condarc, "--force"}))
		})

		it("works without channels", func() {
			err := manager.ImportList(env, "packages.txt")
			Expect(err).NotTo(HaveOccurred())

			prefix := filepath.Join("some", "root", "envs", "science")
			Expect(runs).To(Equal([][]string{
				{"create", "-y", "-p", prefix, "--file", "packages.txt"},
			}))
		})
	})

	context("Pip", func() {
		it("toggles pip interop", func() {
			err := manager.PipInterop(env, true)
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{
				"config", "--set", "pip_interop_enabled", "true", "--file", condarc, "--force",
			}))
		})

		it("runs pip once interop is enabled", func() {
			responses["config --get pip_interop_enabled --file "+condarc] = `{"get": {"pip_interop_enabled": true}}`

			err := manager.Pip(env, "install", "requests", "flask")
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunExecutableCall.CallCount).To(Equal(1))
			Expect(runner.RunExecutableCall.Receives.Env).To(Equal(env))
			Expect(runner.RunExecutableCall.Receives.Args).To(Equal([]string{"install", "requests", "flask"}))
		})

		it("splits flags out of the pip command", func() {
			responses["config --get pip_interop_enabled --file "+condarc] = `{"get": {"pip_interop_enabled": true}}`

			err := manager.Pip(env, "uninstall -y", "requests")
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunExecutableCall.Receives.Args).To(Equal([]string{"uninstall", "-y", "requests"}))
		})

		it("refuses to run while interop is disabled", func() {
			responses["config --get pip_interop_enabled --file "+condarc] = `{"get": {"pip_interop_enabled": false}}`

			err := manager.Pip(env, "install", "requests")
			Expect(err).To(MatchError(conda.ErrPipInteropDisabled))
			Expect(err).To(MatchError(ContainSubstring("cannot run pip install in science")))
			Expect(runner.RunExecutableCall.CallCount).To(Equal(0))
		})
	})

	context("Clean", func() {
		it("removes the default cache selection", func() {
			err := manager.Clean(conda.DefaultCleanOptions())
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Env).To(Equal(conda.RootEnv()))
			Expect(runner.RunCall.Receives.Args).To(Equal([]string{"clean", "-y", "--index-cache", "--tarballs", "--packages"}))
		})

		it("maps every selected target to its flag", func() {
			err := manager.Clean(conda.CleanOptions{
				Debug:    true,
				Index:    true,
				Locks:    true,
				Tarballs: true,
				Packages: true,
				Sources:  true,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.Receives.Args).To(Equal([]string{
				"clean", "-y", "--debug", "--index-cache", "--locks", "--tarballs", "--packages", "--source-cache",
			}))
		})

		it("warns and does nothing without targets", func() {
			err := manager.Clean(conda.CleanOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.RunCall.CallCount).To(Equal(0))
			Expect(buffer.String()).To(ContainSubstring("no cleanup targets selected"))
		})
	})
}
