package conda_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/condakit/conda"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testEnvironment(t *testing.T, context spec.G, it spec.S) {
	var (
		Expect = NewWithT(t).Expect

		config conda.Config
	)

	it.Before(func() {
		config = conda.Config{RootPrefix: filepath.Join("some", "root")}
	})

	context("Prefix", func() {
		it("resolves the root environment to the root prefix", func() {
			prefix, err := conda.RootEnv().Prefix(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefix).To(Equal(filepath.Join("some", "root")))
		})

		it("resolves a named environment under envs", func() {
			prefix, err := conda.NamedEnv("myenv").Prefix(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefix).To(Equal(filepath.Join("some", "root", "envs", "myenv")))
		})

		it("resolves a prefix environment to an existing directory", func() {
			dir, err := os.MkdirTemp("", "prefix-env")
			Expect(err).NotTo(HaveOccurred())
			defer os.RemoveAll(dir)

			prefix, err := conda.PrefixEnv(dir).Prefix(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefix).To(Equal(dir))
		})

		context("failure cases", func() {
			context("when the environment name is empty", func() {
				it("returns an error", func() {
					_, err := conda.NamedEnv("").Prefix(config)
					Expect(err).To(MatchError(ContainSubstring("must not be empty")))
				})
			})

			context("when the prefix directory does not exist", func() {
				it("returns an error", func() {
					_, err := conda.PrefixEnv(filepath.Join("no", "such", "dir")).Prefix(config)
					Expect(err).To(MatchError(ContainSubstring("does not exist")))
				})
			})

			context("when the prefix is a file", func() {
				it("returns an error", func() {
					file, err := os.CreateTemp("", "prefix-env")
					Expect(err).NotTo(HaveOccurred())
					defer os.Remove(file.Name())
					Expect(file.Close()).To(Succeed())

					_, err = conda.PrefixEnv(file.Name()).Prefix(config)
					Expect(err).To(MatchError(ContainSubstring("is not a directory")))
				})
			})
		})
	})

	context("directory layout", func() {
		it("resolves the standard subdirectories", func() {
			env := conda.NamedEnv("myenv")
			prefix := filepath.Join("some", "root", "envs", "myenv")

			binDir, err := env.BinDir(config)
			Expect(err).NotTo(HaveOccurred())

			scriptDir, err := env.ScriptDir(config)
			Expect(err).NotTo(HaveOccurred())

			libDir, err := env.LibDir(config)
			Expect(err).NotTo(HaveOccurred())

			pythonDir, err := env.PythonDir(config)
			Expect(err).NotTo(HaveOccurred())

			condarc, err := env.CondarcPath(config)
			Expect(err).NotTo(HaveOccurred())

			if runtime.GOOS == "windows" {
				Expect(binDir).To(Equal(filepath.Join(prefix, "Library", "bin")))
				Expect(scriptDir).To(Equal(filepath.Join(prefix, "Scripts")))
				Expect(libDir).To(Equal(filepath.Join(prefix, "Library", "bin")))
				Expect(pythonDir).To(Equal(prefix))
			} else {
				Expect(binDir).To(Equal(filepath.Join(prefix, "bin")))
				Expect(scriptDir).To(Equal(filepath.Join(prefix, "bin")))
				Expect(libDir).To(Equal(filepath.Join(prefix, "lib")))
				Expect(pythonDir).To(Equal(filepath.Join(prefix, "bin")))
			}

			Expect(condarc).To(Equal(filepath.Join(prefix, "condarc-condakit.yml")))
		})
	})

	context("Name", func() {
		it("names the root environment base", func() {
			Expect(conda.RootEnv().Name()).To(Equal("base"))
			Expect(conda.RootEnv().IsRoot()).To(BeTrue())
		})

		it("names environments after their reference", func() {
			Expect(conda.NamedEnv("myenv").Name()).To(Equal("myenv"))
			Expect(conda.PrefixEnv(filepath.Join("some", "place", "env")).Name()).To(Equal("env"))
		})
	})
}
