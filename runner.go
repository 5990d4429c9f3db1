package conda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
)

//go:generate faux --interface Executable --output fakes/executable.go
//go:generate faux --interface Bootstrapper --output fakes/bootstrapper.go

// Executable defines the interface for invoking an executable.
type Executable interface {
	Execute(execution pexec.Execution) error
}

// Bootstrapper defines the interface for making sure a working conda
// installation and environment directory exist before a command runs.
type Bootstrapper interface {
	Ensure(env Environment) error
}

// Reserved environment variable prefixes are stripped from the child
// process environment. Anything the caller exported for a different conda
// or python context would otherwise leak into the invocation.
var reservedEnvPrefixes = []string{"CONDA", "MAMBA", "PYTHON"}

// Runner executes conda subcommands with a sanitized process environment.
// Every invocation first ensures the installation has been bootstrapped.
type Runner struct {
	config     Config
	bootstrap  Bootstrapper
	executable Executable
	logger     scribe.Emitter
	output     io.Writer
}

// NewRunner creates a Runner given an Executable that runs conda.
func NewRunner(config Config, bootstrap Bootstrapper, executable Executable, logger scribe.Emitter, output io.Writer) Runner {
	return Runner{
		config:     config,
		bootstrap:  bootstrap,
		executable: executable,
		logger:     logger,
		output:     output,
	}
}

// Run executes a conda subcommand, streaming its output to the runner's
// output writer. A non-zero exit surfaces as an error; there are no
// retries.
func (r Runner) Run(env Environment, args ...string) error {
	if err := r.bootstrap.Ensure(env); err != nil {
		return err
	}

	commandEnv, err := r.CommandEnv(env)
	if err != nil {
		return err
	}

	args = r.globalArgs(args)
	err = r.executable.Execute(pexec.Execution{
		Args:   args,
		Env:    commandEnv,
		Stdout: r.output,
		Stderr: r.output,
	})
	if err != nil {
		return fmt.Errorf("conda %s failed: %w", strings.Join(args, " "), err)
	}

	return nil
}

// Output executes a conda subcommand and returns its captured stdout.
func (r Runner) Output(env Environment, args ...string) ([]byte, error) {
	if err := r.bootstrap.Ensure(env); err != nil {
		return nil, err
	}

	commandEnv, err := r.CommandEnv(env)
	if err != nil {
		return nil, err
	}

	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)

	args = r.globalArgs(args)
	err = r.executable.Execute(pexec.Execution{
		Args:   args,
		Env:    commandEnv,
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("conda %s failed: %w\n%s", strings.Join(args, " "), err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// RunJSON executes a conda subcommand with --json appended and decodes the
// captured stdout into out. Decode failures propagate as parse errors.
func (r Runner) RunJSON(env Environment, out interface{}, args ...string) error {
	output, err := r.Output(env, append(args, "--json")...)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(output, out); err != nil {
		return fmt.Errorf("failed to parse conda %s output: %w", strings.Join(args, " "), err)
	}

	return nil
}

// RunExecutable executes an arbitrary tool, typically the environment's own
// pip, with the same sanitized environment a conda invocation would get.
func (r Runner) RunExecutable(env Environment, executable Executable, args ...string) error {
	if err := r.bootstrap.Ensure(env); err != nil {
		return err
	}

	commandEnv, err := r.CommandEnv(env)
	if err != nil {
		return err
	}

	err = executable.Execute(pexec.Execution{
		Args:   args,
		Env:    commandEnv,
		Stdout: r.output,
		Stderr: r.output,
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", strings.Join(args, " "), err)
	}

	return nil
}

// CommandEnv builds the sanitized environment for an invocation targeting
// env: the ambient process environment minus the reserved variables, with
// the private channel config and active prefix injected.
func (r Runner) CommandEnv(env Environment) ([]string, error) {
	return commandEnv(r.config, env, os.Environ(), runtime.GOOS)
}

// -q is a per-subcommand flag, so it goes after the subcommand name; the
// top-level conda parser rejects it.
func (r Runner) globalArgs(args []string) []string {
	if r.config.Quiet && len(args) > 0 {
		quieted := make([]string, 0, len(args)+1)
		quieted = append(quieted, args[0], "-q")
		return append(quieted, args[1:]...)
	}
	return args
}

func commandEnv(config Config, env Environment, base []string, goos string) ([]string, error) {
	prefix, err := env.Prefix(config)
	if err != nil {
		return nil, err
	}

	condarc, err := env.CondarcPath(config)
	if err != nil {
		return nil, err
	}

	var result []string
	for _, variable := range base {
		if reservedEnvVar(variable) {
			continue
		}
		result = append(result, variable)
	}

	result = append(result, "CONDARC="+condarc)
	result = append(result, "CONDA_PREFIX="+prefix)

	if goos == "windows" {
		// conda and its entry points resolve each other through PATH on
		// Windows, so the environment's own directories must come first.
		prepend := strings.Join([]string{
			pythonDir(prefix, goos),
			scriptDir(prefix, goos),
			binDir(prefix, goos),
		}, string(os.PathListSeparator))

		replaced := false
		for i, variable := range result {
			name, value, ok := strings.Cut(variable, "=")
			if ok && strings.EqualFold(name, "PATH") {
				result[i] = name + "=" + prepend + string(os.PathListSeparator) + value
				replaced = true
				break
			}
		}
		if !replaced {
			result = append(result, "PATH="+prepend)
		}
	}

	return result, nil
}

func reservedEnvVar(variable string) bool {
	name, _, ok := strings.Cut(variable, "=")
	if !ok {
		return false
	}

	name = strings.ToUpper(name)
	for _, prefix := range reservedEnvPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}
