package fakes

import (
	"sync"

	"github.com/condakit/conda"
)

type CommandRunner struct {
	RunCall struct {
		sync.Mutex
		CallCount int
		Receives  struct {
			Env  conda.Environment
			Args []string
		}
		Returns struct {
			Error error
		}
		Stub func(conda.Environment, ...string) error
	}
	OutputCall struct {
		sync.Mutex
		CallCount int
		Receives  struct {
			Env  conda.Environment
			Args []string
		}
		Returns struct {
			ByteSlice []byte
			Error     error
		}
		Stub func(conda.Environment, ...string) ([]byte, error)
	}
	RunJSONCall struct {
		sync.Mutex
		CallCount int
		Receives  struct {
			Env  conda.Environment
			Out  interface{}
			Args []string
		}
		Returns struct {
			Error error
		}
		Stub func(conda.Environment, interface{}, ...string) error
	}
	RunExecutableCall struct {
		sync.Mutex
		CallCount int
		Receives  struct {
			Env        conda.Environment
			Executable conda.Executable
			Args       []string
		}
		Returns struct {
			Error error
		}
		Stub func(conda.Environment, conda.Executable, ...string) error
	}
}

func (f *CommandRunner) Run(param1 conda.Environment, param2 ...string) error {
	f.RunCall.Lock()
	defer f.RunCall.Unlock()
	f.RunCall.CallCount++
	f.RunCall.Receives.Env = param1
	f.RunCall.Receives.Args = param2
	if f.RunCall.Stub != nil {
		return f.RunCall.Stub(param1, param2...)
	}
	return f.RunCall.Returns.Error
}

func (f *CommandRunner) Output(param1 conda.Environment, param2 ...string) ([]byte, error) {
	f.OutputCall.Lock()
	defer f.OutputCall.Unlock()
	f.OutputCall.CallCount++
	f.OutputCall.Receives.Env = param1
	f.OutputCall.Receives.Args = param2
	if f.OutputCall.Stub != nil {
		return f.OutputCall.Stub(param1, param2...)
	}
	return f.OutputCall.Returns.ByteSlice, f.OutputCall.Returns.Error
}

func (f *CommandRunner) RunJSON(param1 conda.Environment, param2 interface{}, param3 ...string) error {
	f.RunJSONCall.Lock()
	defer f.RunJSONCall.Unlock()
	f.RunJSONCall.CallCount++
	f.RunJSONCall.Receives.Env = param1
	f.RunJSONCall.Receives.Out = param2
	f.RunJSONCall.Receives.Args = param3
	if f.RunJSONCall.Stub != nil {
		return f.RunJSONCall.Stub(param1, param2, param3...)
	}
	return f.RunJSONCall.Returns.Error
}

func (f *CommandRunner) RunExecutable(param1 conda.Environment, param2 conda.Executable, param3 ...string) error {
	f.RunExecutableCall.Lock()
	defer f.RunExecutableCall.Unlock()
	f.RunExecutableCall.CallCount++
	f.RunExecutableCall.Receives.Env = param1
	f.RunExecutableCall.Receives.Executable = param2
	f.RunExecutableCall.Receives.Args = param3
	if f.RunExecutableCall.Stub != nil {
		return f.RunExecutableCall.Stub(param1, param2, param3...)
	}
	return f.RunExecutableCall.Returns.Error
}
