package fakes

import (
	"sync"

	"github.com/condakit/conda"
)

type Bootstrapper struct {
	EnsureCall struct {
		sync.Mutex
		CallCount int
		Receives  struct {
			Env conda.Environment
		}
		Returns struct {
			Error error
		}
		Stub func(conda.Environment) error
	}
}

func (f *Bootstrapper) Ensure(param1 conda.Environment) error {
	f.EnsureCall.Lock()
	defer f.EnsureCall.Unlock()
	f.EnsureCall.CallCount++
	f.EnsureCall.Receives.Env = param1
	if f.EnsureCall.Stub != nil {
		return f.EnsureCall.Stub(param1)
	}
	return f.EnsureCall.Returns.Error
}
