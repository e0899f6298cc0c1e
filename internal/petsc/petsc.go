// Package petsc holds the project modules: architecture, shared
// library policy, missing system features, debuggers and the root module
// that requires everything else and decides where the artifacts go.
package petsc

import (
	"github.com/petsc/confprobe/internal/config"
	"github.com/petsc/confprobe/internal/framework"
	"github.com/petsc/confprobe/internal/packages"
)

// Module names.
const (
	ArchName            = "petsc.arch"
	SharedLibrariesName = "petsc.sharedlibraries"
	MissingName         = "petsc.missing"
	DebuggersName       = "petsc.debuggers"
	RootName            = "petsc"
)

// Register adds the project modules to r.
func Register(r *framework.Registry) {
	r.Register(ArchName, newArch)
	r.Register(SharedLibrariesName, newSharedLibraries)
	r.Register(MissingName, newMissing)
	r.Register(DebuggersName, newDebuggers)
	r.Register(RootName, newRoot)
}

// NewRegistry returns a registry holding the generic, package and
// project modules.
func NewRegistry() *framework.Registry {
	r := framework.NewRegistry()
	config.Register(r)
	packages.Register(r)
	Register(r)
	return r
}

// generic groups the generic modules most project modules queue checks on.
type generic struct {
	compilers *config.Compilers
	headers   *config.Headers
	functions *config.Functions
	libraries *config.Libraries
}

func (p *generic) require(fw *framework.Framework, requester string) error {
	var err error
	if p.compilers, err = framework.RequireAs[*config.Compilers](fw, config.CompilersName, requester); err != nil {
		return err
	}
	if p.headers, err = framework.RequireAs[*config.Headers](fw, config.HeadersName, requester); err != nil {
		return err
	}
	if p.functions, err = framework.RequireAs[*config.Functions](fw, config.FunctionsName, requester); err != nil {
		return err
	}
	p.libraries, err = framework.RequireAs[*config.Libraries](fw, config.LibrariesName, requester)
	return err
}
