// Package config holds the generic configuration modules: compilers, headers,
// functions, libraries, types and programs. Project modules require them
// and queue the checks they need before the pass runs.
package config

import "github.com/petsc/confprobe/internal/framework"

// Module names.
const (
	CompilersName = "config.compilers"
	HeadersName   = "config.headers"
	FunctionsName = "config.functions"
	LibrariesName = "config.libraries"
	TypesName     = "config.types"
	ProgramsName  = "config.programs"
)

// Register adds the generic modules to r.
func Register(r *framework.Registry) {
	r.Register(CompilersName, newCompilers)
	r.Register(TypesName, newTypes)
	r.Register(HeadersName, newHeaders)
	r.Register(FunctionsName, newFunctions)
	r.Register(LibrariesName, newLibraries)
	r.Register(ProgramsName, newPrograms)
}

func requireCompilers(fw *framework.Framework, requester string) (*Compilers, error) {
	return framework.RequireAs[*Compilers](fw, CompilersName, requester)
}
