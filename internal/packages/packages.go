// Package packages detects third-party numeric libraries (BLAS/LAPACK,
// MPI, ParMetis, SuperLU_DIST, ML, Matlab) and, when asked to, downloads
// and builds them with their own build systems.
package packages

import "github.com/petsc/confprobe/internal/framework"

// Module names.
const (
	BlasLapackName  = "packages.blaslapack"
	MPIName         = "packages.mpi"
	ParMetisName    = "packages.parmetis"
	SuperLUDistName = "packages.superlu_dist"
	MLName          = "packages.ml"
	MatlabName      = "packages.matlab"
)

// Register adds the package modules to r.
func Register(r *framework.Registry) {
	r.Register(BlasLapackName, newBlasLapack)
	r.Register(MPIName, newMPI)
	r.Register(ParMetisName, newParMetis)
	r.Register(SuperLUDistName, newSuperLUDist)
	r.Register(MLName, newML)
	r.Register(MatlabName, newMatlab)
}

// Provider is a module backed by a Package descriptor. Packages depend
// on each other through it.
type Provider interface {
	framework.Module
	Pkg() *Package
}
