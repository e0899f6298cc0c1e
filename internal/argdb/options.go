package argdb

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// OptionsFile is a saved configure invocation for one machine, e.g.
//
//	arch: irix6.5
//	options:
//	  - --with-cc=cc -n32
//	  - --with-mpi-dir=/home/petsc/software/mpich-1.2.0/IRIX
type OptionsFile struct {
	Arch    string   `yaml:"arch" validate:"omitempty,excludesall=/"`
	Options []string `yaml:"options" validate:"dive,required,startswith=-"`
}

// LoadOptionsFile reads path and returns its options as command line
// arguments. A non-empty arch becomes -PETSC_ARCH=<arch> in front.
func LoadOptionsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f OptionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse options file %s: %w", path, err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid options file %s: %w", path, err)
	}
	var args []string
	if f.Arch != "" {
		args = append(args, "-PETSC_ARCH="+f.Arch)
	}
	return append(args, f.Options...), nil
}
