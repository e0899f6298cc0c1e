package ixgo

import (
	"github.com/goplus/ixgo/xgobuild"
	"github.com/goplus/mod/modfile"

	_ "github.com/petsc/confprobe/internal/ixgo/pkg/github.com/petsc/confprobe/recipe"
	_ "github.com/petsc/confprobe/internal/ixgo/pkg/github.com/qiniu/x/gsh"
)

// RecipeExt is the file suffix of package recipes.
const RecipeExt = "_pkg.gox"

func init() {
	xgobuild.RegisterProject(&modfile.Project{
		Ext:   RecipeExt,
		Class: "PackageF",
		PkgPaths: []string{
			"github.com/petsc/confprobe/recipe",
		},
	})
}
