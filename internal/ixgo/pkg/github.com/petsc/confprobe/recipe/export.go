// export by github.com/goplus/ixgo/cmd/qexp

package recipe

import (
	q "github.com/petsc/confprobe/recipe"

	"go/constant"
	"reflect"

	"github.com/goplus/ixgo"
)

func init() {
	ixgo.RegisterPackage(&ixgo.Package{
		Name: "recipe",
		Path: "github.com/petsc/confprobe/recipe",
		Deps: map[string]string{
			"github.com/qiniu/x/gsh": "gsh",
			"slices":                 "slices",
		},
		Interfaces: map[string]reflect.Type{},
		NamedTypes: map[string]reflect.Type{
			"Check":    reflect.TypeOf((*q.Check)(nil)).Elem(),
			"Define":   reflect.TypeOf((*q.Define)(nil)).Elem(),
			"PackageF": reflect.TypeOf((*q.PackageF)(nil)).Elem(),
		},
		AliasTypes: map[string]reflect.Type{},
		Vars:       map[string]reflect.Value{},
		Funcs: map[string]reflect.Value{
			"Gopt_PackageF_Main": reflect.ValueOf(q.Gopt_PackageF_Main),
		},
		TypedConsts: map[string]ixgo.TypedConst{},
		UntypedConsts: map[string]ixgo.UntypedConst{
			"GopPackage": {"untyped bool", constant.MakeBool(bool(q.GopPackage))},
		},
	})
}
