package recipe

import (
	"reflect"
	"testing"
)

func TestCheckDefinesAndFail(t *testing.T) {
	c := &Check{}
	c.Define("HAVE_HYPRE_IJ", 1)
	c.Define("HYPRE_VERSION", `"2.0"`)

	want := []Define{
		{Name: "HAVE_HYPRE_IJ", Value: 1},
		{Name: "HYPRE_VERSION", Value: `"2.0"`},
	}
	if got := c.Defines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Check.Defines() = %#v, want %#v", got, want)
	}
	if _, failed := c.Failed(); failed {
		t.Fatal("Check.Failed() reported a failure before Fail was called")
	}

	c.Fail("hypre was built without IJ support")
	if reason, failed := c.Failed(); !failed || reason != "hypre was built without IJ support" {
		t.Fatalf("Check.Failed() = %q, %v", reason, failed)
	}
}

func TestPackageFDescriptor(t *testing.T) {
	p := &PackageF{}
	p.Title("Hypre")
	p.Libraries("libHYPRE.a")
	p.Libraries("libHYPRE.a", "libm.a")
	p.Requires("mpi")
	p.Requires("blaslapack", "recipes.other")
	p.NeedsCxx(true)

	if p.title != "Hypre" {
		t.Errorf("title = %q", p.title)
	}
	wantLibs := [][]string{{"libHYPRE.a"}, {"libHYPRE.a", "libm.a"}}
	if !reflect.DeepEqual(p.libraries, wantLibs) {
		t.Errorf("libraries = %v, want %v", p.libraries, wantLibs)
	}
	wantReq := []string{"mpi", "blaslapack", "recipes.other"}
	if !reflect.DeepEqual(p.requires, wantReq) {
		t.Errorf("requires = %v, want %v", p.requires, wantReq)
	}
	if !p.needsCxx || p.needsFortran {
		t.Errorf("needsCxx = %v, needsFortran = %v", p.needsCxx, p.needsFortran)
	}
}
