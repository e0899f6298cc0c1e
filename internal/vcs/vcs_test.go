package vcs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/petsc/confprobe/internal/toolchain/fake"
)

func TestGitVCS_Sync(t *testing.T) {
	r := &fake.Runner{}
	g := NewGitVCS(r, WithGitPath("/usr/bin/git"))
	dir := filepath.Join(t.TempDir(), "parmetis")

	if err := g.Sync(context.Background(), "https://github.com/KarypisLab/ParMETIS", "v4.0.3", dir); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	var got []string
	for _, c := range r.Calls {
		got = append(got, c.Cmdline())
		if c.Cmd.Dir != dir {
			t.Errorf("%s ran in %q, want %q", c.Cmdline(), c.Cmd.Dir, dir)
		}
	}
	want := []string{
		"/usr/bin/git init",
		"/usr/bin/git fetch --depth 1 https://github.com/KarypisLab/ParMETIS v4.0.3",
		"/usr/bin/git checkout FETCH_HEAD",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestGitVCS_SyncFetchError(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.CmdlineContains("fetch"), fake.Fail("fatal: couldn't find remote ref nope"))
	g := NewGitVCS(r)

	err := g.Sync(context.Background(), "https://example.com/repo.git", "nope", t.TempDir())
	if err == nil || err.Error() != "fetch: fatal: couldn't find remote ref nope" {
		t.Fatalf("got %v", err)
	}
}

func TestGitVCS_Tags(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.CmdlineContains("--tags"), fake.OK("aaa\trefs/tags/v4.0.2\nbbb\trefs/tags/v4.0.3\n"))
	g := NewGitVCS(r)

	tags, err := g.Tags(context.Background(), "https://example.com/repo.git")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"v4.0.2", "v4.0.3"}, tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestGitVCS_Latest(t *testing.T) {
	r := &fake.Runner{}
	r.On(fake.CmdlineContains("HEAD"), fake.OK("0123456789abcdef0123456789abcdef01234567\tHEAD\n"))
	g := NewGitVCS(r)

	hash, err := g.Latest(context.Background(), "https://example.com/repo.git")
	if err != nil {
		t.Fatal(err)
	}
	if len(hash) != 40 {
		t.Errorf("expected 40-char hash, got %q", hash)
	}

	empty := NewGitVCS(&fake.Runner{})
	if _, err := empty.Latest(context.Background(), "https://example.com/empty.git"); err == nil {
		t.Error("expected error for a remote without HEAD")
	}
}

func TestLatestTag(t *testing.T) {
	tests := []struct {
		tags []string
		want string
	}{
		{nil, ""},
		{[]string{"v1.9", "v1.10", "v1.2"}, "v1.10"},
		{[]string{"4.0.3", "v4.0.2"}, "4.0.3"},
	}
	for _, tt := range tests {
		if got := LatestTag(tt.tags); got != tt.want {
			t.Errorf("LatestTag(%v) = %q, want %q", tt.tags, got, tt.want)
		}
	}
}
