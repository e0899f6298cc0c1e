// Package vcs fetches package sources from git remotes.
package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/pkgs/version"
)

// VCS defines the interface for version control operations.
type VCS interface {
	// Sync ensures the local repo exists and is at the specified ref.
	// ref can be branch, tag, or commit hash.
	Sync(ctx context.Context, remote, ref, dir string) error

	// Tags returns all tags from the remote repository.
	Tags(ctx context.Context, remote string) ([]string, error)

	// Latest returns the latest commit hash (HEAD) from the remote repository.
	Latest(ctx context.Context, remote string) (string, error)
}

// Timeout bounds every git command.
const Timeout = 10 * time.Minute

// gitVCS implements VCS by running git through a toolchain.Runner.
type gitVCS struct {
	git    string
	runner toolchain.Runner
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// NewGitVCS creates a git VCS running commands with r.
func NewGitVCS(r toolchain.Runner, opts ...GitOption) VCS {
	g := &gitVCS{git: "git", runner: r}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitVCS) ensureInit(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return g.run(ctx, dir, "init")
	}
	return nil
}

func (g *gitVCS) Sync(ctx context.Context, remote, ref, dir string) error {
	if ref == "" {
		ref = "HEAD"
	}
	if err := g.ensureInit(ctx, dir); err != nil {
		return err
	}
	if err := g.run(ctx, dir, "fetch", "--depth", "1", remote, ref); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := g.run(ctx, dir, "checkout", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

func (g *gitVCS) Tags(ctx context.Context, remote string) ([]string, error) {
	output, err := g.output(ctx, "", "ls-remote", "--tags", "--refs", remote)
	if err != nil {
		return nil, fmt.Errorf("list remote tags: %w", err)
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	var tags []string
	for _, line := range strings.Split(output, "\n") {
		// format: <hash>\trefs/tags/<tag>
		if _, ref, ok := strings.Cut(line, "\t"); ok {
			tags = append(tags, strings.TrimPrefix(ref, "refs/tags/"))
		}
	}
	return tags, nil
}

func (g *gitVCS) Latest(ctx context.Context, remote string) (string, error) {
	output, err := g.output(ctx, "", "ls-remote", remote, "HEAD")
	if err != nil {
		return "", fmt.Errorf("get remote HEAD: %w", err)
	}
	hash, _, _ := strings.Cut(strings.TrimSpace(output), "\t")
	if hash == "" {
		return "", fmt.Errorf("no HEAD found in remote %s", remote)
	}
	return hash, nil
}

// LatestTag returns the highest of tags in version order, or "" when
// tags is empty.
func LatestTag(tags []string) string {
	best := ""
	for _, t := range tags {
		if best == "" || version.Compare(strings.TrimPrefix(t, "v"), strings.TrimPrefix(best, "v")) > 0 {
			best = t
		}
	}
	return best
}

func (g *gitVCS) run(ctx context.Context, dir string, args ...string) error {
	_, err := g.output(ctx, dir, args...)
	return err
}

func (g *gitVCS) output(ctx context.Context, dir string, args ...string) (string, error) {
	res := g.runner.Run(ctx, toolchain.Cmd{
		Name:    g.git,
		Args:    args,
		Dir:     dir,
		Env:     map[string]string{"GIT_TERMINAL_PROMPT": "0"},
		Timeout: Timeout,
	})
	if !res.OK() {
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			return "", fmt.Errorf("%s", msg)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return "", fmt.Errorf("git %s: exit status %d", args[0], res.Status)
	}
	return res.Stdout, nil
}
