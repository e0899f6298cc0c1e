// Package fetch retrieves the sources of downloadable packages: HTTP
// tarballs, local tarballs or directories, and git remotes.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/petsc/confprobe/internal/ctxlog"
	"github.com/petsc/confprobe/internal/toolchain"
	"github.com/petsc/confprobe/internal/vcs"
)

// Kind classifies a download location.
type Kind int

const (
	Tarball Kind = iota
	Directory
	Git
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case Git:
		return "git"
	}
	return "tarball"
}

// LatestRef selects the highest tag of a git remote.
const LatestRef = "latest"

// Source is a parsed download location.
type Source struct {
	Kind     Kind
	Location string
	// Ref is the git ref to check out; empty means the remote HEAD.
	Ref string
}

// Remote reports whether the source lives on another machine.
func (s Source) Remote() bool {
	return s.Kind == Git || strings.Contains(s.Location, "://")
}

// Parse classifies spec. Git remotes are recognised by a git:// scheme
// or a .git suffix and may carry a "#ref" fragment.
func Parse(spec string) Source {
	loc, ref, _ := strings.Cut(spec, "#")
	if strings.HasPrefix(loc, "git://") || strings.HasPrefix(loc, "git@") || strings.HasSuffix(loc, ".git") {
		return Source{Kind: Git, Location: loc, Ref: ref}
	}
	if strings.Contains(spec, "://") {
		return Source{Kind: Tarball, Location: spec}
	}
	if fi, err := os.Stat(spec); err == nil && fi.IsDir() {
		return Source{Kind: Directory, Location: spec}
	}
	return Source{Kind: Tarball, Location: spec}
}

// Fetcher downloads and unpacks sources.
type Fetcher struct {
	Client *http.Client
	VCS    vcs.VCS
}

// New returns a Fetcher that runs git through r.
func New(r toolchain.Runner) *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: 10 * time.Minute},
		VCS:    vcs.NewGitVCS(r),
	}
}

// Fetch makes src available under destRoot and returns the directory
// holding the unpacked sources. A tarball already present in destRoot
// is not downloaded again.
func (f *Fetcher) Fetch(ctx context.Context, src Source, destRoot string) (string, error) {
	log := ctxlog.FromContext(ctx).With("source", src.Location, "kind", src.Kind.String())
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return "", err
	}
	switch src.Kind {
	case Directory:
		return src.Location, nil
	case Git:
		ref := src.Ref
		if ref == LatestRef {
			tags, err := f.VCS.Tags(ctx, src.Location)
			if err != nil {
				return "", err
			}
			if ref = vcs.LatestTag(tags); ref == "" {
				return "", fmt.Errorf("%s has no tags", src.Location)
			}
		}
		dir := filepath.Join(destRoot, repoName(src.Location))
		log.Info("syncing git source", "ref", ref, "dir", dir)
		if err := f.VCS.Sync(ctx, src.Location, ref, dir); err != nil {
			return "", fmt.Errorf("sync %s: %w", src.Location, err)
		}
		return dir, nil
	}

	archive := src.Location
	if src.Remote() {
		archive = filepath.Join(destRoot, archiveName(src.Location))
		if _, err := os.Stat(archive); err != nil {
			log.Info("downloading", "to", archive)
			if err := f.download(ctx, src.Location, archive); err != nil {
				return "", err
			}
		}
	}
	log.Info("unpacking", "archive", archive)
	return Extract(archive, destRoot)
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func archiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

func repoName(remote string) string {
	name := remote
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
