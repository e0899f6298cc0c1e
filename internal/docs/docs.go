// Package docs turns pages of the project website into the standalone
// HTML shipped in the source tree's docs directory.
package docs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/petsc/confprobe/internal/ctxlog"
)

// Region markers of a website page.
const (
	BeginMarker = "<!--##begin-->"
	EndMarker   = "<!--##end-->"
)

// DefaultPrefixes are the absolute URL prefixes stripped from pages so
// links resolve inside the docs tree.
var DefaultPrefixes = []string{
	"http://www.mcs.anl.gov/petsc/petsc-2/snapshots/petsc-current/docs/",
	"http://www.mcs.anl.gov/petsc/petsc-2/snapshots/petsc-current/include/",
}

// DefaultFiles are the website pages copied into the docs tree.
var DefaultFiles = []string{
	"bugreporting.html",
	"codemanagement.html",
	"copyright.html",
	"faq.html",
	"index.html",
	"linearsolvertable.html",
	"troubleshooting.html",
	"changes/2015.html",
	"changes/2016.html",
	"changes/2017.html",
	"changes/2022.html",
	"changes/2024.html",
	"changes/2028.html",
	"changes/2029.html",
	"changes/21.html",
	"changes/211.html",
	"changes/212.html",
	"changes/213.html",
	"changes/215.html",
	"changes/216.html",
	"changes/2918-21.html",
	"changes/index.html",
	"installation.html",
}

// ErrNoRegions is returned for pages missing the header or body region.
var ErrNoRegions = errors.New("page lacks the begin/end marked regions")

// regions returns the text of the first two begin/end marked regions:
// the page header and the page body.
func regions(page string) (header, body string, err error) {
	rest := page
	var out [2]string
	for i := range out {
		_, after, ok := strings.Cut(rest, BeginMarker)
		if !ok {
			return "", "", ErrNoRegions
		}
		region, tail, ok := strings.Cut(after, EndMarker)
		if !ok {
			return "", "", ErrNoRegions
		}
		out[i], rest = region, tail
	}
	return out[0], out[1], nil
}

// Rewrite keeps the header and body regions of page, wraps them in a
// bare HTML document and removes prefixes wherever they occur. The
// regions are copied byte for byte.
func Rewrite(page string, prefixes []string) (string, error) {
	header, body, err := regions(page)
	if err != nil {
		return "", err
	}
	out := "<html>\n<body BGCOLOR=\"FFFFFF\">\n" + header + "\n" + body + "</body>\n</html>\n"
	pairs := make([]string, 0, 2*len(prefixes))
	for _, p := range prefixes {
		pairs = append(pairs, p, "")
	}
	return strings.NewReplacer(pairs...).Replace(out), nil
}

// AbsoluteLinks returns the href and src targets of page that still
// point off the docs tree, in document order.
func AbsoluteLinks(page string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	var links []string
	doc.Find("[href], [src]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "src"} {
			v, ok := s.Attr(attr)
			if !ok {
				continue
			}
			if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "ftp://") {
				links = append(links, v)
			}
		}
	})
	return links, nil
}

// Options configures UpdateTree.
type Options struct {
	// Files are the page paths relative to the website documentation
	// directory. Empty means DefaultFiles.
	Files []string
	// Prefixes are stripped from the pages. Nil means DefaultPrefixes.
	Prefixes []string
	// Clean removes the pages instead of installing them.
	Clean bool
	// Jobs bounds the pages processed at once; 0 means 4.
	Jobs int
}

// UpdateTree copies the website pages under loc/docs/website/documentation
// into loc/docs and rewrites them, or removes them when opts.Clean is set.
func UpdateTree(ctx context.Context, loc string, opts Options) error {
	log := ctxlog.FromContext(ctx)
	files := opts.Files
	if len(files) == 0 {
		files = DefaultFiles
	}
	prefixes := opts.Prefixes
	if prefixes == nil {
		prefixes = DefaultPrefixes
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 4
	}
	src := filepath.Join(loc, "docs", "website", "documentation")
	dst := filepath.Join(loc, "docs")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			target := filepath.Join(dst, filepath.FromSlash(name))
			if opts.Clean {
				if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
					return err
				}
				log.Debug("removed page", "file", target)
				return nil
			}
			data, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(name)))
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := Rewrite(string(data), prefixes)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if err := os.WriteFile(target, []byte(out), 0o644); err != nil {
				return err
			}
			links, err := AbsoluteLinks(out)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			log.Info("processed page", "file", target, "absolute_links", len(links))
			for _, l := range links {
				log.Debug("absolute link kept", "file", target, "link", l)
			}
			return nil
		})
	}
	return g.Wait()
}
