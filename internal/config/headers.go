package config

import (
	"context"
	"slices"
	"strings"

	"github.com/petsc/confprobe/internal/framework"
)

// Headers checks that system headers can be included.
type Headers struct {
	framework.Base

	headers []string
	found   map[string]bool
}

func newHeaders() framework.Module {
	return &Headers{
		Base:  framework.Base{HeaderPrefix: "PETSC"},
		found: make(map[string]bool),
	}
}

// Add queues headers to be checked when the module runs.
func (h *Headers) Add(headers ...string) {
	for _, hdr := range headers {
		if !slices.Contains(h.headers, hdr) {
			h.headers = append(h.headers, hdr)
		}
	}
}

// HeaderDefine returns the HAVE_ define of header without prefix, e.g.
// HAVE_SYS_PARAM_H for sys/param.h.
func HeaderDefine(header string) string {
	return "HAVE_" + sanitize(header)
}

func (h *Headers) Configure(ctx context.Context) error {
	for _, hdr := range h.headers {
		if err := h.ExecuteTest(ctx, "check header "+hdr, func(ctx context.Context) error {
			h.Check(ctx, hdr)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// Check preprocesses an include of header and defines HAVE_<HEADER> if
// it succeeds.
func (h *Headers) Check(ctx context.Context, header string, includeDirs ...string) bool {
	ok := h.Toolchain().Preprocess(ctx, "#include <"+header+">\n", includeDirs...)
	h.found[header] = ok
	if ok {
		h.AddDefine(HeaderDefine(header), 1)
	}
	return ok
}

// Have reports whether header was found.
func (h *Headers) Have(header string) bool {
	return h.found[header]
}

// sanitize upper-cases s and replaces everything that cannot appear in a
// C identifier with an underscore.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

func (h *Headers) SetupDependencies(fw *framework.Framework) error {
	_, err := requireCompilers(fw, h.Name())
	return err
}
