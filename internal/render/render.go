// Package render writes the artifacts of a configuration pass: the
// define header, the template-substituted files and the make fragments.
package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/petsc/confprobe/internal/framework"
)

// Make fragment names, written next to the header.
const (
	VariablesFile = "petscconf"
	RulesFile     = "petscrules"
)

var substRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|@([A-Za-z_][A-Za-z0-9_]*)@`)

// Substitute replaces ${KEY} and @KEY@ in text with subst[KEY]. Unknown
// keys are left untouched. Values are not substituted again.
func Substitute(text string, subst map[string]string) string {
	return substRe.ReplaceAllStringFunc(text, func(m string) string {
		key := strings.Trim(m, "${}@")
		if v, ok := subst[key]; ok {
			return v
		}
		return m
	})
}

// HeaderGuard returns the include guard of the header at path, e.g.
// INCLUDED_PETSCCONF_H.
func HeaderGuard(path string) string {
	base := strings.ToUpper(filepath.Base(path))
	return "INCLUDED_" + strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, base)
}

// WriteHeader writes the defines of st in declaration order, guarded
// against double inclusion.
func WriteHeader(w io.Writer, guard string, st *framework.State) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "#if !defined(%s)\n#define %s\n\n", guard, guard)
	for _, d := range st.Defines {
		line := "#define " + d.Name
		if d.Value != "" {
			line += " " + d.Value
		}
		if d.Comment != "" {
			line += " /* " + d.Comment + " */"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n#endif\n")
	_, err := w.Write(b.Bytes())
	return err
}

// WriteMakeVariables writes one "NAME = value" line per make macro.
func WriteMakeVariables(w io.Writer, st *framework.State) error {
	var b bytes.Buffer
	for _, m := range st.MakeMacros {
		fmt.Fprintf(&b, "%s = %s\n", m.Name, m.Value)
	}
	_, err := w.Write(b.Bytes())
	return err
}

// WriteMakeRules writes every make target with its recipe.
func WriteMakeRules(w io.Writer, st *framework.State) error {
	var b bytes.Buffer
	for i, r := range st.MakeRules {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(r.Name + ": " + r.Deps))
		b.WriteString("\n")
		for _, c := range r.Commands {
			b.WriteString("\t" + c + "\n")
		}
	}
	_, err := w.Write(b.Bytes())
	return err
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b bytes.Buffer
	if err := write(&b); err != nil {
		return err
	}
	return os.WriteFile(path, b.Bytes(), 0o644)
}

// WriteSubstitutionFiles renders every registered template of st. The
// substitutions are keyed by name; prototypes recorded per language are
// available as PROTOTYPES_<LANGUAGE>.
func WriteSubstitutionFiles(st *framework.State) ([]string, error) {
	subst := st.SubstitutionMap()
	langs := make([]string, 0, len(st.Prototypes))
	for lang := range st.Prototypes {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	for _, lang := range langs {
		key := "PROTOTYPES_" + strings.ToUpper(strings.ReplaceAll(lang, " ", "_"))
		if _, ok := subst[key]; !ok {
			subst[key] = strings.Join(st.Prototypes[lang], "\n")
		}
	}

	var written []string
	for _, f := range st.SubstitutionFiles {
		in, err := os.ReadFile(f.In)
		if err != nil {
			return written, fmt.Errorf("reading template: %w", err)
		}
		out := Substitute(string(in), subst)
		if err := writeFile(f.Out, func(w io.Writer) error {
			_, err := io.WriteString(w, out)
			return err
		}); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.Out, err)
		}
		written = append(written, f.Out)
	}
	return written, nil
}

// WriteAll writes the header of st, the make fragments next to it and
// the substitution files. It returns the paths written.
func WriteAll(st *framework.State) ([]string, error) {
	if st.Header == "" {
		return nil, fmt.Errorf("no header path was configured")
	}
	dir := filepath.Dir(st.Header)
	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{st.Header, func(w io.Writer) error { return WriteHeader(w, HeaderGuard(st.Header), st) }},
		{filepath.Join(dir, VariablesFile), func(w io.Writer) error { return WriteMakeVariables(w, st) }},
		{filepath.Join(dir, RulesFile), func(w io.Writer) error { return WriteMakeRules(w, st) }},
	}
	var written []string
	for _, o := range outputs {
		if err := writeFile(o.path, o.write); err != nil {
			return written, fmt.Errorf("writing %s: %w", o.path, err)
		}
		written = append(written, o.path)
	}
	files, err := WriteSubstitutionFiles(st)
	return append(written, files...), err
}
