package argdb

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is the coercion applied to an argument value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindDir
	KindLibList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDir:
		return "directory"
	case KindLibList:
		return "libraries"
	}
	return "string"
}

// Type describes a declared argument.
type Type struct {
	Kind       Kind
	Help       string
	def        string
	hasDefault bool
}

// Bool declares a boolean argument.
func Bool(def bool, help string) Type {
	d := "0"
	if def {
		d = "1"
	}
	return Type{Kind: KindBool, Help: help, def: d, hasDefault: true}
}

// Int declares an integer argument.
func Int(def int, help string) Type {
	return Type{Kind: KindInt, Help: help, def: strconv.Itoa(def), hasDefault: true}
}

// String declares a string argument. An empty default means none.
func String(def, help string) Type {
	return Type{Kind: KindString, Help: help, def: def, hasDefault: def != ""}
}

// Dir declares an argument naming an existing directory.
func Dir(help string) Type {
	return Type{Kind: KindDir, Help: help}
}

// LibList declares a list of libraries.
func LibList(help string) Type {
	return Type{Kind: KindLibList, Help: help}
}

// Default returns the declared default and whether there is one.
func (t Type) Default() (string, bool) {
	return t.def, t.hasDefault
}

func (t Type) check(v string) error {
	switch t.Kind {
	case KindBool:
		_, err := parseBool(v)
		return err
	case KindInt:
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("expected an integer, got %q", v)
		}
	case KindDir:
		if !isDir(v) {
			return errors.New("not a directory")
		}
	case KindLibList:
		if len(parseLibList(v)) == 0 {
			return errors.New("empty library list")
		}
	}
	return nil
}

type declared struct {
	section string
	name    string
	typ     Type
}

// Help collects argument declarations grouped by section.
type Help struct {
	sections []string
	order    []string
	args     map[string]declared
}

// NewHelp returns an empty declaration set.
func NewHelp() *Help {
	return &Help{args: make(map[string]declared)}
}

// AddArgument declares name under section. name may be written in its
// command line form ("-with-mpi-dir=<dir>"); dashes and the value
// placeholder are stripped.
func (h *Help) AddArgument(section, name string, typ Type) {
	key, _, _ := strings.Cut(strings.TrimLeft(name, "-"), "=")
	if _, ok := h.args[key]; !ok {
		h.order = append(h.order, key)
	}
	found := false
	for _, s := range h.sections {
		if s == section {
			found = true
			break
		}
	}
	if !found {
		h.sections = append(h.sections, section)
	}
	h.args[key] = declared{section: section, name: name, typ: typ}
}

// Lookup returns the declared type of key.
func (h *Help) Lookup(key string) (Type, bool) {
	if h == nil {
		return Type{}, false
	}
	d, ok := h.args[key]
	return d.typ, ok
}

// Write prints the declarations grouped by section.
func (h *Help) Write(w io.Writer) {
	for _, section := range h.sections {
		fmt.Fprintf(w, "%s:\n", section)
		for _, key := range h.order {
			d := h.args[key]
			if d.section != section {
				continue
			}
			line := fmt.Sprintf("  -%s <%s>: %s", key, d.typ.Kind, d.typ.Help)
			if d.typ.hasDefault {
				line += fmt.Sprintf(" (default %s)", d.typ.def)
			}
			fmt.Fprintln(w, line)
		}
	}
}
