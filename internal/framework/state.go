package framework

import (
	"fmt"
	"slices"
)

// Define is a preprocessor symbol written to the generated header.
type Define struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
	Module  string `json:"module,omitempty"`
}

// Substitution is a named value replaced into template files.
type Substitution struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
	Module  string `json:"module,omitempty"`
}

// MakeMacro is a "NAME = value" line in the generated variables file.
type MakeMacro struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MakeRule is a make target with its prerequisites and recipe.
type MakeRule struct {
	Name     string   `json:"name"`
	Deps     string   `json:"deps"`
	Commands []string `json:"commands,omitempty"`
}

// SubstitutionFile maps a template to the file rendered from it.
type SubstitutionFile struct {
	In  string `json:"in"`
	Out string `json:"out"`
}

// State accumulates everything a configuration pass derives. Keys are not
// unique across writes: the last value wins and keeps the position of the
// first declaration, so rendering follows declaration order.
type State struct {
	Defines           []Define            `json:"defines"`
	Substitutions     []Substitution      `json:"substitutions"`
	MakeMacros        []MakeMacro         `json:"make_macros"`
	MakeRules         []MakeRule          `json:"make_rules"`
	Prototypes        map[string][]string `json:"prototypes,omitempty"`
	SubstitutionFiles []SubstitutionFile  `json:"substitution_files,omitempty"`
	Header            string              `json:"header,omitempty"`
}

// NewState returns an empty accumulator.
func NewState() *State {
	return &State{Prototypes: make(map[string][]string)}
}

// SetDefine records d.
func (s *State) SetDefine(d Define) {
	if i := slices.IndexFunc(s.Defines, func(e Define) bool { return e.Name == d.Name }); i >= 0 {
		if d.Comment == "" {
			d.Comment = s.Defines[i].Comment
		}
		s.Defines[i] = d
		return
	}
	s.Defines = append(s.Defines, d)
}

// Define returns the value of the define called name.
func (s *State) Define(name string) (string, bool) {
	for _, d := range s.Defines {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

// DeleteDefine removes name if present.
func (s *State) DeleteDefine(name string) {
	s.Defines = slices.DeleteFunc(s.Defines, func(d Define) bool { return d.Name == name })
}

// SetSubstitution records sub.
func (s *State) SetSubstitution(sub Substitution) {
	if i := slices.IndexFunc(s.Substitutions, func(e Substitution) bool { return e.Name == sub.Name }); i >= 0 {
		if sub.Comment == "" {
			sub.Comment = s.Substitutions[i].Comment
		}
		s.Substitutions[i] = sub
		return
	}
	s.Substitutions = append(s.Substitutions, sub)
}

// Substitution returns the value of the substitution called name.
func (s *State) Substitution(name string) (string, bool) {
	for _, sub := range s.Substitutions {
		if sub.Name == name {
			return sub.Value, true
		}
	}
	return "", false
}

// SubstitutionMap returns the substitutions keyed by name.
func (s *State) SubstitutionMap() map[string]string {
	m := make(map[string]string, len(s.Substitutions))
	for _, sub := range s.Substitutions {
		m[sub.Name] = sub.Value
	}
	return m
}

// SetMakeMacro records a make variable.
func (s *State) SetMakeMacro(m MakeMacro) {
	if i := slices.IndexFunc(s.MakeMacros, func(e MakeMacro) bool { return e.Name == m.Name }); i >= 0 {
		s.MakeMacros[i] = m
		return
	}
	s.MakeMacros = append(s.MakeMacros, m)
}

// MakeMacro returns the value of the make variable called name.
func (s *State) MakeMacro(name string) (string, bool) {
	for _, m := range s.MakeMacros {
		if m.Name == name {
			return m.Value, true
		}
	}
	return "", false
}

// SetMakeRule records a make target.
func (s *State) SetMakeRule(r MakeRule) {
	if i := slices.IndexFunc(s.MakeRules, func(e MakeRule) bool { return e.Name == r.Name }); i >= 0 {
		s.MakeRules[i] = r
		return
	}
	s.MakeRules = append(s.MakeRules, r)
}

// MakeRule returns the target called name.
func (s *State) MakeRule(name string) (MakeRule, bool) {
	for _, r := range s.MakeRules {
		if r.Name == name {
			return r, true
		}
	}
	return MakeRule{}, false
}

// AddPrototype records a prototype to be emitted for language ("C",
// "Cxx" or "extern C"). Duplicates are ignored.
func (s *State) AddPrototype(proto, language string) {
	if s.Prototypes == nil {
		s.Prototypes = make(map[string][]string)
	}
	if slices.Contains(s.Prototypes[language], proto) {
		return
	}
	s.Prototypes[language] = append(s.Prototypes[language], proto)
}

// AddSubstitutionFile registers a template to render.
func (s *State) AddSubstitutionFile(in, out string) {
	if slices.ContainsFunc(s.SubstitutionFiles, func(f SubstitutionFile) bool { return f.Out == out }) {
		return
	}
	s.SubstitutionFiles = append(s.SubstitutionFiles, SubstitutionFile{In: in, Out: out})
}

// formatValue renders a define or substitution value. Booleans become
// 1 and 0 as a C preprocessor expects.
func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}
