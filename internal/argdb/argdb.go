// Package argdb holds the configure command line as a typed key/value
// store. Modules declare the arguments they understand together with a
// default and a coercion; the store validates user input against those
// declarations before any check runs.
package argdb

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ArgumentError reports a malformed or contradictory user argument.
type ArgumentError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	if e.Value == "" {
		return fmt.Sprintf("argument %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("argument %s=%s: %s", e.Key, e.Value, e.Reason)
}

// DB is the argument dictionary of one configuration pass.
type DB struct {
	raw  []string
	keys []string
	vals map[string]string
	help *Help
}

// New returns an empty DB.
func New() *DB {
	return &DB{vals: make(map[string]string), help: NewHelp()}
}

// Parse builds a DB from command line arguments. Accepted forms are
// --with-<name>[=v], --without-<name>, --enable-<name>[=v],
// --disable-<name>, --download-<name>[=v] and -NAME=value; a flag
// without a value means "1".
func Parse(args []string) (*DB, error) {
	db := New()
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return nil, &ArgumentError{Value: arg, Reason: fmt.Sprintf("unrecognized argument %q: options must start with '-'", arg)}
		}
		key, val, err := splitArg(arg)
		if err != nil {
			return nil, err
		}
		db.raw = append(db.raw, arg)
		db.Set(key, val)
	}
	return db, nil
}

func splitArg(arg string) (key, val string, err error) {
	name := strings.TrimLeft(arg, "-")
	if name == "" {
		return "", "", &ArgumentError{Value: arg, Reason: "empty argument name"}
	}
	name, val, hasVal := strings.Cut(name, "=")
	switch {
	case strings.HasPrefix(name, "without-"):
		if hasVal {
			return "", "", &ArgumentError{Key: name, Value: val, Reason: "--without takes no value"}
		}
		return "with-" + strings.TrimPrefix(name, "without-"), "0", nil
	case strings.HasPrefix(name, "disable-"):
		if hasVal {
			return "", "", &ArgumentError{Key: name, Value: val, Reason: "--disable takes no value"}
		}
		return "enable-" + strings.TrimPrefix(name, "disable-"), "0", nil
	}
	if !hasVal {
		val = "1"
	}
	return name, val, nil
}

// Attach associates the declared arguments used for defaults and
// validation.
func (d *DB) Attach(h *Help) {
	d.help = h
}

// Help returns the declarations attached to d.
func (d *DB) Help() *Help {
	return d.help
}

// Set stores val under key; the last write wins.
func (d *DB) Set(key, val string) {
	if _, ok := d.vals[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.vals[key] = val
}

// Has reports whether the user (or a check) set key explicitly.
func (d *DB) Has(key string) bool {
	_, ok := d.vals[key]
	return ok
}

// Get returns the explicit value of key, or its declared default.
func (d *DB) Get(key string) (string, bool) {
	if v, ok := d.vals[key]; ok {
		return v, true
	}
	if typ, ok := d.help.Lookup(key); ok && typ.hasDefault {
		return typ.def, true
	}
	return "", false
}

// String returns the value of key or "".
func (d *DB) String(key string) string {
	v, _ := d.Get(key)
	return v
}

// Bool returns the boolean value of key. Values that do not coerce are
// false; Validate reports them.
func (d *DB) Bool(key string) bool {
	v, ok := d.Get(key)
	if !ok {
		return false
	}
	b, err := parseBool(v)
	return err == nil && b
}

// Int returns the integer value of key, or 0.
func (d *DB) Int(key string) int {
	v, ok := d.Get(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

// LibList returns key as a list of libraries. Both "[a,b]" and
// whitespace separated forms are accepted.
func (d *DB) LibList(key string) []string {
	v, ok := d.Get(key)
	if !ok {
		return nil
	}
	return parseLibList(v)
}

// Keys returns the explicitly set keys in insertion order.
func (d *DB) Keys() []string {
	return slices.Clone(d.keys)
}

// Args returns the command line the DB was parsed from.
func (d *DB) Args() []string {
	return slices.Clone(d.raw)
}

// Validate coerces every explicitly set, declared argument to its type.
func (d *DB) Validate() error {
	for _, key := range d.keys {
		typ, ok := d.help.Lookup(key)
		if !ok {
			continue
		}
		if err := typ.check(d.vals[key]); err != nil {
			return &ArgumentError{Key: key, Value: d.vals[key], Reason: err.Error()}
		}
	}
	return nil
}

// MergeRestart folds the arguments requested by a restart into args.
// The last argument whose parsed key equals the requested key, however
// it was spelled, gets the value appended; otherwise key=value is
// appended. The returned command line always carries -logAppend=1 so
// the next pass keeps the log.
func MergeRestart(args []string, extra map[string]string) []string {
	out := slices.Clone(args)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want := strings.TrimLeft(k, "-")
		i := lastWithKey(out, want)
		switch {
		case i < 0:
			out = append(out, k+"="+extra[k])
		case strings.Contains(out[i], "="):
			out[i] += " " + extra[k]
		default:
			// a bare flag or --without-<n> carries no value to extend
			out[i] = "-" + want + "=" + extra[k]
		}
	}
	if !slices.Contains(out, "-logAppend=1") {
		out = append(out, "-logAppend=1")
	}
	return out
}

// lastWithKey returns the index of the last argument that parses to
// key, or -1. The last one is the one Parse keeps.
func lastWithKey(args []string, key string) int {
	for i := len(args) - 1; i >= 0; i-- {
		if k, _, err := splitArg(args[i]); err == nil && k == key {
			return i
		}
	}
	return -1
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("expected a boolean, got %q", v)
}

func parseLibList(v string) []string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		var libs []string
		for _, l := range strings.Split(v[1:len(v)-1], ",") {
			if l = strings.TrimSpace(l); l != "" {
				libs = append(libs, l)
			}
		}
		return libs
	}
	return strings.Fields(v)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
