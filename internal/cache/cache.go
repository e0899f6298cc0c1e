// Package cache persists the outcome of a configure run as a JSON
// snapshot. A later run whose fingerprint matches replays the snapshot
// instead of probing the system again.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/petsc/confprobe/internal/framework"
)

// Snapshot layout, next to configure.log:
//
//	<workdir>/
//	  configure.snapshot.json       # the last successful run
//	  configure.snapshot.json.lock  # flock held while reading or writing
const File = "configure.snapshot.json"

// ErrNoSnapshot is returned when no snapshot was written yet.
var ErrNoSnapshot = errors.New("no configure snapshot")

// Snapshot is everything a successful run derived.
type Snapshot struct {
	RunID       string           `json:"run_id"`
	Version     string           `json:"version"`
	Fingerprint string           `json:"fingerprint"`
	Args        []string         `json:"args"`
	Dir         string           `json:"petsc_dir"`
	Passes      int              `json:"passes"`
	State       *framework.State `json:"state"`
	Summaries   []string         `json:"summaries,omitempty"`
	Outputs     []string         `json:"outputs,omitempty"`
	Time        time.Time        `json:"time"`
}

// Fingerprint identifies a configuration request: the same arguments
// against the same source tree with the same confprobe version.
func Fingerprint(args []string, dir, version string) string {
	h := xxhash.New()
	write := func(s string) {
		h.WriteString(strconv.Itoa(len(s)))
		h.WriteString(":")
		h.WriteString(s)
	}
	write(version)
	write(dir)
	for _, a := range args {
		write(a)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// NewRunID returns a fresh identifier for one configure run.
func NewRunID() string {
	return uuid.NewString()
}

// Path returns the snapshot path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, File)
}

// withLock runs fn while holding the lock beside path.
func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := lockFile(f); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer unlockFile(f)
	return fn()
}

func load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if s.State == nil {
		s.State = framework.NewState()
	}
	if s.State.Prototypes == nil {
		s.State.Prototypes = make(map[string][]string)
	}
	return &s, nil
}

// Load reads the snapshot at path.
func Load(path string) (*Snapshot, error) {
	var s *Snapshot
	err := withLock(path, func() error {
		var err error
		s, err = load(path)
		return err
	})
	return s, err
}

// Lookup returns the snapshot at path if its fingerprint matches.
// A missing or stale snapshot is not an error.
func Lookup(path, fingerprint string) (*Snapshot, bool, error) {
	s, err := Load(path)
	if errors.Is(err, ErrNoSnapshot) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, s.Fingerprint == fingerprint, nil
}

// Save writes s to path, replacing any earlier snapshot atomically.
func Save(path string, s *Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return withLock(path, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(path), File+".*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), path)
	})
}

// Remove deletes the snapshot at path, if any.
func Remove(path string) error {
	return withLock(path, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}
