package packages

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Install directory layout:
//
//	externalpackages/
//	  .cache.json        # maps "arch-package" to installEntry
//	  ml-6.2.tar.gz      # downloaded archive
//	  ml-6.2/            # unpacked sources
//	  <arch>/<package>/  # install prefix
//	    include/
//	    lib/
const cacheFile = ".cache.json"

// installEntry records the configuration of one successful install.
type installEntry struct {
	Metadata  string    `json:"metadata"`
	BuildTime time.Time `json:"build_time"`
}

type installCache struct {
	Cache map[string]*installEntry `json:"cache"`
}

func cacheKey(arch, pkg string) string {
	return arch + "-" + pkg
}

func (c *installCache) get(key string) (*installEntry, bool) {
	entry, ok := c.Cache[key]
	return entry, ok
}

func (c *installCache) set(key string, entry *installEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*installEntry)
	}
	c.Cache[key] = entry
}

// loadInstallCache reads path; a missing file is an empty cache.
func loadInstallCache(path string) (*installCache, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &installCache{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cache installCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func saveInstallCache(path string, cache *installCache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
