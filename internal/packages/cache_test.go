package packages

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadInstallCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "external", cacheFile)
	now := time.Now().Truncate(time.Second)

	cache := &installCache{}
	cache.set(cacheKey("linux-gnu", "ml"), &installEntry{Metadata: "--disable-tests", BuildTime: now})
	if err := saveInstallCache(path, cache); err != nil {
		t.Fatalf("saveInstallCache failed: %v", err)
	}

	loaded, err := loadInstallCache(path)
	if err != nil {
		t.Fatalf("loadInstallCache failed: %v", err)
	}
	entry, ok := loaded.get("linux-gnu-ml")
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if entry.Metadata != "--disable-tests" {
		t.Errorf("Metadata = %q", entry.Metadata)
	}
	if !entry.BuildTime.Equal(now) {
		t.Errorf("BuildTime = %v, want %v", entry.BuildTime, now)
	}
}

func TestLoadInstallCacheMissing(t *testing.T) {
	cache, err := loadInstallCache(filepath.Join(t.TempDir(), cacheFile))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.get("default-mpi"); ok {
		t.Error("empty cache has an entry")
	}
}

func TestLoadInstallCacheInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), cacheFile)
	if err := os.WriteFile(path, []byte("invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadInstallCache(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
