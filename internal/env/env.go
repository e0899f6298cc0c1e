// Package env locates the per-user confprobe directories.
package env

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the per-user confprobe directory.
const HomeEnv = "CONFPROBE_HOME"

// WorkDir returns the per-user confprobe directory,
// <UserCacheDir>/.confprobe unless $CONFPROBE_HOME is set.
func WorkDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".confprobe"), nil
}

// RecipeDir returns the directory searched for *_pkg.gox recipes when
// none is given on the command line. It is created with 0700
// permissions if it doesn't exist.
func RecipeDir() (string, error) {
	work, err := WorkDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(work, "recipes")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
