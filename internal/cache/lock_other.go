//go:build !unix

package cache

import "os"

// Without flock the snapshot is only protected against concurrent
// writers by the atomic rename in Save.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
