package btcforge

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const lockFileName = ".btcforge.lock"

// acquireBuildLock takes an exclusive, non-blocking flock on the build root
// so two btcforge processes cannot clone or build into the same tree at
// once. The returned release func unlocks and closes the file.
func acquireBuildLock(root string) (func(), error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &FilesystemError{Op: "create", Path: root, Err: err}
	}
	path := filepath.Join(root, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &FilesystemError{Op: "create", Path: path, Err: err}
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another btcforge build is already running in %s", root)
	}
	release := func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}
	return release, nil
}
