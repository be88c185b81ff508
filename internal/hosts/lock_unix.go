//go:build !windows

package hosts

import (
	"os"

	"golang.org/x/sys/unix"
)

// DefaultPath returns the system hosts file location.
func DefaultPath() string {
	return "/etc/hosts"
}

func lockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
