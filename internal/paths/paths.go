package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// HomeDir returns the real user's home directory, even when running under sudo.
// hostpin usually runs as root to rewrite the hosts file; resolving the
// invoking user's home keeps the database in one place whether or not
// the command was run with sudo.
func HomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		u, err := user.Lookup(sudoUser)
		if err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// RealUser returns the UID and GID of the real invoking user when running
// under sudo (via SUDO_UID / SUDO_GID). Returns ok=false when not under sudo.
func RealUser() (uid, gid int, ok bool) {
	sudoUID := os.Getenv("SUDO_UID")
	if sudoUID == "" {
		return 0, 0, false
	}
	u, err := strconv.ParseInt(sudoUID, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	var g int64
	if sudoGID := os.Getenv("SUDO_GID"); sudoGID != "" {
		g, _ = strconv.ParseInt(sudoGID, 10, 64)
	}
	return int(u), int(g), true
}

// ChownToRealUser hands path back to the invoking user when running under
// sudo. It is a no-op otherwise.
func ChownToRealUser(path string) {
	if uid, gid, ok := RealUser(); ok {
		os.Chown(path, uid, gid)
	}
}

// DataDir returns ~/.local/share/hostpin, creating it if needed.
func DataDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "share", "hostpin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	ChownToRealUser(dir)
	return dir, nil
}

// DBPath returns the default database location inside DataDir.
func DBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hostpin.db"), nil
}

// LockPath returns the file used to serialize hosts writers across
// processes. It lives in the system temp dir, shared by every user's hostpin
// process.
func LockPath() string {
	return filepath.Join(os.TempDir(), "hostpin.lock")
}
