package hosts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// BackupLayout formats the timestamp suffix of backup copies.
const BackupLayout = "20060102_150405"

// File is a hosts file on disk.
type File struct {
	// Path of the hosts file.
	Path string
	// LockPath, when set, is a file used to serialize writers across
	// processes.
	LockPath string
}

// NewFile returns a File for path, or the platform default when path is empty.
func NewFile(path, lockPath string) *File {
	if path == "" {
		path = DefaultPath()
	}
	return &File{Path: path, LockPath: lockPath}
}

// Read returns the current contents.
func (f *File) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// BackupPath returns the backup file name for a backup taken at t.
func (f *File) BackupPath(t time.Time) string {
	return f.Path + ".bak_" + t.Format(BackupLayout)
}

// Backup copies the hosts file next to itself and returns the copy's path.
func (f *File) Backup(now time.Time) (string, error) {
	src, err := os.Open(f.Path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	backup := f.BackupPath(now)
	dst, err := os.OpenFile(backup, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("create %s: %w", backup, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(backup)
		return "", fmt.Errorf("copy to %s: %w", backup, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(backup)
		return "", fmt.Errorf("close %s: %w", backup, err)
	}
	return backup, nil
}

// Write replaces the hosts file with text atomically: readers see either
// the old or the new contents, never a mix. The file mode is preserved.
func (f *File) Write(text string) (err error) {
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(f.Path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err := tmp.WriteString(text)
	if err == nil && n < len(text) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = tmp.Sync()
	}
	if err1 := tmp.Close(); err == nil {
		err = err1
	}
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err = os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpPath, f.Path); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}

// Backups lists existing backup copies, oldest first.
func (f *File) Backups() ([]string, error) {
	matches, err := filepath.Glob(f.Path + ".bak_*")
	if err != nil {
		return nil, err
	}
	// The timestamp layout sorts lexically.
	sort.Strings(matches)
	return matches, nil
}

// PruneBackups removes all but the newest keep backups. keep <= 0 keeps all.
func (f *File) PruneBackups(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	backups, err := f.Backups()
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[:len(backups)-keep] {
		if err := os.Remove(b); err != nil {
			return removed, fmt.Errorf("remove %s: %w", b, err)
		}
		removed = append(removed, b)
	}
	return removed, nil
}

// Lock takes the cross-process writer lock. It blocks until the lock is
// free. The returned function releases it.
func (f *File) Lock() (func(), error) {
	if f.LockPath == "" {
		return func() {}, nil
	}
	lf, err := os.OpenFile(f.LockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(lf); err != nil {
		lf.Close()
		return nil, fmt.Errorf("lock %s: %w", f.LockPath, err)
	}
	return func() {
		unlockFile(lf)
		lf.Close()
	}, nil
}
