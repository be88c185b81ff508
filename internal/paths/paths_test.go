package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealUser(t *testing.T) {
	t.Setenv("SUDO_UID", "")
	_, _, ok := RealUser()
	assert.False(t, ok)

	t.Setenv("SUDO_UID", "1000")
	t.Setenv("SUDO_GID", "100")
	uid, gid, ok := RealUser()
	require.True(t, ok)
	assert.Equal(t, 1000, uid)
	assert.Equal(t, 100, gid)

	t.Setenv("SUDO_UID", "nobody")
	_, _, ok = RealUser()
	assert.False(t, ok)
}

func TestDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SUDO_USER", "")
	t.Setenv("SUDO_UID", "")
	t.Setenv("HOME", home)

	dir, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "hostpin"), dir)
	assert.DirExists(t, dir)

	db, err := DBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hostpin.db"), db)
}
