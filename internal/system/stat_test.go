package system

import (
	"os"
	"path/filepath"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestStatPathKinds(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(file, []byte("abc"), 0400))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(file, link))

	id, err := StatPath(file, false)
	require.NoError(t, err)
	assert.True(t, id.IsRegular())
	assert.False(t, id.OwnerWritable())
	assert.Equal(t, int64(3), id.Size)
	assert.Equal(t, uint32(0400), id.Perm())

	lid, err := StatPath(link, false)
	require.NoError(t, err)
	assert.True(t, lid.IsSymlink())

	fid, err := StatPath(link, true)
	require.NoError(t, err)
	assert.Equal(t, id.Key(), fid.Key())

	did, err := StatPath(dir, true)
	require.NoError(t, err)
	assert.True(t, did.IsDir())

	_, err = StatPath(filepath.Join(dir, "absent"), false)
	assert.True(t, os.IsNotExist(err))
}

func TestStatFdMatchesPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	byFd, err := StatFd(int(f.Fd()))
	require.NoError(t, err)
	byPath, err := StatPath(file, true)
	require.NoError(t, err)
	assert.Equal(t, byPath.Key(), byFd.Key())

	target, err := FdPath(int(f.Fd()))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(file), filepath.Base(target))
}

func TestMountDeviceOrdinaryDir(t *testing.T) {
	_, ok := MountDevice(t.TempDir())
	assert.False(t, ok)

	_, ok = MountDevice(filepath.Join(t.TempDir(), "absent"))
	assert.False(t, ok)
}

func TestFsyncDir(t *testing.T) {
	assert.NoError(t, FsyncDir(t.TempDir()))
	assert.Error(t, FsyncDir(filepath.Join(t.TempDir(), "absent")))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsDiskFullError(&os.PathError{Op: "write", Path: "x", Err: unix.ENOSPC}))
	assert.True(t, IsDiskFullError(cerr.Wrap(unix.EDQUOT, "pass 3")))
	assert.False(t, IsDiskFullError(unix.EIO))
	assert.False(t, IsDiskFullError(nil))
	assert.True(t, IsPermissionError(unix.EACCES))
}
