package system

import (
	"os"
	"path/filepath"
	"strconv"

	cerr "github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func fromStat(path string, st *unix.Stat_t) FileIdentity {
	return FileIdentity{
		Path: path,
		Dev:  uint64(st.Dev),
		Ino:  uint64(st.Ino),
		Mode: uint32(st.Mode),
		Size: int64(st.Size),
		Uid:  st.Uid,
	}
}

// StatPath выполняет stat (follow) или lstat для пути
func StatPath(path string, follow bool) (FileIdentity, error) {
	var st unix.Stat_t
	var err error
	if follow {
		err = unix.Stat(path, &st)
	} else {
		err = unix.Lstat(path, &st)
	}
	if err != nil {
		return FileIdentity{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return fromStat(path, &st), nil
}

// StatFd выполняет fstat для открытого дескриптора
func StatFd(fd int) (FileIdentity, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return FileIdentity{}, cerr.Wrapf(err, "fstat fd %d", fd)
	}
	return fromStat("", &st), nil
}

// MountDevice возвращает устройство каталога, если он является точкой
// монтирования, то есть его устройство отличается от устройства родителя.
func MountDevice(path string) (uint64, bool) {
	self, err := StatPath(path, true)
	if err != nil || !self.IsDir() {
		return 0, false
	}
	parent, err := StatPath(filepath.Dir(filepath.Clean(path)), true)
	if err != nil {
		return 0, false
	}
	if self.Dev == parent.Dev {
		return 0, false
	}
	return self.Dev, true
}

// FsyncDir сбрасывает на диск метаданные каталога
func FsyncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: dir, Err: err}
	}
	defer unix.Close(fd)

	if err := unix.Fsync(fd); err != nil {
		return &os.PathError{Op: "fsync", Path: dir, Err: err}
	}
	return nil
}

// FdPath возвращает путь, на который указывает дескриптор, через /proc/self/fd
func FdPath(fd int) (string, error) {
	return os.Readlink(filepath.Join("/proc/self/fd", strconv.Itoa(fd)))
}
