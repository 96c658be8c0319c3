//go:build unix && !linux

package wipe

import (
	cerr "github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

const lockFlock = "flock"

// wipeLock на системах без file lease использует только flock
type wipeLock struct {
	fd int
}

func acquireLock(fd int) (*wipeLock, error) {
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return nil, cerr.Mark(cerr.Wrap(err, "flock"), ErrLockUnavailable)
	}
	return &wipeLock{fd: fd}, nil
}

func (lk *wipeLock) Broken() bool { return false }

func (lk *wipeLock) Kind() string { return lockFlock }

func (lk *wipeLock) Release() error {
	return unix.Flock(lk.fd, unix.LOCK_UN)
}
