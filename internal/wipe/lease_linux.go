//go:build linux

package wipe

import (
	"os"
	"os/signal"
	"sync/atomic"

	cerr "github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

const (
	lockLease = "lease"
	lockFlock = "flock"
)

// wipeLock удерживает эксклюзивный доступ к файлу на время перезаписи.
// Предпочитается write lease: ядро посылает SIGIO, когда другой процесс
// открывает файл. Если lease недоступен (overlayfs, чужой владелец),
// берется неблокирующий flock.
type wipeLock struct {
	fd     int
	kind   string
	sigs   chan os.Signal
	done   chan struct{}
	broken atomic.Bool
}

func acquireLock(fd int) (*wipeLock, error) {
	lk := &wipeLock{
		fd:   fd,
		sigs: make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(lk.sigs, unix.SIGIO)
	go lk.watch()

	_, leaseErr := unix.FcntlInt(uintptr(fd), unix.F_SETLEASE, unix.F_WRLCK)
	if leaseErr == nil {
		lk.kind = lockLease
		return lk, nil
	}

	flockErr := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
	if flockErr == nil {
		lk.kind = lockFlock
		return lk, nil
	}

	lk.stop()
	return nil, cerr.Mark(
		cerr.Newf("lease: %v, flock: %v", leaseErr, flockErr),
		ErrLockUnavailable,
	)
}

func (lk *wipeLock) watch() {
	for {
		select {
		case <-lk.sigs:
			lk.broken.Store(true)
		case <-lk.done:
			return
		}
	}
}

// Broken сообщает, что lease был разорван другим процессом
func (lk *wipeLock) Broken() bool {
	return lk.broken.Load()
}

func (lk *wipeLock) Kind() string {
	return lk.kind
}

func (lk *wipeLock) Release() error {
	var err error
	switch lk.kind {
	case lockLease:
		_, err = unix.FcntlInt(uintptr(lk.fd), unix.F_SETLEASE, unix.F_UNLCK)
	case lockFlock:
		err = unix.Flock(lk.fd, unix.LOCK_UN)
	}
	lk.stop()
	return err
}

func (lk *wipeLock) stop() {
	signal.Stop(lk.sigs)
	close(lk.done)
}
