package wipe

import (
	cerr "github.com/cockroachdb/errors"
)

var (
	// ErrLockUnavailable ни lease, ни flock получить не удалось
	ErrLockUnavailable = cerr.New("exclusive access to file unavailable")
	// ErrWipeInterrupted lease разорван или операция отменена во время прохода
	ErrWipeInterrupted = cerr.New("wipe interrupted")
	ErrNotRegular      = cerr.New("not a regular file")
	ErrShortWrite      = cerr.New("write made no progress")
)
