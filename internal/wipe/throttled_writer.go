package wipe

import (
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// fdWriter пишет в сырой дескриптор, не владея им
type fdWriter int

func (w fdWriter) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(int(w), p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func (w fdWriter) Sync() error {
	return unix.Fsync(int(w))
}

type syncer interface {
	Sync() error
}

// ThrottledWriter ограничивает скорость записи (thread-safe)
type ThrottledWriter struct {
	w            io.Writer
	maxSpeedMBps float64
	lastWrite    time.Time
	mu           sync.Mutex
}

// NewThrottledWriter создает новый throttled writer. maxSpeedMBps <= 0 отключает ограничение.
func NewThrottledWriter(w io.Writer, maxSpeedMBps float64) *ThrottledWriter {
	return &ThrottledWriter{
		w:            w,
		maxSpeedMBps: maxSpeedMBps,
		lastWrite:    time.Now(),
	}
}

// Write записывает данные с ограничением скорости
func (tw *ThrottledWriter) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.maxSpeedMBps > 0 {
		bytesPerSec := tw.maxSpeedMBps * 1024 * 1024
		expected := time.Duration(float64(len(data)) / bytesPerSec * float64(time.Second))
		actual := time.Since(tw.lastWrite)
		if actual < expected {
			time.Sleep(expected - actual)
		}
	}

	n, err := tw.w.Write(data)
	tw.lastWrite = time.Now()
	return n, err
}

// Sync синхронизирует данные на диск, если нижележащий writer это умеет
func (tw *ThrottledWriter) Sync() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if s, ok := tw.w.(syncer); ok {
		return s.Sync()
	}
	return nil
}
