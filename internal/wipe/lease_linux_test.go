//go:build linux

package wipe

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secrm/internal/logging"
)

// Открытие файла другим процессом разрывает lease, и перезапись
// останавливается до завершения всех проходов.
func TestOverwriteAbortsWhenLeaseBroken(t *testing.T) {
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	const size = 2 * 1024 * 1024
	f, path := openFilled(t, make([]byte, size))

	e := NewExecutor(&ExecutorConfig{
		Plan:         NewPassPlan(MethodDoD, 0, false),
		BufferSize:   64 * 1024,
		MaxSpeedMBps: 4,
		Logger:       logging.FromZap(zaptest.NewLogger(t)),
		Rand:         seeded(),
	})

	opened := make(chan error, 1)
	go func() {
		time.Sleep(200 * time.Millisecond)
		opened <- exec.Command(cat, path).Run()
	}()

	res, err := e.OverwriteFile(context.Background(), f, 0)
	if res.LockKind != lockLease {
		<-opened
		t.Skipf("file leases unavailable on this filesystem (lock %q)", res.LockKind)
	}

	require.ErrorIs(t, err, ErrWipeInterrupted)
	assert.Contains(t, err.Error(), "lease broken")
	assert.False(t, res.Success)
	assert.False(t, res.Cancelled)
	assert.Less(t, res.PassesCompleted, 3)
	assert.Less(t, res.BytesWritten, uint64(3*size))

	// после снятия lease второй процесс открывает файл
	require.NoError(t, <-opened)
}
