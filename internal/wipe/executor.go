package wipe

import (
	"context"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	cerr "github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"secrm/internal/logging"
	"secrm/internal/system"
)

// ExecutorConfig конфигурация перезаписи
type ExecutorConfig struct {
	Plan         PassPlan
	BufferSize   int64   // размер блока записи (1МБ по умолчанию)
	MaxSpeedMBps float64 // 0 = без ограничения
	Progress     chan<- ProgressInfo
	Logger       *logging.EnterpriseLogger
	// Rand источник для случайных проходов; nil = засев из crypto/rand на каждую операцию
	Rand *rand.Rand
}

// Executor перезаписывает содержимое файлов по плану проходов
type Executor struct {
	config *ExecutorConfig
}

// NewExecutor создает исполнитель
func NewExecutor(config *ExecutorConfig) *Executor {
	if config.BufferSize <= 0 {
		config.BufferSize = 1024 * 1024
	}
	if config.Plan.Passes <= 0 {
		config.Plan = NewPassPlan(config.Plan.Method, 0, config.Plan.ZeroPass)
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	return &Executor{config: config}
}

// Plan возвращает план проходов
func (e *Executor) Plan() PassPlan {
	return e.config.Plan
}

// OverwriteFile перезаписывает f начиная со смещения start
func (e *Executor) OverwriteFile(ctx context.Context, f *os.File, start int64) (*WipeResult, error) {
	res, err := e.OverwriteTail(ctx, int(f.Fd()), start)
	runtime.KeepAlive(f)
	return res, err
}

// OverwriteTail перезаписывает байты [start, size) дескриптора fd всеми
// проходами плана. Позиция чтения/записи дескриптора восстанавливается
// при любом исходе. Длина файла не меняется.
func (e *Executor) OverwriteTail(ctx context.Context, fd int, start int64) (*WipeResult, error) {
	plan := e.config.Plan
	result := &WipeResult{Passes: plan.Total()}
	startTime := time.Now()

	if start < 0 {
		start = 0
	}

	orig, err := unix.Seek(fd, 0, io.SeekCurrent)
	if err != nil {
		return result, cerr.Wrapf(err, "seek fd %d", fd)
	}
	defer func() {
		if _, err := unix.Seek(fd, orig, io.SeekStart); err != nil {
			e.config.Logger.Log("WARN", "Не удалось восстановить позицию", "fd", fd, "error", err.Error())
		}
	}()

	size, err := unix.Seek(fd, 0, io.SeekEnd)
	if err != nil {
		return result, cerr.Wrapf(err, "seek end fd %d", fd)
	}
	if size == 0 || start >= size {
		result.Success = true
		return result, nil
	}
	if _, err := unix.Seek(fd, start, io.SeekStart); err != nil {
		return result, cerr.Wrapf(err, "seek fd %d to %d", fd, start)
	}

	lk, err := acquireLock(fd)
	if err != nil {
		e.config.Logger.Log("WARN", "Нет эксклюзивного доступа, затирание пропущено", "fd", fd, "error", err.Error())
		result.Error = err
		return result, err
	}
	result.LockKind = lk.Kind()
	defer func() {
		if err := lk.Release(); err != nil {
			e.config.Logger.Log("WARN", "Ошибка снятия блокировки", "fd", fd, "kind", lk.Kind(), "error", err.Error())
		}
	}()

	total := size - start
	chunk := e.config.BufferSize
	if total < chunk {
		chunk = total
	}
	buf := GetBuffer(int(chunk))
	defer PutBuffer(buf)

	gen := NewGenerator(plan, e.config.Rand)
	var sel Selection
	writer := NewThrottledWriter(fdWriter(fd), e.config.MaxSpeedMBps)

	e.config.Logger.Log("DEBUG", "Начало перезаписи", "fd", fd, "start", start, "size", size,
		"plan", plan.String(), "lock", lk.Kind())

	interrupted := func() error {
		if lk.Broken() {
			return cerr.Wrap(ErrWipeInterrupted, "lease broken by another process")
		}
		if ctx.Err() != nil {
			result.Cancelled = true
			return cerr.Mark(cerr.Wrap(ctx.Err(), "wipe cancelled"), ErrWipeInterrupted)
		}
		return nil
	}

	for pass := 0; pass < plan.Total(); pass++ {
		if err := interrupted(); err != nil {
			return e.finish(result, startTime, err)
		}

		pattern := gen.Fill(pass, buf, &sel)

		if _, err := unix.Seek(fd, start, io.SeekStart); err != nil {
			return e.finish(result, startTime, cerr.Wrapf(err, "seek pass %d", pass))
		}

		var written int64
		for written < total {
			if err := interrupted(); err != nil {
				return e.finish(result, startTime, err)
			}

			n := int64(len(buf))
			if remaining := total - written; remaining < n {
				n = remaining
			}
			w, err := writer.Write(buf[:n])
			written += int64(w)
			result.BytesWritten += uint64(w)
			if err != nil {
				if system.IsDiskFullError(err) {
					err = cerr.WithHint(err, "no space left while overwriting in place")
				}
				return e.finish(result, startTime, cerr.Wrapf(err, "write pass %d at %d", pass, start+written))
			}
			if w == 0 {
				return e.finish(result, startTime, cerr.Wrapf(ErrShortWrite, "pass %d", pass))
			}
		}

		// Каждый проход после первого и последний проход фиксируются на диске
		if pass > 0 || pass == plan.Total()-1 {
			if err := writer.Sync(); err != nil {
				return e.finish(result, startTime, cerr.Wrapf(err, "fsync pass %d", pass))
			}
		}

		result.PassesCompleted++
		e.config.Logger.Log("DEBUG", "Проход завершен", "fd", fd, "pass", pass+1,
			"total", plan.Total(), "random", plan.IsRandom(pass), "pattern", int(pattern))
		e.sendProgress(result, plan.Total(), startTime)
	}

	result.Success = true
	return e.finish(result, startTime, nil)
}

func (e *Executor) finish(result *WipeResult, startTime time.Time, err error) (*WipeResult, error) {
	result.Duration = time.Since(startTime)
	if secs := result.Duration.Seconds(); secs > 0 {
		result.SpeedMBps = float64(result.BytesWritten) / (1024 * 1024) / secs
	}
	result.Error = err
	if err != nil {
		e.config.Logger.Log("WARN", "Перезапись прервана", "passes_completed", result.PassesCompleted,
			"bytes_written", result.BytesWritten, "error", err.Error())
	}
	return result, err
}

func (e *Executor) sendProgress(result *WipeResult, totalPasses int, startTime time.Time) {
	if e.config.Progress == nil {
		return
	}
	info := ProgressInfo{
		Pass:         result.PassesCompleted,
		TotalPasses:  totalPasses,
		BytesWritten: result.BytesWritten,
		Percentage:   float64(result.PassesCompleted) / float64(totalPasses) * 100,
		Done:         result.PassesCompleted == totalPasses,
	}
	if secs := time.Since(startTime).Seconds(); secs > 0 {
		info.SpeedMBps = float64(result.BytesWritten) / (1024 * 1024) / secs
	}
	select {
	case e.config.Progress <- info:
	default:
	}
}
