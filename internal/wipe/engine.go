package wipe

import (
	"context"
	"os"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"secrm/internal/config"
	"secrm/internal/logging"
	"secrm/internal/scramble"
	"secrm/internal/security"
	"secrm/internal/system"
)

// Engine выполняет операции удаления с предварительным затиранием.
// Затирание всегда best effort: исходная операция выполняется в любом
// случае, а ее ошибка возвращается вызывающему без изменений.
type Engine struct {
	cfg       *config.Config
	logger    *logging.EnterpriseLogger
	resolver  *security.Resolver
	executor  *Executor
	scrambler *scramble.Scrambler
	dryRun    bool
}

// EngineOptions дополнительные параметры движка
type EngineOptions struct {
	DryRun   bool
	Progress chan<- ProgressInfo
}

// NewEngine создает движок по конфигурации
func NewEngine(cfg *config.Config, logger *logging.EnterpriseLogger, opts EngineOptions) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	method, err := ValidateMethod(cfg.Wipe.Method)
	if err != nil {
		return nil, err
	}
	plan := NewPassPlan(method, cfg.Wipe.Passes, cfg.Wipe.ZeroPass)

	if n, ok := cfg.IterationsFromEnv(); ok && n != uint64(plan.Passes) {
		logger.Log("INFO", "Число итераций из окружения отличается от плана, используется план",
			"env", cfg.Ban.IterationsEnv, "env_value", n, "plan", plan.Passes)
	}

	return NewEngineWithDependencies(cfg, logger,
		security.NewResolver(cfg, logger),
		NewExecutor(&ExecutorConfig{
			Plan:         plan,
			BufferSize:   cfg.Wipe.BufferSize,
			MaxSpeedMBps: cfg.Wipe.MaxSpeedMBps,
			Progress:     opts.Progress,
			Logger:       logger,
		}),
		scramble.New(&scramble.Config{
			Passes:  plan.Passes,
			SyncDir: true,
			Logger:  logger,
		}),
		opts.DryRun,
	), nil
}

// NewEngineWithDependencies создает движок с готовыми зависимостями (для тестов)
func NewEngineWithDependencies(cfg *config.Config, logger *logging.EnterpriseLogger,
	resolver *security.Resolver, executor *Executor, scrambler *scramble.Scrambler, dryRun bool) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		resolver:  resolver,
		executor:  executor,
		scrambler: scrambler,
		dryRun:    dryRun,
	}
}

// Plan возвращает план проходов движка
func (e *Engine) Plan() PassPlan {
	return e.executor.Plan()
}

// Resolver возвращает резолвер исключений
func (e *Engine) Resolver() *security.Resolver {
	return e.resolver
}

func (e *Engine) newOperation(kind, path string) *WipeOperation {
	plan := e.executor.Plan()
	return &WipeOperation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Path:      path,
		Method:    string(plan.Method),
		Passes:    plan.Total(),
		Status:    StatusCompleted,
		StartTime: time.Now(),
		DryRun:    e.dryRun,
	}
}

func (e *Engine) finish(op *WipeOperation, wipeErrs *multierror.Error) {
	now := time.Now()
	op.EndTime = &now
	if err := wipeErrs.ErrorOrNil(); err != nil {
		op.Warning = err.Error()
		if op.Status == StatusCompleted {
			op.Status = StatusPartial
			for _, werr := range wipeErrs.Errors {
				if cerr.Is(werr, context.Canceled) {
					op.Status = StatusCancelled
				}
			}
		}
	}
	e.logger.Log("INFO", "Операция завершена", "id", op.ID, "kind", op.Kind, "path", op.Path,
		"status", op.Status, "reason", op.Reason, "bytes", op.BytesWiped, "final_name", op.FinalName)
}

// enter поднимает флаг активности. Если движок уже активен, операция
// помечается как пропущенная и должна выполниться без затирания.
func (e *Engine) enter(op *WipeOperation) (*Guard, bool) {
	g := AcquireGuard()
	if g == nil {
		op.Status = StatusSkipped
		op.Reason = "engine already active"
		return nil, false
	}
	return g, true
}

// Delete затирает и удаляет файл. Символические ссылки и файлы, которые
// нельзя затирать, просто удаляются.
func (e *Engine) Delete(ctx context.Context, path string) (*WipeOperation, error) {
	op := e.newOperation(OpDelete, path)
	var wipeErrs *multierror.Error

	g, ok := e.enter(op)
	defer g.Release()
	if !ok {
		err := os.Remove(path)
		e.finishPlain(op, err, &wipeErrs)
		return op, err
	}

	decision := e.resolver.CheckPath(path, false)
	if !decision.Allowed {
		e.markDenied(op, decision)
		if e.dryRun {
			e.finish(op, wipeErrs)
			return op, nil
		}
		err := os.Remove(path)
		e.finishPlain(op, err, &wipeErrs)
		return op, err
	}

	if e.dryRun {
		e.finish(op, wipeErrs)
		return op, nil
	}

	if err := e.overwritePath(ctx, decision, 0, op); err != nil {
		wipeErrs = multierror.Append(wipeErrs, err)
	}

	res, err := e.scrambler.ScrambleAndRemove(decision.Path, os.Remove)
	op.FinalName = res.FinalName
	op.Removed = res.Outcome == scramble.Removed
	if err != nil {
		op.Status = StatusFailed
		op.Error = err.Error()
	}
	e.finish(op, wipeErrs)
	return op, err
}

// RemoveDir скремблирует имя пустого каталога и удаляет его
func (e *Engine) RemoveDir(ctx context.Context, path string) (*WipeOperation, error) {
	op := e.newOperation(OpRemoveDir, path)
	op.Passes = e.executor.Plan().Passes
	var wipeErrs *multierror.Error

	g, ok := e.enter(op)
	defer g.Release()
	if !ok {
		err := wrapPath("rmdir", path, unix.Rmdir(path))
		e.finishPlain(op, err, &wipeErrs)
		return op, err
	}

	decision := e.resolver.CheckDir(path)
	if !decision.Allowed || e.dryRun {
		if !decision.Allowed {
			e.markDenied(op, decision)
		}
		if e.dryRun {
			e.finish(op, wipeErrs)
			return op, nil
		}
		err := wrapPath("rmdir", path, unix.Rmdir(path))
		e.finishPlain(op, err, &wipeErrs)
		return op, err
	}

	res, err := e.scrambler.ScrambleAndRemove(decision.Path, func(p string) error {
		return wrapPath("rmdir", p, unix.Rmdir(p))
	})
	op.FinalName = res.FinalName
	op.Removed = res.Outcome == scramble.Removed
	if err != nil {
		op.Status = StatusFailed
		op.Error = err.Error()
	}
	e.finish(op, wipeErrs)
	return op, err
}

// Truncate затирает байты за новой длиной и усекает файл
func (e *Engine) Truncate(ctx context.Context, path string, length int64) (*WipeOperation, error) {
	op := e.newOperation(OpTruncate, path)
	var wipeErrs *multierror.Error

	g, ok := e.enter(op)
	defer g.Release()

	if ok {
		decision := e.resolver.CheckPath(path, true)
		switch {
		case !decision.Allowed:
			e.markDenied(op, decision)
		case e.dryRun:
		default:
			if err := e.overwritePath(ctx, decision, length, op); err != nil {
				wipeErrs = multierror.Append(wipeErrs, err)
			}
		}
	}
	if e.dryRun {
		e.finish(op, wipeErrs)
		return op, nil
	}

	err := os.Truncate(path, length)
	e.finishPlain(op, err, &wipeErrs)
	return op, err
}

// OpenTruncating затирает существующий файл перед открытием с O_TRUNC.
// Без O_TRUNC файл просто открывается.
func (e *Engine) OpenTruncating(ctx context.Context, path string, flag int, perm os.FileMode) (*os.File, *WipeOperation, error) {
	op := e.newOperation(OpOpen, path)
	var wipeErrs *multierror.Error

	g, ok := e.enter(op)
	defer g.Release()

	if ok && flag&os.O_TRUNC != 0 {
		decision := e.resolver.CheckPath(path, flag&unix.O_NOFOLLOW == 0)
		switch {
		case !decision.Allowed:
			e.markDenied(op, decision)
		case e.dryRun:
		default:
			if err := e.overwritePath(ctx, decision, 0, op); err != nil {
				wipeErrs = multierror.Append(wipeErrs, err)
			}
		}
	} else if ok {
		op.Status = StatusSkipped
		op.Reason = "no truncation requested"
	}
	if e.dryRun {
		e.finish(op, wipeErrs)
		return nil, op, nil
	}

	f, err := os.OpenFile(path, flag, perm)
	e.finishPlain(op, err, &wipeErrs)
	return f, op, err
}

// Wipe затирает содержимое файла, не удаляя его
func (e *Engine) Wipe(ctx context.Context, path string) (*WipeOperation, error) {
	op := e.newOperation(OpWipe, path)
	var wipeErrs *multierror.Error

	g, ok := e.enter(op)
	defer g.Release()
	if !ok {
		e.finish(op, wipeErrs)
		return op, nil
	}

	decision := e.resolver.CheckPath(path, true)
	if !decision.Allowed {
		e.markDenied(op, decision)
		e.finish(op, wipeErrs)
		return op, cerr.Newf("%s: %s", path, decision.String())
	}
	if e.dryRun {
		e.finish(op, wipeErrs)
		return op, nil
	}

	err := e.overwritePath(ctx, decision, 0, op)
	if err != nil {
		op.Status = StatusFailed
		op.Error = err.Error()
		if cerr.Is(err, context.Canceled) {
			op.Status = StatusCancelled
		}
	}
	e.finish(op, nil)
	return op, err
}

// overwritePath перезаписывает объект, одобренный решением d, начиная со
// смещения start. Открытый файл сверяется с (dev, ino) решения: затирается
// ровно тот объект, который прошел проверки. Нет права записи у владельца:
// оно выдается на время затирания. Режим затем восстанавливается через
// fchmod вместе с битами setuid и setgid, которые ядро снимает при записи.
func (e *Engine) overwritePath(ctx context.Context, d security.Decision, start int64, op *WipeOperation) (err error) {
	path := d.Path
	id, err := system.StatPath(path, false)
	if err != nil {
		return cerr.Wrap(err, "stat before wipe")
	}
	if !id.IsRegular() {
		return cerr.Wrapf(ErrNotRegular, "%s", path)
	}
	if id.Key() != d.Key {
		return cerr.Newf("%s replaced after check", path)
	}

	mode := id.Perm()
	restore := mode&(unix.S_ISUID|unix.S_ISGID) != 0
	if !id.OwnerWritable() {
		if chErr := unix.Chmod(path, mode|unix.S_IWUSR); chErr == nil {
			restore = true
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		if restore {
			e.restoreMode(path, -1, mode)
		}
		return cerr.Wrap(err, "open for wipe")
	}
	defer f.Close()

	restoreFd := -1
	if restore {
		defer func() {
			if rerr := e.restoreMode(path, restoreFd, mode); rerr != nil {
				err = multierror.Append(err, rerr).ErrorOrNil()
			}
		}()
	}

	opened, err := system.StatFd(int(f.Fd()))
	if err != nil {
		return err
	}
	if opened.Key() != d.Key {
		return cerr.Newf("%s replaced between check and open", path)
	}
	restoreFd = int(f.Fd())

	res, err := e.executor.OverwriteFile(ctx, f, start)
	if res != nil {
		op.BytesWiped += res.BytesWritten
		op.SpeedMBps = res.SpeedMBps
	}
	return err
}

// restoreMode возвращает исходный режим: через дескриптор, если он есть
func (e *Engine) restoreMode(path string, fd int, mode uint32) error {
	var err error
	if fd >= 0 {
		err = unix.Fchmod(fd, mode)
	} else {
		err = unix.Chmod(path, mode)
	}
	if err != nil {
		e.logger.Log("WARN", "Не удалось восстановить права", "path", path, "mode", mode, "error", err.Error())
		return cerr.Wrapf(err, "restore mode of %s", path)
	}
	return nil
}

func (e *Engine) markDenied(op *WipeOperation, d security.Decision) {
	op.Status = StatusDenied
	op.Reason = d.String()
	e.logger.Log("DEBUG", "Затирание не разрешено", "path", op.Path, "reason", op.Reason)
}

// finishPlain фиксирует итог исходной операции, выполненной без затирания
// или после него
func (e *Engine) finishPlain(op *WipeOperation, err error, wipeErrs **multierror.Error) {
	if err != nil {
		op.Status = StatusFailed
		op.Error = err.Error()
	} else if op.Kind == OpDelete || op.Kind == OpRemoveDir {
		op.Removed = true
	}
	e.finish(op, *wipeErrs)
}

func wrapPath(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &os.PathError{Op: op, Path: path, Err: err}
}
