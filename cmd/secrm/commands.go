package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"secrm/internal/system"
	"secrm/internal/wipe"
)

var (
	recursive    bool
	force        bool
	truncateSize string
)

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm [файлы...]",
		Short: "Затереть и удалить файлы",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRm,
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Рекурсивно удалять каталоги")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Игнорировать несуществующие файлы")
	return cmd
}

func newRmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir [каталоги...]",
		Short: "Скремблировать имена и удалить пустые каталоги",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRmdir,
	}
}

func newTruncateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "truncate --size N [файлы...]",
		Short: "Затереть хвост и усечь файлы до размера",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTruncate,
	}
	cmd.Flags().StringVarP(&truncateSize, "size", "s", "0", "Новый размер в байтах")
	return cmd
}

func newWipeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wipe [файлы...]",
		Short: "Затереть содержимое файлов без удаления",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWipe,
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [пути...]",
		Short: "Показать, разрешено ли затирание",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
}

func newPassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "Показать план проходов",
		Args:  cobra.NoArgs,
		RunE:  runPasses,
	}
}

// batch собирает операции и ошибки одной команды
type batch struct {
	operations  []*wipe.WipeOperation
	errs        *multierror.Error
	hasWarnings bool
}

func (b *batch) add(op *wipe.WipeOperation, err error) {
	if op != nil {
		b.operations = append(b.operations, op)
		switch op.Status {
		case wipe.StatusPartial, wipe.StatusDenied, wipe.StatusCancelled:
			b.hasWarnings = true
			logger.Log("WARN", "Операция выполнена без полного затирания", "path", op.Path,
				"status", op.Status, "reason", op.Reason, "warning", op.Warning)
		case wipe.StatusFailed:
			logger.Log("ERROR", "Операция не удалась", "path", op.Path, "error", op.Error)
		}
	}
	if err != nil {
		b.errs = multierror.Append(b.errs, err)
	}
}

// finish печатает результаты, сохраняет отчёт и выбирает код завершения
func (b *batch) finish() error {
	printResults(b.operations)

	exitCode := EXIT_SUCCESS
	if b.errs.ErrorOrNil() != nil {
		exitCode = EXIT_ERROR
	} else if b.hasWarnings {
		exitCode = EXIT_WARNING
	}
	generateAndSaveReport(b.operations, exitCode)

	switch exitCode {
	case EXIT_ERROR:
		return &exitError{EXIT_ERROR, b.errs}
	case EXIT_WARNING:
		return &exitError{EXIT_WARNING, cerr.New("некоторые файлы не были затерты")}
	}
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	b := &batch{}
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		info, err := os.Lstat(path)
		if err != nil {
			if force && os.IsNotExist(err) {
				continue
			}
			b.add(nil, err)
			continue
		}
		if info.IsDir() {
			if !recursive {
				b.add(nil, cerr.Newf("%s: это каталог (используйте -r)", path))
				continue
			}
			removeTree(ctx, path, b)
			continue
		}
		b.add(engine.Delete(ctx, path))
	}
	return b.finish()
}

// removeTree удаляет дерево снизу вверх: сначала файлы, затем каталоги
func removeTree(ctx context.Context, root string, b *batch) {
	var files, dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			b.add(nil, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		b.add(nil, err)
	}

	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		b.add(engine.Delete(ctx, f))
	}
	// Более глубокие каталоги удаляются первыми
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		if ctx.Err() != nil {
			return
		}
		b.add(engine.RemoveDir(ctx, d))
	}
}

func runRmdir(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	b := &batch{}
	for _, path := range args {
		b.add(engine.RemoveDir(ctx, path))
	}
	return b.finish()
}

func runTruncate(cmd *cobra.Command, args []string) error {
	size, err := strconv.ParseInt(truncateSize, 10, 64)
	if err != nil || size < 0 {
		return &exitError{EXIT_ERROR, cerr.Newf("неверный размер: %q", truncateSize)}
	}

	ctx, cancel := signalContext()
	defer cancel()

	b := &batch{}
	for _, path := range args {
		b.add(engine.Truncate(ctx, path, size))
	}
	return b.finish()
}

func runWipe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	b := &batch{}
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		b.add(engine.Wipe(ctx, path))
	}
	return b.finish()
}

func runCheck(cmd *cobra.Command, args []string) error {
	resolver := engine.Resolver()
	denied := 0

	for _, path := range args {
		d := resolver.CheckPath(path, false)
		if id, err := system.StatPath(path, false); err == nil && id.IsDir() {
			d = resolver.CheckDir(path)
		}

		mark := "✓"
		if !d.Allowed {
			mark = "✗"
			denied++
		}
		fmt.Printf("%s %s - %s\n", mark, path, d.String())
	}

	if denied > 0 {
		return &exitError{EXIT_WARNING, cerr.Newf("затирание запрещено для %d из %d путей", denied, len(args))}
	}
	return nil
}

func runPasses(cmd *cobra.Command, args []string) error {
	plan := engine.Plan()
	fmt.Printf("Метод: %s, проходов: %d\n", plan.Method, plan.Total())
	if n, ok := cfg.IterationsFromEnv(); ok && n != uint64(plan.Passes) {
		fmt.Printf("Внимание: %s=%d не совпадает с планом (%d)\n", cfg.Ban.IterationsEnv, n, plan.Passes)
	}

	for pass := 0; pass < plan.Total(); pass++ {
		kind := "фиксированный шаблон"
		switch {
		case plan.IsZero(pass):
			kind = "нули"
		case plan.IsRandom(pass):
			kind = "случайный шаблон"
		}
		fmt.Printf("  проход %2d: %s\n", pass+1, kind)
	}
	return nil
}

func printResults(operations []*wipe.WipeOperation) {
	if len(operations) == 0 {
		return
	}
	fmt.Println("\nРезультаты:")
	fmt.Println("==================")
	for _, op := range operations {
		status := "✓"
		switch op.Status {
		case wipe.StatusCompleted:
		case wipe.StatusPartial, wipe.StatusDenied, wipe.StatusSkipped, wipe.StatusCancelled:
			status = "⚠"
		default:
			status = "✗"
		}

		fmt.Printf("%s %s %s - %s (%.1f KB, %.1f MB/s)\n", status, op.Kind, op.Path, op.Status,
			float64(op.BytesWiped)/1024, op.SpeedMBps)

		if op.Reason != "" {
			fmt.Printf("  Причина: %s\n", op.Reason)
		}
		if op.Warning != "" {
			fmt.Printf("  Предупреждение: %s\n", op.Warning)
		}
		if op.Error != "" {
			fmt.Printf("  Ошибка: %s\n", op.Error)
		}
	}
}
