package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"secrm/internal/config"
	"secrm/internal/logging"
	"secrm/internal/reporting"
	"secrm/internal/wipe"
)

const (
	Version = "1.0.0"
	AppName = "secrm"

	// Exit codes
	EXIT_SUCCESS = 0
	EXIT_WARNING = 2
	EXIT_ERROR   = 1
)

var (
	cfg        *config.Config
	logger     *logging.EnterpriseLogger
	engine     *wipe.Engine
	dryRun     bool
	verbose    bool
	configPath string
	profile    string
	method     string
	passes     int
	zeroPass   bool
	envFile    string
	startTime  time.Time
)

// exitError несет код завершения для main
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:               "secrm",
	Short:             "secrm - безопасное удаление файлов с многопроходной перезаписью",
	Long:              "Перед удалением, усечением или перезаписью файла его содержимое затирается по методу Gutmann, Schneier, DoD или случайными шаблонами.",
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Тестовый режим: только проверки, без изменений")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный вывод")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к конфигурации")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Профиль затирания (fast/dod/schneier/paranoid)")
	rootCmd.PersistentFlags().StringVarP(&method, "method", "m", "", "Метод затирания (gutmann/random/schneier/dod)")
	rootCmd.PersistentFlags().IntVarP(&passes, "passes", "p", 0, "Количество проходов (0 = по методу)")
	rootCmd.PersistentFlags().BoolVar(&zeroPass, "zero", false, "Завершающий проход нулями")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Файл с переменными окружения (SECRM_FILEBAN, SECRM_PROGBAN, ...)")

	rootCmd.AddCommand(newRmCmd(), newRmdirCmd(), newTruncateCmd(), newWipeCmd(), newCheckCmd(), newPassesCmd())
}

// setup загружает окружение, конфигурацию, логгер и движок
func setup(cmd *cobra.Command, args []string) error {
	startTime = time.Now()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return &exitError{EXIT_ERROR, cerr.Wrapf(err, "ошибка загрузки env-файла %s", envFile)}
		}
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return &exitError{EXIT_ERROR, cerr.Wrap(err, "ошибка загрузки конфигурации")}
	}

	if profile != "" {
		if err := config.ApplyProfile(cfg, profile); err != nil {
			return &exitError{EXIT_ERROR, cerr.Wrapf(err, "ошибка применения профиля %s", profile)}
		}
	}
	if method != "" {
		cfg.Wipe.Method = method
	}
	if cmd.Flags().Changed("passes") {
		cfg.Wipe.Passes = passes
	}
	if zeroPass {
		cfg.Wipe.ZeroPass = true
	}
	if err := config.Validate(cfg); err != nil {
		return &exitError{EXIT_ERROR, cerr.Wrap(err, "невалидная конфигурация")}
	}

	closeLogger()
	logger, err = logging.NewEnterpriseLogger(cfg, verbose)
	if err != nil {
		return &exitError{EXIT_ERROR, cerr.Wrap(err, "ошибка инициализации логгера")}
	}

	engine, err = wipe.NewEngine(cfg, logger, wipe.EngineOptions{DryRun: dryRun})
	if err != nil {
		return &exitError{EXIT_ERROR, err}
	}

	logger.Log("INFO", "Запуск "+AppName, "version", Version, "command", cmd.Name(),
		"plan", engine.Plan().String(), "dry_run", dryRun, "profile", profile)
	return nil
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Log("WARN", "Получен сигнал, завершаем работу", "signal", sig.String())
			fmt.Fprintf(os.Stderr, "\n[INFO] Получен сигнал %s, завершаем работу...\n", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// closeLogger сбрасывает буферы логгера; вызывается и после неудачных команд
func closeLogger() {
	if logger != nil {
		_ = logger.Close()
	}
}

func main() {
	err := rootCmd.Execute()
	closeLogger()
	if err == nil {
		os.Exit(EXIT_SUCCESS)
	}

	fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
	for _, hint := range cerr.GetAllHints(err) {
		fmt.Fprintf(os.Stderr, "  подсказка: %s\n", hint)
	}

	var ee *exitError
	if cerr.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(EXIT_ERROR)
}

func generateAndSaveReport(operations []*wipe.WipeOperation, exitCode int) {
	if cfg == nil || !cfg.Reporting.Enabled {
		return
	}
	report := reporting.GenerateReport(operations, cfg, engine.Plan(), profile, dryRun, startTime, time.Now(), exitCode)
	path, err := reporting.SaveReport(report, cfg)
	if err != nil {
		logger.Log("WARN", "Ошибка сохранения отчёта", "error", err.Error())
		return
	}
	logger.Log("INFO", "Отчёт сохранён", "run_id", report.RunID, "file", path)
}
