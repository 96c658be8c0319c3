package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"secrm/internal/config"
)

// EnterpriseLogger логгер с аудитом операций затирания
type EnterpriseLogger struct {
	level   zap.AtomicLevel
	sugar   *zap.SugaredLogger
	file    *lumberjack.Logger
	verbose bool
}

// NewEnterpriseLogger создает логгер по секции logging конфигурации.
// Ошибки и предупреждения всегда идут в stderr, остальное только при verbose.
func NewEnterpriseLogger(cfg *config.Config, verbose bool) (*EnterpriseLogger, error) {
	l := &EnterpriseLogger{
		level:   zap.NewAtomicLevelAt(parseLevel(cfg.Logging.Level)),
		verbose: verbose,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.Logging.Structured {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	consoleLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		if !l.level.Enabled(lvl) {
			return false
		}
		return l.verbose || lvl >= zapcore.WarnLevel
	})
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), consoleLevel),
	}

	// Автоматическое создание директории для логов
	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Не удалось создать директорию логов %s: %v\n", logDir, err)
		} else {
			l.file = &lumberjack.Logger{
				Filename:   cfg.Logging.File,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxFiles,
				Compress:   false,
			}
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(l.file), l.level))
		}
	}

	l.sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
	return l, nil
}

// FromZap оборачивает готовый zap логгер (используется в тестах с zaptest)
func FromZap(z *zap.Logger) *EnterpriseLogger {
	return &EnterpriseLogger{
		level:   zap.NewAtomicLevelAt(zapcore.DebugLevel),
		sugar:   z.Sugar(),
		verbose: true,
	}
}

// NewNop возвращает логгер, который ничего не пишет
func NewNop() *EnterpriseLogger {
	return FromZap(zap.NewNop())
}

// Log пишет запись уровня level с парами ключ-значение
func (l *EnterpriseLogger) Log(level, message string, fields ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}

	switch parseLevel(level) {
	case zapcore.DebugLevel:
		l.sugar.Debugw(message, fields...)
	case zapcore.WarnLevel:
		l.sugar.Warnw(message, fields...)
	case zapcore.ErrorLevel:
		l.sugar.Errorw(message, fields...)
	case zapcore.FatalLevel:
		// FATAL фиксируется в аудите, но процесс не завершается
		l.sugar.Errorw(message, append(fields, "fatal", true)...)
	default:
		l.sugar.Infow(message, fields...)
	}
}

// Zap возвращает нижележащий логгер
func (l *EnterpriseLogger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *EnterpriseLogger) Close() error {
	if l == nil || l.sugar == nil {
		return nil
	}
	_ = l.sugar.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
