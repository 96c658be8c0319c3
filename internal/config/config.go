package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config конфигурация движка безопасного удаления
type Config struct {
	Wipe struct {
		Method       string  `yaml:"method"`
		Passes       int     `yaml:"passes"` // 0 = по методу
		ZeroPass     bool    `yaml:"zero_pass"`
		BufferSize   int64   `yaml:"buffer_size"`
		MaxSpeedMBps float64 `yaml:"max_speed_mbps"`
	} `yaml:"wipe"`

	Ban struct {
		ProgramGlobal string `yaml:"program_global"`
		FileGlobal    string `yaml:"file_global"`
		ProgramUser   string `yaml:"program_user"`
		FileUser      string `yaml:"file_user"`
		ProgramEnv    string `yaml:"program_env"`
		FileEnv       string `yaml:"file_env"`
		IterationsEnv string `yaml:"iterations_env"`
	} `yaml:"ban"`

	Exclusion struct {
		ForbiddenMounts []string `yaml:"forbidden_mounts"`
		ValuableNames   []string `yaml:"valuable_names"`
		LiveScan        bool     `yaml:"live_scan"`
		ProcRoot        string   `yaml:"proc_root"`
	} `yaml:"exclusion"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxFiles   int    `yaml:"max_files"`
		Structured bool   `yaml:"structured"`
	} `yaml:"logging"`

	Reporting struct {
		Enabled   bool   `yaml:"enabled"`
		LocalPath string `yaml:"local_path"`
		Format    string `yaml:"format"`
	} `yaml:"reporting"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}

	cfg.Wipe.Method = "gutmann"
	cfg.Wipe.Passes = 0
	cfg.Wipe.ZeroPass = false
	cfg.Wipe.BufferSize = 1024 * 1024 // 1MB
	cfg.Wipe.MaxSpeedMBps = 0         // без ограничения

	cfg.Ban.ProgramGlobal = "/etc/secrm.progban"
	cfg.Ban.FileGlobal = "/etc/secrm.fileban"
	cfg.Ban.ProgramUser = ".secrm.progban"
	cfg.Ban.FileUser = ".secrm.fileban"
	cfg.Ban.ProgramEnv = "SECRM_PROGBAN"
	cfg.Ban.FileEnv = "SECRM_FILEBAN"
	cfg.Ban.IterationsEnv = "SECRM_ITERATIONS"

	cfg.Exclusion.ForbiddenMounts = []string{"/proc", "/sys", "/dev", "/selinux", "/sys/fs/cgroup", "/run/user"}
	cfg.Exclusion.ValuableNames = []string{
		".Xauthority", ".ICEauthority", "X0-lock", ".X11-unix", ".ICE-unix",
		".lock", ".pid", "ld.so.cache", "ld-linux",
	}
	cfg.Exclusion.LiveScan = true
	cfg.Exclusion.ProcRoot = "/proc"

	cfg.Logging.Level = "INFO"
	cfg.Logging.File = ""
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxFiles = 5
	cfg.Logging.Structured = true

	cfg.Reporting.Enabled = false
	cfg.Reporting.LocalPath = "./reports"
	cfg.Reporting.Format = "json"

	return cfg
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, cerr.Wrapf(err, "failed to read config file %s", path)
	}

	// Поля, отсутствующие в файле, сохраняют значения по умолчанию
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, cerr.Wrapf(err, "failed to parse config file %s", path)
	}

	if err := Validate(config); err != nil {
		return nil, cerr.Wrap(err, "invalid configuration")
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	validMethods := map[string]bool{
		"gutmann":  true,
		"random":   true,
		"schneier": true,
		"dod":      true,
	}
	if !validMethods[config.Wipe.Method] {
		return cerr.Newf("invalid wipe method: %s", config.Wipe.Method)
	}

	if config.Wipe.Passes < 0 || config.Wipe.Passes > 100 {
		return cerr.Newf("passes must be between 0 and 100, got %d", config.Wipe.Passes)
	}

	if config.Wipe.BufferSize <= 0 {
		return cerr.Newf("buffer size must be positive, got %d", config.Wipe.BufferSize)
	}
	if config.Wipe.BufferSize > 64*1024*1024 { // 64MB max
		return cerr.Newf("buffer size too large (max 64MB), got %d", config.Wipe.BufferSize)
	}

	if config.Wipe.MaxSpeedMBps < 0 {
		return cerr.Newf("max speed cannot be negative, got %f", config.Wipe.MaxSpeedMBps)
	}

	// Валидация путей исключений
	for _, mount := range config.Exclusion.ForbiddenMounts {
		clean := filepath.Clean(mount)
		if mount == "" || !filepath.IsAbs(clean) || clean == "/" {
			return cerr.Newf("invalid forbidden mount: %q", mount)
		}
	}
	for _, name := range config.Exclusion.ValuableNames {
		if name == "" {
			return cerr.New("empty valuable file name")
		}
	}
	if config.Exclusion.ProcRoot == "" {
		return cerr.New("proc root must not be empty")
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return cerr.Newf("invalid log level: %s", config.Logging.Level)
	}

	if config.Logging.MaxSizeMB <= 0 || config.Logging.MaxSizeMB > 1000 {
		return cerr.Newf("log max size must be between 1MB and 1000MB, got %d", config.Logging.MaxSizeMB)
	}

	if config.Logging.MaxFiles <= 0 || config.Logging.MaxFiles > 50 {
		return cerr.Newf("log max files must be between 1 and 50, got %d", config.Logging.MaxFiles)
	}

	if config.Reporting.Enabled && config.Reporting.Format != "json" {
		return cerr.Newf("unsupported report format: %s", config.Reporting.Format)
	}

	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	if err := Validate(config); err != nil {
		return cerr.Wrap(err, "cannot save invalid config")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cerr.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return cerr.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return cerr.Wrap(err, "failed to write config file")
	}

	return nil
}

// IterationsFromEnv читает ожидаемое число проходов из переменной окружения.
// ok == false, если переменная не задана или не является беззнаковым числом.
func (config *Config) IterationsFromEnv() (n uint64, ok bool) {
	if config.Ban.IterationsEnv == "" {
		return 0, false
	}
	raw := strings.TrimSpace(os.Getenv(config.Ban.IterationsEnv))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
