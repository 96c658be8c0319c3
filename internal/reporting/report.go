package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"secrm/internal/config"
	"secrm/internal/wipe"
)

// Version версия формата отчёта
const Version = "1.0.0"

// Report представляет JSON отчёт о запуске
type Report struct {
	RunID      string                 `json:"run_id"`
	Version    string                 `json:"version"`
	Hostname   string                 `json:"hostname,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Config     map[string]interface{} `json:"config"`
	Plan       string                 `json:"plan"`
	Profile    string                 `json:"profile,omitempty"`
	DryRun     bool                   `json:"dry_run"`
	Operations []OperationReport      `json:"operations"`
	Summary    SummaryReport          `json:"summary"`
	ExitCode   int                    `json:"exit_code"`
	Duration   string                 `json:"duration"`
}

// OperationReport представляет отчёт об одной операции
type OperationReport struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Path       string     `json:"path"`
	Method     string     `json:"method"`
	Passes     int        `json:"passes"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	BytesWiped uint64     `json:"bytes_wiped"`
	SpeedMBps  float64    `json:"speed_mbps"`
	FinalName  string     `json:"final_name,omitempty"`
	Removed    bool       `json:"removed"`
	Error      string     `json:"error,omitempty"`
	Warning    string     `json:"warning,omitempty"`
}

// SummaryReport представляет сводную информацию
type SummaryReport struct {
	TotalOperations int     `json:"total_operations"`
	Completed       int     `json:"completed"`
	Partial         int     `json:"partial"`
	Denied          int     `json:"denied"`
	Skipped         int     `json:"skipped"`
	Cancelled       int     `json:"cancelled"`
	Failed          int     `json:"failed"`
	TotalBytes      uint64  `json:"total_bytes"`
	AverageSpeed    float64 `json:"average_speed_mbps"`
	SuccessRate     float64 `json:"success_rate"`
}

// GenerateReport генерирует JSON отчёт о запуске
func GenerateReport(operations []*wipe.WipeOperation, cfg *config.Config, plan wipe.PassPlan, profile string, dryRun bool, startTime, endTime time.Time, exitCode int) *Report {
	report := &Report{
		RunID:      uuid.NewString(),
		Version:    Version,
		Timestamp:  startTime,
		Config:     configToMap(cfg),
		Plan:       plan.String(),
		Profile:    profile,
		DryRun:     dryRun,
		Operations: make([]OperationReport, 0, len(operations)),
		ExitCode:   exitCode,
		Duration:   endTime.Sub(startTime).String(),
	}
	if host, err := os.Hostname(); err == nil {
		report.Hostname = host
	}

	var totalSpeed float64
	var wiped int
	s := &report.Summary

	for _, op := range operations {
		if op == nil {
			continue
		}
		report.Operations = append(report.Operations, OperationReport{
			ID:         op.ID,
			Kind:       op.Kind,
			Path:       op.Path,
			Method:     op.Method,
			Passes:     op.Passes,
			Status:     op.Status,
			Reason:     op.Reason,
			StartTime:  op.StartTime,
			EndTime:    op.EndTime,
			BytesWiped: op.BytesWiped,
			SpeedMBps:  op.SpeedMBps,
			FinalName:  op.FinalName,
			Removed:    op.Removed,
			Error:      op.Error,
			Warning:    op.Warning,
		})

		switch op.Status {
		case wipe.StatusCompleted:
			s.Completed++
		case wipe.StatusPartial:
			s.Partial++
		case wipe.StatusDenied:
			s.Denied++
		case wipe.StatusSkipped:
			s.Skipped++
		case wipe.StatusCancelled:
			s.Cancelled++
		default:
			s.Failed++
		}

		s.TotalBytes += op.BytesWiped
		if op.BytesWiped > 0 {
			totalSpeed += op.SpeedMBps
			wiped++
		}
	}

	s.TotalOperations = len(report.Operations)
	if wiped > 0 {
		s.AverageSpeed = totalSpeed / float64(wiped)
	}
	if s.TotalOperations > 0 {
		s.SuccessRate = float64(s.Completed) / float64(s.TotalOperations) * 100
	}

	return report
}

// SaveReport сохраняет отчёт в JSON файл и возвращает его путь.
// При выключенной отчётности ничего не делает.
func SaveReport(report *Report, cfg *config.Config) (string, error) {
	if !cfg.Reporting.Enabled {
		return "", nil
	}

	if err := os.MkdirAll(cfg.Reporting.LocalPath, 0755); err != nil {
		return "", cerr.Wrap(err, "ошибка создания директории для отчётов")
	}

	filename := fmt.Sprintf("secrm_report_%s.json", report.Timestamp.Format("20060102_150405"))
	path := filepath.Join(cfg.Reporting.LocalPath, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", cerr.Wrap(err, "ошибка сериализации отчёта")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", cerr.Wrap(err, "ошибка записи отчёта")
	}

	return path, nil
}

// configToMap преобразует Config в map для JSON сериализации
func configToMap(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"wipe": map[string]interface{}{
			"method":         cfg.Wipe.Method,
			"passes":         cfg.Wipe.Passes,
			"zero_pass":      cfg.Wipe.ZeroPass,
			"buffer_size":    cfg.Wipe.BufferSize,
			"max_speed_mbps": cfg.Wipe.MaxSpeedMBps,
		},
		"ban": map[string]interface{}{
			"program_global": cfg.Ban.ProgramGlobal,
			"file_global":    cfg.Ban.FileGlobal,
			"program_user":   cfg.Ban.ProgramUser,
			"file_user":      cfg.Ban.FileUser,
			"program_env":    cfg.Ban.ProgramEnv,
			"file_env":       cfg.Ban.FileEnv,
		},
		"exclusion": map[string]interface{}{
			"forbidden_mounts": cfg.Exclusion.ForbiddenMounts,
			"valuable_names":   cfg.Exclusion.ValuableNames,
			"live_scan":        cfg.Exclusion.LiveScan,
		},
		"logging": map[string]interface{}{
			"level":       cfg.Logging.Level,
			"file":        cfg.Logging.File,
			"max_size":    cfg.Logging.MaxSizeMB,
			"max_backups": cfg.Logging.MaxFiles,
		},
		"reporting": map[string]interface{}{
			"enabled":    cfg.Reporting.Enabled,
			"local_path": cfg.Reporting.LocalPath,
			"format":     cfg.Reporting.Format,
		},
	}
}
