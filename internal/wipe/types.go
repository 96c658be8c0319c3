package wipe

import (
	"time"
)

// Статусы операций
const (
	StatusCompleted = "COMPLETED"
	StatusPartial   = "PARTIAL"
	StatusDenied    = "DENIED"
	StatusSkipped   = "SKIPPED"
	StatusCancelled = "CANCELLED"
	StatusFailed    = "FAILED"
)

// Виды перехваченных операций
const (
	OpDelete    = "delete"
	OpRemoveDir = "rmdir"
	OpTruncate  = "truncate"
	OpOpen      = "open"
	OpWipe      = "wipe"
)

// WipeOperation запись об одной операции над путем
type WipeOperation struct {
	ID         string
	Kind       string
	Path       string
	Method     string
	Passes     int
	Status     string // COMPLETED, PARTIAL, DENIED, SKIPPED, CANCELLED, FAILED
	Reason     string
	StartTime  time.Time
	EndTime    *time.Time
	BytesWiped uint64
	SpeedMBps  float64
	FinalName  string
	Removed    bool
	DryRun     bool
	Error      string
	Warning    string
}

// ProgressInfo информация о прогрессе затирания
type ProgressInfo struct {
	Pass         int
	TotalPasses  int
	BytesWritten uint64
	SpeedMBps    float64
	Percentage   float64
	Done         bool
}

// WipeResult результат перезаписи хвоста файла
type WipeResult struct {
	Success         bool
	Passes          int
	PassesCompleted int
	BytesWritten    uint64
	Duration        time.Duration
	SpeedMBps       float64
	LockKind        string
	Error           error
	Cancelled       bool
}
