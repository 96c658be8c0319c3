package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secrm/internal/config"
)

func TestLoggerWritesFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "secrm.log")
	cfg.Logging.Level = "INFO"

	l, err := NewEnterpriseLogger(cfg, false)
	require.NoError(t, err)

	l.Log("DEBUG", "скрыто", "k", 1)
	l.Log("INFO", "wipe finished", "path", "/tmp/x", "bytes", 3)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "wipe finished")
	assert.Contains(t, string(data), `"bytes":3`)
	assert.NotContains(t, string(data), "скрыто")
}

func TestNilAndNopLoggerAreSafe(t *testing.T) {
	var l *EnterpriseLogger
	l.Log("INFO", "ignored")
	assert.NoError(t, l.Close())

	nop := NewNop()
	nop.Log("FATAL", "still alive")
	assert.NoError(t, nop.Close())
}

func TestFromZap(t *testing.T) {
	l := FromZap(zaptest.NewLogger(t))
	l.Log("WARN", "lease unavailable", "fd", 3)
	assert.NotNil(t, l.Zap())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "warn", parseLevel("WARN").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
}
