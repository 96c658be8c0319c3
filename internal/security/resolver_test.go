package security

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secrm/internal/config"
	"secrm/internal/logging"
)

// hermetic отключает глобальные списки и изолирует HOME и переменные окружения
func hermetic(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SECRM_FILEBAN", "")
	t.Setenv("SECRM_PROGBAN", "")
	cfg := config.Default()
	cfg.Ban.FileGlobal = ""
	cfg.Ban.ProgramGlobal = ""
	return cfg
}

func newResolver(t *testing.T, cfg *config.Config) *Resolver {
	return NewResolver(cfg, logging.FromZap(zaptest.NewLogger(t)))
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("secret"), 0600))
	return path
}

func TestCheckPathAllowsOrdinaryFile(t *testing.T) {
	r := newResolver(t, hermetic(t))
	path := writeFile(t, t.TempDir(), "notes.txt")

	d := r.CheckPath(path, false)
	assert.True(t, d.Allowed, d.String())
	assert.Equal(t, ReasonAllowed, d.Reason)
	assert.True(t, r.MayWipePath(path, true))
}

func TestCheckPathDenials(t *testing.T) {
	r := newResolver(t, hermetic(t))
	dir := t.TempDir()
	file := writeFile(t, dir, "data")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(file, link))

	assert.Equal(t, ReasonEmptyPath, r.CheckPath("", false).Reason)
	assert.Equal(t, ReasonStatFailed, r.CheckPath(filepath.Join(dir, "absent"), false).Reason)
	assert.Equal(t, ReasonNotRegular, r.CheckPath(dir, false).Reason)
	assert.Equal(t, ReasonNotRegular, r.CheckPath(link, false).Reason)

	d := r.CheckPath(link, true)
	assert.True(t, d.Allowed, d.String())
	assert.Equal(t, filepath.Base(file), filepath.Base(d.Path))

	assert.Equal(t, ReasonNotDirectory, r.CheckDir(file).Reason)
	assert.True(t, r.MayWipeDir(dir))
}

func TestValuableNamesDenied(t *testing.T) {
	r := newResolver(t, hermetic(t))
	dir := t.TempDir()

	for _, name := range []string{".Xauthority", "session.lock", "daemon.pid", "ld.so.cache"} {
		d := r.CheckPath(writeFile(t, dir, name), false)
		assert.False(t, d.Allowed, name)
		assert.Equal(t, ReasonValuableName, d.Reason, name)
	}
}

func TestForbiddenPrefixIsComponentAware(t *testing.T) {
	cfg := hermetic(t)
	root := t.TempDir()
	forbidden := filepath.Join(root, "mnt")
	sibling := filepath.Join(root, "mntx")
	require.NoError(t, os.MkdirAll(forbidden, 0700))
	require.NoError(t, os.MkdirAll(sibling, 0700))
	if real, err := filepath.EvalSymlinks(forbidden); err == nil {
		forbidden = real
	}
	cfg.Exclusion.ForbiddenMounts = []string{forbidden}
	r := newResolver(t, cfg)

	d := r.CheckPath(writeFile(t, forbidden, "a"), false)
	assert.Equal(t, ReasonForbiddenPrefix, d.Reason)
	assert.False(t, r.MayWipeDir(forbidden))

	assert.True(t, r.MayWipePath(writeFile(t, sibling, "b"), false))
}

func TestProcFilesDenied(t *testing.T) {
	r := newResolver(t, hermetic(t))

	d := r.CheckPath("/proc/self/status", true)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonForbiddenPrefix, d.Reason)
}

func TestFileBanFromEnvAndHome(t *testing.T) {
	cfg := hermetic(t)
	r := newResolver(t, cfg)
	dir := t.TempDir()
	file := writeFile(t, dir, "ledger.db")
	require.True(t, r.MayWipePath(file, false))

	banFile := filepath.Join(t.TempDir(), "ban")
	require.NoError(t, os.WriteFile(banFile, []byte("\r\n/nowhere\r\nledger.db\r\n"), 0600))
	t.Setenv("SECRM_FILEBAN", banFile)

	d := r.CheckPath(file, false)
	assert.Equal(t, ReasonFileBanned, d.Reason)
	assert.Contains(t, d.Detail, "ledger.db")

	t.Setenv("SECRM_FILEBAN", "")
	require.True(t, r.MayWipePath(file, false))

	home := os.Getenv("HOME")
	require.NoError(t, os.WriteFile(filepath.Join(home, ".secrm.fileban"), []byte(dir+"\n"), 0600))
	assert.Equal(t, ReasonFileBanned, r.CheckPath(file, false).Reason)
}

func TestDecisionsAreNotCached(t *testing.T) {
	cfg := hermetic(t)
	r := newResolver(t, cfg)
	file := writeFile(t, t.TempDir(), "volatile")
	banFile := filepath.Join(os.Getenv("HOME"), ".secrm.fileban")

	assert.True(t, r.MayWipePath(file, false))
	require.NoError(t, os.WriteFile(banFile, []byte("volatile\n"), 0600))
	assert.False(t, r.MayWipePath(file, false))
	require.NoError(t, os.Remove(banFile))
	assert.True(t, r.MayWipePath(file, false))
}

func TestProgramBanDeniesEverything(t *testing.T) {
	cfg := hermetic(t)
	r := newResolver(t, cfg)
	file := writeFile(t, t.TempDir(), "plain")

	exe, err := os.Executable()
	require.NoError(t, err)
	home := os.Getenv("HOME")
	require.NoError(t, os.WriteFile(filepath.Join(home, ".secrm.progban"), []byte(filepath.Base(exe)+"\n"), 0600))

	d := r.CheckPath(file, false)
	assert.Equal(t, ReasonProgramBanned, d.Reason)

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, ReasonProgramBanned, r.CheckFd(int(f.Fd())).Reason)
}

func TestLiveOpenByAnotherProcess(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	r := newResolver(t, hermetic(t))
	file := writeFile(t, t.TempDir(), "held")

	f, err := os.Open(file)
	require.NoError(t, err)

	// Наш собственный дескриптор не мешает затиранию
	assert.True(t, r.MayWipeFd(int(f.Fd())))

	cmd := exec.Command(sleep, "30")
	cmd.Stdin = f
	require.NoError(t, cmd.Start())

	d := r.CheckPath(file, false)
	assert.Equal(t, ReasonInUse, d.Reason)
	assert.Contains(t, d.Detail, "pid")
	assert.Equal(t, ReasonInUse, r.CheckFd(int(f.Fd())).Reason)

	require.NoError(t, cmd.Process.Kill())
	_ = cmd.Wait()

	// Второй процесс завершился: наш дескриптор снова разрешен
	assert.True(t, r.MayWipeFd(int(f.Fd())))
	assert.True(t, r.MayWipePath(file, false))
	require.NoError(t, f.Close())
}

func TestLiveScanDisabled(t *testing.T) {
	cfg := hermetic(t)
	cfg.Exclusion.LiveScan = false
	r := newResolver(t, cfg)
	assert.Nil(t, r.scanner)
	assert.True(t, r.MayWipePath(writeFile(t, t.TempDir(), "x"), false))
}

func TestCheckFdRejectsDirectoriesAndBadFds(t *testing.T) {
	r := newResolver(t, hermetic(t))
	d, err := os.Open(t.TempDir())
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, ReasonNotRegular, r.CheckFd(int(d.Fd())).Reason)
	assert.False(t, r.MayWipeFd(-1))
}
