package security

import (
	"fmt"
	"path/filepath"
	"strings"

	"secrm/internal/config"
	"secrm/internal/logging"
	"secrm/internal/system"
)

// Reason причина решения резолвера
type Reason string

const (
	ReasonAllowed         Reason = "allowed"
	ReasonEmptyPath       Reason = "empty path"
	ReasonUnresolvable    Reason = "path cannot be resolved"
	ReasonStatFailed      Reason = "stat failed"
	ReasonNotRegular      Reason = "not a regular file"
	ReasonNotDirectory    Reason = "not a directory"
	ReasonValuableName    Reason = "valuable file name"
	ReasonForbiddenPrefix Reason = "under forbidden mount"
	ReasonForbiddenDevice Reason = "on forbidden filesystem"
	ReasonFileBanned      Reason = "file is banned"
	ReasonProgramBanned   Reason = "program is banned"
	ReasonInUse           Reason = "in use by another process"
)

// Decision результат проверки объекта
type Decision struct {
	Allowed bool
	Reason  Reason
	Path    string     // канонический путь, если удалось вычислить
	Key     system.Key // объект, для которого принято решение
	Detail  string
}

func (d Decision) String() string {
	if d.Detail == "" {
		return string(d.Reason)
	}
	return fmt.Sprintf("%s (%s)", d.Reason, d.Detail)
}

func deny(reason Reason, path, detail string) Decision {
	return Decision{Reason: reason, Path: path, Detail: detail}
}

type objectKind int

const (
	kindRegular objectKind = iota
	kindDirectory
)

// Resolver решает, можно ли затирать объект. Ничего не кэширует:
// списки запретов, точки монтирования и процессы читаются при каждом вызове.
type Resolver struct {
	cfg     *config.Config
	logger  *logging.EnterpriseLogger
	scanner *LiveScanner
}

// NewResolver создает резолвер по секциям ban и exclusion конфигурации
func NewResolver(cfg *config.Config, logger *logging.EnterpriseLogger) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{cfg: cfg, logger: logger}
	if cfg.Exclusion.LiveScan {
		r.scanner = NewLiveScanner(cfg.Exclusion.ProcRoot)
	}
	return r
}

// MayWipePath сообщает, можно ли затирать обычный файл path
func (r *Resolver) MayWipePath(path string, follow bool) bool {
	return r.CheckPath(path, follow).Allowed
}

// MayWipeDir сообщает, можно ли скремблировать имя каталога path.
// Символическая ссылка на каталог каталогом не считается.
func (r *Resolver) MayWipeDir(path string) bool {
	return r.CheckDir(path).Allowed
}

// MayWipeFd сообщает, можно ли затирать файл, открытый дескриптором fd
func (r *Resolver) MayWipeFd(fd int) bool {
	return r.CheckFd(fd).Allowed
}

func (r *Resolver) CheckPath(path string, follow bool) Decision {
	return r.check(path, follow, kindRegular)
}

func (r *Resolver) CheckDir(path string) Decision {
	return r.check(path, false, kindDirectory)
}

func (r *Resolver) check(path string, follow bool, want objectKind) Decision {
	d := r.evaluate(path, follow, want)
	r.logger.Log("DEBUG", "Решение резолвера", "path", path, "canonical", d.Path,
		"allowed", d.Allowed, "reason", string(d.Reason), "detail", d.Detail)
	return d
}

func (r *Resolver) evaluate(path string, follow bool, want objectKind) Decision {
	if path == "" {
		return deny(ReasonEmptyPath, "", "")
	}

	canon, err := Canonicalize(path, follow)
	if err != nil {
		return deny(ReasonUnresolvable, "", err.Error())
	}

	id, err := system.StatPath(canon, false)
	if err != nil {
		return deny(ReasonStatFailed, canon, err.Error())
	}
	switch want {
	case kindDirectory:
		if !id.IsDir() {
			return deny(ReasonNotDirectory, canon, "")
		}
	default:
		if !id.IsRegular() {
			return deny(ReasonNotRegular, canon, "")
		}
	}

	if name, ok := r.valuableName(filepath.Base(canon)); ok {
		return deny(ReasonValuableName, canon, name)
	}
	if mount, ok := r.forbiddenPrefix(canon); ok {
		return deny(ReasonForbiddenPrefix, canon, mount)
	}
	if mount, ok := r.forbiddenDevice(id.Dev); ok {
		return deny(ReasonForbiddenDevice, canon, mount)
	}
	if entry, ok := r.fileBanned(canon); ok {
		return deny(ReasonFileBanned, canon, entry)
	}
	if detail, ok := r.programBanned(); ok {
		return deny(ReasonProgramBanned, canon, detail)
	}
	if h := r.liveHolder(id.Key()); h != nil {
		return deny(ReasonInUse, canon, holderDetail(h))
	}

	return Decision{Allowed: true, Reason: ReasonAllowed, Path: canon, Key: id.Key()}
}

// CheckFd проверяет открытый файл: тип, файловую систему, чужие открытия
// и запрет программы. Список запрещенных файлов для дескриптора не применяется.
func (r *Resolver) CheckFd(fd int) Decision {
	d := r.evaluateFd(fd)
	r.logger.Log("DEBUG", "Решение резолвера", "fd", fd, "allowed", d.Allowed,
		"reason", string(d.Reason), "detail", d.Detail)
	return d
}

func (r *Resolver) evaluateFd(fd int) Decision {
	if fd < 0 {
		return deny(ReasonStatFailed, "", "invalid descriptor")
	}
	id, err := system.StatFd(fd)
	if err != nil {
		return deny(ReasonStatFailed, "", err.Error())
	}
	if !id.IsRegular() {
		return deny(ReasonNotRegular, "", "")
	}

	path, _ := system.FdPath(fd)
	if path != "" {
		if mount, ok := r.forbiddenPrefix(path); ok {
			return deny(ReasonForbiddenPrefix, path, mount)
		}
	}
	if mount, ok := r.forbiddenDevice(id.Dev); ok {
		return deny(ReasonForbiddenDevice, path, mount)
	}
	if detail, ok := r.programBanned(); ok {
		return deny(ReasonProgramBanned, path, detail)
	}
	if h := r.liveHolder(id.Key()); h != nil {
		return deny(ReasonInUse, path, holderDetail(h))
	}

	return Decision{Allowed: true, Reason: ReasonAllowed, Path: path, Key: id.Key()}
}

func (r *Resolver) valuableName(base string) (string, bool) {
	for _, name := range r.cfg.Exclusion.ValuableNames {
		if strings.Contains(base, name) {
			return name, true
		}
	}
	return "", false
}

// forbiddenPrefix проверяет вхождение пути в запрещенную точку монтирования
// по целым компонентам: /proc и /proc/1 запрещены, /procx нет.
func (r *Resolver) forbiddenPrefix(canon string) (string, bool) {
	for _, mount := range r.cfg.Exclusion.ForbiddenMounts {
		m := filepath.Clean(mount)
		if canon == m || strings.HasPrefix(canon, m+string(filepath.Separator)) {
			return m, true
		}
	}
	return "", false
}

// forbiddenDevice сравнивает устройство объекта с устройствами запрещенных
// точек. Учитываются только каталоги, реально являющиеся точками монтирования.
func (r *Resolver) forbiddenDevice(dev uint64) (string, bool) {
	for _, mount := range r.cfg.Exclusion.ForbiddenMounts {
		if mdev, ok := system.MountDevice(mount); ok && mdev == dev {
			return mount, true
		}
	}
	return "", false
}

func (r *Resolver) fileBanned(canon string) (string, bool) {
	b := r.cfg.Ban
	for _, src := range banSources(b.FileGlobal, b.FileUser, b.FileEnv) {
		list, err := LoadBanList(src)
		if err != nil {
			r.logger.Log("WARN", "Список запретов не прочитан", "source", src, "error", err.Error())
		}
		if entry, ok := list.Match(canon); ok {
			return entry + " @ " + src, true
		}
	}
	return "", false
}

// programBanned проверяет путь текущей программы по спискам запрещенных программ
func (r *Resolver) programBanned() (string, bool) {
	exe, err := system.Executable()
	if err != nil {
		return "", false
	}
	if canon, err := Canonicalize(exe, true); err == nil {
		exe = canon
	}

	b := r.cfg.Ban
	for _, src := range banSources(b.ProgramGlobal, b.ProgramUser, b.ProgramEnv) {
		list, err := LoadBanList(src)
		if err != nil {
			r.logger.Log("WARN", "Список запретов не прочитан", "source", src, "error", err.Error())
		}
		if entry, ok := list.Match(exe); ok {
			return entry + " @ " + src, true
		}
	}
	return "", false
}

func (r *Resolver) liveHolder(key system.Key) *Holder {
	if r.scanner == nil {
		return nil
	}
	h, err := r.scanner.FindHolder(key)
	if err != nil {
		r.logger.Log("WARN", "Сканирование процессов недоступно", "error", err.Error())
		return nil
	}
	return h
}

func holderDetail(h *Holder) string {
	how := "open"
	if h.Mapped {
		how = "mapped"
	}
	return fmt.Sprintf("%s by pid %d (%s)", how, h.PID, h.Comm)
}
