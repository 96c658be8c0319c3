package security

import (
	"os"
	"path/filepath"
	"strconv"

	cerr "github.com/cockroachdb/errors"
	"github.com/prometheus/procfs"

	"secrm/internal/system"
)

// Holder процесс, удерживающий файл
type Holder struct {
	PID    int
	Comm   string
	Mapped bool // файл отображен в память, а не открыт дескриптором
}

// LiveScanner ищет объект среди открытых дескрипторов и отображений
// памяти других процессов. Каждый вызов читает /proc заново.
type LiveScanner struct {
	root string
	self int
}

// NewLiveScanner создает сканер для корня procfs
func NewLiveScanner(root string) *LiveScanner {
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	return &LiveScanner{root: root, self: os.Getpid()}
}

// FindHolder возвращает первый процесс, кроме текущего, у которого объект
// key открыт или отображен. Недоступные процессы пропускаются.
func (s *LiveScanner) FindHolder(key system.Key) (*Holder, error) {
	fs, err := procfs.NewFS(s.root)
	if err != nil {
		return nil, cerr.Wrapf(err, "open procfs at %s", s.root)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, cerr.Wrap(err, "list processes")
	}

	for _, p := range procs {
		if p.PID == s.self {
			continue
		}
		if s.holdsFd(p, key) {
			return s.holder(p, false), nil
		}
		if holdsMapping(p, key) {
			return s.holder(p, true), nil
		}
	}
	return nil, nil
}

func (s *LiveScanner) holdsFd(p procfs.Proc, key system.Key) bool {
	fds, err := p.FileDescriptors()
	if err != nil {
		return false
	}
	fdDir := filepath.Join(s.root, strconv.Itoa(p.PID), "fd")
	for _, fd := range fds {
		id, err := system.StatPath(filepath.Join(fdDir, strconv.FormatUint(uint64(fd), 10)), true)
		if err != nil {
			continue
		}
		if id.Key() == key {
			return true
		}
	}
	return false
}

func holdsMapping(p procfs.Proc, key system.Key) bool {
	maps, err := p.ProcMaps()
	if err != nil {
		return false
	}
	for _, m := range maps {
		if m.Inode == key.Ino && m.Dev == key.Dev {
			return true
		}
	}
	return false
}

func (s *LiveScanner) holder(p procfs.Proc, mapped bool) *Holder {
	h := &Holder{PID: p.PID, Mapped: mapped}
	if comm, err := p.Comm(); err == nil {
		h.Comm = comm
	}
	return h
}
