// Package scramble переименовывает объект случайными именами той же длины
// перед удалением, чтобы исходное имя не осталось в записях каталога.
package scramble

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"secrm/internal/logging"
	"secrm/internal/system"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Outcome итог скремблирования и удаления
type Outcome int

const (
	// Removed объект удален под последним скремблированным именем
	Removed Outcome = iota
	// RestoredAfterFailure удаление не удалось, исходное имя восстановлено
	RestoredAfterFailure
	// LeftScrambled удаление и восстановление не удались
	LeftScrambled
)

func (o Outcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case RestoredAfterFailure:
		return "restored"
	default:
		return "left_scrambled"
	}
}

// Result результат скремблирования
type Result struct {
	Original  string
	FinalName string   // имя объекта после операции (или последнее имя перед удалением)
	Names     []string // успешно занятые промежуточные имена
	Failed    int      // проходы, не сумевшие переименовать
	Outcome   Outcome
}

// Config параметры скремблера
type Config struct {
	Passes  int
	SyncDir bool
	Logger  *logging.EnterpriseLogger
	Rand    *rand.Rand
}

// Scrambler выполняет скремблирование имен
type Scrambler struct {
	config *Config
}

// New создает скремблер
func New(config *Config) *Scrambler {
	if config.Passes < 0 {
		config.Passes = 0
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	return &Scrambler{config: config}
}

func (s *Scrambler) rng() *rand.Rand {
	if s.config.Rand != nil {
		return s.config.Rand
	}
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
}

// Scramble переименовывает path Passes раз. Ошибка прохода не прерывает
// цикл: объект остается под последним успешно занятым именем.
// Завершающий "/" у каталога отбрасывается.
func (s *Scrambler) Scramble(path string) *Result {
	path = filepath.Clean(path)
	res := &Result{Original: path, FinalName: path}

	dir, base := filepath.Split(path)
	if base == "" || base == "." || base == ".." {
		return res
	}
	if dir == "" {
		dir = "."
	}

	rng := s.rng()
	current := path
	for pass := 0; pass < s.config.Passes; pass++ {
		name := strings.Repeat(string(alphabet[rng.IntN(len(alphabet))]), len(base))
		next := filepath.Join(dir, name)
		if next == current {
			res.Failed++
			continue
		}

		if err := renameNoReplace(current, next); err != nil {
			res.Failed++
			s.config.Logger.Log("DEBUG", "Проход переименования не удался", "from", current, "to", next, "error", err.Error())
			continue
		}
		current = next
		res.Names = append(res.Names, next)

		if s.config.SyncDir && (pass > 0 || pass == s.config.Passes-1) {
			if err := system.FsyncDir(dir); err != nil {
				s.config.Logger.Log("WARN", "Не удалось синхронизировать каталог", "dir", dir, "error", err.Error())
			}
		}
	}

	res.FinalName = current
	return res
}

// ScrambleAndRemove скремблирует имя и вызывает remove для итогового имени.
// Если remove не удался, объект переименовывается обратно в исходное имя.
// Возвращаемая ошибка это ошибка remove.
func (s *Scrambler) ScrambleAndRemove(path string, remove func(string) error) (*Result, error) {
	path = filepath.Clean(path)
	res := s.Scramble(path)

	err := remove(res.FinalName)
	if err == nil {
		res.Outcome = Removed
		return res, nil
	}

	if res.FinalName == path {
		res.Outcome = RestoredAfterFailure
		return res, err
	}

	if rerr := renameNoReplace(res.FinalName, path); rerr != nil {
		res.Outcome = LeftScrambled
		s.config.Logger.Log("ERROR", "Не удалось вернуть исходное имя", "original", path,
			"current", res.FinalName, "error", rerr.Error())
		return res, cerr.WithSecondaryError(err, rerr)
	}

	res.Outcome = RestoredAfterFailure
	res.FinalName = path
	return res, err
}

// renameChecked переименование с предварительной проверкой, что цель свободна
func renameChecked(oldPath, newPath string) error {
	if _, err := os.Lstat(newPath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: os.ErrExist}
	}
	return os.Rename(oldPath, newPath)
}
