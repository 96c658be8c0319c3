package security

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"secrm/internal/system"
)

// BanList список подстрок, запрещающих затирание
type BanList struct {
	Source  string
	Entries []string
}

// LoadBanList читает список из файла. Отсутствующий файл дает пустой список.
// Завершающие CR/LF отрезаются, пустые строки пропускаются.
func LoadBanList(path string) (*BanList, error) {
	list := &BanList{Source: path}
	if path == "" {
		return list, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return list, nil
		}
		return list, cerr.Wrapf(err, "open ban list %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if entry := strings.TrimRight(line, "\r\n"); entry != "" {
			list.Entries = append(list.Entries, entry)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return list, cerr.Wrapf(err, "read ban list %s", path)
		}
	}
	return list, nil
}

// Match возвращает первую запись, содержащуюся в candidate
func (b *BanList) Match(candidate string) (string, bool) {
	if b == nil {
		return "", false
	}
	for _, entry := range b.Entries {
		if strings.Contains(candidate, entry) {
			return entry, true
		}
	}
	return "", false
}

// banSources пути трех уровней списка: глобальный, пользовательский, из окружения
func banSources(global, user, env string) []string {
	var paths []string
	if global != "" {
		paths = append(paths, global)
	}
	if user != "" {
		if home := system.HomeDir(); home != "" {
			paths = append(paths, filepath.Join(home, user))
		}
	}
	if env != "" {
		if p := os.Getenv(env); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
