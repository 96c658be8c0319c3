package security

import (
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// maxSymlinkHops предел цепочки символических ссылок, как у ядра (MAXSYMLINKS)
const maxSymlinkHops = 40

var (
	ErrEmptyPath   = cerr.New("empty path")
	ErrSymlinkLoop = cerr.New("too many levels of symbolic links")
)

// Canonicalize возвращает абсолютный путь без символических ссылок.
// Путь разбирается по компонентам в том же порядке, что и в ядре:
// ссылка раскрывается до того, как применяется следующий "..", поэтому
// "l/.." означает родителя цели ссылки, а не каталог самой ссылки.
// Последний компонент раскрывается только при follow. Несуществующий
// остаток пути присоединяется как есть.
func Canonicalize(path string, follow bool) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return "", cerr.Wrapf(err, "absolute path of %q", path)
		}
		path = wd + string(filepath.Separator) + path
	}

	resolved := string(filepath.Separator)
	pending := splitPath(path)
	hops := 0

	for len(pending) > 0 {
		comp := pending[0]
		pending = pending[1:]

		if comp == ".." {
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, comp)
		if len(pending) == 0 && !follow {
			resolved = next
			break
		}

		info, err := os.Lstat(next)
		if err != nil {
			// дальше разрешать нечего: хвост присоединяется текстом
			resolved = filepath.Join(append([]string{next}, pending...)...)
			break
		}
		if info.Mode()&os.ModeSymlink == 0 {
			resolved = next
			continue
		}

		hops++
		if hops > maxSymlinkHops {
			return "", cerr.Wrapf(ErrSymlinkLoop, "%s", path)
		}
		target, err := os.Readlink(next)
		if err != nil {
			resolved = next
			continue
		}
		if filepath.IsAbs(target) {
			resolved = string(filepath.Separator)
		}
		pending = append(splitPath(target), pending...)
	}

	return resolved, nil
}

// splitPath делит путь на компоненты, отбрасывая пустые и "."
func splitPath(path string) []string {
	parts := strings.Split(path, string(filepath.Separator))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}
