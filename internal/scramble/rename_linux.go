//go:build linux

package scramble

import (
	"errors"

	"golang.org/x/sys/unix"
)

// renameNoReplace переименовывает old в new, отказываясь затирать
// существующий new. На файловых системах без RENAME_NOREPLACE
// откатывается на проверку существования.
func renameNoReplace(oldPath, newPath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldPath, unix.AT_FDCWD, newPath, unix.RENAME_NOREPLACE)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) {
		return renameChecked(oldPath, newPath)
	}
	return err
}
