//go:build !linux

package scramble

func renameNoReplace(oldPath, newPath string) error {
	return renameChecked(oldPath, newPath)
}
