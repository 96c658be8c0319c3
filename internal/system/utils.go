package system

import (
	"os"
	"path/filepath"
)

// HomeDir возвращает домашний каталог пользователя или пустую строку
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// Executable возвращает канонический путь запущенной программы
func Executable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(exe); err == nil {
		return real, nil
	}
	return exe, nil
}
