package system

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsDiskFullError проверяет, является ли ошибка ошибкой заполнения диска
func IsDiskFullError(err error) bool {
	return errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.EDQUOT)
}

// IsPermissionError проверяет отказ в доступе
func IsPermissionError(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}
