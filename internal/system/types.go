package system

import "golang.org/x/sys/unix"

// FileIdentity описывает объект файловой системы по результату stat
type FileIdentity struct {
	Path string
	Dev  uint64
	Ino  uint64
	Mode uint32
	Size int64
	Uid  uint32
}

// Key пара (устройство, inode), однозначно определяющая объект
type Key struct {
	Dev uint64
	Ino uint64
}

func (f FileIdentity) Key() Key {
	return Key{Dev: f.Dev, Ino: f.Ino}
}

func (f FileIdentity) IsRegular() bool {
	return f.Mode&unix.S_IFMT == unix.S_IFREG
}

func (f FileIdentity) IsDir() bool {
	return f.Mode&unix.S_IFMT == unix.S_IFDIR
}

func (f FileIdentity) IsSymlink() bool {
	return f.Mode&unix.S_IFMT == unix.S_IFLNK
}

// OwnerWritable сообщает, есть ли у владельца право записи
func (f FileIdentity) OwnerWritable() bool {
	return f.Mode&unix.S_IWUSR != 0
}

// Perm возвращает биты прав без типа файла
func (f FileIdentity) Perm() uint32 {
	return f.Mode &^ unix.S_IFMT
}
