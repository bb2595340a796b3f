package exception

import (
	"errors"
	"io/fs"
	"syscall"
)

// Storage errors
var (
	ErrStorageFlush       = errors.New("storage: flush failed")
	ErrStorageUnwritable  = errors.New("storage: output directory is not writable")
	ErrStorageEmptyBatch  = errors.New("storage: empty batch")
	ErrStorageCatalog     = errors.New("storage: catalog insert failed")
	ErrStorageUnsupported = errors.New("storage: unsupported compression")
)

// IsUnwritable reports whether err was caused by the filesystem refusing writes.
func IsUnwritable(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}
