package cache

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFileGroup    = errors.New("unknown file group")
	ErrNotLoaded           = errors.New("file group not loaded")
	ErrRecordNotFound      = errors.New("record not found")
	ErrInvalidIndex        = errors.New("record index outside file group")
	ErrWriteAlreadyPending = errors.New("write already pending")
	ErrStorageFailure      = errors.New("storage failure")
	ErrCacheInvalidated    = errors.New("cache invalidated")
	ErrStopped             = errors.New("cache loop stopped")
)

// StorageError a failure reported by the card transport.
type StorageError struct {
	Op        string
	FileGroup int
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %04X: %v", e.Op, e.FileGroup, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorageFailure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// PartialError the primary record was written but some subject positions
// were left untouched. Result describes what the medium now holds.
type PartialError struct {
	Result UpdateResult
	Err    error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("record %d written, subjects partially applied: %v", e.Result.Index, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
