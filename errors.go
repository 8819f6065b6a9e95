package corekernel

import "github.com/arjunsahu/corekernel/internal/core"

// Error represents a kernel error carrying a stable error code. The
// concrete type lives in internal/core alongside the constants every
// subsystem shares; it is aliased here so callers can classify
// failures without reaching into internal packages.
type Error = core.Error

// ErrorCode classifies kernel errors.
type ErrorCode = core.ErrorCode

const (
	// Success indicates no error.
	Success = core.Success

	// ErrOutOfSpace indicates the free-map or swap area has no free
	// slots left to satisfy an allocation.
	ErrOutOfSpace = core.ErrOutOfSpace

	// ErrNotFound indicates a requested sector, inode, or page table
	// entry does not exist.
	ErrNotFound = core.ErrNotFound

	// ErrInvalidSector indicates a sector read back an unexpected
	// magic number or otherwise failed validation.
	ErrInvalidSector = core.ErrInvalidSector

	// ErrFileTooLarge indicates a write would grow a file past
	// MaxFileSectors.
	ErrFileTooLarge = core.ErrFileTooLarge

	// ErrDenyWrite indicates a write was attempted against an inode
	// currently open for execution (deny_write_cnt > 0).
	ErrDenyWrite = core.ErrDenyWrite

	// ErrFatal indicates an unrecoverable internal invariant was
	// violated; the caller should treat the kernel as unusable.
	ErrFatal = core.ErrFatal
)

// NewError creates a new Error with the given code.
func NewError(code ErrorCode) *Error { return core.NewError(code) }

// WrapError creates a new Error wrapping another error.
func WrapError(code ErrorCode, err error) *Error { return core.WrapError(code, err) }

// IsNotFound returns true if err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return core.IsNotFound(err) }

// IsOutOfSpace returns true if err is (or wraps) ErrOutOfSpace.
func IsOutOfSpace(err error) bool { return core.IsOutOfSpace(err) }

// Code returns the error code carried by err, or ErrFatal if err is
// not a *Error.
func Code(err error) ErrorCode { return core.Code(err) }
