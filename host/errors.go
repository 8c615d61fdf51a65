package host

import (
	"errors"
	"io/fs"
)

var (
	// ErrNotAcquired is returned by components that need the host module
	// before Loader.Acquire has completed.
	ErrNotAcquired = errors.New("host module not acquired")

	// ErrUnknownCommand is returned by Commands.ExecuteCommand.
	ErrUnknownCommand = errors.New("unknown command")
)

// ErrorCode classifies a FileSystemError.
type ErrorCode string

const (
	FileNotFound      ErrorCode = "FileNotFound"
	FileExists        ErrorCode = "FileExists"
	FileNotADirectory ErrorCode = "FileNotADirectory"
	FileIsADirectory  ErrorCode = "FileIsADirectory"
	NoPermissions     ErrorCode = "NoPermissions"
	Unavailable       ErrorCode = "Unavailable"
)

// ErrorFunc constructs a host filesystem error.
type ErrorFunc func(code ErrorCode, uri string) error

// FileSystemError is the error type produced by host filesystems.
type FileSystemError struct {
	Code ErrorCode
	URI  string
}

// NewFileSystemError is the default ErrorFunc.
func NewFileSystemError(code ErrorCode, uri string) error {
	return &FileSystemError{Code: code, URI: uri}
}

func (err *FileSystemError) Error() string {
	return string(err.Code) + ": " + err.URI
}

// Is reports whether the error matches one of the io/fs sentinels.
func (err *FileSystemError) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return err.Code == FileNotFound
	case fs.ErrExist:
		return err.Code == FileExists
	case fs.ErrPermission:
		return err.Code == NoPermissions
	case fs.ErrInvalid:
		return err.Code == FileNotADirectory || err.Code == FileIsADirectory
	}

	return false
}

// CodeOf returns the ErrorCode carried by err, or the empty string.
func CodeOf(err error) ErrorCode {
	var fserr *FileSystemError
	if errors.As(err, &fserr) {
		return fserr.Code
	}

	return ""
}
