package ports

import (
	"io"
)

// FileSystem abstracts file system operations.
type FileSystem interface {
	// Open opens a file for random-access reading and returns its size.
	// A missing file yields an error wrapping fs.ErrNotExist.
	Open(path string) (io.ReadSeekCloser, int64, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}

// Source supplies the byte stream of one container file.
type Source interface {
	// Name identifies the source in logs and completion notifications.
	Name() string

	// Open returns a fresh reader positioned at the start of the stream
	// together with the stream size in bytes. A source that does not
	// exist yields an error wrapping fs.ErrNotExist; other failures are
	// I/O errors.
	Open() (io.ReadSeekCloser, int64, error)
}

// FileSource is a Source backed by a path on a FileSystem.
type FileSource struct {
	FS   FileSystem
	Path string
}

// Name returns the file path.
func (s FileSource) Name() string {
	return s.Path
}

// Open opens the file.
func (s FileSource) Open() (io.ReadSeekCloser, int64, error) {
	return s.FS.Open(s.Path)
}
