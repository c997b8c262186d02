// Package store provides the places archive volumes are written to. A store
// is a simple, goroutine safe key-value interface where values are streams,
// so a volume never has to be held in memory as a whole.
//
// A value becomes visible under its key only once the writer returned by
// Create has been closed. A partially written volume never shows up in a
// listing.
//
// The FileSystem store is the one the command line tool uses. S3 keeps
// volumes in a bucket, and Memory is mostly useful in tests.
package store

import (
	"errors"
	"io"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store defines the basic stream based key-value store.
// Values are immutable once stored, but they may be deleted.
//
// Keys should not contain forbidden filesystem characters, such as '/'.
type Store interface {
	Create(key string) (io.WriteCloser, error)
	Open(key string) (ReadAtCloser, int64, error)
	Delete(key string) error
	ListPrefix(prefix string) ([]string, error)
}

var (
	// ErrKeyExists indicates an attempt to create a key which already exists
	ErrKeyExists = errors.New("Key already exists")

	// ErrNotExist indicates the key is not in the store
	ErrNotExist = errors.New("Key does not exist")
)

// NewReader converts a ReaderAt into a io.Reader. It is here as a utility to
// help work with the ReadAtCloser returned by Open.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// reading less than a full buffer is not an error for
		// an io.Reader
		err = nil
	}
	return
}

// ReadAll returns the complete value stored under key.
func ReadAll(s Store, key string) ([]byte, error) {
	rac, size, err := s.Open(key)
	if err != nil {
		return nil, err
	}
	defer rac.Close()
	data := make([]byte, size)
	n, err := rac.ReadAt(data, 0)
	if err == io.EOF && int64(n) == size {
		err = nil
	}
	return data[:n], err
}
