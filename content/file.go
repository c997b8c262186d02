package content

import (
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// File is the content of a file on disk. The file is opened each time a
// range is written and closed again afterwards, so a long list of Files
// does not hold file descriptors open.
type File struct {
	Path string
	Len  int64 // declared size, normally taken from a Stat
}

// NewFile returns a File for path with the given declared size.
func NewFile(path string, size int64) *File {
	return &File{Path: path, Len: size}
}

// Size returns the declared size of the file.
func (f *File) Size() int64 { return f.Len }

// WriteRange copies the bytes [from, to) of the file into w. If the file
// has shrunk since its size was taken, ErrShortContent is returned.
func (f *File) WriteRange(w io.Writer, from, to int64) error {
	if from == to {
		return nil
	}
	fd, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fd.Close()
	n, err := io.Copy(w, io.NewSectionReader(fd, from, to-from))
	if err == nil && n < to-from {
		err = ErrShortContent
	}
	return err
}

// MappedFile is file content which is memory mapped when a range is
// written. The range is written straight out of the mapping.
type MappedFile struct {
	Path string
	Len  int64
}

// NewMappedFile returns a MappedFile for path with the given declared size.
func NewMappedFile(path string, size int64) *MappedFile {
	return &MappedFile{Path: path, Len: size}
}

// Size returns the declared size of the file.
func (f *MappedFile) Size() int64 { return f.Len }

// WriteRange maps the pages of the file holding [from, to) read-only and
// writes the range out of them.
func (f *MappedFile) WriteRange(w io.Writer, from, to int64) error {
	if from == to {
		return nil
	}
	fd, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fd.Close()
	fi, err := fd.Stat()
	if err != nil {
		return err
	}
	if fi.Size() < to {
		return ErrShortContent
	}
	// the mapping has to start on a page boundary
	start := from - from%int64(os.Getpagesize())
	m, err := mmap.MapRegion(fd, int(to-start), mmap.RDONLY, 0, start)
	if err != nil {
		return err
	}
	_, err = w.Write(m[from-start : to-start])
	if err2 := m.Unmap(); err == nil {
		err = err2
	}
	return err
}
