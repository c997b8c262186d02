/*
Package builder adds files and folders to a multi-volume archive.

Each object goes into the archive stream as an entry record, followed by
the file content for files. File content is read only when the block
holding it is written, so a file larger than memory, or larger than a
volume, costs nothing until then. Complete appends the catalog of every
object and points the volume trailers at it.
*/
package builder

import (
	"log"
	"os"
	"path/filepath"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"

	"github.com/ndlib/bpack/catalog"
	"github.com/ndlib/bpack/content"
	"github.com/ndlib/bpack/format"
	"github.com/ndlib/bpack/pack"
)

var (
	// ErrDuplicate means an object with the same name was already added.
	ErrDuplicate = errors.New("object already in archive")
)

// Builder writes one archive. It is not goroutine safe.
type Builder struct {
	// Clock supplies the creation time of the catalog.
	Clock clock.Clock

	// UseMmap reads file content through a memory map instead of read
	// calls.
	UseMmap bool

	bw      *pack.BlockWriter
	entries []catalog.Entry
	names   map[string]bool
}

// New returns a Builder writing into the volumes given by p, under a new
// archive id.
func New(p pack.Provider) *Builder {
	return &Builder{
		Clock: clock.New(),
		bw:    pack.NewBlockWriter(p, ""),
		names: make(map[string]bool),
	}
}

// Writer returns the underlying block writer, e.g. to change its chunk
// size or attach stats before anything is added.
func (b *Builder) Writer() *pack.BlockWriter { return b.bw }

// Entries returns the objects added so far.
func (b *Builder) Entries() []catalog.Entry {
	return append([]catalog.Entry(nil), b.entries...)
}

// AddFile adds the regular file at path to the archive under name.
func (b *Builder) AddFile(path, name string, info os.FileInfo) error {
	e := catalog.Entry{
		Kind:    catalog.File,
		Path:    name,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	var c content.Writable
	if b.UseMmap {
		c = content.NewMappedFile(path, info.Size())
	} else {
		c = content.NewFile(path, info.Size())
	}
	return b.add(e, c)
}

// AddFolder adds a folder entry to the archive under name.
func (b *Builder) AddFolder(name string, info os.FileInfo) error {
	e := catalog.Entry{
		Kind:    catalog.Folder,
		Path:    name,
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	return b.add(e, nil)
}

func (b *Builder) add(e catalog.Entry, c content.Writable) error {
	if b.names[e.Path] {
		return errors.Wrapf(ErrDuplicate, "adding %s", e.Path)
	}
	p, err := b.bw.CurrentPointer()
	if err != nil {
		return err
	}
	e.ID = int64(len(b.entries) + 1)
	record, err := catalog.EncodeRecord(e)
	if err != nil {
		return errors.Wrapf(err, "adding %s", e.Path)
	}
	if _, err = b.bw.Write(record); err != nil {
		return err
	}
	if c != nil {
		if err = b.bw.WriteContent(c); err != nil {
			return err
		}
	}
	e.Record = &p
	b.entries = append(b.entries, e)
	b.names[e.Path] = true
	return nil
}

// AddTree adds root and everything below it. Names are relative to the
// parent of root and use forward slashes, so adding "/home/me/photos"
// gives names like "photos/cat.jpg". Anything which is neither a folder nor
// a regular file is skipped.
func (b *Builder) AddTree(root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	base := filepath.Dir(root)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		switch {
		case info.IsDir():
			return b.AddFolder(name, info)
		case info.Mode().IsRegular():
			return b.AddFile(path, name, info)
		}
		log.Printf("builder: skipping %s, not a regular file", path)
		return nil
	})
}

// Complete writes the catalog and finishes the archive. It returns the
// address of the catalog, which is also recorded in the volume trailers.
func (b *Builder) Complete() (format.RecordPointer, error) {
	p, err := b.bw.CurrentPointer()
	if err != nil {
		return p, err
	}
	data, err := catalog.Encode(&catalog.Catalog{
		Archive: b.bw.ArchiveID(),
		Created: b.Clock.Now(),
		Entries: b.entries,
	})
	if err != nil {
		return p, errors.Wrap(err, "encoding catalog")
	}
	if err = b.bw.WriteContent(data); err != nil {
		return p, err
	}
	if err = b.bw.SetObjectCount(int64(len(b.entries))); err != nil {
		return p, err
	}
	if err = b.bw.SetCatalogPointer(p); err != nil {
		return p, err
	}
	return p, b.bw.Complete()
}
