/*
Package pack turns a stream of bytes and lazily produced content into the
volumes of a multi-volume archive.

The rest of an archive builder sees a ChunkWriter: an io.Writer which also
accepts content.Writable values and can say where the next byte will land.
Behind it the BlockWriter frames the data into blocks, fills one volume
after another up to the size the Provider allows, and splits anything that
does not fit at a volume boundary. The pointers it hands out stay valid
across those splits, so a catalog written at the end can refer back to
every record.

Archive wide metadata, the object count and where the catalog begins, is
only known once everything else is written. It is kept by the BlockWriter
and given to each volume as it is opened, and also to the open volume
whenever it changes. Volumes already rolled past keep what they had.

A BlockWriter is not goroutine safe.
*/
package pack

import (
	"io"

	"github.com/ndlib/bpack/content"
	"github.com/ndlib/bpack/format"
)

// ChunkWriter is the interface the archive builder writes into.
type ChunkWriter interface {
	io.Writer
	io.ByteWriter

	// CurrentPointer returns the address the next byte written will
	// occupy.
	CurrentPointer() (format.RecordPointer, error)

	// WriteContent appends c. Its bytes are produced only when the block
	// holding them is written out.
	WriteContent(c content.Writable) error
}

// Provider supplies the volumes of an archive.
type Provider interface {
	// MaxVolumeSize is the size limit of every volume, in bytes.
	MaxVolumeSize() int64

	// Volume returns the sink for the given volume number. Numbers start
	// at 1 and are asked for in increasing order.
	Volume(number int64) (io.WriteCloser, error)
}
