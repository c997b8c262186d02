// Package volume writes a single archive volume. A volume is one output
// file of a multi-volume archive: a header naming the archive and the
// volume number, a run of blocks, and a fixed size trailer carrying the
// archive wide metadata and a digest of the whole volume.
//
// A Writer accounts for space as blocks are handed to it. Plain blocks are
// written straight through to the sink. Suspended blocks only have their
// space reserved; their bytes are produced when the volume is completed.
// Once a block is suspended every later block is queued behind it, so the
// byte order of the volume is always the order in which blocks arrived.
//
// A Writer is not goroutine safe.
package volume

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/ndlib/bpack/format"
	"github.com/ndlib/bpack/util"
)

var (
	// ErrNoSpace means a block does not fit in the space left in the
	// volume.
	ErrNoSpace = errors.New("block does not fit in volume")

	// ErrCompleted means the volume has already been completed.
	ErrCompleted = errors.New("volume already completed")

	// ErrPendingBlocks means a volume holding suspended blocks was
	// completed without asking for suspended finalization.
	ErrPendingBlocks = errors.New("volume has suspended blocks")
)

// Writer writes one volume into a sink, which it owns until Complete.
type Writer struct {
	number    int64
	maxSize   int64
	sink      io.WriteCloser
	buf       *bufio.Writer
	hw        *util.HashWriter // wraps buf, digest of the volume so far
	streamEnd int64            // where the next block starts, suspended blocks included
	pending   []format.Block   // suspended blocks and anything queued after them
	meta      format.Metadata
	final     bool
	completed bool
	blocks    int
}

// Overhead returns the number of bytes of a volume taken by its header and
// trailer.
func Overhead(archiveID string, number int64) int64 {
	return format.HeaderSize(archiveID, number) + format.TrailerSize
}

// New starts volume number of the archive archiveID in sink. At most
// maxSize bytes will be written into sink. The header is written
// immediately.
func New(archiveID string, number int64, maxSize int64, sink io.WriteCloser) (*Writer, error) {
	header, err := format.EncodeHeader(format.Header{Archive: archiveID, Volume: number})
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(sink)
	w := &Writer{
		number:    number,
		maxSize:   maxSize,
		sink:      sink,
		buf:       buf,
		hw:        util.NewHashWriter(buf),
		streamEnd: int64(len(header)),
	}
	if _, err = w.hw.Write(header); err != nil {
		return nil, errors.Wrapf(err, "volume %d: writing header", number)
	}
	return w, nil
}

// Number returns the volume number.
func (w *Writer) Number() int64 { return w.number }

// StreamEnd returns the offset in the volume at which the next block will
// start.
func (w *Writer) StreamEnd() int64 { return w.streamEnd }

// FreeSpace returns the number of bytes still available for blocks.
func (w *Writer) FreeSpace() int64 {
	free := w.maxSize - w.streamEnd - format.TrailerSize
	if free < 0 {
		return 0
	}
	return free
}

// Suspended is true if the writer holds blocks whose bytes have not been
// produced yet.
func (w *Writer) Suspended() bool { return len(w.pending) > 0 }

// Blocks returns the number of blocks accepted so far.
func (w *Writer) Blocks() int { return w.blocks }

// Metadata returns the archive wide metadata the trailer will carry.
func (w *Writer) Metadata() format.Metadata { return w.meta }

// WriteBlock writes b into the volume. If suspended blocks are waiting, b
// is queued behind them instead.
func (w *Writer) WriteBlock(b format.Block) error {
	if err := w.reserve(b); err != nil {
		return err
	}
	if len(w.pending) > 0 {
		w.pending = append(w.pending, b)
		return nil
	}
	return w.write(b)
}

// SuspendBlock reserves the space for b now and produces its bytes when
// the volume is completed.
func (w *Writer) SuspendBlock(b format.Block) error {
	if err := w.reserve(b); err != nil {
		return err
	}
	w.pending = append(w.pending, b)
	return nil
}

func (w *Writer) reserve(b format.Block) error {
	if w.completed {
		return ErrCompleted
	}
	if b.Size() > w.FreeSpace() {
		return ErrNoSpace
	}
	w.streamEnd += b.Size()
	w.blocks++
	return nil
}

func (w *Writer) write(b format.Block) error {
	_, err := b.WriteTo(w.hw)
	if err != nil {
		return errors.Wrapf(err, "volume %d: writing block", w.number)
	}
	return nil
}

// SetMetadata replaces the archive wide metadata.
func (w *Writer) SetMetadata(m format.Metadata) error {
	if w.completed {
		return ErrCompleted
	}
	w.meta = format.Metadata{}
	if m.ObjectCount != nil {
		n := *m.ObjectCount
		w.meta.ObjectCount = &n
	}
	if m.Catalog != nil {
		p := *m.Catalog
		w.meta.Catalog = &p
	}
	return nil
}

// SetObjectCount sets the number of objects in the archive.
func (w *Writer) SetObjectCount(n int64) error {
	if w.completed {
		return ErrCompleted
	}
	w.meta.ObjectCount = &n
	return nil
}

// SetCatalogPointer sets where the archive catalog begins.
func (w *Writer) SetCatalogPointer(p format.RecordPointer) error {
	if w.completed {
		return ErrCompleted
	}
	w.meta.Catalog = &p
	return nil
}

// SetFinal marks this as the last volume of the archive.
func (w *Writer) SetFinal() error {
	if w.completed {
		return ErrCompleted
	}
	w.final = true
	return nil
}

// Complete writes any queued blocks and the trailer, and closes the sink.
// A writer holding suspended blocks may only be completed with
// suspendedFinalization set; otherwise ErrPendingBlocks is returned and the
// writer stays open.
func (w *Writer) Complete(suspendedFinalization bool) error {
	if w.completed {
		return ErrCompleted
	}
	if len(w.pending) > 0 && !suspendedFinalization {
		return ErrPendingBlocks
	}
	w.completed = true
	var err error
	for _, b := range w.pending {
		if err = w.write(b); err != nil {
			break
		}
	}
	w.pending = nil
	if err == nil {
		err = w.writeTrailer()
	}
	if err == nil {
		err = w.buf.Flush()
	}
	// close the sink even if something above failed
	if err2 := w.sink.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return errors.Wrapf(err, "volume %d: completing", w.number)
	}
	return nil
}

func (w *Writer) writeTrailer() error {
	t := format.Trailer{Metadata: w.meta, Final: w.final}
	data := format.EncodeTrailer(t)
	if _, err := w.hw.Write(data[:format.TrailerPrefix]); err != nil {
		return err
	}
	copy(t.Digest[:], w.hw.Sum())
	data = format.EncodeTrailer(t)
	_, err := w.buf.Write(data[format.TrailerPrefix:])
	return err
}
