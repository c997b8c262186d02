package pack

import (
	"bytes"
	"log"

	"github.com/facebookgo/stats"
	"github.com/pkg/errors"

	"github.com/ndlib/bpack/content"
	"github.com/ndlib/bpack/format"
	"github.com/ndlib/bpack/volume"
)

const (
	// MiB is the number of bytes in one mebibyte
	MiB = 1 << 20

	// DefaultMaxChunkSize is the default limit on the payload of a single
	// block. It bounds how much raw data is buffered in memory.
	DefaultMaxChunkSize = 1 * MiB
)

var (
	// ErrVolumeTooSmall means the volume size cannot hold even one block
	// of one byte. It is a configuration error.
	ErrVolumeTooSmall = errors.New("volume size too small")

	// ErrNegativeSize means a content item reported a negative size.
	ErrNegativeSize = errors.New("negative content size")

	// ErrCompleted means the archive was already completed.
	ErrCompleted = errors.New("archive already completed")
)

/*
BlockWriter implements ChunkWriter. Raw bytes collect in a ready buffer.
Content items are kept as slices in a pending composite, so they are not
produced until their block is finally written. When the block reaches the
space left in the volume it is flushed, and the next block goes into the
same volume or, once it is full, into a new one.

A volume is suspended rather than completed when the writer moves on in
the middle of a content item which holds blocks in it. The suspended
volumes are finalized, in order, as soon as that item has been written
out, so only the volumes spanned by one item stay open at a time.

Make sure to call Complete when finished, otherwise the last volume is
never closed.
*/
type BlockWriter struct {
	// MaxChunkSize limits the payload of a single block. Change it only
	// before the first write.
	MaxChunkSize int64

	// Stats, if not nil, receives counters for volumes, blocks and bytes.
	Stats stats.Client

	archiveID string
	provider  Provider
	volume    *volume.Writer   // nil until the first write
	suspended []*volume.Writer // rolled past, waiting for Complete
	ready     bytes.Buffer     // raw bytes of the current block
	future    *content.Composite
	freeSpace int64 // payload bytes left for the current block
	splitting bool  // a content item continues past the current block
	meta      format.Metadata
	completed bool
}

var (
	_ ChunkWriter = &BlockWriter{}
)

// NewBlockWriter returns a BlockWriter writing the volumes given by p. If
// archiveID is empty a new random one is generated. No volume is created
// until something is written.
func NewBlockWriter(p Provider, archiveID string) *BlockWriter {
	if archiveID == "" {
		archiveID = format.NewArchiveID()
	}
	return &BlockWriter{
		MaxChunkSize: DefaultMaxChunkSize,
		archiveID:    archiveID,
		provider:     p,
	}
}

// ArchiveID returns the identifier carried in every volume header.
func (bw *BlockWriter) ArchiveID() string { return bw.archiveID }

// Volumes returns the number of volumes created so far.
func (bw *BlockWriter) Volumes() int64 {
	if bw.volume == nil {
		return 0
	}
	return bw.volume.Number()
}

// CurrentPointer returns the address of the next byte to be written. It
// may have to open a new volume to be sure the address exists.
func (bw *BlockWriter) CurrentPointer() (format.RecordPointer, error) {
	if _, err := bw.ensureFreeSpace(); err != nil {
		return format.RecordPointer{}, err
	}
	return format.RecordPointer{
		Volume: bw.volume.Number(),
		Block:  bw.volume.StreamEnd(),
		Offset: bw.pendingSize(),
	}, nil
}

// pendingSize is the payload size of the current block so far.
func (bw *BlockWriter) pendingSize() int64 {
	n := int64(bw.ready.Len())
	if bw.future != nil {
		n += bw.future.Size()
	}
	return n
}

// WriteByte appends a single byte.
func (bw *BlockWriter) WriteByte(c byte) error {
	if _, err := bw.ensureFreeSpace(); err != nil {
		return err
	}
	bw.ready.WriteByte(c)
	bw.freeSpace--
	return nil
}

// Write appends p. It either consumes all of p or returns an error.
func (bw *BlockWriter) Write(p []byte) (int, error) {
	var n int
	for len(p) > 0 {
		free, err := bw.ensureFreeSpace()
		if err != nil {
			return n, err
		}
		size := len(p)
		if int64(size) > free {
			size = int(free)
		}
		bw.ready.Write(p[:size])
		bw.freeSpace -= int64(size)
		p = p[size:]
		n += size
	}
	return n, nil
}

// WriteContent appends c, slicing it wherever a block or volume ends.
// Zero sized content is ignored.
func (bw *BlockWriter) WriteContent(c content.Writable) error {
	if bw.completed {
		return ErrCompleted
	}
	size := c.Size()
	if size < 0 {
		return ErrNegativeSize
	}
	var off int64
	for off < size {
		bw.splitting = off > 0
		free, err := bw.ensureFreeSpace()
		bw.splitting = false
		if err != nil {
			return err
		}
		n := size - off
		if n > free {
			n = free
		}
		if bw.future == nil {
			bw.future = &content.Composite{}
		}
		bw.suspendReady()
		bw.future.Add(content.Slice(c, off, off+n))
		bw.freeSpace -= n
		off += n
	}
	return bw.finalizeSuspended()
}

// finalizeSuspended completes the suspended volumes in volume order. It
// tries every volume even after an error.
func (bw *BlockWriter) finalizeSuspended() error {
	var err error
	for _, vw := range bw.suspended {
		log.Printf("pack: finalizing suspended volume %d", vw.Number())
		if err2 := vw.Complete(true); err == nil {
			err = err2
		}
	}
	bw.suspended = nil
	return err
}

// suspendReady moves the raw bytes into the pending composite, keeping
// their order relative to the content slices.
func (bw *BlockWriter) suspendReady() {
	if bw.ready.Len() > 0 {
		b := make([]byte, bw.ready.Len())
		copy(b, bw.ready.Bytes())
		bw.future.Add(content.Bytes(b))
		bw.ready.Reset()
	}
}

// SetObjectCount records the number of objects in the archive. The value
// goes to the open volume and to every volume opened later.
func (bw *BlockWriter) SetObjectCount(n int64) error {
	if bw.completed {
		return ErrCompleted
	}
	bw.meta.ObjectCount = &n
	if bw.volume != nil {
		return bw.volume.SetObjectCount(n)
	}
	return nil
}

// SetCatalogPointer records where the catalog starts. The value goes to
// the open volume and to every volume opened later.
func (bw *BlockWriter) SetCatalogPointer(p format.RecordPointer) error {
	if bw.completed {
		return ErrCompleted
	}
	bw.meta.Catalog = &p
	if bw.volume != nil {
		return bw.volume.SetCatalogPointer(p)
	}
	return nil
}

// ObjectCount returns the object count, or nil if it was never set.
func (bw *BlockWriter) ObjectCount() *int64 {
	if bw.meta.ObjectCount == nil {
		return nil
	}
	n := *bw.meta.ObjectCount
	return &n
}

// CatalogPointer returns the catalog pointer, or nil if it was never set.
func (bw *BlockWriter) CatalogPointer() *format.RecordPointer {
	if bw.meta.Catalog == nil {
		return nil
	}
	p := *bw.meta.Catalog
	return &p
}

// Complete writes out the last block, marks the open volume as the final
// one, and finalizes every volume which is still open. An archive with
// nothing written in it still gets one volume.
func (bw *BlockWriter) Complete() error {
	if bw.completed {
		return ErrCompleted
	}
	if bw.volume == nil {
		if err := bw.createVolume(1); err != nil {
			return err
		}
	}
	if err := bw.flushBlock(); err != nil {
		return err
	}
	bw.completed = true
	bw.freeSpace = 0
	last := bw.volume
	err := last.SetFinal()
	// anything left over from a content item which failed part way
	if err2 := bw.finalizeSuspended(); err == nil {
		err = err2
	}
	if err2 := last.Complete(last.Suspended()); err == nil {
		err = err2
	}
	return err
}

// ensureFreeSpace returns the number of payload bytes which still fit
// into the current block, which is always positive. When the current block
// is full it is flushed and a new one started, in a new volume if need be.
func (bw *BlockWriter) ensureFreeSpace() (int64, error) {
	if bw.completed {
		return 0, ErrCompleted
	}
	if bw.freeSpace > 0 {
		return bw.freeSpace, nil
	}
	if bw.volume == nil {
		if err := bw.createVolume(1); err != nil {
			return 0, err
		}
	} else if err := bw.flushBlock(); err != nil {
		return 0, err
	}
	size := bw.maxContentSize(bw.volume.FreeSpace())
	if size <= 0 {
		if err := bw.completeVolume(); err != nil {
			return 0, err
		}
		if err := bw.createVolume(bw.volume.Number() + 1); err != nil {
			return 0, err
		}
		size = bw.maxContentSize(bw.volume.FreeSpace())
	}
	bw.freeSpace = size
	return size, nil
}

// maxContentSize returns the largest payload whose framed block fits into
// space. The length prefix of a block grows with its payload, so the
// framing taken off may shrink the prefix again; the result is then a byte
// or so short of the optimum, but never too large.
func (bw *BlockWriter) maxContentSize(space int64) int64 {
	size := space
	if bw.MaxChunkSize > 0 && bw.MaxChunkSize < size {
		size = bw.MaxChunkSize
	}
	over := format.BlockSize(size) - space
	if over < 0 {
		over = 0
	}
	return size - over
}

// createVolume makes volume number the current one. The capacity is
// checked before the provider is asked for a sink, so a volume size which
// cannot hold anything fails without creating a file.
func (bw *BlockWriter) createVolume(number int64) error {
	maxSize := bw.provider.MaxVolumeSize()
	space := maxSize - volume.Overhead(bw.archiveID, number)
	if space < 0 || bw.maxContentSize(space) <= 0 {
		return errors.Wrapf(ErrVolumeTooSmall, "volume %d of %d bytes", number, maxSize)
	}
	sink, err := bw.provider.Volume(number)
	if err != nil {
		return errors.Wrapf(err, "opening volume %d", number)
	}
	vw, err := volume.New(bw.archiveID, number, maxSize, sink)
	if err != nil {
		sink.Close()
		return err
	}
	vw.SetMetadata(bw.meta)
	bw.volume = vw
	bw.bump("volumes", 1)
	return nil
}

// completeVolume moves off the current volume. A volume with suspended
// blocks is kept while the content item being written continues into the
// next volume. Anything else is finished right away.
func (bw *BlockWriter) completeVolume() error {
	vw := bw.volume
	if vw.Suspended() && bw.splitting {
		bw.suspended = append(bw.suspended, vw)
		bw.bump("suspended", 1)
		return nil
	}
	return vw.Complete(vw.Suspended())
}

// flushBlock hands the current block to the volume and clears the buffers.
func (bw *BlockWriter) flushBlock() error {
	var err error
	var size int64
	switch {
	case bw.future != nil:
		bw.suspendReady()
		b := format.PlainBlock(bw.future)
		size = b.Size()
		err = bw.volume.SuspendBlock(b)
		bw.future = nil
	case bw.ready.Len() > 0:
		payload := bw.ready.Bytes()
		if bw.volume.Suspended() {
			// the block will be queued, so it cannot share the buffer
			payload = append([]byte(nil), payload...)
		}
		b := format.PlainBlock(content.Bytes(payload))
		size = b.Size()
		err = bw.volume.WriteBlock(b)
		bw.ready.Reset()
	default:
		return nil
	}
	if err == nil {
		bw.bump("blocks", 1)
		bw.bump("bytes", float64(size))
	}
	return err
}

func (bw *BlockWriter) bump(key string, val float64) {
	if bw.Stats != nil {
		bw.Stats.BumpSum("bpack."+key, val)
	}
}
