package format

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ndlib/bpack/content"
	"github.com/ndlib/bpack/util"
)

const (
	// NullSize is the length of the null sentinel which closes a block
	// payload and the block list of a volume.
	NullSize = 2

	// CheckSize is the length of the check field ending every block.
	CheckSize = 4
)

var (
	// nullSentinel is a non-minimal encoding of zero. A minimal uvarint
	// never starts with 0x80 followed by 0x00, so the two cannot be
	// confused.
	nullSentinel = [NullSize]byte{0x80, 0x00}

	// ErrContentLength means a block payload produced a different number
	// of bytes than its declared size.
	ErrContentLength = errors.New("block payload does not match declared length")
)

// UvarintSize returns the number of bytes binary.PutUvarint uses to
// encode n.
func UvarintSize(n int64) int {
	size := 1
	for v := uint64(n); v >= 0x80; v >>= 7 {
		size++
	}
	return size
}

// BlockSize returns the gross size of a plain block with a payload of n
// bytes.
func BlockSize(n int64) int64 {
	return int64(UvarintSize(n)) + n + NullSize + CheckSize
}

// A Block is the framed unit appended to a volume. On the wire a plain
// block is
//
//	[uvarint payload length][payload][0x80 0x00][4 byte check]
//
// where the check is the first four bytes of the BLAKE3-256 digest of the
// payload.
type Block struct {
	payload content.Writable
}

// PlainBlock wraps payload as a plain block. The payload bytes are not
// produced until the block is written.
func PlainBlock(payload content.Writable) Block {
	return Block{payload: payload}
}

// PayloadSize returns the declared payload length.
func (b Block) PayloadSize() int64 { return b.payload.Size() }

// Size returns the number of bytes WriteTo will write.
func (b Block) Size() int64 { return BlockSize(b.payload.Size()) }

// WriteTo writes the framed block to w.
func (b Block) WriteTo(w io.Writer) (int64, error) {
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(b.payload.Size()))
	written, err := w.Write(prefix[:n])
	total := int64(written)
	if err != nil {
		return total, err
	}
	hw := util.NewHashWriter(w)
	err = content.WriteAll(hw, b.payload)
	total += hw.Count()
	if err != nil {
		return total, err
	}
	if hw.Count() != b.payload.Size() {
		return total, ErrContentLength
	}
	var tail [NullSize + CheckSize]byte
	copy(tail[:], nullSentinel[:])
	copy(tail[NullSize:], hw.Sum())
	written, err = w.Write(tail[:])
	total += int64(written)
	return total, err
}

// Check returns the check field for a payload.
func Check(payload []byte) [CheckSize]byte {
	var result [CheckSize]byte
	copy(result[:], util.Digest(payload))
	return result
}
