package format

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Volume layout:
//
//	"BPK1"                       magic
//	uvarint n, n bytes CBOR      Header
//	blocks...
//	trailer, TrailerSize bytes:
//	  0x80 0x00                  end of blocks
//	  flags                      see flag constants
//	  uint64 LE                  object count
//	  uint64 LE x 3              catalog pointer (volume, block, offset)
//	  [32]byte                   BLAKE3-256 of all preceding bytes
//	  "BPKE"                     end magic
//
// The trailer has a fixed size so the space it needs can be reserved when
// a volume is opened.
const (
	// TrailerSize is the fixed length of a volume trailer.
	TrailerSize = NullSize + 1 + 8 + 3*8 + DigestSize + 4

	// DigestSize is the length of the volume digest.
	DigestSize = 32
)

const (
	flagObjectCount = 1 << iota
	flagCatalog
	flagFinal
)

var (
	volumeMagic = [4]byte{'B', 'P', 'K', '1'}
	endMagic    = [4]byte{'B', 'P', 'K', 'E'}

	// ErrBadTrailer means a byte sequence is not a volume trailer.
	ErrBadTrailer = errors.New("malformed volume trailer")

	// ErrBadHeader means a byte sequence is not a volume header.
	ErrBadHeader = errors.New("malformed volume header")
)

// Header is written at the start of every volume. The archive id ties the
// volumes of one archive together, and the volume number detects
// misordering.
type Header struct {
	Archive string `json:"archive"`
	Volume  int64  `json:"volume"`
}

// EncodeHeader returns the bytes of the volume header, including the magic
// and the length prefix.
func EncodeHeader(h Header) ([]byte, error) {
	body, err := Marshal(h)
	if err != nil {
		return nil, err
	}
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(body)))
	result := make([]byte, 0, len(volumeMagic)+n+len(body))
	result = append(result, volumeMagic[:]...)
	result = append(result, prefix[:n]...)
	return append(result, body...), nil
}

// DecodeHeader parses the header at the start of data. It returns the
// header and its encoded length.
func DecodeHeader(data []byte) (Header, int, error) {
	var h Header
	if len(data) < len(volumeMagic) || !bytes.Equal(data[:len(volumeMagic)], volumeMagic[:]) {
		return h, 0, ErrBadHeader
	}
	n, w := binary.Uvarint(data[len(volumeMagic):])
	if w <= 0 {
		return h, 0, ErrBadHeader
	}
	start := len(volumeMagic) + w
	if n > uint64(len(data)-start) {
		return h, 0, ErrBadHeader
	}
	end := start + int(n)
	if err := Unmarshal(data[start:end], &h); err != nil {
		return h, 0, err
	}
	return h, end, nil
}

// HeaderSize returns the encoded length of the header of the given volume.
func HeaderSize(archiveID string, volume int64) int64 {
	b, err := EncodeHeader(Header{Archive: archiveID, Volume: volume})
	if err != nil {
		// a string and an integer always encode
		panic(err)
	}
	return int64(len(b))
}

// Trailer closes a volume. Final is true only for the last volume of an
// archive.
type Trailer struct {
	Metadata
	Final  bool
	Digest [DigestSize]byte
}

// EncodeTrailer returns the TrailerSize bytes of t. The digest is copied
// as given; it covers every byte of the volume in front of the digest
// field, see TrailerPrefix.
func EncodeTrailer(t Trailer) []byte {
	result := make([]byte, TrailerSize)
	copy(result, nullSentinel[:])
	var flags byte
	p := result[NullSize+1:]
	if t.ObjectCount != nil {
		flags |= flagObjectCount
		binary.LittleEndian.PutUint64(p, uint64(*t.ObjectCount))
	}
	p = p[8:]
	if t.Catalog != nil {
		flags |= flagCatalog
		binary.LittleEndian.PutUint64(p, uint64(t.Catalog.Volume))
		binary.LittleEndian.PutUint64(p[8:], uint64(t.Catalog.Block))
		binary.LittleEndian.PutUint64(p[16:], uint64(t.Catalog.Offset))
	}
	p = p[24:]
	if t.Final {
		flags |= flagFinal
	}
	result[NullSize] = flags
	copy(p, t.Digest[:])
	copy(p[DigestSize:], endMagic[:])
	return result
}

// TrailerPrefix is the number of trailer bytes covered by the volume
// digest: everything in front of the digest field.
const TrailerPrefix = NullSize + 1 + 8 + 3*8

// DecodeTrailer parses a trailer of exactly TrailerSize bytes.
func DecodeTrailer(data []byte) (Trailer, error) {
	var t Trailer
	if len(data) != TrailerSize ||
		!bytes.Equal(data[:NullSize], nullSentinel[:]) ||
		!bytes.Equal(data[TrailerSize-4:], endMagic[:]) {
		return t, ErrBadTrailer
	}
	flags := data[NullSize]
	p := data[NullSize+1:]
	if flags&flagObjectCount != 0 {
		n := int64(binary.LittleEndian.Uint64(p))
		t.ObjectCount = &n
	}
	p = p[8:]
	if flags&flagCatalog != 0 {
		t.Catalog = &RecordPointer{
			Volume: int64(binary.LittleEndian.Uint64(p)),
			Block:  int64(binary.LittleEndian.Uint64(p[8:])),
			Offset: int64(binary.LittleEndian.Uint64(p[16:])),
		}
	}
	p = p[24:]
	t.Final = flags&flagFinal != 0
	copy(t.Digest[:], p)
	return t, nil
}
