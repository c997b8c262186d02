/*
Package catalog defines the records an archive builder writes into the
archive stream.

Every object in an archive is preceded by its entry record: a uvarint
length followed by the CBOR encoded Entry. Files are then followed by
their content. At the end of the archive the Catalog lists every entry
again, now with a pointer to where each record starts, so a reader can
find any object without scanning the volumes.
*/
package catalog

import (
	"encoding/binary"
	"errors"
	"os"
	"time"

	"github.com/ndlib/bpack/content"
	"github.com/ndlib/bpack/format"
)

// Kind distinguishes the kinds of objects in an archive.
type Kind int

const (
	File Kind = iota
	Folder
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Folder:
		return "folder"
	}
	return "unknown"
}

// ErrBadRecord means a byte sequence is not an entry record.
var ErrBadRecord = errors.New("malformed entry record")

// Entry describes one object in an archive. Path uses forward slashes
// whatever the platform. Record is the address of the entry record, and is
// only filled in for the copy kept in the Catalog.
type Entry struct {
	ID      int64                 `json:"id"`
	Kind    Kind                  `json:"kind"`
	Path    string                `json:"path"`
	Size    int64                 `json:"size,omitempty"`
	Mode    os.FileMode           `json:"mode"`
	ModTime time.Time             `json:"mtime"`
	Record  *format.RecordPointer `json:"record,omitempty"`
}

// Catalog is the index written at the end of an archive.
type Catalog struct {
	Archive string    `json:"archive"`
	Created time.Time `json:"created"`
	Entries []Entry   `json:"entries"`
}

// Encode returns the catalog as content ready to be written into the
// archive.
func Encode(c *Catalog) (content.Bytes, error) {
	b, err := format.Marshal(c)
	if err != nil {
		return nil, err
	}
	return content.Bytes(b), nil
}

// Decode parses a catalog produced by Encode.
func Decode(data []byte) (*Catalog, error) {
	c := new(Catalog)
	if err := format.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeRecord returns the length prefixed entry record for e.
func EncodeRecord(e Entry) ([]byte, error) {
	e.Record = nil
	body, err := format.Marshal(e)
	if err != nil {
		return nil, err
	}
	result := make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+len(body))
	n := binary.PutUvarint(result, uint64(len(body)))
	result = append(result[:n], body...)
	return result, nil
}

// DecodeRecord parses the entry record at the start of data, returning it
// and the number of bytes it takes.
func DecodeRecord(data []byte) (Entry, int, error) {
	var e Entry
	n, w := binary.Uvarint(data)
	if w <= 0 || uint64(len(data)-w) < n {
		return e, 0, ErrBadRecord
	}
	end := w + int(n)
	if err := format.Unmarshal(data[w:end], &e); err != nil {
		return e, 0, err
	}
	return e, end, nil
}
