// Package content models values whose size is known before their bytes
// exist. A Writable can be cut into sub-ranges, and each range written on
// its own, so a large record can be spread over any number of blocks and
// volumes without being serialized twice or held in memory as a whole.
//
// There are three shapes. Bytes wraps data that is already in memory.
// A slice is a window onto another Writable. A Composite is an ordered list
// of parts written back to back. File and MappedFile are Writables whose
// bytes come from the file system when they are finally written.
package content

import (
	"errors"
	"fmt"
	"io"
)

// Writable is content with a fixed size whose bytes are produced on demand.
//
// WriteRange writes exactly the bytes in [from, to) to w. Callers guarantee
// 0 <= from <= to <= Size().
type Writable interface {
	Size() int64
	WriteRange(w io.Writer, from, to int64) error
}

var (
	// ErrShortContent means a Writable produced fewer bytes than its
	// declared size.
	ErrShortContent = errors.New("content shorter than declared size")
)

// WriteAll writes the whole of c to w.
func WriteAll(w io.Writer, c Writable) error {
	return c.WriteRange(w, 0, c.Size())
}

// Bytes is a Writable over an in-memory byte slice. The slice is not
// copied, so it must not be changed afterwards.
type Bytes []byte

// Size returns the length of b.
func (b Bytes) Size() int64 { return int64(len(b)) }

// WriteRange writes b[from:to] to w.
func (b Bytes) WriteRange(w io.Writer, from, to int64) error {
	if from == to {
		return nil
	}
	_, err := w.Write(b[from:to])
	return err
}

// slice is the window [from, to) of base.
type slice struct {
	base     Writable
	from, to int64
}

// Slice returns the part [from, to) of c as a new Writable of size to-from.
// Nothing is copied. Slicing a slice returns a window onto the original
// content, so repeated splitting never builds a chain of wrappers.
//
// Slice panics if the bounds are outside of c.
func Slice(c Writable, from, to int64) Writable {
	if from < 0 || to < from || to > c.Size() {
		panic(fmt.Sprintf("content: slice [%d:%d] out of range for size %d", from, to, c.Size()))
	}
	if from == 0 && to == c.Size() {
		return c
	}
	switch v := c.(type) {
	case Bytes:
		return v[from:to]
	case *slice:
		return &slice{base: v.base, from: v.from + from, to: v.from + to}
	}
	return &slice{base: c, from: from, to: to}
}

func (s *slice) Size() int64 { return s.to - s.from }

func (s *slice) WriteRange(w io.Writer, from, to int64) error {
	return s.base.WriteRange(w, s.from+from, s.from+to)
}

// Composite is an ordered sequence of parts which together form one value.
// The zero value is an empty composite ready to use.
type Composite struct {
	parts []Writable
	size  int64
}

// Add appends part to the end of c. Empty parts are dropped.
func (c *Composite) Add(part Writable) {
	n := part.Size()
	if n == 0 {
		return
	}
	c.parts = append(c.parts, part)
	c.size += n
}

// Size returns the sum of the sizes of the parts.
func (c *Composite) Size() int64 { return c.size }

// Len returns the number of parts.
func (c *Composite) Len() int { return len(c.parts) }

// WriteRange writes the bytes in [from, to) of the concatenated parts.
func (c *Composite) WriteRange(w io.Writer, from, to int64) error {
	var start int64 // offset of the current part inside c
	for _, part := range c.parts {
		if from >= to {
			break
		}
		end := start + part.Size()
		if from < end {
			lo := from - start
			hi := part.Size()
			if to < end {
				hi = to - start
			}
			if err := part.WriteRange(w, lo, hi); err != nil {
				return err
			}
			from = start + hi
		}
		start = end
	}
	return nil
}
