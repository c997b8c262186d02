package util

import (
	"bytes"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// VerifyStreamDigest reads r to the end and compares the BLAKE3-256 digest
// of its content with digest. It returns true if they match. An empty
// digest always matches. The reader is not closed when finished.
func VerifyStreamDigest(r io.Reader, digest []byte) (bool, error) {
	if len(digest) == 0 {
		return true, nil
	}
	hw := NewHashWriterPlain()
	_, err := io.Copy(hw, r)
	_, ok := hw.CheckDigest(digest)
	return ok, err
}

// Digest returns the BLAKE3-256 digest of data.
func Digest(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// A HashWriter wraps an io.Writer and also calculates the BLAKE3-256 digest
// and the count of the bytes written.
type HashWriter struct {
	w     io.Writer // nil for a plain writer
	h     hash.Hash
	count int64
}

// NewHashWriter returns a HashWriter wrapping w.
func NewHashWriter(w io.Writer) *HashWriter {
	return &HashWriter{w: w, h: blake3.New()}
}

// NewHashWriterPlain returns a HashWriter that does not wrap an output
// stream. It only computes the digest of the data written to it.
func NewHashWriterPlain() *HashWriter {
	return &HashWriter{h: blake3.New()}
}

// Write writes p to the underlying writer and adds the bytes accepted by
// it to the digest.
func (hw *HashWriter) Write(p []byte) (int, error) {
	n := len(p)
	var err error
	if hw.w != nil {
		n, err = hw.w.Write(p)
	}
	hw.h.Write(p[:n])
	hw.count += int64(n)
	return n, err
}

// Count returns the number of bytes written so far.
func (hw *HashWriter) Count() int64 {
	return hw.count
}

// Sum returns the digest of the bytes written so far.
func (hw *HashWriter) Sum() []byte {
	return hw.h.Sum(nil)
}

// CheckDigest returns the digest for this writer and compares it with
// goal. An empty goal is treated as matching.
func (hw *HashWriter) CheckDigest(goal []byte) ([]byte, bool) {
	computed := hw.Sum()
	ok := len(goal) == 0 || bytes.Equal(goal, computed)
	return computed, ok
}
