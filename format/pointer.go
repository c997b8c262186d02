package format

import (
	"fmt"

	"github.com/google/uuid"
)

// A RecordPointer addresses the first byte of a record in a multi-volume
// archive. The record starts Offset bytes into the payload of the block
// which begins at byte Block of volume Volume.
//
// A pointer may be handed out while its block is still being filled. It
// stays valid once the block is written, since the block's start offset
// is fixed when the pointer is taken.
type RecordPointer struct {
	Volume int64 `json:"volume"`
	Block  int64 `json:"block"`
	Offset int64 `json:"offset"`
}

// Compare returns -1, 0 or +1 depending on whether p is before, equal to,
// or after q in the archive stream.
func (p RecordPointer) Compare(q RecordPointer) int {
	switch {
	case p.Volume != q.Volume:
		return cmp(p.Volume, q.Volume)
	case p.Block != q.Block:
		return cmp(p.Block, q.Block)
	}
	return cmp(p.Offset, q.Offset)
}

func cmp(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func (p RecordPointer) String() string {
	return fmt.Sprintf("%d:%d:%d", p.Volume, p.Block, p.Offset)
}

// Metadata holds the archive wide values which are only known once all the
// content has been written. A nil field has not been set yet.
type Metadata struct {
	ObjectCount *int64
	Catalog     *RecordPointer
}

// NewArchiveID returns a new random archive identifier.
func NewArchiveID() string {
	return uuid.New().String()
}
