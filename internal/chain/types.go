package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrStreamClosed signals the host will produce no further notifications.
var ErrStreamClosed = errors.New("notification stream closed")

// NumHash identifies a block by number and hash. Acknowledgements carry it
// back to the host so processed history can be pruned safely.
type NumHash struct {
	Number uint64
	Hash   common.Hash
}

// Notification is one element of the host's chain update stream. Exactly one
// field is non-nil.
type Notification struct {
	Committed *Segment
	Reorged   *Reorg
	Reverted  *Segment
}

// Reorg carries the replaced range and its canonical replacement.
type Reorg struct {
	Old *Segment
	New *Segment
}

// SegmentBlock pairs a block with its receipts. Receipts are indexed
// positionally by transaction.
type SegmentBlock struct {
	Block    *types.Block
	Receipts []*types.Receipt
}

// Segment is a contiguous run of blocks with their receipts, ordered by
// ascending number. Immutable once constructed.
type Segment struct {
	blocks []SegmentBlock
}

// NewSegment builds a segment, rejecting gaps and out-of-order blocks.
func NewSegment(blocks []SegmentBlock) (*Segment, error) {
	for i, sb := range blocks {
		if sb.Block == nil {
			return nil, fmt.Errorf("segment block %d is nil", i)
		}
		if i == 0 {
			continue
		}
		prev := blocks[i-1].Block.NumberU64()
		if sb.Block.NumberU64() != prev+1 {
			return nil, fmt.Errorf("segment not contiguous: block %d follows %d", sb.Block.NumberU64(), prev)
		}
	}
	return &Segment{blocks: blocks}, nil
}

// Len returns the number of blocks in the segment.
func (s *Segment) Len() int {
	if s == nil {
		return 0
	}
	return len(s.blocks)
}

// Range returns the inclusive block-number range. ok is false for an empty
// segment.
func (s *Segment) Range() (first, last uint64, ok bool) {
	if s.Len() == 0 {
		return 0, 0, false
	}
	return s.blocks[0].Block.NumberU64(), s.blocks[len(s.blocks)-1].Block.NumberU64(), true
}

// Tip returns the highest block, or nil for an empty segment.
func (s *Segment) Tip() *types.Block {
	if s.Len() == 0 {
		return nil
	}
	return s.blocks[len(s.blocks)-1].Block
}

// TipNumHash returns the tip's number and hash.
func (s *Segment) TipNumHash() NumHash {
	tip := s.Tip()
	if tip == nil {
		return NumHash{}
	}
	return NumHash{Number: tip.NumberU64(), Hash: tip.Hash()}
}

// Blocks returns the ordered block/receipt pairs. Callers must not mutate the
// returned slice.
func (s *Segment) Blocks() []SegmentBlock {
	if s == nil {
		return nil
	}
	return s.blocks
}

// NotificationSource yields chain updates in commit order. Next blocks until
// a notification is available and returns ErrStreamClosed once the stream is
// exhausted.
type NotificationSource interface {
	Next(ctx context.Context) (*Notification, error)
}

// AckSink receives liveness acknowledgements: everything up to and including
// tip has been fully processed.
type AckSink interface {
	Ack(ctx context.Context, tip NumHash) error
}
