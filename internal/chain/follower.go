package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// retentionWindow bounds how many committed blocks the follower keeps in
// memory for building the old side of reorg/revert notifications.
const retentionWindow = 32

// BlockClient captures the subset of ethclient used by the follower.
type BlockClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	BlockReceipts(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) ([]*types.Receipt, error)
}

// RPCClient is a thin wrapper over ethclient.Client that satisfies BlockClient.
type RPCClient struct {
	*ethclient.Client
}

// NewRPCClient builds an RPC client to the host execution node.
func NewRPCClient(rpcURL string) (*RPCClient, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial host rpc: %w", err)
	}
	return &RPCClient{Client: c}, nil
}

// CursorStore persists the follower's processed-height cursor. The follower
// only reads and heals the cursor; normal advancement happens through the
// acknowledgement sink writing the same record.
type CursorStore interface {
	GetCursor(ctx context.Context, sourceID string) (height uint64, hash string, ok bool, err error)
	UpsertCursor(ctx context.Context, sourceID string, height uint64, hash string) error
}

// FollowerConfig carries the host-side tuning for a Follower.
type FollowerConfig struct {
	SourceID      string
	StartBlock    string
	Confirmations uint64
	PollInterval  time.Duration
}

// Follower turns a polled execution node into a NotificationSource. It builds
// one-block committed segments, detects reorgs by parent-hash mismatch
// against the cursor, and reports head regressions as reverts.
type Follower struct {
	client BlockClient
	store  CursorStore
	cfg    FollowerConfig
	log    *slog.Logger
	recent map[uint64]SegmentBlock
}

// NewFollower builds a follower over client, resuming from the cursor in store.
func NewFollower(client BlockClient, store CursorStore, cfg FollowerConfig, log *slog.Logger) *Follower {
	if cfg.SourceID == "" {
		cfg.SourceID = "host"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Follower{
		client: client,
		store:  store,
		cfg:    cfg,
		log:    log,
		recent: map[uint64]SegmentBlock{},
	}
}

// Next blocks until the node yields the next notification. Context
// cancellation is reported as a closed stream, giving the consumer a clean
// shutdown path.
func (f *Follower) Next(ctx context.Context) (*Notification, error) {
	for {
		n, err := f.poll(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil, ErrStreamClosed
			}
			return nil, err
		}
		if n != nil {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrStreamClosed
		case <-time.After(f.cfg.PollInterval):
		}
	}
}

// poll inspects the chain once and returns at most one notification. A nil
// notification with nil error means nothing is eligible yet.
func (f *Follower) poll(ctx context.Context) (*Notification, error) {
	curHeight, curHash, hasCursor, err := f.store.GetCursor(ctx, f.cfg.SourceID)
	if err != nil {
		return nil, err
	}

	latest, err := f.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	latestHeight := latest.Number.Uint64()

	if hasCursor && latestHeight < curHeight {
		return f.handleRevert(ctx, latestHeight, curHeight)
	}

	safeHeight := latestHeight
	if f.cfg.Confirmations > 0 {
		if f.cfg.Confirmations > safeHeight {
			return nil, nil
		}
		safeHeight -= f.cfg.Confirmations
	}

	target := curHeight + 1
	if !hasCursor {
		start, err := resolveStartHeight(f.cfg.StartBlock, safeHeight)
		if err != nil {
			return nil, err
		}
		target = start
	}

	if target > safeHeight {
		return nil, nil
	}

	block, err := f.client.BlockByNumber(ctx, new(big.Int).SetUint64(target))
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", target, err)
	}

	if hasCursor && block.ParentHash().Hex() != curHash {
		return f.handleReorg(ctx, target)
	}

	receipts, err := f.client.BlockReceipts(ctx, rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(target)))
	if err != nil {
		return nil, fmt.Errorf("receipts %d: %w", target, err)
	}

	sb := SegmentBlock{Block: block, Receipts: receipts}
	f.remember(sb)
	seg, err := NewSegment([]SegmentBlock{sb})
	if err != nil {
		return nil, err
	}
	return &Notification{Committed: seg}, nil
}

// handleReorg refetches the canonical block below target, heals the cursor to
// it, and reports the replaced block when the retention window still has it.
func (f *Follower) handleReorg(ctx context.Context, target uint64) (*Notification, error) {
	forked := target - 1

	replacement, err := f.client.BlockByNumber(ctx, new(big.Int).SetUint64(forked))
	if err != nil {
		return nil, fmt.Errorf("reorg block %d: %w", forked, err)
	}
	receipts, err := f.client.BlockReceipts(ctx, rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(forked)))
	if err != nil {
		return nil, fmt.Errorf("reorg receipts %d: %w", forked, err)
	}

	if err := f.store.UpsertCursor(ctx, f.cfg.SourceID, forked, replacement.Hash().Hex()); err != nil {
		return nil, err
	}

	old, retained := f.recent[forked]
	newSB := SegmentBlock{Block: replacement, Receipts: receipts}
	f.remember(newSB)

	if !retained {
		f.log.Warn("reorg beyond retention window, cursor rewound", "height", forked)
		return nil, nil
	}

	oldSeg, err := NewSegment([]SegmentBlock{old})
	if err != nil {
		return nil, err
	}
	newSeg, err := NewSegment([]SegmentBlock{newSB})
	if err != nil {
		return nil, err
	}
	return &Notification{Reorged: &Reorg{Old: oldSeg, New: newSeg}}, nil
}

// handleRevert reports blocks withdrawn by a head regression. The cursor is
// rewound to the new head so polling resumes there.
func (f *Follower) handleRevert(ctx context.Context, newHead, oldHead uint64) (*Notification, error) {
	head, err := f.client.HeaderByNumber(ctx, new(big.Int).SetUint64(newHead))
	if err != nil {
		return nil, fmt.Errorf("revert header %d: %w", newHead, err)
	}
	if err := f.store.UpsertCursor(ctx, f.cfg.SourceID, newHead, head.Hash().Hex()); err != nil {
		return nil, err
	}

	var withdrawn []SegmentBlock
	for h := newHead + 1; h <= oldHead; h++ {
		sb, ok := f.recent[h]
		if !ok {
			withdrawn = nil
			break
		}
		withdrawn = append(withdrawn, sb)
		delete(f.recent, h)
	}
	if len(withdrawn) == 0 {
		f.log.Warn("revert beyond retention window, cursor rewound", "from", oldHead, "to", newHead)
		return nil, nil
	}

	seg, err := NewSegment(withdrawn)
	if err != nil {
		return nil, err
	}
	return &Notification{Reverted: seg}, nil
}

func (f *Follower) remember(sb SegmentBlock) {
	h := sb.Block.NumberU64()
	f.recent[h] = sb
	for n := range f.recent {
		if n+retentionWindow < h {
			delete(f.recent, n)
		}
	}
}

func resolveStartHeight(start string, safeHeight uint64) (uint64, error) {
	if start == "" || start == "latest" {
		return safeHeight, nil
	}
	if strings.HasPrefix(start, "latest-") {
		offsetStr := strings.TrimPrefix(start, "latest-")
		n, err := strconv.ParseUint(offsetStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse start_block %q: %w", start, err)
		}
		if n > safeHeight {
			return 0, nil
		}
		return safeHeight - n, nil
	}

	n, err := strconv.ParseUint(start, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse start_block %q: %w", start, err)
	}
	return n, nil
}
