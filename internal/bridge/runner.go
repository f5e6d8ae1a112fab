// Package bridge drives the notification-processing pipeline: it consumes
// the host's chain update stream, extracts counter events from committed
// segments, relays the tip state root to L1, and acknowledges processed
// heights back to the host.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/devblac/root-relay/internal/chain"
	"github.com/devblac/root-relay/internal/extract"
	"github.com/devblac/root-relay/internal/metrics"
	"github.com/devblac/root-relay/internal/storage"
)

// Notifier submits one state root and returns the L1 transaction hash.
type Notifier interface {
	Notify(ctx context.Context, root common.Hash) (common.Hash, error)
}

// DialFunc lazily constructs the L1 notifier. It runs on the first qualifying
// event, so a bridge that never sees one never needs L1 configuration.
type DialFunc func(ctx context.Context) (Notifier, error)

// RelayAudit records submission attempts. Optional; nil disables auditing.
type RelayAudit interface {
	InsertRelay(ctx context.Context, r storage.Relay) error
}

// Params wires a Runner.
type Params struct {
	Source  chain.NotificationSource
	Acks    chain.AckSink
	Dial    DialFunc
	Target  common.Address
	Log     *slog.Logger
	Metrics *metrics.Metrics
	Audit   RelayAudit
	DryRun  bool
}

// Runner is the single sequential consumer of the notification stream. It
// processes notifications strictly in stream order, one at a time, and never
// has more than one L1 submission in flight.
type Runner struct {
	source   chain.NotificationSource
	acks     chain.AckSink
	dial     DialFunc
	target   common.Address
	log      *slog.Logger
	metrics  *metrics.Metrics
	audit    RelayAudit
	dryRun   bool
	notifier Notifier
}

// NewRunner validates p and builds a runner.
func NewRunner(p Params) (*Runner, error) {
	if p.Source == nil {
		return nil, errors.New("notification source required")
	}
	if p.Acks == nil {
		return nil, errors.New("acknowledgement sink required")
	}
	if p.Dial == nil {
		return nil, errors.New("l1 dial function required")
	}
	if p.Log == nil {
		p.Log = slog.Default()
	}
	return &Runner{
		source:  p.Source,
		acks:    p.Acks,
		dial:    p.Dial,
		target:  p.Target,
		log:     p.Log,
		metrics: p.Metrics,
		audit:   p.Audit,
		dryRun:  p.DryRun,
	}, nil
}

// Run consumes the stream until it is exhausted. Returns nil on a clean
// close, and an error when the stream fails or an acknowledgement cannot be
// delivered (the host channel itself is broken).
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, chain.ErrStreamClosed) {
				return nil
			}
			return err
		}
	}
}

// RunOnce pulls and processes exactly one notification.
func (r *Runner) RunOnce(ctx context.Context) error {
	n, err := r.source.Next(ctx)
	if err != nil {
		return err
	}

	switch {
	case n.Committed != nil:
		r.metrics.Notification(metrics.KindCommit)
		return r.handleCommit(ctx, n.Committed)
	case n.Reorged != nil:
		r.metrics.Notification(metrics.KindReorg)
		oldFirst, oldLast, _ := n.Reorged.Old.Range()
		newFirst, newLast, _ := n.Reorged.New.Range()
		r.log.Info("chain reorged",
			"from_chain", fmt.Sprintf("[%d..%d]", oldFirst, oldLast),
			"to_chain", fmt.Sprintf("[%d..%d]", newFirst, newLast))
		return nil
	case n.Reverted != nil:
		r.metrics.Notification(metrics.KindRevert)
		first, last, _ := n.Reverted.Range()
		r.log.Info("chain reverted", "reverted_chain", fmt.Sprintf("[%d..%d]", first, last))
		return nil
	default:
		r.log.Warn("empty notification ignored")
		return nil
	}
}

// handleCommit extracts counter events, relays the tip state root once per
// event, and acknowledges the tip. The acknowledgement is unconditional on
// relay outcomes: committed heights are processed heights.
func (r *Runner) handleCommit(ctx context.Context, seg *chain.Segment) error {
	if seg.Len() == 0 {
		r.log.Warn("empty committed segment ignored")
		return nil
	}

	first, last, _ := seg.Range()
	root := seg.Tip().Root()
	r.log.Info("chain committed",
		"committed_chain", fmt.Sprintf("[%d..%d]", first, last),
		"state_root", root)

	events := extract.Extract(seg, r.target)
	r.metrics.EventsExtracted(len(events))

	for _, ev := range events {
		if err := r.relayRoot(ctx, ev, root); err != nil {
			return err
		}
	}

	tip := seg.TipNumHash()
	if err := r.acks.Ack(ctx, tip); err != nil {
		r.metrics.Errors()
		return fmt.Errorf("acknowledge height %d: %w", tip.Number, err)
	}
	r.metrics.AckEmitted()
	return nil
}

// relayRoot dispatches one submission for one extracted event. Submission
// failures are logged and recorded, never escalated; only a failure to
// construct the notifier (a configuration error) is returned.
func (r *Runner) relayRoot(ctx context.Context, ev extract.Event, root common.Hash) error {
	if r.dryRun {
		r.log.Info("dry-run: skipping state root relay",
			"block", ev.Block.NumberU64(), "tx", ev.Tx.Hash(), "value", ev.Decoded.Value)
		return nil
	}

	notifier, err := r.notifierFor(ctx)
	if err != nil {
		return fmt.Errorf("l1 notifier: %w", err)
	}

	txHash, err := notifier.Notify(ctx, root)
	if err != nil {
		r.metrics.RelayFailed()
		r.log.Error("failed to notify L1 with new state root",
			"block", ev.Block.NumberU64(), "state_root", root, "error", err)
		r.record(ctx, ev.Block.NumberU64(), root, common.Hash{}, storage.RelayFailed, err.Error())
		return nil
	}

	r.metrics.RelaySent()
	r.log.Info("notified L1 with new state root",
		"block", ev.Block.NumberU64(), "state_root", root, "tx_id", txHash)
	r.record(ctx, ev.Block.NumberU64(), root, txHash, storage.RelaySent, "")
	return nil
}

func (r *Runner) notifierFor(ctx context.Context) (Notifier, error) {
	if r.notifier != nil {
		return r.notifier, nil
	}
	n, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	r.notifier = n
	return n, nil
}

func (r *Runner) record(ctx context.Context, height uint64, root, txHash common.Hash, status, errText string) {
	if r.audit == nil {
		return
	}
	rec := storage.Relay{
		Height:    height,
		StateRoot: root.Hex(),
		Status:    status,
		Error:     errText,
	}
	if (txHash != common.Hash{}) {
		rec.TxHash = txHash.Hex()
	}
	if err := r.audit.InsertRelay(ctx, rec); err != nil {
		r.log.Warn("relay audit write failed", "error", err)
	}
}
