package bridge

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	"github.com/devblac/root-relay/internal/chain"
	"github.com/devblac/root-relay/internal/counter"
	"github.com/devblac/root-relay/internal/storage"
)

var counterAddr = common.HexToAddress("0x00000000000000000000000000000000000c0427")

type scriptedSource struct {
	notifs []*chain.Notification
	next   int
}

func (s *scriptedSource) Next(context.Context) (*chain.Notification, error) {
	if s.next >= len(s.notifs) {
		return nil, chain.ErrStreamClosed
	}
	n := s.notifs[s.next]
	s.next++
	return n, nil
}

type recordingAcks struct {
	acked []chain.NumHash
	err   error
}

func (a *recordingAcks) Ack(_ context.Context, tip chain.NumHash) error {
	if a.err != nil {
		return a.err
	}
	a.acked = append(a.acked, tip)
	return nil
}

type fakeNotifier struct {
	roots []common.Hash
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, root common.Hash) (common.Hash, error) {
	if f.err != nil {
		return common.Hash{}, f.err
	}
	f.roots = append(f.roots, root)
	return common.HexToHash("0xfeed"), nil
}

type dialer struct {
	notifier Notifier
	err      error
	calls    int
}

func (d *dialer) dial(context.Context) (Notifier, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.notifier, nil
}

func committedBlock(t *testing.T, number uint64, root common.Hash, logs ...*types.Log) *chain.Segment {
	t.Helper()
	txs := make([]*types.Transaction, 0, 1)
	receipts := make([]*types.Receipt, 0, 1)
	if len(logs) > 0 {
		txs = append(txs, types.NewTx(&types.LegacyTx{
			Nonce:    number,
			To:       &counterAddr,
			Gas:      21000,
			GasPrice: big.NewInt(1),
		}))
		receipts = append(receipts, &types.Receipt{Logs: logs})
	}
	header := &types.Header{Number: new(big.Int).SetUint64(number), Root: root}
	block := types.NewBlock(header, txs, nil, nil, trie.NewStackTrie(nil))
	seg, err := chain.NewSegment([]chain.SegmentBlock{{Block: block, Receipts: receipts}})
	require.NoError(t, err)
	return seg
}

func incrementedLog(value int64) *types.Log {
	return &types.Log{
		Address: counterAddr,
		Topics:  []common.Hash{counter.IncrementedID()},
		Data:    common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
	}
}

func unrelatedLog() *types.Log {
	return &types.Log{Address: counterAddr, Topics: []common.Hash{common.HexToHash("0x01")}}
}

func newRunner(t *testing.T, src chain.NotificationSource, acks chain.AckSink, d *dialer) *Runner {
	t.Helper()
	r, err := NewRunner(Params{
		Source: src,
		Acks:   acks,
		Dial:   d.dial,
		Target: counterAddr,
	})
	require.NoError(t, err)
	return r
}

func TestCommitRelaysTipRootAndAcks(t *testing.T) {
	root := common.HexToHash("0xaaaa")
	seg := committedBlock(t, 1, root, incrementedLog(1), unrelatedLog())
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg}}}
	acks := &recordingAcks{}
	fn := &fakeNotifier{}
	d := &dialer{notifier: fn}

	r := newRunner(t, src, acks, d)
	require.NoError(t, r.Run(context.Background()))

	require.Equal(t, []common.Hash{root}, fn.roots)
	require.Equal(t, 1, d.calls)
	require.Equal(t, []chain.NumHash{seg.TipNumHash()}, acks.acked)
}

func TestCommitWithoutEventsAcksWithoutDialing(t *testing.T) {
	seg := committedBlock(t, 1, common.HexToHash("0xaaaa"), unrelatedLog())
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg}}}
	acks := &recordingAcks{}
	d := &dialer{err: errors.New("should not dial")}

	r := newRunner(t, src, acks, d)
	require.NoError(t, r.Run(context.Background()))

	require.Zero(t, d.calls)
	require.Len(t, acks.acked, 1)
}

func TestRelayFailureStillAcksAndContinues(t *testing.T) {
	seg1 := committedBlock(t, 1, common.HexToHash("0x01"), incrementedLog(1))
	seg2 := committedBlock(t, 2, common.HexToHash("0x02"), incrementedLog(2))
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg1}, {Committed: seg2}}}
	acks := &recordingAcks{}
	d := &dialer{notifier: &fakeNotifier{err: errors.New("transport down")}}

	r := newRunner(t, src, acks, d)
	require.NoError(t, r.Run(context.Background()))

	require.Equal(t, []chain.NumHash{seg1.TipNumHash(), seg2.TipNumHash()}, acks.acked)
}

func TestReorgAndRevertDoNotAckOrNotify(t *testing.T) {
	old := committedBlock(t, 1, common.HexToHash("0x01"), incrementedLog(1))
	replacement := committedBlock(t, 1, common.HexToHash("0x02"), incrementedLog(2))
	reverted := committedBlock(t, 2, common.HexToHash("0x03"), incrementedLog(3))

	src := &scriptedSource{notifs: []*chain.Notification{
		{Reorged: &chain.Reorg{Old: old, New: replacement}},
		{Reverted: reverted},
	}}
	acks := &recordingAcks{}
	d := &dialer{err: errors.New("should not dial")}

	r := newRunner(t, src, acks, d)
	require.NoError(t, r.Run(context.Background()))

	require.Empty(t, acks.acked)
	require.Zero(t, d.calls)
}

func TestAckFailureIsFatal(t *testing.T) {
	seg := committedBlock(t, 1, common.HexToHash("0x01"))
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg}}}
	acks := &recordingAcks{err: errors.New("host channel broken")}
	d := &dialer{notifier: &fakeNotifier{}}

	r := newRunner(t, src, acks, d)
	err := r.Run(context.Background())
	require.ErrorContains(t, err, "acknowledge height 1")
	require.ErrorContains(t, err, "host channel broken")
}

func TestDialFailureIsFatal(t *testing.T) {
	seg := committedBlock(t, 1, common.HexToHash("0x01"), incrementedLog(1))
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg}}}
	acks := &recordingAcks{}
	d := &dialer{err: errors.New("PREFUNDED_SECRET is required")}

	r := newRunner(t, src, acks, d)
	err := r.Run(context.Background())
	require.ErrorContains(t, err, "l1 notifier")
	require.Empty(t, acks.acked)
}

func TestNotifierDialedOnceAcrossCommits(t *testing.T) {
	seg1 := committedBlock(t, 1, common.HexToHash("0x01"), incrementedLog(1))
	seg2 := committedBlock(t, 2, common.HexToHash("0x02"), incrementedLog(2))
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg1}, {Committed: seg2}}}
	fn := &fakeNotifier{}
	d := &dialer{notifier: fn}

	r := newRunner(t, src, &recordingAcks{}, d)
	require.NoError(t, r.Run(context.Background()))

	require.Equal(t, 1, d.calls)
	require.Len(t, fn.roots, 2)
}

func TestDryRunSkipsSubmissionButAcks(t *testing.T) {
	seg := committedBlock(t, 1, common.HexToHash("0x01"), incrementedLog(1))
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg}}}
	acks := &recordingAcks{}
	d := &dialer{err: errors.New("should not dial")}

	r, err := NewRunner(Params{
		Source: src,
		Acks:   acks,
		Dial:   d.dial,
		Target: counterAddr,
		DryRun: true,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	require.Zero(t, d.calls)
	require.Len(t, acks.acked, 1)
}

func TestRelayAttemptsAreAudited(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seg1 := committedBlock(t, 1, common.HexToHash("0x01"), incrementedLog(1))
	seg2 := committedBlock(t, 2, common.HexToHash("0x02"), incrementedLog(2))
	src := &scriptedSource{notifs: []*chain.Notification{{Committed: seg1}, {Committed: seg2}}}

	ok := &fakeNotifier{}
	d := &dialer{notifier: ok}
	r, err := NewRunner(Params{
		Source: src,
		Acks:   &recordingAcks{},
		Dial:   d.dial,
		Target: counterAddr,
		Audit:  store,
	})
	require.NoError(t, err)
	require.NoError(t, r.RunOnce(context.Background()))

	// fail the second submission
	r.notifier = &fakeNotifier{err: errors.New("reverted")}
	require.NoError(t, r.RunOnce(context.Background()))

	relays, err := store.RecentRelays(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, relays, 2)
	require.Equal(t, storage.RelayFailed, relays[0].Status)
	require.Equal(t, "reverted", relays[0].Error)
	require.Equal(t, storage.RelaySent, relays[1].Status)
	require.NotEmpty(t, relays[1].TxHash)
}
