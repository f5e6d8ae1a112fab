// Package extract walks committed chain segments and pulls out the counter
// contract's decoded events in deterministic order.
package extract

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/devblac/root-relay/internal/chain"
	"github.com/devblac/root-relay/internal/counter"
)

// Event is one decoded counter event with its provenance inside a segment.
type Event struct {
	Block    *types.Block
	Tx       *types.Transaction
	Decoded  *counter.Incremented
	LogIndex uint
}

// Extract returns the ordered (block, transaction, event) triples for target
// inside seg. Order is block ascending, then transaction within block, then
// log within receipt. Receipts are paired with transactions positionally; a
// transaction without a receipt is skipped. Unrelated or undecodable logs are
// dropped without aborting the walk. An empty or nil segment yields nothing.
func Extract(seg *chain.Segment, target common.Address) []Event {
	var events []Event
	for _, sb := range seg.Blocks() {
		for i, tx := range sb.Block.Transactions() {
			if i >= len(sb.Receipts) || sb.Receipts[i] == nil {
				continue
			}
			for _, lg := range sb.Receipts[i].Logs {
				if lg == nil || lg.Address != target {
					continue
				}
				decoded, err := counter.Decode(lg.Topics, lg.Data)
				if err != nil {
					continue
				}
				events = append(events, Event{
					Block:    sb.Block,
					Tx:       tx,
					Decoded:  decoded,
					LogIndex: lg.Index,
				})
			}
		}
	}
	return events
}
