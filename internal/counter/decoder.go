// Package counter decodes the counter contract's event ABI. The decoder has
// no address awareness: callers filter logs by emitter before decoding.
package counter

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Event surface of the counter contract. Calls are never made against it, so
// only the event fragment is embedded.
const abiJSON = `[{"type":"event","name":"Incremented","anonymous":false,"inputs":[{"name":"value","type":"uint256","indexed":false}]}]`

var (
	// ErrNoTopics marks a log without a topic0; such logs cannot belong to
	// the counter contract's event surface.
	ErrNoTopics = errors.New("log has no topics")
	// ErrUnknownEvent marks a log whose topic0 is not a counter event. This
	// is an expected outcome for unrelated logs, not a failure.
	ErrUnknownEvent = errors.New("not a counter contract event")
)

var (
	counterABI    abi.ABI
	incrementedID common.Hash
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("counter: invalid embedded abi: %v", err))
	}
	counterABI = parsed
	incrementedID = parsed.Events["Incremented"].ID
}

// Incremented is the decoded form of the counter contract's Incremented log.
type Incremented struct {
	Value *big.Int
}

// IncrementedID returns the event's topic0.
func IncrementedID() common.Hash {
	return incrementedID
}

// Decode attempts to decode raw log topics and data into a counter event.
// Decoding is deterministic and total: a log either decodes fully or an error
// is returned; malformed and unrelated logs are normal inputs here.
func Decode(topics []common.Hash, data []byte) (*Incremented, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	if topics[0] != incrementedID {
		return nil, ErrUnknownEvent
	}

	out := map[string]any{}
	if err := counterABI.UnpackIntoMap(out, "Incremented", data); err != nil {
		return nil, fmt.Errorf("unpack Incremented: %w", err)
	}
	value, ok := out["value"].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack Incremented: value has unexpected type %T", out["value"])
	}
	return &Incremented{Value: value}, nil
}
