// Package relay submits derived state roots to the L1 state root contract.
package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/devblac/root-relay/internal/config"
)

const (
	// Fixed allowance on every changeStateRoot call; generous by contract
	// design so submissions never fail on estimation.
	notifyGasLimit = 5_000_000

	methodChangeStateRoot = "changeStateRoot"
)

// Mutating surface of the state root contract.
const abiJSON = `[{"type":"function","name":"changeStateRoot","stateMutability":"nonpayable","inputs":[{"name":"stateRoot","type":"bytes32"}],"outputs":[]}]`

var stateRootABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("relay: invalid embedded abi: %v", err))
	}
	stateRootABI = parsed
}

// Transactor is the subset of bind.BoundContract the notifier needs.
type Transactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// Notifier submits state roots to the destination contract. Each Notify is a
// single signed attempt: no retry, no receipt wait. Callers treat failures as
// reportable, not fatal.
type Notifier struct {
	contract Transactor
	opts     *bind.TransactOpts
}

// NewNotifier wraps an existing transactor and signing options.
func NewNotifier(contract Transactor, opts *bind.TransactOpts) *Notifier {
	return &Notifier{contract: contract, opts: opts}
}

// Dial validates cfg, connects to the L1 endpoint, and prepares a keyed
// transactor bound to the state root contract. Errors here are configuration
// errors surfaced at the point of use.
func Dial(ctx context.Context, cfg config.L1Config) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial l1 rpc: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("l1 chain id: %w", err)
	}

	key, err := cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("l1 transactor: %w", err)
	}
	opts.GasLimit = notifyGasLimit

	contract := bind.NewBoundContract(cfg.ContractAddress(), stateRootABI, client, client, client)
	return NewNotifier(contract, opts), nil
}

// Notify submits one changeStateRoot call carrying root and returns the L1
// transaction hash once the transport accepts the submission.
func (n *Notifier) Notify(ctx context.Context, root common.Hash) (common.Hash, error) {
	opts := *n.opts
	opts.Context = ctx

	tx, err := n.contract.Transact(&opts, methodChangeStateRoot, root)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submit state root: %w", err)
	}
	return tx.Hash(), nil
}
