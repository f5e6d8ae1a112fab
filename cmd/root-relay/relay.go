package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/devblac/root-relay/internal/config"
	"github.com/devblac/root-relay/internal/relay"
	"github.com/devblac/root-relay/internal/storage"
)

var (
	flagStateRoot    string
	flagRelayTimeout time.Duration
)

func init() {
	relayCmd.Flags().StringVar(&flagStateRoot, "state-root", "", "32-byte state root to submit (hex)")
	relayCmd.Flags().DurationVar(&flagRelayTimeout, "timeout", 30*time.Second, "Submission timeout")
	_ = relayCmd.MarkFlagRequired("state-root")
}

// relayCmd is the manual recovery path for the bridge's no-retry contract:
// when a submission failed, an operator re-sends the root by hand.
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Submit a state root to the L1 contract once",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		root, err := parseStateRoot(flagStateRoot)
		if err != nil {
			return err
		}

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flagRelayTimeout)
		defer cancel()

		notifier, err := relay.Dial(ctx, cfg.L1)
		if err != nil {
			return err
		}

		txHash, err := notifier.Notify(ctx, root)
		recordManualRelay(cmd.Context(), cfg.Global.DBPath, root, txHash, err)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "submitted: tx %s\n", txHash)
		return nil
	},
}

func parseStateRoot(raw string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(raw, "0x")
	if len(trimmed) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("state root must be 32 bytes of hex, got %q", raw)
	}
	return common.HexToHash(raw), nil
}

// recordManualRelay appends the attempt to the audit log. Best effort: a
// missing or locked database must not mask the submission outcome.
func recordManualRelay(ctx context.Context, dbPath string, root common.Hash, txHash common.Hash, relayErr error) {
	store, err := storage.Open(dbPath)
	if err != nil {
		return
	}
	defer store.Close()

	rec := storage.Relay{StateRoot: root.Hex(), Status: storage.RelaySent, TxHash: txHash.Hex()}
	if relayErr != nil {
		rec = storage.Relay{StateRoot: root.Hex(), Status: storage.RelayFailed, Error: relayErr.Error()}
	}
	_ = store.InsertRelay(ctx, rec)
}
