package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devblac/root-relay/internal/config"
	"github.com/devblac/root-relay/internal/storage"
)

var flagStateLimit int

func init() {
	stateCmd.Flags().IntVar(&flagStateLimit, "limit", 20, "Number of relay attempts to show")
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the acknowledged cursor and recent relay attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		height, hash, ok, err := store.GetCursor(cmd.Context(), hostSourceID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "cursor: none (no heights acknowledged yet)")
		} else {
			fmt.Fprintf(out, "cursor: height %d hash %s\n", height, hash)
		}

		relays, err := store.RecentRelays(cmd.Context(), flagStateLimit)
		if err != nil {
			return err
		}
		if len(relays) == 0 {
			fmt.Fprintln(out, "relays: none")
			return nil
		}
		fmt.Fprintf(out, "relays (newest first, showing %d):\n", len(relays))
		for _, r := range relays {
			switch r.Status {
			case storage.RelaySent:
				fmt.Fprintf(out, "- height %d %s root %s tx %s\n", r.Height, r.Status, r.StateRoot, r.TxHash)
			default:
				fmt.Fprintf(out, "- height %d %s root %s error %q\n", r.Height, r.Status, r.StateRoot, r.Error)
			}
		}
		return nil
	},
}
