package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const sampleConfig = `version: 1

host:
  rpc_url: ${HOST_RPC_ADDRESS}
  start_block: "latest"
  confirmations: 0
  poll_interval: 1s

counter:
  contract_address: ${COUNTER_CONTRACT_ADDRESS}

l1:
  rpc_url: ${L1_RPC_ADDRESS}
  state_root_contract: ${STATE_ROOT_CONTRACT_ADDRESS}
  prefunded_secret: ${PREFUNDED_SECRET}

global:
  db_path: root-relay.db
`

const sampleEnv = `HOST_RPC_ADDRESS=http://localhost:8545
COUNTER_CONTRACT_ADDRESS=0x0000000000000000000000000000000000000000
L1_RPC_ADDRESS=http://localhost:8546
STATE_ROOT_CONTRACT_ADDRESS=0x0000000000000000000000000000000000000000
PREFUNDED_SECRET=replace-with-hex-private-key
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold sample config and .env files",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if err := writeIfAbsent(cfgPath, sampleConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", cfgPath)

		if err := writeIfAbsent(".env.example", sampleEnv); err != nil {
			return err
		}
		fmt.Fprintln(out, "wrote .env.example")
		return nil
	},
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
