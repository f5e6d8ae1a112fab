package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/root-relay/internal/bridge"
	"github.com/devblac/root-relay/internal/chain"
	"github.com/devblac/root-relay/internal/config"
	"github.com/devblac/root-relay/internal/health"
	"github.com/devblac/root-relay/internal/logging"
	"github.com/devblac/root-relay/internal/metrics"
	"github.com/devblac/root-relay/internal/relay"
	"github.com/devblac/root-relay/internal/storage"
)

var (
	flagOnce    bool
	flagDryRun  bool
	flagFrom    uint64
	flagHealth  string
	flagMetrics string
)

func init() {
	runCmd.Flags().BoolVar(&flagOnce, "once", false, "Process one notification and exit")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Do not submit to L1")
	runCmd.Flags().Uint64Var(&flagFrom, "from", 0, "Start from height override")
	runCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	runCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the notification bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			logLevel = "info"
		}
		log := logging.NewWithLevel(logLevel)
		ctx := cmd.Context()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		client, err := chain.NewRPCClient(cfg.Host.RPCURL)
		if err != nil {
			return err
		}

		startBlock := cfg.Host.StartBlock
		if flagFrom > 0 {
			startBlock = fmt.Sprintf("%d", flagFrom)
		}
		follower := chain.NewFollower(client, store, chain.FollowerConfig{
			SourceID:      hostSourceID,
			StartBlock:    startBlock,
			Confirmations: cfg.Host.Confirmations,
			PollInterval:  cfg.Host.Poll(),
		}, log)

		var mtr *metrics.Metrics
		if flagMetrics != "" {
			mtr = metrics.Init()
			log.Info("metrics enabled", "addr", flagMetrics)
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: flagMetrics, Handler: mux}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}

		if flagHealth != "" {
			healthSrv := health.Serve(flagHealth, health.Checker{
				DBPing:   store.Ping,
				HostPing: health.NewRPCChecker(client).Ping,
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		runner, err := bridge.NewRunner(bridge.Params{
			Source: follower,
			Acks:   &storage.AckRecorder{Store: store, SourceID: hostSourceID},
			Dial: func(ctx context.Context) (bridge.Notifier, error) {
				return relay.Dial(ctx, cfg.L1)
			},
			Target:  cfg.Counter.Address(),
			Log:     log,
			Metrics: mtr,
			Audit:   store,
			DryRun:  flagDryRun,
		})
		if err != nil {
			return err
		}

		log.Info("bridge started",
			"counter_contract", cfg.Counter.ContractAddress,
			"confirmations", cfg.Host.Confirmations,
			"dry_run", flagDryRun)

		if flagOnce {
			if err := runner.RunOnce(ctx); err != nil && !errors.Is(err, chain.ErrStreamClosed) {
				log.Error("run error", "error", err)
				return err
			}
			return nil
		}

		if err := runner.Run(ctx); err != nil {
			log.Error("run error", "error", err)
			return err
		}
		log.Info("notification stream closed, exiting")
		return nil
	},
}
