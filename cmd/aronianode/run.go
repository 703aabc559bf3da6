// ARONIA - Realtime Peer-to-Peer Agent Communication Fabric
// Copyright (C) 2025 ARONIA-project
//
// This file is part of ARONIA.
//
// ARONIA is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ARONIA is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ARONIA. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aronia-net/aronia/config"
	"github.com/aronia-net/aronia/internal/logger"
	"github.com/aronia-net/aronia/internal/metrics"
	"github.com/aronia-net/aronia/node"
	"github.com/aronia-net/aronia/transport/wsswarm"
)

var (
	runKeyFile   string
	runConfigDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a node: join its topic, admit whitelisted peers, log events",
	Long: `run loads configuration (environment-specific file, default.yaml,
config.yaml, or built-in defaults, all overridable by ARONIA_* environment
variables), joins the configured topic over a WebSocket swarm, and logs
every event the node surfaces until interrupted.`,
	Example: `  aronianode run --key node.key --config-dir ./config`,
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runKeyFile, "key", "k", "node.key", "path to a keygen-produced secret key file")
	runCmd.Flags().StringVar(&runConfigDir, "config-dir", "config", "directory containing environment config files")
}

func runRun(cmd *cobra.Command, args []string) error {
	kp, err := loadKeyFile(runKeyFile)
	if err != nil {
		return err
	}

	opts := config.DefaultLoaderOptions()
	opts.ConfigDir = runConfigDir
	cfg, err := config.Load(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.GetDefaultLogger()
	log.SetLevel(levelFromString(cfg.Logging.Level))

	reg := metrics.NewRegistry()
	if cfg.Metrics.Enabled {
		go func() {
			if err := reg.StartServer(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	swarm := wsswarm.New(kp, wsswarm.Config{
		ListenAddr: cfg.ListenAddr,
		PeerAddrs:  cfg.PeerAddrs,
	})

	n := node.New(kp, swarm, cfg, reg)
	for _, pk := range cfg.Trust.AutoAcceptFrom {
		log.Info("auto-accept configured", logger.String("pubkey", pk))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	log.Info("node started",
		logger.String("pubkey", kp.PublicKey().Hex()),
		logger.String("topic", cfg.Topic),
		logger.String("listen_addr", cfg.ListenAddr))

	go logEvents(log, n)

	<-ctx.Done()
	log.Info("shutting down")
	return n.Stop()
}

func logEvents(log logger.Logger, n *node.Node) {
	for ev := range n.Events() {
		fields := []logger.Field{
			logger.String("kind", string(ev.Kind)),
			logger.String("peer", ev.Peer.Hex()),
		}
		if ev.Err != nil {
			fields = append(fields, logger.Error(ev.Err))
		}
		log.Info("event", fields...)
	}
}

func levelFromString(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
