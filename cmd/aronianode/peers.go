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
	"time"

	"github.com/spf13/cobra"

	"github.com/aronia-net/aronia/config"
	"github.com/aronia-net/aronia/internal/metrics"
	"github.com/aronia-net/aronia/node"
	"github.com/aronia-net/aronia/transport/wsswarm"
)

var (
	peersKeyFile   string
	peersConfigDir string
	peersWait      time.Duration
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Connect briefly and list the peers that became active",
	Long: `peers starts the node, gives its configured peers --wait to complete
their handshake, then prints each active session's pubkey and
capabilities. Like introduce, this is a one-shot inspection process, not
the long-running node (use "aronianode run" for that).`,
	Example: `  aronianode peers --key node.key --wait 3s`,
	RunE:    runPeers,
}

func init() {
	rootCmd.AddCommand(peersCmd)
	peersCmd.Flags().StringVarP(&peersKeyFile, "key", "k", "node.key", "path to a keygen-produced secret key file")
	peersCmd.Flags().StringVar(&peersConfigDir, "config-dir", "config", "directory containing environment config files")
	peersCmd.Flags().DurationVar(&peersWait, "wait", 3*time.Second, "how long to wait for handshakes to settle")
}

func runPeers(cmd *cobra.Command, args []string) error {
	kp, err := loadKeyFile(peersKeyFile)
	if err != nil {
		return err
	}

	opts := config.DefaultLoaderOptions()
	opts.ConfigDir = peersConfigDir
	cfg, err := config.Load(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	swarm := wsswarm.New(kp, wsswarm.Config{ListenAddr: cfg.ListenAddr, PeerAddrs: cfg.PeerAddrs})
	n := node.New(kp, swarm, cfg, metrics.NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), peersWait+5*time.Second)
	defer cancel()
	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer n.Stop()

	time.Sleep(peersWait)

	peers := n.Peers()
	if len(peers) == 0 {
		fmt.Println("no active peers")
		return nil
	}
	for _, p := range peers {
		fmt.Printf("%s  agent=%s version=%s connected_at=%s\n",
			p.Pubkey.Hex(), p.Capabilities.Agent, p.Capabilities.Version, p.ConnectedAt.Format(time.RFC3339))
	}
	return nil
}
