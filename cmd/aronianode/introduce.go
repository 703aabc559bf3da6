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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aronia-net/aronia/config"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/metrics"
	"github.com/aronia-net/aronia/node"
	"github.com/aronia-net/aronia/transport/wsswarm"
)

var (
	introduceKeyFile   string
	introduceConfigDir string
	introducePeer      string
	introduceTarget    string
	introduceAlias     string
	introduceCaps      string
	introduceMessage   string
)

var introduceCmd = &cobra.Command{
	Use:   "introduce",
	Short: "Vouch for a target pubkey to an already-trusted peer",
	Long: `introduce starts the node just long enough to connect to --peer and
send it a signed introduction for --target, then exits. It is a one-shot
operation: this process is not the long-running node that will go on
holding a session with --peer (run that with "aronianode run").`,
	Example: `  aronianode introduce --key node.key --peer <hex> --target <hex> --alias carol`,
	RunE:    runIntroduce,
}

func init() {
	rootCmd.AddCommand(introduceCmd)
	introduceCmd.Flags().StringVarP(&introduceKeyFile, "key", "k", "node.key", "path to a keygen-produced secret key file")
	introduceCmd.Flags().StringVar(&introduceConfigDir, "config-dir", "config", "directory containing environment config files")
	introduceCmd.Flags().StringVar(&introducePeer, "peer", "", "hex pubkey of the peer to send the introduction to (required)")
	introduceCmd.Flags().StringVar(&introduceTarget, "target", "", "hex pubkey being introduced (required)")
	introduceCmd.Flags().StringVar(&introduceAlias, "alias", "", "human-readable alias for the target")
	introduceCmd.Flags().StringVar(&introduceCaps, "capabilities", "", "comma-separated capability tokens")
	introduceCmd.Flags().StringVar(&introduceMessage, "message", "", "free-text message to carry in the introduction")
	_ = introduceCmd.MarkFlagRequired("peer")
	_ = introduceCmd.MarkFlagRequired("target")
}

func runIntroduce(cmd *cobra.Command, args []string) error {
	kp, err := loadKeyFile(introduceKeyFile)
	if err != nil {
		return err
	}
	peer, err := identity.ParsePublicKeyHex(introducePeer)
	if err != nil {
		return fmt.Errorf("invalid --peer: %w", err)
	}
	target, err := identity.ParsePublicKeyHex(introduceTarget)
	if err != nil {
		return fmt.Errorf("invalid --target: %w", err)
	}

	opts := config.DefaultLoaderOptions()
	opts.ConfigDir = introduceConfigDir
	cfg, err := config.Load(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	swarm := wsswarm.New(kp, wsswarm.Config{ListenAddr: cfg.ListenAddr, PeerAddrs: cfg.PeerAddrs})
	n := node.New(kp, swarm, cfg, metrics.NewRegistry())
	n.Whitelist(peer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer n.Stop()

	if err := waitForPeerConnected(n, peer, 5*time.Second); err != nil {
		return err
	}

	var caps []string
	if introduceCaps != "" {
		caps = strings.Split(introduceCaps, ",")
	}
	if err := n.Introduce(peer, target, introduceAlias, caps, introduceMessage); err != nil {
		return fmt.Errorf("send introduction: %w", err)
	}
	fmt.Printf("introduced %s to %s\n", target.Hex(), peer.Hex())
	return nil
}

func waitForPeerConnected(n *node.Node, peer identity.PublicKey, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-n.Events():
			if ev.Kind == node.EventPeerConnected && ev.Peer == peer {
				return nil
			}
			if ev.Kind == node.EventPeerRejected && ev.Peer == peer {
				return fmt.Errorf("peer rejected us: %s", ev.PeerRejected.Reason)
			}
		case <-deadline:
			return fmt.Errorf("timed out waiting to connect to peer %s", peer.Hex())
		}
	}
}
