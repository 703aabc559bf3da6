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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aronia-net/aronia/identity"
)

var keygenOutputFile string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new Ed25519 node identity",
	Long: `Generate a new Ed25519 keypair and write its secret key, hex-encoded,
to a file (0600 permissions). The node's address on the network is the
derived public key; persistence of the secret key is an application
concern, never handled by the core itself.`,
	Example: `  aronianode keygen --output node.key`,
	RunE:    runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOutputFile, "output", "o", "node.key", "file to write the hex-encoded secret key to")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	kp, err := identity.Generate()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}

	encoded := hex.EncodeToString(kp.SecretKey())
	if err := os.WriteFile(keygenOutputFile, []byte(encoded+"\n"), 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	fmt.Printf("wrote secret key to %s\n", keygenOutputFile)
	fmt.Printf("pubkey (hex):    %s\n", kp.PublicKey().Hex())
	fmt.Printf("pubkey (base58): %s\n", kp.PublicKey().Base58())
	return nil
}

// loadKeyFile reads a hex-encoded secret key previously written by keygen.
func loadKeyFile(path string) (*identity.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	raw := make([]byte, hex.DecodedLen(len(trimNewline(data))))
	n, err := hex.Decode(raw, trimNewline(data))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	return identity.FromSecretKey(raw[:n])
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
