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
	"fmt"

	"github.com/spf13/cobra"
)

var idKeyFile string

var idCmd = &cobra.Command{
	Use:     "id",
	Aliases: []string{"whoami"},
	Short:   "Print the public identity for a key file",
	Example: `  aronianode id --key node.key`,
	RunE:    runID,
}

func init() {
	rootCmd.AddCommand(idCmd)
	idCmd.Flags().StringVarP(&idKeyFile, "key", "k", "node.key", "path to a keygen-produced secret key file")
}

func runID(cmd *cobra.Command, args []string) error {
	kp, err := loadKeyFile(idKeyFile)
	if err != nil {
		return err
	}
	fmt.Printf("pubkey (hex):    %s\n", kp.PublicKey().Hex())
	fmt.Printf("pubkey (base58): %s\n", kp.PublicKey().Base58())
	return nil
}
