package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/warden/adapters/keys"
	"github.com/spf13/cobra"
)

var generateKeysCmd = &cobra.Command{
	Use:   "generate-keys",
	Short: "Generate a new issuer key, replacing the existing one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keys.GenerateIssuerKey(keyFile)
		if err != nil {
			return err
		}

		address := crypto.PubkeyToAddress(key.PublicKey)
		if jsonOutput {
			return printJSON(map[string]string{"address": address.Hex(), "key_file": keyFile})
		}

		fmt.Println("Generated new issuer key")
		fmt.Printf("  Address:  %s\n", address.Hex())
		fmt.Printf("  Key file: %s\n", keyFile)
		fmt.Println("\nRegister this address as an identity provider on the ledger before use.")
		return nil
	},
}
