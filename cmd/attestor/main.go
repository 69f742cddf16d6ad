package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/spf13/cobra"
)

var (
	keyFile    string
	jsonOutput bool
	logger     = watermill.NewStdLogger(false, false)
)

func defaultKeyFile() string {
	if p := os.Getenv("ISSUER_KEY_FILE"); p != "" {
		return p
	}
	return "idp_key.json"
}

var rootCmd = &cobra.Command{
	Use:          "attestor <command>",
	Short:        "Identity provider that signs verification attestations",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", defaultKeyFile(), "issuer key file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(generateKeysCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
