package main

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/layer-3/warden/adapters/keys"
	"github.com/layer-3/warden/service"
	transport "github.com/layer-3/warden/transport/http"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve attestations over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keys.LoadIssuerKey(keyFile)
		if err != nil {
			return fmt.Errorf("failed to load issuer key (run generate-keys first): %w", err)
		}

		attestor := service.NewAttestor(key, logger)
		logger.Info("Attestor listening", watermill.LogFields{
			"addr":   listenAddr,
			"issuer": attestor.Issuer().Hex(),
		})

		return transport.SetupAttestorRouter(attestor).Run(listenAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":9100", "listen address")
}
