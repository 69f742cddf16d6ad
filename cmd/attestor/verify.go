package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/warden/adapters/keys"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
	"github.com/spf13/cobra"
)

var verifyTimestamp uint64

var verifyCmd = &cobra.Command{
	Use:   "verify <address>",
	Short: "Sign an identity attestation for address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := core.ParseAddress(args[0])
		if err != nil {
			return err
		}

		key, generated, err := keys.LoadOrGenerateIssuerKey(keyFile)
		if err != nil {
			return fmt.Errorf("failed to load issuer key: %w", err)
		}
		if generated {
			logger.Info("No issuer key found, generated a new one", nil)
		}

		attestor := service.NewAttestor(key, logger)
		var attestation core.Attestation
		if verifyTimestamp != 0 {
			attestation, err = attestor.AttestAt(subject, verifyTimestamp)
		} else {
			attestation, err = attestor.Attest(context.Background(), subject)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(attestation)
		}

		fmt.Println("Attestation signed")
		fmt.Printf("  Subject:   %s\n", attestation.Subject.Hex())
		fmt.Printf("  Timestamp: %d\n", attestation.IssuedAt)
		fmt.Printf("  Issuer:    %s\n", attestation.Issuer.Hex())
		fmt.Printf("  Digest:    %s\n", attestation.Digest.Hex())
		fmt.Printf("  Signature: %s\n", hexutil.Encode(attestation.Signature))
		fmt.Println("\nSubmit it from the subject's wallet with:")
		fmt.Printf("  %s(%d, %s)\n", service.VerifyIdentityFunction, attestation.IssuedAt, hexutil.Encode(attestation.Signature))
		return nil
	},
}

var (
	checkTimestamp uint64
	checkSignature string
)

var checkCmd = &cobra.Command{
	Use:   "check <address>",
	Short: "Recover the issuer of an attestation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := core.ParseAddress(args[0])
		if err != nil {
			return err
		}
		sig, err := hexutil.Decode(checkSignature)
		if err != nil {
			return fmt.Errorf("invalid signature: %w", err)
		}

		attestation := core.Attestation{
			Subject:   subject,
			IssuedAt:  checkTimestamp,
			Digest:    core.AttestationDigest(subject, checkTimestamp),
			Signature: sig,
		}
		issuer, err := core.RecoverAttestationIssuer(attestation)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]string{"issuer": issuer.Hex(), "digest": attestation.Digest.Hex()})
		}
		fmt.Printf("Signed by %s\n", issuer.Hex())
		return nil
	},
}

func init() {
	verifyCmd.Flags().Uint64Var(&verifyTimestamp, "timestamp", 0, "unix timestamp to attest (defaults to now)")

	checkCmd.Flags().Uint64Var(&checkTimestamp, "timestamp", 0, "unix timestamp of the attestation")
	checkCmd.Flags().StringVar(&checkSignature, "signature", "", "0x-prefixed 65-byte signature")
	_ = checkCmd.MarkFlagRequired("timestamp")
	_ = checkCmd.MarkFlagRequired("signature")
}
