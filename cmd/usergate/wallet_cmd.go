package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slopeoasis/usergate/internal/wallet"
)

var errNotVerified = errors.New("signature does not match address")

func newVerifyWalletCmd() *cobra.Command {
	var (
		message, signature, address string
		rawRecoveryID               bool
	)
	cmd := &cobra.Command{
		Use:   "verify-wallet",
		Short: "Verifica una firma personal_sign (EIP-191) contra una dirección",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []wallet.Option
			if rawRecoveryID {
				opts = append(opts, wallet.WithRawRecoveryID())
			}
			ok := wallet.NewVerifier(opts...).VerifyHex(message, signature, address)
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			if !ok {
				return errNotVerified
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "mensaje firmado")
	cmd.Flags().StringVar(&signature, "signature", "", "firma 0x-hex de 65 bytes")
	cmd.Flags().StringVar(&address, "address", "", "dirección 0x declarada")
	cmd.Flags().BoolVar(&rawRecoveryID, "raw-recovery-id", false, "aceptar v en {0,1} además de {27,28}")
	_ = cmd.MarkFlagRequired("message")
	_ = cmd.MarkFlagRequired("signature")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}
