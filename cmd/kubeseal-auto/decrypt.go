package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kube-zen/kubeseal-auto/pkg/console"
	"github.com/kube-zen/kubeseal-auto/pkg/crypto"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/manifest"
)

func newDecryptBackupCmd(ui *console.Console) *cobra.Command {
	var identityFile string
	var output string

	cmd := &cobra.Command{
		Use:   "decrypt-backup <file.age>",
		Short: "Decrypt an encrypted sealing key backup",
		Long: `Decrypt a backup written by --backup --backup-recipient. The output is the
controller's private key in plain text; restore it with kubectl apply and
never commit it to version control.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if identityFile == "" {
				return errors.New(errors.TypeInvalidArguments, "--identity flag is required")
			}

			identities, err := os.ReadFile(identityFile)
			if err != nil {
				return errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound, "reading identity file"), identityFile)
			}
			ciphertext, err := os.ReadFile(args[0])
			if err != nil {
				return errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound, "reading backup"), args[0])
			}

			plaintext, err := crypto.NewAgeEncryptor().Decrypt(ciphertext, string(identities))
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(plaintext)
				return err
			}
			if err := manifest.WriteFile(output, plaintext, 0o600); err != nil {
				return err
			}
			ui.Successf("Decrypted backup written to %s", output)
			ui.Warnf("Keep this file secure! Never commit it to version control.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&identityFile, "identity", "i", "", "age identity file (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}
