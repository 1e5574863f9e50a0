package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kube-zen/kubeseal-auto/pkg/console"
	"github.com/kube-zen/kubeseal-auto/pkg/crypto"
	"github.com/kube-zen/kubeseal-auto/pkg/manifest"
)

func newKeygenCmd(ui *console.Console) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an age key pair for encrypting sealing key backups",
		Long: `Generate an age identity for --backup-recipient. The identity file is
needed to read the backup again; the printed recipient is what you pass to
--backup-recipient.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, recipient, err := crypto.GenerateIdentity()
			if err != nil {
				return err
			}
			if err := manifest.WriteFile(output, []byte(identity+"\n"), 0o600); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", recipient)
			ui.Successf("Identity saved to %s", output)
			ui.Warnf("Keep the identity file secure; it decrypts every backup made for this recipient")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "backup-identity.age", "Output file for the identity")

	return cmd
}
