package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilexec "k8s.io/utils/exec"

	"github.com/kube-zen/kubeseal-auto/pkg/cache"
	"github.com/kube-zen/kubeseal-auto/pkg/cluster"
	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/console"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/logging"
	"github.com/kube-zen/kubeseal-auto/pkg/metrics"
	"github.com/kube-zen/kubeseal-auto/pkg/platform"
	"github.com/kube-zen/kubeseal-auto/pkg/prompt"
	"github.com/kube-zen/kubeseal-auto/pkg/release"
	"github.com/kube-zen/kubeseal-auto/pkg/seal"
	"github.com/kube-zen/kubeseal-auto/pkg/workflow"
)

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	ui := console.New(stderr)
	root := newRootCmd(ui)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return errors.ExitOK
	}
	ui.Errorf("%v", err)
	if out := errors.Stderr(err); out != "" {
		ui.Errorf("kubeseal output:\n%s", strings.TrimRight(out, "\n"))
	}
	return errors.ExitCode(err)
}

func newRootCmd(ui *console.Console) *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "kubeseal-auto",
		Short: "kubeseal-auto - interactive SealedSecrets for any cluster",
		Long: `kubeseal-auto creates and edits Bitnami SealedSecrets. It finds the
sealed-secrets controller in the current cluster, runs a kubeseal binary
matching the controller's version and writes manifests ready for GitOps.

With --cert it works offline against a local certificate.`,
		Version:       versionString(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Setup(flags.Debug)

			workDir, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.NewRunConfig(flags, config.LoadSettings(), workDir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, ui)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.Select, "select", false, "Choose the kubeconfig context and namespace interactively")
	f.BoolVar(&flags.Fetch, "fetch", false, "Write the controller certificate to <context>-kubeseal-cert.crt")
	f.StringVarP(&flags.Cert, "cert", "c", "", "Seal offline with this certificate file")
	f.StringVarP(&flags.Edit, "edit", "e", "", "Add or change keys of a Secret or SealedSecret file")
	f.StringVar(&flags.Reencrypt, "reencrypt", "", "Reseal every SealedSecret in a directory from its .plain counterpart")
	f.BoolVar(&flags.Backup, "backup", false, "Back up the controller's sealing key to <context>-secret-backup.yaml")
	f.StringArrayVar(&flags.BackupRecipients, "backup-recipient", nil, "age recipient to encrypt the backup for (repeatable)")
	f.StringVar(&flags.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	f.StringVar(&flags.Context, "context", "", "Kubeconfig context to use")
	f.StringVar(&flags.ControllerNamespace, "controller-namespace", "", "Only look for the controller in this namespace")
	f.StringVar(&flags.MetricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	f.BoolVar(&flags.Debug, "debug", false, "Print diagnostic logs")
	f.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "re-encrypt" {
			name = "reencrypt"
		}
		return pflag.NormalizedName(name)
	})

	cmd.AddCommand(newKeygenCmd(ui))
	cmd.AddCommand(newDecryptBackupCmd(ui))
	return cmd
}

func run(ctx context.Context, cfg config.RunConfig, ui *console.Console) error {
	logger := logging.NewLogger()
	settings := cfg.Settings
	fetcherOpts := release.OptionsFromSettings(settings)
	fetcherOpts.Logger = logger

	orchestrator := workflow.New(cfg, workflow.Deps{
		Connector: &cluster.KubeconfigConnector{Path: cfg.Kubeconfig, Timeout: settings.APITimeout},
		Platform:  platform.Current,
		Binaries: func(token platform.Token) workflow.BinaryResolver {
			return cache.New(cache.Options{
				Dir:        settings.CacheDir,
				BinaryName: settings.BinaryName,
				Platform:   token,
				Fetcher:    release.NewFetcher(fetcherOpts),
				LookPath:   utilexec.New().LookPath,
				Warner:     ui,
				Logger:     logger,
			})
		},
		Runner:   seal.NewExecRunner(),
		Prompter: prompt.NewTerminal(),
		UI:       ui,
		Logger:   logger,
	})

	err := orchestrator.Run(ctx)
	if cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			logger.WithError(werr).Warn("cannot write metrics file")
		}
	}
	return err
}
