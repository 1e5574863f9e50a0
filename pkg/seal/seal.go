/*
Copyright 2025 Kube-ZEN Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package seal invokes the kubeseal binary. Every sealing call passes an
// explicit certificate; failures are never retried.
package seal

import (
	"bytes"
	"context"
	"time"

	utilexec "k8s.io/utils/exec"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/logging"
	"github.com/kube-zen/kubeseal-auto/pkg/metrics"
)

// Runner runs a binary and returns its standard output.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error)
}

// ExecRunner runs binaries as subprocesses.
type ExecRunner struct {
	exec utilexec.Interface
}

// NewExecRunner creates an ExecRunner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{exec: utilexec.New()}
}

// Run implements Runner. A failed command yields a SealCommandFailed error
// carrying the captured stderr.
func (r *ExecRunner) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	cmd := r.exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	if stdin != nil {
		cmd.SetStdin(bytes.NewReader(stdin))
	}
	cmd.SetStdout(&stdout)
	cmd.SetStderr(&stderr)

	if err := cmd.Run(); err != nil {
		return nil, errors.SealFailed(err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Operations recorded in metrics.
const (
	OperationSeal      = "seal"
	OperationFetchCert = "fetch_cert"
)

// Sealer drives one resolved kubeseal binary.
type Sealer struct {
	runner     Runner
	binary     string
	kubeconfig string
	logger     *logging.Logger
}

// NewSealer creates a Sealer. kubeconfig is forwarded to commands that talk
// to the cluster and may be empty.
func NewSealer(runner Runner, binary, kubeconfig string, logger *logging.Logger) *Sealer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Sealer{runner: runner, binary: binary, kubeconfig: kubeconfig, logger: logger}
}

// Seal seals a Secret manifest against the certificate at certPath and
// returns the SealedSecret manifest as YAML.
func (s *Sealer) Seal(ctx context.Context, certPath string, manifest []byte) ([]byte, error) {
	args := []string{"--format=yaml", "--cert=" + certPath}
	return s.run(ctx, OperationSeal, args, manifest)
}

// FetchCert asks the controller for its public certificate.
func (s *Sealer) FetchCert(ctx context.Context, kubeContext, namespace, name string) ([]byte, error) {
	args := []string{"--fetch-cert"}
	if s.kubeconfig != "" {
		args = append(args, "--kubeconfig="+s.kubeconfig)
	}
	args = append(args,
		"--context="+kubeContext,
		"--controller-namespace="+namespace,
		"--controller-name="+name,
	)
	out, err := s.run(ctx, OperationFetchCert, args, nil)
	if err != nil {
		return nil, errors.WithCluster(err, kubeContext, namespace)
	}
	return out, nil
}

func (s *Sealer) run(ctx context.Context, operation string, args []string, stdin []byte) ([]byte, error) {
	start := time.Now()
	out, err := s.runner.Run(ctx, s.binary, args, stdin)
	elapsed := time.Since(start)
	metrics.RecordSeal(operation, metrics.Result(err), elapsed.Seconds())

	logger := s.logger.WithField("operation", operation).WithTiming(elapsed)
	if err != nil {
		logger.WithError(err).Debug("kubeseal failed")
		if !errors.IsType(err, errors.TypeSealCommandFailed) {
			err = errors.SealFailed(err, "")
		}
		return nil, err
	}
	logger.Debug("kubeseal succeeded")
	return out, nil
}
