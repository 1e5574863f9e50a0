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

// Package workflow runs one kubeseal-auto invocation: it resolves the
// cluster, the controller, the kubeseal binary and the certificate, then
// performs the selected mode.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/kube-zen/kubeseal-auto/pkg/cache"
	"github.com/kube-zen/kubeseal-auto/pkg/cluster"
	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/crypto"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/logging"
	"github.com/kube-zen/kubeseal-auto/pkg/metrics"
	"github.com/kube-zen/kubeseal-auto/pkg/platform"
	"github.com/kube-zen/kubeseal-auto/pkg/prompt"
	"github.com/kube-zen/kubeseal-auto/pkg/seal"
)

// BinaryResolver resolves the kubeseal binary for a run.
type BinaryResolver interface {
	Resolve(ctx context.Context, req cache.Request) (cache.BinaryHandle, error)
}

// UI receives user-facing messages.
type UI interface {
	Successf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Step(msg string) func()
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Connector cluster.Connector
	// Platform detects the host platform; it runs before any cluster or
	// network access in online modes.
	Platform func() (platform.Token, error)
	// Binaries builds the binary resolver for the detected platform. Detached
	// runs receive the zero Token.
	Binaries  func(platform.Token) BinaryResolver
	Runner    seal.Runner
	Prompter  prompt.Prompter
	UI        UI
	Encryptor crypto.Encryptor
	Logger    *logging.Logger
}

// Orchestrator executes one RunConfig.
type Orchestrator struct {
	cfg  config.RunConfig
	deps Deps
	log  *logging.Logger

	binaries BinaryResolver
	state    runState
}

// New creates an Orchestrator.
func New(cfg config.RunConfig, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.NewLogger()
	}
	if deps.Platform == nil {
		deps.Platform = platform.Current
	}
	if deps.Encryptor == nil {
		deps.Encryptor = crypto.NewAgeEncryptor()
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.WithField("mode", cfg.Mode.String()),
	}
}

// Run performs the configured mode.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRun(o.cfg.Mode.String(), metrics.Result(err))
		o.log.WithTiming(time.Since(start)).Debugf("run finished: %s", metrics.Result(err))
		o.state.close()
	}()

	if err := o.preflight(); err != nil {
		return err
	}

	switch o.cfg.Mode {
	case config.ModeInteractive:
		return o.runInteractive(ctx)
	case config.ModeCert:
		return o.runCreate(ctx)
	case config.ModeEdit:
		return o.runEdit(ctx, o.cfg.EditFile)
	case config.ModeReencrypt:
		return o.runReencrypt(ctx)
	case config.ModeFetch:
		return o.runFetch(ctx)
	case config.ModeBackup:
		return o.runBackup(ctx)
	}
	return errors.New(errors.TypeInvalidArguments, fmt.Sprintf("unknown mode %d", o.cfg.Mode))
}

// preflight rejects invalid mode combinations before anything touches the
// cluster, the network or the filesystem.
func (o *Orchestrator) preflight() error {
	if o.cfg.Detached() {
		if o.cfg.Mode.RequiresCluster() {
			return errors.New(errors.TypeDetachedModeUnsupported,
				fmt.Sprintf("--%s is not supported in detached mode (--cert)", o.cfg.Mode))
		}
		if o.cfg.SelectContext {
			return errors.New(errors.TypeDetachedModeUnsupported,
				"--select is not supported in detached mode (--cert)")
		}
		o.binaries = o.deps.Binaries(platform.Token{})
		return nil
	}

	token, err := o.deps.Platform()
	if err != nil {
		return err
	}
	o.log.Debugf("platform %s", token)
	o.binaries = o.deps.Binaries(token)
	return nil
}

const (
	actionCreate = "Create a new secret"
	actionEdit   = "Edit an existing secret file"
)

func (o *Orchestrator) runInteractive(ctx context.Context) error {
	i, err := o.deps.Prompter.Select("What do you want to do", []string{actionCreate, actionEdit})
	if err != nil {
		return err
	}
	if i == 0 {
		return o.runCreate(ctx)
	}
	path, err := o.deps.Prompter.Input("File to edit", "", o.existingFile)
	if err != nil {
		return err
	}
	return o.runEdit(ctx, o.resolvePath(path))
}
