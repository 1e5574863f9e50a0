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

package config

import (
	"path/filepath"
	"strings"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// ExecutionMode is the primary operation of a run. Context selection
// (--select) composes with every mode and is carried separately.
type ExecutionMode int

const (
	// ModeInteractive asks whether to create a new secret or edit one.
	ModeInteractive ExecutionMode = iota
	// ModeFetch writes the controller certificate to the working directory.
	ModeFetch
	// ModeCert creates a new secret sealed with a local certificate, offline.
	ModeCert
	// ModeEdit adds or changes keys of an existing manifest.
	ModeEdit
	// ModeReencrypt reseals every SealedSecret in a directory.
	ModeReencrypt
	// ModeBackup writes the controller's sealing key Secret to a file.
	ModeBackup
)

var modeNames = map[ExecutionMode]string{
	ModeInteractive: "interactive",
	ModeFetch:       "fetch",
	ModeCert:        "cert",
	ModeEdit:        "edit",
	ModeReencrypt:   "reencrypt",
	ModeBackup:      "backup",
}

func (m ExecutionMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// RequiresCluster reports whether the mode cannot run in detached mode.
func (m ExecutionMode) RequiresCluster() bool {
	switch m {
	case ModeFetch, ModeReencrypt, ModeBackup:
		return true
	}
	return false
}

// Flags are the raw command-line inputs that select a mode.
type Flags struct {
	Select              bool
	Fetch               bool
	Backup              bool
	Cert                string
	Edit                string
	Reencrypt           string
	Kubeconfig          string
	Context             string
	ControllerNamespace string
	BackupRecipients    []string
	MetricsFile         string
	Debug               bool
}

// RunConfig is built once at startup and passed to every component.
type RunConfig struct {
	Mode                ExecutionMode
	SelectContext       bool
	CertPath            string
	EditFile            string
	ReencryptDir        string
	Kubeconfig          string
	Context             string
	ControllerNamespace string
	BackupRecipients    []string
	MetricsFile         string
	Debug               bool
	WorkDir             string
	Settings            Settings
}

// Detached reports whether the run must not touch the cluster.
func (c RunConfig) Detached() bool {
	return c.CertPath != ""
}

// NewRunConfig resolves the execution mode from flags. At most one primary
// mode flag may be given; --cert alone selects ModeCert.
func NewRunConfig(f Flags, settings Settings, workDir string) (RunConfig, error) {
	cfg := RunConfig{
		Mode:                ModeInteractive,
		SelectContext:       f.Select,
		CertPath:            strings.TrimSpace(f.Cert),
		Kubeconfig:          f.Kubeconfig,
		Context:             f.Context,
		ControllerNamespace: f.ControllerNamespace,
		BackupRecipients:    f.BackupRecipients,
		MetricsFile:         f.MetricsFile,
		Debug:               f.Debug,
		WorkDir:             workDir,
		Settings:            settings,
	}

	var primary []string
	if f.Fetch {
		primary = append(primary, "--fetch")
		cfg.Mode = ModeFetch
	}
	if f.Backup {
		primary = append(primary, "--backup")
		cfg.Mode = ModeBackup
	}
	if f.Reencrypt != "" {
		primary = append(primary, "--reencrypt")
		cfg.Mode = ModeReencrypt
		cfg.ReencryptDir = filepath.Clean(f.Reencrypt)
	}
	if f.Edit != "" {
		primary = append(primary, "--edit")
		cfg.Mode = ModeEdit
		cfg.EditFile = filepath.Clean(f.Edit)
	}
	if len(primary) > 1 {
		return RunConfig{}, errors.New(errors.TypeInvalidArguments,
			"only one of "+strings.Join(primary, ", ")+" may be given")
	}
	if len(primary) == 0 && cfg.Detached() {
		cfg.Mode = ModeCert
	}
	if len(f.BackupRecipients) > 0 && cfg.Mode != ModeBackup {
		return RunConfig{}, errors.New(errors.TypeInvalidArguments, "--backup-recipient requires --backup")
	}
	return cfg, nil
}
