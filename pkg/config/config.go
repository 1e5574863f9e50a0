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

// Package config holds kubeseal-auto defaults, environment overrides and the
// per-run configuration value.
package config

import "time"

// Upstream release locations.
const (
	// DefaultReleaseBaseURL is where versioned kubeseal artifacts are published.
	DefaultReleaseBaseURL = "https://github.com/bitnami-labs/sealed-secrets/releases/download"

	// DefaultReleaseIndexURL lists published releases.
	DefaultReleaseIndexURL = "https://api.github.com/repos/bitnami-labs/sealed-secrets/releases?per_page=100"

	// BinaryName is the seal utility's executable name, on PATH and inside release archives.
	BinaryName = "kubeseal"
)

// Timeouts and retry defaults.
const (
	// DefaultHTTPTimeout bounds each request to the release index and artifact host.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultHTTPRetryMax is the number of retries for transient HTTP failures.
	DefaultHTTPRetryMax = 3

	// DefaultAPITimeout bounds each Kubernetes API request.
	DefaultAPITimeout = 15 * time.Second

	// DefaultRetryMaxAttempts is the default maximum number of API read attempts
	DefaultRetryMaxAttempts = 3

	// DefaultRetryInitialDelay is the default initial delay between retries
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retries
	DefaultRetryMaxDelay = 2 * time.Second
)

// Controller defaults, used when discovery finds nothing.
const (
	DefaultControllerNamespace = "kube-system"
	DefaultControllerName      = "sealed-secrets-controller"
)

// File naming.
const (
	// CacheSubdir is appended to the XDG data directory.
	CacheSubdir = "kubeseal-auto/bin"

	// CertFileSuffix follows the context name in fetched certificate files.
	CertFileSuffix = "-kubeseal-cert.crt"

	// BackupFileSuffix follows the context name in key backup files.
	BackupFileSuffix = "-secret-backup.yaml"

	// EncryptedBackupExt is appended to age-encrypted backups.
	EncryptedBackupExt = ".age"

	// PlainMarker sits before the extension of plaintext counterpart files.
	PlainMarker = ".plain"

	// SealedMarker sits before the extension of outputs sealed from a Secret
	// that does not follow the counterpart naming.
	SealedMarker = ".sealed"
)

// Annotation keys
const (
	// AnnotationArgoSyncOptions is the Argo CD sync options annotation.
	AnnotationArgoSyncOptions = "argocd.argoproj.io/sync-options"

	// ArgoSkipDryRun lets Argo CD apply a SealedSecret before its CRD exists.
	ArgoSkipDryRun = "SkipDryRunOnMissingResource=true"
)
