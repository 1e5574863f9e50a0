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

// Package errors provides typed, context-carrying errors for kubeseal-auto.
// It builds on zen-sdk/pkg/errors and adds the mapping from error types to
// process exit codes.
package errors

import (
	"errors"

	sdkerrors "github.com/kube-zen/zen-sdk/pkg/errors"
)

// Error is an alias for zen-sdk's ContextError.
type Error = sdkerrors.ContextError

// Error types.
const (
	TypeUnsupportedPlatform     = "unsupported_platform"
	TypeUpstreamUnavailable     = "upstream_unavailable"
	TypeAssetNotFound           = "asset_not_found"
	TypeBinaryNotOnPath         = "binary_not_on_path"
	TypeBinaryUnresolvable      = "binary_unresolvable"
	TypeSealCommandFailed       = "seal_command_failed"
	TypeDetachedModeUnsupported = "detached_mode_unsupported"
	TypeInvalidArguments        = "invalid_arguments"
	TypeSecretParsing           = "secret_parsing"
	TypeFileNotFound            = "file_not_found"
	TypeFileWrite               = "file_write"
	TypeClusterConnection       = "cluster_connection"
	TypeSealingKeyNotFound      = "sealing_key_not_found"
	TypeBatchPartialFailure     = "batch_partial_failure"
)

// Exit codes.
const (
	ExitOK                  = 0
	ExitGeneric             = 1
	ExitUnsupportedPlatform = 2
	ExitInvalidArguments    = 3
	ExitBinaryUnresolvable  = 4
	ExitSealFailed          = 5
	ExitPartialFailure      = 6
	ExitClusterConnection   = 7
)

var exitCodes = map[string]int{
	TypeUnsupportedPlatform:     ExitUnsupportedPlatform,
	TypeDetachedModeUnsupported: ExitInvalidArguments,
	TypeInvalidArguments:        ExitInvalidArguments,
	TypeBinaryNotOnPath:         ExitBinaryUnresolvable,
	TypeBinaryUnresolvable:      ExitBinaryUnresolvable,
	TypeSealCommandFailed:       ExitSealFailed,
	TypeBatchPartialFailure:     ExitPartialFailure,
	TypeClusterConnection:       ExitClusterConnection,
}

// New creates a new typed error.
func New(errType, message string) *Error {
	return sdkerrors.New(errType, message)
}

// Wrap wraps an error with a message and type.
func Wrap(err error, errType, message string) *Error {
	return sdkerrors.Wrap(err, errType, message)
}

// Wrapf wraps an error with a formatted message and type.
func Wrapf(err error, errType, format string, args ...interface{}) *Error {
	return sdkerrors.Wrapf(err, errType, format, args...)
}

// WithFile adds the file being processed to an error.
func WithFile(err error, path string) *Error {
	return sdkerrors.WithMultipleContext(err, map[string]string{
		"file": path,
	})
}

// WithCluster adds kubeconfig context and namespace to an error.
func WithCluster(err error, context, namespace string) *Error {
	return sdkerrors.WithMultipleContext(err, map[string]string{
		"context":   context,
		"namespace": namespace,
	})
}

// WithVersion adds a kubeseal version to an error.
func WithVersion(err error, version string) *Error {
	return sdkerrors.WithMultipleContext(err, map[string]string{
		"version": version,
	})
}

// IsType reports whether any typed error in err's chain has the given type.
func IsType(err error, errType string) bool {
	for err != nil {
		var typed *Error
		if !errors.As(err, &typed) || typed == nil {
			return false
		}
		if typed.Type == errType {
			return true
		}
		err = typed.Unwrap()
	}
	return false
}

// ExitCode maps an error to a process exit code. The outermost typed error
// with a dedicated code wins; everything else is a generic failure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for err != nil {
		var typed *Error
		if !errors.As(err, &typed) || typed == nil {
			break
		}
		if code, ok := exitCodes[typed.Type]; ok {
			return code
		}
		err = typed.Unwrap()
	}
	return ExitGeneric
}

// Stderr returns the captured standard error attached to a seal failure.
func Stderr(err error) string {
	for err != nil {
		var typed *Error
		if !errors.As(err, &typed) || typed == nil {
			return ""
		}
		if stderr := typed.GetContext("stderr"); stderr != "" {
			return stderr
		}
		err = typed.Unwrap()
	}
	return ""
}

// SealFailed builds a SealCommandFailed error carrying the tool's stderr.
func SealFailed(err error, stderr string) *Error {
	wrapped := Wrap(err, TypeSealCommandFailed, "kubeseal failed")
	if stderr != "" {
		wrapped = sdkerrors.WithMultipleContext(wrapped, map[string]string{"stderr": stderr})
	}
	return wrapped
}
