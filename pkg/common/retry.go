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

package common

import (
	"context"
	"fmt"
	"math"
	"time"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/kube-zen/kubeseal-auto/pkg/config"
)

// RetryConfig configures retry behavior for Kubernetes API reads.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (default: 3)
	MaxAttempts int
	// InitialDelay is the delay before the second attempt (default: 100ms)
	InitialDelay time.Duration
	// MaxDelay caps the backoff between attempts (default: 2s)
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier (default: 2.0)
	Multiplier float64
	// RetryableErrors reports whether an error is worth another attempt
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns the retry configuration used for cluster reads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     config.DefaultRetryMaxAttempts,
		InitialDelay:    config.DefaultRetryInitialDelay,
		MaxDelay:        config.DefaultRetryMaxDelay,
		Multiplier:      2.0,
		RetryableErrors: IsTransient,
	}
}

// IsTransient reports whether a Kubernetes API error is transient.
// Permission and not-found errors are never transient.
func IsTransient(err error) bool {
	switch {
	case k8serrors.IsServerTimeout(err), k8serrors.IsTimeout(err):
		return true
	case k8serrors.IsTooManyRequests(err):
		return true
	case k8serrors.IsInternalError(err), k8serrors.IsServiceUnavailable(err):
		return true
	}
	return false
}

// IsPermissionDenied reports whether an API error is an RBAC or authentication denial.
func IsPermissionDenied(err error) bool {
	return k8serrors.IsForbidden(err) || k8serrors.IsUnauthorized(err)
}

func (c RetryConfig) withDefaults() RetryConfig {
	defaults := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = defaults.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaults.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = defaults.Multiplier
	}
	if c.RetryableErrors == nil {
		c.RetryableErrors = defaults.RetryableErrors
	}
	return c
}

// Retry executes fn with exponential backoff.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes fn with exponential backoff and returns its result.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryableErrors(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		backoff := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		if backoff > cfg.MaxDelay {
			backoff = cfg.MaxDelay
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}
