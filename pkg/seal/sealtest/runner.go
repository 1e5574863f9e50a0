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

// Package sealtest provides an in-process stand-in for the kubeseal binary.
package sealtest

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// Certificate is the PEM returned for --fetch-cert.
const Certificate = "-----BEGIN CERTIFICATE-----\nMIIFAKE\n-----END CERTIFICATE-----\n"

const sealedPrefix = "sealed:"

// Call is one recorded invocation.
type Call struct {
	Binary string
	Args   []string
	Stdin  []byte
	// Cert is the content of the --cert file at call time.
	Cert string
}

// Runner implements seal.Runner. Sealing encodes each value reversibly so
// tests can inspect what was sealed; see Unseal.
type Runner struct {
	mu    sync.Mutex
	Calls []Call
	// Fail makes every invocation fail with this stderr.
	Fail string
	// FailFetch makes only --fetch-cert fail.
	FailFetch bool
}

// Run implements seal.Runner.
func (r *Runner) Run(_ context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	call := Call{Binary: binary, Args: append([]string(nil), args...), Stdin: stdin}
	if path, ok := argValue(args, "--cert"); ok {
		if content, err := os.ReadFile(path); err == nil {
			call.Cert = string(content)
		}
	}
	r.mu.Lock()
	r.Calls = append(r.Calls, call)
	r.mu.Unlock()

	if r.Fail != "" {
		return nil, errors.SealFailed(fmt.Errorf("exit status 1"), r.Fail)
	}
	if hasArg(args, "--fetch-cert") {
		if r.FailFetch {
			return nil, errors.SealFailed(fmt.Errorf("exit status 1"), "error: cannot fetch certificate")
		}
		return []byte(Certificate), nil
	}

	certPath, ok := argValue(args, "--cert")
	if !ok {
		return nil, errors.SealFailed(fmt.Errorf("exit status 1"), "error: no certificate given")
	}
	if _, err := os.Stat(certPath); err != nil {
		return nil, errors.SealFailed(err, "error: cannot read certificate")
	}
	return seal(stdin)
}

// Seals returns the Secrets passed to sealing calls, in order.
func (r *Runner) Seals() []corev1.Secret {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []corev1.Secret
	for _, c := range r.Calls {
		if hasArg(c.Args, "--fetch-cert") {
			continue
		}
		var s corev1.Secret
		if err := yaml.Unmarshal(c.Stdin, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// Unseal reverses the fake sealing of a value.
func Unseal(encrypted string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil || !strings.HasPrefix(string(raw), sealedPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(raw), sealedPrefix), true
}

// SealValue is the fake sealing of a value.
func SealValue(value string) string {
	return base64.StdEncoding.EncodeToString([]byte(sealedPrefix + value))
}

func seal(stdin []byte) ([]byte, error) {
	var secret corev1.Secret
	if err := yaml.Unmarshal(stdin, &secret); err != nil {
		return nil, errors.SealFailed(err, "error: cannot decode input")
	}
	encrypted := make(map[string]interface{}, len(secret.Data)+len(secret.StringData))
	for k, v := range secret.Data {
		encrypted[k] = SealValue(string(v))
	}
	for k, v := range secret.StringData {
		encrypted[k] = SealValue(v)
	}
	meta := map[string]interface{}{"name": secret.Name, "namespace": secret.Namespace}
	if len(secret.Annotations) > 0 {
		meta["annotations"] = secret.Annotations
	}
	doc := map[string]interface{}{
		"apiVersion": "bitnami.com/v1alpha1",
		"kind":       "SealedSecret",
		"metadata":   meta,
		"spec": map[string]interface{}{
			"encryptedData": encrypted,
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{"name": secret.Name, "namespace": secret.Namespace},
				"type":     string(secret.Type),
			},
		},
	}
	return yaml.Marshal(doc)
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func argValue(args []string, flag string) (string, bool) {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, flag+"="); ok {
			return v, true
		}
	}
	return "", false
}
