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

// Package validation checks user input and manifest documents before they
// reach the seal utility.
package validation

import (
	"fmt"
	"strings"

	k8svalidation "k8s.io/apimachinery/pkg/util/validation"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// ValidateSecretName validates a Secret name as a DNS-1123 subdomain.
func ValidateSecretName(name string) error {
	if name == "" {
		return fmt.Errorf("secret name cannot be empty")
	}
	if msgs := k8svalidation.IsDNS1123Subdomain(name); len(msgs) > 0 {
		return fmt.Errorf("invalid secret name %q: %s", name, strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateNamespace validates a namespace name as a DNS-1123 label.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if msgs := k8svalidation.IsDNS1123Label(namespace); len(msgs) > 0 {
		return fmt.Errorf("invalid namespace %q: %s", namespace, strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateDataKey validates a Secret data key.
func ValidateDataKey(key string) error {
	if msgs := k8svalidation.IsConfigMapKey(key); len(msgs) > 0 {
		return fmt.Errorf("invalid key %q: %s", key, strings.Join(msgs, "; "))
	}
	return nil
}

// ParseLiteral splits a key=value literal. The value may contain '='.
func ParseLiteral(literal string) (string, string, error) {
	key, value, ok := strings.Cut(literal, "=")
	if !ok {
		return "", "", errors.New(errors.TypeInvalidArguments,
			fmt.Sprintf("literal %q must be in key=value form", literal))
	}
	key = strings.TrimSpace(key)
	if err := ValidateDataKey(key); err != nil {
		return "", "", errors.Wrap(err, errors.TypeInvalidArguments, "invalid literal")
	}
	return key, value, nil
}
