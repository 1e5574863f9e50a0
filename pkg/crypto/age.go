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

package crypto

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// AgeEncryptor implements Encryptor using age X25519 keys.
type AgeEncryptor struct{}

// NewAgeEncryptor creates a new AgeEncryptor.
func NewAgeEncryptor() *AgeEncryptor {
	return &AgeEncryptor{}
}

// ParseRecipients parses age public keys.
func ParseRecipients(recipients []string) ([]age.Recipient, error) {
	if len(recipients) == 0 {
		return nil, errors.New(errors.TypeInvalidArguments, "at least one recipient (public key) is required")
	}
	parsed := make([]age.Recipient, 0, len(recipients))
	for _, r := range recipients {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(r))
		if err != nil {
			return nil, errors.Wrap(err, errors.TypeInvalidArguments, fmt.Sprintf("invalid recipient %q", r))
		}
		parsed = append(parsed, recipient)
	}
	return parsed, nil
}

// Encrypt implements Encryptor.
func (a *AgeEncryptor) Encrypt(plaintext []byte, recipients []string) ([]byte, error) {
	parsed, err := ParseRecipients(recipients)
	if err != nil {
		return nil, err
	}

	var encrypted bytes.Buffer
	w, err := age.Encrypt(&encrypted, parsed...)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypt writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("failed to write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close encrypt writer: %w", err)
	}
	return encrypted.Bytes(), nil
}

// Decrypt implements Encryptor.
func (a *AgeEncryptor) Decrypt(ciphertext []byte, identities string) ([]byte, error) {
	if strings.TrimSpace(identities) == "" {
		return nil, errors.New(errors.TypeInvalidArguments, "identity (private key) is required")
	}
	ids, err := age.ParseIdentities(strings.NewReader(identities))
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeInvalidArguments, "failed to parse identity")
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to create decrypt reader: %w", err)
	}
	decrypted, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted data: %w", err)
	}
	return decrypted, nil
}

// GenerateIdentity returns a new private key and its public key.
func GenerateIdentity() (identity, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate identity: %w", err)
	}
	return id.String(), id.Recipient().String(), nil
}
