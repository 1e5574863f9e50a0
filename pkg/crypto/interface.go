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

// Package crypto encrypts sealing key backups with age.
package crypto

// Encryptor encrypts and decrypts whole files.
type Encryptor interface {
	// Encrypt encrypts plaintext to every recipient (public key).
	Encrypt(plaintext []byte, recipients []string) ([]byte, error)

	// Decrypt decrypts ciphertext with any identity found in identities,
	// the contents of an age identity file.
	Decrypt(ciphertext []byte, identities string) ([]byte, error)
}
