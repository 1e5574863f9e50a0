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

package validation

import (
	"strings"
	"testing"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

func TestValidateSecretName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "db-credentials", false},
		{"dotted", "api.example.com", false},
		{"empty", "", true},
		{"uppercase", "DbCredentials", true},
		{"underscore", "db_credentials", true},
		{"leading dash", "-db", true},
		{"too long", strings.Repeat("a", 254), true},
		{"max length", strings.Repeat("a", 253), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecretName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSecretName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNamespace(t *testing.T) {
	if err := ValidateNamespace("kube-system"); err != nil {
		t.Errorf("kube-system should be valid: %v", err)
	}
	if err := ValidateNamespace("a.b"); err == nil {
		t.Error("dots are not allowed in namespaces")
	}
	if err := ValidateNamespace(""); err == nil {
		t.Error("empty namespace should be rejected")
	}
}

func TestValidateDataKey(t *testing.T) {
	for _, key := range []string{"password", "tls.crt", ".dockerconfigjson", "DB_URL", "a-b"} {
		if err := ValidateDataKey(key); err != nil {
			t.Errorf("ValidateDataKey(%q) unexpected error: %v", key, err)
		}
	}
	for _, key := range []string{"", "a/b", "with space", ".."} {
		if err := ValidateDataKey(key); err == nil {
			t.Errorf("ValidateDataKey(%q) expected error", key)
		}
	}
}

func TestParseLiteral(t *testing.T) {
	key, value, err := ParseLiteral("DATABASE_URL=postgres://u:p@h/db?sslmode=require")
	if err != nil {
		t.Fatalf("ParseLiteral() error = %v", err)
	}
	if key != "DATABASE_URL" || value != "postgres://u:p@h/db?sslmode=require" {
		t.Errorf("ParseLiteral() = %q, %q", key, value)
	}

	key, value, err = ParseLiteral(" token =")
	if err != nil || key != "token" || value != "" {
		t.Errorf("ParseLiteral(\" token =\") = %q, %q, %v", key, value, err)
	}

	if _, _, err := ParseLiteral("no-separator"); !errors.IsType(err, errors.TypeInvalidArguments) {
		t.Errorf("expected invalid_arguments, got %v", err)
	}
	if _, _, err := ParseLiteral("bad key=1"); err == nil {
		t.Error("expected invalid key error")
	}
}

func sealedDoc() map[string]interface{} {
	return map[string]interface{}{
		"apiVersion": "bitnami.com/v1alpha1",
		"kind":       "SealedSecret",
		"metadata": map[string]interface{}{
			"name":      "db",
			"namespace": "apps",
		},
		"spec": map[string]interface{}{
			"encryptedData": map[string]interface{}{
				"password": "AgBy3i4OJSWK+PiTySYZZA==",
			},
		},
	}
}

func TestValidateManifest_SealedSecret(t *testing.T) {
	if err := ValidateManifest("SealedSecret", sealedDoc()); err != nil {
		t.Errorf("valid SealedSecret rejected: %v", err)
	}

	noSpec := sealedDoc()
	delete(noSpec, "spec")
	if err := ValidateManifest("SealedSecret", noSpec); !errors.IsType(err, errors.TypeSecretParsing) {
		t.Errorf("missing spec should be a secret_parsing error, got %v", err)
	}

	badValue := sealedDoc()
	badValue["spec"].(map[string]interface{})["encryptedData"] = map[string]interface{}{"password": 42}
	if err := ValidateManifest("SealedSecret", badValue); err == nil {
		t.Error("non-string encrypted value should be rejected")
	}

	noName := sealedDoc()
	noName["metadata"] = map[string]interface{}{"namespace": "apps"}
	if err := ValidateManifest("SealedSecret", noName); err == nil {
		t.Error("missing name should be rejected")
	}
}

func TestValidateManifest_Secret(t *testing.T) {
	doc := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Secret",
		"metadata":   map[string]interface{}{"name": "db", "namespace": "apps"},
		"stringData": map[string]interface{}{"a": "1"},
	}
	if err := ValidateManifest("Secret", doc); err != nil {
		t.Errorf("valid Secret rejected: %v", err)
	}

	doc["apiVersion"] = "v2"
	if err := ValidateManifest("Secret", doc); err == nil {
		t.Error("wrong apiVersion should be rejected")
	}
}

func TestValidateManifest_UnsupportedKind(t *testing.T) {
	if err := ValidateManifest("ConfigMap", map[string]interface{}{}); err == nil {
		t.Error("ConfigMap should not be supported")
	}
}
