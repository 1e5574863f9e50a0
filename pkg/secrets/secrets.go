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

// Package secrets builds the plaintext Secret manifests that are handed to
// kubeseal.
package secrets

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/validation"
)

// Type is a secret flavour offered when creating a new secret.
type Type string

const (
	TypeGeneric        Type = "generic"
	TypeTLS            Type = "tls"
	TypeDockerRegistry Type = "docker-registry"
)

// Types lists the creatable secret types in menu order.
func Types() []Type {
	return []Type{TypeGeneric, TypeTLS, TypeDockerRegistry}
}

// Sealing scope annotations understood by kubeseal.
const (
	AnnotationClusterWide   = "sealedsecrets.bitnami.com/cluster-wide"
	AnnotationNamespaceWide = "sealedsecrets.bitnami.com/namespace-wide"
)

// Meta identifies a Secret.
type Meta struct {
	Name        string
	Namespace   string
	Annotations map[string]string
}

// Validate checks the name and namespace.
func (m Meta) Validate() error {
	if err := validation.ValidateSecretName(m.Name); err != nil {
		return errors.Wrap(err, errors.TypeInvalidArguments, "invalid secret")
	}
	if err := validation.ValidateNamespace(m.Namespace); err != nil {
		return errors.Wrap(err, errors.TypeInvalidArguments, "invalid secret")
	}
	return nil
}

// New builds a Secret of the given type holding values.
func New(meta Meta, secretType corev1.SecretType, values map[string]string) (*corev1.Secret, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if secretType == "" {
		secretType = corev1.SecretTypeOpaque
	}
	data := make(map[string][]byte, len(values))
	for k, v := range values {
		if err := validation.ValidateDataKey(k); err != nil {
			return nil, errors.Wrap(err, errors.TypeInvalidArguments, "invalid secret")
		}
		data[k] = []byte(v)
	}
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        meta.Name,
			Namespace:   meta.Namespace,
			Annotations: meta.Annotations,
		},
		Type: secretType,
		Data: data,
	}, nil
}

// Generic builds an Opaque Secret. At least one entry is required.
func Generic(meta Meta, values map[string]string) (*corev1.Secret, error) {
	if len(values) == 0 {
		return nil, errors.New(errors.TypeInvalidArguments, "a generic secret needs at least one entry")
	}
	return New(meta, corev1.SecretTypeOpaque, values)
}

// TLS builds a kubernetes.io/tls Secret from tls.crt and tls.key in dir.
func TLS(meta Meta, dir string) (*corev1.Secret, error) {
	values := make(map[string]string, 2)
	var missing []string
	for _, name := range []string{corev1.TLSCertKey, corev1.TLSPrivateKeyKey} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, name)
				continue
			}
			return nil, errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound, "reading TLS material"), name)
		}
		values[name] = string(content)
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.TypeFileNotFound,
			fmt.Sprintf("missing %s in %s", strings.Join(missing, " and "), dir))
	}
	return New(meta, corev1.SecretTypeTLS, values)
}

// Registry holds docker-registry credentials.
type Registry struct {
	Server   string
	Username string
	Password string
	Email    string
}

type dockerConfigEntry struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Auth     string `json:"auth"`
}

type dockerConfigJSON struct {
	Auths map[string]dockerConfigEntry `json:"auths"`
}

// DockerRegistry builds a kubernetes.io/dockerconfigjson Secret.
func DockerRegistry(meta Meta, reg Registry) (*corev1.Secret, error) {
	if reg.Server == "" || reg.Username == "" || reg.Password == "" {
		return nil, errors.New(errors.TypeInvalidArguments, "docker-registry secrets need server, username and password")
	}
	cfg := dockerConfigJSON{Auths: map[string]dockerConfigEntry{
		reg.Server: {
			Username: reg.Username,
			Password: reg.Password,
			Email:    reg.Email,
			Auth:     base64.StdEncoding.EncodeToString([]byte(reg.Username + ":" + reg.Password)),
		},
	}}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeSecretParsing, "encoding docker config")
	}
	return New(meta, corev1.SecretTypeDockerConfigJson, map[string]string{
		corev1.DockerConfigJsonKey: string(raw),
	})
}

// Render encodes a Secret as YAML.
func Render(secret *corev1.Secret) ([]byte, error) {
	out, err := yaml.Marshal(secret)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeSecretParsing, "rendering secret")
	}
	return out, nil
}

// ScopeAnnotations keeps only the annotations that select a sealing scope,
// so a resealed Secret keeps the scope of the SealedSecret it replaces.
func ScopeAnnotations(annotations map[string]string) map[string]string {
	var out map[string]string
	for _, key := range []string{AnnotationClusterWide, AnnotationNamespaceWide} {
		if v, ok := annotations[key]; ok {
			if out == nil {
				out = make(map[string]string)
			}
			out[key] = v
		}
	}
	return out
}

// SortedKeys returns the keys of values in order.
func SortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
