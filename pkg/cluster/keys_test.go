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

package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kube-zen/kubeseal-auto/pkg/common"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

func keySecret(name string, created time.Time, labels map[string]string, cert string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         "kube-system",
			Labels:            labels,
			CreationTimestamp: metav1.NewTime(created),
		},
		Type: corev1.SecretTypeTLS,
		Data: map[string][]byte{
			corev1.TLSCertKey:       []byte(cert),
			corev1.TLSPrivateKeyKey: []byte("key"),
		},
	}
}

func activeLabel() map[string]string {
	return map[string]string{common.LabelSealingKey: common.SealingKeyActive}
}

func TestLatestSealingKey_NewestActive(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	client := fake.NewSimpleClientset(
		keySecret("sealed-secrets-keyold", base, activeLabel(), "old"),
		keySecret("sealed-secrets-keynew", base.Add(time.Hour), activeLabel(), "new"),
		keySecret("sealed-secrets-unlabelled", base.Add(2*time.Hour), nil, "unlabelled"),
	)

	secret, err := LatestSealingKey(context.Background(), client, "kube-system")
	require.NoError(t, err)
	assert.Equal(t, "sealed-secrets-keynew", secret.Name)

	cert, err := Certificate(secret)
	require.NoError(t, err)
	assert.Equal(t, "new", string(cert))
}

func TestLatestSealingKey_FallbackByTypeAndName(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	other := keySecret("ingress-tls", base.Add(time.Hour), nil, "ingress")
	client := fake.NewSimpleClientset(
		keySecret("sealed-secrets-key", base, nil, "legacy"),
		other,
	)

	secret, err := LatestSealingKey(context.Background(), client, "kube-system")
	require.NoError(t, err)
	assert.Equal(t, "sealed-secrets-key", secret.Name)
}

func TestLatestSealingKey_NotFound(t *testing.T) {
	client := fake.NewSimpleClientset()

	_, err := LatestSealingKey(context.Background(), client, "kube-system")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeSealingKeyNotFound))
}

func TestCertificate_Missing(t *testing.T) {
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "empty"}}
	_, err := Certificate(secret)
	require.Error(t, err)
}

func TestListNamespaces_Sorted(t *testing.T) {
	client := fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "apps"}},
	)

	names, err := ListNamespaces(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, []string{"apps", "kube-system"}, names)
}
