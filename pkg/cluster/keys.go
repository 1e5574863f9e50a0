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
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/kube-zen/kubeseal-auto/pkg/common"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// LatestSealingKey returns the newest active sealing key secret in namespace.
// Secrets labelled as active sealing keys are preferred; clusters that predate
// the label are matched by TLS type and a sealed-secrets name.
func LatestSealingKey(ctx context.Context, client kubernetes.Interface, namespace string) (*corev1.Secret, error) {
	selector := common.LabelSealingKey + "=" + common.SealingKeyActive
	keys, err := listSecrets(ctx, client, namespace, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		all, err := listSecrets(ctx, client, namespace, metav1.ListOptions{})
		if err != nil {
			return nil, err
		}
		for _, s := range all {
			if s.Type == corev1.SecretTypeTLS && strings.Contains(s.Name, common.ControllerNameSubstring) {
				keys = append(keys, s)
			}
		}
	}

	if len(keys) == 0 {
		return nil, errors.WithCluster(
			errors.New(errors.TypeSealingKeyNotFound, "no active sealing key found"), "", namespace)
	}

	sort.Slice(keys, func(i, j int) bool {
		ti, tj := keys[i].CreationTimestamp, keys[j].CreationTimestamp
		if !ti.Equal(&tj) {
			return tj.Before(&ti)
		}
		return keys[i].Name < keys[j].Name
	})
	latest := keys[0]
	return &latest, nil
}

// Certificate returns the PEM public certificate held in a sealing key secret.
func Certificate(secret *corev1.Secret) ([]byte, error) {
	cert := secret.Data[corev1.TLSCertKey]
	if len(cert) == 0 {
		return nil, errors.New(errors.TypeSealingKeyNotFound, "sealing key "+secret.Name+" has no "+corev1.TLSCertKey)
	}
	return cert, nil
}

func listSecrets(ctx context.Context, client kubernetes.Interface, namespace string, opts metav1.ListOptions) ([]corev1.Secret, error) {
	secrets, err := common.RetryWithResult(ctx, common.DefaultRetryConfig(), func() ([]corev1.Secret, error) {
		list, err := client.CoreV1().Secrets(namespace).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	})
	if err != nil {
		return nil, errors.WithCluster(errors.Wrap(err, errors.TypeClusterConnection, "listing secrets"), "", namespace)
	}
	return secrets, nil
}
