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

package workflow

import (
	"context"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kube-zen/kubeseal-auto/pkg/cluster"
	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/manifest"
	"github.com/kube-zen/kubeseal-auto/pkg/secrets"
)

// runFetch writes the controller certificate to <context>-kubeseal-cert.crt.
func (o *Orchestrator) runFetch(ctx context.Context) error {
	session, err := o.connect(ctx)
	if err != nil {
		return err
	}
	pem, err := o.fetchCertificate(ctx)
	if err != nil {
		return err
	}
	path := filepath.Join(o.cfg.WorkDir, fileSafe(session.Context)+config.CertFileSuffix)
	if err := manifest.WriteFile(path, pem, 0o644); err != nil {
		return err
	}
	o.deps.UI.Successf("Certificate written to %s", path)
	return nil
}

// runBackup writes the newest sealing key Secret to
// <context>-secret-backup.yaml, age-encrypted when recipients are given.
func (o *Orchestrator) runBackup(ctx context.Context) error {
	session, err := o.connect(ctx)
	if err != nil {
		return err
	}
	ref, err := o.controller(ctx)
	if err != nil {
		return err
	}
	key, err := cluster.LatestSealingKey(ctx, session.Client, ref.Namespace)
	if err != nil {
		return err
	}

	rendered, err := secrets.Render(backupCopy(key))
	if err != nil {
		return err
	}

	path := filepath.Join(o.cfg.WorkDir, fileSafe(session.Context)+config.BackupFileSuffix)
	data := rendered
	if len(o.cfg.BackupRecipients) > 0 {
		if data, err = o.deps.Encryptor.Encrypt(rendered, o.cfg.BackupRecipients); err != nil {
			return err
		}
		path += config.EncryptedBackupExt
	}
	if err := manifest.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	o.deps.UI.Successf("Sealing key %s/%s backed up to %s", key.Namespace, key.Name, path)
	if len(o.cfg.BackupRecipients) == 0 {
		o.deps.UI.Warnf("The backup holds the controller's private key in plain text; keep it out of version control")
	}
	return nil
}

// backupCopy keeps only what is needed to restore the key into a cluster.
func backupCopy(key *corev1.Secret) *corev1.Secret {
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        key.Name,
			Namespace:   key.Namespace,
			Labels:      key.Labels,
			Annotations: withoutLastApplied(key.Annotations),
		},
		Type: key.Type,
		Data: key.Data,
	}
}

func withoutLastApplied(annotations map[string]string) map[string]string {
	if len(annotations) == 0 {
		return nil
	}
	out := make(map[string]string, len(annotations))
	for k, v := range annotations {
		if k == corev1.LastAppliedConfigAnnotation {
			continue
		}
		out[k] = v
	}
	return out
}

// fileSafe turns a kubeconfig context name into a file name component.
func fileSafe(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
}
