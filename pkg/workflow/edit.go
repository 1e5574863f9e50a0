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
	"os"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/manifest"
	"github.com/kube-zen/kubeseal-auto/pkg/secrets"
)

// editTarget is what an edit works on. Sealing is one way, so existing
// values come from a plaintext Secret when one is available.
type editTarget struct {
	// sealed is the SealedSecret to update, nil when none exists yet.
	sealed     *manifest.Document
	sealedPath string
	// plain is the plaintext Secret, nil when only the sealed file exists.
	plain     *manifest.Document
	plainPath string
	staging   map[string]string
	// namespace is used when neither file names one; empty means ask.
	namespace string
}

// runEdit adds or overwrites keys of a SealedSecret or Secret file and
// reseals it. Metadata of the edited files is left untouched.
func (o *Orchestrator) runEdit(ctx context.Context, path string) error {
	target, err := o.loadEditTarget(path)
	if err != nil {
		return err
	}
	if err := o.prepareSealing(ctx); err != nil {
		return err
	}

	if len(target.staging) > 0 {
		o.deps.UI.Infof("Existing keys: %s", strings.Join(secrets.SortedKeys(target.staging), ", "))
	} else if target.sealed != nil {
		o.deps.UI.Warnf("No plaintext counterpart %s; new keys will be merged into the sealed data",
			manifest.PlainPathFor(path))
	}

	entries, err := o.collectEntries(target.staging)
	if err != nil {
		return err
	}
	for k, v := range entries {
		target.staging[k] = v
	}

	// Without plaintext only the new keys can be sealed; the rest stay as
	// they are in the SealedSecret.
	toSeal := target.staging
	if target.plain == nil {
		toSeal = entries
	}
	staging, err := o.stagingSecret(ctx, target, toSeal)
	if err != nil {
		return err
	}
	rendered, err := secrets.Render(staging)
	if err != nil {
		return err
	}
	sealedOut, err := o.seal(ctx, rendered)
	if err != nil {
		return err
	}
	fresh, err := manifest.Parse(sealedOut)
	if err != nil {
		return errors.Wrap(err, errors.TypeSealCommandFailed, "kubeseal produced unreadable output")
	}

	switch {
	case target.sealed == nil:
		if err := o.writeSealed(target.sealedPath, sealedOut); err != nil {
			return err
		}
	case target.plain == nil:
		if err := target.sealed.MergeEncryptedData(fresh.EncryptedData()); err != nil {
			return err
		}
		if err := target.sealed.Save(target.sealedPath); err != nil {
			return err
		}
	default:
		if err := target.sealed.ReplaceEncryptedData(fresh.EncryptedData()); err != nil {
			return err
		}
		if err := target.sealed.Save(target.sealedPath); err != nil {
			return err
		}
	}
	o.deps.UI.Successf("Resealed %s", target.sealedPath)

	if target.plain != nil {
		if err := target.plain.SetSecretValues(target.staging); err != nil {
			return err
		}
		if err := target.plain.Save(target.plainPath); err != nil {
			return err
		}
		o.deps.UI.Successf("Updated plaintext %s", target.plainPath)
	}
	return nil
}

func (o *Orchestrator) loadEditTarget(path string) (*editTarget, error) {
	doc, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}

	switch doc.Kind() {
	case manifest.KindSealedSecret:
		if err := doc.Validate(); err != nil {
			return nil, errors.WithFile(err, path)
		}
		target := &editTarget{sealed: doc, sealedPath: path, staging: map[string]string{}}
		plainPath := manifest.PlainPathFor(path)
		if _, err := os.Stat(plainPath); err == nil {
			plain, err := loadSecret(plainPath)
			if err != nil {
				return nil, err
			}
			values, err := plain.SecretValues()
			if err != nil {
				return nil, errors.WithFile(err, plainPath)
			}
			target.plain, target.plainPath, target.staging = plain, plainPath, values
		}
		return target, nil

	case manifest.KindSecret:
		if err := doc.Validate(); err != nil {
			return nil, errors.WithFile(err, path)
		}
		values, err := doc.SecretValues()
		if err != nil {
			return nil, errors.WithFile(err, path)
		}
		target := &editTarget{plain: doc, plainPath: path, staging: values, sealedPath: manifest.SealedPathFor(path)}
		if existing, err := manifest.Load(target.sealedPath); err == nil && existing.Kind() == manifest.KindSealedSecret {
			target.sealed = existing
		}
		return target, nil
	}
	return nil, errors.WithFile(errors.New(errors.TypeSecretParsing,
		"expected a Secret or SealedSecret, found kind "+doc.Kind()), path)
}

// stagingSecret builds the Secret handed to kubeseal. Name, namespace and
// sealing scope follow the SealedSecret when there is one.
func (o *Orchestrator) stagingSecret(ctx context.Context, target *editTarget, values map[string]string) (*corev1.Secret, error) {
	ref := target.plain
	if target.sealed != nil {
		ref = target.sealed
	}
	namespace := ref.Namespace()
	if namespace == "" && target.plain != nil {
		namespace = target.plain.Namespace()
	}
	if namespace == "" {
		namespace = target.namespace
	}
	if namespace == "" {
		var err error
		if namespace, err = o.askNamespace(ctx); err != nil {
			return nil, err
		}
	}

	secretType := corev1.SecretType(ref.SecretType())
	if target.plain != nil && target.plain.SecretType() != "" {
		secretType = corev1.SecretType(target.plain.SecretType())
	}
	meta := secrets.Meta{
		Name:        ref.Name(),
		Namespace:   namespace,
		Annotations: secrets.ScopeAnnotations(ref.Annotations()),
	}
	return secrets.New(meta, secretType, values)
}

func loadSecret(path string) (*manifest.Document, error) {
	doc, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if doc.Kind() != manifest.KindSecret {
		return nil, errors.WithFile(errors.New(errors.TypeSecretParsing,
			"plaintext counterpart must be a Secret, found kind "+doc.Kind()), path)
	}
	if err := doc.Validate(); err != nil {
		return nil, errors.WithFile(err, path)
	}
	return doc, nil
}
