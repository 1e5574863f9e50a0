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
	"fmt"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"

	"github.com/kube-zen/kubeseal-auto/pkg/cluster"
	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/manifest"
	"github.com/kube-zen/kubeseal-auto/pkg/secrets"
	"github.com/kube-zen/kubeseal-auto/pkg/validation"
)

// prepareSealing resolves the certificate and binary before any secret
// data is collected.
func (o *Orchestrator) prepareSealing(ctx context.Context) error {
	if _, err := o.certificate(ctx); err != nil {
		return err
	}
	_, err := o.sealer(ctx)
	return err
}

// runCreate asks for a new secret, seals it and writes <name>.yaml.
func (o *Orchestrator) runCreate(ctx context.Context) error {
	if err := o.prepareSealing(ctx); err != nil {
		return err
	}

	namespace, err := o.askNamespace(ctx)
	if err != nil {
		return err
	}
	types := secrets.Types()
	items := make([]string, len(types))
	for i, t := range types {
		items[i] = string(t)
	}
	i, err := o.deps.Prompter.Select("Secret type", items)
	if err != nil {
		return err
	}
	name, err := o.deps.Prompter.Input("Secret name", "", validation.ValidateSecretName)
	if err != nil {
		return err
	}

	meta := secrets.Meta{Name: name, Namespace: namespace}
	var secret *corev1.Secret
	switch types[i] {
	case secrets.TypeGeneric:
		values, err := o.collectEntries(nil)
		if err != nil {
			return err
		}
		secret, err = secrets.Generic(meta, values)
		if err != nil {
			return err
		}
	case secrets.TypeTLS:
		secret, err = secrets.TLS(meta, o.cfg.WorkDir)
		if err != nil {
			return err
		}
	case secrets.TypeDockerRegistry:
		reg, err := o.askRegistry()
		if err != nil {
			return err
		}
		secret, err = secrets.DockerRegistry(meta, reg)
		if err != nil {
			return err
		}
	}

	rendered, err := secrets.Render(secret)
	if err != nil {
		return err
	}
	sealed, err := o.seal(ctx, rendered)
	if err != nil {
		return err
	}

	out := filepath.Join(o.cfg.WorkDir, name+".yaml")
	if err := o.writeSealed(out, sealed); err != nil {
		return err
	}
	o.deps.UI.Successf("Sealed %s/%s written to %s", namespace, name, out)
	return nil
}

// writeSealed writes a freshly sealed manifest, marked so Argo CD can
// apply it before the SealedSecret CRD is known.
func (o *Orchestrator) writeSealed(path string, sealed []byte) error {
	doc, err := manifest.Parse(sealed)
	if err != nil {
		return errors.Wrap(err, errors.TypeSealCommandFailed, "kubeseal produced unreadable output")
	}
	if err := doc.PrependAnnotationOption(config.AnnotationArgoSyncOptions, config.ArgoSkipDryRun); err != nil {
		return err
	}
	return manifest.WriteFile(path, doc.Bytes(), 0o644)
}

func (o *Orchestrator) askNamespace(ctx context.Context) (string, error) {
	if o.cfg.Detached() {
		return o.deps.Prompter.Input("Namespace", o.defaultNamespace(), validation.ValidateNamespace)
	}
	session, err := o.connect(ctx)
	if err != nil {
		return "", err
	}
	namespaces, err := cluster.ListNamespaces(ctx, session.Client)
	if err != nil || len(namespaces) == 0 {
		o.log.WithError(err).Debug("namespace list unavailable")
		return o.deps.Prompter.Input("Namespace", o.defaultNamespace(), validation.ValidateNamespace)
	}
	items := preferFirst(namespaces, o.defaultNamespace())
	i, err := o.deps.Prompter.Select("Namespace", items)
	if err != nil {
		return "", err
	}
	return items[i], nil
}

func (o *Orchestrator) askRegistry() (secrets.Registry, error) {
	var reg secrets.Registry
	var err error
	if reg.Server, err = o.deps.Prompter.Input("Registry server", "", required("server")); err != nil {
		return reg, err
	}
	if reg.Username, err = o.deps.Prompter.Input("Username", "", required("username")); err != nil {
		return reg, err
	}
	if reg.Password, err = o.deps.Prompter.Secret("Password"); err != nil {
		return reg, err
	}
	return reg, nil
}

const (
	entryLiteral = "Add literal (key=value)"
	entryBulk    = "Add several literals"
	entryFile    = "Add from file"
	entryDone    = "Done"
)

// collectEntries asks for key/value entries until the user is done.
// existing keys are only used to tell the user what will be overwritten.
func (o *Orchestrator) collectEntries(existing map[string]string) (map[string]string, error) {
	values := make(map[string]string)
	add := func(k, v string) {
		if _, ok := existing[k]; ok {
			o.deps.UI.Infof("Key %s will be overwritten", k)
		}
		values[k] = v
	}

	for {
		items := []string{entryLiteral, entryBulk, entryFile}
		if len(values) > 0 {
			items = append(items, entryDone)
		}
		i, err := o.deps.Prompter.Select(fmt.Sprintf("Entries (%d)", len(values)), items)
		if err != nil {
			return nil, err
		}

		switch items[i] {
		case entryLiteral:
			literal, err := o.deps.Prompter.Input("Literal (key=value)", "", func(s string) error {
				_, _, err := validation.ParseLiteral(s)
				return err
			})
			if err != nil {
				return nil, err
			}
			k, v, _ := validation.ParseLiteral(literal)
			add(k, v)
		case entryBulk:
			lines, err := o.deps.Prompter.Lines("Literals, one key=value per line")
			if err != nil {
				return nil, err
			}
			for n, line := range lines {
				k, v, err := validation.ParseLiteral(line)
				if err != nil {
					o.deps.UI.Warnf("Skipping line %d: %v", n+1, err)
					continue
				}
				add(k, v)
			}
		case entryFile:
			path, err := o.deps.Prompter.Input("File", "", o.existingFile)
			if err != nil {
				return nil, err
			}
			path = o.resolvePath(path)
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound, "reading entry file"), path)
			}
			key := filepath.Base(path)
			if err := validation.ValidateDataKey(key); err != nil {
				o.deps.UI.Warnf("Skipping %s: %v", path, err)
				continue
			}
			add(key, string(content))
		case entryDone:
			return values, nil
		}
	}
}

func required(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

// existingFile validates a path relative to the working directory.
func (o *Orchestrator) existingFile(path string) error {
	if path == "" {
		return fmt.Errorf("a path is required")
	}
	info, err := os.Stat(o.resolvePath(path))
	if err != nil {
		return fmt.Errorf("%s does not exist", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func (o *Orchestrator) resolvePath(path string) string {
	if filepath.IsAbs(path) || o.cfg.WorkDir == "" {
		return path
	}
	return filepath.Join(o.cfg.WorkDir, path)
}
