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

	"github.com/Masterminds/semver/v3"

	"github.com/kube-zen/kubeseal-auto/pkg/cache"
	"github.com/kube-zen/kubeseal-auto/pkg/cluster"
	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/seal"
)

// controllerRef is where kubeseal reaches the controller. Version is nil
// unless discovery determined it.
type controllerRef struct {
	Namespace string
	Name      string
	Version   *semver.Version
}

// runState is resolved lazily, at most once per run.
type runState struct {
	session    *cluster.Session
	controller *controllerRef
	sealer     *seal.Sealer
	certPath   string
	tempFiles  []string
}

func (s *runState) close() {
	for _, f := range s.tempFiles {
		os.Remove(f)
	}
	s.tempFiles = nil
}

// connect opens the cluster session, asking for context and namespace
// first when --select is set.
func (o *Orchestrator) connect(ctx context.Context) (*cluster.Session, error) {
	if o.state.session != nil {
		return o.state.session, nil
	}
	if o.cfg.Detached() {
		return nil, errors.New(errors.TypeDetachedModeUnsupported, "cluster access is not available in detached mode")
	}

	contextName := o.cfg.Context
	if o.cfg.SelectContext {
		names, current, err := o.deps.Connector.Contexts()
		if err != nil {
			return nil, err
		}
		if contextName == "" {
			contextName = current
		}
		items := preferFirst(names, contextName)
		i, err := o.deps.Prompter.Select("Kubernetes context", items)
		if err != nil {
			return nil, err
		}
		contextName = items[i]
	}

	session, err := o.deps.Connector.Connect(ctx, contextName)
	if err != nil {
		return nil, err
	}

	if o.cfg.SelectContext {
		namespaces, err := cluster.ListNamespaces(ctx, session.Client)
		if err != nil {
			o.deps.UI.Warnf("Cannot list namespaces (%v); using %s", err, session.Namespace)
		} else if len(namespaces) > 0 {
			items := preferFirst(namespaces, session.Namespace)
			i, err := o.deps.Prompter.Select("Namespace", items)
			if err != nil {
				return nil, err
			}
			session.Namespace = items[i]
		}
	}

	o.log = o.log.WithCluster(session.Context, session.Namespace)
	o.log.Debug("connected")
	o.state.session = session
	return session, nil
}

// controller locates the sealed-secrets controller once. Degraded outcomes
// are reported as warnings and fall back to the default location.
func (o *Orchestrator) controller(ctx context.Context) (*controllerRef, error) {
	if o.state.controller != nil {
		return o.state.controller, nil
	}
	session, err := o.connect(ctx)
	if err != nil {
		return nil, err
	}

	ref := &controllerRef{Namespace: o.cfg.ControllerNamespace, Name: config.DefaultControllerName}
	if ref.Namespace == "" {
		ref.Namespace = config.DefaultControllerNamespace
	}

	stop := o.deps.UI.Step("Looking for the sealed-secrets controller")
	result, err := cluster.NewLocator(session.Client, o.cfg.ControllerNamespace, o.log).FindController(ctx)
	stop()
	if err != nil {
		return nil, errors.WithCluster(err, session.Context, o.cfg.ControllerNamespace)
	}

	switch result.Outcome {
	case cluster.Found:
		ref.Version = result.Controller.Version
		o.deps.UI.Infof("Found sealed-secrets controller %s (v%s)", result.Controller.Key(), ref.Version)
	case cluster.Ambiguous:
		ref.Version = result.Controller.Version
		keys := make([]string, 0, len(result.Candidates))
		for _, c := range result.Candidates {
			keys = append(keys, c.Key())
		}
		o.deps.UI.Warnf("Found %d sealed-secrets controllers (%s); using %s (v%s)",
			len(keys), strings.Join(keys, ", "), result.Controller.Key(), ref.Version)
	case cluster.NotFound:
		o.deps.UI.Warnf("%s; kubeseal will not be matched to the controller version", result.Reason)
	}
	if result.Controller != nil {
		ref.Namespace = result.Controller.Namespace
		ref.Name = result.Controller.Name
	}
	o.log = o.log.WithController(ref.Namespace, ref.Name)
	o.state.controller = ref
	return ref, nil
}

// sealer resolves the kubeseal binary once: PATH only when detached,
// otherwise matched to the controller version.
func (o *Orchestrator) sealer(ctx context.Context) (*seal.Sealer, error) {
	if o.state.sealer != nil {
		return o.state.sealer, nil
	}
	req := cache.Request{Detached: o.cfg.Detached()}
	if !req.Detached {
		ref, err := o.controller(ctx)
		if err != nil {
			return nil, err
		}
		req.Version = ref.Version
	}

	stop := o.deps.UI.Step("Resolving the kubeseal binary")
	handle, err := o.binaries.Resolve(ctx, req)
	stop()
	if err != nil {
		return nil, err
	}
	o.deps.UI.Infof("Using kubeseal %s", handle)
	o.state.sealer = seal.NewSealer(o.deps.Runner, handle.Path, o.cfg.Kubeconfig, o.log)
	return o.state.sealer, nil
}

// certificate returns the path of the certificate every sealing call uses.
// Online runs stage the controller's certificate in a temporary file.
func (o *Orchestrator) certificate(ctx context.Context) (string, error) {
	if o.state.certPath != "" {
		return o.state.certPath, nil
	}
	if o.cfg.Detached() {
		path := o.resolvePath(o.cfg.CertPath)
		if _, err := os.Stat(path); err != nil {
			return "", errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound, "certificate not found"), path)
		}
		o.state.certPath = path
		return path, nil
	}

	pem, err := o.fetchCertificate(ctx)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "kubeseal-auto-cert-*.pem")
	if err != nil {
		return "", errors.Wrap(err, errors.TypeFileWrite, "staging certificate")
	}
	o.state.tempFiles = append(o.state.tempFiles, f.Name())
	if _, err := f.Write(pem); err != nil {
		f.Close()
		return "", errors.Wrap(err, errors.TypeFileWrite, "staging certificate")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, errors.TypeFileWrite, "staging certificate")
	}
	o.state.certPath = f.Name()
	return o.state.certPath, nil
}

// fetchCertificate reads the newest sealing key's certificate, falling back
// to asking the controller through kubeseal when secrets are not readable.
func (o *Orchestrator) fetchCertificate(ctx context.Context) ([]byte, error) {
	session, err := o.connect(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := o.controller(ctx)
	if err != nil {
		return nil, err
	}

	key, err := cluster.LatestSealingKey(ctx, session.Client, ref.Namespace)
	if err == nil {
		cert, certErr := cluster.Certificate(key)
		if certErr == nil {
			o.log.WithField("secret", key.Name).Debug("certificate read from sealing key")
			return cert, nil
		}
		err = certErr
	}
	o.log.WithError(err).Debug("sealing key not readable, fetching certificate through kubeseal")

	sealer, err := o.sealer(ctx)
	if err != nil {
		return nil, err
	}
	return sealer.FetchCert(ctx, session.Context, ref.Namespace, ref.Name)
}

// seal seals a rendered Secret manifest.
func (o *Orchestrator) seal(ctx context.Context, manifest []byte) ([]byte, error) {
	certPath, err := o.certificate(ctx)
	if err != nil {
		return nil, err
	}
	sealer, err := o.sealer(ctx)
	if err != nil {
		return nil, err
	}
	stop := o.deps.UI.Step("Sealing")
	defer stop()
	return sealer.Seal(ctx, certPath, manifest)
}

// defaultNamespace is the namespace offered for new secrets.
func (o *Orchestrator) defaultNamespace() string {
	if o.state.session != nil && o.state.session.Namespace != "" {
		return o.state.session.Namespace
	}
	return "default"
}

func preferFirst(items []string, first string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == first {
			out = append(out, item)
		}
	}
	for _, item := range items {
		if item != first {
			out = append(out, item)
		}
	}
	return out
}
