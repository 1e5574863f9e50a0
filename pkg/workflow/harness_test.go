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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kube-zen/kubeseal-auto/pkg/cache"
	"github.com/kube-zen/kubeseal-auto/pkg/cluster"
	"github.com/kube-zen/kubeseal-auto/pkg/common"
	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/console"
	"github.com/kube-zen/kubeseal-auto/pkg/platform"
	"github.com/kube-zen/kubeseal-auto/pkg/prompt/prompttest"
	"github.com/kube-zen/kubeseal-auto/pkg/seal/sealtest"
)

const clusterCert = "-----BEGIN CERTIFICATE-----\nCLUSTER\n-----END CERTIFICATE-----\n"

type fakeConnector struct {
	mu     sync.Mutex
	client *fake.Clientset
	calls  int
}

func (f *fakeConnector) Contexts() ([]string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []string{"prod", "staging"}, "prod", nil
}

func (f *fakeConnector) Connect(_ context.Context, name string) (*cluster.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if name == "" {
		name = "prod"
	}
	return &cluster.Session{Client: f.client, Context: name, Namespace: "apps"}, nil
}

// countingConnector records any use of a real connector.
type countingConnector struct {
	inner cluster.Connector
	calls int
}

func (c *countingConnector) Contexts() ([]string, string, error) {
	c.calls++
	return c.inner.Contexts()
}

func (c *countingConnector) Connect(ctx context.Context, name string) (*cluster.Session, error) {
	c.calls++
	return c.inner.Connect(ctx, name)
}

type fakeResolver struct {
	requests []cache.Request
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, req cache.Request) (cache.BinaryHandle, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return cache.BinaryHandle{}, f.err
	}
	prov := cache.ProvenanceCached
	if req.Detached || req.Version == nil {
		prov = cache.ProvenanceSystem
	}
	return cache.BinaryHandle{Path: "/bin/kubeseal", Provenance: prov}, nil
}

type harness struct {
	t         *testing.T
	dir       string
	client    *fake.Clientset
	connector cluster.Connector
	resolver  *fakeResolver
	runner    *sealtest.Runner
	out       bytes.Buffer
	ui        *console.Console
	script    *prompttest.Script

	platformErr   error
	platformCalls int
	factoryCalls  int
}

func newHarness(t *testing.T, objects ...runtime.Object) *harness {
	t.Setenv("NO_COLOR", "1")
	client := fake.NewSimpleClientset(objects...)
	h := &harness{
		t:         t,
		dir:       t.TempDir(),
		client:    client,
		connector: &fakeConnector{client: client},
		resolver:  &fakeResolver{},
		runner:    &sealtest.Runner{},
	}
	h.ui = console.New(&h.out)
	return h
}

func (h *harness) run(cfg config.RunConfig, answers ...prompttest.Answer) error {
	h.t.Helper()
	cfg.WorkDir = h.dir
	h.script = prompttest.New(answers...)
	o := New(cfg, Deps{
		Connector: h.connector,
		Platform: func() (platform.Token, error) {
			h.platformCalls++
			if h.platformErr != nil {
				return platform.Token{}, h.platformErr
			}
			return platform.Resolve("linux", "amd64")
		},
		Binaries: func(platform.Token) BinaryResolver {
			h.factoryCalls++
			return h.resolver
		},
		Runner:   h.runner,
		Prompter: h.script,
		UI:       h.ui,
	})
	err := o.Run(context.Background())
	assert.Zero(h.t, h.script.Remaining(), "unused prompt answers; asked %v", h.script.Asked)
	return err
}

func (h *harness) write(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) read(name string) string {
	h.t.Helper()
	raw, err := os.ReadFile(filepath.Join(h.dir, name))
	require.NoError(h.t, err)
	return string(raw)
}

func controllerDeployment() *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "sealed-secrets-controller",
			Namespace: "kube-system",
			Labels:    map[string]string{common.LabelAppName: common.ControllerAppName},
		},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{Spec: corev1.PodSpec{Containers: []corev1.Container{{
				Name:  "controller",
				Image: "docker.io/bitnami/sealed-secrets-controller:v0.24.3",
			}}}},
		},
	}
}

func sealingKey() *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:              "sealed-secrets-keyabc12",
			Namespace:         "kube-system",
			Labels:            map[string]string{common.LabelSealingKey: common.SealingKeyActive},
			Annotations:       map[string]string{corev1.LastAppliedConfigAnnotation: "{}"},
			CreationTimestamp: metav1.NewTime(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
			ResourceVersion:   "12345",
			UID:               "0b5c1d5e",
		},
		Type: corev1.SecretTypeTLS,
		Data: map[string][]byte{
			corev1.TLSCertKey:       []byte(clusterCert),
			corev1.TLSPrivateKeyKey: []byte("PRIVATE"),
		},
	}
}

func namespaces(names ...string) []runtime.Object {
	out := make([]runtime.Object, 0, len(names))
	for _, n := range names {
		out = append(out, &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: n}})
	}
	return out
}

func onlineCluster() []runtime.Object {
	return append(namespaces("apps", "kube-system"), controllerDeployment(), sealingKey())
}

func stagedValues(s corev1.Secret) map[string]string {
	out := make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		out[k] = string(v)
	}
	return out
}
