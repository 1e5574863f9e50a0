//go:build e2e
// +build e2e

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

// Package e2e runs kubeseal-auto against a real cluster with a
// sealed-secrets controller installed, downloading kubeseal from upstream.
//
//	KUBESEAL_AUTO_E2E_KUBECONFIG=$HOME/.kube/config go test -tags e2e ./test/e2e/
package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilexec "k8s.io/utils/exec"

	"github.com/kube-zen/kubeseal-auto/pkg/cache"
	"github.com/kube-zen/kubeseal-auto/pkg/cluster"
	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/console"
	"github.com/kube-zen/kubeseal-auto/pkg/manifest"
	"github.com/kube-zen/kubeseal-auto/pkg/platform"
	"github.com/kube-zen/kubeseal-auto/pkg/prompt/prompttest"
	"github.com/kube-zen/kubeseal-auto/pkg/release"
	"github.com/kube-zen/kubeseal-auto/pkg/seal"
	"github.com/kube-zen/kubeseal-auto/pkg/workflow"
)

const (
	envKubeconfig = "KUBESEAL_AUTO_E2E_KUBECONFIG"
	envNamespace  = "KUBESEAL_AUTO_E2E_NAMESPACE"
)

type env struct {
	kubeconfig string
	namespace  string
	cacheDir   string
}

func setup(t *testing.T) env {
	t.Helper()
	kubeconfig := os.Getenv(envKubeconfig)
	if kubeconfig == "" {
		t.Skipf("%s not set", envKubeconfig)
	}
	namespace := os.Getenv(envNamespace)
	if namespace == "" {
		namespace = "default"
	}
	t.Setenv("NO_COLOR", "1")
	return env{kubeconfig: kubeconfig, namespace: namespace, cacheDir: t.TempDir()}
}

func (e env) run(t *testing.T, cfg config.RunConfig, answers ...prompttest.Answer) (string, error) {
	t.Helper()
	settings := config.LoadSettings()
	settings.CacheDir = e.cacheDir
	cfg.Settings = settings
	cfg.Kubeconfig = e.kubeconfig

	var out strings.Builder
	ui := console.New(&out)
	script := prompttest.New(answers...)
	o := workflow.New(cfg, workflow.Deps{
		Connector: &cluster.KubeconfigConnector{Path: e.kubeconfig, Timeout: settings.APITimeout},
		Binaries: func(token platform.Token) workflow.BinaryResolver {
			return cache.New(cache.Options{
				Dir:        settings.CacheDir,
				BinaryName: settings.BinaryName,
				Platform:   token,
				Fetcher:    release.NewFetcher(release.OptionsFromSettings(settings)),
				LookPath:   utilexec.New().LookPath,
				Warner:     ui,
			})
		},
		Runner:   seal.NewExecRunner(),
		Prompter: script,
		UI:       ui,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	err := o.Run(ctx)
	assert.Zero(t, script.Remaining(), "asked %v", script.Asked)
	return out.String(), err
}

func TestFetchCertificate(t *testing.T) {
	e := setup(t)
	dir := t.TempDir()

	out, err := e.run(t, config.RunConfig{Mode: config.ModeFetch, WorkDir: dir})
	require.NoError(t, err, out)

	matches, err := filepath.Glob(filepath.Join(dir, "*"+config.CertFileSuffix))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	pem, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pem), "-----BEGIN CERTIFICATE-----"))
}

func TestCreateThenEdit(t *testing.T) {
	e := setup(t)
	dir := t.TempDir()

	out, err := e.run(t, config.RunConfig{Mode: config.ModeInteractive, WorkDir: dir},
		prompttest.Choose("Create a new secret"),
		prompttest.Choose(e.namespace),
		prompttest.Choose("generic"),
		prompttest.Type("kubeseal-auto-e2e"),
		prompttest.Choose("Add literal (key=value)"),
		prompttest.Type("a=1"),
		prompttest.Choose("Done"),
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Found sealed-secrets controller")

	path := filepath.Join(dir, "kubeseal-auto-e2e.yaml")
	doc, err := manifest.Load(path)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	assert.Equal(t, config.ArgoSkipDryRun, doc.Annotations()[config.AnnotationArgoSyncOptions])
	before := doc.EncryptedData()
	require.Contains(t, before, "a")

	out, err = e.run(t, config.RunConfig{Mode: config.ModeEdit, EditFile: path, WorkDir: dir},
		prompttest.Choose("Add literal (key=value)"),
		prompttest.Type("b=2"),
		prompttest.Choose("Done"),
	)
	require.NoError(t, err, out)

	doc, err = manifest.Load(path)
	require.NoError(t, err)
	after := doc.EncryptedData()
	assert.Equal(t, before["a"], after["a"])
	assert.NotEmpty(t, after["b"])
}

func TestBinaryCacheReuse(t *testing.T) {
	e := setup(t)
	token, err := platform.Current()
	if err != nil {
		t.Skip(err.Error())
	}
	session, err := (&cluster.KubeconfigConnector{Path: e.kubeconfig}).Connect(context.Background(), "")
	require.NoError(t, err)
	result, err := cluster.NewLocator(session.Client, "", nil).FindController(context.Background())
	require.NoError(t, err)
	if result.Outcome != cluster.Found {
		t.Skipf("controller version not determinable: %s", result.Reason)
	}

	c := cache.New(cache.Options{
		Dir:        e.cacheDir,
		BinaryName: config.BinaryName,
		Platform:   token,
		Fetcher:    release.NewFetcher(release.Options{}),
		LookPath:   utilexec.New().LookPath,
	})
	first, err := c.Resolve(context.Background(), cache.Request{Version: result.Controller.Version})
	require.NoError(t, err)
	assert.Equal(t, cache.ProvenanceDownloaded, first.Provenance)

	second, err := c.Resolve(context.Background(), cache.Request{Version: result.Controller.Version})
	require.NoError(t, err)
	assert.Equal(t, cache.ProvenanceCached, second.Provenance)
	assert.Equal(t, first.Path, second.Path)
}
