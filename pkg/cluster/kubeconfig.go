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

// Package cluster reads everything kubeseal-auto needs from a live cluster:
// kubeconfig contexts, namespaces, the sealed-secrets controller and its
// sealing keys. All calls are read-only.
package cluster

import (
	"context"
	"sort"
	"strconv"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kube-zen/kubeseal-auto/pkg/common"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// Session is a client bound to one kubeconfig context.
type Session struct {
	Client    kubernetes.Interface
	Context   string
	Namespace string
}

// Connector opens sessions against kubeconfig contexts.
type Connector interface {
	// Contexts lists context names in stable order and the current context.
	Contexts() ([]string, string, error)
	// Connect opens a session for contextName, or the current context if empty.
	Connect(ctx context.Context, contextName string) (*Session, error)
}

// KubeconfigConnector loads contexts with the standard client-go rules:
// an explicit path, then $KUBECONFIG, then ~/.kube/config.
type KubeconfigConnector struct {
	Path    string
	Timeout time.Duration
}

func (k *KubeconfigConnector) loadingRules() *clientcmd.ClientConfigLoadingRules {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if k.Path != "" {
		rules.ExplicitPath = k.Path
	}
	return rules
}

// Contexts implements Connector.
func (k *KubeconfigConnector) Contexts() ([]string, string, error) {
	raw, err := k.loadingRules().Load()
	if err != nil {
		return nil, "", errors.Wrap(err, errors.TypeClusterConnection, "loading kubeconfig")
	}
	names := make([]string, 0, len(raw.Contexts))
	for name := range raw.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, "", errors.New(errors.TypeClusterConnection, "kubeconfig defines no contexts")
	}
	return names, raw.CurrentContext, nil
}

// Connect implements Connector.
func (k *KubeconfigConnector) Connect(_ context.Context, contextName string) (*Session, error) {
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(k.loadingRules(), overrides)

	raw, err := loader.RawConfig()
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeClusterConnection, "loading kubeconfig")
	}
	if contextName == "" {
		contextName = raw.CurrentContext
	}
	if _, ok := raw.Contexts[contextName]; !ok {
		return nil, errors.New(errors.TypeClusterConnection, "kubeconfig context "+strconv.Quote(contextName)+" does not exist")
	}

	restConfig, err := loader.ClientConfig()
	if err != nil {
		return nil, errors.WithCluster(errors.Wrap(err, errors.TypeClusterConnection, "building client config"), contextName, "")
	}
	if k.Timeout > 0 {
		restConfig.Timeout = k.Timeout
	}

	namespace, _, err := loader.Namespace()
	if err != nil || namespace == "" {
		namespace = metav1.NamespaceDefault
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.WithCluster(errors.Wrap(err, errors.TypeClusterConnection, "creating client"), contextName, namespace)
	}
	return &Session{Client: client, Context: contextName, Namespace: namespace}, nil
}

// ListNamespaces returns namespace names in stable order.
func ListNamespaces(ctx context.Context, client kubernetes.Interface) ([]string, error) {
	names, err := common.RetryWithResult(ctx, common.DefaultRetryConfig(), func() ([]string, error) {
		list, err := client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(list.Items))
		for _, ns := range list.Items {
			out = append(out, ns.Name)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
