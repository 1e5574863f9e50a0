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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/kube-zen/kubeseal-auto/pkg/common"
)

const testImage = "docker.io/bitnami/sealed-secrets-controller:v0.24.3"

func deployment(namespace, name, image string, labels map[string]string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "controller", Image: image}}},
			},
		},
	}
}

func pod(namespace, name, replicaSet, image string, labels map[string]string) *corev1.Pod {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "controller", Image: image}}},
	}
	if replicaSet != "" {
		p.OwnerReferences = []metav1.OwnerReference{{Kind: "ReplicaSet", Name: replicaSet}}
	}
	return p
}

func appLabels() map[string]string {
	return map[string]string{common.LabelAppName: common.ControllerAppName}
}

func TestFindController_PodImageTag(t *testing.T) {
	client := fake.NewSimpleClientset(
		pod("kube-system", "sealed-secrets-controller-7d9f8b-abcde", "sealed-secrets-controller-7d9f8b", testImage, appLabels()),
	)

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Found, result.Outcome)
	require.NotNil(t, result.Controller)
	assert.Equal(t, "0.24.3", result.Controller.Version.String())
	assert.Equal(t, "sealed-secrets-controller", result.Controller.Name)
	assert.Equal(t, "kube-system", result.Controller.Namespace)
	assert.Equal(t, "Pod", result.Controller.Kind)
}

func TestFindController_DeploymentPreferred(t *testing.T) {
	client := fake.NewSimpleClientset(
		deployment("sealed", "sealed-secrets", testImage, appLabels()),
		pod("other", "sealed-secrets-x-1", "sealed-secrets-x", "bitnami/sealed-secrets-controller:0.20.0", appLabels()),
	)

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Found, result.Outcome)
	assert.Equal(t, "Deployment", result.Controller.Kind)
	assert.Equal(t, "sealed/sealed-secrets", result.Controller.Key())
}

func TestFindController_NoMatches(t *testing.T) {
	client := fake.NewSimpleClientset(
		deployment("default", "nginx", "nginx:1.25", map[string]string{"app": "nginx"}),
	)

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NotFound, result.Outcome)
	assert.Nil(t, result.Controller)
	assert.NotEmpty(t, result.Reason)
}

func TestFindController_NameSubstringFallback(t *testing.T) {
	client := fake.NewSimpleClientset(
		deployment("security", "my-sealed-secrets", "ghcr.io/bitnami-labs/sealed-secrets-controller:0.26.1", nil),
		deployment("security", "my-sealed-secrets-metrics", "prom/exporter:v1.0.0", nil),
	)

	result, err := NewLocator(client, "security", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Found, result.Outcome)
	assert.Equal(t, "my-sealed-secrets", result.Controller.Name)
	assert.Equal(t, "0.26.1", result.Controller.Version.String())
}

func TestFindController_LegacyLabel(t *testing.T) {
	client := fake.NewSimpleClientset(
		deployment("kube-system", "sealed-secrets-controller", testImage,
			map[string]string{common.LabelLegacyName: common.ControllerLegacyName}),
	)

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Found, result.Outcome)
}

func TestFindController_AmbiguousPicksFirstByName(t *testing.T) {
	client := fake.NewSimpleClientset(
		deployment("zeta", "sealed-secrets", "bitnami/sealed-secrets-controller:v0.25.0", appLabels()),
		deployment("alpha", "sealed-secrets", testImage, appLabels()),
	)

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Ambiguous, result.Outcome)
	assert.Equal(t, "alpha/sealed-secrets", result.Controller.Key())
	assert.Equal(t, "0.24.3", result.Controller.Version.String())
	assert.Len(t, result.Candidates, 2)
}

func TestFindController_UnparsableTag(t *testing.T) {
	client := fake.NewSimpleClientset(
		deployment("kube-system", "sealed-secrets-controller", "bitnami/sealed-secrets-controller:latest", appLabels()),
	)

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NotFound, result.Outcome)
	require.NotNil(t, result.Controller)
	assert.Nil(t, result.Controller.Version)
	assert.Equal(t, "sealed-secrets-controller", result.Controller.Name)
}

func TestFindController_VersionLabelFallback(t *testing.T) {
	labels := appLabels()
	labels[common.LabelAppVersion] = "0.27.0"
	client := fake.NewSimpleClientset(
		deployment("kube-system", "sealed-secrets", "registry.local/sealed-secrets@sha256:abcdef", labels),
	)

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Found, result.Outcome)
	assert.Equal(t, "0.27.0", result.Controller.Version.String())
}

func TestFindController_PermissionDeniedDegrades(t *testing.T) {
	client := fake.NewSimpleClientset()
	forbidden := func(resource string) k8stesting.ReactionFunc {
		return func(k8stesting.Action) (bool, runtime.Object, error) {
			return true, nil, k8serrors.NewForbidden(schema.GroupResource{Resource: resource}, "", nil)
		}
	}
	client.PrependReactor("list", "deployments", forbidden("deployments"))
	client.PrependReactor("list", "pods", forbidden("pods"))

	result, err := NewLocator(client, "", nil).FindController(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NotFound, result.Outcome)
	assert.Contains(t, result.Reason, "permission denied")
}

func TestFindController_OtherErrorsReturned(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("list", "deployments", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, k8serrors.NewBadRequest("boom")
	})

	_, err := NewLocator(client, "", nil).FindController(context.Background())
	require.Error(t, err)
}

func TestVersionFromImage(t *testing.T) {
	tests := []struct {
		image string
		want  string
		ok    bool
	}{
		{"docker.io/bitnami/sealed-secrets-controller:v0.24.3", "0.24.3", true},
		{"bitnami/sealed-secrets-controller:0.24.3", "0.24.3", true},
		{"registry:5000/sealed-secrets-controller:v0.24.3-debian-12-r0", "0.24.3-debian-12-r0", true},
		{"sealed-secrets-controller:release-0.24.3@sha256:abc", "0.24.3", true},
		{"registry:5000/sealed-secrets-controller", "", false},
		{"sealed-secrets-controller:latest", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			v, ok := VersionFromImage(tt.image)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, v.String())
			}
		})
	}
}
