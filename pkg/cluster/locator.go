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
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/kube-zen/kubeseal-auto/pkg/common"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/logging"
	"github.com/kube-zen/kubeseal-auto/pkg/metrics"
)

// Outcome is the tag of a controller lookup Result.
type Outcome int

const (
	// NotFound means no usable controller version could be determined.
	NotFound Outcome = iota
	// Found means exactly one controller matched and its version parsed.
	Found
	// Ambiguous means several controllers matched; the first by
	// namespace/name was chosen.
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Controller is a located sealed-secrets controller.
type Controller struct {
	Name      string
	Namespace string
	Kind      string
	Image     string
	// Version is nil when neither the image tag nor the version label parse.
	Version *semver.Version
}

// Key returns namespace/name.
func (c Controller) Key() string {
	return c.Namespace + "/" + c.Name
}

// Result of FindController. Controller is set for Found and Ambiguous, and
// for NotFound when the controller was located but its version was not.
type Result struct {
	Outcome    Outcome
	Controller *Controller
	Candidates []Controller
	Reason     string
}

// Locator finds the sealed-secrets controller.
type Locator struct {
	client    kubernetes.Interface
	namespace string
	logger    *logging.Logger
}

// NewLocator creates a Locator. An empty namespace searches all namespaces.
func NewLocator(client kubernetes.Interface, namespace string, logger *logging.Logger) *Locator {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Locator{client: client, namespace: namespace, logger: logger}
}

// FindController looks for the controller by label selector on Deployments,
// then Pods, then by name substring on Deployments. Permission errors make a
// step count as empty. Only non-permission API failures are returned as errors.
func (l *Locator) FindController(ctx context.Context) (Result, error) {
	result, err := l.find(ctx)
	if err != nil {
		return Result{}, err
	}
	metrics.RecordControllerLookup(result.Outcome.String())
	return result, nil
}

func (l *Locator) find(ctx context.Context) (Result, error) {
	var denied []string

	steps := []struct {
		name string
		run  func(context.Context) ([]Controller, error)
	}{
		{"deployments by label", l.deploymentsByLabel},
		{"pods by label", l.podsByLabel},
		{"deployments by name", l.deploymentsByName},
	}

	for _, step := range steps {
		found, err := step.run(ctx)
		if err != nil {
			if common.IsPermissionDenied(err) {
				l.logger.WithError(err).Debugf("controller lookup step %q denied", step.name)
				denied = append(denied, step.name)
				continue
			}
			return Result{}, errors.Wrap(err, errors.TypeClusterConnection, "looking up sealed-secrets controller")
		}
		if len(found) > 0 {
			l.logger.Debugf("controller lookup step %q matched %d object(s)", step.name, len(found))
			return classify(found), nil
		}
	}

	reason := "no sealed-secrets controller found"
	if l.namespace != "" {
		reason += " in namespace " + l.namespace
	}
	if len(denied) > 0 {
		reason += fmt.Sprintf(" (permission denied for %s)", strings.Join(denied, ", "))
	}
	return Result{Outcome: NotFound, Reason: reason}, nil
}

func classify(found []Controller) Result {
	sort.Slice(found, func(i, j int) bool {
		return found[i].Key() < found[j].Key()
	})
	chosen := found[0]
	result := Result{Outcome: Found, Controller: &chosen, Candidates: found}
	if len(found) > 1 {
		result.Outcome = Ambiguous
	}
	if chosen.Version == nil {
		result.Outcome = NotFound
		result.Reason = fmt.Sprintf("controller %s runs image %q whose tag is not a version", chosen.Key(), chosen.Image)
	}
	return result
}

func (l *Locator) deploymentsByLabel(ctx context.Context) ([]Controller, error) {
	for _, selector := range common.ControllerSelectors() {
		items, err := l.listDeployments(ctx, selector)
		if err != nil {
			return nil, err
		}
		if out := controllersFromDeployments(items, false); len(out) > 0 {
			return out, nil
		}
	}
	return nil, nil
}

func (l *Locator) deploymentsByName(ctx context.Context) ([]Controller, error) {
	items, err := l.listDeployments(ctx, "")
	if err != nil {
		return nil, err
	}
	return controllersFromDeployments(items, true), nil
}

func (l *Locator) podsByLabel(ctx context.Context) ([]Controller, error) {
	for _, selector := range common.ControllerSelectors() {
		pods, err := common.RetryWithResult(ctx, common.DefaultRetryConfig(), func() ([]corev1.Pod, error) {
			list, err := l.client.CoreV1().Pods(l.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
			if err != nil {
				return nil, err
			}
			return list.Items, nil
		})
		if err != nil {
			return nil, err
		}
		if out := controllersFromPods(pods); len(out) > 0 {
			return out, nil
		}
	}
	return nil, nil
}

func (l *Locator) listDeployments(ctx context.Context, selector string) ([]appsv1.Deployment, error) {
	return common.RetryWithResult(ctx, common.DefaultRetryConfig(), func() ([]appsv1.Deployment, error) {
		list, err := l.client.AppsV1().Deployments(l.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	})
}

func controllersFromDeployments(items []appsv1.Deployment, byName bool) []Controller {
	var out []Controller
	for _, d := range items {
		if strings.Contains(d.Name, common.MetricsNameSubstring) {
			continue
		}
		if byName && !strings.Contains(d.Name, common.ControllerNameSubstring) {
			continue
		}
		image := controllerImage(d.Spec.Template.Spec.Containers)
		out = append(out, Controller{
			Name:      d.Name,
			Namespace: d.Namespace,
			Kind:      "Deployment",
			Image:     image,
			Version:   versionOf(image, d.Labels),
		})
	}
	return out
}

func controllersFromPods(pods []corev1.Pod) []Controller {
	seen := make(map[string]bool)
	var out []Controller
	for _, p := range pods {
		name := podControllerName(p)
		if strings.Contains(name, common.MetricsNameSubstring) || seen[p.Namespace+"/"+name] {
			continue
		}
		seen[p.Namespace+"/"+name] = true
		image := controllerImage(p.Spec.Containers)
		out = append(out, Controller{
			Name:      name,
			Namespace: p.Namespace,
			Kind:      "Pod",
			Image:     image,
			Version:   versionOf(image, p.Labels),
		})
	}
	return out
}

// podControllerName maps a Deployment-managed pod back to the Deployment
// name, which is also the controller Service name kubeseal expects.
func podControllerName(p corev1.Pod) string {
	for _, ref := range p.OwnerReferences {
		if ref.Kind == "ReplicaSet" {
			if i := strings.LastIndex(ref.Name, "-"); i > 0 {
				return ref.Name[:i]
			}
			return ref.Name
		}
	}
	return p.Name
}

func controllerImage(containers []corev1.Container) string {
	for _, c := range containers {
		if strings.Contains(c.Image, common.ControllerNameSubstring) {
			return c.Image
		}
	}
	if len(containers) > 0 {
		return containers[0].Image
	}
	return ""
}

func versionOf(image string, labels map[string]string) *semver.Version {
	if v, ok := VersionFromImage(image); ok {
		return v
	}
	if v, ok := parseVersion(labels[common.LabelAppVersion]); ok {
		return v
	}
	return nil
}

// VersionFromImage extracts a semantic version from an image reference's tag,
// e.g. "docker.io/bitnami/sealed-secrets-controller:v0.24.3" yields 0.24.3.
func VersionFromImage(image string) (*semver.Version, bool) {
	if i := strings.Index(image, "@"); i >= 0 {
		image = image[:i]
	}
	colon := strings.LastIndex(image, ":")
	if colon < 0 || colon < strings.LastIndex(image, "/") {
		return nil, false
	}
	return parseVersion(image[colon+1:])
}

func parseVersion(tag string) (*semver.Version, bool) {
	start := strings.IndexFunc(tag, unicode.IsDigit)
	if start < 0 {
		return nil, false
	}
	v, err := semver.NewVersion(tag[start:])
	if err != nil {
		return nil, false
	}
	return v, true
}
