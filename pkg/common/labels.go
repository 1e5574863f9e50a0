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

package common

// Well-known sealed-secrets labels and names.
const (
	// LabelAppName is the recommended Kubernetes name label used by the Helm chart.
	LabelAppName = "app.kubernetes.io/name"

	// LabelAppVersion carries the controller version on chart-managed objects.
	LabelAppVersion = "app.kubernetes.io/version"

	// LabelLegacyName is set by the plain controller.yaml manifests.
	LabelLegacyName = "name"

	// LabelSealingKey marks the controller's sealing key Secrets.
	LabelSealingKey = "sealedsecrets.bitnami.com/sealed-secrets-key"

	// SealingKeyActive is the LabelSealingKey value of a key used for new seals.
	SealingKeyActive = "active"

	// ControllerAppName is the LabelAppName value of the controller.
	ControllerAppName = "sealed-secrets"

	// ControllerLegacyName is the LabelLegacyName value of the controller.
	ControllerLegacyName = "sealed-secrets-controller"

	// ControllerNameSubstring matches custom release names.
	ControllerNameSubstring = "sealed-secrets"

	// MetricsNameSubstring excludes the metrics Service/Deployment of the chart.
	MetricsNameSubstring = "metrics"
)

// ControllerSelectors returns the label selectors tried, in order, when
// looking for the controller.
func ControllerSelectors() []string {
	return []string{
		LabelAppName + "=" + ControllerAppName,
		LabelLegacyName + "=" + ControllerLegacyName,
	}
}
