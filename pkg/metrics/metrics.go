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

// Package metrics provides Prometheus metrics for kubeseal-auto runs.
// A run can dump them in text exposition format for node_exporter's
// textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunTotal counts runs by mode and result.
	RunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeseal_auto_run_total",
			Help: "Total number of kubeseal-auto runs",
		},
		[]string{"mode", "result"},
	)

	// ControllerLookupTotal counts controller discovery outcomes.
	ControllerLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeseal_auto_controller_lookup_total",
			Help: "Total number of sealed-secrets controller lookups",
		},
		[]string{"outcome"}, // found, not_found, ambiguous
	)

	// BinaryResolveTotal counts resolved kubeseal binaries by provenance.
	BinaryResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeseal_auto_binary_resolve_total",
			Help: "Total number of kubeseal binary resolutions",
		},
		[]string{"provenance"}, // downloaded, cached, system
	)

	// DownloadTotal counts release artifact downloads.
	DownloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeseal_auto_download_total",
			Help: "Total number of kubeseal release downloads",
		},
		[]string{"result"},
	)

	// DownloadDuration measures release artifact downloads.
	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kubeseal_auto_download_duration_seconds",
			Help:    "Duration of kubeseal release downloads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// SealTotal counts seal utility invocations.
	SealTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeseal_auto_seal_total",
			Help: "Total number of kubeseal invocations",
		},
		[]string{"operation", "result"}, // operation: seal, fetch_cert
	)

	// SealDuration measures seal utility invocations.
	SealDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubeseal_auto_seal_duration_seconds",
			Help:    "Duration of kubeseal invocations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	// ReencryptFilesTotal counts files processed by reencrypt.
	ReencryptFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeseal_auto_reencrypt_files_total",
			Help: "Total number of SealedSecret files processed by reencrypt",
		},
		[]string{"result"},
	)
)

// RecordRun records the outcome of a run.
func RecordRun(mode, result string) {
	RunTotal.WithLabelValues(mode, result).Inc()
}

// RecordControllerLookup records a controller discovery outcome.
func RecordControllerLookup(outcome string) {
	ControllerLookupTotal.WithLabelValues(outcome).Inc()
}

// RecordBinaryResolve records where the kubeseal binary came from.
func RecordBinaryResolve(provenance string) {
	BinaryResolveTotal.WithLabelValues(provenance).Inc()
}

// RecordDownload records a release download.
func RecordDownload(result string, duration float64) {
	DownloadTotal.WithLabelValues(result).Inc()
	DownloadDuration.Observe(duration)
}

// RecordSeal records a kubeseal invocation.
func RecordSeal(operation, result string, duration float64) {
	SealTotal.WithLabelValues(operation, result).Inc()
	SealDuration.WithLabelValues(operation).Observe(duration)
}

// RecordReencryptFile records one reencrypt file result.
func RecordReencryptFile(result string) {
	ReencryptFilesTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes all registered metrics to path atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Result returns the conventional result label for err.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
