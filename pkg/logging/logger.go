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

// Package logging provides structured diagnostic logging with consistent field formatting.
// User-facing output goes through pkg/console; this package is what --debug turns on.
package logging

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"k8s.io/klog/v2"

	kserrors "github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// DebugLevel is the klog verbosity enabled by --debug.
const DebugLevel = 4

// Setup configures klog for a CLI run. Without debug, diagnostics are discarded.
func Setup(debug bool) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if debug {
		_ = fs.Set("v", fmt.Sprint(DebugLevel))
		_ = fs.Set("logtostderr", "true")
		return
	}
	_ = fs.Set("v", "0")
	klog.LogToStderr(false)
	klog.SetOutput(io.Discard)
}

// Logger provides structured logging with consistent fields.
type Logger struct {
	fields map[string]interface{}
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// NewLogger creates a new logger instance.
func NewLogger() *Logger {
	return &Logger{
		fields: make(map[string]interface{}),
	}
}

// WithFields creates a new logger with additional fields.
func (l *Logger) WithFields(fields ...Field) *Logger {
	newLogger := &Logger{
		fields: make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	for _, f := range fields {
		newLogger.fields[f.Key] = f.Value
	}
	return newLogger
}

// WithField creates a new logger with a single additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Field{Key: key, Value: value})
}

// WithCluster adds kubeconfig context and namespace fields.
func (l *Logger) WithCluster(context, namespace string) *Logger {
	return l.WithFields(
		Field{Key: "context", Value: context},
		Field{Key: "namespace", Value: namespace},
	)
}

// WithController adds the sealed-secrets controller location.
func (l *Logger) WithController(namespace, name string) *Logger {
	return l.WithFields(
		Field{Key: "controller_namespace", Value: namespace},
		Field{Key: "controller_name", Value: name},
	)
}

// WithFile adds the manifest file being processed.
func (l *Logger) WithFile(path string) *Logger {
	return l.WithField("file", path)
}

// WithVersion adds a kubeseal version.
func (l *Logger) WithVersion(version string) *Logger {
	return l.WithField("version", version)
}

// WithError adds error information to the logger.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	var typed *kserrors.Error
	if errors.As(err, &typed) && typed != nil {
		logger := l.WithField("error_type", typed.Type)
		for _, key := range []string{"file", "context", "namespace", "version"} {
			if v := typed.GetContext(key); v != "" {
				logger = logger.WithField(key, v)
			}
		}
		return logger.WithField("error", err.Error())
	}

	return l.WithField("error", err.Error())
}

// WithTiming adds the duration of an operation.
func (l *Logger) WithTiming(duration time.Duration) *Logger {
	return l.WithField("duration_ms", duration.Milliseconds())
}

func (l *Logger) logFields() []interface{} {
	fields := make([]interface{}, 0, len(l.fields)*2)
	for k, v := range l.fields {
		fields = append(fields, k, v)
	}
	return fields
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	klog.V(DebugLevel).InfoS(msg, l.logFields()...)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	klog.V(DebugLevel).InfoS(fmt.Sprintf(format, args...), l.logFields()...)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	klog.InfoS(msg, l.logFields()...)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	klog.InfoS(fmt.Sprintf(format, args...), l.logFields()...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	klog.InfoS(msg, append([]interface{}{"level", "warning"}, l.logFields()...)...)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	klog.InfoS(fmt.Sprintf(format, args...), append([]interface{}{"level", "warning"}, l.logFields()...)...)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	klog.ErrorS(err, msg, l.logFields()...)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(err error, format string, args ...interface{}) {
	klog.ErrorS(err, fmt.Sprintf(format, args...), l.logFields()...)
}
