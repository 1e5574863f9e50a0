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

package logging

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Leveled adapts a Logger to the key/value leveled interface used by
// HTTP client libraries such as go-retryablehttp.
type Leveled struct {
	logger *Logger
}

// NewLeveled wraps logger. A nil logger uses an empty one.
func NewLeveled(logger *Logger) *Leveled {
	if logger == nil {
		logger = NewLogger()
	}
	return &Leveled{logger: logger}
}

func (l *Leveled) Error(msg string, keysAndValues ...interface{}) {
	klog.ErrorS(nil, msg, append(l.logger.logFields(), normalize(keysAndValues)...)...)
}

func (l *Leveled) Info(msg string, keysAndValues ...interface{}) {
	klog.V(2).InfoS(msg, append(l.logger.logFields(), normalize(keysAndValues)...)...)
}

func (l *Leveled) Debug(msg string, keysAndValues ...interface{}) {
	klog.V(DebugLevel).InfoS(msg, append(l.logger.logFields(), normalize(keysAndValues)...)...)
}

func (l *Leveled) Warn(msg string, keysAndValues ...interface{}) {
	kv := append([]interface{}{"level", "warning"}, l.logger.logFields()...)
	klog.InfoS(msg, append(kv, normalize(keysAndValues)...)...)
}

// normalize stringifies keys so odd callers cannot break klog's pairing.
func normalize(kv []interface{}) []interface{} {
	out := make([]interface{}, 0, len(kv)+1)
	for i := 0; i < len(kv); i += 2 {
		out = append(out, fmt.Sprint(kv[i]))
		if i+1 < len(kv) {
			out = append(out, kv[i+1])
		} else {
			out = append(out, "(missing)")
		}
	}
	return out
}
