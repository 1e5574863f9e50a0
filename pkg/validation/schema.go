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

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

const sealedSecretSchema = `{
  "type": "object",
  "required": ["apiVersion", "kind", "metadata", "spec"],
  "properties": {
    "apiVersion": {"type": "string", "pattern": "^bitnami\\.com/"},
    "kind": {"const": "SealedSecret"},
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "namespace": {"type": "string"}
      }
    },
    "spec": {
      "type": "object",
      "required": ["encryptedData"],
      "properties": {
        "encryptedData": {
          "type": ["object", "null"],
          "additionalProperties": {"type": "string"}
        },
        "template": {"type": "object"}
      }
    }
  }
}`

const secretSchema = `{
  "type": "object",
  "required": ["apiVersion", "kind", "metadata"],
  "properties": {
    "apiVersion": {"const": "v1"},
    "kind": {"const": "Secret"},
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "namespace": {"type": "string"}
      }
    },
    "type": {"type": "string"},
    "data": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "string"}
    },
    "stringData": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "string"}
    }
  }
}`

var schemas = map[string]gojsonschema.JSONLoader{
	"SealedSecret": gojsonschema.NewStringLoader(sealedSecretSchema),
	"Secret":       gojsonschema.NewStringLoader(secretSchema),
}

// ValidateManifest checks a decoded Secret or SealedSecret document against
// the subset of its schema kubeseal-auto relies on.
func ValidateManifest(kind string, doc interface{}) error {
	schema, ok := schemas[kind]
	if !ok {
		return errors.New(errors.TypeSecretParsing, fmt.Sprintf("unsupported kind %q", kind))
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.Wrap(err, errors.TypeSecretParsing, "cannot validate "+kind)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return errors.New(errors.TypeSecretParsing,
		fmt.Sprintf("malformed %s: %s", kind, strings.Join(msgs, "; ")))
}
