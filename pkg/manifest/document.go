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

// Package manifest edits Secret and SealedSecret YAML documents in place.
// Changes are spliced into the original text at top-level keys, so every
// other top-level block keeps its exact bytes.
package manifest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/validation"
)

// Kinds handled by kubeseal-auto.
const (
	KindSecret       = "Secret"
	KindSealedSecret = "SealedSecret"
)

// Document is a single-document Secret or SealedSecret manifest.
type Document struct {
	raw  []byte
	root *yaml.Node
}

// Parse parses a single YAML document whose root is a mapping.
func Parse(raw []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.TypeSecretParsing, "empty document")
		}
		return nil, errors.Wrap(err, errors.TypeSecretParsing, "invalid YAML")
	}
	for {
		var extra yaml.Node
		err := dec.Decode(&extra)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.TypeSecretParsing, "invalid YAML")
		}
		if !isEmptyDocument(&extra) {
			return nil, errors.New(errors.TypeSecretParsing, "multi-document files are not supported")
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New(errors.TypeSecretParsing, "document root is not a mapping")
	}
	return &Document{raw: raw, root: doc.Content[0]}, nil
}

// Bytes returns the current document text.
func (d *Document) Bytes() []byte {
	return d.raw
}

// Kind returns the document kind.
func (d *Document) Kind() string {
	return scalar(lookup(d.root, "kind"))
}

// Name returns metadata.name.
func (d *Document) Name() string {
	return scalar(lookup(lookup(d.root, "metadata"), "name"))
}

// Namespace returns metadata.namespace.
func (d *Document) Namespace() string {
	return scalar(lookup(lookup(d.root, "metadata"), "namespace"))
}

// Annotations returns metadata.annotations.
func (d *Document) Annotations() map[string]string {
	return stringMap(lookup(lookup(d.root, "metadata"), "annotations"))
}

// SecretType returns the Secret type, read from spec.template.type for a
// SealedSecret.
func (d *Document) SecretType() string {
	if d.Kind() == KindSealedSecret {
		return scalar(lookup(lookup(lookup(d.root, "spec"), "template"), "type"))
	}
	return scalar(lookup(d.root, "type"))
}

// Validate checks the document against the schema for its kind.
func (d *Document) Validate() error {
	var m map[string]interface{}
	if err := d.root.Decode(&m); err != nil {
		return errors.Wrap(err, errors.TypeSecretParsing, "decoding document")
	}
	return validation.ValidateManifest(d.Kind(), m)
}

// EncryptedData returns spec.encryptedData of a SealedSecret.
func (d *Document) EncryptedData() map[string]string {
	return stringMap(lookup(lookup(d.root, "spec"), "encryptedData"))
}

// ReplaceEncryptedData sets spec.encryptedData to exactly values.
func (d *Document) ReplaceEncryptedData(values map[string]string) error {
	return d.setEncryptedData(values, false)
}

// MergeEncryptedData adds or overwrites entries of spec.encryptedData.
func (d *Document) MergeEncryptedData(values map[string]string) error {
	return d.setEncryptedData(values, true)
}

func (d *Document) setEncryptedData(values map[string]string, merge bool) error {
	spec := lookup(d.root, "spec")
	if spec == nil || spec.Kind != yaml.MappingNode {
		return errors.New(errors.TypeSecretParsing, "document has no spec mapping")
	}
	data := lookup(spec, "encryptedData")
	if data == nil || data.Kind != yaml.MappingNode || !merge {
		data = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setKey(spec, "encryptedData", data)
	}
	mergeInto(data, values)
	return d.splice("spec", spec)
}

// SecretValues returns the plaintext values of a Secret: decoded data
// overlaid with stringData.
func (d *Document) SecretValues() (map[string]string, error) {
	values := make(map[string]string)
	for k, v := range stringMap(lookup(d.root, "data")) {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, errors.Wrapf(err, errors.TypeSecretParsing, "data key %s is not base64", k)
		}
		values[k] = string(decoded)
	}
	for k, v := range stringMap(lookup(d.root, "stringData")) {
		values[k] = v
	}
	return values, nil
}

// SetSecretValues writes values into a Secret. Files that only use
// stringData keep using it; otherwise values are base64 encoded into data
// and stringData is dropped.
func (d *Document) SetSecretValues(values map[string]string) error {
	if lookup(d.root, "data") == nil && lookup(d.root, "stringData") != nil {
		node := lookup(d.root, "stringData")
		if node.Kind != yaml.MappingNode {
			node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			setKey(d.root, "stringData", node)
		}
		mergeInto(node, values)
		return d.splice("stringData", node)
	}

	node := lookup(d.root, "data")
	if node == nil || node.Kind != yaml.MappingNode {
		node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setKey(d.root, "data", node)
	}
	encoded := make(map[string]string, len(values))
	for k, v := range values {
		encoded[k] = base64.StdEncoding.EncodeToString([]byte(v))
	}
	mergeInto(node, encoded)
	if err := d.splice("data", node); err != nil {
		return err
	}
	if lookup(d.root, "stringData") != nil {
		deleteKey(d.root, "stringData")
		return d.splice("stringData", nil)
	}
	return nil
}

// PrependAnnotationOption adds option to the front of a comma separated
// annotation value unless it is already present. The whole document is
// re-encoded, so use it on freshly generated manifests only.
func (d *Document) PrependAnnotationOption(key, option string) error {
	metadata := lookup(d.root, "metadata")
	if metadata == nil || metadata.Kind != yaml.MappingNode {
		return errors.New(errors.TypeSecretParsing, "document has no metadata mapping")
	}
	annotations := lookup(metadata, "annotations")
	if annotations == nil || annotations.Kind != yaml.MappingNode {
		annotations = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setKey(metadata, "annotations", annotations)
	}

	value := option
	if existing := scalar(lookup(annotations, key)); existing != "" {
		for _, o := range strings.Split(existing, ",") {
			if strings.TrimSpace(o) == option {
				return nil
			}
		}
		value = option + "," + existing
	}
	setKey(annotations, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})

	out, err := encode(d.root)
	if err != nil {
		return err
	}
	return d.reload(out)
}

// splice replaces the text of top-level key with the encoding of value, or
// removes it when value is nil. Missing keys are appended.
func (d *Document) splice(key string, value *yaml.Node) error {
	var block []byte
	if value != nil {
		clearFootComments(value)
		mini := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value,
		}}
		var err error
		if block, err = encode(mini); err != nil {
			return err
		}
	}

	lines := strings.SplitAfter(string(d.raw), "\n")
	start, end, found := d.keyLines(key, len(lines))
	if !found {
		if d.root.Style&yaml.FlowStyle != 0 {
			return d.reencode()
		}
		// Insert before trailing comments and document markers.
		at := len(lines)
		for at > 0 && isTrivia(lines[at-1]) {
			at--
		}
		var b strings.Builder
		for _, l := range lines[:at] {
			b.WriteString(l)
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.Write(block)
		for _, l := range lines[at:] {
			b.WriteString(l)
		}
		return d.reload([]byte(b.String()))
	}
	if start < 0 {
		return d.reencode()
	}

	var b strings.Builder
	for _, l := range lines[:start] {
		b.WriteString(l)
	}
	b.Write(block)
	for _, l := range lines[end:] {
		b.WriteString(l)
	}
	return d.reload([]byte(b.String()))
}

// keyLines returns the zero-based half-open line range holding key and its
// value in the original text. start is -1 when the layout cannot be spliced.
func (d *Document) keyLines(key string, total int) (int, int, bool) {
	original, err := Parse(d.raw)
	if err != nil {
		return -1, 0, true
	}
	root := original.root
	if root.Style&yaml.FlowStyle != 0 {
		return -1, 0, lookup(root, key) != nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k := root.Content[i]
		if k.Value != key {
			continue
		}
		if k.Column != 1 {
			return -1, 0, true
		}
		start := k.Line - 1
		end := total
		if i+2 < len(root.Content) {
			end = root.Content[i+2].Line - 1
		}
		lines := strings.SplitAfter(string(d.raw), "\n")
		if i+2 >= len(root.Content) {
			for j := start + 1; j < end; j++ {
				if isDocumentMarker(lines[j]) {
					end = j
					break
				}
			}
		}
		for end > start+1 && isTrivia(lines[end-1]) {
			end--
		}
		return start, end, true
	}
	return 0, 0, false
}

// clearFootComments drops comments trailing the block; those lines stay in
// the text after the spliced range.
func clearFootComments(n *yaml.Node) {
	for n != nil {
		n.FootComment = ""
		if len(n.Content) == 0 {
			return
		}
		if n.Kind == yaml.MappingNode && len(n.Content) >= 2 {
			n.Content[len(n.Content)-2].FootComment = ""
		}
		n = n.Content[len(n.Content)-1]
	}
}

func isTrivia(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(line, "#") || isDocumentMarker(line)
}

func isDocumentMarker(line string) bool {
	trimmed := strings.TrimRight(line, " \t\r\n")
	return trimmed == "---" || trimmed == "..."
}

// isEmptyDocument reports whether a decoded document holds nothing, as left
// by a trailing "---" separator.
func isEmptyDocument(doc *yaml.Node) bool {
	if len(doc.Content) == 0 {
		return true
	}
	if len(doc.Content) != 1 {
		return false
	}
	n := doc.Content[0]
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func (d *Document) reencode() error {
	out, err := encode(d.root)
	if err != nil {
		return err
	}
	return d.reload(out)
}

func (d *Document) reload(raw []byte) error {
	parsed, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("re-parsing edited document: %w", err)
	}
	*d = *parsed
	return nil
}

func encode(node *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, errors.Wrap(err, errors.TypeSecretParsing, "encoding YAML")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, errors.TypeSecretParsing, "encoding YAML")
	}
	return buf.Bytes(), nil
}

func lookup(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func setKey(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = value
			return
		}
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}

func deleteKey(node *yaml.Node, key string) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			return
		}
	}
}

// mergeInto updates existing keys in place and appends new keys sorted.
func mergeInto(node *yaml.Node, values map[string]string) {
	seen := make(map[string]bool, len(values))
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i].Value
		if v, ok := values[k]; ok {
			node.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: values[k]})
	}
	node.Style = 0
}

func scalar(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

func stringMap(node *yaml.Node) map[string]string {
	out := make(map[string]string)
	if node == nil || node.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		out[node.Content[i].Value] = node.Content[i+1].Value
	}
	return out
}
