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

package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// Load reads and parses a manifest file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound, "manifest not found"), path)
		}
		return nil, errors.WithFile(errors.Wrap(err, errors.TypeSecretParsing, "reading manifest"), path)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, errors.WithFile(err, path)
	}
	return doc, nil
}

// WriteFile atomically replaces path with data, so readers see either the
// old or the new content.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return errors.WithFile(errors.Wrap(err, errors.TypeFileWrite, "creating temporary file"), path)
	}
	defer f.Cleanup()

	if _, err := f.Write(data); err != nil {
		return errors.WithFile(errors.Wrap(err, errors.TypeFileWrite, "writing file"), path)
	}
	if err := f.Chmod(perm); err != nil {
		return errors.WithFile(errors.Wrap(err, errors.TypeFileWrite, "setting file mode"), path)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return errors.WithFile(errors.Wrap(err, errors.TypeFileWrite, "replacing file"), path)
	}
	return nil
}

// Save writes the document back to path, keeping the file's mode.
func (d *Document) Save(path string) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return WriteFile(path, d.raw, perm)
}

// IsPlainPath reports whether path names a plaintext counterpart (X.plain.yaml).
func IsPlainPath(path string) bool {
	ext := filepath.Ext(path)
	return strings.HasSuffix(strings.TrimSuffix(path, ext), config.PlainMarker)
}

// PlainPathFor returns the plaintext counterpart of a SealedSecret file:
// dir/X.yaml becomes dir/X.plain.yaml.
func PlainPathFor(sealedPath string) string {
	ext := filepath.Ext(sealedPath)
	return strings.TrimSuffix(sealedPath, ext) + config.PlainMarker + ext
}

// SealedPathFor returns where a Secret file's sealed output lives:
// X.plain.yaml becomes X.yaml, any other X.yaml becomes X.sealed.yaml.
func SealedPathFor(secretPath string) string {
	ext := filepath.Ext(secretPath)
	base := strings.TrimSuffix(secretPath, ext)
	if strings.HasSuffix(base, config.PlainMarker) {
		return strings.TrimSuffix(base, config.PlainMarker) + ext
	}
	return base + config.SealedMarker + ext
}
