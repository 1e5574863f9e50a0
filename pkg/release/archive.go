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

package release

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// installFromArchive extracts the member named binary from a tar.gz stream
// into a temporary file next to destination, then renames it into place.
func installFromArchive(r io.Reader, binary, destination string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, errors.TypeUpstreamUnavailable, "artifact is not a gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return errors.New(errors.TypeAssetNotFound, "artifact does not contain "+binary)
		}
		if err != nil {
			return errors.Wrap(err, errors.TypeUpstreamUnavailable, "reading artifact")
		}
		if hdr.Typeflag != tar.TypeReg || path.Base(hdr.Name) != binary {
			continue
		}
		return writeExecutable(tr, destination)
	}
}

func writeExecutable(r io.Reader, destination string) error {
	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.TypeBinaryUnresolvable, "creating cache directory")
	}

	f, err := renameio.TempFile(dir, destination)
	if err != nil {
		return errors.Wrap(err, errors.TypeBinaryUnresolvable, "creating temporary file")
	}
	// Only a complete, executable binary reaches destination.
	defer f.Cleanup()

	if _, err := io.Copy(f, r); err != nil {
		return errors.Wrap(err, errors.TypeUpstreamUnavailable, "writing kubeseal binary")
	}
	if err := f.Chmod(0o755); err != nil {
		return errors.Wrap(err, errors.TypeBinaryUnresolvable, "making kubeseal executable")
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return errors.Wrap(err, errors.TypeBinaryUnresolvable, "installing kubeseal binary")
	}
	return nil
}
