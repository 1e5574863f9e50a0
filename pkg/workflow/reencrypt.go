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

package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/manifest"
	"github.com/kube-zen/kubeseal-auto/pkg/metrics"
	"github.com/kube-zen/kubeseal-auto/pkg/secrets"
)

const manifestPattern = "**/*.{yaml,yml}"

// FileResult is the reencrypt outcome of one file.
type FileResult struct {
	Path string
	Err  error
}

type reencryptOutcome int

const (
	outcomeRewritten reencryptOutcome = iota
	outcomeSkipped
)

// runReencrypt reseals every SealedSecret under the directory from its
// plaintext counterpart. One failing file does not stop the batch.
func (o *Orchestrator) runReencrypt(ctx context.Context) error {
	dir := o.resolvePath(o.cfg.ReencryptDir)
	info, err := os.Stat(dir)
	if err != nil {
		return errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound, "reencrypt directory not found"), dir)
	}
	if !info.IsDir() {
		return errors.WithFile(errors.New(errors.TypeInvalidArguments, "--reencrypt expects a directory"), dir)
	}

	files, err := manifestFiles(dir)
	if err != nil {
		return err
	}
	if err := o.prepareSealing(ctx); err != nil {
		return err
	}

	var rewritten, failed []FileResult
	for _, path := range files {
		outcome, err := o.reencryptFile(ctx, path)
		if err != nil {
			metrics.RecordReencryptFile("error")
			failed = append(failed, FileResult{Path: path, Err: err})
			o.log.WithFile(path).WithError(err).Debug("reencrypt failed")
			continue
		}
		if outcome == outcomeSkipped {
			metrics.RecordReencryptFile("skipped")
			continue
		}
		metrics.RecordReencryptFile("success")
		rewritten = append(rewritten, FileResult{Path: path})
		o.deps.UI.Successf("Resealed %s", path)
	}

	for _, f := range failed {
		o.deps.UI.Errorf("%s: %v", f.Path, f.Err)
	}
	total := len(rewritten) + len(failed)
	if total == 0 {
		o.deps.UI.Warnf("No SealedSecret files found in %s", dir)
		return nil
	}
	o.deps.UI.Infof("Reencrypt summary: %d rewritten, %d failed", len(rewritten), len(failed))
	if len(failed) > 0 {
		return errors.New(errors.TypeBatchPartialFailure,
			fmt.Sprintf("reencrypt failed for %d of %d files", len(failed), total))
	}
	return nil
}

func (o *Orchestrator) reencryptFile(ctx context.Context, path string) (reencryptOutcome, error) {
	doc, err := manifest.Load(path)
	if err != nil {
		return 0, err
	}
	if doc.Kind() != manifest.KindSealedSecret {
		o.log.WithFile(path).Debugf("skipping kind %q", doc.Kind())
		return outcomeSkipped, nil
	}
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	plainPath := manifest.PlainPathFor(path)
	if _, err := os.Stat(plainPath); err != nil {
		return 0, errors.WithFile(errors.Wrap(err, errors.TypeFileNotFound,
			"no plaintext counterpart "+filepath.Base(plainPath)), path)
	}
	plain, err := loadSecret(plainPath)
	if err != nil {
		return 0, err
	}
	values, err := plain.SecretValues()
	if err != nil {
		return 0, errors.WithFile(err, plainPath)
	}
	if len(values) == 0 {
		return 0, errors.WithFile(errors.New(errors.TypeSecretParsing, "plaintext counterpart holds no values"), plainPath)
	}

	target := &editTarget{
		sealed:     doc,
		sealedPath: path,
		plain:      plain,
		plainPath:  plainPath,
		staging:    values,
		namespace:  o.defaultNamespace(),
	}
	staging, err := o.stagingSecret(ctx, target, values)
	if err != nil {
		return 0, err
	}
	rendered, err := secrets.Render(staging)
	if err != nil {
		return 0, err
	}
	sealed, err := o.seal(ctx, rendered)
	if err != nil {
		return 0, err
	}
	fresh, err := manifest.Parse(sealed)
	if err != nil {
		return 0, errors.Wrap(err, errors.TypeSealCommandFailed, "kubeseal produced unreadable output")
	}
	if err := doc.ReplaceEncryptedData(fresh.EncryptedData()); err != nil {
		return 0, err
	}
	return outcomeRewritten, doc.Save(path)
}

// manifestFiles lists YAML files under dir, plaintext counterparts excluded.
func manifestFiles(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), manifestPattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeInvalidArguments, "scanning "+dir)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		path := filepath.Join(dir, filepath.FromSlash(m))
		if manifest.IsPlainPath(path) {
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}
