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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

const sealedHead = `# owned by the platform team
apiVersion: bitnami.com/v1alpha1
kind: SealedSecret
metadata:
    name: db
    namespace: apps
    annotations:
        sealedsecrets.bitnami.com/namespace-wide: "true"
        note: 'single quoted'
`

const sealedSpec = `spec:
  encryptedData:
    a: AgAAA
  template:
    type: Opaque
    metadata:
      name: db
      namespace: apps
`

func TestParse_Accessors(t *testing.T) {
	doc, err := Parse([]byte(sealedHead + sealedSpec))
	require.NoError(t, err)

	assert.Equal(t, KindSealedSecret, doc.Kind())
	assert.Equal(t, "db", doc.Name())
	assert.Equal(t, "apps", doc.Namespace())
	assert.Equal(t, "Opaque", doc.SecretType())
	assert.Equal(t, "true", doc.Annotations()["sealedsecrets.bitnami.com/namespace-wide"])
	assert.Equal(t, map[string]string{"a": "AgAAA"}, doc.EncryptedData())
	require.NoError(t, doc.Validate())
}

func TestParse_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":          "",
		"invalid yaml":   "kind: [unterminated\n",
		"scalar root":    "just a string\n",
		"multi document": "kind: Secret\n---\nkind: Secret\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeSecretParsing))
		})
	}
}

func TestParse_TrailingEmptyDocuments(t *testing.T) {
	for name, tail := range map[string]string{
		"separator":      "---\n",
		"end marker":     "...\n",
		"null document":  "---\n~\n",
		"two separators": "---\n---\n",
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := Parse([]byte(sealedHead + sealedSpec + tail))
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "AgAAA"}, doc.EncryptedData())

			require.NoError(t, doc.ReplaceEncryptedData(map[string]string{"x": "AgXXX"}))
			out := string(doc.Bytes())
			assert.True(t, strings.HasSuffix(out, tail), "trailing marker changed:\n%s", out)

			again, err := Parse(doc.Bytes())
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"x": "AgXXX"}, again.EncryptedData())
		})
	}
}

func TestSetSecretValues_AppendsBeforeTrailingSeparator(t *testing.T) {
	raw := "apiVersion: v1\nkind: Secret\nmetadata:\n  name: db\n---\n"
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)

	require.NoError(t, doc.SetSecretValues(map[string]string{"a": "1"}))

	out := string(doc.Bytes())
	assert.True(t, strings.HasSuffix(out, "---\n"), "separator moved:\n%s", out)
	assert.Regexp(t, "(?m)^data:", out)

	again, err := Parse(doc.Bytes())
	require.NoError(t, err)
	values, err := again.SecretValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1"}, values)
}

func TestValidate_MissingEncryptedData(t *testing.T) {
	doc, err := Parse([]byte(sealedHead + "spec:\n  template: {}\n"))
	require.NoError(t, err)
	assert.Error(t, doc.Validate())
}

func TestMergeEncryptedData_PreservesMetadataBytes(t *testing.T) {
	doc, err := Parse([]byte(sealedHead + sealedSpec))
	require.NoError(t, err)

	require.NoError(t, doc.MergeEncryptedData(map[string]string{"b": "AgBBB"}))

	out := string(doc.Bytes())
	assert.True(t, strings.HasPrefix(out, sealedHead), "metadata block changed:\n%s", out)
	assert.Equal(t, map[string]string{"a": "AgAAA", "b": "AgBBB"}, doc.EncryptedData())
	assert.Equal(t, "Opaque", doc.SecretType())
}

func TestReplaceEncryptedData_KeepsLaterBlocks(t *testing.T) {
	tail := "metadata:\n    name: db\n    labels: {team: core}\n"
	raw := "apiVersion: bitnami.com/v1alpha1\nkind: SealedSecret\n" + sealedSpec + tail
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)

	require.NoError(t, doc.ReplaceEncryptedData(map[string]string{"x": "AgXXX"}))

	out := string(doc.Bytes())
	assert.True(t, strings.HasPrefix(out, "apiVersion: bitnami.com/v1alpha1\nkind: SealedSecret\nspec:\n"))
	assert.True(t, strings.HasSuffix(out, tail), "trailing block changed:\n%s", out)
	assert.Equal(t, map[string]string{"x": "AgXXX"}, doc.EncryptedData())
}

func TestSetSecretValues_Data(t *testing.T) {
	raw := "apiVersion: v1\nkind: Secret\nmetadata:\n  name: db\ntype: Opaque\ndata:\n  a: MQ==\n"
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)

	values, err := doc.SecretValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1"}, values)

	values["b"] = "2"
	require.NoError(t, doc.SetSecretValues(values))

	out := string(doc.Bytes())
	assert.True(t, strings.HasPrefix(out, "apiVersion: v1\nkind: Secret\nmetadata:\n  name: db\ntype: Opaque\n"))
	assert.Contains(t, out, "b: Mg==")

	again, err := doc.SecretValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, again)
}

func TestSetSecretValues_StringDataOnly(t *testing.T) {
	raw := "apiVersion: v1\nkind: Secret\nmetadata:\n  name: db\nstringData:\n  a: \"1\"\n"
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)

	require.NoError(t, doc.SetSecretValues(map[string]string{"a": "1", "b": "2"}))

	values, err := doc.SecretValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, values)
	assert.NotRegexp(t, "(?m)^data:", string(doc.Bytes()))
}

func TestSetSecretValues_MixedCollapsesIntoData(t *testing.T) {
	raw := "apiVersion: v1\nkind: Secret\nmetadata:\n  name: db\ndata:\n  a: MQ==\nstringData:\n  b: \"2\"\n"
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)

	values, err := doc.SecretValues()
	require.NoError(t, err)
	require.NoError(t, doc.SetSecretValues(values))

	assert.NotContains(t, string(doc.Bytes()), "stringData")
	again, err := doc.SecretValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, again)
}

func TestSecretValues_BadBase64(t *testing.T) {
	doc, err := Parse([]byte("kind: Secret\ndata:\n  a: '%%%'\n"))
	require.NoError(t, err)
	_, err = doc.SecretValues()
	assert.Error(t, err)
}

func TestPrependAnnotationOption(t *testing.T) {
	raw := "apiVersion: bitnami.com/v1alpha1\nkind: SealedSecret\nmetadata:\n  name: db\n  annotations:\n    " +
		config.AnnotationArgoSyncOptions + ": Prune=false\nspec:\n  encryptedData:\n    a: AgAAA\n"
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)

	require.NoError(t, doc.PrependAnnotationOption(config.AnnotationArgoSyncOptions, config.ArgoSkipDryRun))
	assert.Equal(t, config.ArgoSkipDryRun+",Prune=false", doc.Annotations()[config.AnnotationArgoSyncOptions])

	require.NoError(t, doc.PrependAnnotationOption(config.AnnotationArgoSyncOptions, config.ArgoSkipDryRun))
	assert.Equal(t, config.ArgoSkipDryRun+",Prune=false", doc.Annotations()[config.AnnotationArgoSyncOptions])
}

func TestPrependAnnotationOption_NoAnnotations(t *testing.T) {
	doc, err := Parse([]byte("kind: SealedSecret\nmetadata:\n  name: db\n"))
	require.NoError(t, err)

	require.NoError(t, doc.PrependAnnotationOption(config.AnnotationArgoSyncOptions, config.ArgoSkipDryRun))
	assert.Equal(t, config.ArgoSkipDryRun, doc.Annotations()[config.AnnotationArgoSyncOptions])
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sealedHead+sealedSpec), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, doc.MergeEncryptedData(map[string]string{"b": "AgBBB"}))
	require.NoError(t, doc.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "AgAAA", "b": "AgBBB"}, reloaded.EncryptedData())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeFileNotFound))
}

func TestCounterpartPaths(t *testing.T) {
	assert.Equal(t, "dir/db.plain.yaml", PlainPathFor("dir/db.yaml"))
	assert.Equal(t, "db.plain.yml", PlainPathFor("db.yml"))
	assert.Equal(t, "dir/db.yaml", SealedPathFor("dir/db.plain.yaml"))
	assert.Equal(t, "dir/db.sealed.yaml", SealedPathFor("dir/db.yaml"))
	assert.True(t, IsPlainPath("dir/db.plain.yaml"))
	assert.False(t, IsPlainPath("dir/db.yaml"))
}
