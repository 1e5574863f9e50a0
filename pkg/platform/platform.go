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

// Package platform maps the host OS and CPU architecture to the naming
// token used by upstream kubeseal release artifacts.
package platform

import (
	"runtime"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
)

// Token identifies a release artifact platform, e.g. linux-amd64.
type Token struct {
	OS   string
	Arch string
}

// String returns the token as it appears in artifact file names.
func (t Token) String() string {
	return t.OS + "-" + t.Arch
}

var supported = map[string]map[string]bool{
	"linux":  {"amd64": true, "arm64": true},
	"darwin": {"amd64": true, "arm64": true},
}

// Resolve returns the artifact token for the given GOOS/GOARCH pair.
func Resolve(goos, goarch string) (Token, error) {
	archs, ok := supported[goos]
	if !ok || !archs[goarch] {
		return Token{}, errors.New(errors.TypeUnsupportedPlatform,
			"unsupported platform "+goos+"/"+goarch+": kubeseal releases are published for linux and darwin on amd64 and arm64")
	}
	return Token{OS: goos, Arch: goarch}, nil
}

// Current resolves the token for the running process.
func Current() (Token, error) {
	return Resolve(runtime.GOOS, runtime.GOARCH)
}
