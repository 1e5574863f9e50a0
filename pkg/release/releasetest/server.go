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

// Package releasetest serves a fake kubeseal release host for tests.
package releasetest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Server is an httptest server exposing a release index and tar.gz artifacts
// at <URL>/download/v<version>/kubeseal-<version>-<os>-<arch>.tar.gz.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	tags      []string
	artifacts map[string][]byte
	hits      map[string]int
	failIndex bool
}

// NewServer starts a server publishing the given tags. Call Publish to add
// artifacts.
func NewServer(t *testing.T, tags ...string) *Server {
	t.Helper()
	s := &Server{
		tags:      tags,
		artifacts: make(map[string][]byte),
		hits:      make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the release download base for Options.BaseURL.
func (s *Server) BaseURL() string { return s.URL + "/download" }

// IndexURL is the release index for Options.IndexURL.
func (s *Server) IndexURL() string { return s.URL + "/releases" }

// FailIndex makes the release index answer 503.
func (s *Server) FailIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failIndex = true
}

// Publish adds an artifact whose kubeseal member contains script.
func (s *Server) Publish(t *testing.T, version, token, script string) {
	t.Helper()
	name := fmt.Sprintf("/download/v%s/kubeseal-%s-%s.tar.gz", version, version, token)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[name] = Archive(t, map[string]string{
		"LICENSE":   "Apache-2.0\n",
		"README.md": "kubeseal\n",
		"kubeseal":  script,
	})
}

// PublishRaw adds an artifact with arbitrary bytes.
func (s *Server) PublishRaw(version, token string, body []byte) {
	name := fmt.Sprintf("/download/v%s/kubeseal-%s-%s.tar.gz", version, version, token)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[name] = body
}

// Downloads returns the number of GET requests served for artifacts.
func (s *Server) Downloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, count := range s.hits {
		if strings.HasPrefix(key, http.MethodGet+" /download/") {
			n += count
		}
	}
	return n
}

// Requests returns the total number of requests served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, count := range s.hits {
		n += count
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.Method+" "+r.URL.Path]++
	failIndex := s.failIndex
	body, ok := s.artifacts[r.URL.Path]
	tags := append([]string(nil), s.tags...)
	s.mu.Unlock()

	if r.URL.Path == "/releases" {
		if failIndex {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		releases := make([]map[string]interface{}, 0, len(tags))
		for _, tag := range tags {
			releases = append(releases, map[string]interface{}{
				"tag_name":   tag,
				"draft":      false,
				"prerelease": strings.Contains(tag, "-rc"),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(releases)
		return
	}

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	_, _ = w.Write(body)
}

// Archive builds a tar.gz with the given regular files, all mode 0755.
func Archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("writing tar body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	return buf.Bytes()
}
