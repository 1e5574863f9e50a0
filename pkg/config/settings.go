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

package config

import (
	"os"
	"path/filepath"
	"time"

	env "github.com/allisson/go-env"
)

// Environment variables read by LoadSettings.
const (
	EnvCacheDir        = "KUBESEAL_AUTO_CACHE_DIR"
	EnvReleaseBaseURL  = "KUBESEAL_AUTO_RELEASE_URL"
	EnvReleaseIndexURL = "KUBESEAL_AUTO_RELEASE_INDEX_URL"
	EnvHTTPTimeout     = "KUBESEAL_AUTO_HTTP_TIMEOUT_SECONDS"
	EnvHTTPRetryMax    = "KUBESEAL_AUTO_HTTP_RETRY_MAX"
	EnvAPITimeout      = "KUBESEAL_AUTO_API_TIMEOUT_SECONDS"
	EnvBinaryName      = "KUBESEAL_AUTO_BINARY"
)

// Settings are the environment-derived knobs of a run.
type Settings struct {
	CacheDir        string
	ReleaseBaseURL  string
	ReleaseIndexURL string
	HTTPTimeout     time.Duration
	HTTPRetryMax    int
	APITimeout      time.Duration
	BinaryName      string
}

// LoadSettings reads Settings from the environment.
func LoadSettings() Settings {
	s := Settings{
		CacheDir:        env.GetString(EnvCacheDir, defaultCacheDir()),
		ReleaseBaseURL:  env.GetString(EnvReleaseBaseURL, DefaultReleaseBaseURL),
		ReleaseIndexURL: env.GetString(EnvReleaseIndexURL, DefaultReleaseIndexURL),
		HTTPTimeout:     env.GetDuration(EnvHTTPTimeout, int64(DefaultHTTPTimeout/time.Second), time.Second),
		HTTPRetryMax:    env.GetInt(EnvHTTPRetryMax, DefaultHTTPRetryMax),
		APITimeout:      env.GetDuration(EnvAPITimeout, int64(DefaultAPITimeout/time.Second), time.Second),
		BinaryName:      env.GetString(EnvBinaryName, BinaryName),
	}
	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = DefaultHTTPTimeout
	}
	if s.APITimeout <= 0 {
		s.APITimeout = DefaultAPITimeout
	}
	if s.HTTPRetryMax < 0 {
		s.HTTPRetryMax = 0
	}
	return s
}

func defaultCacheDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, CacheSubdir)
}
