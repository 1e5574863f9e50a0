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

// Package release queries and downloads upstream kubeseal releases.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/kube-zen/kubeseal-auto/pkg/config"
	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/logging"
	"github.com/kube-zen/kubeseal-auto/pkg/metrics"
	"github.com/kube-zen/kubeseal-auto/pkg/platform"
)

// Options configures a Fetcher.
type Options struct {
	BaseURL    string
	IndexURL   string
	BinaryName string
	Timeout    time.Duration
	RetryMax   int
	Logger     *logging.Logger
}

// OptionsFromSettings builds Options from run settings.
func OptionsFromSettings(s config.Settings) Options {
	return Options{
		BaseURL:    s.ReleaseBaseURL,
		IndexURL:   s.ReleaseIndexURL,
		BinaryName: s.BinaryName,
		Timeout:    s.HTTPTimeout,
		RetryMax:   s.HTTPRetryMax,
	}
}

// Fetcher talks to the upstream release host.
type Fetcher struct {
	client     *retryablehttp.Client
	baseURL    string
	indexURL   string
	binaryName string
	logger     *logging.Logger
}

// NewFetcher creates a Fetcher with bounded timeouts and retries.
func NewFetcher(opts Options) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultReleaseBaseURL
	}
	if opts.IndexURL == "" {
		opts.IndexURL = config.DefaultReleaseIndexURL
	}
	if opts.BinaryName == "" {
		opts.BinaryName = config.BinaryName
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultHTTPTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = logging.NewLeveled(opts.Logger.WithField("component", "release"))

	return &Fetcher{
		client:     client,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		indexURL:   opts.IndexURL,
		binaryName: opts.BinaryName,
		logger:     opts.Logger,
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// ListVersions returns stable released versions in ascending order.
func (f *Fetcher) ListVersions(ctx context.Context) ([]*semver.Version, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.indexURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeUpstreamUnavailable, "building release index request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeUpstreamUnavailable, "fetching release index")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.TypeUpstreamUnavailable,
			fmt.Sprintf("release index returned %s", resp.Status))
	}

	var releases []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, errors.Wrap(err, errors.TypeUpstreamUnavailable, "decoding release index")
	}

	versions := make([]*semver.Version, 0, len(releases))
	for _, r := range releases {
		if r.Draft || r.Prerelease || !strings.HasPrefix(r.TagName, "v") {
			continue
		}
		v, err := semver.NewVersion(r.TagName)
		if err != nil || v.Prerelease() != "" {
			f.logger.Debugf("skipping release tag %q", r.TagName)
			continue
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return nil, errors.New(errors.TypeUpstreamUnavailable, "release index lists no stable kubeseal versions")
	}

	sort.Sort(semver.Collection(versions))
	return versions, nil
}

// Latest returns the highest version of an ascending list, or nil.
func Latest(versions []*semver.Version) *semver.Version {
	if len(versions) == 0 {
		return nil
	}
	return versions[len(versions)-1]
}

// AssetURL builds the artifact URL for a version and platform.
func (f *Fetcher) AssetURL(version *semver.Version, token platform.Token) string {
	v := version.String()
	return fmt.Sprintf("%s/v%s/%s-%s-%s.tar.gz", f.baseURL, v, f.binaryName, v, token)
}

// ResolveAsset returns the download URL of a published artifact, or an
// AssetNotFound error if the version/platform pair was never published.
func (f *Fetcher) ResolveAsset(ctx context.Context, version *semver.Version, token platform.Token) (string, error) {
	url := f.AssetURL(version, token)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.TypeUpstreamUnavailable, "building asset request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.WithVersion(errors.Wrap(err, errors.TypeUpstreamUnavailable, "checking release asset"), version.String())
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return url, nil
	case resp.StatusCode == http.StatusNotFound:
		return "", errors.WithVersion(errors.New(errors.TypeAssetNotFound,
			fmt.Sprintf("no kubeseal %s artifact published for %s", version, token)), version.String())
	default:
		return "", errors.New(errors.TypeUpstreamUnavailable,
			fmt.Sprintf("release host returned %s for %s", resp.Status, url))
	}
}

// Download fetches a release archive and installs its kubeseal member at
// destination with executable permissions. Nothing is left at destination
// unless the whole archive member was written.
func (f *Fetcher) Download(ctx context.Context, url, destination string) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordDownload(metrics.Result(err), time.Since(start).Seconds())
	}()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, errors.TypeUpstreamUnavailable, "building download request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.TypeUpstreamUnavailable, "downloading "+url)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return errors.New(errors.TypeAssetNotFound, "artifact not found: "+url)
	default:
		return errors.New(errors.TypeUpstreamUnavailable,
			fmt.Sprintf("download of %s returned %s", url, resp.Status))
	}

	if err := installFromArchive(resp.Body, f.binaryName, destination); err != nil {
		return err
	}

	f.logger.WithField("url", url).WithField("path", destination).WithTiming(time.Since(start)).Info("kubeseal downloaded")
	return nil
}
