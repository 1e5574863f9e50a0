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

// Package cache resolves the kubeseal binary for a run: from a versioned
// local cache, a fresh download, or the system PATH.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/kube-zen/kubeseal-auto/pkg/errors"
	"github.com/kube-zen/kubeseal-auto/pkg/logging"
	"github.com/kube-zen/kubeseal-auto/pkg/metrics"
	"github.com/kube-zen/kubeseal-auto/pkg/platform"
	"github.com/kube-zen/kubeseal-auto/pkg/release"
)

// Provenance records where a binary came from.
type Provenance string

const (
	ProvenanceDownloaded Provenance = "downloaded"
	ProvenanceCached     Provenance = "cached"
	ProvenanceSystem     Provenance = "system"
)

// BinaryHandle is a resolved kubeseal executable, reused for every
// invocation in a run.
type BinaryHandle struct {
	Path       string
	Version    string
	Provenance Provenance
}

func (h BinaryHandle) String() string {
	if h.Version == "" {
		return fmt.Sprintf("%s (%s)", h.Path, h.Provenance)
	}
	return fmt.Sprintf("%s %s (%s)", h.Path, h.Version, h.Provenance)
}

// Fetcher is the part of the release fetcher the cache needs.
type Fetcher interface {
	ListVersions(ctx context.Context) ([]*semver.Version, error)
	ResolveAsset(ctx context.Context, version *semver.Version, token platform.Token) (string, error)
	Download(ctx context.Context, url, destination string) error
}

// Warner receives user-visible warnings for degraded paths.
type Warner interface {
	Warnf(format string, args ...interface{})
}

// Request describes what binary a run needs.
type Request struct {
	// Version is the controller's version, nil when it could not be determined.
	Version *semver.Version
	// Detached restricts resolution to the system PATH.
	Detached bool
}

// Options configures a Cache.
type Options struct {
	Dir        string
	BinaryName string
	Platform   platform.Token
	Fetcher    Fetcher
	LookPath   func(file string) (string, error)
	Warner     Warner
	Logger     *logging.Logger
}

// Cache is a directory of downloaded kubeseal binaries keyed by version.
// Entries are never evicted.
type Cache struct {
	opts Options
}

// New creates a Cache.
func New(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger()
	}
	return &Cache{opts: opts}
}

// PathFor returns the cache location of a version.
func (c *Cache) PathFor(version *semver.Version) string {
	return filepath.Join(c.opts.Dir, fmt.Sprintf("%s-%s", c.opts.BinaryName, version))
}

// Resolve returns a binary for req.
func (c *Cache) Resolve(ctx context.Context, req Request) (BinaryHandle, error) {
	handle, err := c.resolve(ctx, req)
	if err != nil {
		return BinaryHandle{}, err
	}
	metrics.RecordBinaryResolve(string(handle.Provenance))
	c.opts.Logger.WithField("path", handle.Path).WithField("provenance", handle.Provenance).
		WithVersion(handle.Version).Debug("kubeseal binary resolved")
	return handle, nil
}

func (c *Cache) resolve(ctx context.Context, req Request) (BinaryHandle, error) {
	if req.Detached {
		handle, err := c.system()
		if err != nil {
			return BinaryHandle{}, errors.Wrap(err, errors.TypeBinaryNotOnPath,
				c.opts.BinaryName+" must be on PATH in detached mode")
		}
		return handle, nil
	}

	if req.Version == nil {
		if handle, err := c.system(); err == nil {
			return handle, nil
		}
		c.warnf("%s is not on PATH, downloading the latest release", c.opts.BinaryName)
		return c.latest(ctx)
	}

	if handle, ok := c.cached(req.Version); ok {
		return handle, nil
	}

	handle, err := c.download(ctx, req.Version)
	if err == nil {
		return handle, nil
	}
	c.warnf("could not download %s %s (%v), falling back to the latest release", c.opts.BinaryName, req.Version, err)
	return c.latest(ctx)
}

// latest resolves the newest upstream release, falling back to PATH when
// upstream cannot be reached.
func (c *Cache) latest(ctx context.Context) (BinaryHandle, error) {
	versions, err := c.opts.Fetcher.ListVersions(ctx)
	if err != nil {
		return c.systemFallback(err)
	}
	latest := release.Latest(versions)
	if latest == nil {
		return c.systemFallback(errors.New(errors.TypeUpstreamUnavailable, "release index lists no versions"))
	}
	if handle, ok := c.cached(latest); ok {
		return handle, nil
	}
	handle, err := c.download(ctx, latest)
	if err != nil {
		return c.systemFallback(err)
	}
	return handle, nil
}

func (c *Cache) systemFallback(cause error) (BinaryHandle, error) {
	handle, err := c.system()
	if err != nil {
		return BinaryHandle{}, errors.Wrapf(cause, errors.TypeBinaryUnresolvable,
			"no %s binary available: nothing cached, download failed and none on PATH", c.opts.BinaryName)
	}
	c.warnf("using %s from PATH (%s) because no matching release could be downloaded: %v",
		c.opts.BinaryName, handle.Path, cause)
	return handle, nil
}

func (c *Cache) download(ctx context.Context, version *semver.Version) (BinaryHandle, error) {
	url, err := c.opts.Fetcher.ResolveAsset(ctx, version, c.opts.Platform)
	if err != nil {
		return BinaryHandle{}, err
	}
	dest := c.PathFor(version)
	if err := c.opts.Fetcher.Download(ctx, url, dest); err != nil {
		return BinaryHandle{}, errors.WithVersion(err, version.String())
	}
	return BinaryHandle{Path: dest, Version: version.String(), Provenance: ProvenanceDownloaded}, nil
}

func (c *Cache) cached(version *semver.Version) (BinaryHandle, bool) {
	path := c.PathFor(version)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return BinaryHandle{}, false
	}
	return BinaryHandle{Path: path, Version: version.String(), Provenance: ProvenanceCached}, true
}

func (c *Cache) system() (BinaryHandle, error) {
	if c.opts.LookPath == nil {
		return BinaryHandle{}, errors.New(errors.TypeBinaryNotOnPath, "PATH lookup unavailable")
	}
	path, err := c.opts.LookPath(c.opts.BinaryName)
	if err != nil {
		return BinaryHandle{}, errors.Wrap(err, errors.TypeBinaryNotOnPath, c.opts.BinaryName+" not found on PATH")
	}
	return BinaryHandle{Path: path, Provenance: ProvenanceSystem}, nil
}

func (c *Cache) warnf(format string, args ...interface{}) {
	c.opts.Logger.Warnf(format, args...)
	if c.opts.Warner != nil {
		c.opts.Warner.Warnf(format, args...)
	}
}
