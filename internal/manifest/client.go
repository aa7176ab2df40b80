// Package manifest fetches and parses the upstream Go release manifest and
// resolves the archive descriptor for a requested version on the running
// platform. Grounded on the teacher's internal/cli/update.go
// fetchLatestVersion (GET + JSON decode + platform-asset matching) and the
// govman/goup family's download-URL resolution.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/govm-project/govm/internal/govmerr"
	"github.com/govm-project/govm/internal/platform"
)

// DefaultEndpoint is the official Go release manifest, as published at
// go.dev. NewClient copies it into Client.Endpoint, which tests override
// to point at an httptest.Server.
const DefaultEndpoint = "https://go.dev/dl/?mode=json&include=all"

// DefaultDownloadBase is where archive filenames resolve relative to.
const DefaultDownloadBase = "https://go.dev/dl"

// Client fetches the upstream manifest once per process and serves
// Resolve/ListAvailable from an in-memory cache, per §4.2: "no on-disk
// caching of the manifest is required."
type Client struct {
	Endpoint     string
	DownloadBase string
	HTTP         *retryablehttp.Client
	Log          zerolog.Logger

	mu    sync.Mutex
	cache []ReleaseManifestEntry
}

// NewClient builds a manifest Client with a retrying HTTP transport. The
// manifest fetch's retry policy is deliberately the retryablehttp
// default (distinct from the downloader's bespoke per-chunk backoff),
// per SPEC_FULL's Open Question 2 resolution.
func NewClient(log zerolog.Logger) *Client {
	hc := retryablehttp.NewClient()
	hc.Logger = nil // the teacher routes all logging through zerolog, not retryablehttp's own logger
	return &Client{
		Endpoint:     DefaultEndpoint,
		DownloadBase: DefaultDownloadBase,
		HTTP:         hc,
		Log:          log,
	}
}

// fetch populates the in-memory cache on first use.
func (c *Client) fetch(ctx context.Context) ([]ReleaseManifestEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache != nil {
		return c.cache, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, govmerr.New(govmerr.Transport, c.Endpoint, err)
	}

	c.Log.Debug().Str("url", c.Endpoint).Msg("fetching release manifest")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, govmerr.New(govmerr.Transport, c.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := govmerr.HTTPStatusFatal
		if resp.StatusCode >= 500 {
			kind = govmerr.Transport
		}
		return nil, govmerr.Newf(kind, c.Endpoint, "manifest fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, govmerr.New(govmerr.Transport, c.Endpoint, err)
	}

	var raw []rawManifestEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, govmerr.New(govmerr.Integrity, c.Endpoint, fmt.Errorf("malformed manifest JSON: %w", err))
	}

	entries := make([]ReleaseManifestEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, ReleaseManifestEntry{
			Version: strings.TrimPrefix(r.Version, "go"),
			Stable:  r.Stable,
			Files:   r.Files,
		})
	}

	sortDescending(entries)
	c.cache = entries
	return entries, nil
}

func sortDescending(entries []ReleaseManifestEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		vi, erri := semver.NewVersion(entries[i].Version)
		vj, errj := semver.NewVersion(entries[j].Version)
		if erri != nil || errj != nil {
			return entries[i].Version > entries[j].Version
		}
		return vi.GreaterThan(vj)
	})
}

// Entries returns the full parsed manifest, fetching and caching it on
// first use. Exposed for callers (like "status --verify-cache") that need
// to cross-reference a cached filename back to its recorded checksum.
func (c *Client) Entries(ctx context.Context) ([]ReleaseManifestEntry, error) {
	return c.fetch(ctx)
}

// ListAvailable returns versions that publish an archive file matching d,
// in descending release order.
func (c *Client) ListAvailable(ctx context.Context, d platform.Descriptor) ([]string, error) {
	entries, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, e := range entries {
		if _, ok := findArchive(e, d); ok {
			versions = append(versions, e.Version)
		}
	}
	return versions, nil
}

// Resolve returns the archive FileDescriptor for version on platform d.
func (c *Client) Resolve(ctx context.Context, version string, d platform.Descriptor) (FileDescriptor, error) {
	entries, err := c.fetch(ctx)
	if err != nil {
		return FileDescriptor{}, err
	}

	for _, e := range entries {
		if e.Version != version {
			continue
		}
		fd, ok := findArchive(e, d)
		if !ok {
			return FileDescriptor{}, govmerr.Newf(govmerr.Input, version,
				"%w: no archive published for %s", govmerr.ErrUnsupportedPlatform, d.AssetSuffix())
		}
		return fd, nil
	}

	return FileDescriptor{}, govmerr.Newf(govmerr.Input, version, "%w: %s", govmerr.ErrVersionNotFound, version)
}

// findArchive returns the unique kind=archive entry matching d, per §3:
// "The client selects the unique entry with kind = archive matching the
// current PlatformDescriptor."
func findArchive(e ReleaseManifestEntry, d platform.Descriptor) (FileDescriptor, bool) {
	for _, f := range e.Files {
		if f.Kind != KindArchive {
			continue
		}
		if f.OS == d.OS && f.Arch == d.Arch {
			return f, true
		}
	}
	return FileDescriptor{}, false
}
