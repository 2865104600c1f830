// Package index resolves package specs against a PyPI-compatible source index
// and downloads the chosen distribution.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/util"
)

const (
	// DefaultMaxDownloadSize bounds a single download when no limit is configured.
	DefaultMaxDownloadSize = 1 << 30

	// maxMetadataSize bounds JSON API responses.
	maxMetadataSize = 32 << 20

	defaultUserAgent = "granny/1.0"
)

// ReleaseFile is one distribution file of a release as reported by the JSON API.
type ReleaseFile struct {
	Filename    string  `json:"filename"`
	URL         string  `json:"url"`
	PackageType string  `json:"packagetype"`
	Size        int64   `json:"size"`
	Yanked      bool    `json:"yanked"`
	Digests     Digests `json:"digests"`
}

type Digests struct {
	SHA256 string `json:"sha256"`
	MD5    string `json:"md5"`
}

// ReleaseInfo is the subset of a JSON API project/release document granny uses.
type ReleaseInfo struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
	URLs []ReleaseFile `json:"urls"`
}

// Client talks to the source index JSON API.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	maxSize   int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithMaxDownloadSize bounds the size of a downloaded distribution.
func WithMaxDownloadSize(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxSize = n
		}
	}
}

// NewClient returns a Client for the index rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		maxSize:   DefaultMaxDownloadSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Release fetches the release document for name, pinned to version when it is
// not empty, otherwise the latest release.
func (c *Client) Release(ctx context.Context, name, version string) (*ReleaseInfo, error) {
	project := util.NormalizeProjectName(name)
	endpoint := c.baseURL + "/pypi/" + url.PathEscape(project) + "/json"
	if version != "" {
		endpoint = c.baseURL + "/pypi/" + url.PathEscape(project) + "/" + url.PathEscape(version) + "/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.WrapError(models.ErrTransport, err, "fetching release info for %s", name)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if version != "" {
			return nil, models.NewError(models.ErrNotFound, "%s version %s not found on %s", name, version, c.baseURL)
		}
		return nil, models.NewError(models.ErrNotFound, "%s not found on %s", name, c.baseURL)
	case resp.StatusCode != http.StatusOK:
		return nil, models.NewError(models.ErrTransport, "fetching release info for %s: HTTP %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, models.WrapError(models.ErrTransport, err, "reading release info for %s", name)
	}

	var info ReleaseInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, models.WrapError(models.ErrTransport, err, "parsing release info for %s", name)
	}
	return &info, nil
}

// SelectCandidate picks the file to promote from a release: a source
// distribution first, then a pure-Python wheel, then an egg. Yanked files and
// unsupported formats are never chosen.
func SelectCandidate(files []ReleaseFile) (ReleaseFile, bool) {
	rank := func(f ReleaseFile) int {
		name := strings.ToLower(f.Filename)
		switch models.KindOf(name) {
		case models.ArchiveTarGz, models.ArchiveZip:
			return 0
		case models.ArchivePrebuilt:
			if strings.HasSuffix(name, "-none-any"+models.WheelSuffix) {
				return 1
			}
			if strings.HasSuffix(name, models.EggSuffix) {
				return 2
			}
		}
		return -1
	}

	best, bestRank := ReleaseFile{}, -1
	for _, f := range files {
		if f.Yanked || f.URL == "" {
			continue
		}
		r := rank(f)
		if r < 0 {
			continue
		}
		if bestRank < 0 || r < bestRank {
			best, bestRank = f, r
		}
	}
	return best, bestRank >= 0
}
