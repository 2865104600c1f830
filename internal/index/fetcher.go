package index

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spachava753/granny/internal/models"
)

// Fetcher downloads exactly one distribution archive for a PackageSpec.
type Fetcher struct {
	client *Client
}

// NewFetcher returns a Fetcher backed by client.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch resolves spec and writes the chosen distribution into destDir, which
// must already exist. The returned Archive names the single file written.
func (f *Fetcher) Fetch(ctx context.Context, spec models.PackageSpec, destDir string) (models.Archive, error) {
	if err := spec.Validate(); err != nil {
		return models.Archive{}, err
	}
	info, err := os.Stat(destDir)
	if err != nil {
		return models.Archive{}, fmt.Errorf("checking destination directory: %w", err)
	}
	if !info.IsDir() {
		return models.Archive{}, fmt.Errorf("destination %s is not a directory", destDir)
	}

	if spec.IsURI() {
		return f.fetchURI(ctx, spec.URI, destDir)
	}
	return f.fetchName(ctx, spec, destDir)
}

func (f *Fetcher) fetchName(ctx context.Context, spec models.PackageSpec, destDir string) (models.Archive, error) {
	slog.Debug("resolving release", "name", spec.Name, "version", spec.Version)

	release, err := f.client.Release(ctx, spec.Name, spec.Version)
	if err != nil {
		return models.Archive{}, err
	}

	file, ok := SelectCandidate(release.URLs)
	if !ok {
		return models.Archive{}, models.NewError(models.ErrNotFound,
			"no usable distribution for %s %s (need an sdist, a pure wheel or an egg)", spec.Name, release.Info.Version)
	}

	filename, err := safeFilename(file.Filename)
	if err != nil {
		return models.Archive{}, err
	}
	dest := filepath.Join(destDir, filename)

	slog.Info("downloading distribution", "name", release.Info.Name, "version", release.Info.Version, "file", filename)
	if err := f.client.Download(ctx, file.URL, dest, file.Digests.SHA256); err != nil {
		return models.Archive{}, err
	}
	return models.NewArchive(dest), nil
}

func (f *Fetcher) fetchURI(ctx context.Context, uri, destDir string) (models.Archive, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return models.Archive{}, models.WrapError(models.ErrInvalidSpec, err, "parsing URI %s", uri)
	}
	wantSHA256 := digestFromFragment(u.Fragment)
	u.Fragment = ""

	switch u.Scheme {
	case "http", "https":
		filename, err := safeFilename(path.Base(u.Path))
		if err != nil {
			return models.Archive{}, err
		}
		dest := filepath.Join(destDir, filename)
		slog.Info("downloading distribution", "uri", u.String(), "file", filename)
		if err := f.client.Download(ctx, u.String(), dest, wantSHA256); err != nil {
			return models.Archive{}, err
		}
		return models.NewArchive(dest), nil

	case "file", "":
		src := u.Path
		filename, err := safeFilename(filepath.Base(src))
		if err != nil {
			return models.Archive{}, err
		}
		dest := filepath.Join(destDir, filename)
		slog.Info("copying distribution", "path", src, "file", filename)
		if err := f.client.copyLocal(src, dest, wantSHA256); err != nil {
			return models.Archive{}, err
		}
		return models.NewArchive(dest), nil

	default:
		return models.Archive{}, models.NewError(models.ErrInvalidSpec, "unsupported URI scheme %q", u.Scheme)
	}
}

// digestFromFragment extracts the hex digest of a "sha256=<hex>" fragment.
func digestFromFragment(fragment string) string {
	for _, part := range strings.Split(fragment, "&") {
		if v, ok := strings.CutPrefix(part, "sha256="); ok {
			return v
		}
	}
	return ""
}

func safeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" || strings.ContainsAny(name, `/\`) {
		return "", models.NewError(models.ErrInvalidSpec, "cannot derive a file name from %q", name)
	}
	return name, nil
}
