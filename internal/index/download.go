package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spachava753/granny/internal/models"
)

// Download streams rawURL into destPath, enforcing the size limit and, when
// wantSHA256 is set, the digest. destPath is removed on any failure.
func (c *Client) Download(ctx context.Context, rawURL, destPath, wantSHA256 string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return models.WrapError(models.ErrInvalidSpec, err, "invalid download URL %s", rawURL)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return models.WrapError(models.ErrTransport, err, "downloading %s", rawURL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.NewError(models.ErrNotFound, "downloading %s: HTTP 404", rawURL)
	case resp.StatusCode != http.StatusOK:
		return models.NewError(models.ErrTransport, "downloading %s: HTTP %d", rawURL, resp.StatusCode)
	}

	if resp.ContentLength > c.maxSize {
		return models.NewError(models.ErrTransport, "%s is %d bytes, exceeds maximum download size of %d bytes",
			rawURL, resp.ContentLength, c.maxSize)
	}

	return c.save(resp.Body, destPath, wantSHA256, rawURL)
}

// copyLocal copies a local file into destPath with the same checks as Download.
func (c *Client) copyLocal(srcPath, destPath, wantSHA256 string) error {
	src, err := os.Open(srcPath)
	if errors.Is(err, os.ErrNotExist) {
		return models.WrapError(models.ErrNotFound, err, "opening %s", srcPath)
	}
	if err != nil {
		return models.WrapError(models.ErrTransport, err, "opening %s", srcPath)
	}
	defer func() {
		_ = src.Close()
	}()
	return c.save(src, destPath, wantSHA256, srcPath)
}

func (c *Client) save(r io.Reader, destPath, wantSHA256, source string) (err error) {
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", destPath, closeErr)
		}
		if err != nil {
			_ = os.Remove(destPath)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), io.LimitReader(r, c.maxSize+1))
	if err != nil {
		return models.WrapError(models.ErrTransport, err, "saving %s", source)
	}
	if n > c.maxSize {
		return models.NewError(models.ErrTransport, "%s exceeds maximum download size of %d bytes", source, c.maxSize)
	}

	if wantSHA256 != "" {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, wantSHA256) {
			return models.NewError(models.ErrTransport, "sha256 mismatch for %s: got %s, want %s", source, got, wantSHA256)
		}
	}
	return nil
}
