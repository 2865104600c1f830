package publish

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/spachava753/granny/internal/config"
	"github.com/spachava753/granny/internal/distmeta"
	"github.com/spachava753/granny/internal/models"
)

const (
	actionSubmit = "submit"
	actionUpload = "file_upload"

	// maxErrorBody bounds the response text quoted in a PublishError.
	maxErrorBody = 512
)

// Publisher registers projects on, and uploads artifacts to, a destination
// index through the legacy upload API.
type Publisher struct {
	client
}

// NewPublisher returns a Publisher resolving repository aliases through resolver.
func NewPublisher(resolver config.RepositoryResolver, opts ...Option) *Publisher {
	return &Publisher{client: newClient(resolver, opts)}
}

// Register submits the artifact's metadata so the project exists on the index.
func (p *Publisher) Register(ctx context.Context, artifact models.BuiltArtifact, alias string) error {
	md, err := distmeta.Read(artifact)
	if err != nil {
		return err
	}
	repo, err := p.resolver.Resolve(alias)
	if err != nil {
		return err
	}

	form := distmeta.FormFields(md)
	form.Set(":action", actionSubmit)

	slog.Info("registering project", "project", md.Name, "version", md.Version, "repository", repo.Alias)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, form, nil))
	}()

	return p.post(ctx, repo, mw.FormDataContentType(), pr, "registering "+md.Name)
}

// Upload sends the artifact file together with its metadata and digests.
func (p *Publisher) Upload(ctx context.Context, artifact models.BuiltArtifact, alias string) error {
	md, err := distmeta.Read(artifact)
	if err != nil {
		return err
	}
	repo, err := p.resolver.Resolve(alias)
	if err != nil {
		return err
	}
	pyversion, err := distmeta.PyVersion(artifact)
	if err != nil {
		return err
	}
	digests, err := fileDigests(artifact.Path)
	if err != nil {
		return err
	}

	form := distmeta.FormFields(md)
	form.Set(":action", actionUpload)
	form.Set("protocol_version", "1")
	form.Set("filetype", artifact.Format.FileType())
	form.Set("pyversion", pyversion)
	form.Set("md5_digest", digests.md5)
	form.Set("sha256_digest", digests.sha256)
	form.Set("blake2_256_digest", digests.blake2)

	slog.Info("uploading artifact", "file", artifact.Filename(), "repository", repo.Alias, "url", repo.URL)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, form, &artifact))
	}()

	return p.post(ctx, repo, mw.FormDataContentType(), pr, "uploading "+artifact.Filename())
}

func (p *Publisher) post(ctx context.Context, repo models.RepositoryConfig, contentType string, body io.ReadCloser, what string) error {
	defer func() {
		_ = body.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(repo.URL)+"/", body)
	if err != nil {
		return models.WrapError(models.ErrPublish, err, "%s: invalid repository URL %s", what, repo.URL)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", p.userAgent)
	req.SetBasicAuth(repo.Username, repo.Password)

	resp, err := p.http.Do(req)
	if err != nil {
		return models.WrapError(models.ErrPublish, err, "%s to %s", what, repo.URL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.Join(strings.Fields(string(snippet)), " ")
		if msg != "" {
			return models.NewError(models.ErrPublish, "%s to %s: %s: %s", what, repo.URL, resp.Status, msg)
		}
		return models.NewError(models.ErrPublish, "%s to %s: %s", what, repo.URL, resp.Status)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

// writeForm writes the fields in a stable order, then the artifact content
// when one is given, and closes mw.
func writeForm(mw *multipart.Writer, form url.Values, artifact *models.BuiltArtifact) error {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range form[k] {
			if err := mw.WriteField(k, v); err != nil {
				return fmt.Errorf("writing field %s: %w", k, err)
			}
		}
	}

	if artifact != nil {
		f, err := os.Open(artifact.Path)
		if err != nil {
			return fmt.Errorf("opening artifact: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()

		part, err := mw.CreateFormFile("content", artifact.Filename())
		if err != nil {
			return fmt.Errorf("creating content part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return fmt.Errorf("writing content part: %w", err)
		}
	}
	return mw.Close()
}

type digestSet struct {
	md5    string
	sha256 string
	blake2 string
}

func fileDigests(path string) (digestSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return digestSet{}, fmt.Errorf("opening artifact: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	md5h := md5.New()
	sha := sha256.New()
	b2, err := blake2b.New256(nil)
	if err != nil {
		return digestSet{}, fmt.Errorf("creating blake2b hash: %w", err)
	}
	if _, err := io.Copy(io.MultiWriter(md5h, sha, b2), f); err != nil {
		return digestSet{}, fmt.Errorf("hashing artifact: %w", err)
	}
	return digestSet{
		md5:    hex.EncodeToString(md5h.Sum(nil)),
		sha256: hex.EncodeToString(sha.Sum(nil)),
		blake2: hex.EncodeToString(b2.Sum(nil)),
	}, nil
}
