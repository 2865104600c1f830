package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/spachava753/granny/internal/config"
	"github.com/spachava753/granny/internal/distmeta"
	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/util"
)

// Checker reports whether a project already exists on a destination index.
type Checker struct {
	client
}

// NewChecker returns a Checker resolving repository aliases through resolver.
func NewChecker(resolver config.RepositoryResolver, opts ...Option) *Checker {
	return &Checker{client: newClient(resolver, opts)}
}

// IsRegistered probes {endpoint}/simple/{project} for the project the artifact
// belongs to. Only a 200 counts as registered; any other status is treated as
// not registered. Failing to reach the index at all is an error.
func (c *Checker) IsRegistered(ctx context.Context, artifact models.BuiltArtifact, alias string) (bool, error) {
	md, err := distmeta.Read(artifact)
	if err != nil {
		return false, err
	}
	repo, err := c.resolver.Resolve(alias)
	if err != nil {
		return false, err
	}

	project := util.NormalizeProjectName(md.Name)
	probe := endpoint(repo.URL) + "/simple/" + url.PathEscape(project)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if repo.Username != "" || repo.Password != "" {
		req.SetBasicAuth(repo.Username, repo.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, models.WrapError(models.ErrTransport, err, "probing %s", probe)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		slog.Info("project already registered", "project", project, "repository", repo.Alias)
		return true, nil
	case http.StatusNotFound:
		slog.Info("project not yet registered", "project", project, "repository", repo.Alias)
	default:
		slog.Warn("unexpected registration probe status, assuming not registered",
			"project", project, "repository", repo.Alias, "status", resp.StatusCode)
	}
	return false, nil
}
