// Package promote sequences the pipeline stages that mirror a release from
// the source index into a destination index.
package promote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spachava753/granny/internal/distmeta"
	"github.com/spachava753/granny/internal/log"
	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/workspace"
)

// downloadDir is the workspace subdirectory archives are fetched and unpacked in.
const downloadDir = "download"

// Fetcher downloads exactly one distribution archive for a spec into destDir.
type Fetcher interface {
	Fetch(ctx context.Context, spec models.PackageSpec, destDir string) (models.Archive, error)
}

// Unpacker extracts a source archive and returns its single top-level directory.
type Unpacker interface {
	Unpack(a models.Archive) (string, error)
}

// Builder turns a source tree into a single binary artifact.
type Builder interface {
	Build(ctx context.Context, sourceDir string) (models.BuiltArtifact, error)
}

// Checker reports whether the artifact's project exists on the destination.
type Checker interface {
	IsRegistered(ctx context.Context, artifact models.BuiltArtifact, alias string) (bool, error)
}

// Publisher registers projects and uploads artifacts.
type Publisher interface {
	Register(ctx context.Context, artifact models.BuiltArtifact, alias string) error
	Upload(ctx context.Context, artifact models.BuiltArtifact, alias string) error
}

// Workspaces hands out scoped scratch directories.
type Workspaces interface {
	Scope(ctx context.Context, fn func(workspace.Workspace) error) error
}

// Stages are the collaborators a Promoter drives.
type Stages struct {
	Fetcher    Fetcher
	Unpacker   Unpacker
	Builder    Builder
	Checker    Checker
	Publisher  Publisher
	Workspaces Workspaces
}

// Promoter runs one release promotion at a time. It holds no per-run state,
// so a single Promoter may serve concurrent promotions.
type Promoter struct {
	stages Stages
	newID  func() string
}

// New returns a Promoter driving stages.
func New(stages Stages) (*Promoter, error) {
	switch {
	case stages.Fetcher == nil:
		return nil, fmt.Errorf("promoter needs a fetcher")
	case stages.Unpacker == nil:
		return nil, fmt.Errorf("promoter needs an unpacker")
	case stages.Builder == nil:
		return nil, fmt.Errorf("promoter needs a builder")
	case stages.Checker == nil:
		return nil, fmt.Errorf("promoter needs a checker")
	case stages.Publisher == nil:
		return nil, fmt.Errorf("promoter needs a publisher")
	case stages.Workspaces == nil:
		return nil, fmt.Errorf("promoter needs a workspace manager")
	}
	return &Promoter{stages: stages, newID: uuid.NewString}, nil
}

// Promote mirrors the release named by spec into the repository alias.
//
// The returned result is never nil. On failure its Error field carries the
// classified error, which is also returned. The workspace is removed before
// Promote returns.
func (p *Promoter) Promote(ctx context.Context, spec models.PackageSpec, alias string) (*models.PromotionResult, error) {
	result := &models.PromotionResult{
		RunID:      p.newID(),
		Spec:       spec,
		Repository: alias,
		Timestamps: models.Timestamps{StartedAt: time.Now()},
	}
	logger := log.WithRun(result.RunID).With("spec", spec.String(), "repository", alias)

	err := p.promote(ctx, spec, alias, result, logger)

	result.Timestamps.EndedAt = time.Now()
	result.Durations.TotalSec = result.Timestamps.EndedAt.Sub(result.Timestamps.StartedAt).Seconds()

	if err != nil {
		result.Error = &models.ResultError{Type: models.TypeOf(err), Message: err.Error()}
		logger.Debug("promotion failed", "error_type", result.Error.Type, "error", err)
		return result, err
	}
	logger.Info("promotion complete",
		"project", result.Project,
		"version", result.Version,
		"artifact", result.Artifact,
		"registered", result.Registered,
		"duration_sec", result.Durations.TotalSec)
	return result, nil
}

func (p *Promoter) promote(ctx context.Context, spec models.PackageSpec, alias string, result *models.PromotionResult, logger *slog.Logger) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	return p.stages.Workspaces.Scope(ctx, func(ws workspace.Workspace) error {
		logger.Debug("workspace ready", "dir", ws.Dir)

		downloads := ws.Path(downloadDir)
		if err := os.Mkdir(downloads, 0o755); err != nil {
			return fmt.Errorf("creating download directory: %w", err)
		}

		// Fetch
		start := time.Now()
		archive, err := p.stages.Fetcher.Fetch(ctx, spec, downloads)
		result.Durations.FetchSec = since(start)
		if err != nil {
			return err
		}
		result.Archive = filepath.Base(archive.Path)
		logger.Info("fetched distribution", "archive", archive.Path, "kind", archive.Kind)
		touch(ws, logger)

		// Unpack and build, unless the download is already installable
		var artifact models.BuiltArtifact
		if archive.IsPrebuilt() {
			result.Prebuilt = true
			artifact, err = models.NewBuiltArtifact(archive.Path)
			if err != nil {
				return err
			}
			logger.Info("distribution is prebuilt, skipping build", "artifact", artifact.Filename())
		} else {
			start = time.Now()
			artifact, err = p.build(ctx, archive, logger)
			result.Durations.BuildSec = since(start)
			if err != nil {
				return err
			}
		}
		result.Artifact = artifact.Filename()
		touch(ws, logger)

		md, err := distmeta.Read(artifact)
		if err != nil {
			return err
		}
		result.Project = md.Name
		result.Version = md.Version

		// Check
		start = time.Now()
		registered, err := p.stages.Checker.IsRegistered(ctx, artifact, alias)
		result.Durations.CheckSec = since(start)
		if err != nil {
			return err
		}
		touch(ws, logger)

		// Publish
		start = time.Now()
		defer func() {
			result.Durations.PublishSec = since(start)
		}()
		if registered {
			logger.Info("project already registered, skipping registration", "project", md.Name)
		} else {
			if err := p.stages.Publisher.Register(ctx, artifact, alias); err != nil {
				return err
			}
			result.Registered = true
		}
		if err := p.stages.Publisher.Upload(ctx, artifact, alias); err != nil {
			return err
		}
		result.Uploaded = true
		return nil
	})
}

// touch refreshes the workspace between stages so clean leaves it alone.
func touch(ws workspace.Workspace, logger *slog.Logger) {
	if err := ws.Touch(); err != nil {
		logger.Debug("could not refresh workspace", "dir", ws.Dir, "error", err)
	}
}

func (p *Promoter) build(ctx context.Context, archive models.Archive, logger *slog.Logger) (models.BuiltArtifact, error) {
	sourceDir, err := p.stages.Unpacker.Unpack(archive)
	if err != nil {
		return models.BuiltArtifact{}, err
	}
	logger.Info("unpacked source", "dir", sourceDir)

	artifact, err := p.stages.Builder.Build(ctx, sourceDir)
	if err != nil {
		return models.BuiltArtifact{}, err
	}
	logger.Info("built artifact", "artifact", artifact.Filename(), "format", artifact.Format)
	return artifact, nil
}

func since(start time.Time) *float64 {
	d := time.Since(start).Seconds()
	return &d
}
