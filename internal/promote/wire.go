package promote

import (
	"io"
	"time"

	"github.com/spachava753/granny/internal/archive"
	"github.com/spachava753/granny/internal/builder"
	"github.com/spachava753/granny/internal/config"
	"github.com/spachava753/granny/internal/index"
	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/publish"
	"github.com/spachava753/granny/internal/workspace"
)

// NewFromConfig assembles a Promoter from a normalized tool configuration.
// Build output is copied to buildOutput when it is not nil.
func NewFromConfig(cfg models.ToolConfig, resolver config.RepositoryResolver, buildOutput io.Writer) (*Promoter, error) {
	client := index.NewClient(cfg.Source.IndexURL,
		index.WithTimeout(seconds(cfg.Source.TimeoutSec)),
		index.WithUserAgent(cfg.Publish.UserAgent),
		index.WithMaxDownloadSize(cfg.Source.MaxDownloadB),
	)

	publishOpts := []publish.Option{
		publish.WithTimeout(seconds(cfg.Publish.TimeoutSec)),
		publish.WithUserAgent(cfg.Publish.UserAgent),
	}

	return New(Stages{
		Fetcher:  index.NewFetcher(client),
		Unpacker: archive.NewUnpacker(cfg.Source.MaxDownloadB * unpackRatio),
		Builder: builder.New(newRunner(cfg.Build), builder.Options{
			Python:     cfg.Build.Python,
			Command:    cfg.Build.Command,
			Entrypoint: cfg.Build.Entrypoint,
			OutputDir:  cfg.Build.OutputDir,
			Timeout:    seconds(cfg.Build.TimeoutSec),
			Output:     buildOutput,
		}),
		Checker:    publish.NewChecker(resolver, publishOpts...),
		Publisher:  publish.NewPublisher(resolver, publishOpts...),
		Workspaces: workspace.NewManager(cfg.Workspace.BaseDir),
	})
}

// unpackRatio bounds the extracted size of an archive relative to the
// download limit.
const unpackRatio = 8

func newRunner(cfg models.BuildConfig) builder.Runner {
	if cfg.Isolation == models.IsolationDocker {
		return &builder.DockerRunner{Image: cfg.DockerImage, Env: cfg.EnvList()}
	}
	return &builder.LocalRunner{Env: cfg.EnvList()}
}

func seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
