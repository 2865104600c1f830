package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/util"
)

const (
	DefaultIndexURL        = "https://pypi.org"
	DefaultMaxDownloadSize = "1G"
	DefaultPython          = "python3"
	DefaultEntrypoint      = "setup.py"
	DefaultOutputDir       = "dist"
	DefaultDockerImage     = "python:3.12-slim"
	DefaultUserAgent       = "granny/1.0"
)

// DefaultToolConfig returns a ToolConfig with default values. The build
// command depends on the entrypoint and isolation, so Normalize fills it.
func DefaultToolConfig() models.ToolConfig {
	return models.ToolConfig{
		Source: models.SourceConfig{
			IndexURL:        DefaultIndexURL,
			MaxDownloadSize: DefaultMaxDownloadSize,
			MaxDownloadB:    1 << 30,
		},
		Build: models.BuildConfig{
			Python:      DefaultPython,
			Entrypoint:  DefaultEntrypoint,
			OutputDir:   DefaultOutputDir,
			Isolation:   models.IsolationLocal,
			DockerImage: DefaultDockerImage,
		},
		Publish: models.PublishConfig{
			PyPIRC:    DefaultPyPIRCPath(),
			UserAgent: DefaultUserAgent,
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultToolConfigPath returns $XDG_CONFIG_HOME/granny/config.toml.
func DefaultToolConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "granny", "config.toml")
}

// LoadToolConfigFile loads the tool configuration at path. A missing file
// yields the defaults when allowMissing is set.
func LoadToolConfigFile(path string, allowMissing bool) (models.ToolConfig, error) {
	if path == "" {
		return normalizedDefaults()
	}
	cfg, err := LoadToolConfig(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil && allowMissing && errors.Is(err, fs.ErrNotExist) {
		return normalizedDefaults()
	}
	return cfg, err
}

func normalizedDefaults() (models.ToolConfig, error) {
	cfg := DefaultToolConfig()
	err := Normalize(&cfg)
	return cfg, err
}

// LoadToolConfig loads and parses the named TOML file from the given filesystem.
func LoadToolConfig(fsys fs.FS, name string) (models.ToolConfig, error) {
	cfg := DefaultToolConfig()

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", name, err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, models.WrapError(models.ErrConfig, err, "parsing %s", name)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, models.NewError(models.ErrConfig, "%s: unknown keys %v", name, undecoded)
	}

	if err := Normalize(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Normalize fills empty values with defaults and validates the result.
func Normalize(cfg *models.ToolConfig) error {
	def := DefaultToolConfig()

	cfg.Source.IndexURL = strings.TrimRight(strings.TrimSpace(cfg.Source.IndexURL), "/")
	if cfg.Source.IndexURL == "" {
		cfg.Source.IndexURL = def.Source.IndexURL
	}
	if cfg.Source.MaxDownloadSize == "" {
		cfg.Source.MaxDownloadSize = def.Source.MaxDownloadSize
	}
	size, err := util.ParseSize(cfg.Source.MaxDownloadSize)
	if err != nil {
		return models.WrapError(models.ErrConfig, err, "parsing source.max_download_size %q", cfg.Source.MaxDownloadSize)
	}
	cfg.Source.MaxDownloadB = size

	if cfg.Build.Python == "" {
		cfg.Build.Python = def.Build.Python
	}
	if cfg.Build.Entrypoint == "" {
		cfg.Build.Entrypoint = def.Build.Entrypoint
	}
	if cfg.Build.OutputDir == "" {
		cfg.Build.OutputDir = def.Build.OutputDir
	}
	if cfg.Build.Isolation == "" {
		cfg.Build.Isolation = def.Build.Isolation
	}
	switch cfg.Build.Isolation {
	case models.IsolationLocal, models.IsolationDocker:
	default:
		return models.NewError(models.ErrConfig, "unsupported build.isolation %q (want %s or %s)",
			cfg.Build.Isolation, models.IsolationLocal, models.IsolationDocker)
	}
	if cfg.Build.DockerImage == "" {
		cfg.Build.DockerImage = def.Build.DockerImage
	}
	if len(cfg.Build.Command) == 0 {
		cfg.Build.Command = cfg.Build.DefaultCommand()
	}
	for k := range cfg.Build.Env {
		if k == "" || strings.ContainsAny(k, "= ") {
			return models.NewError(models.ErrConfig, "invalid build.env name %q", k)
		}
	}

	if cfg.Publish.PyPIRC == "" {
		cfg.Publish.PyPIRC = def.Publish.PyPIRC
	}
	cfg.Publish.PyPIRC = ExpandHome(cfg.Publish.PyPIRC)
	if cfg.Publish.UserAgent == "" {
		cfg.Publish.UserAgent = def.Publish.UserAgent
	}
	cfg.Workspace.BaseDir = ExpandHome(cfg.Workspace.BaseDir)

	for name, sec := range map[string]float64{
		"source.timeout_sec":  cfg.Source.TimeoutSec,
		"build.timeout_sec":   cfg.Build.TimeoutSec,
		"publish.timeout_sec": cfg.Publish.TimeoutSec,
	} {
		if sec < 0 {
			return models.NewError(models.ErrConfig, "%s must not be negative", name)
		}
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
