package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/spachava753/granny/internal/models"
)

const (
	// DefaultRepositoryURL is used for an alias section without a repository key.
	DefaultRepositoryURL = "https://upload.pypi.org/legacy/"

	distutilsSection = "distutils"
	legacySection    = "server-login"
)

// RepositoryResolver resolves a repository alias to its endpoint and credentials.
type RepositoryResolver interface {
	Resolve(alias string) (models.RepositoryConfig, error)
}

// DefaultPyPIRCPath returns ~/.pypirc.
func DefaultPyPIRCPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pypirc"
	}
	return filepath.Join(home, ".pypirc")
}

// PyPIRC is a parsed .pypirc file.
type PyPIRC struct {
	path string
	file *ini.File
}

var _ RepositoryResolver = (*PyPIRC)(nil)

// LoadPyPIRC reads and parses the .pypirc file at path.
func LoadPyPIRC(path string) (*PyPIRC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.WrapError(models.ErrConfig, err, "reading repository config")
	}
	return ParsePyPIRC(path, data)
}

// ParsePyPIRC parses .pypirc content. path is only used in messages.
func ParsePyPIRC(path string, data []byte) (*PyPIRC, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		IgnoreInlineComment:        true,
	}, data)
	if err != nil {
		return nil, models.WrapError(models.ErrConfig, err, "parsing %s", path)
	}
	return &PyPIRC{path: path, file: f}, nil
}

// Aliases returns the index servers declared in the distutils section.
func (p *PyPIRC) Aliases() []string {
	sec, err := p.file.GetSection(distutilsSection)
	if err != nil {
		return nil
	}
	return strings.Fields(sec.Key("index-servers").String())
}

// Resolve looks up alias the way distutils does: first among the declared
// index servers, by section name or by repository URL, then in the legacy
// server-login section.
func (p *PyPIRC) Resolve(alias string) (models.RepositoryConfig, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return models.RepositoryConfig{}, models.NewError(models.ErrConfig, "repository alias is empty")
	}

	for _, server := range p.Aliases() {
		sec, err := p.file.GetSection(server)
		if err != nil {
			continue
		}
		repoURL := sec.Key("repository").MustString(DefaultRepositoryURL)
		if server == alias || repoURL == alias {
			return p.repository(server, sec, repoURL), nil
		}
	}

	if sec, err := p.file.GetSection(legacySection); err == nil {
		repoURL := sec.Key("repository").MustString(DefaultRepositoryURL)
		if alias == "pypi" || alias == repoURL {
			return p.repository(legacySection, sec, repoURL), nil
		}
	}

	return models.RepositoryConfig{}, models.NewError(models.ErrConfig,
		"repository %q not found in %s (declared: %s)", alias, p.path, strings.Join(p.Aliases(), ", "))
}

func (p *PyPIRC) repository(alias string, sec *ini.Section, repoURL string) models.RepositoryConfig {
	return models.RepositoryConfig{
		Alias:    alias,
		URL:      strings.TrimSpace(repoURL),
		Username: sec.Key("username").String(),
		Password: sec.Key("password").String(),
	}
}

// StaticResolver resolves aliases from an in-memory map.
type StaticResolver map[string]models.RepositoryConfig

// Resolve implements RepositoryResolver.
func (s StaticResolver) Resolve(alias string) (models.RepositoryConfig, error) {
	repo, ok := s[alias]
	if !ok {
		return models.RepositoryConfig{}, models.NewError(models.ErrConfig, "repository %q not found", alias)
	}
	if repo.Alias == "" {
		repo.Alias = alias
	}
	return repo, nil
}
