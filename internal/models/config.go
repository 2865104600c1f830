package models

import (
	"fmt"
	"sort"
	"strings"
)

// ToolConfig represents the parsed granny.toml configuration.
type ToolConfig struct {
	Source    SourceConfig    `toml:"source"`
	Build     BuildConfig     `toml:"build"`
	Publish   PublishConfig   `toml:"publish"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Log       LogConfig       `toml:"log"`
}

type SourceConfig struct {
	IndexURL        string  `toml:"index_url"`         // default: https://pypi.org
	TimeoutSec      float64 `toml:"timeout_sec"`       // 0 = no timeout
	MaxDownloadSize string  `toml:"max_download_size"` // default: 1G
	MaxDownloadB    int64   `toml:"-"`
}

// Build isolation modes.
const (
	IsolationLocal  = "local"
	IsolationDocker = "docker"
)

// PythonPlaceholder in a build command is replaced by the configured interpreter.
const PythonPlaceholder = "{python}"

type BuildConfig struct {
	Python      string            `toml:"python"`     // default: python3
	Command     []string          `toml:"command"`    // default: DefaultCommand()
	Entrypoint  string            `toml:"entrypoint"` // default: setup.py
	OutputDir   string            `toml:"output_dir"` // default: dist
	Isolation   string            `toml:"isolation"`  // local or docker
	DockerImage string            `toml:"docker_image"`
	TimeoutSec  float64           `toml:"timeout_sec"`
	Env         map[string]string `toml:"env"` // extra build environment
}

// DefaultCommand is the build command used when none is configured. It runs
// Entrypoint with bdist_wheel. Docker builds install setuptools and wheel
// into the container first.
func (b BuildConfig) DefaultCommand() []string {
	entrypoint := b.Entrypoint
	if entrypoint == "" {
		entrypoint = "setup.py"
	}
	if b.Isolation == IsolationDocker {
		return []string{"sh", "-c", fmt.Sprintf(
			"%[1]s -m pip install --quiet --disable-pip-version-check setuptools wheel && %[1]s %[2]s bdist_wheel",
			PythonPlaceholder, shellQuote(entrypoint))}
	}
	return []string{PythonPlaceholder, entrypoint, "bdist_wheel"}
}

// EnvList returns Env as sorted KEY=VALUE pairs.
func (b BuildConfig) EnvList() []string {
	keys := make([]string, 0, len(b.Env))
	for k := range b.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+b.Env[k])
	}
	return env
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '.' || r == '_' || r == '-' || r == '/' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

type PublishConfig struct {
	PyPIRC     string  `toml:"pypirc"` // default: ~/.pypirc
	TimeoutSec float64 `toml:"timeout_sec"`
	UserAgent  string  `toml:"user_agent"`
}

type WorkspaceConfig struct {
	BaseDir string `toml:"base_dir"` // default: os.TempDir()
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}
