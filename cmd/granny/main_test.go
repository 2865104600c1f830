package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/publish/publishtest"
)

func TestSpecFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		pkg     string
		version string
		args    []string
		want    models.PackageSpec
		wantErr bool
	}{
		{name: "latest", pkg: "foo", want: models.PackageSpec{Name: "foo"}},
		{name: "pinned", pkg: "foo", version: "1.0", want: models.PackageSpec{Name: "foo", Version: "1.0"}},
		{name: "uri", args: []string{"https://example.com/foo-1.0.tar.gz"}, want: models.PackageSpec{URI: "https://example.com/foo-1.0.tar.gz"}},
		{name: "nothing", wantErr: true},
		{name: "uri and package", pkg: "foo", args: []string{"https://example.com/foo.tar.gz"}, wantErr: true},
		{name: "uri and version", version: "1.0", args: []string{"https://example.com/foo.tar.gz"}, wantErr: true},
		{name: "version without package", version: "1.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := specFromFlags(tt.pkg, tt.version, tt.args)
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrInvalidSpec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec)
		})
	}
}

// cliEnv writes a tool config and .pypirc pointing at a fake destination.
type cliEnv struct {
	dest       *publishtest.Server
	config     string
	pypirc     string
	workspaces string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	dest := publishtest.NewServer(t, "ci", "token")
	workspaces := filepath.Join(dir, "work")

	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
[workspace]
base_dir = %q

[build]
command = ["sh", "-c", "exit 1"]
`, workspaces)), 0o644))

	pypircPath := filepath.Join(dir, "pypirc")
	require.NoError(t, os.WriteFile(pypircPath, []byte(fmt.Sprintf(`[distutils]
index-servers = internal

[internal]
repository = %s/
username = ci
password = token
`, dest.URL)), 0o600))

	return &cliEnv{dest: dest, config: configPath, pypirc: pypircPath, workspaces: workspaces}
}

func (e *cliEnv) run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config, "--pypirc", e.pypirc, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPromoteLocalWheel(t *testing.T) {
	e := newCLIEnv(t)
	wheel := publishtest.WriteWheel(t, t.TempDir(), "foo", "1.2.3")

	out, err := e.run("-r", "internal", "--json", "file://"+wheel)
	require.NoError(t, err)

	var result models.PromotionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "foo", result.Project)
	assert.Equal(t, "1.2.3", result.Version)
	assert.True(t, result.Prebuilt)
	assert.True(t, result.Registered)
	assert.Equal(t, []string{"submit", "file_upload"}, e.dest.Actions())

	out, err = e.run("-r", "internal", "file://"+wheel)
	require.NoError(t, err)
	assert.Contains(t, out, "Registration: skipped")
}

func TestPromoteErrors(t *testing.T) {
	e := newCLIEnv(t)

	_, err := e.run("-p", "foo")
	require.ErrorIs(t, err, models.ErrInvalidSpec)

	_, err = e.run("-r", "internal", "-v", "1.0")
	require.ErrorIs(t, err, models.ErrInvalidSpec)

	_, err = e.run("-r", "elsewhere", "file://"+publishtest.WriteWheel(t, t.TempDir(), "foo", "1.0"))
	require.ErrorIs(t, err, models.ErrConfig)

	_, err = e.run("-r", "internal", "file:///does/not/exist-1.0.tar.gz")
	require.Error(t, err)
	assert.Empty(t, e.dest.Requests())
}

func TestFailureReportsOneErrorLine(t *testing.T) {
	e := newCLIEnv(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"--config", e.config, "--pypirc", e.pypirc, "--log-level", "info",
		"-r", "internal", "file:///does/not/exist-1.0.tar.gz",
	}, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var errorLines []string
	for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
		if strings.HasPrefix(line, "error: ") {
			errorLines = append(errorLines, line)
		}
	}
	assert.Len(t, errorLines, 1, stderr.String())
	assert.NotContains(t, stderr.String(), "promotion failed")
	assert.NotContains(t, stderr.String(), "ERRO")
	assert.Empty(t, stdout.String())
}

func TestBatchCommand(t *testing.T) {
	e := newCLIEnv(t)
	dir := t.TempDir()
	good := publishtest.WriteWheel(t, dir, "foo", "1.0")

	manifest := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(fmt.Sprintf(`repository: internal
n_concurrent: 2
packages:
  - uri: file://%s
  - uri: file://%s/missing-1.0.tar.gz
`, good, dir)), 0o644))
	output := filepath.Join(dir, "result.json")

	out, err := e.run("batch", manifest, "--output", output)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 promotions failed")
	assert.Contains(t, out, "Succeeded: 1")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var result models.BatchResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestCleanCommand(t *testing.T) {
	e := newCLIEnv(t)
	stale := filepath.Join(e.workspaces, "granny-stale")
	fresh := filepath.Join(e.workspaces, "granny-fresh")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	out, err := e.run("clean", "--older-than", "24h")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 stale workspaces")

	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
}
