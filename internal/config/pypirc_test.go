package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/granny/internal/config"
	"github.com/spachava753/granny/internal/models"
)

const samplePyPIRC = `[distutils]
index-servers =
    pypi
    internal
    nourl

[pypi]
username = __token__
password = pypi-secret

[internal]
repository = https://pkgs.example.com/
username = deploy
password = p#ss;word

[nourl]
username = someone
`

func TestPyPIRCResolve(t *testing.T) {
	t.Parallel()

	rc, err := config.ParsePyPIRC("test.pypirc", []byte(samplePyPIRC))
	require.NoError(t, err)
	assert.Equal(t, []string{"pypi", "internal", "nourl"}, rc.Aliases())

	tests := []struct {
		name  string
		alias string
		want  models.RepositoryConfig
	}{
		{
			name:  "by section name",
			alias: "internal",
			want: models.RepositoryConfig{
				Alias:    "internal",
				URL:      "https://pkgs.example.com/",
				Username: "deploy",
				Password: "p#ss;word",
			},
		},
		{
			name:  "by repository url",
			alias: "https://pkgs.example.com/",
			want: models.RepositoryConfig{
				Alias:    "internal",
				URL:      "https://pkgs.example.com/",
				Username: "deploy",
				Password: "p#ss;word",
			},
		},
		{
			name:  "default repository url",
			alias: "pypi",
			want: models.RepositoryConfig{
				Alias:    "pypi",
				URL:      config.DefaultRepositoryURL,
				Username: "__token__",
				Password: "pypi-secret",
			},
		},
		{
			name:  "missing password",
			alias: "nourl",
			want: models.RepositoryConfig{
				Alias:    "nourl",
				URL:      config.DefaultRepositoryURL,
				Username: "someone",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := rc.Resolve(tt.alias)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPyPIRCResolveUnknownAlias(t *testing.T) {
	t.Parallel()

	rc, err := config.ParsePyPIRC("test.pypirc", []byte(samplePyPIRC))
	require.NoError(t, err)

	_, err = rc.Resolve("staging")
	require.ErrorIs(t, err, models.ErrConfig)
	assert.Contains(t, err.Error(), `"staging"`)

	_, err = rc.Resolve("  ")
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestPyPIRCLegacyServerLogin(t *testing.T) {
	t.Parallel()

	rc, err := config.ParsePyPIRC("legacy.pypirc", []byte("[server-login]\nusername = old\npassword = timer\n"))
	require.NoError(t, err)

	got, err := rc.Resolve("pypi")
	require.NoError(t, err)
	assert.Equal(t, "old", got.Username)
	assert.Equal(t, config.DefaultRepositoryURL, got.URL)
}

func TestLoadPyPIRC(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".pypirc")
	require.NoError(t, os.WriteFile(path, []byte(samplePyPIRC), 0o600))

	rc, err := config.LoadPyPIRC(path)
	require.NoError(t, err)

	repo, err := rc.Resolve("internal")
	require.NoError(t, err)
	assert.Equal(t, "deploy", repo.Username)

	_, err = config.LoadPyPIRC(filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestStaticResolver(t *testing.T) {
	t.Parallel()

	r := config.StaticResolver{"local": {URL: "http://localhost:8080"}}

	repo, err := r.Resolve("local")
	require.NoError(t, err)
	assert.Equal(t, "local", repo.Alias)

	_, err = r.Resolve("remote")
	require.ErrorIs(t, err, models.ErrConfig)
}
