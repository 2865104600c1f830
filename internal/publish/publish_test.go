package publish_test

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/spachava753/granny/internal/config"
	"github.com/spachava753/granny/internal/models"
	"github.com/spachava753/granny/internal/publish"
	"github.com/spachava753/granny/internal/publish/publishtest"
)

func setup(t *testing.T) (*publishtest.Server, config.StaticResolver, models.BuiltArtifact) {
	t.Helper()
	srv := publishtest.NewServer(t, "deploy", "s3cret")
	resolver := config.StaticResolver{
		"internal": {URL: srv.URL + "/", Username: "deploy", Password: "s3cret"},
	}
	artifact, err := models.NewBuiltArtifact(publishtest.WriteWheel(t, t.TempDir(), "Foo_Bar", "2.1.0"))
	require.NoError(t, err)
	return srv, resolver, artifact
}

func TestIsRegistered(t *testing.T) {
	t.Parallel()

	srv, resolver, artifact := setup(t)
	checker := publish.NewChecker(resolver)

	registered, err := checker.IsRegistered(context.Background(), artifact, "internal")
	require.NoError(t, err)
	assert.False(t, registered)

	srv.AddProject("foo-bar")
	registered, err = checker.IsRegistered(context.Background(), artifact, "internal")
	require.NoError(t, err)
	assert.True(t, registered)
	assert.Equal(t, 2, srv.Probes())
}

func TestIsRegisteredNon200MeansNotRegistered(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusInternalServerError, http.StatusForbidden, http.StatusMovedPermanently} {
		srv, resolver, artifact := setup(t)
		srv.SetProbeStatus(status)

		registered, err := publish.NewChecker(resolver, publish.WithHTTPClient(&http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		})).IsRegistered(context.Background(), artifact, "internal")
		require.NoError(t, err, "status %d", status)
		assert.False(t, registered, "status %d", status)
	}
}

func TestIsRegisteredErrors(t *testing.T) {
	t.Parallel()

	srv, resolver, artifact := setup(t)

	_, err := publish.NewChecker(resolver).IsRegistered(context.Background(), artifact, "missing")
	require.ErrorIs(t, err, models.ErrConfig)

	srv.Close()
	_, err = publish.NewChecker(resolver).IsRegistered(context.Background(), artifact, "internal")
	require.ErrorIs(t, err, models.ErrTransport)

	bad, err := models.NewBuiltArtifact(t.TempDir() + "/broken-1.0-py3-none-any.whl")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bad.Path, []byte("nope"), 0o644))
	_, err = publish.NewChecker(resolver).IsRegistered(context.Background(), bad, "internal")
	require.ErrorIs(t, err, models.ErrMetadata)
}

func TestRegisterAndUpload(t *testing.T) {
	t.Parallel()

	srv, resolver, artifact := setup(t)
	p := publish.NewPublisher(resolver)

	require.NoError(t, p.Register(context.Background(), artifact, "internal"))
	assert.True(t, srv.HasProject("foo-bar"))

	require.NoError(t, p.Upload(context.Background(), artifact, "internal"))

	reqs := srv.Requests()
	require.Len(t, reqs, 2)

	submit := reqs[0]
	assert.Equal(t, "submit", submit.Action)
	assert.Equal(t, []string{"Foo_Bar"}, submit.Fields["name"])
	assert.Equal(t, []string{"2.1.0"}, submit.Fields["version"])
	assert.Equal(t, []string{"Programming Language :: Python :: 3"}, submit.Fields["classifiers"])

	upload := reqs[1]
	assert.Equal(t, "file_upload", upload.Action)
	assert.Equal(t, artifact.Filename(), upload.Filename)
	assert.Equal(t, []string{"1"}, upload.Fields["protocol_version"])
	assert.Equal(t, []string{"bdist_wheel"}, upload.Fields["filetype"])
	assert.Equal(t, []string{"py3"}, upload.Fields["pyversion"])
	assert.Equal(t, []string{"Foo_Bar long description"}, upload.Fields["description"])

	content, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, content, upload.Content)

	md5sum := md5.Sum(content)
	shaSum := sha256.Sum256(content)
	b2Sum := blake2b.Sum256(content)
	assert.Equal(t, hex.EncodeToString(md5sum[:]), upload.Fields["md5_digest"][0])
	assert.Equal(t, hex.EncodeToString(shaSum[:]), upload.Fields["sha256_digest"][0])
	assert.Equal(t, hex.EncodeToString(b2Sum[:]), upload.Fields["blake2_256_digest"][0])
}

func TestUploadEgg(t *testing.T) {
	t.Parallel()

	srv, resolver, _ := setup(t)
	srv.AllowUnregisteredUploads()

	egg, err := models.NewBuiltArtifact(publishtest.WriteEgg(t, t.TempDir(), "bar", "0.3", "2.7"))
	require.NoError(t, err)

	require.NoError(t, publish.NewPublisher(resolver).Upload(context.Background(), egg, "internal"))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"bdist_egg"}, reqs[0].Fields["filetype"])
	assert.Equal(t, []string{"2.7"}, reqs[0].Fields["pyversion"])
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	t.Run("bad credentials", func(t *testing.T) {
		t.Parallel()
		srv, _, artifact := setup(t)
		wrong := config.StaticResolver{"internal": {URL: srv.URL, Username: "deploy", Password: "guess"}}

		err := publish.NewPublisher(wrong).Register(context.Background(), artifact, "internal")
		require.ErrorIs(t, err, models.ErrPublish)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("upload before register", func(t *testing.T) {
		t.Parallel()
		_, resolver, artifact := setup(t)

		err := publish.NewPublisher(resolver).Upload(context.Background(), artifact, "internal")
		require.ErrorIs(t, err, models.ErrPublish)
		assert.Contains(t, err.Error(), "not registered")
	})

	t.Run("server rejects upload", func(t *testing.T) {
		t.Parallel()
		srv, resolver, artifact := setup(t)
		srv.AddProject("foo-bar")
		srv.SetUploadStatus(http.StatusConflict)

		err := publish.NewPublisher(resolver).Upload(context.Background(), artifact, "internal")
		require.ErrorIs(t, err, models.ErrPublish)
		assert.Contains(t, err.Error(), "409")
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		srv, resolver, artifact := setup(t)
		srv.Close()

		err := publish.NewPublisher(resolver).Register(context.Background(), artifact, "internal")
		require.ErrorIs(t, err, models.ErrPublish)
	})

	t.Run("unknown alias", func(t *testing.T) {
		t.Parallel()
		_, resolver, artifact := setup(t)

		err := publish.NewPublisher(resolver).Upload(context.Background(), artifact, "elsewhere")
		require.ErrorIs(t, err, models.ErrConfig)
	})
}
