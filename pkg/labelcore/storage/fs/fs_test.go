package fs

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/labelcore/pkg/labelcore"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{
		BaseDir:   t.TempDir(),
		URLPrefix: "http://localhost:8080/blobs",
		URLSecret: "test-secret",
	})
	require.NoError(t, err)
	return b
}

func TestBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("upload and download", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Upload(ctx, "labels/a/thumbnails/md", bytes.NewReader([]byte("png"))))

		rc, err := b.Download(ctx, "labels/a/thumbnails/md")
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), data)
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Upload(ctx, "k", bytes.NewReader([]byte("v1"))))
		require.NoError(t, b.Upload(ctx, "k", bytes.NewReader([]byte("v2"))))

		rc, err := b.Download(ctx, "k")
		require.NoError(t, err)
		data, _ := io.ReadAll(rc)
		rc.Close()
		assert.Equal(t, []byte("v2"), data)
	})

	t.Run("download missing key", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Download(ctx, "missing")
		assert.ErrorIs(t, err, labelcore.ErrObjectNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Upload(ctx, "k", bytes.NewReader([]byte("v"))))
		assert.NoError(t, b.Delete(ctx, "k"))
		assert.NoError(t, b.Delete(ctx, "k"))
	})

	t.Run("list by prefix", func(t *testing.T) {
		b := newBackend(t)
		for _, key := range []string{"labels/a/thumbnails/sm", "labels/a/thumbnails/md", "labels/b/thumbnails/md"} {
			require.NoError(t, b.Upload(ctx, key, bytes.NewReader([]byte("v"))))
		}

		keys, err := b.List(ctx, "labels/a/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"labels/a/thumbnails/md", "labels/a/thumbnails/sm"}, keys)
	})
}

func TestSignedURLs(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	require.NoError(t, b.Upload(ctx, "labels/a/thumbnails/md", bytes.NewReader([]byte("png"))))

	signed, err := b.SignURL(ctx, "labels/a/thumbnails/md", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, "http://localhost:8080/blobs/labels/a/thumbnails/md?"))

	u, err := url.Parse(signed)
	require.NoError(t, err)
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	token := u.Query().Get("token")

	assert.True(t, b.VerifyURLToken("labels/a/thumbnails/md", token, expires))
	assert.False(t, b.VerifyURLToken("labels/a/thumbnails/md", "forged", expires))
	assert.False(t, b.VerifyURLToken("labels/other", token, expires))
	assert.False(t, b.VerifyURLToken("labels/a/thumbnails/md", token, time.Now().Add(-time.Minute).Unix()),
		"expired URLs must not verify")
}
