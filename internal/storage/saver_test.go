package storage_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/storage"
)

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImageSaver_SaveAll_SkipsBadURL(t *testing.T) {
	srv := imageServer(t)
	dir := t.TempDir()
	saver := storage.NewImageSaver(srv.Client())

	paths := saver.SaveAll(context.Background(), dir, []models.ImageData{
		{URL: "not-a-url"},
		{URL: srv.URL + "/ok/img.jpg"},
	}, nil)

	require.Len(t, paths, 1)
	assert.Regexp(t, `image_\d{8}_\d{6}_1\.jpg$`, paths[0])
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "jpeg:/ok/img.jpg", string(data))
}

func TestImageSaver_SaveAll_MixedDescriptors(t *testing.T) {
	srv := imageServer(t)
	dir := t.TempDir()
	saver := storage.NewImageSaver(srv.Client())

	var notified []string
	paths := saver.SaveAll(context.Background(), dir, []models.ImageData{
		{B64JSON: base64.StdEncoding.EncodeToString([]byte("inline-bytes"))},
		{B64JSON: "!!!not base64!!!"},
		{URL: srv.URL + "/missing.jpg"},
		{},
		{URL: srv.URL + "/remote.jpg"},
	}, func(path string) { notified = append(notified, path) })

	require.Len(t, paths, 2)
	assert.Equal(t, paths, notified)
	assert.Regexp(t, `_0\.jpg$`, paths[0])
	assert.Regexp(t, `_4\.jpg$`, paths[1])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "inline-bytes", string(data))
}

func TestImageSaver_SaveFromBase64_IgnoresURLs(t *testing.T) {
	srv := imageServer(t)
	saver := storage.NewImageSaver(srv.Client())

	paths := saver.SaveFromBase64(context.Background(), t.TempDir(), []models.ImageData{
		{URL: srv.URL + "/remote.jpg"},
		{B64JSON: base64.StdEncoding.EncodeToString([]byte("x"))},
	})

	require.Len(t, paths, 1)
	assert.Regexp(t, `_1\.jpg$`, paths[0])
}

func TestImageSaver_SaveFromURL_IgnoresInline(t *testing.T) {
	srv := imageServer(t)
	saver := storage.NewImageSaver(srv.Client())

	paths := saver.SaveFromURL(context.Background(), t.TempDir(), []models.ImageData{
		{B64JSON: base64.StdEncoding.EncodeToString([]byte("x"))},
		{URL: srv.URL + "/a.jpg"},
		{URL: srv.URL + "/b.jpg"},
	})

	assert.Len(t, paths, 2)
}

func TestImageSaver_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "task")
	saver := storage.NewImageSaver(nil)

	paths := saver.SaveFromBase64(context.Background(), dir, []models.ImageData{
		{B64JSON: base64.StdEncoding.EncodeToString([]byte("x"))},
	})

	require.Len(t, paths, 1)
	assert.DirExists(t, dir)
}

func TestImageFileName(t *testing.T) {
	assert.Equal(t, "image_20250901_083000_3.jpg", storage.ImageFileName("20250901_083000", 3))
}
