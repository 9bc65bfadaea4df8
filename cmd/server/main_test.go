package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jimeng-image-generator/internal/config"
	"jimeng-image-generator/internal/inject"
	"jimeng-image-generator/internal/log"
	"jimeng-image-generator/internal/services"
)

func testInjector(t *testing.T) (*do.Injector, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		AccessKey:    "ak",
		SecretKey:    "sk",
		APIBaseURL:   "http://127.0.0.1:1",
		HTTPTimeout:  time.Second,
		PollTimeout:  time.Second,
		PollInterval: time.Second,
		Backend:      config.BackendSigned,
		OutputDir:    root,
	}
	injector := inject.Setup(context.Background(), cfg)
	t.Cleanup(func() { _ = injector.Shutdown() })
	return injector, root
}

func TestNewRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	injector, _ := testInjector(t)
	router := newRouter(injector, log.New(&bytes.Buffer{}, 0))

	for _, path := range []string{"/", "/health", "/output"} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	req, _ := http.NewRequest("POST", "/generate", bytes.NewBufferString(`{"prompt":""}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepOutputs_StopsOnCancel(t *testing.T) {
	injector, root := testInjector(t)
	service := do.MustInvoke[*services.GenerationService](injector)

	expired := filepath.Join(root, "20200101_000000_deadbeef")
	require.NoError(t, os.MkdirAll(expired, 0755))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, sweepOutputs(ctx, service, 24*time.Hour, time.Minute))
	assert.NoDirExists(t, expired)
}
