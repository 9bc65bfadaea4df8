package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jimeng-image-generator/internal/handlers"
	"jimeng-image-generator/internal/jimeng"
	"jimeng-image-generator/internal/models"
	"jimeng-image-generator/internal/services"
	"jimeng-image-generator/internal/storage"
)

type stubGenerator struct {
	result *jimeng.Result
	err    error
	calls  int
}

func (s *stubGenerator) GenerateImages(context.Context, models.GenerationRequest) (*jimeng.Result, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubGenerator) WaitForResult(context.Context, string, time.Duration, time.Duration) (*jimeng.Result, error) {
	return s.result, s.err
}

func jpegData(n int) []models.ImageData {
	data := make([]models.ImageData, n)
	for i := range data {
		data[i] = models.ImageData{B64JSON: base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, byte(i)})}
	}
	return data
}

type stubHistory struct {
	records map[string]models.TaskRecord
}

func (h *stubHistory) CreateTask(_ context.Context, record *models.TaskRecord) error {
	h.records[record.ID] = *record
	return nil
}

func (h *stubHistory) CompleteTask(_ context.Context, taskID, status string, imageCount int, _ string) error {
	record := h.records[taskID]
	record.Status = status
	record.ImageCount = imageCount
	h.records[taskID] = record
	return nil
}

func (h *stubHistory) GetTask(_ context.Context, taskID string) (*models.TaskRecord, error) {
	record, ok := h.records[taskID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &record, nil
}

func (h *stubHistory) ListTasks(context.Context, int) ([]models.TaskRecord, error) {
	return nil, nil
}

func setupRouter(t *testing.T, gen jimeng.Generator, opts ...services.Option) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := services.NewGenerationService(
		gen,
		storage.NewImageSaver(nil),
		storage.NewOutputStore(filepath.Join(t.TempDir(), "output")),
		time.Second,
		time.Second,
		opts...,
	)
	generateHandler := handlers.NewGenerateHandler(service)
	outputsHandler := handlers.NewOutputsHandler(service)
	tasksHandler := handlers.NewTasksHandler(service)

	router := gin.New()
	router.GET("/", handlers.IndexHandler)
	router.GET("/health", handlers.HealthHandler)
	router.POST("/generate", generateHandler.Generate)
	router.GET("/output", outputsHandler.ListOutputs)
	router.GET("/output/:dir/:file", outputsHandler.GetOutputFile)
	router.GET("/tasks", tasksHandler.ListTasks)
	router.GET("/tasks/:id", tasksHandler.GetTask)
	return router
}

func postGenerate(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	router := setupRouter(t, &stubGenerator{})

	w := get(router, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestIndexHandler(t *testing.T) {
	router := setupRouter(t, &stubGenerator{})

	w := get(router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `id="generate-form"`)
}

func TestGenerate_Success(t *testing.T) {
	gen := &stubGenerator{result: &jimeng.Result{Status: jimeng.StatusSucceeded, Data: jpegData(2)}}
	router := setupRouter(t, gen)

	w := postGenerate(router, `{"prompt":"a red fox in the snow","size":"1024x1024","count":2,"seed":42}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Images, 2)
	assert.Len(t, resp.TaskID, 8)

	file := get(router, "/output/"+resp.Images[0])
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, []byte{0xff, 0xd8, 0x00}, file.Body.Bytes())

	list := get(router, "/output")
	require.Equal(t, http.StatusOK, list.Code)
	var outputs models.OutputListResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &outputs))
	assert.True(t, outputs.Success)
	assert.Equal(t, 1, outputs.TotalTasks)
	assert.Equal(t, resp.Images, outputs.Tasks[0].Images)
}

func TestGenerate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing prompt", `{}`},
		{"blank prompt", `{"prompt":"   "}`},
		{"explicit zero count", `{"prompt":"fox","count":0}`},
		{"count too large", `{"prompt":"fox","count":11}`},
		{"bad size", `{"prompt":"fox","size":"999x999"}`},
		{"scale out of range", `{"prompt":"fox","scale":1.1}`},
		{"malformed json", `{"prompt":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{}
			router := setupRouter(t, gen)

			w := postGenerate(router, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
			assert.Zero(t, gen.calls)
		})
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	gen := &stubGenerator{err: &jimeng.APIError{Op: "generate images", StatusCode: 401, Body: "unauthorized"}}
	router := setupRouter(t, gen)

	w := postGenerate(router, `{"prompt":"fox"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "401")
}

func TestGetOutputFile(t *testing.T) {
	gen := &stubGenerator{result: &jimeng.Result{Data: jpegData(1)}}
	router := setupRouter(t, gen)

	w := postGenerate(router, `{"prompt":"fox","count":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Images, 1)

	w = get(router, "/output/"+resp.Images[0])
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{0xff, 0xd8, 0x00}, w.Body.Bytes())

	w = get(router, "/output")
	require.Equal(t, http.StatusOK, w.Code)
	var list models.OutputListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.TotalTasks)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, resp.Images, list.Tasks[0].Images)
	assert.Equal(t, filepath.Dir(resp.Images[0]), list.Tasks[0].TaskDir)
}

func TestGetOutputFile_NotFound(t *testing.T) {
	gen := &stubGenerator{result: &jimeng.Result{Data: jpegData(1)}}
	router := setupRouter(t, gen)

	w := postGenerate(router, `{"prompt":"fox"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	taskDir := filepath.Dir(resp.Images[0])

	for _, path := range []string{
		"/output/" + taskDir + "/task.yaml",
		"/output/" + taskDir + "/missing.jpg",
		"/output/unknown/image_0.jpg",
		"/output/..%2F/" + filepath.Base(resp.Images[0]),
		"/output/" + taskDir + "/..%2F..%2Fgo.mod",
	} {
		assert.Equal(t, http.StatusNotFound, get(router, path).Code, path)
	}
}

func TestListOutputs_Empty(t *testing.T) {
	router := setupRouter(t, &stubGenerator{})

	w := get(router, "/output")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"total_tasks":0,"tasks":[]}`, w.Body.String())
}

func TestListTasks_NoDatabase(t *testing.T) {
	router := setupRouter(t, &stubGenerator{})

	w := get(router, "/tasks")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database not available")
}

func TestGetTask(t *testing.T) {
	history := &stubHistory{records: map[string]models.TaskRecord{}}
	gen := &stubGenerator{result: &jimeng.Result{Data: jpegData(1)}}
	router := setupRouter(t, gen, services.WithHistory(history))

	w := postGenerate(router, `{"prompt":"fox","count":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = get(router, "/tasks/"+resp.TaskID)
	assert.Equal(t, http.StatusOK, w.Code)
	var record models.TaskRecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, resp.TaskID, record.TaskID)
	assert.Equal(t, "fox", record.Prompt)
	assert.Equal(t, models.TaskStatusSucceeded, record.Status)
	assert.Equal(t, 1, record.ImageCount)

	assert.Equal(t, http.StatusNotFound, get(router, "/tasks/missing0").Code)
}

func TestGetTask_NoDatabase(t *testing.T) {
	router := setupRouter(t, &stubGenerator{})

	w := get(router, "/tasks/abcd1234")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database not available")
}
