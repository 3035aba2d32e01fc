package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docstore/internal/model"
	"docstore/internal/service"
	serviceMocks "docstore/internal/service/mocks"
	"docstore/internal/storage"
	storeMocks "docstore/internal/storage/mocks"
)

func multipartBody(t *testing.T, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "upload.bin")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		pinger := new(storeMocks.MockBackend)
		pinger.On("Ping", mock.Anything).Return(nil)

		app := fiber.New()
		app.Get("/health", HealthCheck(pinger))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
		pinger.AssertExpectations(t)
	})

	t.Run("unhealthy", func(t *testing.T) {
		pinger := new(storeMocks.MockBackend)
		pinger.On("Ping", mock.Anything).Return(errors.New("backend down"))

		app := fiber.New()
		app.Get("/health", HealthCheck(pinger))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	t.Run("no pinger", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "docstore_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	app := fiber.New()
	app.Get("/metrics", Metrics(reg))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "docstore_test_total 1")
}

func TestUploadDocument(t *testing.T) {
	mockStore := new(serviceMocks.MockDocumentStore)
	app := fiber.New()
	app.Post("/documents/*", UploadDocument(mockStore))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "hello world")
		now := time.Now()
		expected := &model.DocumentFile{KeyName: "p/dir/a.txt", Name: "p/dir/a.txt", LastAccessDate: &now, LastUpdateDate: now, Size: 11}
		mockStore.On("Create", mock.Anything, mock.Anything, "dir/a.txt", int64(11)).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/dir/a.txt", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.DocumentFile
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "p/dir/a.txt", result.KeyName)
		assert.Equal(t, int64(11), result.Size)
		mockStore.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/documents/a.txt", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("no key", func(t *testing.T) {
		body, ct := multipartBody(t, "hello")
		req := httptest.NewRequest(http.MethodPost, "/documents/", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "KEY_REQUIRED", res.Error.Code)
	})

	t.Run("store error", func(t *testing.T) {
		body, ct := multipartBody(t, "hello")
		mockStore.On("Create", mock.Anything, mock.Anything, "a.txt", int64(5)).
			Return(nil, errors.New("upload failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/a.txt", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockStore.AssertExpectations(t)
	})
}

func TestFindDocument(t *testing.T) {
	mockStore := new(serviceMocks.MockDocumentStore)
	app := fiber.New()
	app.Get("/documents/*", FindDocument(mockStore))

	t.Run("success", func(t *testing.T) {
		ts := time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC)
		mockStore.On("Find", mock.Anything, "OBJECT_1").
			Return(&model.DocumentFile{KeyName: "OBJECT_1", Name: "OBJECT_1", LastUpdateDate: ts}, nil).Once()
		mockStore.On("URL", "OBJECT_1").Return("https://s3.amazonaws.com/b/OBJECT_1", nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/OBJECT_1", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "OBJECT_1", body["key_name"])
		assert.Nil(t, body["last_access_date"])
		assert.Equal(t, "https://s3.amazonaws.com/b/OBJECT_1", body["url"])
		mockStore.AssertExpectations(t)
	})

	t.Run("absent", func(t *testing.T) {
		mockStore.On("Find", mock.Anything, "DOES_NOT_EXIST").Return(nil, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/DOES_NOT_EXIST", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("bucket not configured", func(t *testing.T) {
		mockStore.On("Find", mock.Anything, "k").
			Return(nil, &service.Error{Op: "find", Key: "k", Err: service.ErrBucketNotConfigured}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/k", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "CONFIGURATION_ERROR", res.Error.Code)
		mockStore.AssertExpectations(t)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockStore := new(serviceMocks.MockDocumentStore)
	app := fiber.New()
	app.Delete("/documents/*", DeleteDocument(mockStore))

	t.Run("success", func(t *testing.T) {
		mockStore.On("Delete", mock.Anything, "dir/X").Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/dir/X", nil))

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockStore.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		mockStore.On("Delete", mock.Anything, "X").Return(errors.New("delete error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/X", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockStore.AssertExpectations(t)
	})
}

func TestDownloadContent(t *testing.T) {
	mockStore := new(serviceMocks.MockDocumentStore)
	app := fiber.New()
	app.Get("/content/*", DownloadContent(mockStore))

	t.Run("success", func(t *testing.T) {
		mockStore.On("Fetch", mock.Anything, "OBJECT_1").Return([]byte("OBJECT_1"), nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/content/OBJECT_1", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, fiber.MIMEOctetStream, resp.Header.Get(fiber.HeaderContentType))
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "OBJECT_1", string(body))
	})

	t.Run("missing key", func(t *testing.T) {
		mockStore.On("Fetch", mock.Anything, "MISSING").
			Return(nil, &service.Error{Op: "fetch", Bucket: "b", Key: "MISSING", Err: storage.ErrNotFound}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/content/MISSING", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockStore.AssertExpectations(t)
	})
}

// TestRoutesWithMemoryBackend drives the real document store through the HTTP surface.
func TestRoutesWithMemoryBackend(t *testing.T) {
	backend := storage.NewMemory()
	store := service.NewDocumentStore(backend, service.Config{Bucket: "docs", KeyNamePrefix: "java-aws-s3"})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, backend, prometheus.NewRegistry(), store)

	body, ct := multipartBody(t, "NEW_OBJECT")
	req := httptest.NewRequest(http.MethodPost, "/documents/NEW_OBJECT", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/documents/NEW_OBJECT", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&found))
	assert.Equal(t, "NEW_OBJECT", found["key_name"])
	assert.Equal(t, "https://s3.amazonaws.com/docs/java-aws-s3/NEW_OBJECT", found["url"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/content/NEW_OBJECT", nil))
	require.NoError(t, err)
	content, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "NEW_OBJECT", string(content))

	for i := 0; i < 2; i++ {
		resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/documents/NEW_OBJECT", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/documents/NEW_OBJECT", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	data, err := backend.Get(context.Background(), "docs", "java-aws-s3/NEW_OBJECT")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Nil(t, data)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockStore := new(serviceMocks.MockDocumentStore)
	RegisterRoutes(app, nil, prometheus.NewRegistry(), mockStore)

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/health", strings.NewReader("")))

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})
}
