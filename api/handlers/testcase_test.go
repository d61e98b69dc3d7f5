package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/api/handlers"
	"github.com/feichai0017/testcase-generator/api/middleware"
	"github.com/feichai0017/testcase-generator/api/routes"
	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/queue"
)

type fakeService struct {
	generateErr error
	names       []string
	requestID   string
}

func (f *fakeService) Generate(ctx context.Context, files []*multipart.FileHeader) (*testcase.GenerateResult, error) {
	for _, fh := range files {
		f.names = append(f.names, fh.Filename)
	}
	f.requestID, _ = logger.RequestID(ctx)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &testcase.GenerateResult{
		Token:   "tok-1",
		Reply:   "TC01 | a | b | c | d",
		Records: []models.TestCaseRecord{models.NewTestCaseRecord("TC01", "a", "b", "c", "d")},
	}, nil
}

func (f *fakeService) GetArtifact(_ context.Context, token string) (*testcase.Artifact, error) {
	if token != "tok-1" {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, token)
	}
	return &testcase.Artifact{
		Name:        "test_cases_tok-1.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body:        io.NopCloser(strings.NewReader("PK-bytes")),
	}, nil
}

func (f *fakeService) SubmitJob(context.Context, []*multipart.FileHeader) (*models.ProcessingTask, error) {
	return nil, models.ErrAsyncDisabled
}

func (f *fakeService) HandleJob(context.Context, *queue.Task) error { return nil }

func (f *fakeService) GetJobStatus(_ context.Context, id string) (*models.ProcessingTask, error) {
	if id != "job-1" {
		return nil, models.ErrJobNotFound
	}
	return &models.ProcessingTask{ID: id, Status: models.StatusCompleted, Count: 3}, nil
}

func (f *fakeService) CancelJob(context.Context, string) error { return nil }

func (f *fakeService) CleanupArtifacts(context.Context) error { return nil }

func newRouter(svc testcase.TestCaseGenerator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.SetupRoutes(r, handlers.NewHandlers(svc, logger.NewNop()), logger.NewNop(), nil)
	return r
}

func uploadRequest(t *testing.T, url string, names ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, n := range names {
		part, err := w.CreateFormFile(handlers.FormField, n)
		require.NoError(t, err)
		_, _ = part.Write([]byte("data"))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestGenerateEndpoint(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/v1/testcases", "spec.pdf", "shot.png")
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "req-42", svc.requestID)
	assert.Equal(t, []string{"spec.pdf", "shot.png"}, svc.names)

	var resp handlers.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "/api/v1/testcases/tok-1/download", resp.DownloadURL)
	assert.Equal(t, "Not yet executed", resp.TestCases[0].Status)
}

func TestGenerateWithoutFiles(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, uploadRequest(t, "/api/v1/testcases"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.names)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "invalid upload")
}

func TestGenerateErrorMapping(t *testing.T) {
	cases := map[error]int{
		models.ErrInvalidUpload:        http.StatusBadRequest,
		models.ErrUnreadableDocument:   http.StatusBadRequest,
		models.ErrEmptyExtraction:      http.StatusBadRequest,
		models.ErrNoTestCasesGenerated: http.StatusBadRequest,
		models.ErrGenerationFailure:    http.StatusBadGateway,
		models.ErrDetectorUnavailable:  http.StatusServiceUnavailable,
		fmt.Errorf("disk full"):        http.StatusInternalServerError,
	}
	for err, want := range cases {
		rec := httptest.NewRecorder()
		newRouter(&fakeService{generateErr: fmt.Errorf("wrapped: %w", err)}).
			ServeHTTP(rec, uploadRequest(t, "/api/v1/testcases", "a.pdf"))
		assert.Equal(t, want, rec.Code, err.Error())
	}
}

func TestDownload(t *testing.T) {
	r := newRouter(&fakeService{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/testcases/tok-1/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "test_cases_tok-1.xlsx")
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/testcases/other/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobs(t *testing.T) {
	r := newRouter(&fakeService{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "/api/v1/testcases/jobs", "a.pdf"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/testcases/jobs/job-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "/api/v1/testcases/job-1/download", body["downloadUrl"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/testcases/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/testcases/jobs/job-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&fakeService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
