package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/internal/service/testcase"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// FormField is the multipart field carrying uploads.
const FormField = "file"

type TestCaseHandler struct {
	service testcase.TestCaseGenerator
	logger  logger.ContextLogger
}

// GenerateResponse 定义生成响应结构
type GenerateResponse struct {
	Message     string                  `json:"message"`
	Token       string                  `json:"token"`
	Output      string                  `json:"output"`
	Count       int                     `json:"count"`
	TestCases   []models.TestCaseRecord `json:"testCases"`
	DownloadURL string                  `json:"downloadUrl"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewTestCaseHandler(service testcase.TestCaseGenerator, log logger.Logger) *TestCaseHandler {
	return &TestCaseHandler{
		service: service,
		logger:  logger.NewContextLogger(log),
	}
}

// Generate 同步生成测试用例
func (h *TestCaseHandler) Generate(c *gin.Context) {
	files, err := formFiles(c)
	if err != nil {
		h.handleError(c, "Invalid file upload", err)
		return
	}

	res, err := h.service.Generate(c.Request.Context(), files)
	if err != nil {
		h.handleError(c, "Failed to generate test cases", err)
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		Message:     "Test cases generated successfully",
		Token:       res.Token,
		Output:      res.Reply,
		Count:       len(res.Records),
		TestCases:   res.Records,
		DownloadURL: downloadURL(res.Token),
	})
}

// Download 下载导出文件
func (h *TestCaseHandler) Download(c *gin.Context) {
	token := c.Param("token")

	art, err := h.service.GetArtifact(c.Request.Context(), token)
	if err != nil {
		h.handleError(c, "Failed to get artifact", err)
		return
	}
	defer art.Body.Close()

	c.DataFromReader(http.StatusOK, -1, art.ContentType, art.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", art.Name),
	})
}

// SubmitJob 提交异步任务
func (h *TestCaseHandler) SubmitJob(c *gin.Context) {
	files, err := formFiles(c)
	if err != nil {
		h.handleError(c, "Invalid file upload", err)
		return
	}

	task, err := h.service.SubmitJob(c.Request.Context(), files)
	if err != nil {
		h.handleError(c, "Failed to submit job", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":     fmt.Sprintf("Processing %d documents", len(files)),
		"taskId":      task.ID,
		"status":      task.Status,
		"files":       task.Files,
		"createdAt":   task.CreatedAt,
		"downloadUrl": downloadURL(task.ID),
	})
}

// GetJobStatus 获取处理状态
func (h *TestCaseHandler) GetJobStatus(c *gin.Context) {
	task, err := h.service.GetJobStatus(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		h.handleError(c, "Failed to get status", err)
		return
	}

	body := gin.H{
		"taskId":    task.ID,
		"status":    task.Status,
		"progress":  task.Progress,
		"error":     task.Error,
		"count":     task.Count,
		"createdAt": task.CreatedAt,
		"updatedAt": task.UpdatedAt,
	}
	if task.Status == models.StatusCompleted {
		body["downloadUrl"] = downloadURL(task.ID)
	}
	c.JSON(http.StatusOK, body)
}

// CancelJob 取消处理任务
func (h *TestCaseHandler) CancelJob(c *gin.Context) {
	taskID := c.Param("taskId")
	if err := h.service.CancelJob(c.Request.Context(), taskID); err != nil {
		h.handleError(c, "Failed to cancel task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

func formFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidUpload, err)
	}
	files := form.File[FormField]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no file part", models.ErrInvalidUpload)
	}
	return files, nil
}

func downloadURL(token string) string {
	return "/api/v1/testcases/" + token + "/download"
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidUpload),
		errors.Is(err, models.ErrUnreadableDocument),
		errors.Is(err, models.ErrEmptyExtraction),
		errors.Is(err, models.ErrNoTestCasesGenerated):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrArtifactNotFound), errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrGenerationFailure):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrDetectorUnavailable), errors.Is(err, models.ErrAsyncDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError 统一错误处理
func (h *TestCaseHandler) handleError(c *gin.Context, message string, err error) {
	status := StatusFor(err)
	log := h.logger.FromContext(c.Request.Context())
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	c.JSON(status, ErrorResponse{
		Error:   err.Error(),
		Message: message,
	})
}
