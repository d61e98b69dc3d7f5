package testcase

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/queue"
)

// GenerateResult is the outcome of a synchronous generation request.
type GenerateResult struct {
	// Token identifies the stored artifact of this request.
	Token   string                  `json:"token"`
	Reply   string                  `json:"output"`
	Records []models.TestCaseRecord `json:"testCases"`
}

// Artifact is a stored export opened for download. Callers close Body.
type Artifact struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}

type TestCaseGenerator interface {
	Generate(ctx context.Context, files []*multipart.FileHeader) (*GenerateResult, error)
	GetArtifact(ctx context.Context, token string) (*Artifact, error)
	SubmitJob(ctx context.Context, files []*multipart.FileHeader) (*models.ProcessingTask, error)
	HandleJob(ctx context.Context, task *queue.Task) error
	GetJobStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error)
	CancelJob(ctx context.Context, taskID string) error
	CleanupArtifacts(ctx context.Context) error
}
