package testcase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/internal/utils/validator"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/queue"
	"github.com/feichai0017/testcase-generator/pkg/storage"
)

const (
	exportPrefix = "exports/"
	uploadPrefix = "uploads/"
)

type Config struct {
	// ScratchDir holds per-request upload directories. Empty means os.TempDir.
	ScratchDir    string
	Retention     time.Duration
	QueuePriority int
}

type TestCaseService struct {
	validator *validator.UploadValidator
	pipeline  *Pipeline
	storage   storage.Storage
	queue     queue.Queue
	logger    logger.ContextLogger
	config    Config
}

// NewService wires the generator. q may be nil, which disables async jobs.
func NewService(
	v *validator.UploadValidator,
	pipeline *Pipeline,
	store storage.Storage,
	q queue.Queue,
	log logger.Logger,
	cfg Config,
) *TestCaseService {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &TestCaseService{
		validator: v,
		pipeline:  pipeline,
		storage:   store,
		queue:     q,
		logger:    logger.NewContextLogger(log),
		config:    cfg,
	}
}

// Generate runs the whole pipeline on the uploaded files within the request.
func (s *TestCaseService) Generate(ctx context.Context, files []*multipart.FileHeader) (*GenerateResult, error) {
	log := s.logger.FromContext(ctx)

	if _, err := s.validator.ValidateFiles(files); err != nil {
		log.Warn("Upload rejected", logger.Error(err))
		return nil, err
	}

	dir, err := os.MkdirTemp(s.config.ScratchDir, "qagen-req-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create request directory: %w", err)
	}
	defer os.RemoveAll(dir)

	docs := make([]models.Document, len(files))
	for i, fh := range files {
		doc, err := saveUpload(dir, i, fh)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}

	res, err := s.pipeline.Run(ctx, docs)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if _, err := s.storage.Store(ctx, bytes.NewReader(res.Artifact), s.artifactKey(token)); err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}

	log.Info("Test cases ready",
		logger.String("token", token),
		logger.Int("count", len(res.Records)),
	)
	return &GenerateResult{Token: token, Reply: res.Reply, Records: res.Records}, nil
}

// GetArtifact opens the export stored under token. Sync tokens and async
// task IDs share the same key space.
func (s *TestCaseService) GetArtifact(ctx context.Context, token string) (*Artifact, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, token)
	}
	key := s.artifactKey(token)
	body, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, token)
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	exp := s.pipeline.Exporter()
	return &Artifact{
		Name:        "test_cases_" + token + exp.Extension(),
		ContentType: exp.ContentType(),
		Body:        body,
	}, nil
}

// SubmitJob stores the uploads and enqueues a generation task.
func (s *TestCaseService) SubmitJob(ctx context.Context, files []*multipart.FileHeader) (*models.ProcessingTask, error) {
	if s.queue == nil {
		return nil, models.ErrAsyncDisabled
	}
	log := s.logger.FromContext(ctx)

	if _, err := s.validator.ValidateFiles(files); err != nil {
		log.Warn("Upload rejected", logger.Error(err))
		return nil, err
	}

	taskID := uuid.NewString()
	now := time.Now()
	uploads := make([]queue.Upload, len(files))
	names := make([]string, len(files))
	for i, fh := range files {
		key := uploadKey(taskID, i, fh.Filename)
		if err := s.storeUpload(ctx, fh, key); err != nil {
			return nil, err
		}
		uploads[i] = queue.Upload{Key: key, Name: fh.Filename}
		names[i] = fh.Filename
	}

	task := &queue.Task{
		ID:        taskID,
		Type:      queue.TaskTypeGenerate,
		Priority:  s.config.QueuePriority,
		Uploads:   uploads,
		Metadata:  map[string]string{"files": strconv.Itoa(len(files))},
		CreatedAt: now,
	}
	if id, ok := logger.RequestID(ctx); ok {
		task.Metadata["requestId"] = id
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		log.Error("Failed to enqueue task", logger.String("taskId", taskID), logger.Error(err))
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	// 保存初始状态
	if err := s.queue.SaveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    string(models.StatusPending),
		StartedAt: now,
	}); err != nil {
		log.Error("Failed to save initial status", logger.String("taskId", task.ID), logger.Error(err))
	}

	log.Info("Generation job submitted", logger.String("taskId", task.ID), logger.Int("files", len(files)))
	return &models.ProcessingTask{
		ID:        task.ID,
		Status:    models.StatusPending,
		Type:      task.Type,
		Files:     names,
		Metadata:  task.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HandleJob runs a queued task. It is called by the worker.
func (s *TestCaseService) HandleJob(ctx context.Context, task *queue.Task) error {
	if task == nil || task.ID == "" || len(task.Uploads) == 0 {
		return fmt.Errorf("%w: task has no uploads", models.ErrInvalidUpload)
	}
	if id := task.Metadata["requestId"]; id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	log := s.logger.FromContext(ctx).With(logger.String("taskId", task.ID))

	status := &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    string(models.StatusRunning),
		Progress:  0.1,
		StartedAt: time.Now(),
	}
	s.saveStatus(ctx, status, log)

	count, err := s.runJob(ctx, task)
	status.FinishedAt = time.Now()
	if err != nil {
		status.Status = string(models.StatusFailed)
		status.Error = err.Error()
		s.saveStatus(ctx, status, log)
		return err
	}

	status.Status = string(models.StatusCompleted)
	status.Progress = 1.0
	status.Count = count
	status.ArtifactKey = s.artifactKey(task.ID)
	s.saveStatus(ctx, status, log)

	for _, u := range task.Uploads {
		if err := s.storage.Delete(ctx, u.Key); err != nil {
			log.Warn("Failed to delete upload", logger.String("key", u.Key), logger.Error(err))
		}
	}
	log.Info("Generation job completed", logger.Int("count", count))
	return nil
}

func (s *TestCaseService) runJob(ctx context.Context, task *queue.Task) (int, error) {
	dir, err := os.MkdirTemp(s.config.ScratchDir, "qagen-job-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create job directory: %w", err)
	}
	defer os.RemoveAll(dir)

	docs := make([]models.Document, len(task.Uploads))
	for i, u := range task.Uploads {
		doc, err := s.fetchUpload(ctx, dir, i, u)
		if err != nil {
			return 0, err
		}
		docs[i] = doc
	}

	res, err := s.pipeline.Run(ctx, docs)
	if err != nil {
		return 0, err
	}
	if _, err := s.storage.Store(ctx, bytes.NewReader(res.Artifact), s.artifactKey(task.ID)); err != nil {
		return 0, fmt.Errorf("failed to store artifact: %w", err)
	}
	return len(res.Records), nil
}

// GetJobStatus 获取处理状态
func (s *TestCaseService) GetJobStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	if s.queue == nil {
		return nil, models.ErrAsyncDisabled
	}
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    models.ParseStatus(status.Status),
		Type:      queue.TaskTypeGenerate,
		Progress:  status.Progress,
		Error:     status.Error,
		Count:     status.Count,
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// CancelJob 取消任务
func (s *TestCaseService) CancelJob(ctx context.Context, taskID string) error {
	if s.queue == nil {
		return models.ErrAsyncDisabled
	}
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return fmt.Errorf("%w: %s", models.ErrJobNotFound, taskID)
		}
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	s.logger.FromContext(ctx).Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// CleanupArtifacts 清理过期文件
func (s *TestCaseService) CleanupArtifacts(ctx context.Context) error {
	threshold := time.Now().Add(-s.config.Retention)
	if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}
	s.logger.Info("Completed artifact cleanup", logger.Time("threshold", threshold))
	return nil
}

func (s *TestCaseService) artifactKey(token string) string {
	return exportPrefix + token + s.pipeline.Exporter().Extension()
}

func (s *TestCaseService) saveStatus(ctx context.Context, status *queue.TaskStatus, log logger.Logger) {
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		log.Error("Failed to save task status",
			logger.String("status", status.Status),
			logger.Error(err),
		)
	}
}

func (s *TestCaseService) storeUpload(ctx context.Context, fh *multipart.FileHeader, key string) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", models.ErrInvalidUpload, fh.Filename, err)
	}
	defer f.Close()
	if _, err := s.storage.Store(ctx, f, key); err != nil {
		return fmt.Errorf("failed to store upload %s: %w", fh.Filename, err)
	}
	return nil
}

func (s *TestCaseService) fetchUpload(ctx context.Context, dir string, i int, u queue.Upload) (models.Document, error) {
	rc, err := s.storage.Get(ctx, u.Key)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to get upload %s: %w", u.Name, err)
	}
	defer rc.Close()
	return writeDocument(dir, i, u.Name, rc)
}

// uploadKey keeps the original name so the extension survives the round trip.
func uploadKey(taskID string, i int, name string) string {
	return path.Join(uploadPrefix+taskID, strconv.Itoa(i)+"_"+safeName(name))
}

func saveUpload(dir string, i int, fh *multipart.FileHeader) (models.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: failed to open %s: %v", models.ErrInvalidUpload, fh.Filename, err)
	}
	defer f.Close()
	return writeDocument(dir, i, fh.Filename, f)
}

// writeDocument copies r into dir under an index-prefixed name, so two uploads
// with the same filename never collide.
func writeDocument(dir string, i int, name string, r io.Reader) (models.Document, error) {
	p := filepath.Join(dir, strconv.Itoa(i)+"_"+safeName(name))
	out, err := os.Create(p)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to create %s: %w", p, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return models.Document{}, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return models.Document{}, err
	}
	return models.Document{Name: name, Path: p}, nil
}

func safeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}
	return base
}
