// internal/utils/validator/upload.go
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// DefaultMaxFileSize 50MB
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// Config 验证器配置
type Config struct {
	MaxFileSize  int64    `yaml:"max_file_size"`
	AllowedTypes []string `yaml:"allowed_types"`
}

func DefaultConfig() Config {
	return Config{
		MaxFileSize:  DefaultMaxFileSize,
		AllowedTypes: []string{".pdf", ".docx", ".png", ".jpg", ".jpeg"},
	}
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mimeType"`
	Hash      string `json:"hash"`
}

// UploadValidator checks a batch of uploads before any of them is read for
// extraction. Only the extension decides acceptance; the sniffed MIME type is
// recorded for logs.
type UploadValidator struct {
	logger  logger.Logger
	maxSize int64
	allowed map[string]struct{}
}

func NewUploadValidator(cfg Config, log logger.Logger) *UploadValidator {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = DefaultConfig().AllowedTypes
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		t = strings.ToLower(t)
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		allowed[t] = struct{}{}
	}
	return &UploadValidator{logger: log, maxSize: cfg.MaxFileSize, allowed: allowed}
}

// CheckNames validates names and sizes only. It never opens a file.
func (v *UploadValidator) CheckNames(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no file selected", models.ErrInvalidUpload)
	}
	for _, f := range files {
		if f == nil || strings.TrimSpace(f.Filename) == "" {
			return fmt.Errorf("%w: empty filename", models.ErrInvalidUpload)
		}
		ext := strings.ToLower(filepath.Ext(f.Filename))
		if _, ok := v.allowed[ext]; !ok {
			return fmt.Errorf("%w: file type %q of %s is not allowed", models.ErrInvalidUpload, ext, f.Filename)
		}
		if f.Size > v.maxSize {
			return fmt.Errorf("%w: %s exceeds maximum size of %d bytes", models.ErrInvalidUpload, f.Filename, v.maxSize)
		}
	}
	return nil
}

// ValidateFiles runs CheckNames for the whole batch, then fingerprints each file.
func (v *UploadValidator) ValidateFiles(files []*multipart.FileHeader) ([]FileInfo, error) {
	if err := v.CheckNames(files); err != nil {
		return nil, err
	}

	infos := make([]FileInfo, len(files))
	for i, f := range files {
		info, err := v.inspect(f)
		if err != nil {
			return nil, err
		}
		v.logger.Debug("Upload accepted",
			logger.String("filename", info.Filename),
			logger.Int64("size", info.Size),
			logger.String("mimeType", info.MimeType),
			logger.String("hash", info.Hash),
		)
		infos[i] = info
	}
	return infos, nil
}

func (v *UploadValidator) inspect(header *multipart.FileHeader) (FileInfo, error) {
	info := FileInfo{
		Filename:  header.Filename,
		Size:      header.Size,
		Extension: strings.ToLower(filepath.Ext(header.Filename)),
	}

	f, err := header.Open()
	if err != nil {
		return info, fmt.Errorf("%w: failed to open %s: %v", models.ErrInvalidUpload, header.Filename, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return info, fmt.Errorf("failed to detect mime type: %w", err)
	}
	info.MimeType = mt.String()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("failed to reset file pointer: %w", err)
	}
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return info, fmt.Errorf("failed to calculate hash: %w", err)
	}
	info.Hash = hex.EncodeToString(hash.Sum(nil))
	return info, nil
}
