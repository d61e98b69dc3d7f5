package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/storage/local"
	"github.com/feichai0017/testcase-generator/pkg/storage/minio"
	"github.com/feichai0017/testcase-generator/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
	StorageTypeLocal StorageType = "local"
)

// ErrNotFound is wrapped by Get for keys that do not exist.
var ErrNotFound = fs.ErrNotExist

// Storage 接口定义
type Storage interface {
	// Store 存储文件
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get 获取文件
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, key string) error
	// List returns the keys that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// CleanupBefore 清理过期文件
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

type Config struct {
	Type  StorageType  `yaml:"type"`
	S3    s3.Config    `yaml:"s3"`
	Minio minio.Config `yaml:"minio"`
	Local local.Config `yaml:"local"`
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(ctx context.Context, cfg Config, log logger.Logger) (Storage, error) {
	switch cfg.Type {
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, cfg.S3, log.Named("s3"))
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, cfg.Minio, log.Named("minio"))
	case StorageTypeLocal, "":
		return local.NewLocalStorage(cfg.Local, log.Named("local"))
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
