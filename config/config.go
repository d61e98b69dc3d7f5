// Package config loads the service configuration from defaults, an optional
// YAML file, an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/feichai0017/testcase-generator/internal/agent/llm"
	"github.com/feichai0017/testcase-generator/internal/agent/prompt"
	"github.com/feichai0017/testcase-generator/internal/agent/vision"
	"github.com/feichai0017/testcase-generator/internal/utils/validator"
	"github.com/feichai0017/testcase-generator/pkg/logger"
	"github.com/feichai0017/testcase-generator/pkg/ollama"
	"github.com/feichai0017/testcase-generator/pkg/queue"
	"github.com/feichai0017/testcase-generator/pkg/storage"
)

// EnvConfigPath names the variable Get reads the YAML path from.
const EnvConfigPath = "QAGEN_CONFIG"

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type ExportConfig struct {
	// Format is xlsx or json.
	Format string `yaml:"format"`
}

type ScratchConfig struct {
	Dir string `yaml:"dir"`
}

type RetentionConfig struct {
	Period   time.Duration `yaml:"period"`
	Interval time.Duration `yaml:"interval"`
}

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Log       logger.Config         `yaml:"log"`
	Upload    validator.Config      `yaml:"upload"`
	LLM       llm.Config            `yaml:"llm"`
	OCR       vision.OCRConfig      `yaml:"ocr"`
	Detector  vision.DetectorConfig `yaml:"detector"`
	Storage   storage.Config        `yaml:"storage"`
	Queue     queue.Config          `yaml:"queue"`
	Export    ExportConfig          `yaml:"export"`
	Scratch   ScratchConfig         `yaml:"scratch"`
	Retention RetentionConfig       `yaml:"retention"`
	// CacheSize bounds the image analysis cache; zero disables it.
	CacheSize int `yaml:"cache_size"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 5 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Log:    logger.DefaultConfig(),
		Upload: validator.DefaultConfig(),
		LLM: llm.Config{
			Provider:    "openai",
			Temperature: prompt.DefaultTemperature,
			MaxTokens:   prompt.DefaultMaxTokens,
			Timeout:     120 * time.Second,
			Ollama:      ollama.Config{Endpoint: "http://localhost:11434"},
		},
		OCR:      vision.DefaultOCRConfig(),
		Detector: vision.DetectorConfig{Backend: "textract"},
		Storage: storage.Config{
			Type: storage.StorageTypeLocal,
		},
		Queue:     queue.DefaultConfig(),
		Export:    ExportConfig{Format: "xlsx"},
		Retention: RetentionConfig{Period: 24 * time.Hour, Interval: time.Hour},
		CacheSize: 128,
	}
}

// Load builds a Config. A missing file at path is not an error; an
// unparsable one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	// 加载 .env 文件，已存在的环境变量优先
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

var (
	once      sync.Once
	singleton *Config
	loadErr   error
)

// Get loads the process-wide configuration once, from $QAGEN_CONFIG or config.yaml.
func Get() (*Config, error) {
	once.Do(func() {
		path := os.Getenv(EnvConfigPath)
		if path == "" {
			path = "config.yaml"
		}
		singleton, loadErr = Load(path)
	})
	return singleton, loadErr
}

func (c *Config) Validate() error {
	switch c.Export.Format {
	case "xlsx", "json":
	default:
		return fmt.Errorf("config: unsupported export format %q", c.Export.Format)
	}
	switch c.Storage.Type {
	case storage.StorageTypeLocal, storage.StorageTypeS3, storage.StorageTypeMinio:
	default:
		return fmt.Errorf("config: unsupported storage type %q", c.Storage.Type)
	}
	if c.Queue.Enabled && c.Queue.RedisAddr == "" {
		return errors.New("config: queue.redis_addr is required when the queue is enabled")
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("config: llm.timeout must be positive")
	}
	return nil
}

type envBinding struct {
	name string
	set  func(string) error
}

func str(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func num(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func num64(dst *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func float(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func boolean(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func duration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func list(dst *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*dst = out
		return nil
	}
}

func storageType(dst *storage.StorageType) func(string) error {
	return func(v string) error { *dst = storage.StorageType(v); return nil }
}

func applyEnv(c *Config) error {
	bindings := []envBinding{
		{"QAGEN_ADDR", str(&c.Server.Addr)},
		{"QAGEN_MODE", str(&c.Server.Mode)},
		{"QAGEN_LOG_LEVEL", str(&c.Log.Level)},
		{"QAGEN_MAX_FILE_SIZE", num64(&c.Upload.MaxFileSize)},
		{"QAGEN_LLM_PROVIDER", str(&c.LLM.Provider)},
		{"QAGEN_LLM_MODEL", str(&c.LLM.Model)},
		{"QAGEN_LLM_BASE_URL", str(&c.LLM.BaseURL)},
		{"QAGEN_LLM_TEMPERATURE", float(&c.LLM.Temperature)},
		{"QAGEN_LLM_MAX_TOKENS", num(&c.LLM.MaxTokens)},
		{"QAGEN_LLM_TIMEOUT", duration(&c.LLM.Timeout)},
		{"OLLAMA_ENDPOINT", str(&c.LLM.Ollama.Endpoint)},
		{"QAGEN_OCR_LANGUAGES", list(&c.OCR.Languages)},
		{"QAGEN_DETECTOR", str(&c.Detector.Backend)},
		{"AWS_REGION", str(&c.Detector.Textract.Region)},
		{"AWS_ACCESS_KEY", str(&c.Detector.Textract.AccessKey)},
		{"AWS_SECRET_KEY", str(&c.Detector.Textract.SecretKey)},
		{"AWS_ENDPOINT", str(&c.Detector.Textract.Endpoint)},
		{"QAGEN_STORAGE", storageType(&c.Storage.Type)},
		{"QAGEN_STORAGE_DIR", str(&c.Storage.Local.Dir)},
		{"AWS_S3_BUCKET_NAME", str(&c.Storage.S3.BucketName)},
		{"AWS_REGION", str(&c.Storage.S3.Region)},
		{"AWS_ENDPOINT", str(&c.Storage.S3.Endpoint)},
		{"AWS_ACCESS_KEY", str(&c.Storage.S3.AccessKey)},
		{"AWS_SECRET_KEY", str(&c.Storage.S3.SecretKey)},
		{"MINIO_ENDPOINT", str(&c.Storage.Minio.Endpoint)},
		{"MINIO_ACCESS_KEY", str(&c.Storage.Minio.AccessKey)},
		{"MINIO_SECRET_KEY", str(&c.Storage.Minio.SecretKey)},
		{"MINIO_REGION", str(&c.Storage.Minio.Region)},
		{"MINIO_BUCKET_NAME", str(&c.Storage.Minio.BucketName)},
		{"MINIO_USE_SSL", boolean(&c.Storage.Minio.UseSSL)},
		{"QAGEN_QUEUE_ENABLED", boolean(&c.Queue.Enabled)},
		{"REDIS_ADDR", str(&c.Queue.RedisAddr)},
		{"REDIS_PASSWORD", str(&c.Queue.RedisPassword)},
		{"REDIS_DB", num(&c.Queue.RedisDB)},
		{"QAGEN_EXPORT_FORMAT", str(&c.Export.Format)},
		{"QAGEN_SCRATCH_DIR", str(&c.Scratch.Dir)},
		{"QAGEN_RETENTION", duration(&c.Retention.Period)},
	}
	for _, b := range bindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(v); err != nil {
			return fmt.Errorf("config: invalid %s: %w", b.name, err)
		}
	}

	// API keys are provider specific; an explicit QAGEN_LLM_API_KEY wins.
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "", "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if v := os.Getenv("QAGEN_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	return nil
}
