package models

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType 文件类型
type FileType string

const (
	PDF   FileType = "pdf"
	Image FileType = "image"
	Word  FileType = "word"
)

// Document is one uploaded input as it sits on local disk while a request runs.
type Document struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Ext returns the lower-cased extension of the original file name, dot included.
func (d Document) Ext() string {
	return strings.ToLower(filepath.Ext(d.Name))
}

// FileTypeOf maps an extension to the walker family that handles it.
func FileTypeOf(ext string) (FileType, bool) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return PDF, true
	case ".docx":
		return Word, true
	case ".png", ".jpg", ".jpeg":
		return Image, true
	default:
		return "", false
	}
}

// ProcessingTask is the client view of an asynchronous generation job.
type ProcessingTask struct {
	ID       string           `json:"taskId"`
	Status   ProcessingStatus `json:"status"`
	Type     string           `json:"type"`
	Progress float64          `json:"progress"`
	Error    string           `json:"error,omitempty"`
	// Count is the number of generated records once the job completed.
	Count     int               `json:"count"`
	Files     []string          `json:"files,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)

// ParseStatus maps a stored status string, treating unknown values as pending.
func ParseStatus(s string) ProcessingStatus {
	switch ProcessingStatus(s) {
	case StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return ProcessingStatus(s)
	case "active":
		return StatusRunning
	default:
		return StatusPending
	}
}
