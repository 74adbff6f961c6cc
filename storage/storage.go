package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned when a key does not exist in the backend
var ErrObjectNotFound = errors.New("object not found")

// Storage reads and writes ingestion artifacts: raw case exports and
// archived model output that failed to parse.
type Storage interface {
	// Upload stores data under key and returns the key actually written
	Upload(ctx context.Context, key string, data io.Reader) (string, error)

	// Download retrieves the object stored under key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// Validate checks that the selected backend has what it needs
func (c StorageConfig) Validate() error {
	switch c.Type {
	case StorageTypeLocal:
		if c.LocalPath == "" {
			return errors.New("STORAGE_LOCAL_PATH is required for local storage")
		}
	case StorageTypeS3:
		if c.S3Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required for S3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Type)
	}
	return nil
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ObjectKey joins sanitized path segments into a storage key
func ObjectKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, " ", "_")
		p = strings.ReplaceAll(p, "\\", "_")
		p = strings.Trim(p, "/")
		if p == "" || p == "." || p == ".." {
			continue
		}
		clean = append(clean, p)
	}
	return path.Join(clean...)
}

// getContentType determines content type from the key extension
func getContentType(key string) string {
	switch filepath.Ext(key) {
	case ".json":
		return "application/json"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
