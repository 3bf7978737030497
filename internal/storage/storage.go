// Package storage keeps uploaded photo files and serves them back by file name.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"travel-diary-backend/internal/config"
)

// Store saves, deletes and serves photo files
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
	Delete(ctx context.Context, name string) error
	// Serve writes the file to w or redirects to a location that serves it
	Serve(w http.ResponseWriter, r *http.Request, name string)
}

// New creates the store selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, cfg)
	case "minio":
		return NewMinIOStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ValidName reports whether name is a plain file name without any path component
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && path.Base(name) == name
}
