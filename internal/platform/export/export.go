// Package export persists rendered reports to a filesystem directory or an
// S3-compatible bucket.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var ErrObjectNotFound = errors.New("export object not found")

type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type Store interface {
	// Put writes r under key and returns a location string (path or s3 URI).
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

// ReportKey returns reports/<type>/<UTC timestamp>.json.
func ReportKey(reportType string, at time.Time) string {
	return path.Join("reports", reportType, at.UTC().Format("20060102T150405Z")+".json")
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return fmt.Errorf("invalid export key %q", key)
	}
	return nil
}
