// Package source opens import input files from the local filesystem or from
// S3-compatible object storage ("s3://bucket/key").
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotFound is returned when the requested input does not exist.
var ErrNotFound = errors.New("source not found")

// Opener opens an input for streaming. Missing inputs yield an error wrapping ErrNotFound.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Local opens files on disk.
type Local struct{}

func (Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Router dispatches s3:// paths to the S3 opener and everything else to Local.
type Router struct {
	Local Opener
	S3    Opener // nil disables s3:// inputs
}

// NewRouter returns a Router with a local opener and an optional S3 opener.
func NewRouter(s3 Opener) *Router {
	return &Router{Local: Local{}, S3: s3}
}

func (r *Router) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if IsS3(path) {
		if r.S3 == nil {
			return nil, fmt.Errorf("s3 input %s: no s3 client configured", path)
		}
		return r.S3.Open(ctx, path)
	}
	return r.Local.Open(ctx, path)
}

// IsS3 reports whether path uses the s3:// scheme.
func IsS3(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ParseS3Path splits "s3://bucket/key" into bucket and key.
func ParseS3Path(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 path: %s", path)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 path must be s3://bucket/key: %s", path)
	}
	return bucket, key, nil
}
